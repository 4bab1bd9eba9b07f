package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so transports can map them without string matching.
type ErrorKind string

const (
	KindUnauthorized     ErrorKind = "unauthorized"
	KindNotFound         ErrorKind = "not_found"
	KindConflict         ErrorKind = "conflict"
	KindInvalidOrExpired ErrorKind = "invalid_or_expired"
	KindValidation       ErrorKind = "validation_error"
	KindStorage          ErrorKind = "storage_failure"
)

// Error is the error type returned by every service operation.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind and message, so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

var (
	ErrDeliveryNotFound     = &Error{Kind: KindNotFound, Message: "Delivery not found"}
	ErrRiderNotFound        = &Error{Kind: KindNotFound, Message: "Rider not found"}
	ErrOrderNotFound        = &Error{Kind: KindNotFound, Message: "Order not found"}
	ErrOrderAlreadyAssigned = &Error{Kind: KindConflict, Message: "This order is already assigned to another delivery"}
	ErrRiderBusy            = &Error{Kind: KindConflict, Message: "Rider already has an active delivery"}
	ErrRiderExists          = &Error{Kind: KindConflict, Message: "Rider Id already exists"}
	ErrRiderEmailTaken      = &Error{Kind: KindConflict, Message: "Email is already used by another rider"}
	ErrRiderHasDeliveries   = &Error{Kind: KindConflict, Message: "Rider is referenced by deliveries"}
	ErrDeliveryCompleted    = &Error{Kind: KindConflict, Message: "Delivery is already completed"}
	ErrInvalidOrExpired     = &Error{Kind: KindInvalidOrExpired, Message: "Invalid or expired session"}
)

// ValidationError reports a malformed input.
func ValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// storageError hides the cause behind a generic message; the cause stays reachable via Unwrap.
func storageError(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// KindOf returns the kind of err, treating unknown errors as storage failures.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindStorage
}

// passThrough keeps service errors as they are and wraps anything else.
func passThrough(message string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return storageError(message, err)
}
