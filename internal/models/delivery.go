package models

import (
	"time"
)

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusCompleted DeliveryStatus = "completed"
)

const DeliveryIDPrefix = "BYNDEL"

// Delivery links one order to at most one rider.
//
// order_id is unique across all deliveries and rider_id is unique among
// non-completed deliveries; both are enforced by indexes as well as by
// the delivery engine.
type Delivery struct {
	DeliveryID  string         `json:"deliveryId" gorm:"primaryKey;column:delivery_id;type:varchar(16)"`
	RiderID     *string        `json:"riderId" gorm:"column:rider_id;type:varchar(16);uniqueIndex:idx_deliveries_active_rider,where:status <> 'completed'"`
	OrderID     string         `json:"orderId" gorm:"column:order_id;type:varchar(16);not null;uniqueIndex"`
	Phone       string         `json:"phone" gorm:"column:phone;type:varchar(20)"`
	Status      DeliveryStatus `json:"status" gorm:"column:status;type:varchar(20);not null;default:'pending'"`
	Date        time.Time      `json:"date" gorm:"column:date;not null;index"`
	CompletedAt *time.Time     `json:"completedAt,omitempty" gorm:"column:completed_at"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// IsActive reports whether the delivery still holds its rider.
func (d *Delivery) IsActive() bool {
	return d.Status != DeliveryStatusCompleted
}

// AssignedRider returns the rider id or "" when unassigned.
func (d *Delivery) AssignedRider() string {
	if d.RiderID == nil {
		return ""
	}
	return *d.RiderID
}

type DeliveryCreate struct {
	RiderID string `json:"riderId"`
	OrderID string `json:"orderId" binding:"required"`
	Phone   string `json:"phone"`
}

// DeliveryUpdate: a nil field is left unchanged, an empty RiderID unassigns.
type DeliveryUpdate struct {
	RiderID *string `json:"riderId"`
	OrderID *string `json:"orderId"`
}
