package utils

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	riderNumRegex   = regexp.MustCompile(`^(0|[1-9]\d{0,10})$`)
	phone10Regex    = regexp.MustCompile(`^\d{10}$`)
	personNameRegex = regexp.MustCompile(`^[A-Za-z\s]+$`)
	gmailRegex      = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@gmail\.com$`)
)

// IsRiderNumber accepts a plain non-negative number without leading zeros,
// e.g. "0", "7" or "123456". It must fit the 16 character rider id.
func IsRiderNumber(s string) bool {
	return riderNumRegex.MatchString(strings.TrimSpace(s))
}

func IsPhone10(s string) bool {
	return phone10Regex.MatchString(strings.TrimSpace(s))
}

func IsPersonName(s string) bool {
	return personNameRegex.MatchString(strings.TrimSpace(s))
}

func IsGmail(s string) bool {
	return gmailRegex.MatchString(strings.TrimSpace(s))
}

// RegisterValidators adds the rider tags to gin's validator engine.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	rules := map[string]func(string) bool{
		"ridernumber": IsRiderNumber,
		"phone10":     IsPhone10,
		"personname":  IsPersonName,
		"gmail":       IsGmail,
	}
	for tag, fn := range rules {
		fn := fn
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return fn(fl.Field().String())
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ValidationMessage turns a binding error into the message shown to the caller.
func ValidationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "Invalid request body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "ridernumber":
		return "RiderId must be digits only"
	case "phone10":
		return "Phone number must be exactly 10 digits"
	case "personname":
		return "Name must contain only letters and spaces (no numbers or symbols)"
	case "gmail":
		return "Email must be a valid Gmail address (e.g., test@gmail.com)"
	default:
		return fe.Field() + " is invalid"
	}
}
