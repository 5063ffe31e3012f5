package checkout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"streamvault/pkg/cardcapture"
)

var (
	ErrTimeout   = errors.New("payment confirmation timed out")
	ErrCancelled = errors.New("payment confirmation cancelled")
	ErrCooldown  = errors.New("too many attempts, please wait before trying again")
)

// ValidationError is raised before any network call.
type ValidationError struct {
	Fields []cardcapture.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: []cardcapture.FieldError{{Field: field, Message: msg}}}
}

// asValidation lifts capture field errors into a ValidationError.
func asValidation(err error) error {
	var fe cardcapture.FieldErrors
	if errors.As(err, &fe) {
		return &ValidationError{Fields: fe}
	}
	return err
}

// CooldownError carries the remaining wait.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s (%ds)", ErrCooldown.Error(), int(e.Remaining.Seconds()+0.5))
}

func (e *CooldownError) Unwrap() error { return ErrCooldown }

// APIError is a non-2xx answer from the storefront API.
type APIError struct {
	Status         int
	Code           string
	Message        string
	RequiresAction bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}
