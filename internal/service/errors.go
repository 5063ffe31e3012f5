package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("coupon not found")
	ErrAlreadyClaimed  = errors.New("a coupon has already been issued for this email")
	ErrExpired         = errors.New("coupon has expired")
	ErrExhausted       = errors.New("coupon usage limit reached")
	ErrNotYetActive    = errors.New("coupon is not active yet")
	ErrCodeUnavailable = errors.New("could not allocate a unique coupon code")

	ErrAmountMismatch     = errors.New("amount does not match the order total")
	ErrDuplicateReference = errors.New("checkout reference already in progress")
	ErrUnknownReference   = errors.New("unknown checkout reference")
	ErrPaymentsDisabled   = errors.New("payments are currently disabled")

	ErrInvalidCreds = errors.New("invalid username or password")
)

// InputError is a rejected request field.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalidInput(field, msg string) error {
	return &InputError{Field: field, Message: msg}
}
