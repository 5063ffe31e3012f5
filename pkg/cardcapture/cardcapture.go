// Package cardcapture turns customer card input into a single-use payment
// method. Hosted capture delegates to a gateway-provided field element and
// yields an opaque reference; raw capture validates plaintext card fields for
// gateways that accept them directly.
package cardcapture

import (
	"errors"
	"strings"
	"sync"

	"streamvault/pkg/payment"
)

var (
	ErrAlreadyUsed      = errors.New("payment method already used")
	ErrMissingPublicKey = errors.New("card element public key missing")
	ErrScriptLoad       = errors.New("card element script failed to load")
	ErrContainerMissing = errors.New("card element container not present")
	ErrMountFailed      = errors.New("card element mount failed")
	ErrNotReady         = errors.New("card element not ready")
	ErrIncomplete       = errors.New("card details incomplete")
)

type Kind string

const (
	KindReference Kind = "reference"
	KindRawCard   Kind = "raw_card"
)

// FieldError names one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors collects every invalid field of a form.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	msgs := make([]string, len(fe))
	for i, f := range fe {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

func (fe *FieldErrors) add(field, msg string) {
	*fe = append(*fe, FieldError{Field: field, Message: msg})
}

func (fe FieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// Captured is what a PaymentMethod hands over exactly once.
type Captured struct {
	Kind      Kind
	Reference string
	Card      *payment.Card
}

// PaymentMethod is a captured card usable for exactly one submission.
type PaymentMethod struct {
	mu   sync.Mutex
	data *Captured
	used bool
}

func NewReference(ref string) *PaymentMethod {
	return &PaymentMethod{data: &Captured{Kind: KindReference, Reference: ref}}
}

func NewRawCard(card payment.Card) *PaymentMethod {
	return &PaymentMethod{data: &Captured{Kind: KindRawCard, Card: &card}}
}

func (pm *PaymentMethod) Kind() Kind {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.data == nil {
		return ""
	}
	return pm.data.Kind
}

// Take hands the captured data to the submitter. A second call, or a call
// after Clear, fails with ErrAlreadyUsed.
func (pm *PaymentMethod) Take() (Captured, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.used || pm.data == nil {
		return Captured{}, ErrAlreadyUsed
	}
	pm.used = true
	return *pm.data, nil
}

// Clear wipes captured card data.
func (pm *PaymentMethod) Clear() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.data != nil && pm.data.Card != nil {
		*pm.data.Card = payment.Card{}
	}
	pm.data = nil
	pm.used = true
}
