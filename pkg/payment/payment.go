package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type ProviderName string

const (
	ProviderStripe ProviderName = "stripe"
	ProviderSumUp  ProviderName = "sumup"
)

func (p ProviderName) Valid() bool {
	return p == ProviderStripe || p == ProviderSumUp
}

// Normalized settlement states reported by the status endpoint.
const (
	StatusPaid    = "PAID"
	StatusFailed  = "FAILED"
	StatusPending = "PENDING"
)

// Raw Stripe PaymentIntent statuses the checkout flow branches on.
const (
	StripeSucceeded      = "succeeded"
	StripeRequiresAction = "requires_action"
	StripeProcessing     = "processing"
)

var (
	ErrGatewayConfig  = errors.New("payment gateway is not configured")
	ErrInvalidRequest = errors.New("invalid payment request")
	ErrUnavailable    = errors.New("payment gateway unavailable")
)

// DeclinedError is a card-level failure. Message is the gateway's
// customer-safe text and may be shown to the buyer.
type DeclinedError struct {
	Code           string
	Message        string
	RequiresAction bool
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("card declined (%s): %s", e.Code, e.Message)
}

// Customer is the contact block sent with every charge.
type Customer struct {
	Email   string `json:"email" validate:"required,email"`
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Phone   string `json:"phone" validate:"required,phone"`
	Country string `json:"country" validate:"required,len=2,alpha"`
}

// Card carries raw card fields for the provider without hosted tokenization.
type Card struct {
	Name        string `json:"name"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CVV         string `json:"cvv"`
}

// Last4 is safe to log.
func (c *Card) Last4() string {
	if c == nil || len(c.Number) < 4 {
		return ""
	}
	return c.Number[len(c.Number)-4:]
}

type ChargeRequest struct {
	Reference       string
	Amount          decimal.Decimal
	Currency        string
	Description     string
	PaymentMethodID string // Stripe-shaped providers
	Card            *Card  // SumUp-shaped providers
	Customer        Customer
	ReturnURL       string
}

// ThreeDSChallenge is the step-up descriptor a SumUp-shaped gateway returns.
type ThreeDSChallenge struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Payload map[string]string `json:"payload,omitempty"`
}

type ChargeResult struct {
	Provider     ProviderName
	GatewayID    string
	Status       string // raw gateway status
	ClientSecret string
	NextStep     *ThreeDSChallenge
}

// Settlement maps a raw gateway status onto PAID, FAILED or PENDING.
func (r *ChargeResult) Settlement() string {
	switch r.Provider {
	case ProviderStripe:
		switch r.Status {
		case StripeSucceeded:
			return StatusPaid
		case StripeRequiresAction, StripeProcessing, "requires_confirmation":
			return StatusPending
		default:
			return StatusFailed
		}
	default:
		switch strings.ToUpper(r.Status) {
		case StatusPaid:
			return StatusPaid
		case StatusFailed, "EXPIRED", "CANCELLED":
			return StatusFailed
		default:
			return StatusPending
		}
	}
}

// Gateway is the server-side capability of one payment provider.
type Gateway interface {
	Provider() ProviderName
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	ChargeStatus(ctx context.Context, gatewayID string) (*ChargeResult, error)
}

// minorUnits converts a 2dp amount to cents.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
