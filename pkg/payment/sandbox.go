package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Magic inputs understood by the sandbox gateway.
const (
	SandboxPMSucceeds      = "pm_card_visa"
	SandboxPMRequires3DS   = "pm_card_threeDSecure2Required"
	SandboxPMDeclined      = "pm_card_chargeDeclined"
	SandboxCardRequires3DS = "4000000000003220"
	SandboxCardDeclined    = "4000000000000002"
)

// SandboxGateway is a deterministic in-process gateway for development and
// tests. Stripe-shaped charges branch on the payment method id, SumUp-shaped
// charges on the card number. A pending 3DS charge settles after
// SettleAfter status checks.
type SandboxGateway struct {
	provider    ProviderName
	SettleAfter int

	mu      sync.Mutex
	charges map[string]*sandboxCharge
}

type sandboxCharge struct {
	status string
	checks int
	settle string
}

func NewSandboxGateway(p ProviderName) *SandboxGateway {
	return &SandboxGateway{provider: p, SettleAfter: 2, charges: make(map[string]*sandboxCharge)}
}

func (s *SandboxGateway) Provider() ProviderName { return s.provider }

func (s *SandboxGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Reference == "" {
		return nil, fmt.Errorf("%w: reference required", ErrInvalidRequest)
	}
	if s.provider == ProviderStripe {
		return s.stripeCharge(req)
	}
	return s.sumupCharge(req)
}

func (s *SandboxGateway) stripeCharge(req ChargeRequest) (*ChargeResult, error) {
	if req.PaymentMethodID == "" {
		return nil, fmt.Errorf("%w: payment method reference required", ErrInvalidRequest)
	}
	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	res := &ChargeResult{Provider: ProviderStripe, GatewayID: id}
	switch req.PaymentMethodID {
	case SandboxPMDeclined:
		return nil, &DeclinedError{Code: "card_declined", Message: "Your card was declined."}
	case SandboxPMRequires3DS:
		res.Status = StripeRequiresAction
		res.ClientSecret = id + "_secret_" + uuid.NewString()[:8]
		s.store(id, res.Status, StripeSucceeded)
	default:
		res.Status = StripeSucceeded
		s.store(id, res.Status, StripeSucceeded)
	}
	return res, nil
}

func (s *SandboxGateway) sumupCharge(req ChargeRequest) (*ChargeResult, error) {
	if req.Card == nil {
		return nil, fmt.Errorf("%w: card details required", ErrInvalidRequest)
	}
	id := uuid.NewString()
	res := &ChargeResult{Provider: ProviderSumUp, GatewayID: id}
	switch req.Card.Number {
	case SandboxCardDeclined:
		res.Status = StatusFailed
		s.store(id, StatusFailed, StatusFailed)
	case SandboxCardRequires3DS:
		res.Status = StatusPending
		res.NextStep = &ThreeDSChallenge{
			URL:     "https://sandbox.invalid/3ds/" + id,
			Method:  "POST",
			Payload: map[string]string{"PaReq": id, "MD": req.Reference},
		}
		s.store(id, StatusPending, StatusPaid)
	default:
		res.Status = StatusPaid
		s.store(id, StatusPaid, StatusPaid)
	}
	return res, nil
}

func (s *SandboxGateway) store(id, status, settle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charges[id] = &sandboxCharge{status: status, settle: settle}
}

func (s *SandboxGateway) ChargeStatus(ctx context.Context, gatewayID string) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.charges[gatewayID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown charge %s", ErrInvalidRequest, gatewayID)
	}
	ch.checks++
	if ch.status != ch.settle && ch.checks >= s.SettleAfter {
		ch.status = ch.settle
	}
	return &ChargeResult{Provider: s.provider, GatewayID: gatewayID, Status: ch.status}, nil
}
