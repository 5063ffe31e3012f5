// Package checkout drives one customer checkout from submission to a
// terminal redirect: entry guards, provider-specific flows, step-up
// confirmation and status polling.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"streamvault/pkg/cardcapture"
	"streamvault/pkg/payment"
	"streamvault/pkg/pricing"
)

const (
	DefaultCooldown      = 30 * time.Second
	DefaultSubmitTimeout = 10 * time.Second
)

type Config struct {
	Minimum       decimal.Decimal
	Currency      string
	Cooldown      time.Duration
	SubmitTimeout time.Duration
}

// Order is what the customer asks to pay for.
type Order struct {
	Provider    payment.ProviderName
	Amount      decimal.Decimal
	Description string
	Method      *cardcapture.PaymentMethod
	Customer    payment.Customer
	CouponCode  string
	PackageID   string
	AddOns      []string
}

type Orchestrator struct {
	submitter Submitter
	flows     map[payment.ProviderName]Flow
	cooldown  CooldownStore
	clock     Clock
	cfg       Config
	logger    *slog.Logger
}

func NewOrchestrator(cfg Config, submitter Submitter, cooldown CooldownStore, clock Clock, logger *slog.Logger, flows ...Flow) *Orchestrator {
	if cfg.Minimum.IsZero() {
		cfg.Minimum = pricing.DefaultMinimumCharge
	}
	if cfg.Currency == "" {
		cfg.Currency = "EUR"
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.SubmitTimeout == 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if cooldown == nil {
		cooldown = NewMemoryCooldown()
	}
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	byProvider := make(map[payment.ProviderName]Flow, len(flows))
	for _, f := range flows {
		byProvider[f.Provider()] = f
	}
	return &Orchestrator{
		submitter: submitter,
		flows:     byProvider,
		cooldown:  cooldown,
		clock:     clock,
		cfg:       cfg,
		logger:    logger.With("component", "checkout"),
	}
}

// Run executes one attempt. Guard failures (*ValidationError, ErrCooldown)
// are returned as errors and never reach the network; everything after
// submission ends in a terminal Result.
func (o *Orchestrator) Run(ctx context.Context, order Order) (*Result, *Attempt, error) {
	now := o.clock.Now()
	a := newAttempt(NewReference(now))
	a.Amount = order.Amount.Round(2)
	a.Currency = o.cfg.Currency
	a.Customer = order.Customer
	a.Provider = order.Provider

	if err := o.guard(order, now); err != nil {
		return nil, a, err
	}
	flow, ok := o.flows[order.Provider]
	if !ok {
		return nil, a, invalid("provider", fmt.Sprintf("payment provider %q is not available", order.Provider))
	}
	captured, err := order.Method.Take()
	if err != nil {
		return nil, a, invalid("card", "Please re-enter your card details")
	}
	req := SubmitRequest{
		Amount:            a.Amount,
		Currency:          a.Currency,
		CheckoutReference: a.Reference,
		Description:       order.Description,
		ClientIdentity:    order.Customer,
		CouponCode:        order.CouponCode,
		PackageID:         order.PackageID,
		AddOns:            order.AddOns,
	}
	if err := flow.Prepare(captured, &req); err != nil {
		order.Method.Clear()
		return nil, a, err
	}
	if err := o.cooldown.Record(order.Customer.Email, now); err != nil {
		o.logger.Warn("cooldown record failed", "error", err)
	}

	_ = a.transition(StateSubmitting)
	log := o.logger.With("reference", a.Reference, "provider", order.Provider)
	log.Info("submitting checkout", "amount", a.Amount.StringFixed(2), "currency", a.Currency)

	sctx, cancel := context.WithTimeout(ctx, o.cfg.SubmitTimeout)
	resp, err := o.submitter.Submit(sctx, req)
	cancel()
	if err != nil {
		_ = a.transition(StateFailed)
		order.Method.Clear()
		res := submitFailure(a, err)
		if errors.Is(err, payment.ErrGatewayConfig) {
			log.Error("gateway misconfigured", "error", err)
		} else {
			log.Warn("checkout submission failed", "reason", res.Reason, "error", err)
		}
		return res, a, nil
	}

	res := flow.Resolve(ctx, a, resp)
	if res.State == StateFailed {
		order.Method.Clear()
	}
	log.Info("checkout finished", "state", res.State, "reason", res.Reason)
	return res, a, nil
}

func (o *Orchestrator) guard(order Order, now time.Time) error {
	if order.Amount.Round(2).LessThan(o.cfg.Minimum) {
		return invalid("amount", fmt.Sprintf("Minimum charge is %s %s", o.cfg.Minimum.StringFixed(2), o.cfg.Currency))
	}
	if err := cardcapture.ValidateContact(order.Customer); err != nil {
		return asValidation(err)
	}
	if order.Method == nil {
		return invalid("card", "Please complete the card details")
	}
	last, ok, err := o.cooldown.Last(order.Customer.Email)
	if err != nil {
		o.logger.Warn("cooldown lookup failed", "error", err)
		return nil
	}
	if ok {
		if elapsed := now.Sub(last); elapsed < o.cfg.Cooldown {
			return &CooldownError{Remaining: o.cfg.Cooldown - elapsed}
		}
	}
	return nil
}

func submitFailure(a *Attempt, err error) *Result {
	var declined *payment.DeclinedError
	switch {
	case errors.As(err, &declined):
		return failed(a, ReasonPaymentFailed, declined.Message, err)
	case errors.Is(err, payment.ErrGatewayConfig):
		return failed(a, ReasonConfiguration, "", err)
	case errors.Is(err, context.DeadlineExceeded):
		return failed(a, ReasonPaymentFailed, "The payment service did not respond in time.", fmt.Errorf("%w: %v", ErrTimeout, err))
	}
	return failed(a, ReasonPaymentFailed, "", err)
}
