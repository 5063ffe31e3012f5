package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"streamvault/internal/domain"
	"streamvault/internal/idempotency"
	"streamvault/internal/models"
	"streamvault/internal/repository"
	"streamvault/pkg/cardcapture"
	"streamvault/pkg/checkout"
	"streamvault/pkg/payment"
	"streamvault/pkg/pricing"
)

type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByReference(ctx context.Context, ref string) (*models.Payment, error)
	UpdateStatus(ctx context.Context, ref string, u repository.StatusUpdate) error
	MarkCouponRedeemed(ctx context.Context, ref string) (bool, error)
}

type IdempotencyStore interface {
	Claim(ctx context.Context, ref string, at time.Time) (*idempotency.Record, bool, error)
	Complete(ctx context.Context, rec idempotency.Record) error
	Release(ctx context.Context, ref string) error
}

type GatewayFactory interface {
	Gateway(ctx context.Context, creds payment.Credentials) (payment.Gateway, error)
}

type CheckoutConfig struct {
	Currency      string
	SubmitTimeout time.Duration
	StatusTimeout time.Duration
	ReturnURL     string
}

// CheckoutService charges a checkout reference at most once and reports its
// settlement.
type CheckoutService struct {
	cfg       CheckoutConfig
	engine    *pricing.Engine
	coupons   *CouponService
	providers *ProviderService
	payments  PaymentStore
	claims    IdempotencyStore
	gateways  GatewayFactory
	now       func() time.Time
	logger    *slog.Logger
}

func NewCheckoutService(
	cfg CheckoutConfig,
	engine *pricing.Engine,
	coupons *CouponService,
	providers *ProviderService,
	payments PaymentStore,
	claims IdempotencyStore,
	gateways GatewayFactory,
	logger *slog.Logger,
) *CheckoutService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = "EUR"
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 10 * time.Second
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 5 * time.Second
	}
	return &CheckoutService{
		cfg:       cfg,
		engine:    engine,
		coupons:   coupons,
		providers: providers,
		payments:  payments,
		claims:    claims,
		gateways:  gateways,
		now:       time.Now,
		logger:    logger.With("component", "checkout"),
	}
}

// StatusView is the answer of GET /checkout/status.
type StatusView struct {
	Status   string                    `json:"status"`
	NextStep *payment.ThreeDSChallenge `json:"nextStep,omitempty"`
}

func (s *CheckoutService) Create(ctx context.Context, req checkout.SubmitRequest) (*checkout.SubmitResponse, error) {
	ref := strings.TrimSpace(req.CheckoutReference)
	if ref == "" {
		return nil, invalidInput("checkoutReference", "checkout reference is required")
	}
	if !s.engine.MeetsMinimum(req.Amount) {
		return nil, invalidInput("amount", fmt.Sprintf("amount must be at least %s", s.engine.Minimum().StringFixed(2)))
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.cfg.Currency
	}
	if currency != s.cfg.Currency {
		return nil, invalidInput("currency", "unsupported currency "+req.Currency)
	}
	if err := cardcapture.ValidateContact(req.ClientIdentity); err != nil {
		var fe cardcapture.FieldErrors
		if errors.As(err, &fe) && len(fe) > 0 {
			return nil, invalidInput(fe[0].Field, fe[0].Message)
		}
		return nil, err
	}

	couponCode, err := s.reprice(ctx, req)
	if err != nil {
		return nil, err
	}

	// One config read per request; the provider is fixed from here on.
	cfg, err := s.providers.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.IsEnabled {
		return nil, ErrPaymentsDisabled
	}
	provider := payment.ProviderName(cfg.Provider)
	charge := payment.ChargeRequest{
		Reference:   ref,
		Amount:      req.Amount.Round(2),
		Currency:    currency,
		Description: req.Description,
		Customer:    req.ClientIdentity,
		ReturnURL:   s.cfg.ReturnURL,
	}
	switch provider {
	case payment.ProviderStripe:
		if req.PaymentMethodReference == "" {
			return nil, invalidInput("paymentMethodReference", "payment method is required")
		}
		charge.PaymentMethodID = req.PaymentMethodReference
	case payment.ProviderSumUp:
		if req.Card == nil {
			return nil, invalidInput("card", "card details are required")
		}
		charge.Card = req.Card
	}

	now := s.now()
	prev, claimed, err := s.claims.Claim(ctx, ref, now)
	if errors.Is(err, idempotency.ErrInFlight) {
		return nil, ErrDuplicateReference
	}
	if err != nil {
		return nil, err
	}
	if !claimed {
		s.logger.Info("replaying checkout", "reference", ref, "status", prev.Status)
		return replay(prev)
	}

	gw, err := s.gateways.Gateway(ctx, Credentials(cfg, provider))
	if err != nil {
		s.release(ref)
		s.logger.Error("gateway unavailable for checkout", "provider", provider, "error", err)
		return nil, err
	}
	rec := &models.Payment{
		Reference:       ref,
		Provider:        string(provider),
		Amount:          charge.Amount,
		Currency:        currency,
		Status:          domain.PaymentStatusPending,
		Description:     req.Description,
		CustomerEmail:   req.ClientIdentity.Email,
		CustomerCountry: strings.ToUpper(req.ClientIdentity.Country),
		CouponCode:      couponCode,
	}
	if err := s.payments.Create(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateReference
		}
		s.release(ref)
		return nil, err
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
	defer cancel()
	res, err := gw.CreateCharge(chargeCtx, charge)
	if err != nil {
		s.fail(ctx, ref, provider, err)
		return nil, err
	}

	settled := res.Settlement()
	if err := s.payments.UpdateStatus(ctx, ref, repository.StatusUpdate{
		GatewayID:     res.GatewayID,
		Status:        settled,
		GatewayStatus: res.Status,
		At:            s.now(),
	}); err != nil {
		s.logger.Error("payment status not recorded", "reference", ref, "error", err)
	}
	if settled == payment.StatusPaid {
		s.redeemCoupon(ctx, ref, couponCode)
	}

	resp := &checkout.SubmitResponse{
		Status:       wireStatus(res),
		ClientSecret: res.ClientSecret,
		NextAction:   res.NextStep,
	}
	if err := s.claims.Complete(ctx, idempotency.Record{
		Reference:    ref,
		Provider:     provider,
		GatewayID:    res.GatewayID,
		Status:       resp.Status,
		ClientSecret: resp.ClientSecret,
		NextStep:     resp.NextAction,
		CreatedAt:    now,
	}); err != nil {
		s.logger.Error("idempotency record not stored", "reference", ref, "error", err)
	}
	s.logger.Info("checkout created", "reference", ref, "provider", provider, "status", resp.Status)
	return resp, nil
}

// Status asks the gateway for the settlement of ref. Terminal settlements are
// answered from the payment record.
func (s *CheckoutService) Status(ctx context.Context, ref string) (*StatusView, error) {
	rec, err := s.payments.GetByReference(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownReference
	}
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.PaymentStatusPending || rec.GatewayID == "" {
		return &StatusView{Status: rec.Status}, nil
	}

	cfg, err := s.providers.Load(ctx)
	if err != nil {
		return nil, err
	}
	gw, err := s.gateways.Gateway(ctx, Credentials(cfg, payment.ProviderName(rec.Provider)))
	if err != nil {
		return nil, err
	}
	statusCtx, cancel := context.WithTimeout(ctx, s.cfg.StatusTimeout)
	defer cancel()
	res, err := gw.ChargeStatus(statusCtx, rec.GatewayID)
	if err != nil {
		return nil, err
	}
	settled := res.Settlement()
	if settled != rec.Status {
		if err := s.payments.UpdateStatus(ctx, ref, repository.StatusUpdate{
			Status:        settled,
			GatewayStatus: res.Status,
			At:            s.now(),
		}); err != nil {
			s.logger.Error("payment status not recorded", "reference", ref, "error", err)
		}
	}
	if settled == payment.StatusPaid {
		s.redeemCoupon(ctx, ref, rec.CouponCode)
	}
	return &StatusView{Status: settled, NextStep: res.NextStep}, nil
}

// reprice checks a client-computed amount against the catalog when the order
// names a package, and returns the coupon code that will be redeemed at PAID.
func (s *CheckoutService) reprice(ctx context.Context, req checkout.SubmitRequest) (string, error) {
	var discount *pricing.Discount
	code := normalizeCode(req.CouponCode)
	if code != "" {
		view, err := s.coupons.Validate(ctx, code)
		if err != nil {
			return "", err
		}
		d := view.Discount()
		discount = &d
	}
	if req.PackageID == "" {
		return code, nil
	}
	q, err := s.engine.Quote(pricing.Order{PackageID: req.PackageID, AddOnIDs: req.AddOns, Discount: discount})
	if err != nil {
		return "", invalidInput("packageId", err.Error())
	}
	if !q.Total.Equal(req.Amount.Round(2)) {
		return "", fmt.Errorf("%w: expected %s", ErrAmountMismatch, q.Total.StringFixed(2))
	}
	if !q.CouponApplied {
		code = ""
	}
	return code, nil
}

func (s *CheckoutService) redeemCoupon(ctx context.Context, ref, code string) {
	if code == "" {
		return
	}
	first, err := s.payments.MarkCouponRedeemed(ctx, ref)
	if err != nil {
		s.logger.Error("coupon redemption not recorded", "reference", ref, "error", err)
		return
	}
	if !first {
		return
	}
	if err := s.coupons.Redeem(ctx, code); err != nil {
		s.logger.Warn("coupon redemption failed", "reference", ref, "code", code, "error", err)
	}
}

// fail records a charge that never produced a gateway result.
func (s *CheckoutService) fail(ctx context.Context, ref string, provider payment.ProviderName, cause error) {
	rec := idempotency.Record{
		Reference: ref,
		Provider:  provider,
		Status:    payment.StatusFailed,
		ErrorCode: ErrorCode(cause),
		CreatedAt: s.now(),
	}
	var declined *payment.DeclinedError
	if errors.As(cause, &declined) {
		rec.ErrorMessage = declined.Message
		s.logger.Info("card declined", "reference", ref, "code", declined.Code)
	} else if errors.Is(cause, payment.ErrGatewayConfig) {
		s.logger.Error("gateway rejected credentials", "reference", ref, "provider", provider, "error", cause)
	} else {
		s.logger.Warn("charge failed", "reference", ref, "provider", provider, "error", cause)
	}
	if err := s.payments.UpdateStatus(ctx, ref, repository.StatusUpdate{Status: payment.StatusFailed, At: s.now()}); err != nil {
		s.logger.Error("payment status not recorded", "reference", ref, "error", err)
	}
	if err := s.claims.Complete(ctx, rec); err != nil {
		s.logger.Error("idempotency record not stored", "reference", ref, "error", err)
	}
}

func (s *CheckoutService) release(ref string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.claims.Release(ctx, ref); err != nil {
		s.logger.Warn("idempotency claim not released", "reference", ref, "error", err)
	}
}

// replay rebuilds the original answer for a completed reference.
func replay(rec *idempotency.Record) (*checkout.SubmitResponse, error) {
	switch rec.ErrorCode {
	case "":
	case domain.CodeCardDeclined:
		return nil, &payment.DeclinedError{Code: rec.ErrorCode, Message: rec.ErrorMessage}
	case domain.CodeGatewayConfig:
		return nil, payment.ErrGatewayConfig
	case domain.CodeGatewayUnavailable:
		return nil, payment.ErrUnavailable
	default:
		return nil, payment.ErrInvalidRequest
	}
	return &checkout.SubmitResponse{
		Status:       rec.Status,
		ClientSecret: rec.ClientSecret,
		NextAction:   rec.NextStep,
	}, nil
}

// wireStatus is the status the client flow branches on: the raw intent
// status for Stripe, the settlement for SumUp.
func wireStatus(res *payment.ChargeResult) string {
	if res.Provider == payment.ProviderStripe {
		return res.Status
	}
	return res.Settlement()
}

// ErrorCode is the stable API code for err.
func ErrorCode(err error) string {
	var declined *payment.DeclinedError
	var input *InputError
	switch {
	case errors.As(err, &declined):
		return domain.CodeCardDeclined
	case errors.As(err, &input):
		return domain.CodeValidation
	case errors.Is(err, payment.ErrGatewayConfig), errors.Is(err, ErrPaymentsDisabled):
		return domain.CodeGatewayConfig
	case errors.Is(err, payment.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return domain.CodeGatewayUnavailable
	case errors.Is(err, payment.ErrInvalidRequest):
		return domain.CodeInvalidRequest
	case errors.Is(err, ErrDuplicateReference):
		return domain.CodeDuplicateReference
	case errors.Is(err, ErrAmountMismatch):
		return domain.CodeAmountMismatch
	case errors.Is(err, ErrUnknownReference):
		return domain.CodeUnknownReference
	case errors.Is(err, ErrExpired):
		return domain.CodeCouponExpired
	case errors.Is(err, ErrExhausted):
		return domain.CodeCouponExhausted
	case errors.Is(err, ErrNotYetActive):
		return domain.CodeCouponNotActive
	case errors.Is(err, ErrNotFound):
		return domain.CodeCouponNotFound
	case errors.Is(err, ErrAlreadyClaimed):
		return domain.CodeCouponAlreadyClaimed
	case errors.Is(err, ErrInvalidCreds):
		return domain.CodeInvalidCredentials
	}
	return domain.CodeInternal
}
