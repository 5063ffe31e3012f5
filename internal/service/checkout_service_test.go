package service

import (
	"context"
	"testing"
	"time"

	"streamvault/internal/models"
	"streamvault/pkg/checkout"
	"streamvault/pkg/payment"
	"streamvault/pkg/pricing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutHarness struct {
	svc      *CheckoutService
	coupons  *CouponService
	payments *fakePayments
	configs  *fakeConfigs
	claims   IdempotencyStore
	factory  *countingFactory
}

func newCheckoutHarness(t *testing.T, provider string) *checkoutHarness {
	configs := &fakeConfigs{cfg: &models.PaymentConfig{
		ID: 1, Provider: provider, IsEnabled: true,
		StripePublicKey: "pk_test", StripeSecretKey: "sk_test",
		SumUpClientID: "cid", SumUpClientSecret: "csecret", SumUpMerchantEmail: "m@example.com",
	}}
	payments := newFakePayments()
	claims := newIdempotencyStore(t)
	coupons := NewCouponService(newFakeCoupons(), nil)
	factory := &countingFactory{inner: payment.NewFactory(payment.FactoryConfig{Sandbox: true}, nil, nil)}
	svc := NewCheckoutService(
		CheckoutConfig{Currency: "EUR"},
		pricing.NewEngine(pricing.DefaultCatalog(), pricing.DefaultMinimumCharge),
		coupons,
		NewProviderService(configs, nil, nil),
		payments,
		claims,
		factory,
		nil,
	)
	return &checkoutHarness{svc: svc, coupons: coupons, payments: payments, configs: configs, claims: claims, factory: factory}
}

var buyer = payment.Customer{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+353 87 123 4567", Country: "IE"}

func stripeOrder(ref, pm, amount string) checkout.SubmitRequest {
	return checkout.SubmitRequest{
		Amount:                 decimal.RequireFromString(amount),
		Currency:               "EUR",
		CheckoutReference:      ref,
		Description:            "1-Year Plan",
		PaymentMethodReference: pm,
		ClientIdentity:         buyer,
	}
}

func sumupOrder(ref, number, amount string) checkout.SubmitRequest {
	return checkout.SubmitRequest{
		Amount:            decimal.RequireFromString(amount),
		Currency:          "EUR",
		CheckoutReference: ref,
		Card:              &payment.Card{Name: "Ada Lovelace", Number: number, ExpiryMonth: "12", ExpiryYear: "30", CVV: "123"},
		ClientIdentity:    buyer,
	}
}

func TestCreate_StripeSucceeds(t *testing.T) {
	h := newCheckoutHarness(t, "stripe")

	resp, err := h.svc.Create(context.Background(), stripeOrder("ORDER-1", payment.SandboxPMSucceeds, "29.99"))
	require.NoError(t, err)
	assert.Equal(t, payment.StripeSucceeded, resp.Status)

	rec := h.payments.get("ORDER-1")
	assert.Equal(t, "PAID", rec.Status)
	assert.NotEmpty(t, rec.GatewayID)
	assert.NotNil(t, rec.CompletedAt)
	assert.True(t, rec.Amount.Equal(decimal.RequireFromString("29.99")))
}

func TestCreate_ReplaysCompletedReference(t *testing.T) {
	h := newCheckoutHarness(t, "stripe")
	ctx := context.Background()
	req := stripeOrder("ORDER-2", payment.SandboxPMRequires3DS, "29.99")

	first, err := h.svc.Create(ctx, req)
	require.NoError(t, err)
	second, err := h.svc.Create(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), h.factory.charges)
}

func TestCreate_InFlightReferenceRejected(t *testing.T) {
	h := newCheckoutHarness(t, "stripe")
	ctx := context.Background()
	_, ok, err := h.claims.Claim(ctx, "ORDER-3", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.svc.Create(ctx, stripeOrder("ORDER-3", payment.SandboxPMSucceeds, "29.99"))
	assert.ErrorIs(t, err, ErrDuplicateReference)
	assert.Equal(t, int32(0), h.factory.charges)
}

func TestCreate_DeclineIsRecordedAndReplayed(t *testing.T) {
	h := newCheckoutHarness(t, "stripe")
	ctx := context.Background()
	req := stripeOrder("ORDER-4", payment.SandboxPMDeclined, "29.99")

	_, err := h.svc.Create(ctx, req)
	var declined *payment.DeclinedError
	require.ErrorAs(t, err, &declined)
	assert.Equal(t, "Your card was declined.", declined.Message)
	assert.Equal(t, "FAILED", h.payments.get("ORDER-4").Status)

	_, err = h.svc.Create(ctx, req)
	require.ErrorAs(t, err, &declined)
	assert.Equal(t, int32(1), h.factory.charges)
}

func TestCreate_StripeRequiresActionSettlesThroughStatus(t *testing.T) {
	h := newCheckoutHarness(t, "stripe")
	ctx := context.Background()

	resp, err := h.svc.Create(ctx, stripeOrder("ORDER-5", payment.SandboxPMRequires3DS, "29.99"))
	require.NoError(t, err)
	assert.Equal(t, payment.StripeRequiresAction, resp.Status)
	assert.NotEmpty(t, resp.ClientSecret)
	assert.Equal(t, "PENDING", h.payments.get("ORDER-5").Status)

	st, err := h.svc.Status(ctx, "ORDER-5")
	require.NoError(t, err)
	assert.Equal(t, "PENDING", st.Status)

	st, err = h.svc.Status(ctx, "ORDER-5")
	require.NoError(t, err)
	assert.Equal(t, "PAID", st.Status)

	st, err = h.svc.Status(ctx, "ORDER-5")
	require.NoError(t, err)
	assert.Equal(t, "PAID", st.Status)
	assert.Equal(t, int32(2), h.factory.checks, "settled references are answered from the record")
}

func TestCreate_SumUpChallengeAndCouponRedeemedOnce(t *testing.T) {
	h := newCheckoutHarness(t, "sumup")
	ctx := context.Background()
	issued, err := h.coupons.Issue(ctx, "ada@example.com", "+353871234567")
	require.NoError(t, err)

	req := sumupOrder("ORDER-6", payment.SandboxCardRequires3DS, "24.99")
	req.PackageID = "1year"
	req.CouponCode = issued.CouponCode

	resp, err := h.svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", resp.Status)
	require.NotNil(t, resp.NextAction)
	assert.Equal(t, "POST", resp.NextAction.Method)

	for i := 0; i < 4; i++ {
		_, err := h.svc.Status(ctx, "ORDER-6")
		require.NoError(t, err)
	}
	assert.Equal(t, "PAID", h.payments.get("ORDER-6").Status)
	assert.True(t, h.payments.get("ORDER-6").CouponRedeemed)

	_, err = h.coupons.Validate(ctx, issued.CouponCode)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestCreate_SumUpImmediateFailure(t *testing.T) {
	h := newCheckoutHarness(t, "sumup")
	resp, err := h.svc.Create(context.Background(), sumupOrder("ORDER-7", payment.SandboxCardDeclined, "29.99"))
	require.NoError(t, err)
	assert.Equal(t, "FAILED", resp.Status)
	assert.Nil(t, resp.NextAction)
}

func TestCreate_AmountMustMatchQuote(t *testing.T) {
	h := newCheckoutHarness(t, "stripe")
	ctx := context.Background()

	req := stripeOrder("ORDER-8", payment.SandboxPMSucceeds, "19.99")
	req.PackageID = "1year"
	_, err := h.svc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrAmountMismatch)

	req = stripeOrder("ORDER-9", payment.SandboxPMSucceeds, "34.98")
	req.PackageID = "1year"
	req.AddOns = []string{"adult", "adult"}
	_, err = h.svc.Create(ctx, req)
	assert.NoError(t, err)
}

func TestCreate_RejectsBeforeCharging(t *testing.T) {
	h := newCheckoutHarness(t, "stripe")
	ctx := context.Background()

	cases := map[string]checkout.SubmitRequest{
		"below minimum": stripeOrder("ORDER-10", payment.SandboxPMSucceeds, "0.99"),
		"no reference":  stripeOrder("", payment.SandboxPMSucceeds, "29.99"),
		"no method":     stripeOrder("ORDER-11", "", "29.99"),
	}
	bad := stripeOrder("ORDER-12", payment.SandboxPMSucceeds, "29.99")
	bad.ClientIdentity.Email = "nope"
	cases["bad contact"] = bad
	usd := stripeOrder("ORDER-13", payment.SandboxPMSucceeds, "29.99")
	usd.Currency = "USD"
	cases["currency"] = usd

	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.Create(ctx, req)
			var in *InputError
			assert.ErrorAs(t, err, &in)
		})
	}
	assert.Equal(t, int32(0), h.factory.charges)
}

func TestCreate_ExpiredCouponRejected(t *testing.T) {
	h := newCheckoutHarness(t, "stripe")
	ctx := context.Background()
	issued, err := h.coupons.Issue(ctx, "ada@example.com", "+353871234567")
	require.NoError(t, err)
	h.coupons.now = func() time.Time { return issued.ValidUntil.Add(time.Minute) }

	req := stripeOrder("ORDER-14", payment.SandboxPMSucceeds, "24.99")
	req.CouponCode = issued.CouponCode
	_, err = h.svc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestCreate_Disabled(t *testing.T) {
	h := newCheckoutHarness(t, "stripe")
	h.configs.cfg.IsEnabled = false
	_, err := h.svc.Create(context.Background(), stripeOrder("ORDER-15", payment.SandboxPMSucceeds, "29.99"))
	assert.ErrorIs(t, err, ErrPaymentsDisabled)
}

func TestCreate_MissingCredentialsReleasesClaim(t *testing.T) {
	h := newCheckoutHarness(t, "stripe")
	h.configs.cfg.StripeSecretKey = ""
	h.svc.gateways = payment.NewFactory(payment.FactoryConfig{StripeBaseURL: "http://127.0.0.1:0"}, nil, nil)
	ctx := context.Background()

	_, err := h.svc.Create(ctx, stripeOrder("ORDER-16", payment.SandboxPMSucceeds, "29.99"))
	assert.ErrorIs(t, err, payment.ErrGatewayConfig)
	assert.Equal(t, "gateway_config", ErrorCode(err))

	_, ok, err := h.claims.Claim(ctx, "ORDER-16", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStatus_UnknownReference(t *testing.T) {
	h := newCheckoutHarness(t, "stripe")
	_, err := h.svc.Status(context.Background(), "ORDER-404")
	assert.ErrorIs(t, err, ErrUnknownReference)
}
