package models

import (
	"testing"
	"time"

	"streamvault/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func welcome(now time.Time) Coupon {
	return Coupon{
		Code:          "WELCOME5-AB12CD",
		DiscountType:  "fixed",
		DiscountValue: decimal.NewFromInt(5),
		ValidFrom:     now,
		ValidUntil:    now.AddDate(0, 0, 30),
		MaxUses:       1,
	}
}

func TestCouponCheck_ValidThenExpired(t *testing.T) {
	issued := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	c := welcome(issued)

	assert.NoError(t, c.Check(c.ValidUntil.Add(-time.Second)))
	assert.ErrorIs(t, c.Check(c.ValidUntil.Add(time.Second)), ErrCouponExpired)
	assert.NoError(t, c.Check(c.ValidUntil.Add(-time.Second)), "same row, same answer")
}

func TestCouponCheck_ExhaustedRegardlessOfDiscount(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	for _, typ := range []string{"fixed", "percentage"} {
		for _, v := range []string{"0", "5", "100"} {
			c := welcome(now)
			c.DiscountType = typ
			c.DiscountValue = decimal.RequireFromString(v)
			c.CurrentUses = c.MaxUses
			assert.ErrorIs(t, c.Check(now.Add(time.Hour)), ErrCouponExhausted, "%s %s", typ, v)
		}
	}
}

func TestCouponCheck_NotYetActive(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	c := welcome(now.Add(time.Hour))
	assert.ErrorIs(t, c.Check(now), ErrCouponNotYetActive)
}

func TestCouponState(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	c := welcome(now)
	c.MaxUses = 3
	assert.Equal(t, domain.CouponUnclaimed, c.State(now))

	c.CurrentUses = 1
	assert.Equal(t, domain.CouponActive, c.State(now))

	c.CurrentUses = 3
	assert.Equal(t, domain.CouponExhausted, c.State(now))

	assert.Equal(t, domain.CouponExpired, c.State(c.ValidUntil.Add(time.Minute)))
}

func TestPaymentConfigPublicKey(t *testing.T) {
	cfg := PaymentConfig{Provider: "stripe", StripePublicKey: "pk_live", StripeSecretKey: "sk_live", SumUpClientID: "cid"}
	assert.Equal(t, "pk_live", cfg.PublicKey())
	cfg.Provider = "sumup"
	assert.Equal(t, "cid", cfg.PublicKey())
}
