package service

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"streamvault/internal/models"
	"streamvault/pkg/pricing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCouponService(repo CouponStore, now time.Time) *CouponService {
	s := NewCouponService(repo, nil)
	s.now = func() time.Time { return now }
	return s
}

func TestIssue_WelcomeCoupon(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeCoupons()
	s := newCouponService(repo, now)

	got, err := s.Issue(context.Background(), "Ada@Example.com", "+353 87 123 4567")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^WELCOME5-[0-9A-Z]{6}$`), got.CouponCode)
	assert.True(t, got.Discount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, now.AddDate(0, 0, 30), got.ValidUntil)

	stored, err := repo.GetByCode(context.Background(), got.CouponCode)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", stored.ClaimantEmail)
	assert.Equal(t, 0, stored.CurrentUses)
	assert.Equal(t, 1, stored.MaxUses)
	assert.Equal(t, "fixed", stored.DiscountType)
}

func TestIssue_AlreadyClaimed(t *testing.T) {
	s := newCouponService(newFakeCoupons(), time.Now())
	ctx := context.Background()

	_, err := s.Issue(ctx, "ada@example.com", "+353871234567")
	require.NoError(t, err)

	_, err = s.Issue(ctx, "ADA@example.com ", "+353871234567")
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestIssue_RejectsBadInput(t *testing.T) {
	s := newCouponService(newFakeCoupons(), time.Now())
	ctx := context.Background()

	_, err := s.Issue(ctx, "not-an-email", "+353871234567")
	var in *InputError
	require.ErrorAs(t, err, &in)
	assert.Equal(t, "email", in.Field)

	_, err = s.Issue(ctx, "ada@example.com", "12345")
	require.ErrorAs(t, err, &in)
	assert.Equal(t, "phone", in.Field)
}

func TestIssue_RegeneratesOnCodeCollision(t *testing.T) {
	repo := newFakeCoupons()
	now := time.Now()
	require.NoError(t, repo.Create(context.Background(), &models.Coupon{
		Code: "WELCOME5-AAAAAA", ClaimantEmail: "grace@example.com", MaxUses: 1,
		ValidFrom: now, ValidUntil: now.Add(time.Hour),
	}))
	s := newCouponService(repo, now)
	codes := []string{"WELCOME5-AAAAAA", "WELCOME5-AAAAAA", "WELCOME5-BBBBBB"}
	s.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	got, err := s.Issue(context.Background(), "ada@example.com", "+353871234567")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME5-BBBBBB", got.CouponCode)
}

func TestIssue_GivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := newFakeCoupons()
	now := time.Now()
	require.NoError(t, repo.Create(context.Background(), &models.Coupon{
		Code: "WELCOME5-AAAAAA", ClaimantEmail: "grace@example.com", MaxUses: 1,
		ValidFrom: now, ValidUntil: now.Add(time.Hour),
	}))
	s := newCouponService(repo, now)
	calls := 0
	s.newCode = func() (string, error) {
		calls++
		return "WELCOME5-AAAAAA", nil
	}

	_, err := s.Issue(context.Background(), "ada@example.com", "+353871234567")
	assert.ErrorIs(t, err, ErrCodeUnavailable)
	assert.Equal(t, codeAttempts, calls)
}

func TestValidate(t *testing.T) {
	issued := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeCoupons()
	s := newCouponService(repo, issued)
	ctx := context.Background()

	c, err := s.Issue(ctx, "ada@example.com", "+353871234567")
	require.NoError(t, err)

	view, err := s.Validate(ctx, " "+strings.ToLower(c.CouponCode)+" ")
	require.NoError(t, err)
	assert.Equal(t, pricing.DiscountFixed, view.DiscountType)
	assert.True(t, view.DiscountValue.Equal(decimal.NewFromInt(5)))

	_, err = s.Validate(ctx, "WELCOME5-ZZZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)

	s.now = func() time.Time { return c.ValidUntil.Add(time.Second) }
	_, err = s.Validate(ctx, c.CouponCode)
	assert.ErrorIs(t, err, ErrExpired)

	s.now = func() time.Time { return issued.Add(time.Hour) }
	require.NoError(t, s.Redeem(ctx, c.CouponCode))
	_, err = s.Validate(ctx, c.CouponCode)
	assert.ErrorIs(t, err, ErrExhausted)

	_, err = s.Validate(ctx, "  ")
	var in *InputError
	assert.ErrorAs(t, err, &in)
}

func TestRedeem_LastUseIsExclusive(t *testing.T) {
	repo := newFakeCoupons()
	s := newCouponService(repo, time.Now())
	ctx := context.Background()
	c, err := s.Issue(ctx, "ada@example.com", "+353871234567")
	require.NoError(t, err)

	var ok, exhausted int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := s.Redeem(ctx, c.CouponCode); err {
			case nil:
				atomic.AddInt32(&ok, 1)
			case ErrExhausted:
				atomic.AddInt32(&exhausted, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(7), exhausted)

	assert.ErrorIs(t, s.Redeem(ctx, "WELCOME5-NOPE00"), ErrNotFound)
}

func TestWelcomeCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := welcomeCode()
		require.NoError(t, err)
		assert.Regexp(t, `^WELCOME5-[0-9A-Z]{6}$`, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}

