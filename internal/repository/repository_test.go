package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"streamvault/internal/domain"
	"streamvault/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "streamvault.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// sqlite has a single writer; transactions queue on the pool
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Coupon{}, &models.PaymentConfig{}, &models.Payment{}))
	return db
}

func testCoupon(code, email string, maxUses int) *models.Coupon {
	now := time.Now().UTC()
	return &models.Coupon{
		Code:          code,
		DiscountType:  "fixed",
		DiscountValue: decimal.NewFromInt(5),
		ValidFrom:     now.Add(-time.Hour),
		ValidUntil:    now.AddDate(0, 0, 30),
		MaxUses:       maxUses,
		ClaimantEmail: email,
	}
}

func TestCouponRepository_RedeemLastUseIsExclusive(t *testing.T) {
	repo := NewCouponRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, testCoupon("WELCOME5-AAAAAA", "ada@example.com", 1)))

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, left int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Redeem(ctx, "WELCOME5-AAAAAA")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrNoUsesLeft):
				left++
			default:
				t.Errorf("redeem: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, left)
	c, err := repo.GetByCode(ctx, "WELCOME5-AAAAAA")
	require.NoError(t, err)
	assert.Equal(t, 1, c.CurrentUses)
}

func TestCouponRepository_RedeemCountsUp(t *testing.T) {
	repo := NewCouponRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, testCoupon("MULTI-1", "bob@example.com", 2)))

	c, err := repo.Redeem(ctx, "MULTI-1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.CurrentUses)
	c, err = repo.Redeem(ctx, "MULTI-1")
	require.NoError(t, err)
	assert.Equal(t, 2, c.CurrentUses)

	_, err = repo.Redeem(ctx, "MULTI-1")
	assert.ErrorIs(t, err, ErrNoUsesLeft)
	_, err = repo.Redeem(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCouponRepository_Lookups(t *testing.T) {
	repo := NewCouponRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, testCoupon("WELCOME5-BBBBBB", "cy@example.com", 1)))

	c, err := repo.GetByEmail(ctx, "cy@example.com")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME5-BBBBBB", c.Code)
	assert.True(t, c.DiscountValue.Equal(decimal.NewFromInt(5)))

	_, err = repo.GetByCode(ctx, "WELCOME5-ZZZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentConfigRepository_PartialUpdate(t *testing.T) {
	repo := NewPaymentConfigRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.Get(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	pk, sk := "pk_test_1", "sk_test_1"
	cfg, err := repo.Update(ctx, PaymentConfigPatch{StripePublicKey: &pk, StripeSecretKey: &sk})
	require.NoError(t, err)
	assert.Equal(t, "sumup", cfg.Provider)
	assert.True(t, cfg.IsEnabled)

	provider, disabled := "stripe", false
	_, err = repo.Update(ctx, PaymentConfigPatch{Provider: &provider})
	require.NoError(t, err)
	_, err = repo.Update(ctx, PaymentConfigPatch{IsEnabled: &disabled})
	require.NoError(t, err)

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, got.ID, "still the singleton row")
	assert.Equal(t, "stripe", got.Provider)
	assert.False(t, got.IsEnabled)
	assert.Equal(t, "pk_test_1", got.StripePublicKey)
	assert.Equal(t, "sk_test_1", got.StripeSecretKey)

	var rows int64
	require.NoError(t, repo.db.Model(&models.PaymentConfig{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestPaymentConfigRepository_SeedOnlyWhenEmpty(t *testing.T) {
	repo := NewPaymentConfigRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Seed(ctx, models.PaymentConfig{Provider: "sumup", IsEnabled: true}))
	require.NoError(t, repo.Seed(ctx, models.PaymentConfig{Provider: "stripe", IsEnabled: true}))
	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sumup", got.Provider)
}

func TestPaymentRepository_StatusAndCouponOnce(t *testing.T) {
	repo := NewPaymentRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &models.Payment{
		Reference:  "ORDER-1",
		Provider:   "sumup",
		Amount:     decimal.RequireFromString("24.99"),
		Currency:   "EUR",
		Status:     domain.PaymentStatusPending,
		CouponCode: "WELCOME5-AAAAAA",
	}))

	require.NoError(t, repo.UpdateStatus(ctx, "ORDER-1", StatusUpdate{GatewayID: "chk_1", Status: domain.PaymentStatusPending, GatewayStatus: "PENDING"}))
	p, err := repo.GetByReference(ctx, "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "chk_1", p.GatewayID)
	assert.Nil(t, p.CompletedAt)

	require.NoError(t, repo.UpdateStatus(ctx, "ORDER-1", StatusUpdate{Status: domain.PaymentStatusPaid, GatewayStatus: "PAID", At: time.Now().UTC()}))
	p, err = repo.GetByReference(ctx, "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, p.Status)
	assert.Equal(t, "chk_1", p.GatewayID, "empty gateway id keeps the stored one")
	assert.NotNil(t, p.CompletedAt)

	first, err := repo.MarkCouponRedeemed(ctx, "ORDER-1")
	require.NoError(t, err)
	assert.True(t, first)
	again, err := repo.MarkCouponRedeemed(ctx, "ORDER-1")
	require.NoError(t, err)
	assert.False(t, again)

	_, err = repo.GetByReference(ctx, "ORDER-2")
	assert.ErrorIs(t, err, ErrNotFound)
}
