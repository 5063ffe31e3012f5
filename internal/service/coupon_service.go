package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"streamvault/internal/domain"
	"streamvault/internal/models"
	"streamvault/internal/repository"
	"streamvault/pkg/cardcapture"
	"streamvault/pkg/pricing"

	"github.com/shopspring/decimal"
)

const codeAttempts = 5

var welcomeDiscount = decimal.NewFromInt(5)

type CouponStore interface {
	Create(ctx context.Context, c *models.Coupon) error
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	GetByEmail(ctx context.Context, email string) (*models.Coupon, error)
	Redeem(ctx context.Context, code string) (*models.Coupon, error)
}

// CouponView is what validation discloses about a coupon.
type CouponView struct {
	DiscountType  pricing.DiscountType `json:"discountType"`
	DiscountValue decimal.Decimal      `json:"discountValue"`
	ValidUntil    time.Time            `json:"validUntil"`
}

func (v CouponView) Discount() pricing.Discount {
	return pricing.Discount{Type: v.DiscountType, Value: v.DiscountValue}
}

type IssuedCoupon struct {
	CouponCode string          `json:"couponCode"`
	Discount   decimal.Decimal `json:"discount"`
	ValidUntil time.Time       `json:"validUntil"`
}

type CouponService struct {
	repo    CouponStore
	now     func() time.Time
	newCode func() (string, error)
	logger  *slog.Logger
}

func NewCouponService(repo CouponStore, logger *slog.Logger) *CouponService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CouponService{
		repo:    repo,
		now:     time.Now,
		newCode: welcomeCode,
		logger:  logger.With("component", "coupons"),
	}
}

// Validate reports the discount behind code if it can be redeemed now.
func (s *CouponService) Validate(ctx context.Context, code string) (*CouponView, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, invalidInput("code", "Coupon code is required")
	}
	c, err := s.repo.GetByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := c.Check(s.now()); err != nil {
		return nil, couponError(err)
	}
	return &CouponView{
		DiscountType:  pricing.DiscountType(c.DiscountType),
		DiscountValue: c.DiscountValue,
		ValidUntil:    c.ValidUntil,
	}, nil
}

// Issue creates the welcome coupon for a claimant. One coupon per email.
func (s *CouponService) Issue(ctx context.Context, email, phone string) (*IssuedCoupon, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	phone = strings.TrimSpace(phone)
	if !cardcapture.ValidEmail(email) {
		return nil, invalidInput("email", "Please enter a valid email address")
	}
	if !cardcapture.ValidPhone(phone) {
		return nil, invalidInput("phone", "Please enter a valid phone number")
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrAlreadyClaimed
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	for i := 0; i < codeAttempts; i++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}
		c := &models.Coupon{
			Code:          code,
			DiscountType:  string(pricing.DiscountFixed),
			DiscountValue: welcomeDiscount,
			ValidFrom:     now,
			ValidUntil:    now.AddDate(0, 0, domain.WelcomeCouponDays),
			MaxUses:       domain.WelcomeCouponMaxUses,
			ClaimantEmail: email,
			ClaimantPhone: phone,
		}
		err = s.repo.Create(ctx, c)
		if err == nil {
			s.logger.Info("coupon issued", "code", code)
			return &IssuedCoupon{CouponCode: c.Code, Discount: c.DiscountValue, ValidUntil: c.ValidUntil}, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		// The email index may be what collided.
		if _, err := s.repo.GetByEmail(ctx, email); err == nil {
			return nil, ErrAlreadyClaimed
		}
		s.logger.Warn("coupon code collision, regenerating", "attempt", i+1)
	}
	return nil, ErrCodeUnavailable
}

// Redeem consumes one use of code.
func (s *CouponService) Redeem(ctx context.Context, code string) error {
	_, err := s.repo.Redeem(ctx, normalizeCode(code))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrNoUsesLeft):
		return ErrExhausted
	}
	return err
}

func couponError(err error) error {
	switch {
	case errors.Is(err, models.ErrCouponExpired):
		return ErrExpired
	case errors.Is(err, models.ErrCouponExhausted):
		return ErrExhausted
	case errors.Is(err, models.ErrCouponNotYetActive):
		return ErrNotYetActive
	}
	return err
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func welcomeCode() (string, error) {
	var b strings.Builder
	b.WriteString(domain.WelcomeCouponPrefix)
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < domain.WelcomeCouponCodeLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate coupon code: %w", err)
		}
		b.WriteByte(base36[n.Int64()])
	}
	return b.String(), nil
}
