package models

import (
	"errors"
	"time"

	"streamvault/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrCouponExpired      = errors.New("coupon has expired")
	ErrCouponExhausted    = errors.New("coupon has reached its usage limit")
	ErrCouponNotYetActive = errors.New("coupon is not active yet")
)

// Coupon is a single-claimant discount code. CurrentUses never exceeds MaxUses.
type Coupon struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Code          string          `gorm:"uniqueIndex;size:32;not null" json:"code"`
	DiscountType  string          `gorm:"size:20;not null" json:"discount_type"` // percentage | fixed
	DiscountValue decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"discount_value"`
	ValidFrom     time.Time       `gorm:"not null" json:"valid_from"`
	ValidUntil    time.Time       `gorm:"not null;index" json:"valid_until"`
	MaxUses       int             `gorm:"not null;default:1" json:"max_uses"`
	CurrentUses   int             `gorm:"not null;default:0" json:"current_uses"`
	ClaimantEmail string          `gorm:"uniqueIndex;size:255;not null" json:"claimant_email"`
	ClaimantPhone string          `gorm:"size:32" json:"claimant_phone"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Coupon) TableName() string { return "coupons" }

// State derives the lifecycle state at now. Expiry wins over exhaustion.
func (c *Coupon) State(now time.Time) string {
	switch {
	case now.After(c.ValidUntil):
		return domain.CouponExpired
	case c.CurrentUses >= c.MaxUses:
		return domain.CouponExhausted
	case c.CurrentUses == 0:
		return domain.CouponUnclaimed
	default:
		return domain.CouponActive
	}
}

// Check is the redemption rule: a pure function of the row and now.
func (c *Coupon) Check(now time.Time) error {
	switch c.State(now) {
	case domain.CouponExpired:
		return ErrCouponExpired
	case domain.CouponExhausted:
		return ErrCouponExhausted
	}
	if now.Before(c.ValidFrom) {
		return ErrCouponNotYetActive
	}
	return nil
}
