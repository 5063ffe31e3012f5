package repository

import (
	"context"
	"errors"

	"streamvault/internal/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrDuplicate  = errors.New("duplicate record")
	ErrNoUsesLeft = errors.New("no uses left")
)

type CouponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// Create inserts c. A unique index violation on code or claimant email
// surfaces as ErrDuplicate; the caller inspects which one via GetByEmail.
func (r *CouponRepository) Create(ctx context.Context, c *models.Coupon) error {
	err := r.db.WithContext(ctx).Create(c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CouponRepository) GetByEmail(ctx context.Context, email string) (*models.Coupon, error) {
	var c models.Coupon
	err := r.db.WithContext(ctx).Where("claimant_email = ?", email).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Redeem increments current_uses by one if a use remains and returns the
// updated row. Concurrent redeems for the last use: exactly one succeeds.
func (r *CouponRepository) Redeem(ctx context.Context, code string) (*models.Coupon, error) {
	var out models.Coupon
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Coupon{}).
			Where("code = ? AND current_uses < max_uses", code).
			UpdateColumn("current_uses", gorm.Expr("current_uses + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Coupon{}).Where("code = ?", code).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrNoUsesLeft
		}
		return tx.Where("code = ?", code).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
