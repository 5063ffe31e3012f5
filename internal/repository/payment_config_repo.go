package repository

import (
	"context"
	"errors"

	"streamvault/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentConfigPatch carries a partial update. Nil fields keep their value.
type PaymentConfigPatch struct {
	Provider           *string `json:"provider"`
	IsEnabled          *bool   `json:"isEnabled"`
	StripePublicKey    *string `json:"stripePublicKey"`
	StripeSecretKey    *string `json:"stripeSecretKey"`
	SumUpMerchantEmail *string `json:"sumupMerchantEmail"`
	SumUpClientID      *string `json:"sumupClientId"`
	SumUpClientSecret  *string `json:"sumupClientSecret"`
}

// Apply merges p into c.
func (p PaymentConfigPatch) Apply(c *models.PaymentConfig) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.Provider, p.Provider)
	set(&c.StripePublicKey, p.StripePublicKey)
	set(&c.StripeSecretKey, p.StripeSecretKey)
	set(&c.SumUpMerchantEmail, p.SumUpMerchantEmail)
	set(&c.SumUpClientID, p.SumUpClientID)
	set(&c.SumUpClientSecret, p.SumUpClientSecret)
	if p.IsEnabled != nil {
		c.IsEnabled = *p.IsEnabled
	}
}

type PaymentConfigRepository struct {
	db *gorm.DB
}

func NewPaymentConfigRepository(db *gorm.DB) *PaymentConfigRepository {
	return &PaymentConfigRepository{db: db}
}

// Get returns the singleton row, or ErrNotFound before the first write.
func (r *PaymentConfigRepository) Get(ctx context.Context) (*models.PaymentConfig, error) {
	var c models.PaymentConfig
	err := r.db.WithContext(ctx).Order("id ASC").First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Update locks the singleton row, applies patch and saves it. The row is
// created with provider sumup, enabled, when none exists.
func (r *PaymentConfigRepository) Update(ctx context.Context, patch PaymentConfigPatch) (*models.PaymentConfig, error) {
	var out models.PaymentConfig
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Order("id ASC").First(&out).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			out = models.PaymentConfig{Provider: "sumup", IsEnabled: true}
		} else if err != nil {
			return err
		}
		patch.Apply(&out)
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Seed inserts the default row if the table is empty.
func (r *PaymentConfigRepository) Seed(ctx context.Context, def models.PaymentConfig) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PaymentConfig{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&def).Error
}
