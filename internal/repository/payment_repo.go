package repository

import (
	"context"
	"errors"
	"time"

	"streamvault/internal/domain"
	"streamvault/internal/models"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *PaymentRepository) GetByReference(ctx context.Context, ref string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).Where("reference = ?", ref).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// StatusUpdate is the latest gateway answer for a reference.
type StatusUpdate struct {
	GatewayID     string
	Status        string
	GatewayStatus string
	At            time.Time
}

// UpdateStatus records the latest settlement. CompletedAt is set once, on the
// first terminal status.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, ref string, u StatusUpdate) error {
	updates := map[string]any{
		"status":         u.Status,
		"gateway_status": u.GatewayStatus,
	}
	if u.GatewayID != "" {
		updates["gateway_id"] = u.GatewayID
	}
	if u.Status != domain.PaymentStatusPending {
		updates["completed_at"] = gorm.Expr("COALESCE(completed_at, ?)", u.At)
	}
	return r.db.WithContext(ctx).Model(&models.Payment{}).Where("reference = ?", ref).Updates(updates).Error
}

// MarkCouponRedeemed flips coupon_redeemed and reports whether this call did
// it, so a coupon is redeemed at most once per payment.
func (r *PaymentRepository) MarkCouponRedeemed(ctx context.Context, ref string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("reference = ? AND coupon_redeemed = ?", ref, false).
		UpdateColumn("coupon_redeemed", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
