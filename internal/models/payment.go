package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment is the durable record of one checkout reference.
type Payment struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Reference       string          `gorm:"uniqueIndex;size:64;not null" json:"reference"`
	Provider        string          `gorm:"size:20;not null" json:"provider"`
	GatewayID       string          `gorm:"size:255;index" json:"gateway_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency        string          `gorm:"size:3;not null;default:'EUR'" json:"currency"`
	Status          string          `gorm:"size:20;not null;index" json:"status"` // PENDING, PAID, FAILED
	GatewayStatus   string          `gorm:"size:40" json:"gateway_status"`
	Description     string          `gorm:"size:255" json:"description"`
	CustomerEmail   string          `gorm:"size:255;index" json:"customer_email"`
	CustomerCountry string          `gorm:"size:2" json:"customer_country"`
	CouponCode      string          `gorm:"size:32" json:"coupon_code,omitempty"`
	CouponRedeemed  bool            `gorm:"not null;default:false" json:"coupon_redeemed"`
	CompletedAt     *time.Time      `json:"completed_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Payment) TableName() string {
	return "payments"
}
