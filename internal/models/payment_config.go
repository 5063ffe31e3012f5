package models

import (
	"time"
)

// PaymentConfig is the singleton row selecting the active gateway and holding
// its credentials. Only the public key half is ever sent to clients.
type PaymentConfig struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Provider           string    `gorm:"size:20;not null;default:'sumup'" json:"provider"`
	IsEnabled          bool      `gorm:"not null;default:true" json:"isEnabled"`
	StripePublicKey    string    `gorm:"size:255" json:"stripePublicKey"`
	StripeSecretKey    string    `gorm:"size:255" json:"stripeSecretKey"`
	SumUpMerchantEmail string    `gorm:"size:255" json:"sumupMerchantEmail"`
	SumUpClientID      string    `gorm:"size:255" json:"sumupClientId"`
	SumUpClientSecret  string    `gorm:"size:255" json:"sumupClientSecret"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (PaymentConfig) TableName() string { return "payment_configs" }

// PublicKey is the client-safe identifier for the active provider.
func (c *PaymentConfig) PublicKey() string {
	if c.Provider == "stripe" {
		return c.StripePublicKey
	}
	return c.SumUpClientID
}
