package database

import (
	"context"

	"streamvault/config"
	"streamvault/internal/models"
	"streamvault/internal/repository"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Coupon{},
		&models.PaymentConfig{},
		&models.Payment{},
	)
}

// SeedPaymentConfig creates the singleton provider row on an empty database.
func SeedPaymentConfig(ctx context.Context, db *gorm.DB) error {
	return repository.NewPaymentConfigRepository(db).Seed(ctx, models.PaymentConfig{
		Provider:  "sumup",
		IsEnabled: true,
	})
}
