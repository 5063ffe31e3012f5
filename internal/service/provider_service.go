package service

import (
	"context"
	"errors"
	"log/slog"

	"streamvault/internal/cache"
	"streamvault/internal/models"
	"streamvault/internal/repository"
	"streamvault/pkg/checkout"
	"streamvault/pkg/payment"
)

type ConfigStore interface {
	Get(ctx context.Context) (*models.PaymentConfig, error)
	Update(ctx context.Context, patch repository.PaymentConfigPatch) (*models.PaymentConfig, error)
}

type ConfigCache interface {
	Get(ctx context.Context) (*models.PaymentConfig, error)
	Set(ctx context.Context, cfg *models.PaymentConfig) error
	Invalidate(ctx context.Context) error
}

// ProviderService selects the active gateway. Callers load the config once
// per request and pass the value down.
type ProviderService struct {
	repo   ConfigStore
	cache  ConfigCache
	logger *slog.Logger
}

func NewProviderService(repo ConfigStore, c ConfigCache, logger *slog.Logger) *ProviderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderService{repo: repo, cache: c, logger: logger.With("component", "provider_config")}
}

// Load reads through the cache. A missing row yields the defaults the row
// would be created with.
func (s *ProviderService) Load(ctx context.Context) (models.PaymentConfig, error) {
	if s.cache != nil {
		cfg, err := s.cache.Get(ctx)
		if err == nil {
			return *cfg, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("config cache read failed", "error", err)
		}
	}
	cfg, err := s.repo.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return models.PaymentConfig{Provider: string(payment.ProviderSumUp), IsEnabled: true}, nil
	}
	if err != nil {
		return models.PaymentConfig{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cfg); err != nil {
			s.logger.Warn("config cache write failed", "error", err)
		}
	}
	return *cfg, nil
}

func (s *ProviderService) Public(ctx context.Context) (checkout.PublicConfig, error) {
	cfg, err := s.Load(ctx)
	if err != nil {
		return checkout.PublicConfig{}, err
	}
	return PublicView(cfg), nil
}

func PublicView(cfg models.PaymentConfig) checkout.PublicConfig {
	return checkout.PublicConfig{
		Provider:  payment.ProviderName(cfg.Provider),
		IsEnabled: cfg.IsEnabled,
		PublicKey: cfg.PublicKey(),
	}
}

// Private returns the full record, secrets included. Admin only.
func (s *ProviderService) Private(ctx context.Context) (*models.PaymentConfig, error) {
	cfg, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *ProviderService) Update(ctx context.Context, patch repository.PaymentConfigPatch) (*models.PaymentConfig, error) {
	if patch.Provider != nil && !payment.ProviderName(*patch.Provider).Valid() {
		return nil, invalidInput("provider", "provider must be stripe or sumup")
	}
	cfg, err := s.repo.Update(ctx, patch)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Error("config cache invalidation failed", "error", err)
		}
	}
	s.logger.Info("payment config updated", "provider", cfg.Provider, "enabled", cfg.IsEnabled)
	return cfg, nil
}

// Credentials extracts the secret half for provider p from cfg.
func Credentials(cfg models.PaymentConfig, p payment.ProviderName) payment.Credentials {
	return payment.Credentials{
		Provider:           p,
		StripeSecretKey:    cfg.StripeSecretKey,
		SumUpClientID:      cfg.SumUpClientID,
		SumUpClientSecret:  cfg.SumUpClientSecret,
		SumUpMerchantEmail: cfg.SumUpMerchantEmail,
	}
}
