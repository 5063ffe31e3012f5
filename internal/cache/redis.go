package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"streamvault/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	paymentConfigKey = "payment:config"
	countryKeyPrefix = "geo:country:"
)

// ConfigCache fronts the payment_configs singleton. Entries expire after ttl
// and are dropped on every admin update.
type ConfigCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewConfigCache(client *redis.Client, ttl time.Duration) *ConfigCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ConfigCache{client: client, ttl: ttl}
}

func (c *ConfigCache) Get(ctx context.Context) (*models.PaymentConfig, error) {
	data, err := c.client.Get(ctx, paymentConfigKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var cfg models.PaymentConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal payment config failed: %w", err)
	}
	return &cfg, nil
}

func (c *ConfigCache) Set(ctx context.Context, cfg *models.PaymentConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal payment config failed: %w", err)
	}
	if err := c.client.Set(ctx, paymentConfigKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *ConfigCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, paymentConfigKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// CountryCache remembers IP to country lookups.
type CountryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCountryCache(client *redis.Client, ttl time.Duration) *CountryCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CountryCache{client: client, ttl: ttl}
}

func (c *CountryCache) Get(ctx context.Context, ip string) (string, error) {
	code, err := c.client.Get(ctx, countryKeyPrefix+ip).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return code, nil
}

func (c *CountryCache) Set(ctx context.Context, ip, code string) error {
	if err := c.client.Set(ctx, countryKeyPrefix+ip, code, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
