package cache

import (
	"context"
	"testing"
	"time"

	"streamvault/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestConfigCache_MissThenHit(t *testing.T) {
	client, _ := setupTestRedis(t)
	c := NewConfigCache(client, time.Minute)
	ctx := context.Background()

	_, err := c.Get(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, &models.PaymentConfig{ID: 1, Provider: "stripe", IsEnabled: true, StripePublicKey: "pk_test"}))

	got, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stripe", got.Provider)
	assert.Equal(t, "pk_test", got.StripePublicKey)
	assert.True(t, got.IsEnabled)
}

func TestConfigCache_Expires(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewConfigCache(client, 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &models.PaymentConfig{Provider: "sumup"}))
	mr.FastForward(5*time.Minute + time.Second)

	_, err := c.Get(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestConfigCache_Invalidate(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewConfigCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &models.PaymentConfig{Provider: "sumup"}))
	require.NoError(t, c.Invalidate(ctx))
	assert.False(t, mr.Exists(paymentConfigKey))
}

func TestConfigCache_CorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewConfigCache(client, time.Minute)
	require.NoError(t, mr.Set(paymentConfigKey, "{not json"))

	_, err := c.Get(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestCountryCache(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewCountryCache(client, time.Hour)
	ctx := context.Background()

	_, err := c.Get(ctx, "203.0.113.7")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "203.0.113.7", "IE"))
	got, err := c.Get(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, "IE", got)

	mr.FastForward(2 * time.Hour)
	_, err = c.Get(ctx, "203.0.113.7")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
