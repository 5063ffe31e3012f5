// Package idempotency claims checkout references in redis so a reference is
// charged at most once, and keeps the outcome for replay.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"streamvault/pkg/payment"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "checkout:ref:"

var (
	ErrNotFound = errors.New("idempotency record not found")
	// ErrInFlight means another request holds the claim and has not finished.
	ErrInFlight = errors.New("checkout reference is being processed")
)

// Record is what a finished checkout attempt left behind.
type Record struct {
	Reference    string                    `json:"reference"`
	Provider     payment.ProviderName      `json:"provider"`
	GatewayID    string                    `json:"gatewayId,omitempty"`
	Status       string                    `json:"status"`
	ClientSecret string                    `json:"clientSecret,omitempty"`
	NextStep     *payment.ThreeDSChallenge `json:"nextStep,omitempty"`
	ErrorCode    string                    `json:"errorCode,omitempty"`
	ErrorMessage string                    `json:"errorMessage,omitempty"`
	Done         bool                      `json:"done"`
	CreatedAt    time.Time                 `json:"createdAt"`
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// Claim takes ownership of ref. It returns the existing record and false when
// the reference was already claimed; a claim that is not Done yields ErrInFlight.
func (s *Store) Claim(ctx context.Context, ref string, at time.Time) (*Record, bool, error) {
	data, err := json.Marshal(Record{Reference: ref, CreatedAt: at})
	if err != nil {
		return nil, false, err
	}
	ok, err := s.client.SetNX(ctx, keyPrefix+ref, data, s.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx failed: %w", err)
	}
	if ok {
		return nil, true, nil
	}
	rec, err := s.Get(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	if !rec.Done {
		return rec, false, ErrInFlight
	}
	return rec, false, nil
}

// Complete stores the outcome of a claimed reference.
func (s *Store) Complete(ctx context.Context, rec Record) error {
	rec.Done = true
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, keyPrefix+rec.Reference, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Release drops a claim whose request never reached a gateway, so the client
// may retry with the same reference.
func (s *Store) Release(ctx context.Context, ref string) error {
	if err := s.client.Del(ctx, keyPrefix+ref).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, ref string) (*Record, error) {
	data, err := s.client.Get(ctx, keyPrefix+ref).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record failed: %w", err)
	}
	return &rec, nil
}
