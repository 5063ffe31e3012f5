package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

type BreakerConfig struct {
	// Failures is the consecutive failure count that opens a breaker.
	Failures uint32
	// Timeout is how long an open breaker waits before going half-open.
	Timeout time.Duration
}

// Breakers keeps one circuit breaker per provider. Breakers outlive the
// per-request gateways so failure counts carry across requests.
type Breakers struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	breakers map[ProviderName]*gobreaker.CircuitBreaker[*ChargeResult]
	logger   *slog.Logger
}

func NewBreakers(cfg BreakerConfig, logger *slog.Logger) *Breakers {
	if cfg.Failures == 0 {
		cfg.Failures = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Breakers{
		cfg:      cfg,
		breakers: make(map[ProviderName]*gobreaker.CircuitBreaker[*ChargeResult]),
		logger:   logger,
	}
}

func (b *Breakers) get(p ProviderName) *gobreaker.CircuitBreaker[*ChargeResult] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[p]; ok {
		return cb
	}
	settings := gobreaker.Settings{
		Name:        string(p),
		MaxRequests: 1,
		Timeout:     b.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.cfg.Failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("gateway circuit breaker state changed",
				"provider", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// a declined card or a rejected request says nothing about gateway health
		IsSuccessful: func(err error) bool {
			var declined *DeclinedError
			return err == nil || errors.As(err, &declined) || errors.Is(err, ErrInvalidRequest)
		},
	}
	cb := gobreaker.NewCircuitBreaker[*ChargeResult](settings)
	b.breakers[p] = cb
	return cb
}

// State reports the breaker state for a provider, "closed" if none exists yet.
func (b *Breakers) State(p ProviderName) string {
	b.mu.Lock()
	cb, ok := b.breakers[p]
	b.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return cb.State().String()
}

// Wrap returns g with every call routed through its provider's breaker.
func (b *Breakers) Wrap(g Gateway) Gateway {
	return &guardedGateway{inner: g, cb: b.get(g.Provider())}
}

type guardedGateway struct {
	inner Gateway
	cb    *gobreaker.CircuitBreaker[*ChargeResult]
}

func (g *guardedGateway) Provider() ProviderName { return g.inner.Provider() }

func (g *guardedGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	res, err := g.cb.Execute(func() (*ChargeResult, error) {
		return g.inner.CreateCharge(ctx, req)
	})
	return res, unavailable(err)
}

func (g *guardedGateway) ChargeStatus(ctx context.Context, gatewayID string) (*ChargeResult, error) {
	res, err := g.cb.Execute(func() (*ChargeResult, error) {
		return g.inner.ChargeStatus(ctx, gatewayID)
	})
	return res, unavailable(err)
}

func unavailable(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
