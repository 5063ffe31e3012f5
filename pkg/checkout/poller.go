package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"streamvault/pkg/payment"
)

// Clock abstracts time for the poller.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// StatusFetcher reports the settlement of a checkout as PAID, FAILED or
// PENDING.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, reference string) (string, error)
}

// StatusFunc adapts a function to StatusFetcher.
type StatusFunc func(ctx context.Context, reference string) (string, error)

func (f StatusFunc) FetchStatus(ctx context.Context, reference string) (string, error) {
	return f(ctx, reference)
}

const (
	DefaultPollInterval   = 2 * time.Second
	DefaultPollAttempts   = 30
	DefaultRequestTimeout = 5 * time.Second
)

// Poller resolves a pending checkout by asking for its status on a fixed
// interval. Each attempt is one fetch followed by one wait; after
// MaxAttempts non-terminal answers it gives up without another request.
type Poller struct {
	Fetcher        StatusFetcher
	Clock          Clock
	Interval       time.Duration
	MaxAttempts    int
	RequestTimeout time.Duration
	Logger         *slog.Logger
	// OnAttempt, when set, sees every answer, including PENDING ones.
	OnAttempt func(attempt int, status string, err error)
}

func NewPoller(fetcher StatusFetcher, clock Clock, logger *slog.Logger) *Poller {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		Fetcher:        fetcher,
		Clock:          clock,
		Interval:       DefaultPollInterval,
		MaxAttempts:    DefaultPollAttempts,
		RequestTimeout: DefaultRequestTimeout,
		Logger:         logger,
	}
}

// Poll blocks until the checkout reaches PAID or FAILED, ctx is cancelled
// (ErrCancelled) or the attempts run out (ErrTimeout).
func (p *Poller) Poll(ctx context.Context, reference string) (string, error) {
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", ErrCancelled
		}
		status, err := p.fetch(ctx, reference)
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, status, err)
		}
		switch {
		case err != nil && ctx.Err() != nil:
			return "", ErrCancelled
		case err != nil:
			p.Logger.Warn("status poll failed", "reference", reference, "attempt", attempt, "error", err)
		case status == payment.StatusPaid || status == payment.StatusFailed:
			p.Logger.Info("checkout settled", "reference", reference, "status", status, "attempt", attempt)
			return status, nil
		}
		select {
		case <-ctx.Done():
			return "", ErrCancelled
		case <-p.Clock.After(p.Interval):
		}
	}
	p.Logger.Warn("status poll gave up", "reference", reference, "attempts", p.MaxAttempts)
	return "", ErrTimeout
}

func (p *Poller) fetch(ctx context.Context, reference string) (string, error) {
	rctx, cancel := context.WithTimeout(ctx, p.RequestTimeout)
	defer cancel()
	status, err := p.Fetcher.FetchStatus(rctx, reference)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		p.Logger.Debug("status request timed out", "reference", reference)
	}
	return status, err
}
