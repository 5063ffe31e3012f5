package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Credentials is the secret half of the active provider configuration.
type Credentials struct {
	Provider           ProviderName
	StripeSecretKey    string
	SumUpClientID      string
	SumUpClientSecret  string
	SumUpMerchantEmail string
}

type FactoryConfig struct {
	StripeBaseURL string
	SumUpBaseURL  string
	SumUpTokenURL string
	Timeout       time.Duration
	// Sandbox swaps the real gateways for SandboxGateway.
	Sandbox bool
}

// Factory builds a breaker-guarded Gateway for the credentials captured on a
// request. Sandbox gateways are shared so their charge state survives across
// requests. The SumUp token source is kept for as long as the credentials
// stay the same.
type Factory struct {
	cfg      FactoryConfig
	breakers *Breakers
	sandbox  map[ProviderName]*SandboxGateway
	logger   *slog.Logger

	mu          sync.Mutex
	sumupKey    string
	sumupTokens oauth2.TokenSource
}

func NewFactory(cfg FactoryConfig, breakers *Breakers, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	if breakers == nil {
		breakers = NewBreakers(BreakerConfig{}, logger)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Factory{
		cfg:      cfg,
		breakers: breakers,
		sandbox: map[ProviderName]*SandboxGateway{
			ProviderStripe: NewSandboxGateway(ProviderStripe),
			ProviderSumUp:  NewSandboxGateway(ProviderSumUp),
		},
		logger: logger,
	}
}

func (f *Factory) Breakers() *Breakers { return f.breakers }

func (f *Factory) Gateway(ctx context.Context, creds Credentials) (Gateway, error) {
	if !creds.Provider.Valid() {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrGatewayConfig, creds.Provider)
	}
	if f.cfg.Sandbox {
		return f.breakers.Wrap(f.sandbox[creds.Provider]), nil
	}
	var (
		g   Gateway
		err error
	)
	switch creds.Provider {
	case ProviderStripe:
		g, err = NewStripeGateway(f.cfg.StripeBaseURL, creds.StripeSecretKey, f.cfg.Timeout, f.logger)
	case ProviderSumUp:
		sc := SumUpCredentials{
			ClientID:      creds.SumUpClientID,
			ClientSecret:  creds.SumUpClientSecret,
			MerchantEmail: creds.SumUpMerchantEmail,
			TokenURL:      f.cfg.SumUpTokenURL,
		}
		if sc.ClientID != "" && sc.ClientSecret != "" {
			sc.Tokens = f.sumupTokenSource(sc)
		}
		g, err = NewSumUpGateway(f.cfg.SumUpBaseURL, sc, f.cfg.Timeout, f.logger)
	}
	if err != nil {
		return nil, err
	}
	return f.breakers.Wrap(g), nil
}

// sumupTokenSource returns the shared token source for creds, replacing it
// when the client id or secret changed.
func (f *Factory) sumupTokenSource(creds SumUpCredentials) oauth2.TokenSource {
	secret := sha256.Sum256([]byte(creds.ClientSecret))
	key := creds.ClientID + "|" + hex.EncodeToString(secret[:])

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sumupTokens == nil || f.sumupKey != key {
		if f.sumupTokens != nil {
			f.logger.Info("sumup credentials changed, dropping cached token")
		}
		f.sumupKey = key
		f.sumupTokens = NewSumUpTokenSource(f.cfg.SumUpBaseURL, creds, f.cfg.Timeout)
	}
	return f.sumupTokens
}
