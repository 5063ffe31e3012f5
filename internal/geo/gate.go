// Package geo resolves a client's country and decides whether checkout is
// offered there.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"streamvault/config"
	"streamvault/internal/cache"
)

type Verdict struct {
	Blocked     bool   `json:"blocked"`
	CountryCode string `json:"country"`
}

// CountryCache stores resolved countries by IP.
type CountryCache interface {
	Get(ctx context.Context, ip string) (string, error)
	Set(ctx context.Context, ip, code string) error
}

type Gate struct {
	blocked     map[string]bool
	testCountry string
	trustHint   bool
	lookupURL   string
	http        *http.Client
	cache       CountryCache
	logger      *slog.Logger
}

// NewGate builds a gate from config. TEST_COUNTRY only applies outside
// production.
func NewGate(cfg *config.Config, c CountryCache, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		blocked:   make(map[string]bool, len(cfg.Geo.BlockedCountries)),
		trustHint: cfg.Geo.TrustEdgeHeader,
		lookupURL: cfg.Geo.LookupURL,
		http:      &http.Client{Timeout: 3 * time.Second},
		cache:     c,
		logger:    logger.With("component", "geo"),
	}
	for _, code := range cfg.Geo.BlockedCountries {
		g.blocked[strings.ToUpper(strings.TrimSpace(code))] = true
	}
	if !cfg.IsProduction() {
		g.testCountry = strings.ToUpper(cfg.Geo.TestCountry)
	}
	return g
}

// IsBlocked resolves the country of ip. hint is an edge-provided country
// header; it wins over a lookup only when the edge is trusted. An unknown
// country is never blocked.
func (g *Gate) IsBlocked(ctx context.Context, ip, hint string) (Verdict, error) {
	code, err := g.country(ctx, ip, hint)
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{Blocked: code != "" && g.blocked[code], CountryCode: code}, nil
}

func (g *Gate) country(ctx context.Context, ip, hint string) (string, error) {
	if g.testCountry != "" {
		return g.testCountry, nil
	}
	if hint = strings.ToUpper(strings.TrimSpace(hint)); g.trustHint && len(hint) == 2 && hint != "XX" {
		return hint, nil
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil || addr.IsLoopback() || addr.IsPrivate() || g.lookupURL == "" {
		return "", nil
	}
	if g.cache != nil {
		code, err := g.cache.Get(ctx, ip)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			g.logger.Warn("country cache read failed", "error", err)
		}
	}
	code, err := g.lookup(ctx, ip)
	if err != nil {
		return "", err
	}
	if g.cache != nil {
		if err := g.cache.Set(ctx, ip, code); err != nil {
			g.logger.Warn("country cache write failed", "error", err)
		}
	}
	return code, nil
}

func (g *Gate) lookup(ctx context.Context, ip string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(g.lookupURL, ip), nil)
	if err != nil {
		return "", err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("country lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("country lookup: status %d", resp.StatusCode)
	}
	var body struct {
		CountryCode string `json:"countryCode"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("country lookup: %w", err)
	}
	return strings.ToUpper(body.CountryCode), nil
}
