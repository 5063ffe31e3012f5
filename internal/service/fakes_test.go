package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"streamvault/internal/domain"
	"streamvault/internal/idempotency"
	"streamvault/internal/models"
	"streamvault/internal/repository"
	"streamvault/pkg/payment"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

type fakeCoupons struct {
	mu     sync.Mutex
	byCode map[string]*models.Coupon
}

func newFakeCoupons() *fakeCoupons {
	return &fakeCoupons{byCode: make(map[string]*models.Coupon)}
}

func (f *fakeCoupons) Create(ctx context.Context, c *models.Coupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byCode[c.Code]; ok {
		return repository.ErrDuplicate
	}
	for _, existing := range f.byCode {
		if existing.ClaimantEmail == c.ClaimantEmail {
			return repository.ErrDuplicate
		}
	}
	cp := *c
	f.byCode[c.Code] = &cp
	return nil
}

func (f *fakeCoupons) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byCode[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCoupons) GetByEmail(ctx context.Context, email string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byCode {
		if c.ClaimantEmail == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCoupons) Redeem(ctx context.Context, code string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byCode[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if c.CurrentUses >= c.MaxUses {
		return nil, repository.ErrNoUsesLeft
	}
	c.CurrentUses++
	cp := *c
	return &cp, nil
}

type fakeConfigs struct {
	mu    sync.Mutex
	cfg   *models.PaymentConfig
	reads int
}

func (f *fakeConfigs) Get(ctx context.Context) (*models.PaymentConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.cfg == nil {
		return nil, repository.ErrNotFound
	}
	cp := *f.cfg
	return &cp, nil
}

func (f *fakeConfigs) Update(ctx context.Context, patch repository.PaymentConfigPatch) (*models.PaymentConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cfg == nil {
		f.cfg = &models.PaymentConfig{ID: 1, Provider: "sumup", IsEnabled: true}
	}
	patch.Apply(f.cfg)
	cp := *f.cfg
	return &cp, nil
}

type fakePayments struct {
	mu    sync.Mutex
	byRef map[string]*models.Payment
}

func newFakePayments() *fakePayments {
	return &fakePayments{byRef: make(map[string]*models.Payment)}
}

func (f *fakePayments) Create(ctx context.Context, p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byRef[p.Reference]; ok {
		return repository.ErrDuplicate
	}
	cp := *p
	f.byRef[p.Reference] = &cp
	return nil
}

func (f *fakePayments) GetByReference(ctx context.Context, ref string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byRef[ref]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) UpdateStatus(ctx context.Context, ref string, u repository.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byRef[ref]
	if !ok {
		return nil
	}
	p.Status = u.Status
	p.GatewayStatus = u.GatewayStatus
	if u.GatewayID != "" {
		p.GatewayID = u.GatewayID
	}
	if u.Status != domain.PaymentStatusPending && p.CompletedAt == nil {
		at := u.At
		p.CompletedAt = &at
	}
	return nil
}

func (f *fakePayments) MarkCouponRedeemed(ctx context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byRef[ref]
	if !ok || p.CouponRedeemed {
		return false, nil
	}
	p.CouponRedeemed = true
	return true, nil
}

func (f *fakePayments) get(ref string) models.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.byRef[ref]
}

// countingFactory counts charges that reach a gateway.
type countingFactory struct {
	inner   GatewayFactory
	charges int32
	checks  int32
}

func (f *countingFactory) Gateway(ctx context.Context, creds payment.Credentials) (payment.Gateway, error) {
	g, err := f.inner.Gateway(ctx, creds)
	if err != nil {
		return nil, err
	}
	return &countingGateway{Gateway: g, f: f}, nil
}

type countingGateway struct {
	payment.Gateway
	f *countingFactory
}

func (g *countingGateway) CreateCharge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	atomic.AddInt32(&g.f.charges, 1)
	return g.Gateway.CreateCharge(ctx, req)
}

func (g *countingGateway) ChargeStatus(ctx context.Context, id string) (*payment.ChargeResult, error) {
	atomic.AddInt32(&g.f.checks, 1)
	return g.Gateway.ChargeStatus(ctx, id)
}

func newIdempotencyStore(t *testing.T) *idempotency.Store {
	client, _ := newTestRedis(t)
	return idempotency.NewStore(client, 24*time.Hour)
}
