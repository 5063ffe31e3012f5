package router

import (
	"context"
	"log/slog"
	"net/http"

	"streamvault/config"
	"streamvault/internal/cache"
	"streamvault/internal/geo"
	"streamvault/internal/handler"
	"streamvault/internal/idempotency"
	"streamvault/internal/middleware"
	"streamvault/internal/repository"
	"streamvault/internal/service"
	"streamvault/internal/ws"
	"streamvault/pkg/checkout"
	"streamvault/pkg/payment"
	"streamvault/pkg/pricing"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Setup wires every route. The returned func releases background workers.
func Setup(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, logger *slog.Logger) (*gin.Engine, func()) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger.With("component", "http")))
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))

	// Repositories and stores
	couponRepo := repository.NewCouponRepository(db)
	configRepo := repository.NewPaymentConfigRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	configCache := cache.NewConfigCache(rdb, cfg.Redis.ConfigCacheTTL)
	countryCache := cache.NewCountryCache(rdb, cfg.Geo.CacheTTL)
	claims := idempotency.NewStore(rdb, cfg.Redis.IdempotencyTTL)

	minimum, err := decimal.NewFromString(cfg.Checkout.MinimumCharge)
	if err != nil {
		logger.Warn("invalid CHECKOUT_MINIMUM_CHARGE, using default", "value", cfg.Checkout.MinimumCharge)
		minimum = pricing.DefaultMinimumCharge
	}
	engine := pricing.NewEngine(pricing.DefaultCatalog(), minimum)

	breakers := payment.NewBreakers(payment.BreakerConfig{
		Failures: cfg.Gateway.BreakerFailures,
		Timeout:  cfg.Gateway.BreakerTimeout,
	}, logger)
	gateways := payment.NewFactory(payment.FactoryConfig{
		StripeBaseURL: cfg.Gateway.StripeBaseURL,
		SumUpBaseURL:  cfg.Gateway.SumUpBaseURL,
		SumUpTokenURL: cfg.Gateway.SumUpTokenURL,
		Timeout:       cfg.Checkout.SubmitTimeout,
		Sandbox:       cfg.Gateway.Sandbox,
	}, breakers, logger)

	// Services
	couponSvc := service.NewCouponService(couponRepo, logger)
	providerSvc := service.NewProviderService(configRepo, configCache, logger)
	authSvc := service.NewAuthService(cfg)
	checkoutSvc := service.NewCheckoutService(service.CheckoutConfig{
		Currency:      cfg.Checkout.Currency,
		SubmitTimeout: cfg.Checkout.SubmitTimeout,
		StatusTimeout: cfg.Checkout.PollTimeout,
		ReturnURL:     cfg.Gateway.ReturnURL,
	}, engine, couponSvc, providerSvc, paymentRepo, claims, gateways, logger)
	gate := geo.NewGate(cfg, countryCache, logger)

	statusHub := ws.NewStatusHub(ctx, checkout.StatusFunc(func(ctx context.Context, ref string) (string, error) {
		st, err := checkoutSvc.Status(ctx, ref)
		if err != nil {
			return "", err
		}
		return st.Status, nil
	}), checkout.SystemClock, logger)

	// Handlers
	checkoutHandler := handler.NewCheckoutHandler(checkoutSvc)
	couponHandler := handler.NewCouponHandler(couponSvc)
	configHandler := handler.NewPaymentConfigHandler(providerSvc, logger)
	authHandler := handler.NewAuthHandler(authSvc, logger)
	catalogHandler := handler.NewCatalogHandler(engine, couponSvc)
	blockedHandler := handler.NewBlockedHandler(gate)

	checkoutLimiter := middleware.NewInMemoryRateLimiter(cfg.Checkout.RateLimitRequests, cfg.Checkout.RateLimitWindow)
	publicLimiter := middleware.NewInMemoryRateLimiter(100, cfg.Checkout.RateLimitWindow)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "breakers": gin.H{
			"stripe": breakers.State(payment.ProviderStripe),
			"sumup":  breakers.State(payment.ProviderSumUp),
		}})
	})
	r.GET("/ws/checkout/:reference", middleware.RateLimit(publicLimiter), ws.UpgradeStatusWS(statusHub, cfg.Server.SiteURL))

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(publicLimiter))
	{
		api.GET("/packages", catalogHandler.Packages)
		api.POST("/quote", catalogHandler.Quote)
		api.GET("/blocked", blockedHandler.Check)
		api.GET("/payment/config/public", configHandler.Public)
		api.POST("/auth/login", middleware.RateLimit(checkoutLimiter), authHandler.Login)
	}

	coupons := api.Group("/coupons")
	{
		coupons.POST("/validate", couponHandler.Validate)
		coupons.POST("/issue", middleware.RateLimit(checkoutLimiter), couponHandler.Issue)
	}

	co := api.Group("/checkout")
	co.Use(middleware.GeoGate(gate, logger))
	{
		co.POST("/create", middleware.RateLimit(checkoutLimiter), checkoutHandler.Create)
		co.GET("/status/:reference", checkoutHandler.Status)
	}

	admin := api.Group("/payment/config")
	admin.Use(middleware.AuthRequired(&cfg.JWT), middleware.AdminRequired(&cfg.Admin))
	{
		admin.GET("", configHandler.Get)
		admin.PUT("", configHandler.Update)
	}

	return r, func() {
		checkoutLimiter.Close()
		publicLimiter.Close()
	}
}
