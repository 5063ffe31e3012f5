package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Checkout CheckoutConfig
	Gateway  GatewayConfig
	Geo      GeoConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	LogLevel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SiteURL      string // storefront origin allowed to open status sockets
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL            string
	ConfigCacheTTL time.Duration
	IdempotencyTTL time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// AdminConfig holds the single console operator. PasswordHash is a bcrypt hash.
type AdminConfig struct {
	Username     string
	PasswordHash string
}

type CheckoutConfig struct {
	Currency          string
	MinimumCharge     string // decimal string, e.g. "1.00"
	SubmitTimeout     time.Duration
	PollTimeout       time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// GatewayConfig holds endpoints only; credentials live in the payment_configs row.
type GatewayConfig struct {
	StripeBaseURL   string
	SumUpBaseURL    string
	SumUpTokenURL   string
	ReturnURL       string
	Sandbox         bool
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type GeoConfig struct {
	BlockedCountries []string
	TestCountry      string // forces the resolved country outside production
	LookupURL        string // IP lookup endpoint, %s is replaced with the address
	CacheTTL         time.Duration
	// TrustEdgeHeader honours CF-IPCountry. Only set it when every request
	// arrives through the edge proxy that writes the header.
	TrustEdgeHeader bool
}

func Load() *Config {
	// .env is optional
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8099"),
			Env:          getEnv("APP_ENV", "development"),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 70*time.Second),
			SiteURL:      strings.TrimRight(getEnv("SITE_URL", "http://localhost:3000"), "/"),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_DSN", "streamvault:streamvault@tcp(localhost:3306)/streamvault?charset=utf8mb4&parseTime=True&loc=UTC"),
			MaxIdleConns:    getIntEnv("DATABASE_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getIntEnv("DATABASE_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: getDurationEnv("DATABASE_CONN_MAX_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			URL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
			ConfigCacheTTL: getDurationEnv("PAYMENT_CONFIG_CACHE_TTL", 5*time.Minute),
			IdempotencyTTL: getDurationEnv("CHECKOUT_IDEMPOTENCY_TTL", 24*time.Hour),
		},
		JWT: JWTConfig{
			AccessSecret: getEnv("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: getDurationEnv("JWT_ACCESS_EXPIRY", 8*time.Hour),
			Issuer:       getEnv("JWT_ISSUER", "streamvault"),
		},
		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		Checkout: CheckoutConfig{
			Currency:          getEnv("CHECKOUT_CURRENCY", "EUR"),
			MinimumCharge:     getEnv("CHECKOUT_MINIMUM_CHARGE", "1.00"),
			SubmitTimeout:     getDurationEnv("CHECKOUT_SUBMIT_TIMEOUT", 10*time.Second),
			PollTimeout:       getDurationEnv("CHECKOUT_POLL_TIMEOUT", 5*time.Second),
			RateLimitRequests: getIntEnv("CHECKOUT_RATE_LIMIT_REQUESTS", 10),
			RateLimitWindow:   getDurationEnv("CHECKOUT_RATE_LIMIT_WINDOW", time.Minute),
		},
		Gateway: GatewayConfig{
			StripeBaseURL:   getEnv("STRIPE_BASE_URL", "https://api.stripe.com"),
			SumUpBaseURL:    getEnv("SUMUP_BASE_URL", "https://api.sumup.com"),
			SumUpTokenURL:   getEnv("SUMUP_TOKEN_URL", "https://api.sumup.com/token"),
			ReturnURL:       getEnv("CHECKOUT_RETURN_URL", "http://localhost:3000/success"),
			Sandbox:         getBoolEnv("GATEWAY_SANDBOX", false),
			BreakerFailures: uint32(getIntEnv("GATEWAY_BREAKER_FAILURES", 5)),
			BreakerTimeout:  getDurationEnv("GATEWAY_BREAKER_TIMEOUT", 30*time.Second),
		},
		Geo: GeoConfig{
			BlockedCountries: getListEnv("BLOCKED_COUNTRIES"),
			TestCountry:      getEnv("TEST_COUNTRY", ""),
			LookupURL:        getEnv("GEO_LOOKUP_URL", "http://ip-api.com/json/%s?fields=countryCode"),
			CacheTTL:         getDurationEnv("GEO_CACHE_TTL", 24*time.Hour),
			TrustEdgeHeader:  getBoolEnv("GEO_TRUST_EDGE_HEADER", false),
		},
	}
}

// IsProduction reports whether the server runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
