package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"golang.org/x/text/currency"

	"github.com/xenking/kart-storefront/internal/payment"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL catalog URL (STOREFRONT_DATABASE_URL or DATABASE_URL); empty uses the catalog file" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images" flag:"image-base-url"`
	Currency     string `default:"USD" usage:"ISO 4217 code shown next to amounts"`
	Payment      PaymentConfig
	Notification NotificationConfig
	Session      SessionConfig
	Catalog      CatalogConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig

	currency currency.Unit
}

// PaymentConfig locates the remote payment service.
type PaymentConfig struct {
	URL     string        `default:"http://localhost:8081" usage:"Payment service base URL" flag:"payment-url"`
	Path    string        `default:"/payment-service/api/payments/process" usage:"Payment endpoint path"`
	Timeout time.Duration `default:"10s" usage:"Per-request timeout for payment calls"`
	Breaker BreakerConfig
}

// BreakerConfig controls the circuit breaker in front of the payment service.
type BreakerConfig struct {
	MaxFailures uint32        `default:"5" usage:"Consecutive transport failures that open the breaker"`
	OpenTimeout time.Duration `default:"30s" usage:"How long the breaker stays open"`
}

// NotificationConfig controls the transient status messages.
type NotificationConfig struct {
	Lifetime time.Duration `default:"3s" usage:"How long a notification stays visible"`
}

// SessionConfig controls in-memory session eviction.
type SessionConfig struct {
	IdleTimeout   time.Duration `default:"30m" usage:"Evict sessions idle for this long"`
	SweepInterval time.Duration `default:"1m" usage:"How often idle sessions are evicted"`
}

// CatalogConfig points at the JSON catalog used when no database is set.
type CatalogConfig struct {
	File string `default:"db/seed/products.json" usage:"Product catalog JSON file" flag:"catalog-file"`
}

// RateLimitConfig controls the per-session sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"300" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and flags, then applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	unit, err := currency.ParseISO(c.Currency)
	if err != nil {
		return errors.Wrapf(err, "currency %q", c.Currency)
	}
	c.currency = unit

	switch {
	case c.Payment.URL == "":
		return errors.New("payment service URL is required")
	case c.Payment.Timeout <= 0:
		return errors.New("payment timeout must be positive")
	case c.Notification.Lifetime <= 0:
		return errors.New("notification lifetime must be positive")
	case c.Session.IdleTimeout <= 0 || c.Session.SweepInterval <= 0:
		return errors.New("session idle timeout and sweep interval must be positive")
	case c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0:
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}

// CurrencyUnit returns the parsed display currency.
func (c *Config) CurrencyUnit() currency.Unit {
	return c.currency
}

// PaymentClientConfig converts the payment section for payment.NewClient.
func (c *Config) PaymentClientConfig() payment.Config {
	return payment.Config{
		URL:     c.Payment.URL,
		Path:    c.Payment.Path,
		Timeout: c.Payment.Timeout,
		Breaker: payment.BreakerConfig{
			MaxFailures: c.Payment.Breaker.MaxFailures,
			OpenTimeout: c.Payment.Breaker.OpenTimeout,
		},
	}
}
