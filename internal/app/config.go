package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/kart-promo/internal/domain/price"
)

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string        `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url" validate:"required"`
	RedisURL     string        `default:"redis://localhost:6379/0" usage:"Redis connection URL (KART_REDIS_URL or REDIS_URL)" flag:"redis-url" validate:"required"`
	ImageBaseURL string        `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	APIKeyPepper string        `usage:"HMAC pepper for API key hashing (KART_API_KEY_PEPPER)" flag:"api-key-pepper"`
	CartTTL      time.Duration `default:"168h" usage:"Lifetime of saved carts" flag:"cart-ttl" validate:"gte=0"`
	Sales        SalesConfig
	Promotions   PromotionsConfig
	Translations TranslationsConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// SalesConfig describes the sales channel every cart is priced in.
type SalesConfig struct {
	ChannelID string `default:"web" usage:"Sales channel identifier"`
	Currency  string `default:"USD" usage:"ISO 4217 currency code" validate:"iso4217"`
	Locale    string `default:"en" usage:"Default locale of discount labels" validate:"bcp47_language_tag"`
	TaxStatus string `default:"gross" usage:"Whether prices include taxes (gross or net)" validate:"oneof=gross net"`
	Decimals  int32  `default:"2" usage:"Fraction digits of rounded totals" validate:"gte=0,lte=8"`
}

// PromotionsConfig selects the promotion strategies in evaluation order.
type PromotionsConfig struct {
	Enabled []string `default:"bulk_quantity,percentage" usage:"Ordered promotion strategy names"`
}

// TranslationsConfig controls discount label translations.
type TranslationsConfig struct {
	File          string `default:"" usage:"YAML catalog overriding the embedded translations" flag:"translations-file"`
	DefaultLocale string `default:"en" usage:"Fallback locale" validate:"bcp47_language_tag"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window, 0 disables"`
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

// SalesContext returns the configured sales channel settings.
func (c *Config) SalesContext() price.SalesContext {
	return price.SalesContext{
		ChannelID: c.Sales.ChannelID,
		Currency:  c.Sales.Currency,
		Locale:    c.Sales.Locale,
		TaxStatus: price.TaxStatus(c.Sales.TaxStatus),
		Decimals:  c.Sales.Decimals,
	}
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
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

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if v := os.Getenv("REDIS_URL"); v != "" && os.Getenv("KART_REDIS_URL") == "" {
		c.RedisURL = v
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
