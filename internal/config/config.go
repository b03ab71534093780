package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Token cache backends.
const (
	TokenCacheMemory = "memory"
	TokenCacheRedis  = "redis"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Rating
	ProviderTimeout   time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"15s"`
	MaxConcurrency    int           `envconfig:"MAX_CONCURRENCY" default:"0"`
	RateAdjustersFile string        `envconfig:"RATE_ADJUSTERS_FILE"`

	// Currency; rates are units of each currency per one base unit, e.g. "CAD:1.36,EUR:0.92"
	CurrencyBase  string            `envconfig:"CURRENCY_BASE" default:"USD"`
	CurrencyRates map[string]string `envconfig:"CURRENCY_RATES"`

	// OAuth token cache
	TokenCache     string `envconfig:"TOKEN_CACHE" default:"memory"`
	RedisAddr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"shiprate:token:"`

	// UPS
	UPSClientID        string `envconfig:"UPS_CLIENT_ID"`
	UPSClientSecret    string `envconfig:"UPS_CLIENT_SECRET"`
	UPSAccountNumber   string `envconfig:"UPS_ACCOUNT_NUMBER"`
	UPSBaseURL         string `envconfig:"UPS_BASE_URL" default:"https://onlinetools.ups.com"`
	UPSNegotiatedRates bool   `envconfig:"UPS_NEGOTIATED_RATES" default:"false"`
	UPSEnabled         bool   `envconfig:"UPS_ENABLED" default:"true"`
	UPSUseMock         bool   `envconfig:"UPS_USE_MOCK" default:"false"`

	// FedEx
	FedExClientID      string `envconfig:"FEDEX_CLIENT_ID"`
	FedExClientSecret  string `envconfig:"FEDEX_CLIENT_SECRET"`
	FedExAccountNumber string `envconfig:"FEDEX_ACCOUNT_NUMBER"`
	FedExBaseURL       string `envconfig:"FEDEX_BASE_URL" default:"https://apis.fedex.com"`
	FedExAccountRates  bool   `envconfig:"FEDEX_ACCOUNT_RATES" default:"true"`
	FedExEnabled       bool   `envconfig:"FEDEX_ENABLED" default:"true"`
	FedExUseMock       bool   `envconfig:"FEDEX_USE_MOCK" default:"false"`

	// USPS
	USPSUserID          string `envconfig:"USPS_USER_ID"`
	USPSBaseURL         string `envconfig:"USPS_BASE_URL" default:"https://secure.shippingapis.com"`
	USPSCommercialRates bool   `envconfig:"USPS_COMMERCIAL_RATES" default:"false"`
	USPSEnabled         bool   `envconfig:"USPS_ENABLED" default:"true"`
	USPSIntlEnabled     bool   `envconfig:"USPS_INTL_ENABLED" default:"true"`
	USPSUseMock         bool   `envconfig:"USPS_USE_MOCK" default:"false"`

	// DHL
	DHLUsername      string `envconfig:"DHL_USERNAME"`
	DHLPassword      string `envconfig:"DHL_PASSWORD"`
	DHLAccountNumber string `envconfig:"DHL_ACCOUNT_NUMBER"`
	DHLBaseURL       string `envconfig:"DHL_BASE_URL" default:"https://wsbexpress.dhl.com/gbl"`
	DHLEnabled       bool   `envconfig:"DHL_ENABLED" default:"true"`
	DHLUseMock       bool   `envconfig:"DHL_USE_MOCK" default:"false"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"shiprate"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables. A .env file in the
// working directory, when present, is loaded first and never overrides
// variables that are already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot check on its own.
func (c *Config) Validate() error {
	var errs []error
	if c.TokenCache != TokenCacheMemory && c.TokenCache != TokenCacheRedis {
		errs = append(errs, fmt.Errorf("TOKEN_CACHE must be %q or %q, got %q", TokenCacheMemory, TokenCacheRedis, c.TokenCache))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", c.ProviderTimeout))
	}
	if c.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENCY must not be negative, got %d", c.MaxConcurrency))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("token_cache", c.TokenCache),
		attribute.Bool("ups.enabled", c.UPSEnabled),
		attribute.Bool("fedex.enabled", c.FedExEnabled),
		attribute.Bool("usps.enabled", c.USPSEnabled),
		attribute.Bool("usps_intl.enabled", c.USPSIntlEnabled),
		attribute.Bool("dhl.enabled", c.DHLEnabled),
	}
}
