package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shiprate/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "USD", cfg.CurrencyBase)
	assert.Equal(t, config.TokenCacheMemory, cfg.TokenCache)
	assert.Equal(t, "https://onlinetools.ups.com", cfg.UPSBaseURL)
	assert.Equal(t, "https://apis.fedex.com", cfg.FedExBaseURL)
	assert.Equal(t, "https://secure.shippingapis.com", cfg.USPSBaseURL)
	assert.Equal(t, "https://wsbexpress.dhl.com/gbl", cfg.DHLBaseURL)
	assert.True(t, cfg.FedExAccountRates)
	assert.True(t, cfg.USPSIntlEnabled)
	assert.Equal(t, "shiprate", cfg.ServiceName)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("PROVIDER_TIMEOUT", "3s")
	t.Setenv("MAX_CONCURRENCY", "2")
	t.Setenv("CURRENCY_RATES", "CAD:1.36,EUR:0.92")
	t.Setenv("TOKEN_CACHE", "redis")
	t.Setenv("UPS_USE_MOCK", "true")
	t.Setenv("DHL_ENABLED", "false")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 2, cfg.MaxConcurrency)
	assert.Equal(t, map[string]string{"CAD": "1.36", "EUR": "0.92"}, cfg.CurrencyRates)
	assert.Equal(t, config.TokenCacheRedis, cfg.TokenCache)
	assert.True(t, cfg.UPSUseMock)
	assert.False(t, cfg.DHLEnabled)
}

func TestLoad_InvalidTokenCache(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TOKEN_CACHE", "memcached")

	_, err := config.Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_CACHE")
}

func TestLoad_MalformedValue(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PROVIDER_TIMEOUT", "soon")

	_, err := config.Load()

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"zero timeout", func(c *config.Config) { c.ProviderTimeout = 0 }, "PROVIDER_TIMEOUT"},
		{"negative concurrency", func(c *config.Config) { c.MaxConcurrency = -1 }, "MAX_CONCURRENCY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Config{TokenCache: config.TokenCacheMemory, ProviderTimeout: time.Second}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAttributes(t *testing.T) {
	cfg := config.Config{ServiceName: "shiprate", Version: "1.2.3", TokenCache: "memory", UPSEnabled: true}

	attrs := cfg.Attributes()

	values := map[string]string{}
	for _, kv := range attrs {
		values[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "shiprate", values["service.name"])
	assert.Equal(t, "1.2.3", values["service.version"])
	assert.Equal(t, "true", values["ups.enabled"])
	assert.Equal(t, "false", values["dhl.enabled"])
}
