package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/tournevent/shiprate/internal/config"
	"github.com/tournevent/shiprate/internal/telemetry"
	"github.com/tournevent/shiprate/pkg/carrier/dhl"
	"github.com/tournevent/shiprate/pkg/carrier/fedex"
	"github.com/tournevent/shiprate/pkg/carrier/ups"
	"github.com/tournevent/shiprate/pkg/carrier/usps"
	"github.com/tournevent/shiprate/pkg/currency"
	"github.com/tournevent/shiprate/pkg/oauth"
	"github.com/tournevent/shiprate/pkg/shipping"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(cfg *config.Config) (*otelzap.Logger, error) {
	return telemetry.NewLogger(cfg.LogLevel,
		zap.String("service", cfg.ServiceName),
		zap.String("version", cfg.Version),
	)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return nil, func(context.Context) error { return nil }, nil
	}
	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
}

// initTokenCache builds the OAuth token cache shared by the UPS and FedEx
// clients. The returned function releases its resources.
func initTokenCache(cfg *config.Config, logger *otelzap.Logger) (oauth.TokenCache, func() error) {
	if cfg.TokenCache != config.TokenCacheRedis {
		return oauth.NewMemoryCache(), func() error { return nil }
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	cache := oauth.NewRedisCache(client, cfg.RedisKeyPrefix)
	cache.OnError = func(err error) {
		logger.Warn("Token cache unavailable, fetching a new token", zap.Error(err))
	}
	return cache, client.Close
}

func initConverter(cfg *config.Config) (shipping.CurrencyConverter, error) {
	rates, err := currency.ParseRates(cfg.CurrencyRates)
	if err != nil {
		return nil, fmt.Errorf("CURRENCY_RATES: %w", err)
	}
	return currency.NewStaticConverter(cfg.CurrencyBase, rates)
}

// initRateManager registers every enabled carrier and the configured rate
// adjusters. metrics may be nil.
func initRateManager(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer, metrics *telemetry.Metrics) (*shipping.RateManager, func(), error) {
	converter, err := initConverter(cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []shipping.Option{
		shipping.WithLogger(logger),
		shipping.WithTracer(tracer),
		shipping.WithProviderTimeout(cfg.ProviderTimeout),
		shipping.WithConcurrencyLimit(cfg.MaxConcurrency),
	}
	if metrics != nil {
		opts = append(opts, shipping.WithObserver(metrics))
	}
	manager := shipping.NewRateManager(opts...)

	if cfg.RateAdjustersFile != "" {
		adjusters, err := config.LoadAdjusters(cfg.RateAdjustersFile)
		if err != nil {
			return nil, nil, err
		}
		for _, a := range adjusters {
			manager.AddRateAdjuster(a)
		}
		logger.Info("Loaded rate adjusters", zap.Int("count", len(adjusters)))
	}

	cache, closeCache := initTokenCache(cfg, logger)
	cleanup := func() {
		if err := closeCache(); err != nil {
			logger.Warn("Failed to close token cache", zap.Error(err))
		}
	}

	// Register enabled carriers
	if cfg.UPSEnabled {
		manager.AddProvider(ups.New(ups.Config{
			AccountNumber:   cfg.UPSAccountNumber,
			ClientID:        cfg.UPSClientID,
			ClientSecret:    cfg.UPSClientSecret,
			BaseURL:         cfg.UPSBaseURL,
			NegotiatedRates: cfg.UPSNegotiatedRates,
			UseMock:         cfg.UPSUseMock,
		}, cache, logger, tracer).WithCurrencyConverter(converter))
	}

	if cfg.FedExEnabled {
		manager.AddProvider(fedex.New(fedex.Config{
			AccountNumber: cfg.FedExAccountNumber,
			ClientID:      cfg.FedExClientID,
			ClientSecret:  cfg.FedExClientSecret,
			BaseURL:       cfg.FedExBaseURL,
			AccountRates:  cfg.FedExAccountRates,
			UseMock:       cfg.FedExUseMock,
		}, cache, logger, tracer).WithCurrencyConverter(converter))
	}

	uspsConfig := usps.Config{
		UserID:          cfg.USPSUserID,
		BaseURL:         cfg.USPSBaseURL,
		CommercialRates: cfg.USPSCommercialRates,
		UseMock:         cfg.USPSUseMock,
	}
	if cfg.USPSEnabled {
		manager.AddProvider(usps.New(uspsConfig, logger, tracer).WithCurrencyConverter(converter))
	}
	if cfg.USPSIntlEnabled {
		manager.AddProvider(usps.NewInternational(uspsConfig, logger, tracer).WithCurrencyConverter(converter))
	}

	if cfg.DHLEnabled {
		manager.AddProvider(dhl.New(dhl.Config{
			Username:      cfg.DHLUsername,
			Password:      cfg.DHLPassword,
			AccountNumber: cfg.DHLAccountNumber,
			BaseURL:       cfg.DHLBaseURL,
			UseMock:       cfg.DHLUseMock,
		}, logger, tracer).WithCurrencyConverter(converter))
	}

	return manager, cleanup, nil
}
