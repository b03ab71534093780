package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/tournevent/shiprate/internal/graphql"
	"github.com/tournevent/shiprate/internal/server"
	"github.com/tournevent/shiprate/internal/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "shiprate",
	Short:   "Shiprate - Multi-carrier shipping rate aggregation service",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GraphQL server",
	RunE:  runServe,
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Rate a single shipment with every enabled carrier and print the result as JSON",
	RunE:  runQuote,
}

type quoteOptions struct {
	fromPostal  string
	fromCountry string
	toPostal    string
	toCountry   string
	toState     string
	residential bool

	weight    float64
	length    float64
	width     float64
	height    float64
	units     string
	insured   string
	container string
	documents bool
	signature bool

	shipDate  string
	saturday  bool
	currency  string
	oneRate   bool
	providers []string
	verbose   bool
}

var quoteFlags quoteOptions

func init() {
	f := quoteCmd.Flags()
	f.StringVar(&quoteFlags.fromPostal, "from-postal", "", "origin postal code")
	f.StringVar(&quoteFlags.fromCountry, "from-country", "US", "origin country code")
	f.StringVar(&quoteFlags.toPostal, "to-postal", "", "destination postal code")
	f.StringVar(&quoteFlags.toCountry, "to-country", "US", "destination country code")
	f.StringVar(&quoteFlags.toState, "to-state", "", "destination state or province code")
	f.BoolVar(&quoteFlags.residential, "residential", false, "destination is residential")
	f.Float64Var(&quoteFlags.weight, "weight", 0, "package weight")
	f.Float64Var(&quoteFlags.length, "length", 0, "package length")
	f.Float64Var(&quoteFlags.width, "width", 0, "package width")
	f.Float64Var(&quoteFlags.height, "height", 0, "package height")
	f.StringVar(&quoteFlags.units, "units", "imperial", "unit system of the measurements: imperial or metric")
	f.StringVar(&quoteFlags.insured, "insured", "0", "insured value")
	f.StringVar(&quoteFlags.container, "container", "", "carrier container code")
	f.BoolVar(&quoteFlags.documents, "documents", false, "package holds documents only")
	f.BoolVar(&quoteFlags.signature, "signature", false, "require a delivery signature")
	f.StringVar(&quoteFlags.shipDate, "ship-date", "", "ship date, YYYY-MM-DD or RFC 3339 (default now)")
	f.BoolVar(&quoteFlags.saturday, "saturday", false, "request Saturday delivery")
	f.StringVar(&quoteFlags.currency, "currency", "", "preferred currency for returned rates")
	f.BoolVar(&quoteFlags.oneRate, "fedex-one-rate", false, "request FedEx One Rate pricing")
	f.StringSliceVar(&quoteFlags.providers, "provider", nil, "limit rating to these providers (repeatable)")
	f.BoolVarP(&quoteFlags.verbose, "verbose", "v", false, "write service logs to stdout before the result")
	_ = quoteCmd.MarkFlagRequired("from-postal")
	_ = quoteCmd.MarkFlagRequired("to-postal")
	_ = quoteCmd.MarkFlagRequired("weight")

	rootCmd.AddCommand(serveCmd, quoteCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize telemetry
	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(context.Background())
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	// Initialize the rate manager with all enabled carriers
	manager, cleanup, err := initRateManager(cfg, logger, tracer, metrics)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("Starting Shiprate",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.Strings("providers", manager.ProviderNames()),
	)

	// Start HTTP server
	srv, err := server.New(server.Config{Port: cfg.Port}, manager, metrics, logger)
	if err != nil {
		return err
	}
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := otelzap.New(zap.NewNop())
	if quoteFlags.verbose {
		if logger, err = initLogger(cfg); err != nil {
			return err
		}
		defer logger.Sync()
	}

	manager, cleanup, err := initRateManager(cfg, logger, nil, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	input, err := quoteInput(quoteFlags)
	if err != nil {
		return err
	}

	resp, err := graphql.NewResolver(manager, logger, nil).GetRates(ctx, input)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func quoteInput(f quoteOptions) (graphql.RateRequestInput, error) {
	insured, err := decimal.NewFromString(f.insured)
	if err != nil {
		return graphql.RateRequestInput{}, fmt.Errorf("invalid --insured %q: %w", f.insured, err)
	}

	var sys graphql.UnitSystem
	switch f.units {
	case "imperial":
		sys = graphql.UnitSystemImperial
	case "metric":
		sys = graphql.UnitSystemMetric
	default:
		return graphql.RateRequestInput{}, fmt.Errorf("invalid --units %q: must be imperial or metric", f.units)
	}

	pkg := &graphql.PackageInput{
		Length:            &f.length,
		Width:             &f.width,
		Height:            &f.height,
		Weight:            f.weight,
		InsuredValue:      &insured,
		Units:             &sys,
		SignatureRequired: &f.signature,
		Documents:         &f.documents,
	}
	if f.container != "" {
		pkg.Container = &f.container
	}

	opts := &graphql.RateOptionsInput{
		SaturdayDelivery: &f.saturday,
		FedExOneRate:     &f.oneRate,
		Providers:        f.providers,
	}
	if f.shipDate != "" {
		opts.ShipDate = &f.shipDate
	}
	if f.currency != "" {
		opts.Currency = &f.currency
	}

	input := graphql.RateRequestInput{
		Origin: &graphql.AddressInput{
			PostalCode:  f.fromPostal,
			CountryCode: &f.fromCountry,
		},
		Destination: &graphql.AddressInput{
			PostalCode:  f.toPostal,
			CountryCode: &f.toCountry,
			Residential: &f.residential,
		},
		Packages: []*graphql.PackageInput{pkg},
		Options:  opts,
	}
	if f.toState != "" {
		input.Destination.State = &f.toState
	}
	return input, nil
}
