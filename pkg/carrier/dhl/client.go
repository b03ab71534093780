// Package dhl provides integration with the DHL Express rate book SOAP service.
package dhl

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/tournevent/shiprate/pkg/shipping"
	"github.com/tournevent/shiprate/pkg/units"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	carrierName = "dhl"

	specialSaturday = "AA"
)

// serviceNames maps DHL global product codes to display names.
var serviceNames = map[string]string{
	"1": "DHL Express Domestic 12:00",
	"D": "DHL Express Worldwide (Documents)",
	"E": "DHL Express 9:00",
	"G": "DHL Domestic Economy Select",
	"H": "DHL Economy Select",
	"K": "DHL Express 9:00 (Documents)",
	"N": "DHL Express Domestic",
	"P": "DHL Express Worldwide",
	"T": "DHL Express 12:00 (Documents)",
	"U": "DHL Express Worldwide (EU)",
	"W": "DHL Economy Select (EU)",
	"X": "DHL Express Envelope",
	"Y": "DHL Express 12:00",
}

// Config holds DHL configuration.
type Config struct {
	Username      string
	Password      string
	AccountNumber string
	BaseURL       string
	UseMock       bool
}

// Client is the DHL Express rate provider.
type Client struct {
	config    Config
	apiClient APIClient
	converter shipping.CurrencyConverter
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new DHL client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewSOAPAPIClient(SOAPAPIClientConfig{
			BaseURL:  cfg.BaseURL,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  30 * time.Second,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new DHL client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/shiprate/pkg/carrier/dhl")
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// WithCurrencyConverter converts rates to the shipment's preferred currency.
func (c *Client) WithCurrencyConverter(converter shipping.CurrencyConverter) *Client {
	c.converter = converter
	return c
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// GetRates returns DHL Express rate quotes.
func (c *Client) GetRates(ctx context.Context, shipment *shipping.Shipment) (*shipping.RateResult, error) {
	ctx, span := c.tracer.Start(ctx, "dhl.GetRates", trace.WithAttributes(
		attribute.String("shipment.id", shipment.ID),
		attribute.String("destination.country", shipment.Destination.CountryCode),
	))
	defer span.End()

	c.logger.Ctx(ctx).Info("Getting DHL rates",
		zap.String("origin_postal", shipment.Origin.PostalCode),
		zap.String("destination_postal", shipment.Destination.PostalCode),
		zap.String("destination_country", shipment.Destination.CountryCode),
	)

	agg := shipping.NewRateResultAggregator(carrierName).
		WithCurrencyConversion(ctx, c.converter, shipment.Options.CurrencyCode)

	resp, err := c.apiClient.GetRates(ctx, buildRateRequest(c.config, shipment))
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			agg.AddProviderError(shipping.NewProviderError(carrierName, apiErr.Code, apiErr.Message).WithSource("soap"))
			return agg.Build(), nil
		}
		c.logger.Ctx(ctx).Error("DHL API error", zap.Error(err))
		return nil, err
	}

	for _, n := range resp.Notifications {
		if n.IsError() {
			agg.AddProviderError(shipping.NewProviderError(carrierName, n.Code, n.Message).WithSource("rate"))
		}
	}

	for _, svc := range resp.Services {
		var delivery *time.Time
		if svc.DeliveryTime != nil {
			d := rebase(*svc.DeliveryTime, shipment.Options.ShipDate.Location())
			delivery = &d
		}
		saturday := shipment.Options.SaturdayDelivery && delivery != nil && delivery.Weekday() == time.Saturday
		agg.AddRate(svc.Type, ServiceName(svc.Type), svc.TotalNet, delivery, shipping.RateOptions{SaturdayDelivery: saturday}, svc.Currency)
	}

	return agg.Build(), nil
}

// ServiceName returns the display name of a DHL product code.
func ServiceName(code string) string {
	if name, ok := serviceNames[code]; ok {
		return name
	}
	return "DHL Service " + code
}

// ============================================================================
// Conversion Helpers
// ============================================================================

// rebase reinterprets a wall-clock time in loc.
func rebase(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
}

func unitSystemFor(origin shipping.Address) (units.System, string) {
	if origin.IsCountry("US") || origin.IsCountry("PR") {
		return units.Imperial, UnitSU
	}
	return units.Metric, UnitSI
}

func buildRateRequest(cfg Config, shipment *shipping.Shipment) *RateRequest {
	sys, uom := unitSystemFor(shipment.Origin)

	content := ContentNonDocuments
	if shipment.HasDocumentsOnly() {
		content = ContentDocuments
	}

	currency := shipment.Options.CurrencyCode
	if currency == "" {
		currency = "USD"
	}

	req := &RateRequest{
		Account:               cfg.AccountNumber,
		DropOffType:           "REGULAR_PICKUP",
		NextBusinessDay:       true,
		ShipTimestamp:         shipment.Options.ShipDate,
		UnitOfMeasurement:     uom,
		Content:               content,
		PaymentInfo:           "DAP",
		DeclaredValue:         shipment.TotalInsuredValue(),
		DeclaredValueCurrency: currency,
		Shipper:               addressToAPI(shipment.Origin),
		Recipient:             addressToAPI(shipment.Destination),
	}

	for i, pkg := range shipment.Packages() {
		p := Package{
			Number: i + 1,
			Weight: units.Round(pkg.Weight(sys), 3),
		}
		if !pkg.IsDocuments() {
			p.HasDimensions = true
			p.Length = ceilInt(pkg.Length(sys))
			p.Width = ceilInt(pkg.Width(sys))
			p.Height = ceilInt(pkg.Height(sys))
		}
		req.Packages = append(req.Packages, p)
	}

	if shipment.Options.SaturdayDelivery {
		req.SpecialServices = append(req.SpecialServices, specialSaturday)
	}
	return req
}

func addressToAPI(addr shipping.Address) Address {
	country := strings.ToUpper(addr.CountryCode)
	if country == "" {
		country = "US"
	}
	return Address{
		StreetLines:  addr.Line1,
		StreetLines2: addr.Line2,
		StreetLines3: addr.Line3,
		City:         addr.City,
		PostalCode:   addr.PostalCode,
		CountryCode:  country,
	}
}

func ceilInt(v float64) int {
	return int(math.Ceil(v - 1e-9))
}
