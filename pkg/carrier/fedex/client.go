// Package fedex provides integration with the FedEx Rate Quotes API.
package fedex

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/tournevent/shiprate/pkg/oauth"
	"github.com/tournevent/shiprate/pkg/shipping"
	"github.com/tournevent/shiprate/pkg/units"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	carrierName = "fedex"

	specialOneRate  = "FEDEX_ONE_RATE"
	specialSaturday = "SATURDAY_DELIVERY"

	commitLayout = "2006-01-02T15:04:05"
)

// Config holds FedEx configuration.
type Config struct {
	AccountNumber string
	ClientID      string
	ClientSecret  string
	BaseURL       string
	AccountRates  bool // prefer ACCOUNT over LIST pricing when both are returned
	UseMock       bool
}

// Client is the FedEx rate provider.
type Client struct {
	config    Config
	apiClient APIClient
	converter shipping.CurrencyConverter
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new FedEx client. Tokens are cached in cache, which may be
// shared with other providers.
func New(cfg Config, cache oauth.TokenCache, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		tokens := oauth.NewTokenSource(oauth.ClientCredentials{
			TokenURL:          strings.TrimRight(cfg.BaseURL, "/") + "/oauth/token",
			ClientID:          cfg.ClientID,
			ClientSecret:      cfg.ClientSecret,
			CredentialsInBody: true,
		}, cache)
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			Tokens:  tokens,
			Timeout: 30 * time.Second,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new FedEx client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/shiprate/pkg/carrier/fedex")
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

// GetRates returns FedEx rate quotes. With ShipmentOptions.FedExOneRate set,
// the shipment is priced under FedEx One Rate flat pricing.
func (c *Client) GetRates(ctx context.Context, shipment *shipping.Shipment) (*shipping.RateResult, error) {
	ctx, span := c.tracer.Start(ctx, "fedex.GetRates", trace.WithAttributes(
		attribute.String("shipment.id", shipment.ID),
		attribute.Bool("fedex.one_rate", shipment.Options.FedExOneRate),
	))
	defer span.End()

	c.logger.Ctx(ctx).Info("Getting FedEx rates",
		zap.String("origin_postal", shipment.Origin.PostalCode),
		zap.String("destination_postal", shipment.Destination.PostalCode),
		zap.Bool("one_rate", shipment.Options.FedExOneRate),
	)

	agg := shipping.NewRateResultAggregator(carrierName).
		WithCurrencyConversion(ctx, c.converter, shipment.Options.CurrencyCode)

	resp, err := c.apiClient.GetRates(ctx, buildRateRequest(c.config, shipment))
	if err != nil {
		var authErr *oauth.AuthError
		var apiErr *APIError
		switch {
		case errors.As(err, &authErr):
			agg.AddProviderError(authErr.ProviderError(carrierName))
			return agg.Build(), nil
		case errors.As(err, &apiErr):
			details := apiErr.Details
			if len(details) == 0 {
				details = []ErrorDetail{{Code: apiErr.Code, Message: apiErr.Message}}
			}
			for _, d := range details {
				agg.AddProviderError(shipping.NewProviderError(carrierName, d.Code, d.Message).WithSource("rate"))
			}
			return agg.Build(), nil
		}
		c.logger.Ctx(ctx).Error("FedEx API error", zap.Error(err))
		return nil, err
	}

	for _, alert := range resp.Output.Alerts {
		c.logger.Ctx(ctx).Debug("FedEx alert",
			zap.String("code", alert.Code),
			zap.String("message", alert.Message),
			zap.String("type", alert.AlertType),
		)
	}

	for _, detail := range resp.Output.RateReplyDetails {
		rated, ok := selectRate(detail.RatedShipmentDetails, c.config.AccountRates)
		if !ok {
			agg.AddInternalError("no rated shipment details for service %s", detail.ServiceType)
			continue
		}

		delivery := commitDate(detail.Commit, shipment.Options.ShipDate.Location())
		saturday := shipment.Options.SaturdayDelivery && delivery != nil && delivery.Weekday() == time.Saturday
		if detail.Commit != nil && detail.Commit.SaturdayDelivery {
			saturday = true
		}

		name := detail.ServiceName
		if name == "" {
			name = detail.ServiceType
		}
		agg.AddRate(detail.ServiceType, name, rated.TotalNetCharge, delivery, shipping.RateOptions{SaturdayDelivery: saturday}, rated.Currency)
	}

	return agg.Build(), nil
}

// ============================================================================
// Conversion Helpers
// ============================================================================

func selectRate(details []RatedShipmentDetail, preferAccount bool) (RatedShipmentDetail, bool) {
	if len(details) == 0 {
		return RatedShipmentDetail{}, false
	}
	want := "LIST"
	if preferAccount {
		want = "ACCOUNT"
	}
	for _, d := range details {
		if d.RateType == want {
			return d, true
		}
	}
	return details[0], true
}

func commitDate(commit *Commit, loc *time.Location) *time.Time {
	if commit == nil || commit.DateDetail == nil || commit.DateDetail.DayFormat == "" {
		return nil
	}
	t, err := time.ParseInLocation(commitLayout, commit.DateDetail.DayFormat, loc)
	if err != nil {
		return nil
	}
	return &t
}

func unitSystemFor(origin shipping.Address) units.System {
	if origin.IsCountry("US") || origin.IsCountry("PR") {
		return units.Imperial
	}
	return units.Metric
}

func packagingType(shipment *shipping.Shipment) string {
	packages := shipment.Packages()
	if len(packages) > 0 && packages[0].Container() != "" {
		return packages[0].Container()
	}
	switch {
	case shipment.HasDocumentsOnly():
		return "FEDEX_ENVELOPE"
	case shipment.Options.FedExOneRate:
		return "FEDEX_PAK"
	default:
		return "YOUR_PACKAGING"
	}
}

func buildRateRequest(cfg Config, shipment *shipping.Shipment) *RateRequest {
	sys := unitSystemFor(shipment.Origin)

	currency := shipment.Options.CurrencyCode
	if currency == "" {
		currency = "USD"
	}

	items := make([]RequestedPackageLineItem, 0, len(shipment.Packages()))
	for _, pkg := range shipment.Packages() {
		item := RequestedPackageLineItem{
			Weight: Weight{
				Units: sys.WeightUnit(),
				Value: math.Ceil(pkg.Weight(sys)*10-1e-9) / 10,
			},
		}
		if !pkg.IsDocuments() {
			item.Dimensions = &Dimensions{
				Length: ceilInt(pkg.Length(sys)),
				Width:  ceilInt(pkg.Width(sys)),
				Height: ceilInt(pkg.Height(sys)),
				Units:  sys.LengthUnit(),
			}
		}
		if pkg.InsuredValue().IsPositive() {
			item.DeclaredValue = &Money{Amount: pkg.InsuredValue().InexactFloat64(), Currency: currency}
		}
		if pkg.SignatureRequired() {
			item.PackageSpecialServices = &PackageServices{SignatureOptionType: "DIRECT"}
		}
		items = append(items, item)
	}

	var special []string
	if shipment.Options.FedExOneRate {
		special = append(special, specialOneRate)
	}
	if shipment.Options.SaturdayDelivery {
		special = append(special, specialSaturday)
	}

	recipient := addressToAPI(shipment.Destination)
	recipient.Residential = shipment.Destination.IsResidential

	req := &RateRequest{
		AccountNumber:                AccountNumber{Value: cfg.AccountNumber},
		RateRequestControlParameters: &RateRequestControlParameters{ReturnTransitTimes: true},
		RequestedShipment: RequestedShipment{
			Shipper:                   Party{Address: addressToAPI(shipment.Origin)},
			Recipient:                 Party{Address: recipient},
			ShipDateStamp:             shipment.Options.ShipDate.Format("2006-01-02"),
			PickupType:                "DROPOFF_AT_FEDEX_LOCATION",
			PackagingType:             packagingType(shipment),
			RateRequestType:           []string{"LIST", "ACCOUNT"},
			PreferredCurrency:         shipment.Options.CurrencyCode,
			RequestedPackageLineItems: items,
		},
	}
	if len(special) > 0 {
		req.RequestedShipment.ShipmentSpecialServices = &SpecialServices{SpecialServiceTypes: special}
	}
	return req
}

func addressToAPI(addr shipping.Address) Address {
	country := strings.ToUpper(addr.CountryCode)
	if country == "" {
		country = "US"
	}
	return Address{
		StreetLines:         addr.Lines(),
		City:                addr.City,
		StateOrProvinceCode: addr.State,
		PostalCode:          addr.PostalCode,
		CountryCode:         country,
	}
}

func ceilInt(v float64) int {
	return int(math.Ceil(v - 1e-9))
}
