// Package ups provides integration with the UPS Rating API.
package ups

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shiprate/pkg/oauth"
	"github.com/tournevent/shiprate/pkg/shipping"
	"github.com/tournevent/shiprate/pkg/units"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const carrierName = "ups"

// Config holds UPS configuration.
type Config struct {
	AccountNumber   string
	ClientID        string
	ClientSecret    string
	BaseURL         string
	NegotiatedRates bool
	UseMock         bool
}

// Client is the UPS rate provider.
type Client struct {
	config    Config
	apiClient APIClient
	converter shipping.CurrencyConverter
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new UPS client. Tokens are cached in cache, which may be shared
// with other providers.
func New(cfg Config, cache oauth.TokenCache, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		tokens := oauth.NewTokenSource(oauth.ClientCredentials{
			TokenURL:     strings.TrimRight(cfg.BaseURL, "/") + "/security/v1/oauth/token",
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			ExtraHeaders: map[string]string{"x-merchant-id": cfg.AccountNumber},
		}, cache)
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			Tokens:  tokens,
			Timeout: 30 * time.Second,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new UPS client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/shiprate/pkg/carrier/ups")
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

// GetRates returns UPS rates for every service available on the lane.
func (c *Client) GetRates(ctx context.Context, shipment *shipping.Shipment) (*shipping.RateResult, error) {
	ctx, span := c.tracer.Start(ctx, "ups.GetRates", trace.WithAttributes(
		attribute.String("shipment.id", shipment.ID),
	))
	defer span.End()

	c.logger.Ctx(ctx).Info("Getting UPS rates",
		zap.String("origin_postal", shipment.Origin.PostalCode),
		zap.String("destination_postal", shipment.Destination.PostalCode),
		zap.Int("package_count", len(shipment.Packages())),
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
			agg.AddProviderError(shipping.NewProviderError(carrierName, apiErr.Code, apiErr.Message).WithSource("rating"))
			return agg.Build(), nil
		}
		c.logger.Ctx(ctx).Error("UPS API error", zap.Error(err))
		return nil, err
	}

	for _, alert := range resp.RateResponse.Response.Alert {
		c.logger.Ctx(ctx).Debug("UPS alert",
			zap.String("code", alert.Code),
			zap.String("description", alert.Description),
		)
	}

	saturday := shipment.Options.SaturdayDelivery
	for _, rated := range resp.RateResponse.RatedShipment {
		code := rated.Service.Code

		charges := rated.TotalCharges
		if c.config.NegotiatedRates && rated.NegotiatedRateCharges != nil && rated.NegotiatedRateCharges.TotalCharge.MonetaryValue != "" {
			charges = rated.NegotiatedRateCharges.TotalCharge
		}

		total, err := decimal.NewFromString(charges.MonetaryValue)
		if err != nil {
			agg.AddInternalError("parsing charges %q for service %s: %v", charges.MonetaryValue, code, err)
			continue
		}

		var delivery *time.Time
		if rated.GuaranteedDelivery != nil {
			if days, err := strconv.Atoi(rated.GuaranteedDelivery.BusinessDaysInTransit); err == nil {
				d := shipping.AddBusinessDays(shipment.Options.ShipDate, days, saturday)
				delivery = &d
			}
		}

		// Only a Saturday arrival honors the request.
		honored := saturday && delivery != nil && delivery.Weekday() == time.Saturday
		agg.AddRate(code, ServiceName(code), total, delivery, shipping.RateOptions{SaturdayDelivery: honored}, charges.CurrencyCode)
	}

	return agg.Build(), nil
}

// ============================================================================
// Conversion Helpers
// ============================================================================

var serviceNames = map[string]string{
	"01": "UPS Next Day Air",
	"02": "UPS 2nd Day Air",
	"03": "UPS Ground",
	"07": "UPS Worldwide Express",
	"08": "UPS Worldwide Expedited",
	"11": "UPS Standard",
	"12": "UPS 3 Day Select",
	"13": "UPS Next Day Air Saver",
	"14": "UPS Next Day Air Early",
	"54": "UPS Worldwide Express Plus",
	"59": "UPS 2nd Day Air A.M.",
	"65": "UPS Worldwide Saver",
}

// ServiceName returns the display name of a UPS service code.
func ServiceName(code string) string {
	if name, ok := serviceNames[code]; ok {
		return name
	}
	return "UPS Service " + code
}

// unitSystemFor rates US-origin shipments in imperial units and everything
// else in metric.
func unitSystemFor(origin shipping.Address) units.System {
	if origin.IsCountry("US") || origin.IsCountry("PR") {
		return units.Imperial
	}
	return units.Metric
}

func buildRateRequest(cfg Config, shipment *shipping.Shipment) *RateRequest {
	sys := unitSystemFor(shipment.Origin)
	weightUnit := "LBS"
	if sys == units.Metric {
		weightUnit = "KGS"
	}

	currency := shipment.Options.CurrencyCode
	if currency == "" {
		currency = "USD"
	}

	packages := make([]Package, 0, len(shipment.Packages()))
	for _, pkg := range shipment.Packages() {
		packaging := pkg.Container()
		if packaging == "" {
			packaging = "02" // customer supplied package
			if pkg.IsDocuments() {
				packaging = "01" // UPS letter
			}
		}

		p := Package{
			PackagingType: CodeDescription{Code: packaging},
			PackageWeight: PackageWeight{
				UnitOfMeasurement: CodeDescription{Code: weightUnit},
				Weight:            formatWeight(pkg.Weight(sys)),
			},
		}
		if !pkg.IsDocuments() {
			p.Dimensions = &Dimensions{
				UnitOfMeasurement: CodeDescription{Code: sys.LengthUnit()},
				Length:            formatLength(pkg.Length(sys)),
				Width:             formatLength(pkg.Width(sys)),
				Height:            formatLength(pkg.Height(sys)),
			}
		}

		var opts PackageServiceOptions
		if pkg.InsuredValue().IsPositive() {
			opts.DeclaredValue = &MonetaryAmount{
				CurrencyCode:  currency,
				MonetaryValue: pkg.InsuredValue().StringFixed(2),
			}
		}
		if pkg.SignatureRequired() {
			opts.DeliveryConfirmation = &DeliveryConfirmation{DCISType: "2"}
		}
		if opts.DeclaredValue != nil || opts.DeliveryConfirmation != nil {
			p.PackageServiceOptions = &opts
		}

		packages = append(packages, p)
	}

	shipper := addressToAPI(shipment.Origin)
	req := &RateRequest{
		RateRequest: RateRequestBody{
			Request: Request{
				RequestOption:        "Shop",
				TransactionReference: TransactionReference{CustomerContext: shipment.ID},
			},
			Shipment: Shipment{
				Shipper:  Party{ShipperNumber: cfg.AccountNumber, Address: shipper},
				ShipFrom: Party{Address: shipper},
				ShipTo:   Party{Address: addressToAPI(shipment.Destination)},
				Package:  packages,
				DeliveryTimeInformation: &DeliveryTimeInformation{
					PackageBillType: "03",
					Pickup:          Pickup{Date: shipment.Options.ShipDate.Format("20060102")},
				},
			},
		},
	}

	if cfg.NegotiatedRates {
		req.RateRequest.Shipment.ShipmentRatingOptions = &ShipmentRatingOptions{}
	}
	if shipment.Options.SaturdayDelivery {
		req.RateRequest.Shipment.ShipmentServiceOptions = &ShipmentServiceOptions{
			SaturdayDeliveryIndicator: indicator(),
		}
	}
	if shipment.Destination.IsResidential {
		req.RateRequest.Shipment.ShipTo.Address.ResidentialAddressIndicator = indicator()
	}

	return req
}

func addressToAPI(addr shipping.Address) Address {
	country := strings.ToUpper(addr.CountryCode)
	if country == "" {
		country = "US"
	}
	return Address{
		AddressLine:       addr.Lines(),
		City:              addr.City,
		StateProvinceCode: addr.State,
		PostalCode:        addr.PostalCode,
		CountryCode:       country,
	}
}

// indicator returns a pointer to the empty string UPS uses for presence flags.
func indicator() *string {
	s := ""
	return &s
}

func formatLength(v float64) string {
	return strconv.FormatFloat(math.Ceil(v*100-1e-9)/100, 'f', 2, 64)
}

// formatWeight rounds up to a tenth so weight is never under-declared.
func formatWeight(v float64) string {
	return fmt.Sprintf("%.1f", math.Ceil(v*10-1e-9)/10)
}
