// Package usps provides integration with the USPS Web Tools RateV4 (domestic)
// and IntlRateV2 (international) APIs.
package usps

import (
	"context"
	"errors"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shiprate/pkg/shipping"
	"github.com/tournevent/shiprate/pkg/units"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	domesticName      = "usps"
	internationalName = "usps-intl"

	apiRevision      = "2"
	mailTypePackage  = "Package"
	mailTypeEnvelope = "Envelope"
	currencyUSD      = "USD"
)

// Config holds USPS configuration. Both providers share one Web Tools user id.
type Config struct {
	UserID          string
	BaseURL         string
	CommercialRates bool // use Commercial Base pricing when returned
	UseMock         bool
}

func newAPIClient(cfg Config) APIClient {
	if cfg.UseMock {
		return NewMockAPIClient()
	}
	return NewHTTPAPIClient(HTTPAPIClientConfig{
		BaseURL: cfg.BaseURL,
		UserID:  cfg.UserID,
		Timeout: 30 * time.Second,
	})
}

type base struct {
	config    Config
	apiClient APIClient
	converter shipping.CurrencyConverter
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

func newBase(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) base {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/shiprate/pkg/carrier/usps")
	}
	return base{config: cfg, apiClient: apiClient, logger: logger, tracer: tracer}
}

// recordError maps a failed API call into agg. Errors that are not USPS
// rejections are returned for the caller to propagate.
func (b *base) recordError(ctx context.Context, agg *shipping.RateResultAggregator, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		agg.AddProviderError(providerError(agg.Provider(), apiErr.Number, apiErr.Description, apiErr.Source, apiErr.HelpFile, apiErr.HelpContext))
		return nil
	}
	b.logger.Ctx(ctx).Error("USPS API error", zap.String("provider", agg.Provider()), zap.Error(err))
	return err
}

// ============================================================================
// Domestic
// ============================================================================

// Client is the USPS domestic (RateV4) rate provider. Shipments that do not
// both start and end in the US are not rated.
type Client struct {
	base
}

// New creates a new USPS domestic client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	return NewWithAPIClient(cfg, newAPIClient(cfg), logger, tracer)
}

// NewWithAPIClient creates a new USPS domestic client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	return &Client{base: newBase(cfg, apiClient, logger, tracer)}
}

// WithCurrencyConverter converts rates to the shipment's preferred currency.
func (c *Client) WithCurrencyConverter(converter shipping.CurrencyConverter) *Client {
	c.converter = converter
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return domesticName
}

// GetRates returns RateV4 postage summed over all packages.
func (c *Client) GetRates(ctx context.Context, shipment *shipping.Shipment) (*shipping.RateResult, error) {
	ctx, span := c.tracer.Start(ctx, "usps.GetDomesticRates", trace.WithAttributes(
		attribute.String("shipment.id", shipment.ID),
		attribute.Int("package.count", len(shipment.Packages())),
	))
	defer span.End()

	agg := shipping.NewRateResultAggregator(domesticName).
		WithCurrencyConversion(ctx, c.converter, shipment.Options.CurrencyCode)

	if !isUS(shipment.Origin) || !isUS(shipment.Destination) {
		c.logger.Ctx(ctx).Debug("Skipping USPS domestic rating for non-domestic shipment",
			zap.String("origin_country", shipment.Origin.CountryCode),
			zap.String("destination_country", shipment.Destination.CountryCode),
		)
		return agg.Build(), nil
	}

	c.logger.Ctx(ctx).Info("Getting USPS domestic rates",
		zap.String("origin_postal", shipment.Origin.PostalCode),
		zap.String("destination_postal", shipment.Destination.PostalCode),
	)

	resp, err := c.apiClient.GetDomesticRates(ctx, buildDomesticRequest(c.config, shipment))
	if err != nil {
		if err := c.recordError(ctx, agg, err); err != nil {
			return nil, err
		}
		return agg.Build(), nil
	}

	if packageErrors(agg, resp.Packages, func(p DomesticPackageRates) *ErrorDetail { return p.Error }) {
		return agg.Build(), nil
	}

	quotes := newQuoteSet()
	for i, pkg := range resp.Packages {
		for _, postage := range pkg.Postage {
			rate := postage.Rate
			if c.config.CommercialRates && postage.CommercialRate != "" {
				rate = postage.CommercialRate
			}
			charge, err := decimal.NewFromString(strings.TrimSpace(rate))
			if err != nil {
				agg.AddInternalError("invalid postage %q for service %s", rate, postage.ClassID)
				continue
			}
			quotes.add(i, postage.ClassID, cleanServiceName(postage.MailService), charge,
				parseDate("2006-01-02", postage.CommitmentDate, shipment.Options.ShipDate.Location()))
		}
	}

	for _, q := range quotes.complete(len(resp.Packages)) {
		saturday := shipment.Options.SaturdayDelivery && q.delivery != nil && q.delivery.Weekday() == time.Saturday
		agg.AddRate(q.code, q.name, q.total, q.delivery, shipping.RateOptions{SaturdayDelivery: saturday}, currencyUSD)
	}
	return agg.Build(), nil
}

// ============================================================================
// International
// ============================================================================

// IntlClient is the USPS international (IntlRateV2) rate provider. Only
// shipments from the US to another country are rated.
type IntlClient struct {
	base
}

// NewInternational creates a new USPS international client.
func NewInternational(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *IntlClient {
	return NewInternationalWithAPIClient(cfg, newAPIClient(cfg), logger, tracer)
}

// NewInternationalWithAPIClient creates a new USPS international client with
// a custom API client.
func NewInternationalWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *IntlClient {
	return &IntlClient{base: newBase(cfg, apiClient, logger, tracer)}
}

// WithCurrencyConverter converts rates to the shipment's preferred currency.
func (c *IntlClient) WithCurrencyConverter(converter shipping.CurrencyConverter) *IntlClient {
	c.converter = converter
	return c
}

// Name returns the provider name.
func (c *IntlClient) Name() string {
	return internationalName
}

// GetRates returns IntlRateV2 postage summed over all packages.
func (c *IntlClient) GetRates(ctx context.Context, shipment *shipping.Shipment) (*shipping.RateResult, error) {
	ctx, span := c.tracer.Start(ctx, "usps.GetInternationalRates", trace.WithAttributes(
		attribute.String("shipment.id", shipment.ID),
		attribute.String("destination.country", shipment.Destination.CountryCode),
	))
	defer span.End()

	agg := shipping.NewRateResultAggregator(internationalName).
		WithCurrencyConversion(ctx, c.converter, shipment.Options.CurrencyCode)

	if !isUS(shipment.Origin) || isUS(shipment.Destination) {
		c.logger.Ctx(ctx).Debug("Skipping USPS international rating",
			zap.String("origin_country", shipment.Origin.CountryCode),
			zap.String("destination_country", shipment.Destination.CountryCode),
		)
		return agg.Build(), nil
	}

	c.logger.Ctx(ctx).Info("Getting USPS international rates",
		zap.String("origin_postal", shipment.Origin.PostalCode),
		zap.String("destination_country", shipment.Destination.CountryCode),
	)

	resp, err := c.apiClient.GetInternationalRates(ctx, buildInternationalRequest(c.config, shipment))
	if err != nil {
		if err := c.recordError(ctx, agg, err); err != nil {
			return nil, err
		}
		return agg.Build(), nil
	}

	if packageErrors(agg, resp.Packages, func(p IntlPackageRates) *ErrorDetail { return p.Error }) {
		return agg.Build(), nil
	}

	quotes := newQuoteSet()
	for i, pkg := range resp.Packages {
		for _, svc := range pkg.Services {
			postage := svc.Postage
			if c.config.CommercialRates && svc.CommercialPostage != "" {
				postage = svc.CommercialPostage
			}
			charge, err := decimal.NewFromString(strings.TrimSpace(postage))
			if err != nil {
				agg.AddInternalError("invalid postage %q for service %s", postage, svc.ID)
				continue
			}
			quotes.add(i, svc.ID, cleanServiceName(svc.SvcDescription), charge,
				parseDate("1/2/2006", svc.GuaranteeAvailability, shipment.Options.ShipDate.Location()))
		}
	}

	for _, q := range quotes.complete(len(resp.Packages)) {
		agg.AddRate(q.code, q.name, q.total, q.delivery, shipping.RateOptions{}, currencyUSD)
	}
	return agg.Build(), nil
}

// ============================================================================
// Conversion Helpers
// ============================================================================

func buildDomesticRequest(cfg Config, shipment *shipping.Shipment) *RateV4Request {
	service := "ALL"
	if cfg.CommercialRates {
		service = "ONLINE"
	}

	req := &RateV4Request{Revision: apiRevision}
	for i, pkg := range shipment.Packages() {
		lbs, oz := units.PoundsAndOunces(pkg.Weight(units.Imperial))
		container := pkg.Container()
		if container == "" {
			container = "VARIABLE"
		}
		p := DomesticPackage{
			ID:             strconv.Itoa(i),
			Service:        service,
			ZipOrigination: zip5(shipment.Origin.PostalCode),
			ZipDestination: zip5(shipment.Destination.PostalCode),
			Pounds:         lbs,
			Ounces:         strconv.FormatFloat(oz, 'f', -1, 64),
			Container:      container,
			Machinable:     strings.ToUpper(strconv.FormatBool(isMachinable(pkg))),
			ShipDate:       shipment.Options.ShipDate.Format("2006-01-02"),
		}
		if !pkg.IsDocuments() {
			p.Width = formatTenths(pkg.Width(units.Imperial))
			p.Length = formatTenths(pkg.Length(units.Imperial))
			p.Height = formatTenths(pkg.Height(units.Imperial))
			p.Girth = formatTenths(pkg.Girth(units.Imperial))
		}
		if pkg.InsuredValue().IsPositive() {
			p.Value = pkg.InsuredValue().StringFixed(2)
		}
		req.Packages = append(req.Packages, p)
	}
	return req
}

func buildInternationalRequest(cfg Config, shipment *shipping.Shipment) *IntlRateV2Request {
	req := &IntlRateV2Request{Revision: apiRevision}
	for i, pkg := range shipment.Packages() {
		lbs, oz := units.PoundsAndOunces(pkg.Weight(units.Imperial))
		p := IntlPackage{
			ID:                    strconv.Itoa(i),
			Pounds:                lbs,
			Ounces:                strconv.FormatFloat(oz, 'f', -1, 64),
			Machinable:            strings.ToUpper(strconv.FormatBool(isMachinable(pkg))),
			MailType:              mailTypePackage,
			ValueOfContents:       pkg.InsuredValue().StringFixed(2),
			Country:               CountryName(shipment.Destination.CountryCode),
			Container:             pkg.Container(),
			OriginZip:             zip5(shipment.Origin.PostalCode),
			AcceptanceDateTime:    shipment.Options.ShipDate.Format(time.RFC3339),
			DestinationPostalCode: shipment.Destination.PostalCode,
		}
		if pkg.IsDocuments() {
			p.MailType = mailTypeEnvelope
		} else {
			if p.Container == "" {
				p.Container = "RECTANGULAR"
			}
			p.Width = formatTenths(pkg.Width(units.Imperial))
			p.Length = formatTenths(pkg.Length(units.Imperial))
			p.Height = formatTenths(pkg.Height(units.Imperial))
			p.Girth = formatTenths(pkg.Girth(units.Imperial))
		}
		if cfg.CommercialRates {
			p.CommercialFlag = "Y"
		}
		req.Packages = append(req.Packages, p)
	}
	return req
}

// packageErrors records every package-level error and reports whether any
// was found. Rates are not summed when a package could not be priced.
func packageErrors[T any](agg *shipping.RateResultAggregator, packages []T, errOf func(T) *ErrorDetail) bool {
	found := false
	for _, p := range packages {
		if e := errOf(p); e != nil {
			agg.AddProviderError(providerError(agg.Provider(),
				strings.TrimSpace(e.Number), strings.TrimSpace(e.Description), strings.TrimSpace(e.Source),
				strings.TrimSpace(e.HelpFile), strings.TrimSpace(e.HelpContext)))
			found = true
		}
	}
	return found
}

func providerError(provider, number, description, source, helpFile, helpContext string) shipping.ProviderError {
	return shipping.NewProviderError(provider, number, description).
		WithSource(source).
		WithHelp(helpFile, helpContext)
}

type serviceQuote struct {
	code     string
	name     string
	total    decimal.Decimal
	delivery *time.Time
	packages int
	lastPkg  int
}

// quoteKey identifies a service. USPS reuses a class id for several mail
// services (class 0 covers every First-Class variant), so the cleaned name
// is part of the key.
type quoteKey struct {
	code string
	name string
}

// quoteSet sums one service's postage over the packages of a shipment.
type quoteSet struct {
	order []quoteKey
	byKey map[quoteKey]*serviceQuote
}

func newQuoteSet() *quoteSet {
	return &quoteSet{byKey: make(map[quoteKey]*serviceQuote)}
}

// add records the postage of package pkgIndex. A service repeated within the
// same package keeps its first price.
func (s *quoteSet) add(pkgIndex int, code, name string, charge decimal.Decimal, delivery *time.Time) {
	key := quoteKey{code: code, name: name}
	q, ok := s.byKey[key]
	if !ok {
		q = &serviceQuote{code: code, name: name, total: decimal.Zero, lastPkg: -1}
		s.byKey[key] = q
		s.order = append(s.order, key)
	}
	if q.lastPkg == pkgIndex {
		return
	}
	q.lastPkg = pkgIndex
	q.total = q.total.Add(charge)
	q.packages++
	if delivery != nil && (q.delivery == nil || delivery.After(*q.delivery)) {
		q.delivery = delivery
	}
}

// complete returns, in first-seen order, the services priced for all n packages.
func (s *quoteSet) complete(n int) []*serviceQuote {
	out := make([]*serviceQuote, 0, len(s.order))
	for _, key := range s.order {
		if q := s.byKey[key]; q.packages == n {
			out = append(out, q)
		}
	}
	return out
}

var markup = regexp.MustCompile(`<[^>]*>`)

// cleanServiceName removes the HTML markup USPS embeds in service names,
// e.g. "Priority Mail 2-Day&lt;sup&gt;&#8482;&lt;/sup&gt;".
func cleanServiceName(s string) string {
	s = markup.ReplaceAllString(html.UnescapeString(s), "")
	return strings.Join(strings.Fields(s), " ")
}

func parseDate(layout, value string, loc *time.Location) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := time.ParseInLocation(layout, value, loc)
	if err != nil {
		return nil
	}
	return &t
}

func isUS(addr shipping.Address) bool {
	return addr.IsCountry("US") || addr.IsCountry("PR")
}

// isMachinable applies the USPS parcel limits: at most 27 x 17 x 17 inches
// and 35 pounds.
func isMachinable(pkg shipping.Package) bool {
	if pkg.IsDocuments() {
		return true
	}
	dims := []float64{pkg.Length(units.Imperial), pkg.Width(units.Imperial), pkg.Height(units.Imperial)}
	longest, second, third := sortedDesc(dims)
	return longest <= 27 && second <= 17 && third <= 17 && pkg.Weight(units.Imperial) <= 35
}

func sortedDesc(d []float64) (float64, float64, float64) {
	a, b, c := d[0], d[1], d[2]
	if a < b {
		a, b = b, a
	}
	if b < c {
		b, c = c, b
	}
	if a < b {
		a, b = b, a
	}
	return a, b, c
}

func zip5(postal string) string {
	postal = strings.TrimSpace(postal)
	if i := strings.IndexByte(postal, '-'); i >= 0 {
		postal = postal[:i]
	}
	if len(postal) > 5 {
		postal = postal[:5]
	}
	return postal
}

func formatTenths(v float64) string {
	return strconv.FormatFloat(math.Ceil(v*10-1e-9)/10, 'f', 1, 64)
}
