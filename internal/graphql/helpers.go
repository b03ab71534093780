package graphql

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shiprate/pkg/shipping"
	"github.com/tournevent/shiprate/pkg/units"
)

const (
	dateLayout     = "2006-01-02"
	deliveryLayout = time.RFC3339
)

func addressInputToModel(input *AddressInput) shipping.Address {
	if input == nil {
		return shipping.Address{}
	}
	addr := shipping.Address{
		PostalCode: strings.TrimSpace(input.PostalCode),
	}
	if input.Line1 != nil {
		addr.Line1 = *input.Line1
	}
	if input.Line2 != nil {
		addr.Line2 = *input.Line2
	}
	if input.Line3 != nil {
		addr.Line3 = *input.Line3
	}
	if input.City != nil {
		addr.City = *input.City
	}
	if input.State != nil {
		addr.State = strings.ToUpper(*input.State)
	}
	if input.CountryCode != nil && *input.CountryCode != "" {
		addr.CountryCode = strings.ToUpper(*input.CountryCode)
	} else {
		addr.CountryCode = "US"
	}
	if input.Residential != nil {
		addr.IsResidential = *input.Residential
	}
	return addr
}

func packagesInputToModel(inputs []*PackageInput) []shipping.Package {
	packages := make([]shipping.Package, 0, len(inputs))
	for _, input := range inputs {
		if input == nil {
			continue
		}
		packages = append(packages, packageInputToModel(input))
	}
	return packages
}

func packageInputToModel(input *PackageInput) shipping.Package {
	sys := units.Imperial
	if input.Units != nil {
		sys = unitSystemToModel(*input.Units)
	}

	insured := decimal.Zero
	if input.InsuredValue != nil {
		insured = *input.InsuredValue
	}

	var opts []shipping.PackageOption
	if input.Container != nil && *input.Container != "" {
		opts = append(opts, shipping.WithContainer(*input.Container))
	}
	if input.SignatureRequired != nil && *input.SignatureRequired {
		opts = append(opts, shipping.WithSignatureRequired())
	}

	if input.Documents != nil && *input.Documents {
		return shipping.NewDocumentsPackage(input.Weight, insured, sys, opts...)
	}
	return shipping.NewPackage(
		floatOrZero(input.Length),
		floatOrZero(input.Width),
		floatOrZero(input.Height),
		input.Weight, insured, sys, opts...,
	)
}

func optionsInputToModel(input *RateOptionsInput) (*shipping.ShipmentOptions, error) {
	opts := &shipping.ShipmentOptions{}
	if input == nil {
		return opts, nil
	}
	if input.ShipDate != nil && *input.ShipDate != "" {
		shipDate, err := parseShipDate(*input.ShipDate)
		if err != nil {
			return nil, err
		}
		opts.ShipDate = shipDate
	}
	if input.SaturdayDelivery != nil {
		opts.SaturdayDelivery = *input.SaturdayDelivery
	}
	if input.Currency != nil {
		opts.CurrencyCode = strings.ToUpper(*input.Currency)
	}
	if input.FedExOneRate != nil {
		opts.FedExOneRate = *input.FedExOneRate
	}
	if len(input.Providers) > 0 {
		opts.Providers = append([]string(nil), input.Providers...)
	}
	return opts, nil
}

// parseShipDate accepts RFC 3339 timestamps or plain dates, which are taken
// as 09:00 UTC.
func parseShipDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: shipDate %q must be YYYY-MM-DD or RFC 3339", shipping.ErrInvalidRequest, s)
	}
	return d.Add(9 * time.Hour), nil
}

func shipmentToGraphQL(s *shipping.Shipment) *RateResponse {
	rates := append([]shipping.Rate(nil), s.Rates...)
	shipping.SortRates(rates)

	resp := &RateResponse{
		ShipmentID:     s.ID,
		Rates:          make([]*Rate, 0, len(rates)),
		Errors:         make([]*ProviderError, 0, len(s.Errors)),
		InternalErrors: append([]string{}, s.InternalErrors...),
	}
	for i := range rates {
		resp.Rates = append(resp.Rates, rateToGraphQL(&rates[i]))
	}
	for i := range s.Errors {
		resp.Errors = append(resp.Errors, providerErrorToGraphQL(&s.Errors[i]))
	}
	return resp
}

func rateToGraphQL(rate *shipping.Rate) *Rate {
	r := &Rate{
		Provider:         rate.Provider,
		ServiceCode:      rate.ServiceCode,
		Name:             rate.Name,
		TotalCharges:     rate.TotalCharges.StringFixed(2),
		Currency:         rate.CurrencyCode,
		SaturdayDelivery: rate.Options.SaturdayDelivery,
	}
	if rate.GuaranteedDelivery != nil {
		d := rate.GuaranteedDelivery.Format(deliveryLayout)
		r.GuaranteedDelivery = &d
	}
	return r
}

func providerErrorToGraphQL(e *shipping.ProviderError) *ProviderError {
	return &ProviderError{
		Provider:    e.Provider,
		Number:      e.Number,
		Description: e.Description,
		Source:      optionalString(e.Source),
		HelpContext: optionalString(e.HelpContext),
		HelpFile:    optionalString(e.HelpFile),
	}
}

func unitSystemToModel(u UnitSystem) units.System {
	if u == UnitSystemMetric {
		return units.Metric
	}
	return units.Imperial
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
