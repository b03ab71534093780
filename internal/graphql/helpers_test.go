package graphql

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shiprate/pkg/shipping"
	"github.com/tournevent/shiprate/pkg/units"
)

func ptr[T any](v T) *T { return &v }

func TestAddressInputToModel(t *testing.T) {
	input := &AddressInput{
		Line1:       ptr("11 Broad St"),
		Line2:       ptr("Suite 4"),
		City:        ptr("Guilford"),
		State:       ptr("ct"),
		PostalCode:  " 06405 ",
		CountryCode: ptr("us"),
		Residential: ptr(true),
	}

	result := addressInputToModel(input)

	assert.Equal(t, "11 Broad St", result.Line1)
	assert.Equal(t, "Suite 4", result.Line2)
	assert.Equal(t, "Guilford", result.City)
	assert.Equal(t, "CT", result.State)
	assert.Equal(t, "06405", result.PostalCode)
	assert.Equal(t, "US", result.CountryCode)
	assert.True(t, result.IsResidential)
}

func TestAddressInputToModel_Nil(t *testing.T) {
	assert.Equal(t, shipping.Address{}, addressInputToModel(nil))
}

func TestAddressInputToModel_DefaultCountry(t *testing.T) {
	result := addressInputToModel(&AddressInput{PostalCode: "20852"})

	assert.Equal(t, "US", result.CountryCode)
}

func TestPackagesInputToModel(t *testing.T) {
	inputs := []*PackageInput{
		{
			Length:            ptr(12.0),
			Width:             ptr(10.0),
			Height:            ptr(8.0),
			Weight:            5,
			InsuredValue:      ptr(decimal.RequireFromString("150.00")),
			Container:         ptr("02"),
			SignatureRequired: ptr(true),
		},
		nil,
		{Weight: 2, Units: ptr(UnitSystemMetric), Documents: ptr(true)},
	}

	result := packagesInputToModel(inputs)

	require.Len(t, result, 2)
	box := result[0]
	assert.Equal(t, units.Imperial, box.System())
	assert.Equal(t, 12.0, box.Length(units.Imperial))
	assert.Equal(t, 5.0, box.Weight(units.Imperial))
	assert.Equal(t, "150", box.InsuredValue().String())
	assert.Equal(t, "02", box.Container())
	assert.True(t, box.SignatureRequired())
	assert.False(t, box.IsDocuments())

	docs := result[1]
	assert.Equal(t, units.Metric, docs.System())
	assert.Equal(t, 2.0, docs.Weight(units.Metric))
	assert.True(t, docs.IsDocuments())
	assert.True(t, docs.InsuredValue().IsZero())
}

func TestOptionsInputToModel(t *testing.T) {
	opts, err := optionsInputToModel(&RateOptionsInput{
		ShipDate:         ptr("2024-02-29"),
		SaturdayDelivery: ptr(true),
		Currency:         ptr("cad"),
		FedExOneRate:     ptr(true),
		Providers:        []string{"ups", "usps"},
	})

	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC), opts.ShipDate)
	assert.True(t, opts.SaturdayDelivery)
	assert.Equal(t, "CAD", opts.CurrencyCode)
	assert.True(t, opts.FedExOneRate)
	assert.Equal(t, []string{"ups", "usps"}, opts.Providers)
}

func TestOptionsInputToModel_RFC3339(t *testing.T) {
	opts, err := optionsInputToModel(&RateOptionsInput{ShipDate: ptr("2024-02-29T14:30:00-05:00")})

	require.NoError(t, err)
	assert.Equal(t, 14, opts.ShipDate.Hour())
}

func TestOptionsInputToModel_Nil(t *testing.T) {
	opts, err := optionsInputToModel(nil)

	require.NoError(t, err)
	assert.Equal(t, &shipping.ShipmentOptions{}, opts)
}

func TestOptionsInputToModel_BadShipDate(t *testing.T) {
	_, err := optionsInputToModel(&RateOptionsInput{ShipDate: ptr("next tuesday")})

	require.Error(t, err)
	assert.ErrorIs(t, err, shipping.ErrInvalidRequest)
}

func TestShipmentToGraphQL(t *testing.T) {
	delivery := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	s := shipping.NewShipment("shipment-1", shipping.Address{}, shipping.Address{}, nil, shipping.ShipmentOptions{})
	s.Rates = []shipping.Rate{
		{Provider: "ups", ServiceCode: "01", Name: "UPS Next Day Air", TotalCharges: decimal.RequireFromString("44.1"), CurrencyCode: "USD", GuaranteedDelivery: &delivery},
		{Provider: "usps", ServiceCode: "1058", Name: "Ground Advantage", TotalCharges: decimal.RequireFromString("8.1"), CurrencyCode: "USD"},
	}
	s.Errors = []shipping.ProviderError{shipping.NewProviderError("dhl", "999", "failed").WithSource("rate")}
	s.InternalErrors = []string{"fedex: timeout"}

	resp := shipmentToGraphQL(s)

	assert.Equal(t, "shipment-1", resp.ShipmentID)
	require.Len(t, resp.Rates, 2)
	assert.Equal(t, "usps", resp.Rates[0].Provider, "rates are sorted by price")
	assert.Equal(t, "8.10", resp.Rates[0].TotalCharges)
	assert.Nil(t, resp.Rates[0].GuaranteedDelivery)
	require.NotNil(t, resp.Rates[1].GuaranteedDelivery)
	assert.Equal(t, "2024-03-01T10:30:00Z", *resp.Rates[1].GuaranteedDelivery)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "rate", *resp.Errors[0].Source)
	assert.Nil(t, resp.Errors[0].HelpFile)
	assert.Equal(t, []string{"fedex: timeout"}, resp.InternalErrors)
	assert.Equal(t, "ups", s.Rates[0].Provider, "shipment rates are left in place")
}
