package shipping_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shiprate/pkg/shipping"
)

type fixedConverter struct {
	rates map[string]decimal.Decimal
}

func (c fixedConverter) Convert(_ context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	rate, ok := c.rates[from+to]
	if !ok {
		return decimal.Zero, errors.New("unsupported pair")
	}
	return amount.Mul(rate), nil
}

func TestRateResultAggregator_AddRate(t *testing.T) {
	delivery := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	agg := shipping.NewRateResultAggregator("ups")
	agg.AddRate("03", "UPS Ground", decimal.RequireFromString("12.34"), &delivery, shipping.RateOptions{}, "usd")

	res := agg.Build()
	require.Len(t, res.Rates, 1)
	rate := res.Rates[0]
	assert.Equal(t, "ups", rate.Provider)
	assert.Equal(t, "03", rate.ServiceCode)
	assert.Equal(t, "UPS Ground", rate.Name)
	assert.Equal(t, "12.34", rate.TotalCharges.String())
	assert.Equal(t, "USD", rate.CurrencyCode)
	assert.Equal(t, &delivery, rate.GuaranteedDelivery)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.InternalErrors)
}

func TestRateResultAggregator_Errors(t *testing.T) {
	agg := shipping.NewRateResultAggregator("fedex")
	agg.AddProviderError(shipping.NewProviderError("", "CODE", "bad lane"))
	agg.AddInternalError("decoding %s: %v", "reply", errors.New("EOF"))

	res := agg.Build()
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "fedex", res.Errors[0].Provider)
	assert.Equal(t, []string{"decoding reply: EOF"}, res.InternalErrors)
	assert.Equal(t, "fedex", agg.Provider())
}

func TestRateResultAggregator_CurrencyConversion(t *testing.T) {
	converter := fixedConverter{rates: map[string]decimal.Decimal{
		"CADUSD": decimal.RequireFromString("0.75"),
	}}

	agg := shipping.NewRateResultAggregator("dhl").
		WithCurrencyConversion(context.Background(), converter, "usd")
	agg.AddRate("N", "Next Day", decimal.NewFromInt(20), nil, shipping.RateOptions{}, "CAD")
	agg.AddRate("G", "Ground", decimal.NewFromInt(8), nil, shipping.RateOptions{}, "USD")
	agg.AddRate("X", "Express", decimal.NewFromInt(30), nil, shipping.RateOptions{}, "EUR")

	res := agg.Build()
	require.Len(t, res.Rates, 2)
	assert.Equal(t, "15", res.Rates[0].TotalCharges.String())
	assert.Equal(t, "USD", res.Rates[0].CurrencyCode)
	assert.Equal(t, "8", res.Rates[1].TotalCharges.String())
	require.Len(t, res.InternalErrors, 1)
	assert.Contains(t, res.InternalErrors[0], "converting rate X from EUR to USD")
}

func TestRateResultAggregator_BuildIsSnapshot(t *testing.T) {
	agg := shipping.NewRateResultAggregator("ups")
	agg.AddRate("01", "Next Day Air", decimal.NewFromInt(50), nil, shipping.RateOptions{}, "USD")

	first := agg.Build()
	agg.AddRate("02", "2nd Day Air", decimal.NewFromInt(30), nil, shipping.RateOptions{}, "USD")

	assert.Len(t, first.Rates, 1)
	assert.Len(t, agg.Build().Rates, 2)
}
