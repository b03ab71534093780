package shipping

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RateResult is one provider's rates and errors, produced in isolation and
// merged into the Shipment by RateManager.
type RateResult struct {
	Rates          []Rate
	Errors         []ProviderError
	InternalErrors []string
}

// CurrencyConverter converts an amount between ISO 4217 currencies.
type CurrencyConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// RateResultAggregator collects a single provider's output. It is confined to
// that provider's goroutine and needs no locking.
type RateResultAggregator struct {
	ctx       context.Context
	provider  string
	converter CurrencyConverter
	target    string
	result    RateResult
}

// NewRateResultAggregator creates an aggregator for the named provider.
func NewRateResultAggregator(provider string) *RateResultAggregator {
	return &RateResultAggregator{
		ctx:      context.Background(),
		provider: provider,
	}
}

// WithCurrencyConversion converts every added rate to target. An empty target
// or a nil converter disables conversion.
func (a *RateResultAggregator) WithCurrencyConversion(ctx context.Context, converter CurrencyConverter, target string) *RateResultAggregator {
	a.ctx = ctx
	a.converter = converter
	a.target = strings.ToUpper(target)
	return a
}

// Provider returns the provider name rates are attributed to.
func (a *RateResultAggregator) Provider() string {
	return a.provider
}

// AddRate records one normalized rate.
func (a *RateResultAggregator) AddRate(serviceCode, name string, totalCharges decimal.Decimal, deliveryDate *time.Time, options RateOptions, currencyCode string) {
	currencyCode = strings.ToUpper(currencyCode)
	if a.converter != nil && a.target != "" && currencyCode != "" && currencyCode != a.target {
		converted, err := a.converter.Convert(a.ctx, totalCharges, currencyCode, a.target)
		if err != nil {
			a.AddInternalError("converting rate %s from %s to %s: %v", serviceCode, currencyCode, a.target, err)
			return
		}
		totalCharges = converted
		currencyCode = a.target
	}

	a.result.Rates = append(a.result.Rates, Rate{
		Provider:           a.provider,
		ServiceCode:        serviceCode,
		Name:               name,
		TotalCharges:       totalCharges,
		CurrencyCode:       currencyCode,
		GuaranteedDelivery: deliveryDate,
		Options:            options,
	})
}

// AddProviderError records one business error.
func (a *RateResultAggregator) AddProviderError(err ProviderError) {
	if err.Provider == "" {
		err.Provider = a.provider
	}
	a.result.Errors = append(a.result.Errors, err)
}

// AddInternalError records one formatted internal failure message.
func (a *RateResultAggregator) AddInternalError(format string, args ...any) {
	a.result.InternalErrors = append(a.result.InternalErrors, fmt.Sprintf(format, args...))
}

// Build returns a snapshot of everything recorded so far.
func (a *RateResultAggregator) Build() *RateResult {
	return &RateResult{
		Rates:          append([]Rate{}, a.result.Rates...),
		Errors:         append([]ProviderError{}, a.result.Errors...),
		InternalErrors: append([]string{}, a.result.InternalErrors...),
	}
}
