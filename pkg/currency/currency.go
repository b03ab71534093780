// Package currency converts monetary amounts between ISO 4217 currencies.
package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedCurrency indicates no exchange rate is known for a currency.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// StaticConverter converts using a fixed table of rates relative to a base
// currency, expressed as units of the currency per one unit of base.
type StaticConverter struct {
	base    string
	perBase map[string]decimal.Decimal
}

// NewStaticConverter creates a converter. The base currency always has rate 1.
func NewStaticConverter(base string, rates map[string]decimal.Decimal) (*StaticConverter, error) {
	base = strings.ToUpper(base)
	if base == "" {
		return nil, fmt.Errorf("base currency is required")
	}

	perBase := make(map[string]decimal.Decimal, len(rates)+1)
	for code, rate := range rates {
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive, got %s", code, rate)
		}
		perBase[strings.ToUpper(code)] = rate
	}
	perBase[base] = decimal.NewFromInt(1)

	return &StaticConverter{base: base, perBase: perBase}, nil
}

// ParseRates converts string rates, as read from configuration, to decimals.
func ParseRates(raw map[string]string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal, len(raw))
	for code, v := range raw {
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("parsing rate for %s: %w", code, err)
		}
		rates[strings.ToUpper(strings.TrimSpace(code))] = d
	}
	return rates, nil
}

// Base returns the base currency code.
func (c *StaticConverter) Base() string {
	return c.base
}

// Supports reports whether code can be converted.
func (c *StaticConverter) Supports(code string) bool {
	_, ok := c.perBase[strings.ToUpper(code)]
	return ok
}

// Convert converts amount from one currency to another through the base currency.
func (c *StaticConverter) Convert(_ context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return amount, nil
	}

	fromRate, ok := c.perBase[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, from)
	}
	toRate, ok := c.perBase[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, to)
	}

	return amount.Div(fromRate).Mul(toRate), nil
}
