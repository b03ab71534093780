// Package mock provides a configurable provider implementation for testing.
package mock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shiprate/pkg/shipping"
)

// Provider is a mock provider. With no hook set it returns a standard and an
// express rate in USD.
type Provider struct {
	name    string
	calls   atomic.Int64
	Latency time.Duration

	OnGetRates func(ctx context.Context, shipment *shipping.Shipment) (*shipping.RateResult, error)
}

// New creates a new mock provider.
func New(name string) *Provider {
	return &Provider{name: name}
}

// Failing creates a provider whose every call returns err.
func Failing(name string, err error) *Provider {
	p := New(name)
	p.OnGetRates = func(context.Context, *shipping.Shipment) (*shipping.RateResult, error) {
		return nil, err
	}
	return p
}

// Panicking creates a provider whose every call panics with v.
func Panicking(name string, v any) *Provider {
	p := New(name)
	p.OnGetRates = func(context.Context, *shipping.Shipment) (*shipping.RateResult, error) {
		panic(v)
	}
	return p
}

// WithRate creates a provider that returns exactly one rate.
func WithRate(name, serviceCode, serviceName string, total decimal.Decimal, currency string) *Provider {
	p := New(name)
	p.OnGetRates = func(context.Context, *shipping.Shipment) (*shipping.RateResult, error) {
		agg := shipping.NewRateResultAggregator(name)
		agg.AddRate(serviceCode, serviceName, total, nil, shipping.RateOptions{}, currency)
		return agg.Build(), nil
	}
	return p
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return p.name
}

// Calls returns how many times GetRates was invoked.
func (p *Provider) Calls() int {
	return int(p.calls.Load())
}

// GetRates returns mock shipping rates.
func (p *Provider) GetRates(ctx context.Context, shipment *shipping.Shipment) (*shipping.RateResult, error) {
	p.calls.Add(1)

	if p.Latency > 0 {
		select {
		case <-time.After(p.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if p.OnGetRates != nil {
		return p.OnGetRates(ctx, shipment)
	}

	now := time.Now()
	standard := now.Add(5 * 24 * time.Hour)
	express := now.Add(2 * 24 * time.Hour)

	agg := shipping.NewRateResultAggregator(p.name)
	agg.AddRate("STANDARD", fmt.Sprintf("%s Standard", p.name), decimal.RequireFromString("15.82"), &standard,
		shipping.RateOptions{}, "USD")
	agg.AddRate("EXPRESS", fmt.Sprintf("%s Express", p.name), decimal.RequireFromString("29.95"), &express,
		shipping.RateOptions{SaturdayDelivery: shipment.Options.SaturdayDelivery}, "USD")
	return agg.Build(), nil
}

var _ shipping.Provider = (*Provider)(nil)
