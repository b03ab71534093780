// Package shipping aggregates shipping-rate quotes from independent carrier
// providers behind one uniform model.
package shipping

import (
	"context"
	"time"
)

// Provider defines the interface that every carrier integration implements.
type Provider interface {
	// Name returns the provider identifier (e.g., "ups", "fedex", "usps").
	Name() string

	// GetRates rates the shipment. Business failures such as a bad postal
	// code are reported inside the result; a returned error is treated as an
	// internal failure of this provider only. The shipment must not be modified.
	GetRates(ctx context.Context, shipment *Shipment) (*RateResult, error)
}

// Observer is notified once per provider call with the call's outcome.
type Observer interface {
	ObserveProvider(ctx context.Context, provider string, elapsed time.Duration, result *RateResult)
}
