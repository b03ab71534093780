package dhl

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetRates func(ctx context.Context, req *RateRequest) (*RateResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// GetRates returns mock quotes. Domestic lanes get Express Domestic; other
// lanes get Express Worldwide (document or non-document) and Express 12:00.
func (m *MockAPIClient) GetRates(ctx context.Context, req *RateRequest) (*RateResponse, error) {
	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.SimulateErrors {
		return &RateResponse{Notifications: []Notification{
			{Code: "999", Message: "Simulated rate book error"},
		}}, nil
	}

	if m.OnGetRates != nil {
		return m.OnGetRates(ctx, req)
	}

	ship := req.ShipTimestamp
	at := func(days, hour int) *time.Time {
		d := time.Date(ship.Year(), ship.Month(), ship.Day()+days, hour, 0, 0, 0, ship.Location())
		return &d
	}
	service := func(code, total string, delivery *time.Time) Service {
		return Service{Type: code, TotalNet: decimal.RequireFromString(total), Currency: "USD", DeliveryTime: delivery}
	}

	resp := &RateResponse{Notifications: []Notification{{Code: "0"}}}
	switch {
	case req.Shipper.CountryCode == req.Recipient.CountryCode:
		resp.Services = []Service{service("N", "64.10", at(1, 18))}
	case req.Content == ContentDocuments:
		resp.Services = []Service{service("D", "88.45", at(2, 18)), service("T", "104.20", at(2, 12))}
	default:
		resp.Services = []Service{service("P", "152.37", at(2, 18)), service("Y", "171.05", at(2, 12))}
	}
	return resp, nil
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
