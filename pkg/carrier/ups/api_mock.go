package ups

import (
	"context"
	"time"
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

// GetRates returns mock shipping rates.
func (m *MockAPIClient) GetRates(ctx context.Context, req *RateRequest) (*RateResponse, error) {
	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 400, Code: "MOCK_ERROR", Message: "Simulated API error"}
	}

	if m.OnGetRates != nil {
		return m.OnGetRates(ctx, req)
	}

	return &RateResponse{
		RateResponse: RateResponseBody{
			Response: Response{
				ResponseStatus: CodeDescription{Code: "1", Description: "Success"},
			},
			RatedShipment: []RatedShipment{
				{
					Service:      CodeDescription{Code: "03"},
					TotalCharges: MonetaryAmount{CurrencyCode: "USD", MonetaryValue: "42.00"},
				},
				{
					Service:            CodeDescription{Code: "02"},
					TotalCharges:       MonetaryAmount{CurrencyCode: "USD", MonetaryValue: "78.12"},
					GuaranteedDelivery: &GuaranteedDelivery{BusinessDaysInTransit: "2"},
				},
				{
					Service:            CodeDescription{Code: "01"},
					TotalCharges:       MonetaryAmount{CurrencyCode: "USD", MonetaryValue: "112.40"},
					GuaranteedDelivery: &GuaranteedDelivery{BusinessDaysInTransit: "1", DeliveryByTime: "10:30 A.M."},
				},
			},
		},
	}, nil
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
