package fedex

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
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

// GetRates returns mock rate quotes. One Rate requests are priced flat.
func (m *MockAPIClient) GetRates(ctx context.Context, req *RateRequest) (*RateResponse, error) {
	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 400, Code: "MOCK.ERROR", Message: "Simulated API error"}
	}

	if m.OnGetRates != nil {
		return m.OnGetRates(ctx, req)
	}

	shipDate, err := time.Parse("2006-01-02", req.RequestedShipment.ShipDateStamp)
	if err != nil {
		shipDate = time.Now()
	}
	commit := func(days int) *Commit {
		return &Commit{DateDetail: &DateDetail{DayFormat: shipDate.AddDate(0, 0, days).Format("2006-01-02") + "T10:30:00"}}
	}

	oneRate := req.RequestedShipment.ShipmentSpecialServices != nil &&
		slices.Contains(req.RequestedShipment.ShipmentSpecialServices.SpecialServiceTypes, specialOneRate)

	priced := func(list, account string) []RatedShipmentDetail {
		return []RatedShipmentDetail{
			{RateType: "LIST", TotalNetCharge: decimal.RequireFromString(list), Currency: "USD"},
			{RateType: "ACCOUNT", TotalNetCharge: decimal.RequireFromString(account), Currency: "USD"},
		}
	}

	var details []RateReplyDetail
	if oneRate {
		details = []RateReplyDetail{
			{ServiceType: "FEDEX_2_DAY", ServiceName: "FedEx 2Day®", PackagingType: req.RequestedShipment.PackagingType, RatedShipmentDetails: priced("22.75", "22.75"), Commit: commit(2)},
		}
	} else {
		details = []RateReplyDetail{
			{ServiceType: "FEDEX_GROUND", ServiceName: "FedEx Ground®", RatedShipmentDetails: priced("44.12", "39.71")},
			{ServiceType: "FEDEX_2_DAY", ServiceName: "FedEx 2Day®", RatedShipmentDetails: priced("71.30", "64.17"), Commit: commit(2)},
			{ServiceType: "STANDARD_OVERNIGHT", ServiceName: "FedEx Standard Overnight®", RatedShipmentDetails: priced("139.85", "125.87"), Commit: commit(1)},
		}
	}

	return &RateResponse{
		TransactionID: uuid.New().String(),
		Output:        RateOutput{RateReplyDetails: details},
	}, nil
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
