package usps

import (
	"context"
	"time"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetDomesticRates      func(ctx context.Context, req *RateV4Request) (*RateV4Response, error)
	OnGetInternationalRates func(ctx context.Context, req *IntlRateV2Request) (*IntlRateV2Response, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) wait(ctx context.Context) error {
	if m.SimulateLatency <= 0 {
		return nil
	}
	select {
	case <-time.After(m.SimulateLatency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func mockError() *APIError {
	return &APIError{
		Number:      "80040B1A",
		Source:      "USPSCOM::DoAuth",
		Description: "Authorization failure.  Perhaps username and/or password is incorrect.",
	}
}

// GetDomesticRates returns mock RateV4 postage for every package. A package
// addressed to ZIP 00000 gets a package-level error.
func (m *MockAPIClient) GetDomesticRates(ctx context.Context, req *RateV4Request) (*RateV4Response, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.SimulateErrors {
		return nil, mockError()
	}
	if m.OnGetDomesticRates != nil {
		return m.OnGetDomesticRates(ctx, req)
	}

	resp := &RateV4Response{}
	for _, pkg := range req.Packages {
		if pkg.ZipDestination == "00000" {
			resp.Packages = append(resp.Packages, DomesticPackageRates{
				ID: pkg.ID,
				Error: &ErrorDetail{
					Number:      "-2147219400",
					Source:      "clsRateV4.ValidateZip;RateEngineV4.ProcessRequest",
					Description: "Invalid Zip Code.",
					HelpContext: "1000440",
				},
			})
			continue
		}

		shipDate, err := time.Parse("2006-01-02", pkg.ShipDate)
		if err != nil {
			shipDate = time.Now()
		}
		commit := func(days int) string {
			return shipDate.AddDate(0, 0, days).Format("2006-01-02")
		}

		resp.Packages = append(resp.Packages, DomesticPackageRates{
			ID: pkg.ID,
			Postage: []Postage{
				{ClassID: "1058", MailService: "USPS Ground Advantage&lt;sup&gt;&#8482;&lt;/sup&gt;", Rate: "8.10", CommercialRate: "6.95"},
				{ClassID: "1", MailService: "Priority Mail 2-Day&lt;sup&gt;&#8482;&lt;/sup&gt;", Rate: "12.25", CommercialRate: "10.40", CommitmentDate: commit(2), CommitmentName: "2-Day"},
				{ClassID: "3", MailService: "Priority Mail Express 1-Day&lt;sup&gt;&#8482;&lt;/sup&gt;", Rate: "38.40", CommercialRate: "33.85", CommitmentDate: commit(1), CommitmentName: "1-Day"},
			},
		})
	}
	return resp, nil
}

// GetInternationalRates returns mock IntlRateV2 services. Envelopes also get
// the First-Class Mail International letter rate.
func (m *MockAPIClient) GetInternationalRates(ctx context.Context, req *IntlRateV2Request) (*IntlRateV2Response, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.SimulateErrors {
		return nil, mockError()
	}
	if m.OnGetInternationalRates != nil {
		return m.OnGetInternationalRates(ctx, req)
	}

	resp := &IntlRateV2Response{}
	for _, pkg := range req.Packages {
		services := []IntlService{
			{ID: "1", Postage: "72.50", CommercialPostage: "68.10", SvcCommitments: "3 - 5 business days", SvcDescription: "Priority Mail Express International&lt;sup&gt;&#8482;&lt;/sup&gt;"},
			{ID: "2", Postage: "51.15", CommercialPostage: "47.30", SvcCommitments: "6 - 10 business days", SvcDescription: "Priority Mail International&lt;sup&gt;&#174;&lt;/sup&gt;"},
		}
		if pkg.MailType == mailTypeEnvelope {
			services = append(services, IntlService{ID: "13", Postage: "3.25", SvcCommitments: "Varies by destination", SvcDescription: "First-Class Mail&lt;sup&gt;&#174;&lt;/sup&gt; International Letter"})
		}
		resp.Packages = append(resp.Packages, IntlPackageRates{ID: pkg.ID, Services: services})
	}
	return resp, nil
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
