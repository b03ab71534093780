package usps

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tournevent/shiprate/pkg/shipping"
)

// DefaultBaseURL is the USPS Web Tools production host.
const DefaultBaseURL = "https://secure.shippingapis.com"

// HTTPAPIClient is the production implementation of APIClient using HTTP/XML.
type HTTPAPIClient struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL string
	UserID  string
	Timeout time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &HTTPAPIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  cfg.UserID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetDomesticRates fetches RateV4 postage.
// GET /ShippingAPI.dll?API=RateV4&XML=...
func (c *HTTPAPIClient) GetDomesticRates(ctx context.Context, req *RateV4Request) (*RateV4Response, error) {
	signed := *req
	signed.UserID = c.userID

	var result RateV4Response
	if err := c.call(ctx, "RateV4", &signed, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetInternationalRates fetches IntlRateV2 postage.
// GET /ShippingAPI.dll?API=IntlRateV2&XML=...
func (c *HTTPAPIClient) GetInternationalRates(ctx context.Context, req *IntlRateV2Request) (*IntlRateV2Response, error) {
	signed := *req
	signed.UserID = c.userID

	var result IntlRateV2Response
	if err := c.call(ctx, "IntlRateV2", &signed, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ============================================================================
// HTTP Helpers
// ============================================================================

func (c *HTTPAPIClient) call(ctx context.Context, api string, req, out any) error {
	doc, err := xml.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	query := url.Values{"API": {api}, "XML": {string(doc)}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ShippingAPI.dll?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", api, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", api, err)
	}

	if resp.StatusCode != http.StatusOK {
		return &shipping.HTTPStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	// Request-level failures arrive with status 200 and an Error root element.
	if apiErr := parseError(body); apiErr != nil {
		return apiErr
	}

	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", api, err)
	}
	return nil
}

// parseError returns an APIError when body is an Error document.
func parseError(body []byte) *APIError {
	var detail ErrorDetail
	if err := xml.Unmarshal(body, &detail); err != nil {
		return nil
	}
	return &APIError{
		Number:      strings.TrimSpace(detail.Number),
		Source:      strings.TrimSpace(detail.Source),
		Description: strings.TrimSpace(detail.Description),
		HelpFile:    strings.TrimSpace(detail.HelpFile),
		HelpContext: strings.TrimSpace(detail.HelpContext),
	}
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
