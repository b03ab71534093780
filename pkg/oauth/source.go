package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tournevent/shiprate/pkg/shipping"
	"golang.org/x/sync/singleflight"
)

// DefaultLeeway is subtracted from a token's lifetime before caching it, so a
// token is never used right at its expiry.
const DefaultLeeway = 60 * time.Second

// ClientCredentials identifies an OAuth client for the client-credentials grant.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string

	// CredentialsInBody sends client_id and client_secret as form fields
	// instead of HTTP Basic auth.
	CredentialsInBody bool

	// ExtraHeaders are sent with every token request (e.g. UPS x-merchant-id).
	ExtraHeaders map[string]string
}

// AuthError is a rejection from the token endpoint.
type AuthError struct {
	StatusCode  int
	Code        string
	Description string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("token request rejected (%s): %s", e.Code, e.Description)
}

// Unwrap lets callers match authentication failures with errors.Is.
func (e *AuthError) Unwrap() error {
	return shipping.ErrAuthenticationFailed
}

// ProviderError reports the rejection as a business error of provider.
func (e *AuthError) ProviderError(provider string) shipping.ProviderError {
	return shipping.NewProviderError(provider, e.Code, e.Description).WithSource("oauth")
}

// TokenSource returns access tokens, serving them from a TokenCache when
// possible. Concurrent misses for the same client share one fetch.
type TokenSource struct {
	creds      ClientCredentials
	cache      TokenCache
	httpClient *http.Client
	leeway     time.Duration
	group      singleflight.Group
}

// SourceOption configures a TokenSource.
type SourceOption func(*TokenSource)

// WithHTTPClient sets the HTTP client used for token requests.
func WithHTTPClient(c *http.Client) SourceOption {
	return func(s *TokenSource) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithLeeway sets how long before expiry a cached token is dropped.
func WithLeeway(d time.Duration) SourceOption {
	return func(s *TokenSource) {
		s.leeway = d
	}
}

// NewTokenSource creates a token source. A nil cache uses a fresh MemoryCache.
func NewTokenSource(creds ClientCredentials, cache TokenCache, opts ...SourceOption) *TokenSource {
	if cache == nil {
		cache = NewMemoryCache()
	}
	s := &TokenSource{
		creds:      creds,
		cache:      cache,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		leeway:     DefaultLeeway,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClientID returns the client id tokens are cached under.
func (s *TokenSource) ClientID() string {
	return s.creds.ClientID
}

// Token returns a valid access token.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if token, ok := s.cache.TryGetToken(ctx, s.creds.ClientID); ok {
		return token, nil
	}

	// The shared fetch outlives any single caller's cancellation; each caller
	// still stops waiting when its own context ends.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(s.creds.ClientID, func() (any, error) {
		if token, ok := s.cache.TryGetToken(fetchCtx, s.creds.ClientID); ok {
			return token, nil
		}
		token, ttl, err := s.fetch(fetchCtx)
		if err != nil {
			return "", err
		}
		// A failed write is the cache's to report; the fresh token is still good.
		_ = s.cache.AddToken(fetchCtx, s.creds.ClientID, token, ttl-s.leeway)
		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

// tokenResponse covers the success body of RFC 6749 and the carrier variants.
type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   seconds `json:"expires_in"`
}

// seconds decodes a lifetime sent either as a JSON number or a numeric string.
type seconds int64

func (s *seconds) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing expires_in %q: %w", raw, err)
	}
	*s = seconds(n)
	return nil
}

func (s *TokenSource) fetch(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	if s.creds.CredentialsInBody {
		form.Set("client_id", s.creds.ClientID)
		form.Set("client_secret", s.creds.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.creds.TokenURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create token request: %w", err)
	}
	if !s.creds.CredentialsInBody {
		req.SetBasicAuth(s.creds.ClientID, s.creds.ClientSecret)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.creds.ExtraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, parseAuthError(resp.StatusCode, body)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", 0, fmt.Errorf("token response missing access_token")
	}
	return tok.AccessToken, time.Duration(tok.ExpiresIn) * time.Second, nil
}

// parseAuthError reads the UPS, FedEx and RFC 6749 error shapes. Bodies in
// none of those shapes become an AuthError for 400/401/403 and an
// HTTPStatusError otherwise.
func parseAuthError(status int, body []byte) error {
	var doc struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Errors           []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
		Response struct {
			Errors []struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"errors"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &doc); err == nil {
		switch {
		case len(doc.Response.Errors) > 0:
			e := doc.Response.Errors[0]
			return &AuthError{StatusCode: status, Code: e.Code, Description: e.Message}
		case len(doc.Errors) > 0:
			e := doc.Errors[0]
			return &AuthError{StatusCode: status, Code: e.Code, Description: e.Message}
		case doc.Error != "":
			return &AuthError{StatusCode: status, Code: doc.Error, Description: doc.ErrorDescription}
		}
	}

	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{
			StatusCode:  status,
			Code:        fmt.Sprintf("HTTP_%d", status),
			Description: strings.TrimSpace(string(body)),
		}
	}
	return &shipping.HTTPStatusError{Code: status, Body: strings.TrimSpace(string(body))}
}
