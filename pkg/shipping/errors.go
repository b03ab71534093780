package shipping

import (
	"context"
	"errors"
	"fmt"
)

// ProviderError is a business error reported by a carrier API, such as an
// invalid postal code or an unsupported lane.
type ProviderError struct {
	Provider    string
	Number      string
	Description string
	Source      string
	HelpContext string
	HelpFile    string
}

// Error implements the error interface.
func (e ProviderError) Error() string {
	if e.Number == "" {
		return fmt.Sprintf("%s error: %s", e.Provider, e.Description)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Provider, e.Number, e.Description)
}

// Is matches another ProviderError with the same non-empty number.
func (e ProviderError) Is(target error) bool {
	var t ProviderError
	switch v := target.(type) {
	case ProviderError:
		t = v
	case *ProviderError:
		if v == nil {
			return false
		}
		t = *v
	default:
		return false
	}
	return e.Number != "" && e.Number == t.Number
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider, number, description string) ProviderError {
	return ProviderError{
		Provider:    provider,
		Number:      number,
		Description: description,
	}
}

// WithSource sets the component that reported the error.
func (e ProviderError) WithSource(source string) ProviderError {
	e.Source = source
	return e
}

// WithHelp sets the optional help fields.
func (e ProviderError) WithHelp(file, context string) ProviderError {
	e.HelpFile = file
	e.HelpContext = context
	return e
}

// Sentinel errors.
var (
	// ErrInvalidRequest indicates a GetRates call was missing required input.
	ErrInvalidRequest = errors.New("invalid rate request")

	// ErrInvalidAddress indicates the address is invalid or incomplete.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidPackage indicates package dimensions or weight are invalid.
	ErrInvalidPackage = errors.New("invalid package")

	// ErrServiceUnavailable indicates the carrier service is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrAuthenticationFailed indicates carrier authentication failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRateLimitExceeded indicates the carrier rate limit was exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrProviderNotFound indicates the requested provider is not registered.
	ErrProviderNotFound = errors.New("provider not found")
)

// HTTPStatusError is an unexpected HTTP status from a carrier endpoint whose
// body could not be read as a carrier error document.
type HTTPStatusError struct {
	Code int
	Body string
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected HTTP status %d", e.Code)
	}
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.Code, e.Body)
}

// Unwrap maps well-known statuses to sentinel errors.
func (e *HTTPStatusError) Unwrap() error {
	switch {
	case e.Code == 401 || e.Code == 403:
		return ErrAuthenticationFailed
	case e.Code == 429:
		return ErrRateLimitExceeded
	case e.Code >= 502 && e.Code <= 504:
		return ErrServiceUnavailable
	default:
		return nil
	}
}

// IsRetryable returns true if the error is likely transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimitExceeded) ||
		errors.Is(err, context.DeadlineExceeded)
}
