package shipping_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/shiprate/pkg/shipping"
)

func TestProviderError_Error(t *testing.T) {
	err := shipping.NewProviderError("usps", "-2147219401", "Invalid Zip Code")
	assert.Equal(t, "usps error (-2147219401): Invalid Zip Code", err.Error())
}

func TestProviderError_ErrorWithoutNumber(t *testing.T) {
	err := shipping.NewProviderError("dhl", "", "No service available")
	assert.Equal(t, "dhl error: No service available", err.Error())
}

func TestProviderError_Is(t *testing.T) {
	err1 := shipping.NewProviderError("ups", "111285", "Invalid postal code")
	err2 := shipping.NewProviderError("fedex", "111285", "Different message")

	// Same number should match
	assert.True(t, errors.Is(err1, err2))
	assert.True(t, errors.Is(err1, &err2))
}

func TestProviderError_IsNot(t *testing.T) {
	err1 := shipping.NewProviderError("ups", "111285", "Invalid postal code")
	err2 := shipping.NewProviderError("ups", "110971", "Different error")

	// Different numbers should not match
	assert.False(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, shipping.ErrInvalidAddress))
}

func TestProviderError_IsWithoutNumber(t *testing.T) {
	unnumbered := shipping.NewProviderError("dhl", "", "Service unavailable for lane")
	other := shipping.NewProviderError("ups", "", "Missing account")

	assert.False(t, errors.Is(unnumbered, other))
	assert.False(t, errors.Is(unnumbered, shipping.ProviderError{}))
	assert.False(t, errors.Is(shipping.NewProviderError("ups", "111285", "x"), shipping.ProviderError{}))
}

func TestProviderError_Builders(t *testing.T) {
	err := shipping.NewProviderError("usps", "1", "bad").
		WithSource("RateV4").
		WithHelp("help.chm", "1000440")

	assert.Equal(t, "RateV4", err.Source)
	assert.Equal(t, "help.chm", err.HelpFile)
	assert.Equal(t, "1000440", err.HelpContext)
}

func TestHTTPStatusError_Unwrap(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{401, shipping.ErrAuthenticationFailed},
		{403, shipping.ErrAuthenticationFailed},
		{429, shipping.ErrRateLimitExceeded},
		{502, shipping.ErrServiceUnavailable},
		{503, shipping.ErrServiceUnavailable},
		{504, shipping.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			err := fmt.Errorf("calling carrier: %w", &shipping.HTTPStatusError{Code: tt.code})
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestHTTPStatusError_Message(t *testing.T) {
	assert.Equal(t, "unexpected HTTP status 500", (&shipping.HTTPStatusError{Code: 500}).Error())
	assert.Equal(t, "unexpected HTTP status 500: oops", (&shipping.HTTPStatusError{Code: 500, Body: "oops"}).Error())

	err := &shipping.HTTPStatusError{Code: 500}
	assert.False(t, errors.Is(err, shipping.ErrServiceUnavailable))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, shipping.IsRetryable(shipping.ErrServiceUnavailable))
	assert.True(t, shipping.IsRetryable(shipping.ErrRateLimitExceeded))
	assert.True(t, shipping.IsRetryable(&shipping.HTTPStatusError{Code: 503}))
	assert.True(t, shipping.IsRetryable(fmt.Errorf("post: %w", context.DeadlineExceeded)))
	assert.False(t, shipping.IsRetryable(shipping.ErrInvalidAddress))
	assert.False(t, shipping.IsRetryable(&shipping.HTTPStatusError{Code: 401}))
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrInvalidRequest", shipping.ErrInvalidRequest},
		{"ErrInvalidAddress", shipping.ErrInvalidAddress},
		{"ErrInvalidPackage", shipping.ErrInvalidPackage},
		{"ErrServiceUnavailable", shipping.ErrServiceUnavailable},
		{"ErrAuthenticationFailed", shipping.ErrAuthenticationFailed},
		{"ErrRateLimitExceeded", shipping.ErrRateLimitExceeded},
		{"ErrProviderNotFound", shipping.ErrProviderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}
