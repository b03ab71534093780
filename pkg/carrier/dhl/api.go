package dhl

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// APIClient defines the interface for DHL Express rate operations.
type APIClient interface {
	// GetRates requests rate quotes from the Express rate book.
	GetRates(ctx context.Context, req *RateRequest) (*RateResponse, error)
}

// ============================================================================
// API Request/Response Types
// ============================================================================

// Unit of measurement codes.
const (
	UnitSI = "SI" // kilograms and centimetres
	UnitSU = "SU" // pounds and inches
)

// Content codes.
const (
	ContentDocuments    = "DOCUMENTS"
	ContentNonDocuments = "NON_DOCUMENTS"
)

// RateRequest represents a DHL Express RateRequest.
type RateRequest struct {
	Account               string
	DropOffType           string
	NextBusinessDay       bool
	ShipTimestamp         time.Time
	UnitOfMeasurement     string
	Content               string
	PaymentInfo           string
	DeclaredValue         decimal.Decimal
	DeclaredValueCurrency string
	Shipper               Address
	Recipient             Address
	Packages              []Package
	SpecialServices       []string
}

// Address is a DHL shipper or recipient address.
type Address struct {
	StreetLines  string
	StreetLines2 string
	StreetLines3 string
	City         string
	PostalCode   string
	CountryCode  string
}

// Package is one requested package. Dimensions are omitted when HasDimensions
// is false.
type Package struct {
	Number        int
	Weight        float64
	Length        int
	Width         int
	Height        int
	HasDimensions bool
}

// RateResponse represents the DHL Express RateResponse.
type RateResponse struct {
	Notifications []Notification
	Services      []Service
}

// Notification is a DHL status message. Code "0" means success.
type Notification struct {
	Code    string
	Message string
}

// IsError reports whether the notification describes a failure.
func (n Notification) IsError() bool {
	return n.Code != "" && n.Code != "0"
}

// Service is the quote for one DHL product.
type Service struct {
	Type         string
	TotalNet     decimal.Decimal
	Currency     string
	DeliveryTime *time.Time
	Charges      []Charge
}

// Charge is one line of a service's price breakdown.
type Charge struct {
	Type   string
	Name   string
	Amount decimal.Decimal
}

// APIError represents a SOAP fault or transport-level rejection from DHL.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
