package fedex

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// APIClient defines the interface for FedEx Rate API operations.
type APIClient interface {
	// GetRates requests rate quotes for the shipment.
	GetRates(ctx context.Context, req *RateRequest) (*RateResponse, error)
}

// ============================================================================
// API Request/Response Types (match FedEx Rate Quotes REST/JSON API structure)
// ============================================================================

// RateRequest is the body of POST /rate/v1/rates/quotes.
type RateRequest struct {
	AccountNumber                AccountNumber                 `json:"accountNumber"`
	RateRequestControlParameters *RateRequestControlParameters `json:"rateRequestControlParameters,omitempty"`
	RequestedShipment            RequestedShipment             `json:"requestedShipment"`
}

// AccountNumber wraps the FedEx account number.
type AccountNumber struct {
	Value string `json:"value"`
}

// RateRequestControlParameters controls the reply content.
type RateRequestControlParameters struct {
	ReturnTransitTimes bool `json:"returnTransitTimes"`
}

// RequestedShipment describes the shipment to rate.
type RequestedShipment struct {
	Shipper                   Party                      `json:"shipper"`
	Recipient                 Party                      `json:"recipient"`
	ShipDateStamp             string                     `json:"shipDateStamp,omitempty"`
	PickupType                string                     `json:"pickupType"`
	PackagingType             string                     `json:"packagingType,omitempty"`
	RateRequestType           []string                   `json:"rateRequestType"`
	PreferredCurrency         string                     `json:"preferredCurrency,omitempty"`
	ShipmentSpecialServices   *SpecialServices           `json:"shipmentSpecialServices,omitempty"`
	RequestedPackageLineItems []RequestedPackageLineItem `json:"requestedPackageLineItems"`
}

// Party is a shipper or recipient.
type Party struct {
	Address Address `json:"address"`
}

// Address is a FedEx address.
type Address struct {
	StreetLines         []string `json:"streetLines,omitempty"`
	City                string   `json:"city,omitempty"`
	StateOrProvinceCode string   `json:"stateOrProvinceCode,omitempty"`
	PostalCode          string   `json:"postalCode"`
	CountryCode         string   `json:"countryCode"`
	Residential         bool     `json:"residential"`
}

// SpecialServices lists requested special service types.
type SpecialServices struct {
	SpecialServiceTypes []string `json:"specialServiceTypes"`
}

// RequestedPackageLineItem is one package.
type RequestedPackageLineItem struct {
	Weight                 Weight           `json:"weight"`
	Dimensions             *Dimensions      `json:"dimensions,omitempty"`
	DeclaredValue          *Money           `json:"declaredValue,omitempty"`
	PackageSpecialServices *PackageServices `json:"packageSpecialServices,omitempty"`
}

// Weight is a package weight.
type Weight struct {
	Units string  `json:"units"`
	Value float64 `json:"value"`
}

// Dimensions are whole-unit package dimensions.
type Dimensions struct {
	Length int    `json:"length"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Units  string `json:"units"`
}

// Money is an amount with currency.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// PackageServices holds package-level options.
type PackageServices struct {
	SignatureOptionType string `json:"signatureOptionType,omitempty"`
}

// RateResponse is the body of a successful rate quote.
type RateResponse struct {
	TransactionID string     `json:"transactionId"`
	Output        RateOutput `json:"output"`
}

// RateOutput holds alerts and one detail per service.
type RateOutput struct {
	Alerts           []Alert           `json:"alerts"`
	RateReplyDetails []RateReplyDetail `json:"rateReplyDetails"`
}

// Alert is a FedEx warning or note.
type Alert struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	AlertType string `json:"alertType"`
}

// RateReplyDetail is the quote for one service.
type RateReplyDetail struct {
	ServiceType          string                `json:"serviceType"`
	ServiceName          string                `json:"serviceName"`
	PackagingType        string                `json:"packagingType"`
	RatedShipmentDetails []RatedShipmentDetail `json:"ratedShipmentDetails"`
	Commit               *Commit               `json:"commit,omitempty"`
}

// RatedShipmentDetail is the price under one rate type (LIST, ACCOUNT, ...).
type RatedShipmentDetail struct {
	RateType       string          `json:"rateType"`
	TotalNetCharge decimal.Decimal `json:"totalNetCharge"`
	Currency       string          `json:"currency"`
}

// Commit is the delivery commitment.
type Commit struct {
	DateDetail       *DateDetail `json:"dateDetail,omitempty"`
	SaturdayDelivery bool        `json:"saturdayDelivery"`
}

// DateDetail holds the committed delivery timestamp.
type DateDetail struct {
	DayOfWeek string `json:"dayOfWeek"`
	DayFormat string `json:"dayFormat"`
}

// ErrorResponse is the body FedEx returns with a 4xx status.
type ErrorResponse struct {
	TransactionID string        `json:"transactionId"`
	Errors        []ErrorDetail `json:"errors"`
}

// ErrorDetail is one FedEx error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError represents a rejection from the FedEx Rate API. All reported
// errors are kept; Code and Message describe the first.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    []ErrorDetail
}

func (e *APIError) Error() string {
	if len(e.Details) <= 1 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Code+": "+d.Message)
	}
	return strings.Join(parts, "; ")
}
