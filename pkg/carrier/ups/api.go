package ups

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// APIClient defines the interface for UPS Rating API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// GetRates shops every UPS service for the shipment.
	GetRates(ctx context.Context, req *RateRequest) (*RateResponse, error)
}

// ============================================================================
// API Request/Response Types (match UPS Rating REST/JSON API structure)
// ============================================================================

// RateRequest is the body of POST /api/rating/{version}/Shop.
type RateRequest struct {
	RateRequest RateRequestBody `json:"RateRequest"`
}

// RateRequestBody wraps the request metadata and shipment.
type RateRequestBody struct {
	Request  Request  `json:"Request"`
	Shipment Shipment `json:"Shipment"`
}

// Request carries the request option and the caller's reference.
type Request struct {
	RequestOption        string               `json:"RequestOption"`
	TransactionReference TransactionReference `json:"TransactionReference"`
}

// TransactionReference is echoed back in the response.
type TransactionReference struct {
	CustomerContext string `json:"CustomerContext,omitempty"`
}

// Shipment is the UPS rated shipment description.
type Shipment struct {
	Shipper                 Party                    `json:"Shipper"`
	ShipTo                  Party                    `json:"ShipTo"`
	ShipFrom                Party                    `json:"ShipFrom"`
	Package                 []Package                `json:"Package"`
	ShipmentRatingOptions   *ShipmentRatingOptions   `json:"ShipmentRatingOptions,omitempty"`
	ShipmentServiceOptions  *ShipmentServiceOptions  `json:"ShipmentServiceOptions,omitempty"`
	DeliveryTimeInformation *DeliveryTimeInformation `json:"DeliveryTimeInformation,omitempty"`
}

// Party is a shipper, ship-from or ship-to party.
type Party struct {
	Name          string  `json:"Name,omitempty"`
	ShipperNumber string  `json:"ShipperNumber,omitempty"`
	Address       Address `json:"Address"`
}

// Address is a UPS address. An empty ResidentialAddressIndicator is sent to
// flag a residential destination.
type Address struct {
	AddressLine                 []string `json:"AddressLine,omitempty"`
	City                        string   `json:"City,omitempty"`
	StateProvinceCode           string   `json:"StateProvinceCode,omitempty"`
	PostalCode                  string   `json:"PostalCode"`
	CountryCode                 string   `json:"CountryCode"`
	ResidentialAddressIndicator *string  `json:"ResidentialAddressIndicator,omitempty"`
}

// Package is one UPS package.
type Package struct {
	PackagingType         CodeDescription        `json:"PackagingType"`
	Dimensions            *Dimensions            `json:"Dimensions,omitempty"`
	PackageWeight         PackageWeight          `json:"PackageWeight"`
	PackageServiceOptions *PackageServiceOptions `json:"PackageServiceOptions,omitempty"`
}

// CodeDescription is the UPS code/description pair used across the API.
type CodeDescription struct {
	Code        string `json:"Code"`
	Description string `json:"Description,omitempty"`
}

// Dimensions are package dimensions as decimal strings.
type Dimensions struct {
	UnitOfMeasurement CodeDescription `json:"UnitOfMeasurement"`
	Length            string          `json:"Length"`
	Width             string          `json:"Width"`
	Height            string          `json:"Height"`
}

// PackageWeight is the package weight as a decimal string.
type PackageWeight struct {
	UnitOfMeasurement CodeDescription `json:"UnitOfMeasurement"`
	Weight            string          `json:"Weight"`
}

// PackageServiceOptions holds declared value and signature options.
type PackageServiceOptions struct {
	DeclaredValue        *MonetaryAmount       `json:"DeclaredValue,omitempty"`
	DeliveryConfirmation *DeliveryConfirmation `json:"DeliveryConfirmation,omitempty"`
}

// DeliveryConfirmation type 2 requests a signature.
type DeliveryConfirmation struct {
	DCISType string `json:"DCISType"`
}

// ShipmentRatingOptions requests negotiated rates.
type ShipmentRatingOptions struct {
	NegotiatedRatesIndicator string `json:"NegotiatedRatesIndicator"`
}

// ShipmentServiceOptions carries shipment-level accessorials.
type ShipmentServiceOptions struct {
	SaturdayDeliveryIndicator *string `json:"SaturdayDeliveryIndicator,omitempty"`
}

// DeliveryTimeInformation asks UPS for transit information.
type DeliveryTimeInformation struct {
	PackageBillType string `json:"PackageBillType"`
	Pickup          Pickup `json:"Pickup"`
}

// Pickup is the pickup date as YYYYMMDD.
type Pickup struct {
	Date string `json:"Date"`
}

// RateResponse is the body of a successful rating call.
type RateResponse struct {
	RateResponse RateResponseBody `json:"RateResponse"`
}

// RateResponseBody holds the status and one entry per rated service.
type RateResponseBody struct {
	Response      Response                 `json:"Response"`
	RatedShipment oneOrMany[RatedShipment] `json:"RatedShipment"`
}

// Response is the UPS response status block.
type Response struct {
	ResponseStatus CodeDescription            `json:"ResponseStatus"`
	Alert          oneOrMany[CodeDescription] `json:"Alert"`
}

// RatedShipment is the price of one service.
type RatedShipment struct {
	Service               CodeDescription            `json:"Service"`
	TotalCharges          MonetaryAmount             `json:"TotalCharges"`
	NegotiatedRateCharges *NegotiatedRateCharges     `json:"NegotiatedRateCharges,omitempty"`
	GuaranteedDelivery    *GuaranteedDelivery        `json:"GuaranteedDelivery,omitempty"`
	RatedShipmentAlert    oneOrMany[CodeDescription] `json:"RatedShipmentAlert"`
}

// MonetaryAmount is a currency code and decimal string value.
type MonetaryAmount struct {
	CurrencyCode  string `json:"CurrencyCode"`
	MonetaryValue string `json:"MonetaryValue"`
}

// NegotiatedRateCharges holds the account-specific price.
type NegotiatedRateCharges struct {
	TotalCharge MonetaryAmount `json:"TotalCharge"`
}

// GuaranteedDelivery is present only for guaranteed services.
type GuaranteedDelivery struct {
	BusinessDaysInTransit string `json:"BusinessDaysInTransit"`
	DeliveryByTime        string `json:"DeliveryByTime,omitempty"`
}

// ErrorResponse is the body UPS returns with a 4xx status.
type ErrorResponse struct {
	Response struct {
		Errors []ErrorDetail `json:"errors"`
	} `json:"response"`
}

// ErrorDetail is one UPS error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// oneOrMany decodes a field UPS sends as an object when there is one entry
// and as an array otherwise.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*o = nil
		return nil
	case b[0] == '[':
		var many []T
		if err := json.Unmarshal(b, &many); err != nil {
			return err
		}
		*o = many
		return nil
	default:
		var one T
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*o = []T{one}
		return nil
	}
}

// APIError represents a rejection from the UPS Rating API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
