package graphql

import (
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
)

// UnitSystem mirrors the UnitSystem schema enum.
type UnitSystem string

const (
	UnitSystemImperial UnitSystem = "IMPERIAL"
	UnitSystemMetric   UnitSystem = "METRIC"
)

// IsValid reports whether e is a schema enum value.
func (e UnitSystem) IsValid() bool {
	switch e {
	case UnitSystemImperial, UnitSystemMetric:
		return true
	}
	return false
}

func (e UnitSystem) String() string {
	return string(e)
}

// UnmarshalGQL implements graphql.Unmarshaler.
func (e *UnitSystem) UnmarshalGQL(v any) error {
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("enums must be strings")
	}

	*e = UnitSystem(str)
	if !e.IsValid() {
		return fmt.Errorf("%s is not a valid UnitSystem", str)
	}
	return nil
}

// MarshalGQL implements graphql.Marshaler.
func (e UnitSystem) MarshalGQL(w io.Writer) {
	fmt.Fprint(w, strconv.Quote(e.String()))
}

// AddressInput is an origin or destination address.
type AddressInput struct {
	Line1       *string `json:"line1"`
	Line2       *string `json:"line2"`
	Line3       *string `json:"line3"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	PostalCode  string  `json:"postalCode"`
	CountryCode *string `json:"countryCode"`
	Residential *bool   `json:"residential"`
}

// PackageInput describes one parcel.
type PackageInput struct {
	Length            *float64         `json:"length"`
	Width             *float64         `json:"width"`
	Height            *float64         `json:"height"`
	Weight            float64          `json:"weight"`
	InsuredValue      *decimal.Decimal `json:"insuredValue"`
	Units             *UnitSystem      `json:"units"`
	Container         *string          `json:"container"`
	SignatureRequired *bool            `json:"signatureRequired"`
	Documents         *bool            `json:"documents"`
}

// RateOptionsInput holds optional request parameters.
type RateOptionsInput struct {
	ShipDate         *string  `json:"shipDate"`
	SaturdayDelivery *bool    `json:"saturdayDelivery"`
	Currency         *string  `json:"currency"`
	FedExOneRate     *bool    `json:"fedexOneRate"`
	Providers        []string `json:"providers"`
}

// RateRequestInput is the getRates argument.
type RateRequestInput struct {
	Origin      *AddressInput     `json:"origin"`
	Destination *AddressInput     `json:"destination"`
	Packages    []*PackageInput   `json:"packages"`
	Options     *RateOptionsInput `json:"options"`
}

// Rate is one priced service.
type Rate struct {
	Provider           string  `json:"provider"`
	ServiceCode        string  `json:"serviceCode"`
	Name               string  `json:"name"`
	TotalCharges       string  `json:"totalCharges"`
	Currency           string  `json:"currency"`
	GuaranteedDelivery *string `json:"guaranteedDelivery"`
	SaturdayDelivery   bool    `json:"saturdayDelivery"`
}

// ProviderError is a business error reported by a carrier.
type ProviderError struct {
	Provider    string  `json:"provider"`
	Number      string  `json:"number"`
	Description string  `json:"description"`
	Source      *string `json:"source"`
	HelpContext *string `json:"helpContext"`
	HelpFile    *string `json:"helpFile"`
}

// RateResponse is the consolidated getRates payload.
type RateResponse struct {
	ShipmentID     string           `json:"shipmentId"`
	Rates          []*Rate          `json:"rates"`
	Errors         []*ProviderError `json:"errors"`
	InternalErrors []string         `json:"internalErrors"`
}
