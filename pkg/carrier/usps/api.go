package usps

import (
	"context"
	"encoding/xml"
	"fmt"
)

// APIClient defines the interface for USPS Web Tools rate operations.
type APIClient interface {
	// GetDomesticRates calls the RateV4 API.
	GetDomesticRates(ctx context.Context, req *RateV4Request) (*RateV4Response, error)

	// GetInternationalRates calls the IntlRateV2 API.
	GetInternationalRates(ctx context.Context, req *IntlRateV2Request) (*IntlRateV2Response, error)
}

// ============================================================================
// RateV4 (domestic)
// ============================================================================

// RateV4Request is the XML document sent as the XML query parameter of API=RateV4.
type RateV4Request struct {
	XMLName  xml.Name          `xml:"RateV4Request"`
	UserID   string            `xml:"USERID,attr"`
	Revision string            `xml:"Revision"`
	Packages []DomesticPackage `xml:"Package"`
}

// DomesticPackage is one RateV4 package. Element order follows the USPS schema.
type DomesticPackage struct {
	ID             string `xml:"ID,attr"`
	Service        string `xml:"Service"`
	ZipOrigination string `xml:"ZipOrigination"`
	ZipDestination string `xml:"ZipDestination"`
	Pounds         int    `xml:"Pounds"`
	Ounces         string `xml:"Ounces"`
	Container      string `xml:"Container"`
	Width          string `xml:"Width,omitempty"`
	Length         string `xml:"Length,omitempty"`
	Height         string `xml:"Height,omitempty"`
	Girth          string `xml:"Girth,omitempty"`
	Value          string `xml:"Value,omitempty"`
	Machinable     string `xml:"Machinable"`
	ShipDate       string `xml:"ShipDate,omitempty"`
}

// RateV4Response is the RateV4 reply.
type RateV4Response struct {
	XMLName  xml.Name               `xml:"RateV4Response"`
	Packages []DomesticPackageRates `xml:"Package"`
}

// DomesticPackageRates holds the postage options for one package, or a
// package-level error.
type DomesticPackageRates struct {
	ID      string       `xml:"ID,attr"`
	Postage []Postage    `xml:"Postage"`
	Error   *ErrorDetail `xml:"Error"`
}

// Postage is the price of one mail class.
type Postage struct {
	ClassID        string `xml:"CLASSID,attr"`
	MailService    string `xml:"MailService"`
	Rate           string `xml:"Rate"`
	CommercialRate string `xml:"CommercialRate"`
	CommitmentDate string `xml:"CommitmentDate"`
	CommitmentName string `xml:"CommitmentName"`
}

// ============================================================================
// IntlRateV2 (international)
// ============================================================================

// IntlRateV2Request is the XML document sent as the XML query parameter of API=IntlRateV2.
type IntlRateV2Request struct {
	XMLName  xml.Name      `xml:"IntlRateV2Request"`
	UserID   string        `xml:"USERID,attr"`
	Revision string        `xml:"Revision"`
	Packages []IntlPackage `xml:"Package"`
}

// IntlPackage is one IntlRateV2 package. Element order follows the USPS schema.
type IntlPackage struct {
	ID                    string `xml:"ID,attr"`
	Pounds                int    `xml:"Pounds"`
	Ounces                string `xml:"Ounces"`
	Machinable            string `xml:"Machinable"`
	MailType              string `xml:"MailType"`
	ValueOfContents       string `xml:"ValueOfContents"`
	Country               string `xml:"Country"`
	Container             string `xml:"Container"`
	Width                 string `xml:"Width"`
	Length                string `xml:"Length"`
	Height                string `xml:"Height"`
	Girth                 string `xml:"Girth"`
	OriginZip             string `xml:"OriginZip"`
	CommercialFlag        string `xml:"CommercialFlag,omitempty"`
	AcceptanceDateTime    string `xml:"AcceptanceDateTime,omitempty"`
	DestinationPostalCode string `xml:"DestinationPostalCode,omitempty"`
}

// IntlRateV2Response is the IntlRateV2 reply.
type IntlRateV2Response struct {
	XMLName  xml.Name           `xml:"IntlRateV2Response"`
	Packages []IntlPackageRates `xml:"Package"`
}

// IntlPackageRates holds the services available for one package, or a
// package-level error.
type IntlPackageRates struct {
	ID       string        `xml:"ID,attr"`
	Services []IntlService `xml:"Service"`
	Error    *ErrorDetail  `xml:"Error"`
}

// IntlService is the price of one international mail class.
type IntlService struct {
	ID                    string `xml:"ID,attr"`
	Postage               string `xml:"Postage"`
	CommercialPostage     string `xml:"CommercialPostage"`
	SvcCommitments        string `xml:"SvcCommitments"`
	SvcDescription        string `xml:"SvcDescription"`
	GuaranteeAvailability string `xml:"GuaranteeAvailability"`
}

// ============================================================================
// Errors
// ============================================================================

// ErrorDetail is the USPS Error element. It is returned either as the
// document root or inside a Package.
type ErrorDetail struct {
	XMLName     xml.Name `xml:"Error"`
	Number      string   `xml:"Number"`
	Source      string   `xml:"Source"`
	Description string   `xml:"Description"`
	HelpFile    string   `xml:"HelpFile"`
	HelpContext string   `xml:"HelpContext"`
}

// APIError represents a request-level rejection from USPS Web Tools, such as
// an authorization failure.
type APIError struct {
	Number      string
	Source      string
	Description string
	HelpFile    string
	HelpContext string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Number, e.Description)
}
