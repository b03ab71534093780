package dhl

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tournevent/shiprate/pkg/shipping"
)

// DefaultBaseURL is the DHL Express web services production host.
const DefaultBaseURL = "https://wsbexpress.dhl.com/gbl"

const (
	rateAction       = "euExpressRateBook_providerServices_ShipmentHandlingServices_Binding_getRateRequest"
	timestampLayout  = "2006-01-02T15:04:05GMT-07:00"
	deliveryLayout   = "2006-01-02T15:04:05"
	passwordTextType = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"
)

// SOAPAPIClient is the production implementation of APIClient using SOAP.
type SOAPAPIClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// SOAPAPIClientConfig holds configuration for the SOAP client.
type SOAPAPIClientConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// NewSOAPAPIClient creates a new SOAP-based API client for production use.
func NewSOAPAPIClient(cfg SOAPAPIClientConfig) *SOAPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &SOAPAPIClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetRates fetches rate quotes from the Express rate book.
func (c *SOAPAPIClient) GetRates(ctx context.Context, req *RateRequest) (*RateResponse, error) {
	body, err := c.buildRateRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/expressRateBook", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", rateAction)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rate request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env soapEnvelope
	parseErr := xml.Unmarshal(data, &env)
	if parseErr == nil && env.Body.Fault != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       strings.TrimSpace(env.Body.Fault.Code),
			Message:    strings.TrimSpace(env.Body.Fault.String),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &shipping.HTTPStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", parseErr)
	}
	if env.Body.RateResponse == nil {
		return nil, fmt.Errorf("response has no RateResponse element")
	}

	return env.Body.RateResponse.toRateResponse()
}

// ============================================================================
// SOAP Request Builder
// ============================================================================

const rateEnvelopeTemplate = `<?xml version="1.0" encoding="utf-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:rat="http://scxgxtt.phx-dc.dhl.com/euExpressRateBook/RateMsgRequest">
  <soapenv:Header>
    <wsse:Security soapenv:mustUnderstand="1" xmlns:wsse="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd" xmlns:wsu="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd">
      <wsse:UsernameToken wsu:Id="{{.TokenID}}">
        <wsse:Username>{{x .Username}}</wsse:Username>
        <wsse:Password Type="{{.PasswordType}}">{{x .Password}}</wsse:Password>
      </wsse:UsernameToken>
    </wsse:Security>
  </soapenv:Header>
  <soapenv:Body>
    <rat:RateRequest>
      <RequestedShipment>
        <DropOffType>{{.Req.DropOffType}}</DropOffType>
        <NextBusinessDay>{{yn .Req.NextBusinessDay}}</NextBusinessDay>
        <Ship>
          <Shipper>{{template "address" .Req.Shipper}}</Shipper>
          <Recipient>{{template "address" .Req.Recipient}}</Recipient>
        </Ship>
        <Packages>{{range .Req.Packages}}
          <RequestedPackages number="{{.Number}}">
            <Weight><Value>{{weight .Weight}}</Value></Weight>{{if .HasDimensions}}
            <Dimensions><Length>{{.Length}}</Length><Width>{{.Width}}</Width><Height>{{.Height}}</Height></Dimensions>{{end}}
          </RequestedPackages>{{end}}
        </Packages>
        <ShipTimestamp>{{.Timestamp}}</ShipTimestamp>
        <UnitOfMeasurement>{{.Req.UnitOfMeasurement}}</UnitOfMeasurement>
        <Content>{{.Req.Content}}</Content>{{if .Req.DeclaredValue.IsPositive}}
        <DeclaredValue>{{.Req.DeclaredValue.StringFixed 2}}</DeclaredValue>
        <DeclaredValueCurrecyCode>{{.Req.DeclaredValueCurrency}}</DeclaredValueCurrecyCode>{{end}}
        <PaymentInfo>{{.Req.PaymentInfo}}</PaymentInfo>
        <Account>{{x .Req.Account}}</Account>{{if .Req.SpecialServices}}
        <SpecialServices>{{range .Req.SpecialServices}}
          <Service><ServiceType>{{.}}</ServiceType></Service>{{end}}
        </SpecialServices>{{end}}
      </RequestedShipment>
    </rat:RateRequest>
  </soapenv:Body>
</soapenv:Envelope>
{{define "address"}}
            <StreetLines>{{x .StreetLines}}</StreetLines>{{if .StreetLines2}}
            <StreetLines2>{{x .StreetLines2}}</StreetLines2>{{end}}{{if .StreetLines3}}
            <StreetLines3>{{x .StreetLines3}}</StreetLines3>{{end}}
            <City>{{x .City}}</City>
            <PostalCode>{{x .PostalCode}}</PostalCode>
            <CountryCode>{{x .CountryCode}}</CountryCode>
          {{end}}`

var rateEnvelope = template.Must(template.New("rate").Funcs(template.FuncMap{
	"x":      escapeXML,
	"yn":     yesNo,
	"weight": func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) },
}).Parse(rateEnvelopeTemplate))

func (c *SOAPAPIClient) buildRateRequest(req *RateRequest) ([]byte, error) {
	data := struct {
		TokenID      string
		Username     string
		Password     string
		PasswordType string
		Timestamp    string
		Req          *RateRequest
	}{
		TokenID:      "UsernameToken-" + uuid.New().String(),
		Username:     c.username,
		Password:     c.password,
		PasswordType: passwordTextType,
		Timestamp:    req.ShipTimestamp.Format(timestampLayout),
		Req:          req,
	}

	var buf bytes.Buffer
	if err := rateEnvelope.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

// ============================================================================
// SOAP Response Parsers - XML Types
// ============================================================================

type soapEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    soapBody `xml:"Body"`
}

type soapBody struct {
	Fault        *soapFault       `xml:"Fault"`
	RateResponse *xmlRateResponse `xml:"RateResponse"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type xmlRateResponse struct {
	Provider []xmlProvider `xml:"Provider"`
}

type xmlProvider struct {
	Code         string            `xml:"code,attr"`
	Notification []xmlNotification `xml:"Notification"`
	Service      []xmlService      `xml:"Service"`
}

type xmlNotification struct {
	Code    string `xml:"code,attr"`
	Message string `xml:"Message"`
}

type xmlService struct {
	Type         string     `xml:"type,attr"`
	TotalNet     xmlMoney   `xml:"TotalNet"`
	Charges      xmlCharges `xml:"Charges"`
	DeliveryTime string     `xml:"DeliveryTime"`
}

type xmlMoney struct {
	Currency string `xml:"Currency"`
	Amount   string `xml:"Amount"`
}

type xmlCharges struct {
	Currency string      `xml:"Currency"`
	Charge   []xmlCharge `xml:"Charge"`
}

type xmlCharge struct {
	ChargeCode   string `xml:"ChargeCode"`
	ChargeType   string `xml:"ChargeType"`
	ChargeAmount string `xml:"ChargeAmount"`
}

func (r *xmlRateResponse) toRateResponse() (*RateResponse, error) {
	out := &RateResponse{}
	for _, p := range r.Provider {
		for _, n := range p.Notification {
			out.Notifications = append(out.Notifications, Notification{
				Code:    strings.TrimSpace(n.Code),
				Message: strings.TrimSpace(n.Message),
			})
		}
		for _, s := range p.Service {
			total, err := decimal.NewFromString(strings.TrimSpace(s.TotalNet.Amount))
			if err != nil {
				return nil, fmt.Errorf("invalid total for service %s: %w", s.Type, err)
			}
			svc := Service{
				Type:     s.Type,
				TotalNet: total,
				Currency: strings.TrimSpace(s.TotalNet.Currency),
			}
			if t, err := time.Parse(deliveryLayout, strings.TrimSpace(s.DeliveryTime)); err == nil {
				svc.DeliveryTime = &t
			}
			for _, ch := range s.Charges.Charge {
				amount, err := decimal.NewFromString(strings.TrimSpace(ch.ChargeAmount))
				if err != nil {
					continue
				}
				svc.Charges = append(svc.Charges, Charge{Type: ch.ChargeCode, Name: ch.ChargeType, Amount: amount})
			}
			out.Services = append(out.Services, svc)
		}
	}
	return out, nil
}

// Ensure SOAPAPIClient implements APIClient interface
var _ APIClient = (*SOAPAPIClient)(nil)
