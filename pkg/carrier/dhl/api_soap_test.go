package dhl_test

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shiprate/pkg/carrier/dhl"
	"github.com/tournevent/shiprate/pkg/shipping"
)

const rateResponseXML = `<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/">
  <SOAP-ENV:Body>
    <rateresp:RateResponse xmlns:rateresp="http://scxgxtt.phx-dc.dhl.com/euExpressRateBook/RateMsgResponse">
      <Provider code="DHL">
        <Notification code="0"><Message/></Notification>
        <Service type="P" account="950000002">
          <TotalNet><Currency>USD</Currency><Amount>152.37</Amount></TotalNet>
          <Charges>
            <Currency>USD</Currency>
            <Charge><ChargeCode>P</ChargeCode><ChargeType>EXPRESS WORLDWIDE</ChargeType><ChargeAmount>131.20</ChargeAmount></Charge>
            <Charge><ChargeCode>FF</ChargeCode><ChargeType>FUEL SURCHARGE</ChargeType><ChargeAmount>21.17</ChargeAmount></Charge>
          </Charges>
          <DeliveryTime>2024-03-04T23:59:00</DeliveryTime>
          <CutoffTime>2024-02-29T17:00:00</CutoffTime>
          <NextBusinessDayInd>N</NextBusinessDayInd>
        </Service>
      </Provider>
    </rateresp:RateResponse>
  </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

// sentRequest is the part of the RateRequest envelope the tests inspect.
type sentRequest struct {
	Header struct {
		Security struct {
			UsernameToken struct {
				Username string `xml:"Username"`
				Password string `xml:"Password"`
			} `xml:"UsernameToken"`
		} `xml:"Security"`
	} `xml:"Header"`
	Body struct {
		RateRequest struct {
			RequestedShipment struct {
				NextBusinessDay string `xml:"NextBusinessDay"`
				Ship            struct {
					Shipper struct {
						StreetLines string `xml:"StreetLines"`
						CountryCode string `xml:"CountryCode"`
					} `xml:"Shipper"`
				} `xml:"Ship"`
				Packages struct {
					RequestedPackages []struct {
						Number string `xml:"number,attr"`
						Weight string `xml:"Weight>Value"`
						Length string `xml:"Dimensions>Length"`
					} `xml:"RequestedPackages"`
				} `xml:"Packages"`
				ShipTimestamp string `xml:"ShipTimestamp"`
				Content       string `xml:"Content"`
				DeclaredValue string `xml:"DeclaredValue"`
				Account       string `xml:"Account"`
			} `xml:"RequestedShipment"`
		} `xml:"RateRequest"`
	} `xml:"Body"`
}

func newSOAPClient(url string) *dhl.Client {
	return dhl.New(dhl.Config{
		Username:      "user",
		Password:      "p<ss&word",
		AccountNumber: "950000002",
		BaseURL:       url,
	}, nil, nil)
}

func TestSOAPAPIClient_GetRates(t *testing.T) {
	var sent sentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/expressRateBook", r.URL.Path)
		assert.Contains(t, r.Header.Get("SOAPAction"), "getRateRequest")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, xml.Unmarshal(body, &sent), "request must be well-formed XML")
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(rateResponseXML))
	}))
	defer srv.Close()

	origin := guilford
	origin.Line1 = "Smith & Sons, 11 Broad St"
	res, err := newSOAPClient(srv.URL).GetRates(context.Background(), testShipment(origin, toronto, shipping.ShipmentOptions{}))

	require.NoError(t, err)
	require.Len(t, res.Rates, 1)
	assert.Equal(t, "P", res.Rates[0].ServiceCode)
	assert.Equal(t, "152.37", res.Rates[0].TotalCharges.StringFixed(2))
	require.NotNil(t, res.Rates[0].GuaranteedDelivery)
	assert.Equal(t, 4, res.Rates[0].GuaranteedDelivery.Day())

	assert.Equal(t, "user", sent.Header.Security.UsernameToken.Username)
	assert.Equal(t, "p<ss&word", sent.Header.Security.UsernameToken.Password)
	shipment := sent.Body.RateRequest.RequestedShipment
	assert.Equal(t, "Y", shipment.NextBusinessDay)
	assert.Equal(t, "Smith & Sons, 11 Broad St", shipment.Ship.Shipper.StreetLines)
	assert.Equal(t, "US", shipment.Ship.Shipper.CountryCode)
	assert.Equal(t, "2024-02-29T09:00:00GMT+00:00", shipment.ShipTimestamp)
	assert.Equal(t, "NON_DOCUMENTS", shipment.Content)
	assert.Equal(t, "150.00", shipment.DeclaredValue)
	assert.Equal(t, "950000002", shipment.Account)
	require.Len(t, shipment.Packages.RequestedPackages, 1)
	assert.Equal(t, "1", shipment.Packages.RequestedPackages[0].Number)
	assert.Equal(t, "35.000", shipment.Packages.RequestedPackages[0].Weight)
	assert.Equal(t, "12", shipment.Packages.RequestedPackages[0].Length)
}

func TestSOAPAPIClient_Notification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/"><SOAP-ENV:Body>
<rateresp:RateResponse xmlns:rateresp="http://scxgxtt.phx-dc.dhl.com/euExpressRateBook/RateMsgResponse">
<Provider code="DHL"><Notification code="1001"><Message>The requested product(s) (P) not available based on your search criteria.</Message></Notification></Provider>
</rateresp:RateResponse></SOAP-ENV:Body></SOAP-ENV:Envelope>`))
	}))
	defer srv.Close()

	res, err := newSOAPClient(srv.URL).GetRates(context.Background(), testShipment(guilford, toronto, shipping.ShipmentOptions{}))

	require.NoError(t, err)
	assert.Empty(t, res.Rates)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "1001", res.Errors[0].Number)
	assert.Contains(t, res.Errors[0].Description, "not available")
}

func TestSOAPAPIClient_Fault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body>
<soapenv:Fault><faultcode>soapenv:Server</faultcode><faultstring>Security header is invalid</faultstring></soapenv:Fault>
</soapenv:Body></soapenv:Envelope>`))
	}))
	defer srv.Close()

	res, err := newSOAPClient(srv.URL).GetRates(context.Background(), testShipment(guilford, toronto, shipping.ShipmentOptions{}))

	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "soapenv:Server", res.Errors[0].Number)
	assert.Equal(t, "Security header is invalid", res.Errors[0].Description)
}

func TestSOAPAPIClient_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
		_, _ = w.Write([]byte("upstream timed out"))
	}))
	defer srv.Close()

	_, err := newSOAPClient(srv.URL).GetRates(context.Background(), testShipment(guilford, toronto, shipping.ShipmentOptions{}))

	require.Error(t, err)
	assert.ErrorIs(t, err, shipping.ErrServiceUnavailable)
}
