package graphql_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	gql "github.com/99designs/gqlgen/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shiprate/internal/graphql"
)

type gqlError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path"`
	Extensions map[string]any `json:"extensions"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	resolver, _ := newTestResolver()
	return graphql.NewHandler(resolver)
}

// execute posts params to h and returns the decoded data object with the
// raw response.
func execute(t *testing.T, h http.Handler, params *gql.RawParams) (map[string]any, gqlResponse, int) {
	t.Helper()
	body, err := json.Marshal(params)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp gqlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	var data map[string]any
	if len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, &data))
	}
	return data, resp, rec.Code
}

const getRatesQuery = `query Quote($input: RateRequestInput!) {
  getRates(input: $input) {
    shipmentId
    rates { provider serviceCode totalCharges }
    internalErrors
  }
}`

func quoteVariables() map[string]any {
	return map[string]any{
		"input": map[string]any{
			"origin":      map[string]any{"postalCode": "06405", "countryCode": "US"},
			"destination": map[string]any{"postalCode": "20852", "countryCode": "US"},
			"packages": []any{
				map[string]any{"length": 12.0, "width": 12.0, "height": 12.0, "weight": 5.0, "insuredValue": "100"},
			},
		},
	}
}

func TestHandler_Health(t *testing.T) {
	data, resp, status := execute(t, newTestHandler(t), &gql.RawParams{Query: `{ health }`})

	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, resp.Errors)
	assert.Equal(t, "ok", data["health"])
}

func TestHandler_ProvidersWithAlias(t *testing.T) {
	data, resp, _ := execute(t, newTestHandler(t), &gql.RawParams{Query: `{ carriers: providers __typename }`})

	assert.Empty(t, resp.Errors)
	assert.Equal(t, []any{"ups", "usps", "dhl"}, data["carriers"])
	assert.Equal(t, "Query", data["__typename"])
}

func TestHandler_GetRates(t *testing.T) {
	data, resp, _ := execute(t, newTestHandler(t), &gql.RawParams{
		Query:     getRatesQuery,
		Variables: quoteVariables(),
	})

	require.Empty(t, resp.Errors)
	result := data["getRates"].(map[string]any)
	assert.NotEmpty(t, result["shipmentId"])
	rates := result["rates"].([]any)
	require.Len(t, rates, 2)
	assert.Equal(t, map[string]any{"provider": "usps", "serviceCode": "1058", "totalCharges": "8.10"}, rates[0])
	assert.Len(t, result["internalErrors"], 1)
	assert.NotContains(t, result, "errors", "unselected fields are omitted")
}

func TestHandler_GetRates_InlineArguments(t *testing.T) {
	query := `{
  getRates(input: {
    origin: {postalCode: "06405"}
    destination: {postalCode: "20852"}
    packages: [{weight: 5, length: 10, width: 10, height: 10, units: IMPERIAL}]
    options: {providers: ["ups"]}
  }) {
    rates { ...rateFields }
    errors { number }
  }
}
fragment rateFields on Rate { provider name saturdayDelivery guaranteedDelivery }`

	data, resp, _ := execute(t, newTestHandler(t), &gql.RawParams{Query: query})

	require.Empty(t, resp.Errors)
	result := data["getRates"].(map[string]any)
	rates := result["rates"].([]any)
	require.Len(t, rates, 1)
	assert.Equal(t, map[string]any{"provider": "ups", "name": "UPS Ground", "saturdayDelivery": false, "guaranteedDelivery": nil}, rates[0])
	assert.Equal(t, []any{}, result["errors"])
}

func TestHandler_FieldOrder(t *testing.T) {
	_, resp, _ := execute(t, newTestHandler(t), &gql.RawParams{Query: `{ providers health }`})

	require.Empty(t, resp.Errors)
	assert.Equal(t, `{"providers":["ups","usps","dhl"],"health":"ok"}`, string(resp.Data))
}

func TestHandler_SkipAndInclude(t *testing.T) {
	data, resp, _ := execute(t, newTestHandler(t), &gql.RawParams{
		Query:     `query($withProviders: Boolean!) { health @skip(if: true) providers @include(if: $withProviders) }`,
		Variables: map[string]any{"withProviders": false},
	})

	require.Empty(t, resp.Errors)
	assert.Empty(t, data)
}

func TestHandler_InvalidRequest(t *testing.T) {
	vars := quoteVariables()
	vars["input"].(map[string]any)["packages"] = []any{}

	data, resp, status := execute(t, newTestHandler(t), &gql.RawParams{Query: getRatesQuery, Variables: vars})

	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, data)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, graphql.CodeInvalidRequest, resp.Errors[0].Extensions["code"])
	assert.Contains(t, resp.Errors[0].Message, "at least one package")
	assert.Equal(t, []any{"getRates"}, resp.Errors[0].Path)
}

func TestHandler_InvalidInsuredValue(t *testing.T) {
	vars := quoteVariables()
	pkg := vars["input"].(map[string]any)["packages"].([]any)[0].(map[string]any)
	pkg["insuredValue"] = "a lot"

	data, resp, _ := execute(t, newTestHandler(t), &gql.RawParams{Query: getRatesQuery, Variables: vars})

	assert.Nil(t, data)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, graphql.CodeInvalidRequest, resp.Errors[0].Extensions["code"])
	assert.Contains(t, resp.Errors[0].Message, "input.packages")
}

func TestHandler_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		params *gql.RawParams
	}{
		{"syntax error", &gql.RawParams{Query: `{ health `}},
		{"unknown field", &gql.RawParams{Query: `{ trackShipment }`}},
		{"missing variable", &gql.RawParams{Query: getRatesQuery}},
		{"wrong variable type", &gql.RawParams{Query: getRatesQuery, Variables: map[string]any{"input": "06405"}}},
		{"unknown operation", &gql.RawParams{Query: `query A { health } query B { providers }`, OperationName: "C"}},
		{"ambiguous operation", &gql.RawParams{Query: `query A { health } query B { providers }`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, resp, status := execute(t, newTestHandler(t), tt.params)

			assert.Equal(t, http.StatusUnprocessableEntity, status)
			assert.NotEmpty(t, resp.Errors)
			assert.Nil(t, data)
		})
	}
}

func TestHandler_NamedOperation(t *testing.T) {
	data, resp, _ := execute(t, newTestHandler(t), &gql.RawParams{
		Query:         `query A { health } query B { providers }`,
		OperationName: "B",
	})

	require.Empty(t, resp.Errors)
	assert.Contains(t, data, "providers")
	assert.NotContains(t, data, "health")
}

func TestHandler_RejectsMutations(t *testing.T) {
	data, resp, _ := execute(t, newTestHandler(t), &gql.RawParams{Query: `mutation { health }`})

	assert.NotEmpty(t, resp.Errors)
	assert.Nil(t, data)
}

func TestHandler_IntrospectionDisabled(t *testing.T) {
	data, resp, _ := execute(t, newTestHandler(t), &gql.RawParams{Query: `{ __schema { queryType { name } } }`})

	assert.Nil(t, data)
	assert.NotEmpty(t, resp.Errors)
}
