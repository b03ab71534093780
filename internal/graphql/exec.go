package graphql

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"

	gql "github.com/99designs/gqlgen/graphql"
	"github.com/shopspring/decimal"
	"github.com/tournevent/shiprate/pkg/shipping"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

//go:embed schema.graphql
var schemaSDL string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSDL})

// Error codes reported in gqlerror extensions.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInternal       = "INTERNAL"
)

// ResolverRoot groups the resolvers of every object type with resolved fields.
type ResolverRoot interface {
	Query() QueryResolver
}

// QueryResolver resolves the root Query fields.
type QueryResolver interface {
	Health(ctx context.Context) (string, error)
	Providers(ctx context.Context) ([]string, error)
	GetRates(ctx context.Context, input RateRequestInput) (*RateResponse, error)
}

// Config binds resolvers to the schema.
type Config struct {
	Resolvers ResolverRoot
}

// NewExecutableSchema creates an ExecutableSchema for gqlgen's handler.
func NewExecutableSchema(cfg Config) gql.ExecutableSchema {
	return &executableSchema{resolvers: cfg.Resolvers}
}

type executableSchema struct {
	resolvers ResolverRoot
}

var _ gql.ExecutableSchema = (*executableSchema)(nil)

func (e *executableSchema) Schema() *ast.Schema {
	return parsedSchema
}

// Complexity leaves every field at gqlgen's default cost.
func (e *executableSchema) Complexity(ctx context.Context, typeName, field string, childComplexity int, rawArgs map[string]any) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) gql.ResponseHandler {
	opCtx := gql.GetOperationContext(ctx)
	ec := executionContext{OperationContext: opCtx, executableSchema: e}

	switch opCtx.Operation.Operation {
	case ast.Query:
		first := true
		return func(ctx context.Context) *gql.Response {
			if !first {
				return nil
			}
			first = false

			var buf bytes.Buffer
			ec._Query(ctx, opCtx.Operation.SelectionSet).MarshalGQL(&buf)
			return &gql.Response{Data: buf.Bytes()}
		}
	default:
		return gql.OneShot(gql.ErrorResponse(ctx, "unsupported GraphQL operation"))
	}
}

// PresentError tags resolver errors with an extensions code. Errors that
// already carry one, such as validation failures, are left alone.
func PresentError(ctx context.Context, err error) *gqlerror.Error {
	gerr := gql.DefaultErrorPresenter(ctx, err)
	if _, ok := gerr.Extensions["code"]; ok {
		return gerr
	}
	if gerr.Extensions == nil {
		gerr.Extensions = map[string]any{}
	}
	gerr.Extensions["code"] = errorCode(err)
	return gerr
}

func errorCode(err error) string {
	if errors.Is(err, shipping.ErrInvalidRequest) {
		return CodeInvalidRequest
	}
	return CodeInternal
}

type executionContext struct {
	*gql.OperationContext
	*executableSchema
}

// ============================================================================
// Query
// ============================================================================

var queryImplementors = []string{"Query"}

func (ec *executionContext) _Query(ctx context.Context, sel ast.SelectionSet) gql.Marshaler {
	fields := gql.CollectFields(ec.OperationContext, sel, queryImplementors)
	ctx = gql.WithFieldContext(ctx, &gql.FieldContext{Object: "Query"})

	out := gql.NewFieldSet(fields)
	invalids := 0
	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = gql.MarshalString("Query")
		case "health":
			out.Values[i] = ec.resolveQueryField(ctx, field, nil, func(ctx context.Context) (any, error) {
				return ec.resolvers.Query().Health(ctx)
			}, func(ctx context.Context, v any) gql.Marshaler {
				return gql.MarshalString(v.(string))
			})
		case "providers":
			out.Values[i] = ec.resolveQueryField(ctx, field, nil, func(ctx context.Context) (any, error) {
				return ec.resolvers.Query().Providers(ctx)
			}, func(ctx context.Context, v any) gql.Marshaler {
				return marshalStrings(v.([]string))
			})
		case "getRates":
			args := field.ArgumentMap(ec.Variables)
			out.Values[i] = ec.resolveQueryField(ctx, field, args, func(ctx context.Context) (any, error) {
				input, err := unmarshalRateRequestInput(args["input"])
				if err != nil {
					return nil, fmt.Errorf("%w: %w", shipping.ErrInvalidRequest, err)
				}
				return ec.resolvers.Query().GetRates(ctx, input)
			}, func(ctx context.Context, v any) gql.Marshaler {
				resp := v.(*RateResponse)
				if resp == nil {
					gql.AddErrorf(ctx, "must not be null")
					return gql.Null
				}
				return ec._RateResponse(ctx, field.Selections, resp)
			})
		case "__schema", "__type":
			fieldCtx := gql.WithFieldContext(ctx, &gql.FieldContext{Object: "Query", Field: field})
			gql.AddErrorf(fieldCtx, "introspection disabled")
			out.Values[i] = gql.Null
		default:
			panic("unknown field " + strconv.Quote(field.Name))
		}
		if out.Values[i] == gql.Null {
			invalids++
		}
	}

	// Every Query field is non-null, so one failure nulls the whole result.
	if invalids > 0 {
		return gql.Null
	}
	return out
}

// resolveQueryField runs resolve through the operation's resolver middleware
// and marshals its result. Errors and panics are recorded on the field's path.
func (ec *executionContext) resolveQueryField(
	ctx context.Context,
	field gql.CollectedField,
	args map[string]any,
	resolve gql.Resolver,
	marshal func(context.Context, any) gql.Marshaler,
) (ret gql.Marshaler) {
	ctx = gql.WithFieldContext(ctx, &gql.FieldContext{
		Object:     "Query",
		Field:      field,
		Args:       args,
		IsMethod:   true,
		IsResolver: true,
	})
	defer func() {
		if r := recover(); r != nil {
			gql.AddError(ctx, ec.Recover(ctx, r))
			ret = gql.Null
		}
	}()

	res, err := ec.ResolverMiddleware(ctx, resolve)
	if err != nil {
		gql.AddError(ctx, err)
		return gql.Null
	}
	if res == nil {
		gql.AddErrorf(ctx, "must not be null")
		return gql.Null
	}
	return marshal(ctx, res)
}

// ============================================================================
// Objects
// ============================================================================

var rateResponseImplementors = []string{"RateResponse"}

func (ec *executionContext) _RateResponse(ctx context.Context, sel ast.SelectionSet, obj *RateResponse) gql.Marshaler {
	fields := gql.CollectFields(ec.OperationContext, sel, rateResponseImplementors)
	out := gql.NewFieldSet(fields)
	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = gql.MarshalString("RateResponse")
		case "shipmentId":
			out.Values[i] = gql.MarshalString(obj.ShipmentID)
		case "rates":
			arr := make(gql.Array, len(obj.Rates))
			for j, rate := range obj.Rates {
				arr[j] = ec._Rate(ctx, field.Selections, rate)
			}
			out.Values[i] = arr
		case "errors":
			arr := make(gql.Array, len(obj.Errors))
			for j, perr := range obj.Errors {
				arr[j] = ec._ProviderError(ctx, field.Selections, perr)
			}
			out.Values[i] = arr
		case "internalErrors":
			out.Values[i] = marshalStrings(obj.InternalErrors)
		default:
			panic("unknown field " + strconv.Quote(field.Name))
		}
	}
	return out
}

var rateImplementors = []string{"Rate"}

func (ec *executionContext) _Rate(ctx context.Context, sel ast.SelectionSet, obj *Rate) gql.Marshaler {
	fields := gql.CollectFields(ec.OperationContext, sel, rateImplementors)
	out := gql.NewFieldSet(fields)
	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = gql.MarshalString("Rate")
		case "provider":
			out.Values[i] = gql.MarshalString(obj.Provider)
		case "serviceCode":
			out.Values[i] = gql.MarshalString(obj.ServiceCode)
		case "name":
			out.Values[i] = gql.MarshalString(obj.Name)
		case "totalCharges":
			out.Values[i] = gql.MarshalString(obj.TotalCharges)
		case "currency":
			out.Values[i] = gql.MarshalString(obj.Currency)
		case "guaranteedDelivery":
			out.Values[i] = marshalOptionalString(obj.GuaranteedDelivery)
		case "saturdayDelivery":
			out.Values[i] = gql.MarshalBoolean(obj.SaturdayDelivery)
		default:
			panic("unknown field " + strconv.Quote(field.Name))
		}
	}
	return out
}

var providerErrorImplementors = []string{"ProviderError"}

func (ec *executionContext) _ProviderError(ctx context.Context, sel ast.SelectionSet, obj *ProviderError) gql.Marshaler {
	fields := gql.CollectFields(ec.OperationContext, sel, providerErrorImplementors)
	out := gql.NewFieldSet(fields)
	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = gql.MarshalString("ProviderError")
		case "provider":
			out.Values[i] = gql.MarshalString(obj.Provider)
		case "number":
			out.Values[i] = gql.MarshalString(obj.Number)
		case "description":
			out.Values[i] = gql.MarshalString(obj.Description)
		case "source":
			out.Values[i] = marshalOptionalString(obj.Source)
		case "helpContext":
			out.Values[i] = marshalOptionalString(obj.HelpContext)
		case "helpFile":
			out.Values[i] = marshalOptionalString(obj.HelpFile)
		default:
			panic("unknown field " + strconv.Quote(field.Name))
		}
	}
	return out
}

func marshalStrings(v []string) gql.Marshaler {
	arr := make(gql.Array, len(v))
	for i, s := range v {
		arr[i] = gql.MarshalString(s)
	}
	return arr
}

func marshalOptionalString(v *string) gql.Marshaler {
	if v == nil {
		return gql.Null
	}
	return gql.MarshalString(*v)
}

// ============================================================================
// Inputs
// ============================================================================

// Argument values arrive already validated against the schema, so only
// conversion failures are reported here.

func unmarshalRateRequestInput(obj any) (RateRequestInput, error) {
	var it RateRequestInput
	asMap, ok := obj.(map[string]any)
	if !ok {
		return it, fmt.Errorf("input must be an object")
	}

	var err error
	for k, v := range asMap {
		switch k {
		case "origin":
			it.Origin, err = unmarshalAddressInput(v)
		case "destination":
			it.Destination, err = unmarshalAddressInput(v)
		case "packages":
			it.Packages, err = unmarshalPackageInputs(v)
		case "options":
			it.Options, err = unmarshalRateOptionsInput(v)
		}
		if err != nil {
			return it, fmt.Errorf("input.%s: %w", k, err)
		}
	}
	return it, nil
}

func unmarshalAddressInput(obj any) (*AddressInput, error) {
	if obj == nil {
		return nil, nil
	}
	asMap, ok := obj.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("must be an object")
	}

	it := &AddressInput{}
	var err error
	for k, v := range asMap {
		switch k {
		case "line1":
			it.Line1, err = unmarshalOptionalString(v)
		case "line2":
			it.Line2, err = unmarshalOptionalString(v)
		case "line3":
			it.Line3, err = unmarshalOptionalString(v)
		case "city":
			it.City, err = unmarshalOptionalString(v)
		case "state":
			it.State, err = unmarshalOptionalString(v)
		case "postalCode":
			it.PostalCode, err = gql.UnmarshalString(v)
		case "countryCode":
			it.CountryCode, err = unmarshalOptionalString(v)
		case "residential":
			it.Residential, err = unmarshalOptionalBoolean(v)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
	}
	return it, nil
}

func unmarshalPackageInputs(obj any) ([]*PackageInput, error) {
	list, ok := obj.([]any)
	if !ok {
		list = []any{obj}
	}
	out := make([]*PackageInput, 0, len(list))
	for i, item := range list {
		p, err := unmarshalPackageInput(item)
		if err != nil {
			return nil, fmt.Errorf("%d.%w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func unmarshalPackageInput(obj any) (*PackageInput, error) {
	asMap, ok := obj.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("must be an object")
	}

	it := &PackageInput{}
	var err error
	for k, v := range asMap {
		switch k {
		case "length":
			it.Length, err = unmarshalOptionalFloat(v)
		case "width":
			it.Width, err = unmarshalOptionalFloat(v)
		case "height":
			it.Height, err = unmarshalOptionalFloat(v)
		case "weight":
			it.Weight, err = gql.UnmarshalFloat(v)
		case "insuredValue":
			it.InsuredValue, err = unmarshalOptionalDecimal(v)
		case "units":
			if v != nil {
				var sys UnitSystem
				if err = sys.UnmarshalGQL(v); err == nil {
					it.Units = &sys
				}
			}
		case "container":
			it.Container, err = unmarshalOptionalString(v)
		case "signatureRequired":
			it.SignatureRequired, err = unmarshalOptionalBoolean(v)
		case "documents":
			it.Documents, err = unmarshalOptionalBoolean(v)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
	}
	return it, nil
}

func unmarshalRateOptionsInput(obj any) (*RateOptionsInput, error) {
	if obj == nil {
		return nil, nil
	}
	asMap, ok := obj.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("must be an object")
	}

	it := &RateOptionsInput{}
	var err error
	for k, v := range asMap {
		switch k {
		case "shipDate":
			it.ShipDate, err = unmarshalOptionalString(v)
		case "saturdayDelivery":
			it.SaturdayDelivery, err = unmarshalOptionalBoolean(v)
		case "currency":
			it.Currency, err = unmarshalOptionalString(v)
		case "fedexOneRate":
			it.FedExOneRate, err = unmarshalOptionalBoolean(v)
		case "providers":
			it.Providers, err = unmarshalStrings(v)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
	}
	return it, nil
}

func unmarshalOptionalString(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s, err := gql.UnmarshalString(v)
	return &s, err
}

func unmarshalOptionalBoolean(v any) (*bool, error) {
	if v == nil {
		return nil, nil
	}
	b, err := gql.UnmarshalBoolean(v)
	return &b, err
}

func unmarshalOptionalFloat(v any) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	f, err := gql.UnmarshalFloat(v)
	return &f, err
}

func unmarshalOptionalDecimal(v any) (*decimal.Decimal, error) {
	s, err := unmarshalOptionalString(v)
	if s == nil || err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("%q is not a decimal amount", *s)
	}
	return &d, nil
}

func unmarshalStrings(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		list = []any{v}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, err := gql.UnmarshalString(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
