package graphql

import (
	"context"
	"errors"
	"time"

	"github.com/tournevent/shiprate/internal/telemetry"
	"github.com/tournevent/shiprate/pkg/shipping"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Resolver is the root resolver for the GraphQL schema.
// It holds dependencies needed by all resolvers.
type Resolver struct {
	Manager *shipping.RateManager
	Logger  *otelzap.Logger
	Metrics *telemetry.Metrics
}

// NewResolver creates a new resolver with the given dependencies.
func NewResolver(manager *shipping.RateManager, logger *otelzap.Logger, metrics *telemetry.Metrics) *Resolver {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	return &Resolver{
		Manager: manager,
		Logger:  logger,
		Metrics: metrics,
	}
}

// Query returns the root query resolver.
func (r *Resolver) Query() QueryResolver {
	return r
}

// Health resolves Query.health.
func (r *Resolver) Health(ctx context.Context) (string, error) {
	return "ok", nil
}

// Providers resolves Query.providers.
func (r *Resolver) Providers(ctx context.Context) ([]string, error) {
	return r.Manager.ProviderNames(), nil
}

// GetRates resolves Query.getRates. Provider failures are returned inside
// the payload; only invalid input produces an error.
func (r *Resolver) GetRates(ctx context.Context, input RateRequestInput) (*RateResponse, error) {
	start := time.Now()

	resp, err := r.getRates(ctx, input)
	if r.Metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		r.Metrics.RecordRequest("getRates", status, time.Since(start))
	}
	return resp, err
}

func (r *Resolver) getRates(ctx context.Context, input RateRequestInput) (*RateResponse, error) {
	opts, err := optionsInputToModel(input.Options)
	if err != nil {
		return nil, err
	}

	var origin, destination *shipping.Address
	if input.Origin != nil {
		a := addressInputToModel(input.Origin)
		origin = &a
	}
	if input.Destination != nil {
		a := addressInputToModel(input.Destination)
		destination = &a
	}

	shipment, err := r.Manager.GetRates(ctx, origin, destination, packagesInputToModel(input.Packages), opts)
	if err != nil {
		if errors.Is(err, shipping.ErrInvalidRequest) {
			r.Logger.Ctx(ctx).Info("Rejected rate request", zap.Error(err))
		} else {
			r.Logger.Ctx(ctx).Error("Rating failed", zap.Error(err))
		}
		return nil, err
	}

	return shipmentToGraphQL(shipment), nil
}
