package shipping

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/tournevent/shiprate/pkg/shipping"

// RateManager fans a rating request out to every registered provider and
// consolidates their results into one Shipment.
type RateManager struct {
	mu        sync.RWMutex
	providers []Provider
	adjusters []RateAdjuster

	logger   *otelzap.Logger
	tracer   trace.Tracer
	timeout  time.Duration
	limit    int
	observer Observer
}

// Option configures a RateManager.
type Option func(*RateManager)

// WithLogger sets the logger.
func WithLogger(logger *otelzap.Logger) Option {
	return func(m *RateManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTracer sets the tracer used for request and provider spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *RateManager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// WithProviderTimeout bounds every provider call. Zero means no timeout, in
// which case a provider that never returns blocks GetRates forever.
func WithProviderTimeout(d time.Duration) Option {
	return func(m *RateManager) {
		m.timeout = d
	}
}

// WithConcurrencyLimit caps how many providers run at once. Zero means no cap.
func WithConcurrencyLimit(n int) Option {
	return func(m *RateManager) {
		m.limit = n
	}
}

// WithObserver registers an observer notified after every provider call.
func WithObserver(o Observer) Option {
	return func(m *RateManager) {
		m.observer = o
	}
}

// NewRateManager creates a rate manager with no providers or adjusters.
func NewRateManager(opts ...Option) *RateManager {
	m := &RateManager{
		logger: otelzap.New(zap.NewNop()),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddProvider registers a provider. Registration order has no effect on the
// order of returned rates.
func (m *RateManager) AddProvider(p Provider) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers = append(m.providers, p)
}

// AddRateAdjuster appends an adjuster to the chain applied to every rate.
func (m *RateManager) AddRateAdjuster(a RateAdjuster) {
	if a == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjusters = append(m.adjusters, a)
}

// ProviderNames returns the names of all registered providers in registration order.
func (m *RateManager) ProviderNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for _, p := range m.providers {
		names = append(names, providerName(p))
	}
	return names
}

// GetRates rates the shipment with every selected provider concurrently and
// returns once all of them have finished. It only fails for invalid input;
// provider failures are reported in the Shipment's Errors and InternalErrors.
func (m *RateManager) GetRates(ctx context.Context, origin, destination *Address, packages []Package, opts *ShipmentOptions) (*Shipment, error) {
	shipment, providers, err := m.prepare(origin, destination, packages, opts)
	if err != nil {
		return nil, err
	}
	m.dispatch(ctx, shipment, providers)
	return shipment, nil
}

// GetRatesAsync validates the input synchronously, then rates in the
// background. The returned channel yields the completed Shipment once.
func (m *RateManager) GetRatesAsync(ctx context.Context, origin, destination *Address, packages []Package, opts *ShipmentOptions) (<-chan *Shipment, error) {
	shipment, providers, err := m.prepare(origin, destination, packages, opts)
	if err != nil {
		return nil, err
	}

	ch := make(chan *Shipment, 1)
	go func() {
		defer close(ch)
		m.dispatch(ctx, shipment, providers)
		ch <- shipment
	}()
	return ch, nil
}

func (m *RateManager) prepare(origin, destination *Address, packages []Package, opts *ShipmentOptions) (*Shipment, []Provider, error) {
	if err := validateRequest(origin, destination, packages); err != nil {
		return nil, nil, err
	}

	var options ShipmentOptions
	if opts != nil {
		options = *opts
		options.Providers = append([]string(nil), opts.Providers...)
	}

	m.mu.RLock()
	providers := append([]Provider(nil), m.providers...)
	adjusters := append([]RateAdjuster(nil), m.adjusters...)
	m.mu.RUnlock()

	shipment := NewShipment(uuid.New().String(), *origin, *destination, packages, options, adjusters...)

	if len(options.Providers) == 0 {
		return shipment, providers, nil
	}

	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[strings.ToLower(providerName(p))] = p
	}
	selected := make([]Provider, 0, len(options.Providers))
	for _, name := range options.Providers {
		p, ok := byName[strings.ToLower(name)]
		if !ok {
			shipment.InternalErrors = append(shipment.InternalErrors, fmt.Sprintf("%s: %v", name, ErrProviderNotFound))
			continue
		}
		selected = append(selected, p)
	}
	return shipment, selected, nil
}

func validateRequest(origin, destination *Address, packages []Package) error {
	if origin == nil {
		return fmt.Errorf("%w: origin is required", ErrInvalidRequest)
	}
	if destination == nil {
		return fmt.Errorf("%w: destination is required", ErrInvalidRequest)
	}
	if len(packages) == 0 {
		return fmt.Errorf("%w: at least one package is required", ErrInvalidRequest)
	}
	for i, p := range packages {
		if p.weight < 0 || p.length < 0 || p.width < 0 || p.height < 0 {
			return fmt.Errorf("%w: %w: package %d has negative measurements", ErrInvalidRequest, ErrInvalidPackage, i)
		}
	}
	return nil
}

// dispatch runs every provider in its own goroutine, waits for all of them,
// then merges their isolated results into the shipment.
func (m *RateManager) dispatch(ctx context.Context, shipment *Shipment, providers []Provider) {
	ctx, span := m.tracer.Start(ctx, "shipping.GetRates", trace.WithAttributes(
		attribute.String("shipment.id", shipment.ID),
		attribute.Int("provider.count", len(providers)),
	))
	defer span.End()

	results := make([]*RateResult, len(providers))

	var g errgroup.Group
	if m.limit > 0 {
		g.SetLimit(m.limit)
	}
	for i, p := range providers {
		g.Go(func() error {
			results[i] = m.callProvider(ctx, p, shipment)
			return nil // never fail the group, siblings keep running
		})
	}
	_ = g.Wait()

	for _, res := range results {
		shipment.merge(res)
	}

	span.SetAttributes(
		attribute.Int("rates.count", len(shipment.Rates)),
		attribute.Int("errors.count", len(shipment.Errors)),
		attribute.Int("internal_errors.count", len(shipment.InternalErrors)),
	)
	m.logger.Ctx(ctx).Info("Rated shipment",
		zap.String("shipment_id", shipment.ID),
		zap.Int("providers", len(providers)),
		zap.Int("rates", len(shipment.Rates)),
		zap.Int("errors", len(shipment.Errors)),
		zap.Int("internal_errors", len(shipment.InternalErrors)),
	)
}

// callProvider invokes one provider, converting returned errors and panics
// into internal errors attributed to that provider.
func (m *RateManager) callProvider(ctx context.Context, p Provider, shipment *Shipment) (res *RateResult) {
	name := providerName(p)
	ctx, span := m.tracer.Start(ctx, "shipping.provider", trace.WithAttributes(
		attribute.String("provider", name),
	))
	defer span.End()

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Ctx(ctx).Error("Provider panicked",
				zap.String("provider", name),
				zap.Any("panic", r),
			)
			res = &RateResult{InternalErrors: []string{fmt.Sprintf("panic: %v", r)}}
		}
		res = attributeResult(name, res)

		if len(res.InternalErrors) > 0 {
			span.SetStatus(codes.Error, res.InternalErrors[0])
		}
		span.SetAttributes(attribute.Int("rates.count", len(res.Rates)))

		m.observe(ctx, name, time.Since(start), res)
	}()

	res, err := p.GetRates(ctx, shipment)
	if err != nil {
		m.logger.Ctx(ctx).Warn("Provider failed",
			zap.String("provider", name),
			zap.Bool("retryable", IsRetryable(err)),
			zap.Error(err),
		)
		span.RecordError(err)

		failed := &RateResult{}
		if res != nil {
			*failed = *res
		}
		failed.InternalErrors = append(append([]string{}, failed.InternalErrors...), err.Error())
		return failed
	}
	return res
}

// providerName returns p.Name(), falling back to the provider's type when
// Name panics.
func providerName(p Provider) (name string) {
	defer func() {
		if r := recover(); r != nil {
			name = fmt.Sprintf("%T", p)
		}
	}()
	return p.Name()
}

// observe reports a provider call to the observer. An observer panic is
// logged and dropped.
func (m *RateManager) observe(ctx context.Context, name string, elapsed time.Duration, res *RateResult) {
	if m.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Ctx(ctx).Error("Observer panicked",
				zap.String("provider", name),
				zap.Any("panic", r),
			)
		}
	}()
	m.observer.ObserveProvider(ctx, name, elapsed, res)
}

// attributeResult copies res, stamping the provider name on rates and errors and
// prefixing internal errors with it.
func attributeResult(name string, res *RateResult) *RateResult {
	out := &RateResult{
		Rates:          []Rate{},
		Errors:         []ProviderError{},
		InternalErrors: []string{},
	}
	if res == nil {
		return out
	}
	for _, r := range res.Rates {
		if r.Provider == "" {
			r.Provider = name
		}
		out.Rates = append(out.Rates, r)
	}
	for _, e := range res.Errors {
		if e.Provider == "" {
			e.Provider = name
		}
		out.Errors = append(out.Errors, e)
	}
	for _, msg := range res.InternalErrors {
		out.InternalErrors = append(out.InternalErrors, name+": "+msg)
	}
	return out
}
