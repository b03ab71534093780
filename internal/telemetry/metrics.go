package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tournevent/shiprate/pkg/shipping"
)

// Provider call outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeProviderError = "provider_error"
	OutcomeInternalError = "internal_error"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ProviderCalls    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	ProviderErrors   *prometheus.CounterVec
	RatesReturned    *prometheus.CounterVec
}

// NewMetrics creates metrics and registers them with reg. A nil reg uses the
// default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiprate_requests_total",
				Help: "Total number of requests by operation and status",
			},
			[]string{"operation", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shiprate_request_duration_seconds",
				Help:    "Request duration in seconds by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ProviderCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiprate_provider_calls_total",
				Help: "Total provider rating calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		ProviderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shiprate_provider_duration_seconds",
				Help:    "Provider rating call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		ProviderErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiprate_provider_errors_total",
				Help: "Total errors reported by providers by error kind",
			},
			[]string{"provider", "kind"},
		),
		RatesReturned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiprate_rates_returned_total",
				Help: "Total rates returned by provider",
			},
			[]string{"provider"},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveProvider implements shipping.Observer.
func (m *Metrics) ObserveProvider(_ context.Context, provider string, elapsed time.Duration, result *shipping.RateResult) {
	outcome := OutcomeOK
	if result != nil {
		switch {
		case len(result.InternalErrors) > 0:
			outcome = OutcomeInternalError
		case len(result.Errors) > 0:
			outcome = OutcomeProviderError
		}
		m.RatesReturned.WithLabelValues(provider).Add(float64(len(result.Rates)))
		if n := len(result.Errors); n > 0 {
			m.ProviderErrors.WithLabelValues(provider, "provider").Add(float64(n))
		}
		if n := len(result.InternalErrors); n > 0 {
			m.ProviderErrors.WithLabelValues(provider, "internal").Add(float64(n))
		}
	}
	m.ProviderCalls.WithLabelValues(provider, outcome).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

var _ shipping.Observer = (*Metrics)(nil)
