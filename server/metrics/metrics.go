// Package metrics holds the Prometheus collectors exported by the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates Prometheus metrics for the server.
type Metrics struct {
	registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
	ErrorsTotal     *prometheus.CounterVec
	RateLimitHits   prometheus.Counter
	QueueLength     prometheus.Gauge
	QueueRejected   prometheus.Counter

	// IngredientRequests counts ingredient lookups by outcome
	// (success, validation_error, config_error, provider_error, internal_error)
	IngredientRequests *prometheus.CounterVec
	// IngredientsReturned observes how many ingredients each successful lookup returned
	IngredientsReturned prometheus.Histogram

	ProviderRequests     *prometheus.CounterVec
	ProviderLatency      *prometheus.HistogramVec
	DeduplicatedRequests prometheus.Counter
	BreakerState         *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with a custom registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sous_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sous_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sous_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sous_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		RateLimitHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sous_rate_limit_hits_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
		QueueLength: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sous_queue_length",
				Help: "Number of ingredient requests currently admitted by the queue",
			},
		),
		QueueRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sous_queue_rejected_total",
				Help: "Total number of requests rejected because the queue was full",
			},
		),
		IngredientRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sous_ingredient_requests_total",
				Help: "Total number of ingredient lookups by outcome",
			},
			[]string{"outcome"},
		),
		IngredientsReturned: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sous_ingredients_returned",
				Help:    "Number of ingredients returned per successful lookup",
				Buckets: []float64{0, 1, 3, 5, 10, 20, 50},
			},
		),
		ProviderRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sous_provider_requests_total",
				Help: "Total number of text-generation calls by provider and result",
			},
			[]string{"provider", "result"},
		),
		ProviderLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sous_provider_request_latency_seconds",
				Help:    "Latency of text-generation calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		DeduplicatedRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sous_deduplicated_requests_total",
				Help: "Number of generation calls served by an identical in-flight call",
			},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sous_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}

	// Register default Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	for _, outcome := range []string{"success", "validation_error", "config_error", "provider_error", "internal_error"} {
		m.IngredientRequests.WithLabelValues(outcome).Add(0)
	}

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
}
