package provider

import (
	"context"
	"time"

	"github.com/teilomillet/sous/server/metrics"
)

// Instrumented records latency and outcome of every call in Prometheus.
type Instrumented struct {
	next     Generator
	provider string
	metrics  *metrics.Metrics
}

// NewInstrumented wraps next and labels its metrics with provider.
func NewInstrumented(next Generator, provider string, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: next, provider: provider, metrics: m}
}

func (i *Instrumented) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := i.next.Generate(ctx, prompt)
	i.metrics.ProviderLatency.WithLabelValues(i.provider).Observe(time.Since(start).Seconds())

	result := "success"
	if err != nil {
		result = "error"
	}
	i.metrics.ProviderRequests.WithLabelValues(i.provider, result).Inc()
	return text, err
}

func (i *Instrumented) Close() error {
	return Close(i.next)
}
