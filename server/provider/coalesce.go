package provider

import (
	"context"

	"github.com/teilomillet/sous/server/metrics"
	"golang.org/x/sync/singleflight"
)

// Coalescer lets concurrent calls with the same prompt share one upstream
// call. Nothing is cached: once the shared call returns, the next caller
// triggers a fresh one.
type Coalescer struct {
	next    Generator
	group   singleflight.Group
	metrics *metrics.Metrics
}

// NewCoalescer wraps next. m may be nil.
func NewCoalescer(next Generator, m *metrics.Metrics) *Coalescer {
	return &Coalescer{next: next, metrics: m}
}

// Generate runs the upstream call under the first caller's context.
// If that caller's context is cancelled, everyone sharing the call gets the error.
func (c *Coalescer) Generate(ctx context.Context, prompt string) (string, error) {
	v, err, shared := c.group.Do(prompt, func() (interface{}, error) {
		return c.next.Generate(ctx, prompt)
	})
	if shared && c.metrics != nil {
		c.metrics.DeduplicatedRequests.Inc()
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Coalescer) Close() error {
	return Close(c.next)
}
