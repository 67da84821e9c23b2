package provider

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
	"github.com/teilomillet/sous/config"
	"github.com/teilomillet/sous/server/metrics"
	"go.uber.org/zap"
)

// Breaker stops calling the wrapped generator after a run of consecutive
// failures. While open, calls fail immediately with gobreaker.ErrOpenState.
type Breaker struct {
	next Generator
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next with a circuit breaker configured from cfg.
// State changes are logged and, when m is non-nil, exported as a gauge.
func NewBreaker(next Generator, name string, cfg config.CircuitBreakerConfig, logger *zap.Logger, m *metrics.Metrics) *Breaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	if m != nil {
		m.BreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A caller that went away says nothing about the provider.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if m != nil {
				m.BreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	}

	return &Breaker{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *Breaker) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// State reports the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) Close() error {
	return Close(b.next)
}
