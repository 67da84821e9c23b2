// Package provider adapts text-generation services to the single operation the
// ingredient service needs: send one prompt, get one reply.
package provider

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/teilomillet/sous/config"
	"github.com/teilomillet/sous/server/metrics"
	"go.uber.org/zap"
)

// Generator sends a single prompt and returns the generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var displayNames = map[string]string{
	"gemini":    "Gemini",
	"openai":    "OpenAI",
	"anthropic": "Anthropic",
	"ollama":    "Ollama",
	"groq":      "Groq",
	"mistral":   "Mistral",
}

// DisplayName returns the human-readable provider name used in error messages.
func DisplayName(provider string) string {
	p := strings.ToLower(provider)
	if name, ok := displayNames[p]; ok {
		return name
	}
	if p == "" {
		return "Provider"
	}
	return strings.ToUpper(p[:1]) + p[1:]
}

// New builds the configured generator and wraps it with the optional
// decorators enabled in cfg. m may be nil, in which case no metrics are
// recorded. A missing credential yields an error wrapping ErrNotConfigured.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("provider", cfg.LLM.Provider), zap.String("model", cfg.LLM.Model))

	var (
		base Generator
		err  error
	)
	switch strings.ToLower(cfg.LLM.Provider) {
	case "gemini":
		base, err = NewGemini(ctx, cfg.LLM, logger)
	default:
		base, err = NewGollm(cfg.LLM, logger)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("text generation provider ready",
		zap.String("api_key", config.MaskSecret(cfg.LLM.APIKey)),
	)

	return Wrap(base, cfg, logger, m), nil
}

// Wrap applies the decorators enabled in cfg to gen. The order, from the
// outside in, is coalescing, circuit breaking and instrumentation, so shared
// calls are counted once and an open breaker is visible in the metrics.
func Wrap(gen Generator, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) Generator {
	if m != nil {
		gen = NewInstrumented(gen, cfg.LLM.Provider, m)
	}
	if cfg.CircuitBreaker.Enabled {
		gen = NewBreaker(gen, cfg.LLM.Provider, cfg.CircuitBreaker, logger, m)
	}
	if cfg.Dedupe.Enabled {
		gen = NewCoalescer(gen, m)
	}
	return gen
}

// Close releases resources held by gen if it holds any.
func Close(gen Generator) error {
	if c, ok := gen.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func notConfigured(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotConfigured, fmt.Sprintf(format, args...))
}
