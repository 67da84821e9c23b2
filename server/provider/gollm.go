package provider

import (
	"context"
	"strings"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/sous/config"
	"go.uber.org/zap"
)

// Gollm serves every provider supported by gollm (openai, anthropic, ollama, ...).
type Gollm struct {
	llm    gollm.LLM
	logger *zap.Logger
}

// NewGollm creates a gollm client for cfg. Ollama runs locally and needs no key.
func NewGollm(cfg config.LLMConfig, logger *zap.Logger) (*Gollm, error) {
	provider := strings.ToLower(cfg.Provider)
	if cfg.APIKey == "" && provider != "ollama" {
		return nil, notConfigured("%s is not set", config.APIKeyEnv(cfg.Provider))
	}

	llm, err := gollm.NewLLM(
		gollm.SetProvider(provider),
		gollm.SetModel(cfg.Model),
		gollm.SetAPIKey(cfg.APIKey),
	)
	if err != nil {
		return nil, notConfigured("create %s client: %v", provider, err)
	}

	return NewGollmFromLLM(llm, cfg, logger)
}

// NewGollmFromLLM wraps an existing gollm client and applies the endpoint and
// generation options from cfg. The endpoint is only applied for ollama.
func NewGollmFromLLM(llm gollm.LLM, cfg config.LLMConfig, logger *zap.Logger) (*Gollm, error) {
	if cfg.Endpoint != "" && strings.EqualFold(cfg.Provider, "ollama") {
		if err := llm.SetOllamaEndpoint(cfg.Endpoint); err != nil {
			return nil, notConfigured("set endpoint: %v", err)
		}
	}
	if cfg.Options.Temperature > 0 {
		llm.SetOption("temperature", float64(cfg.Options.Temperature))
	}
	if cfg.Options.TopP > 0 {
		llm.SetOption("top_p", float64(cfg.Options.TopP))
	}
	if cfg.Options.TopK > 0 {
		llm.SetOption("top_k", int(cfg.Options.TopK))
	}
	if cfg.Options.MaxOutputTokens > 0 {
		llm.SetOption("max_tokens", int(cfg.Options.MaxOutputTokens))
	}

	return &Gollm{llm: llm, logger: logger}, nil
}

// Generate sends prompt as a single user message.
func (g *Gollm) Generate(ctx context.Context, prompt string) (string, error) {
	return g.llm.Generate(ctx, &gollm.Prompt{
		Messages: []gollm.PromptMessage{{Role: "user", Content: prompt}},
	})
}
