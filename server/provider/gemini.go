package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/teilomillet/sous/config"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Gemini calls the Google Generative Language API.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *zap.Logger
}

// NewGemini creates a client for cfg.Model using cfg.APIKey.
func NewGemini(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, notConfigured("%s is not set", config.APIKeyEnv(cfg.Provider))
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, notConfigured("create gemini client: %v", err)
	}

	model := client.GenerativeModel(cfg.Model)
	if cfg.Options.Temperature > 0 {
		model.SetTemperature(cfg.Options.Temperature)
	}
	if cfg.Options.TopK > 0 {
		model.SetTopK(cfg.Options.TopK)
	}
	if cfg.Options.TopP > 0 {
		model.SetTopP(cfg.Options.TopP)
	}
	if cfg.Options.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(cfg.Options.MaxOutputTokens)
	}

	return &Gemini{client: client, model: model, logger: logger}, nil
}

// Generate sends prompt as a single text part.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// Close releases the underlying client connection.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", ErrNoCandidates
	}

	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", fmt.Errorf("%w (finish reason: %s)", ErrNoText, cand.FinishReason)
	}

	var sb strings.Builder
	found := false
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
			found = true
		}
	}
	if !found {
		return "", ErrNoText
	}
	return sb.String(), nil
}
