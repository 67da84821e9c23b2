// Package processing turns a recipe into the prompt sent to the text-generation
// provider and turns the provider's reply into an ordered ingredient list.
package processing

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/teilomillet/sous/server/provider"
	"go.uber.org/zap"
)

// PromptData is the value the prompt template is executed with.
type PromptData struct {
	Recipe string
}

// GenerationError marks a failure of the provider call, as opposed to a
// failure while building the prompt. Its message is the provider's message.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return e.Err.Error() }

func (e *GenerationError) Unwrap() error { return e.Err }

// Processor builds prompts, calls the generator once per recipe and parses
// the reply. It holds no per-request state and is safe for concurrent use.
type Processor struct {
	generator provider.Generator
	tmpl      *template.Template
	logger    *zap.Logger
}

// NewProcessor compiles promptTemplate and returns a processor bound to gen.
// The template is parsed up front so a broken template fails at start-up.
func NewProcessor(promptTemplate string, gen provider.Generator, logger *zap.Logger) (*Processor, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if promptTemplate == "" {
		return nil, fmt.Errorf("prompt template is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	return &Processor{
		generator: gen,
		tmpl:      tmpl,
		logger:    logger,
	}, nil
}

// BuildPrompt renders the prompt for recipe. The recipe is inserted as given.
func (p *Processor) BuildPrompt(recipe string) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, PromptData{Recipe: recipe}); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return buf.String(), nil
}

// Process builds the prompt, performs exactly one generation call and parses
// the result. Provider failures are returned as *GenerationError.
func (p *Processor) Process(ctx context.Context, recipe string) ([]string, error) {
	prompt, err := p.BuildPrompt(recipe)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("sending prompt", zap.String("prompt", prompt))

	text, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	ingredients := ParseIngredients(text)
	p.logger.Debug("parsed ingredients",
		zap.Int("count", len(ingredients)),
		zap.Int("reply_bytes", len(text)),
	)
	return ingredients, nil
}

// ParseIngredients splits text on commas, trims each piece and drops empty
// ones. Order and duplicates are preserved. The result is never nil.
func ParseIngredients(text string) []string {
	ingredients := []string{}
	for _, part := range strings.Split(text, ",") {
		if item := strings.TrimSpace(part); item != "" {
			ingredients = append(ingredients, item)
		}
	}
	return ingredients
}
