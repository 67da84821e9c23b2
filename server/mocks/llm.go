package mocks

import (
	"context"
	"sync"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
	"github.com/teilomillet/gollm/utils"
)

var _ gollm.LLM = (*MockLLM)(nil)

// MockLLM implements gollm.LLM so the gollm-backed provider can be tested
// without network access. Options passed through SetOption are recorded.
//
//	mockLLM := NewMockLLM(func(ctx context.Context, prompt *gollm.Prompt) (string, error) {
//	    return "flour, sugar", nil
//	})
type MockLLM struct {
	GenerateFunc func(context.Context, *gollm.Prompt) (string, error)
	Provider     string
	Model        string

	mu       sync.Mutex
	options  map[string]interface{}
	endpoint string
}

// NewMockLLM creates a new MockLLM with an optional generate function.
// If generateFunc is nil, Generate returns an empty string with no error.
func NewMockLLM(generateFunc func(context.Context, *gollm.Prompt) (string, error)) *MockLLM {
	return &MockLLM{
		GenerateFunc: generateFunc,
		Provider:     "mock",
		Model:        "mock-model",
		options:      make(map[string]interface{}),
	}
}

func (m *MockLLM) Generate(ctx context.Context, prompt *gollm.Prompt, opts ...llm.GenerateOption) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "", nil
}

// Option returns a value recorded by SetOption.
func (m *MockLLM) Option(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.options[key]
	return v, ok
}

// Endpoint returns the value recorded by SetOllamaEndpoint or SetEndpoint.
func (m *MockLLM) Endpoint() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint
}

func (m *MockLLM) SetOption(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.options == nil {
		m.options = make(map[string]interface{})
	}
	m.options[key] = value
}

func (m *MockLLM) SetOllamaEndpoint(endpoint string) error {
	m.SetEndpoint(endpoint)
	return nil
}

func (m *MockLLM) SetEndpoint(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoint = endpoint
}

func (m *MockLLM) Debug(format string, args ...interface{}) {}

func (m *MockLLM) GetPromptJSONSchema(opts ...gollm.SchemaOption) ([]byte, error) {
	return []byte(`{}`), nil
}

func (m *MockLLM) GetProvider() string { return m.Provider }

func (m *MockLLM) GetModel() string { return m.Model }

func (m *MockLLM) GetLogLevel() gollm.LogLevel { return gollm.LogLevelInfo }

func (m *MockLLM) UpdateLogLevel(level gollm.LogLevel) {}

func (m *MockLLM) SetLogLevel(level gollm.LogLevel) {}

func (m *MockLLM) GetLogger() utils.Logger { return nil }

func (m *MockLLM) NewPrompt(text string) *gollm.Prompt {
	return &gollm.Prompt{
		Messages: []gollm.PromptMessage{
			{Role: "user", Content: text},
		},
	}
}

func (m *MockLLM) SupportsJSONSchema() bool { return false }

func (m *MockLLM) GenerateWithSchema(ctx context.Context, prompt *gollm.Prompt, schema interface{}, opts ...llm.GenerateOption) (string, error) {
	return m.Generate(ctx, prompt, opts...)
}

func (m *MockLLM) SetSystemPrompt(prompt string, cacheType llm.CacheType) {}
