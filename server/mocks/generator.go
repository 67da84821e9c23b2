// Package mocks provides hand-written test doubles for the text-generation
// provider and the configuration watcher.
package mocks

import (
	"context"
	"sync"
)

// MockGenerator implements provider.Generator. GenerateFunc decides the reply;
// when it is nil the mock returns Reply. Every prompt is recorded.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, prompt string) (string, error)
	Reply        string

	mu      sync.Mutex
	prompts []string
	closed  bool
}

// NewMockGenerator returns a generator that always answers with reply.
func NewMockGenerator(reply string) *MockGenerator {
	return &MockGenerator{Reply: reply}
}

// NewMockGeneratorFunc returns a generator driven by fn.
func NewMockGeneratorFunc(fn func(ctx context.Context, prompt string) (string, error)) *MockGenerator {
	return &MockGenerator{GenerateFunc: fn}
}

// Generate records prompt and returns the configured reply.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return m.Reply, nil
}

// Prompts returns a copy of every prompt received so far.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Calls returns the number of Generate calls.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Close marks the mock closed.
func (m *MockGenerator) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (m *MockGenerator) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
