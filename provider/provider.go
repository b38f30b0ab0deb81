// Package provider defines the Reasoning Provider abstraction: an opaque
// text-generation oracle consumed by goal decomposition, result validation,
// self-correction and the lightweight reasoning loop. The core never assumes
// structured output from a provider; all parsing happens defensively on raw
// text (see internal/jsonrepair).
package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// GenerateOptions carries per-call tuning for a Generate invocation.
type GenerateOptions struct {
	// MaxTokens caps the completion length. 0 means provider default.
	MaxTokens int
	// Temperature overrides the provider's sampling temperature when >= 0.
	Temperature float64
}

// GenerateOption mutates GenerateOptions (functional options pattern).
type GenerateOption func(*GenerateOptions)

// WithMaxTokens caps the completion length for a single call.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) { o.MaxTokens = n }
}

// WithTemperature overrides sampling temperature for a single call.
func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) { o.Temperature = t }
}

// NewGenerateOptions applies the given option functions to a default set.
func NewGenerateOptions(optFns ...GenerateOption) GenerateOptions {
	opts := GenerateOptions{Temperature: -1}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Provider is the minimal interface required by the orchestrator and the
// reasoning loop to drive text generation.
type Provider interface {
	// Generate produces a completion for the prompt. Implementations must
	// respect ctx cancellation.
	Generate(ctx context.Context, prompt string, optFns ...GenerateOption) (string, error)

	// Info returns metadata about the provider implementation.
	Info() Info
}

// Info contains metadata about a provider implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// MockProvider is a lightweight in-memory Provider useful for tests & examples.
//
// Response resolution order per call:
//  1. Fn, if set (full control, e.g. prompt-dependent scripting)
//  2. the FIFO queue filled via Enqueue
//  3. substring match over responses registered via AddResponse
//  4. a generic fallback completion
type MockProvider struct {
	mu        sync.Mutex
	responses map[string]string
	queue     []string
	prompts   []string

	// Fn, Err and Delay tune behavior for failure/timeout scenarios.
	Fn    func(prompt string) (string, error)
	Err   error
	Delay time.Duration
}

// NewMockProvider constructs an empty MockProvider.
func NewMockProvider() *MockProvider {
	return &MockProvider{responses: make(map[string]string)}
}

// AddResponse registers a canned completion returned when the prompt contains key.
func (m *MockProvider) AddResponse(key, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[key] = response
}

// Enqueue appends completions returned in order, before substring matching applies.
func (m *MockProvider) Enqueue(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, responses...)
}

// Prompts returns a copy of all prompts seen so far, in call order.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// CallCount returns the number of Generate calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Generate implements Provider.
func (m *MockProvider) Generate(ctx context.Context, prompt string, _ ...GenerateOption) (string, error) {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.Delay):
		}
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	fn, err := m.Fn, m.Err
	var queued string
	hasQueued := false
	if fn == nil && err == nil && len(m.queue) > 0 {
		queued, hasQueued = m.queue[0], true
		m.queue = m.queue[1:]
	}
	m.mu.Unlock()

	if err != nil {
		return "", err
	}
	if fn != nil {
		return fn(prompt)
	}
	if hasQueued {
		return queued, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, response := range m.responses {
		if strings.Contains(prompt, key) {
			return response, nil
		}
	}
	return fmt.Sprintf("Mock response to: %.40s", prompt), nil
}

// Info implements Provider.
func (m *MockProvider) Info() Info {
	return Info{Name: "mock", Provider: "mock"}
}
