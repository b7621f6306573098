package llm

import (
	"context"
	"sync"
)

// Mock is a generator for tests and offline development. Responses are
// returned from queues in order; an empty queue yields a canned answer.
type Mock struct {
	mu            sync.Mutex
	responses     []string
	jsonResponses []map[string]any
	available     bool

	// Prompts records every prompt seen, for assertions.
	Prompts []string
}

// NewMock returns an available mock with empty queues.
func NewMock() *Mock {
	return &Mock{available: true}
}

// QueueResponse appends text responses returned by Generate in order.
func (m *Mock) QueueResponse(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
}

// QueueJSON appends structured responses returned by GenerateJSON in order.
func (m *Mock) QueueJSON(responses ...map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jsonResponses = append(m.jsonResponses, responses...)
}

// SetAvailable controls what Available reports.
func (m *Mock) SetAvailable(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = ok
}

// Name implements Generator.
func (m *Mock) Name() string { return "mock" }

// Generate implements Generator.
func (m *Mock) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)

	if len(m.responses) > 0 {
		resp := m.responses[0]
		m.responses = m.responses[1:]
		return resp, nil
	}
	preview := prompt
	if len(preview) > 50 {
		preview = preview[:50]
	}
	return "mock response for: " + preview, nil
}

// GenerateJSON implements Generator.
func (m *Mock) GenerateJSON(ctx context.Context, prompt string, opts Options) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)

	if len(m.jsonResponses) > 0 {
		resp := m.jsonResponses[0]
		m.jsonResponses = m.jsonResponses[1:]
		return resp, nil
	}
	return map[string]any{
		"response":   "mock response",
		"confidence": 0.8,
		"citations":  []any{},
		"reasoning":  "mock reasoning",
		"caveats":    []any{},
	}, nil
}

// Available implements Generator.
func (m *Mock) Available(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}
