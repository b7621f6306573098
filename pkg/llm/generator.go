package llm

import (
	"context"
	"fmt"
	"time"
)

// Backend names accepted by New.
const (
	BackendOllama = "ollama"
	BackendMock   = "mock"
)

// Config selects and tunes a backend.
type Config struct {
	Backend     string        `yaml:"backend"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// DefaultConfig returns settings for a local Ollama server.
func DefaultConfig() Config {
	return Config{
		Backend:     BackendOllama,
		Model:       "llama3.1",
		BaseURL:     "http://localhost:11434",
		Timeout:     120 * time.Second,
		Temperature: 0.7,
		MaxTokens:   2048,
	}
}

// Options tune a single generation call. Zero values fall back to the
// backend's configured defaults.
type Options struct {
	System      string
	Temperature float64
	MaxTokens   int
}

// Generator produces model output. Implementations must honor context
// cancellation on every call that leaves the process.
type Generator interface {
	// Generate returns free-form text for the prompt.
	Generate(ctx context.Context, prompt string, opts Options) (string, error)

	// GenerateJSON asks for structured output and parses it leniently.
	// The returned map is never nil; an unparsable response comes back
	// as an error structure rather than a failure.
	GenerateJSON(ctx context.Context, prompt string, opts Options) (map[string]any, error)

	// Available reports whether the backend can serve requests right now.
	Available(ctx context.Context) bool

	// Name identifies the backend for logs and status output.
	Name() string
}

// BackendError wraps a failure talking to a model backend.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("llm: %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// New builds a generator for the configured backend.
func New(cfg Config) (Generator, error) {
	switch cfg.Backend {
	case BackendOllama:
		return NewOllama(cfg), nil
	case BackendMock:
		return NewMock(), nil
	}
	return nil, fmt.Errorf("llm: unknown backend %q", cfg.Backend)
}
