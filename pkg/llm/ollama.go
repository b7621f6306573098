package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Ollama talks to a local Ollama server over its HTTP API.
type Ollama struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// NewOllama returns a generator bound to the configured server.
func NewOllama(cfg Config) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultConfig().Temperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}

	return &Ollama{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default().With("component", "llm.ollama", "model", cfg.Model),
	}
}

// Name implements Generator.
func (o *Ollama) Name() string {
	return fmt.Sprintf("ollama/%s", o.cfg.Model)
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate implements Generator.
func (o *Ollama) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = o.cfg.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.cfg.MaxTokens
	}

	payload := generateRequest{
		Model:  o.cfg.Model,
		Prompt: prompt,
		System: opts.System,
		Stream: false,
		Options: generateOptions{
			Temperature: temperature,
			NumPredict:  maxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &BackendError{Backend: "ollama", Op: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", &BackendError{Backend: "ollama", Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", &BackendError{Backend: "ollama", Op: "generate", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &BackendError{
			Backend: "ollama",
			Op:      "generate",
			Err:     fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
		}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &BackendError{Backend: "ollama", Op: "decode response", Err: err}
	}
	return out.Response, nil
}

// GenerateJSON implements Generator. The JSON instruction is appended to
// the system prompt and the temperature is lowered for structured output
// unless the caller chose one.
func (o *Ollama) GenerateJSON(ctx context.Context, prompt string, opts Options) (map[string]any, error) {
	opts.System += jsonInstruction
	if opts.Temperature == 0 {
		opts.Temperature = 0.3
	}

	raw, err := o.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}
	return ExtractJSON(raw), nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Available implements Generator. It checks that the server answers and
// that the configured model, ignoring the tag suffix, has been pulled.
func (o *Ollama) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}

	want := baseModelName(o.cfg.Model)
	for _, m := range tags.Models {
		if baseModelName(m.Name) == want {
			return true
		}
	}
	return false
}

func baseModelName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return name
}
