package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError is a validation error on one configuration field.
type FieldError struct {
	// Field is the dotted path to the field, e.g. "audit.redaction".
	Field string

	// Message is a human-readable description of the problem.
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field error found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

var redactionLevels = []string{"none", "minimal", "standard", "strict"}
var logLevels = []string{"debug", "info", "warn", "error"}
var logFormats = []string{"json", "text"}
var llmProviders = []string{"ollama", "mock"}

// Validate checks the configuration and returns a ValidationError
// listing every problem, or nil when it is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	if cfg.Policy.Path == "" {
		errs = append(errs, FieldError{"policy.path", "policy document path is required"})
	}
	if cfg.Keys.Path == "" {
		errs = append(errs, FieldError{"keys.path", "key registry path is required"})
	}
	if cfg.Audit.Path == "" {
		errs = append(errs, FieldError{"audit.path", "audit log path is required"})
	}
	if !oneOf(cfg.Audit.Redaction, redactionLevels) {
		errs = append(errs, FieldError{"audit.redaction", "must be one of " + strings.Join(redactionLevels, ", ")})
	}
	if cfg.Audit.Index.Enabled && cfg.Audit.Index.Path == "" {
		errs = append(errs, FieldError{"audit.index.path", "index path is required when the index is enabled"})
	}

	errs = append(errs, validateModel("llm.worker", &cfg.LLM.Worker)...)
	errs = append(errs, validateModel("llm.auditor", &cfg.LLM.Auditor)...)

	if cfg.Session.TTL < 0 {
		errs = append(errs, FieldError{"session.ttl", "must be non-negative"})
	}
	if cfg.Session.SweepSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Session.SweepSchedule); err != nil {
			errs = append(errs, FieldError{"session.sweep_schedule", fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}

	if !oneOf(cfg.Telemetry.Logging.Level, logLevels) {
		errs = append(errs, FieldError{"telemetry.logging.level", "must be one of " + strings.Join(logLevels, ", ")})
	}
	if !oneOf(cfg.Telemetry.Logging.Format, logFormats) {
		errs = append(errs, FieldError{"telemetry.logging.format", "must be one of " + strings.Join(logFormats, ", ")})
	}
	if cfg.Telemetry.Metrics.Enabled && cfg.Telemetry.Metrics.ListenAddress == "" {
		errs = append(errs, FieldError{"telemetry.metrics.listen_address", "listen address is required when metrics are enabled"})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateModel(prefix string, cfg *ModelConfig) []FieldError {
	var errs []FieldError
	if !oneOf(cfg.Provider, llmProviders) {
		errs = append(errs, FieldError{prefix + ".provider", "must be one of " + strings.Join(llmProviders, ", ")})
	}
	if cfg.Provider == "ollama" && cfg.BaseURL == "" {
		errs = append(errs, FieldError{prefix + ".base_url", "base URL is required for the ollama provider"})
	}
	if cfg.Provider == "ollama" && cfg.Model == "" {
		errs = append(errs, FieldError{prefix + ".model", "model is required"})
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		errs = append(errs, FieldError{prefix + ".temperature", "must be between 0 and 2"})
	}
	if cfg.MaxTokens < 0 {
		errs = append(errs, FieldError{prefix + ".max_tokens", "must be non-negative"})
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{prefix + ".timeout", "must be non-negative"})
	}
	return errs
}

func oneOf(value string, allowed []string) bool {
	for _, v := range allowed {
		if v == value {
			return true
		}
	}
	return false
}
