package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults,
// and validates. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies WARDEN_SECTION_FIELD environment overrides on top. The result
// is re-validated after overrides.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("after environment overrides: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Policy.Path, "WARDEN_POLICY_PATH")
	setBool(&cfg.Policy.Watch, "WARDEN_POLICY_WATCH")

	setString(&cfg.Keys.Path, "WARDEN_KEYS_PATH")
	setString(&cfg.Packs.Dir, "WARDEN_PACKS_DIR")

	setString(&cfg.Audit.Path, "WARDEN_AUDIT_PATH")
	setString(&cfg.Audit.Redaction, "WARDEN_AUDIT_REDACTION")
	setBool(&cfg.Audit.Index.Enabled, "WARDEN_AUDIT_INDEX_ENABLED")
	setString(&cfg.Audit.Index.Path, "WARDEN_AUDIT_INDEX_PATH")

	applyModelEnvOverrides(&cfg.LLM.Worker, "WARDEN_LLM_WORKER_")
	applyModelEnvOverrides(&cfg.LLM.Auditor, "WARDEN_LLM_AUDITOR_")

	setDuration(&cfg.Session.TTL, "WARDEN_SESSION_TTL")
	setString(&cfg.Session.SweepSchedule, "WARDEN_SESSION_SWEEP_SCHEDULE")

	setString(&cfg.Telemetry.Logging.Level, "WARDEN_LOGGING_LEVEL")
	setString(&cfg.Telemetry.Logging.Format, "WARDEN_LOGGING_FORMAT")
	setBool(&cfg.Telemetry.Metrics.Enabled, "WARDEN_METRICS_ENABLED")
	setString(&cfg.Telemetry.Metrics.ListenAddress, "WARDEN_METRICS_LISTEN_ADDRESS")
	setString(&cfg.Telemetry.Metrics.Path, "WARDEN_METRICS_PATH")
}

func applyModelEnvOverrides(cfg *ModelConfig, prefix string) {
	setString(&cfg.Provider, prefix+"PROVIDER")
	setString(&cfg.BaseURL, prefix+"BASE_URL")
	setString(&cfg.Model, prefix+"MODEL")
	setFloat(&cfg.Temperature, prefix+"TEMPERATURE")
	setInt(&cfg.MaxTokens, prefix+"MAX_TOKENS")
	setDuration(&cfg.Timeout, prefix+"TIMEOUT")
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setFloat(dst *float64, key string) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
