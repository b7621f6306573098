package config

import "time"

// Config is the full runtime configuration of a warden process.
type Config struct {
	Policy    PolicyConfig    `yaml:"policy"`
	Keys      KeysConfig      `yaml:"keys"`
	Packs     PacksConfig     `yaml:"packs"`
	Audit     AuditConfig     `yaml:"audit"`
	LLM       LLMConfig       `yaml:"llm"`
	Session   SessionConfig   `yaml:"session"`
	Remote    RemoteConfig    `yaml:"remote"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// PolicyConfig locates the policy document.
type PolicyConfig struct {
	// Path to the policy YAML document.
	Path string `yaml:"path"`

	// Watch reloads the document when the file changes on disk.
	Watch bool `yaml:"watch"`
}

// KeysConfig locates the override key registry.
type KeysConfig struct {
	Path string `yaml:"path"`
}

// PacksConfig locates installed knowledge packs.
type PacksConfig struct {
	Dir string `yaml:"dir"`
}

// AuditConfig controls the tamper-evident log.
type AuditConfig struct {
	// Path to the JSONL audit log.
	Path string `yaml:"path"`

	// Redaction level applied at append time: none, minimal, standard,
	// or strict. The policy document may tighten this further.
	Redaction string `yaml:"redaction"`

	Index AuditIndexConfig `yaml:"index"`
}

// AuditIndexConfig controls the rebuildable SQLite query mirror.
type AuditIndexConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LLMConfig holds the two model endpoints of the pipeline.
type LLMConfig struct {
	Worker  ModelConfig `yaml:"worker"`
	Auditor ModelConfig `yaml:"auditor"`
}

// ModelConfig is one model endpoint.
type ModelConfig struct {
	// Provider selects the generator implementation: ollama or mock.
	Provider string `yaml:"provider"`

	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SessionConfig controls override session lifetimes.
type SessionConfig struct {
	// TTL is the default override session lifetime.
	TTL time.Duration `yaml:"ttl"`

	// SweepSchedule is a cron expression for the expired session sweep.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// RemoteConfig identifies where control bundles may come from. Whether
// remote control is active at all is governed by the policy document;
// this section only wires up the issuers a bundle may come from.
type RemoteConfig struct {
	// Issuers lists the issuer names this device trusts.
	Issuers []string `yaml:"issuers"`

	// Git configures the git-backed bundle channel. Inactive when the
	// URL is empty.
	Git GitRemoteConfig `yaml:"git"`
}

// GitRemoteConfig points at a repository the operating organization
// pushes signed bundles to.
type GitRemoteConfig struct {
	URL       string `yaml:"url"`
	Branch    string `yaml:"branch"`
	Dir       string `yaml:"dir"`
	LocalPath string `yaml:"local_path"`
	Username  string `yaml:"username"`
	Token     string `yaml:"token"`
}

// TelemetryConfig groups logging and metrics settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	Path          string `yaml:"path"`
}

// DefaultConfig returns a configuration suitable for a single-device
// deployment with data under ./data.
func DefaultConfig() *Config {
	return &Config{
		Policy: PolicyConfig{
			Path:  "data/policy.yaml",
			Watch: true,
		},
		Keys: KeysConfig{
			Path: "data/keys.yaml",
		},
		Packs: PacksConfig{
			Dir: "data/packs",
		},
		Audit: AuditConfig{
			Path:      "data/audit.jsonl",
			Redaction: "standard",
			Index: AuditIndexConfig{
				Enabled: true,
				Path:    "data/audit.db",
			},
		},
		LLM: LLMConfig{
			Worker: ModelConfig{
				Provider:    "ollama",
				BaseURL:     "http://localhost:11434",
				Model:       "llama3.1:8b",
				Temperature: 0.3,
				MaxTokens:   1024,
				Timeout:     120 * time.Second,
			},
			Auditor: ModelConfig{
				Provider:    "ollama",
				BaseURL:     "http://localhost:11434",
				Model:       "llama3.1:8b",
				Temperature: 0.0,
				MaxTokens:   512,
				Timeout:     60 * time.Second,
			},
		},
		Session: SessionConfig{
			TTL:           15 * time.Minute,
			SweepSchedule: "@every 1m",
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
			Metrics: MetricsConfig{
				Enabled:       false,
				ListenAddress: "127.0.0.1:9091",
				Path:          "/metrics",
			},
		},
	}
}

// applyDefaults fills zero-valued fields from DefaultConfig.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.Policy.Path == "" {
		cfg.Policy.Path = def.Policy.Path
	}
	if cfg.Keys.Path == "" {
		cfg.Keys.Path = def.Keys.Path
	}
	if cfg.Packs.Dir == "" {
		cfg.Packs.Dir = def.Packs.Dir
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = def.Audit.Path
	}
	if cfg.Audit.Redaction == "" {
		cfg.Audit.Redaction = def.Audit.Redaction
	}
	if cfg.Audit.Index.Enabled && cfg.Audit.Index.Path == "" {
		cfg.Audit.Index.Path = def.Audit.Index.Path
	}

	applyModelDefaults(&cfg.LLM.Worker, &def.LLM.Worker)
	applyModelDefaults(&cfg.LLM.Auditor, &def.LLM.Auditor)

	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = def.Session.TTL
	}
	if cfg.Session.SweepSchedule == "" {
		cfg.Session.SweepSchedule = def.Session.SweepSchedule
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = def.Telemetry.Logging.Level
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = def.Telemetry.Logging.Format
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = def.Telemetry.Metrics.ListenAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = def.Telemetry.Metrics.Path
	}
}

func applyModelDefaults(cfg, def *ModelConfig) {
	if cfg.Provider == "" {
		cfg.Provider = def.Provider
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
}
