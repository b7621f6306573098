package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config contains configuration for metrics collection.
type Config struct {
	// Enabled turns collection on. When false, New returns nil and every
	// recording method becomes a no-op.
	Enabled bool `yaml:"enabled"`

	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace"`

	// Listen is the address the metrics endpoint binds to.
	Listen string `yaml:"listen"`
}

// DefaultConfig returns metrics defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:   false,
		Namespace: "warden",
		Listen:    "127.0.0.1:9464",
	}
}

// Metrics bundles every collector group with its registry.
type Metrics struct {
	Registry *prometheus.Registry

	Pipeline *PipelineMetrics
	Keyring  *KeyringMetrics
	Audit    *AuditMetrics
}

// New builds and registers all collectors. A disabled config yields nil,
// which every recording method tolerates.
func New(cfg Config) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultConfig().Namespace
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Metrics{
		Registry: registry,
		Pipeline: newPipelineMetrics(cfg.Namespace, registry),
		Keyring:  newKeyringMetrics(cfg.Namespace, registry),
		Audit:    newAuditMetrics(cfg.Namespace, registry),
	}
}

// Handler returns the scrape endpoint for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// PipelineGroup returns the pipeline collectors, nil-safe.
func (m *Metrics) PipelineGroup() *PipelineMetrics {
	if m == nil {
		return nil
	}
	return m.Pipeline
}

// KeyringGroup returns the keyring collectors, nil-safe.
func (m *Metrics) KeyringGroup() *KeyringMetrics {
	if m == nil {
		return nil
	}
	return m.Keyring
}

// AuditGroup returns the audit collectors, nil-safe.
func (m *Metrics) AuditGroup() *AuditMetrics {
	if m == nil {
		return nil
	}
	return m.Audit
}
