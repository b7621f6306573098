package metrics

import "github.com/prometheus/client_golang/prometheus"

// KeyringMetrics tracks key validations and override sessions.
//
// Metrics:
//   - warden_keyring_validations_total: validations by result
//   - warden_keyring_sessions_created_total: override sessions opened
//   - warden_keyring_active_sessions: currently live sessions
type KeyringMetrics struct {
	validationsTotal *prometheus.CounterVec
	sessionsCreated  prometheus.Counter
	activeSessions   prometheus.Gauge
}

func newKeyringMetrics(namespace string, registry *prometheus.Registry) *KeyringMetrics {
	km := &KeyringMetrics{
		validationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "keyring",
				Name:      "validations_total",
				Help:      "Key validations by result",
			},
			[]string{"result"},
		),
		sessionsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "keyring",
				Name:      "sessions_created_total",
				Help:      "Override sessions opened",
			},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "keyring",
				Name:      "active_sessions",
				Help:      "Currently live override sessions",
			},
		),
	}

	registry.MustRegister(km.validationsTotal, km.sessionsCreated, km.activeSessions)
	return km
}

// RecordValidation counts a validation outcome ("success", "expired",
// "insufficient_scope", "no_match").
func (km *KeyringMetrics) RecordValidation(result string) {
	if km == nil {
		return
	}
	km.validationsTotal.WithLabelValues(result).Inc()
}

// RecordSessionCreated counts an opened override session.
func (km *KeyringMetrics) RecordSessionCreated() {
	if km == nil {
		return
	}
	km.sessionsCreated.Inc()
}

// SetActiveSessions updates the live session gauge.
func (km *KeyringMetrics) SetActiveSessions(n int) {
	if km == nil {
		return
	}
	km.activeSessions.Set(float64(n))
}
