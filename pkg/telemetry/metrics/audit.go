package metrics

import "github.com/prometheus/client_golang/prometheus"

// AuditMetrics tracks audit chain activity.
//
// Metrics:
//   - warden_audit_events_total: appended events by type
//   - warden_audit_append_errors_total: failed appends
//   - warden_audit_integrity_ok: result of the last verification pass
type AuditMetrics struct {
	eventsTotal  *prometheus.CounterVec
	appendErrors prometheus.Counter
	integrityOK  prometheus.Gauge
}

func newAuditMetrics(namespace string, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "events_total",
				Help:      "Appended audit events by type",
			},
			[]string{"event_type"},
		),
		appendErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "append_errors_total",
				Help:      "Audit appends that failed",
			},
		),
		integrityOK: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "integrity_ok",
				Help:      "Whether the last integrity verification passed (1) or failed (0)",
			},
		),
	}

	registry.MustRegister(am.eventsTotal, am.appendErrors, am.integrityOK)
	return am
}

// RecordEvent counts an appended event.
func (am *AuditMetrics) RecordEvent(eventType string) {
	if am == nil {
		return
	}
	am.eventsTotal.WithLabelValues(eventType).Inc()
}

// RecordAppendError counts a failed append.
func (am *AuditMetrics) RecordAppendError() {
	if am == nil {
		return
	}
	am.appendErrors.Inc()
}

// SetIntegrityOK records the outcome of a verification pass.
func (am *AuditMetrics) SetIntegrityOK(ok bool) {
	if am == nil {
		return
	}
	if ok {
		am.integrityOK.Set(1)
	} else {
		am.integrityOK.Set(0)
	}
}
