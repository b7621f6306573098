package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks the Worker/Auditor/Resolver flow.
//
// Metrics:
//   - warden_pipeline_decisions_total: final decisions by action
//   - warden_pipeline_stage_duration_seconds: per-stage latency
//   - warden_pipeline_auditor_skips_total: auditor passes skipped
//   - warden_pipeline_fallbacks_total: degraded stage outputs by stage
type PipelineMetrics struct {
	decisionsTotal *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	auditorSkips   prometheus.Counter
	fallbacksTotal *prometheus.CounterVec
}

func newPipelineMetrics(namespace string, registry *prometheus.Registry) *PipelineMetrics {
	pm := &PipelineMetrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "decisions_total",
				Help:      "Total resolver decisions by action",
			},
			[]string{"action"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage in seconds",
				// Model calls run seconds to minutes on appliance hardware.
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"stage"},
		),
		auditorSkips: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "auditor_skips_total",
				Help:      "Auditor passes skipped on policy and high confidence",
			},
		),
		fallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "fallbacks_total",
				Help:      "Degraded stage outputs by stage",
			},
			[]string{"stage"},
		),
	}

	registry.MustRegister(pm.decisionsTotal, pm.stageDuration, pm.auditorSkips, pm.fallbacksTotal)
	return pm
}

// RecordDecision counts a final resolver action.
func (pm *PipelineMetrics) RecordDecision(action string) {
	if pm == nil {
		return
	}
	pm.decisionsTotal.WithLabelValues(action).Inc()
}

// ObserveStage records how long a pipeline stage took.
func (pm *PipelineMetrics) ObserveStage(stage string, d time.Duration) {
	if pm == nil {
		return
	}
	pm.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordAuditorSkip counts a skipped auditor pass.
func (pm *PipelineMetrics) RecordAuditorSkip() {
	if pm == nil {
		return
	}
	pm.auditorSkips.Inc()
}

// RecordFallback counts a stage that degraded to its fallback output.
func (pm *PipelineMetrics) RecordFallback(stage string) {
	if pm == nil {
		return
	}
	pm.fallbacksTotal.WithLabelValues(stage).Inc()
}
