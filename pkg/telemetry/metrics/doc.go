// Package metrics exposes Prometheus instrumentation for the decision
// core: pipeline decisions and stage latencies, key validations and
// override sessions, and audit chain activity. Metrics are registered
// against an explicit registry so tests can run isolated collectors.
package metrics
