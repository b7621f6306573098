// Package telemetry groups the observability concerns of a warden
// appliance.
//
//   - logging: structured slog setup with secret masking
//   - metrics: Prometheus collectors for the pipeline, keyring, and audit log
//   - health: component checks for model backends and the audit chain
//
// There is deliberately no distributed tracing here. The appliance is a
// single offline process; stage latencies are covered by the pipeline
// histograms.
package telemetry
