// Package config provides runtime configuration for a warden appliance.
//
// Runtime configuration is the operational wiring of the process: file
// locations, LLM endpoints, logging and metrics settings. It is distinct
// from the policy document (pkg/policy), which governs what the device
// is allowed to do. Policy is the contract with the operating
// organization; runtime config is deployment plumbing.
//
// Configuration loads from a YAML file, applies defaults, then applies
// environment variable overrides named WARDEN_SECTION_FIELD:
//
//   - WARDEN_POLICY_PATH overrides policy.path
//   - WARDEN_AUDIT_PATH overrides audit.path
//   - WARDEN_LLM_WORKER_BASE_URL overrides llm.worker.base_url
//
// Validation collects every problem before reporting:
//
//	configuration validation failed with 2 errors:
//	  - audit.redaction: must be one of none, minimal, standard, strict
//	  - llm.worker.model: model is required
package config
