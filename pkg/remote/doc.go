// Package remote handles control bundles that adjust a deployed
// appliance: policy updates, module control, emergency mode activation,
// key rotation. Bundles carry issuer identity, monotonic sequence
// numbers against replay, and a signature field whose presence is
// required but whose bytes are not yet cryptographically checked.
// Verification gates every apply; an unverified bundle never touches
// policy state.
package remote
