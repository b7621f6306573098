package audit

import "time"

// EventType identifies the kind of operation an audit event records.
type EventType string

// Audit event types. The vocabulary is closed: components emit only these
// values, and the query API filters on them.
const (
	// Query / response lifecycle
	EventQuery            EventType = "query"
	EventResponse         EventType = "response"
	EventPipelineComplete EventType = "pipeline_complete"

	// Pipeline stages
	EventWorkerComplete   EventType = "worker_complete"
	EventAuditorComplete  EventType = "auditor_complete"
	EventAuditorSkipped   EventType = "auditor_skipped"
	EventResolverDecision EventType = "resolver_decision"

	// Keys and overrides
	EventKeyValidationSuccess   EventType = "key_validation_success"
	EventKeyValidationFailed    EventType = "key_validation_failed"
	EventOverrideSessionCreated EventType = "override_session_created"
	EventOverrideSessionExpired EventType = "override_session_expired"
	EventOverrideSessionRevoked EventType = "override_session_revoked"
	EventOverrideUsed           EventType = "override_used"
	EventSessionsCleanup        EventType = "sessions_cleanup"

	// Mode and policy
	EventModeChange    EventType = "mode_change"
	EventPolicyLoaded  EventType = "policy_loaded"
	EventPolicyChanged EventType = "policy_changed"

	// Profile
	EventProfileLoaded  EventType = "profile_loaded"
	EventProfileCleared EventType = "profile_cleared"

	// Packs
	EventPackLoaded   EventType = "pack_loaded"
	EventPackUnloaded EventType = "pack_unloaded"

	// System
	EventStartup  EventType = "startup"
	EventShutdown EventType = "shutdown"
	EventError    EventType = "error"

	// Remote override bundles
	EventBundleReceived EventType = "remote_bundle_received"
	EventBundleApplied  EventType = "remote_bundle_applied"
	EventBundleRejected EventType = "remote_bundle_rejected"
)

// Event is a single audit record. Once written, an event is immutable:
// its checksum covers every field except the checksum itself, concatenated
// with the previous record's checksum, forming a verifiable hash chain
// over the whole log.
type Event struct {
	// Timestamp is the UTC time the event was recorded, RFC 3339.
	Timestamp string `json:"timestamp"`

	// EventType identifies what happened.
	EventType string `json:"event_type"`

	// SessionID correlates events belonging to one user session, if any.
	SessionID string `json:"session_id,omitempty"`

	// DeviceID identifies the appliance that produced the event.
	DeviceID string `json:"device_id"`

	// Details holds caller-supplied context, redacted per the configured
	// redaction level before being written.
	Details map[string]any `json:"details"`

	// Checksum is the chained checksum of this record.
	Checksum string `json:"checksum"`

	// PrevChecksum is the checksum of the preceding record, or the genesis
	// marker for the first record.
	PrevChecksum string `json:"previous_checksum"`
}

// Filter selects events for Query. Zero-valued fields match everything.
type Filter struct {
	// Types restricts results to the given event types.
	Types []EventType

	// SessionID restricts results to a single session.
	SessionID string

	// From and To bound the event timestamp (inclusive).
	From time.Time
	To   time.Time

	// Limit caps the number of returned events. Zero means DefaultQueryLimit.
	Limit int
}

// Issue describes one discrepancy found by VerifyIntegrity.
type Issue struct {
	// Line is the 1-based line number of the offending record.
	Line int

	// Kind classifies the discrepancy.
	Kind IssueKind

	// Message is a human-readable description.
	Message string
}

// IssueKind classifies integrity discrepancies.
type IssueKind string

const (
	// IssueBrokenChain means a record's previous_checksum does not match
	// the checksum of the record before it.
	IssueBrokenChain IssueKind = "broken_chain"

	// IssueChecksumMismatch means a record's stored checksum does not match
	// a fresh recomputation over its own content.
	IssueChecksumMismatch IssueKind = "checksum_mismatch"

	// IssueUnparsable means a line is not a valid JSON record.
	IssueUnparsable IssueKind = "unparsable"
)

// Stats summarizes the log contents.
type Stats struct {
	// Events is the total number of parsable records.
	Events int `json:"events"`

	// SizeBytes is the size of the backing file.
	SizeBytes int64 `json:"size_bytes"`

	// ByType counts events per event type.
	ByType map[string]int `json:"by_type"`

	// IntegrityOK reports whether a full verification pass succeeded.
	IntegrityOK bool `json:"integrity_ok"`
}
