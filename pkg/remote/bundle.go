package remote

import (
	"context"
	"time"
)

// BundleType classifies what a control bundle changes.
type BundleType string

const (
	BundlePolicyUpdate  BundleType = "policy_update"
	BundleModuleControl BundleType = "module_control"
	BundleKeyRotation   BundleType = "key_rotation"
	BundlePackPush      BundleType = "pack_push"
	BundleEmergencyMode BundleType = "emergency_mode"
	BundleFullConfig    BundleType = "full_config"
)

// TransportType names the channel a bundle arrived on.
type TransportType string

const (
	TransportInternet  TransportType = "internet"
	TransportSMS       TransportType = "sms"
	TransportBroadcast TransportType = "broadcast"
	TransportManual    TransportType = "manual"
)

// Bundle is a control message from the operating organization.
type Bundle struct {
	BundleID       string         `json:"bundle_id"`
	BundleType     BundleType     `json:"bundle_type"`
	SequenceNumber int64          `json:"sequence_number"`
	Timestamp      string         `json:"timestamp"`
	Payload        map[string]any `json:"payload"`

	// Signature must be non-empty. The format reserves it for a signing
	// scheme; Verify does not yet check the bytes.
	Signature string `json:"signature"`

	Issuer string `json:"issuer"`

	ExpiresAt         string `json:"expires_at,omitempty"`
	RequiresAck       bool   `json:"requires_ack,omitempty"`
	RollbackOnFailure bool   `json:"rollback_on_failure,omitempty"`
}

// Expired reports whether the bundle's expiry, if set, has passed.
func (b *Bundle) Expired(now time.Time) bool {
	if b.ExpiresAt == "" {
		return false
	}
	expires, err := time.Parse(time.RFC3339, b.ExpiresAt)
	if err != nil {
		return false
	}
	return now.After(expires)
}

// Result reports what applying a bundle did.
type Result struct {
	Success     bool   `json:"success"`
	BundleID    string `json:"bundle_id"`
	ActionTaken string `json:"action_taken"`
	Err         string `json:"error,omitempty"`
	AckRequired bool   `json:"ack_required,omitempty"`
}

// Transport delivers bundles from one channel. Implementations must
// honor context cancellation on network operations.
type Transport interface {
	// Available reports whether the channel can be polled right now.
	Available(ctx context.Context) bool

	// Poll returns the next pending bundle, or nil when there is none.
	Poll(ctx context.Context) (*Bundle, error)

	// Acknowledge reports the outcome of an applied bundle back to the
	// issuer, for bundles that require it.
	Acknowledge(ctx context.Context, bundleID string, success bool) error
}
