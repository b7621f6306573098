package remote

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"haven-hq/warden/pkg/audit"
	"haven-hq/warden/pkg/policy"
)

// AuditFunc receives bundle lifecycle events.
type AuditFunc func(eventType audit.EventType, details map[string]any)

// Manager verifies and applies control bundles. Remote control is off
// unless the policy document enables it; a device with remote.enabled
// false ignores every channel.
type Manager struct {
	mu         sync.Mutex
	policy     *policy.Policy
	transports map[TransportType]Transport
	issuers    map[string]bool
	lastSeq    map[string]int64
	auditFn    AuditFunc
	logger     *slog.Logger
}

// NewManager returns a manager bound to the policy.
func NewManager(pol *policy.Policy) *Manager {
	return &Manager{
		policy:     pol,
		transports: make(map[TransportType]Transport),
		issuers:    make(map[string]bool),
		lastSeq:    make(map[string]int64),
		logger:     slog.Default().With("component", "remote"),
	}
}

// SetAuditFunc installs the audit hook.
func (m *Manager) SetAuditFunc(fn AuditFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditFn = fn
}

func (m *Manager) audit(eventType audit.EventType, details map[string]any) {
	m.mu.Lock()
	fn := m.auditFn
	m.mu.Unlock()
	if fn != nil {
		fn(eventType, details)
	}
}

// RegisterTransport makes a channel available for polling.
func (m *Manager) RegisterTransport(transportType TransportType, transport Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transports[transportType] = transport
}

// RegisterIssuer marks an issuer as trusted. Bundles from unregistered
// issuers are rejected.
func (m *Manager) RegisterIssuer(issuer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issuers[issuer] = true
}

// Enabled reports whether the policy document allows remote control.
func (m *Manager) Enabled() bool {
	if m.policy == nil {
		return false
	}
	enabled, _ := m.policy.Get("remote.enabled", false).(bool)
	return enabled
}

// Verify checks a bundle without applying it. Checks run cheapest
// first: expiry, then replay, then issuer, then signature presence.
// The signature bytes are carried but not cryptographically checked;
// the field reserves the slot for a future signing scheme.
func (m *Manager) Verify(b *Bundle) error {
	if b == nil {
		return fmt.Errorf("remote: nil bundle")
	}
	if b.Expired(time.Now()) {
		return fmt.Errorf("remote: bundle %s expired at %s", b.BundleID, b.ExpiresAt)
	}

	m.mu.Lock()
	last, seen := m.lastSeq[b.Issuer]
	known := m.issuers[b.Issuer]
	m.mu.Unlock()

	if seen && b.SequenceNumber <= last {
		return fmt.Errorf("remote: sequence %d not after %d for issuer %s", b.SequenceNumber, last, b.Issuer)
	}
	if !known {
		return fmt.Errorf("remote: unknown issuer %q", b.Issuer)
	}
	if b.Signature == "" {
		return fmt.Errorf("remote: bundle %s is unsigned", b.BundleID)
	}
	return nil
}

// Apply verifies a bundle and executes it. A rejected bundle leaves
// every subsystem untouched.
func (m *Manager) Apply(b *Bundle) Result {
	if b == nil {
		return m.reject(nil, "nil bundle")
	}
	if !m.Enabled() {
		return m.reject(b, "remote control is disabled by policy")
	}

	m.audit(audit.EventBundleReceived, map[string]any{
		"bundle_id":   b.BundleID,
		"bundle_type": string(b.BundleType),
		"issuer":      b.Issuer,
		"sequence":    b.SequenceNumber,
	})

	if err := m.Verify(b); err != nil {
		return m.reject(b, err.Error())
	}

	var (
		action string
		err    error
	)
	switch b.BundleType {
	case BundlePolicyUpdate:
		action, err = m.applyPolicyUpdate(b)
	case BundleEmergencyMode:
		action, err = m.applyEmergencyMode(b)
	case BundleModuleControl, BundleKeyRotation, BundlePackPush, BundleFullConfig:
		err = fmt.Errorf("bundle type %s is not implemented on this device", b.BundleType)
	default:
		err = fmt.Errorf("unknown bundle type %q", b.BundleType)
	}
	if err != nil {
		return m.reject(b, err.Error())
	}

	m.mu.Lock()
	m.lastSeq[b.Issuer] = b.SequenceNumber
	m.mu.Unlock()

	m.audit(audit.EventBundleApplied, map[string]any{
		"bundle_id":   b.BundleID,
		"bundle_type": string(b.BundleType),
		"issuer":      b.Issuer,
		"action":      action,
	})
	m.logger.Info("bundle applied",
		"bundle_id", b.BundleID,
		"bundle_type", string(b.BundleType),
		"action", action)

	return Result{
		Success:     true,
		BundleID:    b.BundleID,
		ActionTaken: action,
		AckRequired: b.RequiresAck,
	}
}

func (m *Manager) reject(b *Bundle, reason string) Result {
	id := ""
	if b != nil {
		id = b.BundleID
	}
	m.audit(audit.EventBundleRejected, map[string]any{
		"bundle_id": id,
		"reason":    reason,
	})
	m.logger.Warn("bundle rejected", "bundle_id", id, "reason", reason)
	return Result{BundleID: id, ActionTaken: "rejected", Err: reason}
}

// applyPolicyUpdate merges payload["changes"], a map of dotted paths to
// values, onto a copy of the live document. The copy must validate
// before it replaces the live one, so a bad update cannot strand the
// device without a policy.
func (m *Manager) applyPolicyUpdate(b *Bundle) (string, error) {
	changes, ok := b.Payload["changes"].(map[string]any)
	if !ok || len(changes) == 0 {
		return "", fmt.Errorf("policy_update bundle has no changes")
	}

	next := deepCopy(m.policy.Snapshot())
	paths := make([]string, 0, len(changes))
	for path, value := range changes {
		if err := setPath(next, path, value); err != nil {
			return "", err
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	if err := m.policy.LoadMap(next); err != nil {
		return "", fmt.Errorf("updated policy rejected: %w", err)
	}
	return "policy updated: " + strings.Join(paths, ", "), nil
}

// applyEmergencyMode switches the device into the payload's mode, or
// emergency when none is named.
func (m *Manager) applyEmergencyMode(b *Bundle) (string, error) {
	target := policy.ModeEmergency
	if named, ok := b.Payload["mode"].(string); ok && named != "" {
		target = policy.Mode(named)
	}
	if err := m.policy.SetMode(target); err != nil {
		return "", err
	}
	return "mode switched to " + string(target), nil
}

// PollAll drains every available transport once and applies what it
// finds. Transport errors are logged and skipped so one dead channel
// does not block the others.
func (m *Manager) PollAll(ctx context.Context) []Result {
	if !m.Enabled() {
		return nil
	}

	m.mu.Lock()
	transports := make(map[TransportType]Transport, len(m.transports))
	for k, v := range m.transports {
		transports[k] = v
	}
	m.mu.Unlock()

	var results []Result
	for transportType, transport := range transports {
		if !transport.Available(ctx) {
			continue
		}
		for {
			bundle, err := transport.Poll(ctx)
			if err != nil {
				m.logger.Warn("transport poll failed", "transport", string(transportType), "error", err)
				break
			}
			if bundle == nil {
				break
			}
			result := m.Apply(bundle)
			results = append(results, result)
			if result.AckRequired {
				if err := transport.Acknowledge(ctx, bundle.BundleID, result.Success); err != nil {
					m.logger.Warn("acknowledge failed", "bundle_id", bundle.BundleID, "error", err)
				}
			}
		}
	}
	return results
}

// setPath writes value at a dotted path, creating intermediate maps. It
// fails when a path segment crosses a non-map value.
func setPath(doc map[string]any, path string, value any) error {
	if path == "" {
		return fmt.Errorf("empty change path")
	}
	current := doc
	for {
		dot := strings.IndexByte(path, '.')
		if dot < 0 {
			current[path] = value
			return nil
		}
		key := path[:dot]
		path = path[dot+1:]
		next, ok := current[key]
		if !ok || next == nil {
			child := map[string]any{}
			current[key] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("change path crosses non-object at %q", key)
		}
		current = child
	}
}

func deepCopy(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		switch t := v.(type) {
		case map[string]any:
			out[k] = deepCopy(t)
		case []any:
			list := make([]any, len(t))
			copy(list, t)
			out[k] = list
		default:
			out[k] = v
		}
	}
	return out
}
