package remote

import (
	"context"
	"strings"
	"testing"
	"time"

	"haven-hq/warden/pkg/audit"
	"haven-hq/warden/pkg/policy"
)

func remotePolicy(t *testing.T, enabled bool) *policy.Policy {
	t.Helper()
	p := policy.New()
	err := p.LoadMap(map[string]any{
		"device_id": "unit-01",
		"mode": map[string]any{
			"current":             "education",
			"allowed":             []any{"education", "emergency"},
			"switch_requires_key": false,
		},
		"modules": map[string]any{},
		"safety":  map[string]any{},
		"output":  map[string]any{},
		"remote":  map[string]any{"enabled": enabled},
		"audit":   map[string]any{},
	})
	if err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}
	return p
}

func issuedBundle(bundleType BundleType, seq int64, payload map[string]any) *Bundle {
	return &Bundle{
		BundleID:       "b-1",
		BundleType:     bundleType,
		SequenceNumber: seq,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Payload:        payload,
		Issuer:         "hq",
		Signature:      "sig-hq-1",
	}
}

func TestApplyPolicyUpdate(t *testing.T) {
	pol := remotePolicy(t, true)
	m := NewManager(pol)
	m.RegisterIssuer("hq")

	var events []audit.EventType
	m.SetAuditFunc(func(et audit.EventType, details map[string]any) {
		events = append(events, et)
	})

	b := issuedBundle(BundlePolicyUpdate, 1, map[string]any{
		"changes": map[string]any{
			"safety.require_auditor": false,
		},
	})
	result := m.Apply(b)
	if !result.Success {
		t.Fatalf("Apply() = %+v", result)
	}
	if pol.RequiresAuditor() {
		t.Error("RequiresAuditor() still true after update")
	}
	if len(events) != 2 || events[0] != audit.EventBundleReceived || events[1] != audit.EventBundleApplied {
		t.Errorf("events = %v", events)
	}
}

func TestApplyRejectsInvalidPolicyUpdate(t *testing.T) {
	pol := remotePolicy(t, true)
	m := NewManager(pol)
	m.RegisterIssuer("hq")

	b := issuedBundle(BundlePolicyUpdate, 1, map[string]any{
		"changes": map[string]any{
			"mode.current": "nonsense",
		},
	})
	result := m.Apply(b)
	if result.Success {
		t.Fatalf("Apply() = %+v, want rejection", result)
	}
	if pol.CurrentMode() != policy.ModeEducation {
		t.Errorf("CurrentMode() = %v, want untouched", pol.CurrentMode())
	}
}

func TestApplyEmergencyMode(t *testing.T) {
	pol := remotePolicy(t, true)
	m := NewManager(pol)
	m.RegisterIssuer("hq")

	result := m.Apply(issuedBundle(BundleEmergencyMode, 1, nil))
	if !result.Success {
		t.Fatalf("Apply() = %+v", result)
	}
	if pol.CurrentMode() != policy.ModeEmergency {
		t.Errorf("CurrentMode() = %v, want emergency", pol.CurrentMode())
	}
}

func TestApplyDisabledByPolicy(t *testing.T) {
	m := NewManager(remotePolicy(t, false))
	m.RegisterIssuer("hq")

	result := m.Apply(issuedBundle(BundleEmergencyMode, 1, nil))
	if result.Success || !strings.Contains(result.Err, "disabled") {
		t.Errorf("Apply() = %+v", result)
	}
}

func TestVerifyRejections(t *testing.T) {
	m := NewManager(remotePolicy(t, true))
	m.RegisterIssuer("hq")

	expired := issuedBundle(BundlePolicyUpdate, 1, nil)
	expired.ExpiresAt = time.Now().Add(-time.Hour).Format(time.RFC3339)
	if err := m.Verify(expired); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Errorf("Verify(expired) = %v", err)
	}

	unknown := issuedBundle(BundlePolicyUpdate, 1, nil)
	unknown.Issuer = "stranger"
	if err := m.Verify(unknown); err == nil || !strings.Contains(err.Error(), "unknown issuer") {
		t.Errorf("Verify(unknown issuer) = %v", err)
	}

	unsigned := issuedBundle(BundlePolicyUpdate, 1, nil)
	unsigned.Signature = ""
	if err := m.Verify(unsigned); err == nil || !strings.Contains(err.Error(), "unsigned") {
		t.Errorf("Verify(unsigned) = %v", err)
	}
}

func TestReplayRejected(t *testing.T) {
	m := NewManager(remotePolicy(t, true))
	m.RegisterIssuer("hq")

	first := issuedBundle(BundleEmergencyMode, 5, map[string]any{"mode": "education"})
	if result := m.Apply(first); !result.Success {
		t.Fatalf("Apply(first) = %+v", result)
	}

	replay := issuedBundle(BundleEmergencyMode, 5, map[string]any{"mode": "emergency"})
	if result := m.Apply(replay); result.Success {
		t.Errorf("Apply(replay) = %+v, want rejection", result)
	}

	older := issuedBundle(BundleEmergencyMode, 3, map[string]any{"mode": "emergency"})
	if result := m.Apply(older); result.Success {
		t.Errorf("Apply(older) = %+v, want rejection", result)
	}
}

func TestUnimplementedBundleTypes(t *testing.T) {
	m := NewManager(remotePolicy(t, true))
	m.RegisterIssuer("hq")

	for _, bundleType := range []BundleType{BundleModuleControl, BundleKeyRotation, BundlePackPush, BundleFullConfig} {
		result := m.Apply(issuedBundle(bundleType, 1, nil))
		if result.Success || !strings.Contains(result.Err, "not implemented") {
			t.Errorf("Apply(%s) = %+v", bundleType, result)
		}
	}
}

type queueTransport struct {
	bundles   []*Bundle
	available bool
	acks      map[string]bool
}

func (q *queueTransport) Available(ctx context.Context) bool { return q.available }

func (q *queueTransport) Poll(ctx context.Context) (*Bundle, error) {
	if len(q.bundles) == 0 {
		return nil, nil
	}
	b := q.bundles[0]
	q.bundles = q.bundles[1:]
	return b, nil
}

func (q *queueTransport) Acknowledge(ctx context.Context, bundleID string, success bool) error {
	if q.acks == nil {
		q.acks = map[string]bool{}
	}
	q.acks[bundleID] = success
	return nil
}

func TestPollAll(t *testing.T) {
	m := NewManager(remotePolicy(t, true))
	m.RegisterIssuer("hq")

	acked := issuedBundle(BundleEmergencyMode, 1, nil)
	acked.BundleID = "b-ack"
	acked.RequiresAck = true

	transport := &queueTransport{bundles: []*Bundle{acked}, available: true}
	m.RegisterTransport(TransportInternet, transport)

	offline := &queueTransport{bundles: []*Bundle{issuedBundle(BundlePolicyUpdate, 2, nil)}, available: false}
	m.RegisterTransport(TransportSMS, offline)

	results := m.PollAll(context.Background())
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("PollAll() = %+v", results)
	}
	if !transport.acks["b-ack"] {
		t.Errorf("acks = %v, want success ack for b-ack", transport.acks)
	}
	if len(offline.bundles) != 1 {
		t.Error("unavailable transport was polled")
	}
}
