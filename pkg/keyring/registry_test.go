package keyring

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"haven-hq/warden/pkg/audit"
)

const (
	masterSecret = "master-secret"
	modeSecret   = "mode-secret"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New()
	err := r.LoadDocument(&Document{
		Keys: []Entry{
			{ID: "master", Hash: HashSecret(masterSecret), Scopes: []string{ScopeAll}},
			{ID: "mode-only", Hash: HashSecret(modeSecret), Scopes: []string{ScopeModeControl}},
			{
				ID:        "stale",
				Hash:      HashSecret("stale-secret"),
				Scopes:    []string{ScopeAll},
				ExpiresAt: time.Now().Add(-time.Hour).Format(time.RFC3339),
			},
		},
	})
	if err != nil {
		t.Fatalf("LoadDocument() error = %v", err)
	}
	return r
}

func TestValidate(t *testing.T) {
	r := testRegistry(t)

	tests := []struct {
		name       string
		secret     string
		scope      string
		wantValid  bool
		wantKeyID  string
		wantReason string
	}{
		{"master grants any scope", masterSecret, ScopeSafetyOverride, true, "master", ""},
		{"scoped key grants its scope", modeSecret, ScopeModeControl, true, "mode-only", ""},
		{"scoped key denied other scope", modeSecret, ScopeSafetyOverride, false, "mode-only", ReasonInsufficientScope},
		{"expired key denied even in scope", "stale-secret", ScopeModeControl, false, "stale", ReasonExpired},
		{"unknown secret is generic failure", "wrong", ScopeModeControl, false, "", ReasonNoMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := r.Validate(tt.secret, tt.scope)
			if v.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", v.Valid, tt.wantValid)
			}
			if v.KeyID != tt.wantKeyID {
				t.Errorf("KeyID = %q, want %q", v.KeyID, tt.wantKeyID)
			}
			if v.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", v.Reason, tt.wantReason)
			}
		})
	}
}

func TestValidateAuditsFailures(t *testing.T) {
	r := testRegistry(t)

	var events []audit.EventType
	r.SetAuditFunc(func(et audit.EventType, details map[string]any) {
		events = append(events, et)
	})

	r.Validate("wrong", ScopeModeControl)
	r.Validate(masterSecret, ScopeModeControl)

	if len(events) != 2 {
		t.Fatalf("got %d audit events, want 2", len(events))
	}
	if events[0] != audit.EventKeyValidationFailed {
		t.Errorf("first event = %q, want %q", events[0], audit.EventKeyValidationFailed)
	}
	if events[1] != audit.EventKeyValidationSuccess {
		t.Errorf("second event = %q, want %q", events[1], audit.EventKeyValidationSuccess)
	}
}

func TestOverrideSessionLifecycle(t *testing.T) {
	r := testRegistry(t)

	session, err := r.CreateOverrideSession(masterSecret, ScopeSafetyOverride,
		map[string]any{"decision": "send_with_caveat"}, time.Hour)
	if err != nil {
		t.Fatalf("CreateOverrideSession() error = %v", err)
	}
	if session.ID == "" {
		t.Fatal("session has no ID")
	}

	if !r.CheckSession(session.ID, ScopeSafetyOverride) {
		t.Error("CheckSession() = false for live session in scope")
	}
	if r.CheckSession(session.ID, ScopeModeControl) {
		t.Error("CheckSession() = true for mismatched scope")
	}
	if r.CheckSession("no-such-session", ScopeSafetyOverride) {
		t.Error("CheckSession() = true for unknown session")
	}

	if !r.RevokeSession(session.ID) {
		t.Error("RevokeSession() = false for existing session")
	}
	if r.CheckSession(session.ID, ScopeSafetyOverride) {
		t.Error("CheckSession() = true after revocation")
	}
	if r.RevokeSession(session.ID) {
		t.Error("RevokeSession() = true for already revoked session")
	}
}

func TestWildcardSessionCoversAllScopes(t *testing.T) {
	r := testRegistry(t)

	session, err := r.CreateOverrideSession(masterSecret, ScopeAll, nil, time.Hour)
	if err != nil {
		t.Fatalf("CreateOverrideSession() error = %v", err)
	}
	if !r.CheckSession(session.ID, ScopeSafetyOverride) {
		t.Error("wildcard session did not cover safety_override")
	}
	if !r.CheckSession(session.ID, ScopeModeControl) {
		t.Error("wildcard session did not cover mode_control")
	}
}

func TestSessionExpiry(t *testing.T) {
	r := testRegistry(t)

	// A zero-duration session is born expired.
	session, err := r.CreateOverrideSession(masterSecret, ScopeSafetyOverride, nil, 0)
	if err != nil {
		t.Fatalf("CreateOverrideSession() error = %v", err)
	}
	if !session.ExpiresAt.Equal(session.GrantedAt) {
		t.Errorf("ExpiresAt = %v, want equal to GrantedAt %v", session.ExpiresAt, session.GrantedAt)
	}

	var expired bool
	r.SetAuditFunc(func(et audit.EventType, details map[string]any) {
		if et == audit.EventOverrideSessionExpired {
			expired = true
		}
	})

	if r.CheckSession(session.ID, ScopeSafetyOverride) {
		t.Error("CheckSession() = true for a 0-second session")
	}
	if !expired {
		t.Error("expired session was not audited")
	}
	// Eviction on first sight: a second check finds nothing.
	if r.CheckSession(session.ID, ScopeSafetyOverride) {
		t.Error("CheckSession() = true after eviction")
	}

	// A long-lived session stays active until revoked or swept.
	long, err := r.CreateOverrideSession(masterSecret, ScopeSafetyOverride, nil, time.Hour)
	if err != nil {
		t.Fatalf("CreateOverrideSession() error = %v", err)
	}
	if !r.CheckSession(long.ID, ScopeSafetyOverride) {
		t.Error("CheckSession() = false for a 1-hour session")
	}

	// A negative duration falls back to the registry default.
	def, err := r.CreateOverrideSession(masterSecret, ScopeSafetyOverride, nil, -1)
	if err != nil {
		t.Fatalf("CreateOverrideSession() error = %v", err)
	}
	if got := def.ExpiresAt.Sub(def.GrantedAt); got != DefaultSessionTTL {
		t.Errorf("default session lifetime = %v, want %v", got, DefaultSessionTTL)
	}
}

func TestCreateOverrideSessionDeniedKey(t *testing.T) {
	r := testRegistry(t)

	if _, err := r.CreateOverrideSession(modeSecret, ScopeSafetyOverride, nil, 0); err == nil {
		t.Error("CreateOverrideSession() with out-of-scope key, want error")
	}
	if _, err := r.CreateOverrideSession("wrong", ScopeModeControl, nil, 0); err == nil {
		t.Error("CreateOverrideSession() with unknown secret, want error")
	}
	if r.ActiveSessions() != 0 {
		t.Errorf("ActiveSessions() = %d, want 0", r.ActiveSessions())
	}
}

func TestCleanupExpired(t *testing.T) {
	r := testRegistry(t)

	if _, err := r.CreateOverrideSession(masterSecret, ScopeAll, nil, time.Nanosecond); err != nil {
		t.Fatalf("CreateOverrideSession() error = %v", err)
	}
	if _, err := r.CreateOverrideSession(masterSecret, ScopeAll, nil, time.Hour); err != nil {
		t.Fatalf("CreateOverrideSession() error = %v", err)
	}
	time.Sleep(time.Millisecond)

	if n := r.CleanupExpired(); n != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", n)
	}
	if n := r.ActiveSessions(); n != 1 {
		t.Errorf("ActiveSessions() = %d, want 1", n)
	}
	if n := r.CleanupExpired(); n != 0 {
		t.Errorf("second CleanupExpired() = %d, want 0", n)
	}
}

func TestGenerateSecretRoundTrip(t *testing.T) {
	plaintext, hash, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret() error = %v", err)
	}
	if HashSecret(plaintext) != hash {
		t.Error("hash does not match generated plaintext")
	}

	r := New()
	if err := r.LoadDocument(&Document{
		Keys: []Entry{{ID: "generated", Hash: hash, Scopes: []string{ScopeModeControl}}},
	}); err != nil {
		t.Fatalf("LoadDocument() error = %v", err)
	}
	if v := r.Validate(plaintext, ScopeModeControl); !v.Valid {
		t.Errorf("Validate() = %+v, want valid", v)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	doc := `keys:
  - id: file-key
    hash: ` + HashSecret("file-secret") + `
    scopes: [mode_control]
    description: loaded from disk
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	r := New()
	if err := r.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	infos := r.ListKeys()
	if len(infos) != 1 || infos[0].ID != "file-key" {
		t.Fatalf("ListKeys() = %+v", infos)
	}
	if v := r.Validate("file-secret", ScopeModeControl); !v.Valid {
		t.Errorf("Validate() = %+v, want valid", v)
	}
}

func TestLoadDocumentRejectsIncompleteEntries(t *testing.T) {
	r := New()
	if err := r.LoadDocument(&Document{Keys: []Entry{{Hash: "abc"}}}); err == nil {
		t.Error("LoadDocument() with missing id, want error")
	}
	if err := r.LoadDocument(&Document{Keys: []Entry{{ID: "k"}}}); err == nil {
		t.Error("LoadDocument() with missing hash, want error")
	}
}

func TestListKeysWithholdsHashes(t *testing.T) {
	r := testRegistry(t)
	for _, info := range r.ListKeys() {
		if info.ID == "stale" && !info.Expired {
			t.Error("stale key not reported expired")
		}
	}
}
