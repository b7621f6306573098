package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writePolicyFile(t *testing.T, path, deviceID string) {
	t.Helper()
	doc := `device_id: ` + deviceID + `
mode:
  current: education
  allowed: [education]
modules:
  first-aid: {enabled: true, loaded: true}
safety: {}
output: {}
audit: {}
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	writePolicyFile(t, path, "before")

	p := New()
	if err := p.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	changed := make(chan struct{}, 1)
	w, err := NewWatcher(p, path, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	writePolicyFile(t, path, "after")

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report a reload")
	}
	if got := p.DeviceID(); got != "after" {
		t.Errorf("DeviceID() = %q, want after", got)
	}
}

func TestWatcherKeepsPolicyOnInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	writePolicyFile(t, path, "stable")

	p := New()
	if err := p.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	w, err := NewWatcher(p, path, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	// Drop a required section; the reload must be rejected.
	if err := os.WriteFile(path, []byte("mode: {current: education, allowed: [education]}\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	// The watcher debounces, so give it time to attempt the reload.
	if !waitFor(t, 3*time.Second, func() bool { return p.DeviceID() == "stable" }) {
		t.Errorf("DeviceID() = %q, want stable after rejected reload", p.DeviceID())
	}
	time.Sleep(500 * time.Millisecond)
	if got := p.DeviceID(); got != "stable" {
		t.Errorf("DeviceID() = %q, want stable", got)
	}
}
