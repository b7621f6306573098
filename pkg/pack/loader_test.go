package pack

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"haven-hq/warden/pkg/audit"
)

func writePack(t *testing.T, root, dir, id string) {
	t.Helper()
	base := filepath.Join(root, dir)
	for _, sub := range []string{"prompts", "knowledge"} {
		if err := os.MkdirAll(filepath.Join(base, sub), 0o750); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
	}

	manifest := `id: ` + id + `
name: First Aid
version: 2.1.0
description: Basic first aid guidance
modes: [education, emergency]
safety_profile: medical
`
	files := map[string]string{
		manifestFile:      manifest,
		workerPromptFile:  "You serve the {module} module in {mode} mode at {reading_level} level.",
		auditorPromptFile: "Review {module} responses under the {safety_profile} profile.",
		"knowledge/burns.md":     "# Burn Treatment\nCool the burn under running water.",
		"knowledge/fractures.md": "Immobilize the limb.\n",
		"knowledge/ignored.json": `{"skipped": true}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(base, name), []byte(content), 0o600); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
	}
}

func TestDiscoverAndLoad(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "first-aid-pack", "first-aid")

	l := NewLoader(root)

	manifests, err := l.Discover()
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(manifests) != 1 || manifests[0].ID != "first-aid" {
		t.Fatalf("Discover() = %+v", manifests)
	}
	if manifests[0].Version != "2.1.0" {
		t.Errorf("Version = %q", manifests[0].Version)
	}
	if !manifests[0].SupportsMode("emergency") || manifests[0].SupportsMode("hybrid") {
		t.Errorf("Modes = %v", manifests[0].Modes)
	}

	var events []audit.EventType
	l.SetAuditFunc(func(et audit.EventType, details map[string]any) {
		events = append(events, et)
	})

	p, err := l.Load("first-aid")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.Name() != "First Aid" {
		t.Errorf("Name() = %q", p.Name())
	}
	if len(p.Documents()) != 2 {
		t.Errorf("Documents() = %d, want 2 (json skipped)", len(p.Documents()))
	}
	if got := l.Loaded(); len(got) != 1 || got[0] != "first-aid" {
		t.Errorf("Loaded() = %v", got)
	}
	if len(events) != 1 || events[0] != audit.EventPackLoaded {
		t.Errorf("audit events = %v", events)
	}

	if !l.Unload("first-aid") {
		t.Error("Unload() = false")
	}
	if l.Unload("first-aid") {
		t.Error("second Unload() = true")
	}
	if len(events) != 2 || events[1] != audit.EventPackUnloaded {
		t.Errorf("audit events = %v", events)
	}
}

func TestLoadUnknownPack(t *testing.T) {
	l := NewLoader(t.TempDir())
	if _, err := l.Load("missing"); err == nil {
		t.Error("Load() of unknown pack, want error")
	}
}

func TestPromptRendering(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "fa", "first-aid")

	l := NewLoader(root)
	p, err := l.Load("first-aid")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	worker := p.WorkerSystem("emergency", "child")
	if worker != "You serve the First Aid module in emergency mode at child level." {
		t.Errorf("WorkerSystem() = %q", worker)
	}
	auditor := p.AuditorSystem("emergency", "child")
	if !strings.Contains(auditor, "medical") {
		t.Errorf("AuditorSystem() = %q, want safety profile substituted", auditor)
	}
}

func TestKnowledgeContext(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "fa", "first-aid")

	l := NewLoader(root)
	p, err := l.Load("first-aid")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ctx := p.KnowledgeContext("burns", 5)
	if !strings.Contains(ctx, "### Burn Treatment") {
		t.Errorf("KnowledgeContext() missing heading title:\n%s", ctx)
	}
	if !strings.Contains(ctx, "### fractures") {
		t.Errorf("KnowledgeContext() missing filename title:\n%s", ctx)
	}

	if got := p.KnowledgeContext("burns", 1); strings.Contains(got, "fractures") {
		t.Errorf("KnowledgeContext(maxDocs=1) included second doc:\n%s", got)
	}

	empty := &Pack{}
	if got := empty.KnowledgeContext("q", 5); !strings.Contains(got, "No specific knowledge") {
		t.Errorf("empty KnowledgeContext() = %q", got)
	}
}

func TestDiscoverSkipsBrokenManifests(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "good", "good-pack")

	bad := filepath.Join(root, "bad")
	if err := os.MkdirAll(bad, 0o750); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(bad, manifestFile), []byte("name: no id"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	l := NewLoader(root)
	manifests, err := l.Discover()
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(manifests) != 1 || manifests[0].ID != "good-pack" {
		t.Errorf("Discover() = %+v, want only the valid pack", manifests)
	}
}
