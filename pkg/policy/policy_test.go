package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"haven-hq/warden/pkg/audit"
)

func validDoc() map[string]any {
	return map[string]any{
		"device_id": "unit-01",
		"mode": map[string]any{
			"current":             "education",
			"allowed":             []any{"education", "hybrid"},
			"switch_requires_key": true,
			"switch_key_scope":    "mode_control",
		},
		"modules": map[string]any{
			"first-aid": map[string]any{"enabled": true, "loaded": true},
			"nutrition": map[string]any{"enabled": true, "loaded": false},
			"chemistry": map[string]any{"enabled": false, "loaded": false},
		},
		"safety": map[string]any{
			"require_auditor":            true,
			"allow_override_on_conflict": true,
			"redaction_level":            "standard",
		},
		"output": map[string]any{
			"default_reading_level":  "general",
			"allow_profile_override": true,
		},
		"audit": map[string]any{
			"retention_days": 365,
		},
	}
}

func loadedPolicy(t *testing.T, doc map[string]any) *Policy {
	t.Helper()
	p := New()
	if err := p.LoadMap(doc); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}
	return p
}

func TestLoadMapValidDocument(t *testing.T) {
	p := loadedPolicy(t, validDoc())
	if got := p.DeviceID(); got != "unit-01" {
		t.Errorf("DeviceID() = %q, want unit-01", got)
	}
	if got := p.CurrentMode(); got != ModeEducation {
		t.Errorf("CurrentMode() = %q, want education", got)
	}
	if len(p.Violations()) != 0 {
		t.Errorf("Violations() = %v, want none", p.Violations())
	}
}

func TestLoadMapCollectsAllViolations(t *testing.T) {
	doc := validDoc()
	delete(doc, "device_id")
	delete(doc, "audit")

	p := New()
	err := p.LoadMap(doc)
	if err == nil {
		t.Fatal("LoadMap() with two missing required fields, want error")
	}

	var invalid *InvalidPolicyError
	if !errors.As(err, &invalid) {
		t.Fatalf("error type = %T, want *InvalidPolicyError", err)
	}
	if len(invalid.Violations) != 2 {
		t.Errorf("got %d violations, want 2: %v", len(invalid.Violations), invalid.Violations)
	}

	fields := map[string]bool{}
	for _, v := range invalid.Violations {
		fields[v.Field] = true
	}
	if !fields["device_id"] || !fields["audit"] {
		t.Errorf("violation fields = %v, want device_id and audit", fields)
	}
}

func TestLoadMapRejectsBadTypesAndEnums(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(doc map[string]any)
		wantField string
	}{
		{
			"wrong type",
			func(doc map[string]any) { doc["device_id"] = 42 },
			"device_id",
		},
		{
			"enum violation",
			func(doc map[string]any) {
				doc["safety"].(map[string]any)["redaction_level"] = "paranoid"
			},
			"safety.redaction_level",
		},
		{
			"dynamic key child",
			func(doc map[string]any) {
				doc["modules"].(map[string]any)["first-aid"].(map[string]any)["enabled"] = "yes"
			},
			"modules.first-aid.enabled",
		},
		{
			"nested section not object",
			func(doc map[string]any) { doc["mode"] = "education" },
			"mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDoc()
			tt.mutate(doc)

			err := New().LoadMap(doc)
			var invalid *InvalidPolicyError
			if !errors.As(err, &invalid) {
				t.Fatalf("LoadMap() error = %v, want *InvalidPolicyError", err)
			}
			found := false
			for _, v := range invalid.Violations {
				if v.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("violations %v missing field %q", invalid.Violations, tt.wantField)
			}
		})
	}
}

func TestRejectedLoadKeepsPreviousDocument(t *testing.T) {
	p := loadedPolicy(t, validDoc())

	bad := validDoc()
	delete(bad, "device_id")
	if err := p.LoadMap(bad); err == nil {
		t.Fatal("LoadMap() with invalid doc, want error")
	}

	if got := p.DeviceID(); got != "unit-01" {
		t.Errorf("DeviceID() after rejected load = %q, want unit-01", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := `device_id: file-unit
mode:
  current: education
  allowed: [education]
modules:
  first-aid: {enabled: true, loaded: true}
safety:
  redaction_level: strict
output:
  default_reading_level: teen
audit:
  retention_days: 30
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	p := New()
	if err := p.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := p.DeviceID(); got != "file-unit" {
		t.Errorf("DeviceID() = %q, want file-unit", got)
	}
	if got := p.RedactionLevel(); got != audit.RedactionStrict {
		t.Errorf("RedactionLevel() = %q, want strict", got)
	}
	if got := p.ReadingLevelFor(""); got != ReadingTeen {
		t.Errorf("ReadingLevelFor() = %q, want teen", got)
	}
}

func TestCanSwitchMode(t *testing.T) {
	p := loadedPolicy(t, validDoc())

	eval := p.CanSwitchMode(ModeHybrid)
	if !eval.Allowed {
		t.Errorf("CanSwitchMode(hybrid) = %+v, want allowed", eval)
	}
	if !eval.RequiresKey || eval.KeyScope != "mode_control" {
		t.Errorf("eval = %+v, want key required with mode_control scope", eval)
	}

	eval = p.CanSwitchMode(ModeEmergency)
	if eval.Allowed {
		t.Errorf("CanSwitchMode(emergency) = %+v, want denied", eval)
	}
}

func TestSetMode(t *testing.T) {
	p := loadedPolicy(t, validDoc())

	if err := p.SetMode(ModeHybrid); err != nil {
		t.Fatalf("SetMode(hybrid) error = %v", err)
	}
	if got := p.CurrentMode(); got != ModeHybrid {
		t.Errorf("CurrentMode() = %q, want hybrid", got)
	}

	if err := p.SetMode(ModeEmergency); err == nil {
		t.Error("SetMode(emergency) with disallowed mode, want error")
	}
	if got := p.CurrentMode(); got != ModeHybrid {
		t.Errorf("CurrentMode() after denied switch = %q, want hybrid", got)
	}
}

func TestCanUseModule(t *testing.T) {
	p := loadedPolicy(t, validDoc())

	tests := []struct {
		name        string
		module      string
		wantAllowed bool
		wantWarning bool
	}{
		{"enabled and loaded", "first-aid", true, false},
		{"enabled not loaded", "nutrition", false, true},
		{"disabled", "chemistry", false, false},
		{"unconfigured", "astrology", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := p.CanUseModule(tt.module)
			if eval.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v (%s)", eval.Allowed, tt.wantAllowed, eval.Reason)
			}
			if (len(eval.Warnings) > 0) != tt.wantWarning {
				t.Errorf("Warnings = %v, want warning %v", eval.Warnings, tt.wantWarning)
			}
		})
	}
}

func TestCanOverrideSafety(t *testing.T) {
	p := loadedPolicy(t, validDoc())
	eval := p.CanOverrideSafety()
	if !eval.Allowed || !eval.RequiresKey || eval.KeyScope != "safety_override" {
		t.Errorf("CanOverrideSafety() = %+v", eval)
	}

	doc := validDoc()
	doc["safety"].(map[string]any)["allow_override_on_conflict"] = false
	p = loadedPolicy(t, doc)
	if eval := p.CanOverrideSafety(); eval.Allowed {
		t.Errorf("CanOverrideSafety() with overrides off = %+v, want denied", eval)
	}
}

func TestReadingLevelFor(t *testing.T) {
	p := loadedPolicy(t, validDoc())

	if got := p.ReadingLevelFor("child"); got != ReadingChild {
		t.Errorf("profile override = %q, want child", got)
	}
	if got := p.ReadingLevelFor("galactic"); got != ReadingGeneral {
		t.Errorf("invalid profile level = %q, want general fallback", got)
	}
	if got := p.ReadingLevelFor(""); got != ReadingGeneral {
		t.Errorf("no profile = %q, want general", got)
	}

	doc := validDoc()
	doc["output"].(map[string]any)["allow_profile_override"] = false
	p = loadedPolicy(t, doc)
	if got := p.ReadingLevelFor("child"); got != ReadingGeneral {
		t.Errorf("override disallowed = %q, want general", got)
	}
}

func TestSkipAuditorConfidence(t *testing.T) {
	p := loadedPolicy(t, validDoc())
	if got := p.SkipAuditorConfidence(); got != DefaultSkipAuditorConfidence {
		t.Errorf("default = %v, want %v", got, DefaultSkipAuditorConfidence)
	}

	doc := validDoc()
	doc["safety"].(map[string]any)["skip_auditor_confidence"] = 0.75
	p = loadedPolicy(t, doc)
	if got := p.SkipAuditorConfidence(); got != 0.75 {
		t.Errorf("configured = %v, want 0.75", got)
	}
}

func TestStatusSummary(t *testing.T) {
	p := loadedPolicy(t, validDoc())
	status := p.StatusSummary()

	if status["device_id"] != "unit-01" {
		t.Errorf("device_id = %v", status["device_id"])
	}
	modules, ok := status["modules"].(map[string]any)
	if !ok || len(modules) != 3 {
		t.Fatalf("modules = %v", status["modules"])
	}
	firstAid, _ := modules["first-aid"].(map[string]any)
	if firstAid["enabled"] != true || firstAid["loaded"] != true {
		t.Errorf("first-aid = %v", firstAid)
	}
	safety, _ := status["safety"].(map[string]any)
	if safety["require_auditor"] != true {
		t.Errorf("safety = %v", safety)
	}
}

func TestGetDotPath(t *testing.T) {
	p := loadedPolicy(t, validDoc())

	if got := p.Get("mode.switch_key_scope", ""); got != "mode_control" {
		t.Errorf("Get(mode.switch_key_scope) = %v", got)
	}
	if got := p.Get("mode.missing.deeper", "fallback"); got != "fallback" {
		t.Errorf("Get() on missing path = %v, want fallback", got)
	}
	if got := p.Get("device_id", ""); got != "unit-01" {
		t.Errorf("Get(device_id) = %v", got)
	}
}
