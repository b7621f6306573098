package policy

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"haven-hq/warden/pkg/audit"
)

// Policy holds a validated policy document and answers capability
// questions about it. All methods are safe for concurrent use; SetMode
// is the only mutation and takes the write lock.
type Policy struct {
	mu         sync.RWMutex
	config     map[string]any
	violations []Violation
	logger     *slog.Logger
}

// New returns an empty policy. Load or LoadMap must succeed before the
// evaluators give meaningful answers.
func New() *Policy {
	return &Policy{
		config: map[string]any{},
		logger: slog.Default().With("component", "policy"),
	}
}

// Load reads a YAML policy document from disk and validates it. On
// failure the previous document, if any, stays in effect and the
// violations describe what was wrong.
func (p *Policy) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("policy: read %s: %w", path, err)
	}

	var config map[string]any
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return fmt.Errorf("policy: parse %s: %w", path, err)
	}
	return p.LoadMap(config)
}

// LoadMap validates a policy document and, when it has no errors, swaps
// it in atomically.
func (p *Policy) LoadMap(config map[string]any) error {
	violations := validateObject(config, Schema(), "")

	p.mu.Lock()
	p.violations = violations
	errs := errorCount(violations)
	if errs == 0 {
		p.config = config
	}
	p.mu.Unlock()

	if errs > 0 {
		return &InvalidPolicyError{Violations: violations}
	}

	p.logger.Info("policy loaded",
		"device_id", p.DeviceID(),
		"mode", p.CurrentMode(),
	)
	return nil
}

// InvalidPolicyError carries every violation found in a rejected
// document.
type InvalidPolicyError struct {
	Violations []Violation
}

func (e *InvalidPolicyError) Error() string {
	return fmt.Sprintf("policy: document rejected with %d violation(s), first: %s",
		len(e.Violations), e.Violations[0])
}

func errorCount(violations []Violation) int {
	n := 0
	for _, v := range violations {
		if v.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Violations returns the discrepancies found by the most recent load.
func (p *Policy) Violations() []Violation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Violation, len(p.violations))
	copy(out, p.violations)
	return out
}

// validateObject recursively checks obj against the schema, collecting
// every violation rather than stopping at the first.
func validateObject(obj any, schema map[string]FieldSpec, path string) []Violation {
	m, ok := obj.(map[string]any)
	if !ok {
		field := path
		if field == "" {
			field = "<root>"
		}
		return []Violation{{
			Field:    field,
			Message:  fmt.Sprintf("expected object, got %T", obj),
			Severity: SeverityError,
		}}
	}

	var violations []Violation
	for key, spec := range schema {
		fieldPath := key
		if path != "" {
			fieldPath = path + "." + key
		}

		value, present := m[key]
		if !present {
			if spec.Required {
				violations = append(violations, Violation{
					Field:    fieldPath,
					Message:  "required field missing",
					Severity: SeverityError,
				})
			}
			continue
		}

		if !kindMatches(value, spec.Kind) {
			violations = append(violations, Violation{
				Field:    fieldPath,
				Message:  fmt.Sprintf("expected %s, got %T", spec.Kind, value),
				Severity: SeverityError,
			})
			continue
		}

		if len(spec.Enum) > 0 {
			if s, _ := value.(string); !containsString(spec.Enum, s) {
				violations = append(violations, Violation{
					Field:    fieldPath,
					Message:  fmt.Sprintf("value must be one of %v", spec.Enum),
					Severity: SeverityError,
				})
			}
		}

		if spec.Kind == KindObject && spec.Schema != nil {
			violations = append(violations, validateObject(value, spec.Schema, fieldPath)...)
		}

		if spec.Kind == KindObject && spec.DynamicKeys && spec.ValueSchema != nil {
			children, _ := value.(map[string]any)
			for name, child := range children {
				violations = append(violations, validateObject(child, spec.ValueSchema, fieldPath+"."+name)...)
			}
		}
	}
	return violations
}

func kindMatches(value any, kind Kind) bool {
	switch kind {
	case KindString:
		_, ok := value.(string)
		return ok
	case KindBool:
		_, ok := value.(bool)
		return ok
	case KindInt:
		switch value.(type) {
		case int, int64:
			return true
		}
		return false
	case KindFloat:
		switch value.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case KindList:
		_, ok := value.([]any)
		return ok
	case KindObject:
		_, ok := value.(map[string]any)
		return ok
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Get returns a config value by dot-notation path, or def when any
// segment is missing.
func (p *Policy) Get(path string, def any) any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lookup(p.config, path, def)
}

func lookup(config map[string]any, path string, def any) any {
	var value any = config
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		part := path[start:i]
		start = i + 1

		m, ok := value.(map[string]any)
		if !ok {
			return def
		}
		value, ok = m[part]
		if !ok {
			return def
		}
	}
	return value
}

func (p *Policy) getBool(path string, def bool) bool {
	if v, ok := p.Get(path, def).(bool); ok {
		return v
	}
	return def
}

func (p *Policy) getString(path string, def string) string {
	if v, ok := p.Get(path, def).(string); ok {
		return v
	}
	return def
}

func (p *Policy) getFloat(path string, def float64) float64 {
	switch v := p.Get(path, def).(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// DeviceID returns the appliance identity from the document.
func (p *Policy) DeviceID() string {
	return p.getString("device_id", "unknown")
}

// CurrentMode returns the active operating mode.
func (p *Policy) CurrentMode() Mode {
	mode, err := ParseMode(p.getString("mode.current", string(ModeEducation)))
	if err != nil {
		return ModeEducation
	}
	return mode
}

// AllowedModes returns the modes the document permits switching into.
func (p *Policy) AllowedModes() []Mode {
	raw, _ := p.Get("mode.allowed", []any{}).([]any)
	var modes []Mode
	for _, v := range raw {
		s, _ := v.(string)
		if mode, err := ParseMode(s); err == nil {
			modes = append(modes, mode)
		}
	}
	if len(modes) == 0 {
		modes = []Mode{ModeEducation}
	}
	return modes
}

// CanSwitchMode evaluates a switch into the target mode.
func (p *Policy) CanSwitchMode(target Mode) Evaluation {
	allowed := false
	for _, mode := range p.AllowedModes() {
		if mode == target {
			allowed = true
			break
		}
	}
	if !allowed {
		return Evaluation{
			Allowed: false,
			Reason:  fmt.Sprintf("mode %q not in allowed modes", target),
		}
	}

	requiresKey := p.getBool("mode.switch_requires_key", true)
	eval := Evaluation{Allowed: true, RequiresKey: requiresKey}
	if requiresKey {
		eval.KeyScope = p.getString("mode.switch_key_scope", "mode_control")
	}
	return eval
}

// SetMode switches the active mode in memory. The policy document on
// disk is not rewritten; a restart returns to the configured mode. Key
// authorization is the caller's responsibility, guided by CanSwitchMode.
func (p *Policy) SetMode(target Mode) error {
	eval := p.CanSwitchMode(target)
	if !eval.Allowed {
		return fmt.Errorf("policy: %s", eval.Reason)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	section, ok := p.config["mode"].(map[string]any)
	if !ok {
		return fmt.Errorf("policy: no mode section loaded")
	}
	section["current"] = string(target)
	return nil
}

// CanUseModule evaluates whether a knowledge module may serve queries.
// An enabled module that has not been loaded is refused with a warning
// rather than silently served from nothing.
func (p *Policy) CanUseModule(name string) Evaluation {
	module, ok := p.Get("modules."+name, nil).(map[string]any)
	if !ok {
		return Evaluation{
			Allowed: false,
			Reason:  fmt.Sprintf("module %q not configured", name),
		}
	}

	if enabled, _ := module["enabled"].(bool); !enabled {
		return Evaluation{
			Allowed: false,
			Reason:  fmt.Sprintf("module %q is disabled", name),
		}
	}
	if loaded, _ := module["loaded"].(bool); !loaded {
		return Evaluation{
			Allowed:  false,
			Reason:   fmt.Sprintf("module %q is not loaded", name),
			Warnings: []string{"module is enabled but not loaded, load its pack first"},
		}
	}
	return Evaluation{Allowed: true}
}

// CanOverrideSafety evaluates whether a safety override is available at
// all under the current document.
func (p *Policy) CanOverrideSafety() Evaluation {
	if !p.getBool("safety.allow_override_on_conflict", false) {
		return Evaluation{Allowed: false, Reason: "safety overrides are disabled"}
	}

	requiresKey := p.getBool("safety.override_requires_key", true)
	eval := Evaluation{Allowed: true, RequiresKey: requiresKey}
	if requiresKey {
		eval.KeyScope = p.getString("safety.override_key_scope", "safety_override")
	}
	return eval
}

// RequiresAuditor reports whether every response must pass the auditor.
func (p *Policy) RequiresAuditor() bool {
	return p.getBool("safety.require_auditor", true)
}

// StrictAuditor reports whether auditor failures fall back conservatively.
func (p *Policy) StrictAuditor() bool {
	return p.getBool("safety.auditor_strict", true)
}

// SkipAuditorConfidence returns the worker confidence a draft must
// exceed for the auditor to be skipped when it is not required.
func (p *Policy) SkipAuditorConfidence() float64 {
	return p.getFloat("safety.skip_auditor_confidence", DefaultSkipAuditorConfidence)
}

// ReadingLevelFor returns the effective reading level, honoring a
// profile's preference only when the document allows profile overrides.
func (p *Policy) ReadingLevelFor(profileLevel string) ReadingLevel {
	if profileLevel != "" && p.getBool("output.allow_profile_override", true) && validReadingLevel(profileLevel) {
		return ReadingLevel(profileLevel)
	}
	def := p.getString("output.default_reading_level", string(ReadingGeneral))
	if !validReadingLevel(def) {
		return ReadingGeneral
	}
	return ReadingLevel(def)
}

// RedactionLevel returns the audit redaction level the document asks for.
func (p *Policy) RedactionLevel() audit.RedactionLevel {
	switch p.getString("safety.redaction_level", "standard") {
	case "none":
		return audit.RedactionNone
	case "minimal":
		return audit.RedactionMinimal
	case "strict":
		return audit.RedactionStrict
	default:
		return audit.RedactionStandard
	}
}

// Snapshot returns a shallow copy of the top level of the document.
func (p *Policy) Snapshot() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any, len(p.config))
	for k, v := range p.config {
		out[k] = v
	}
	return out
}

// StatusSummary exports the operator-facing view of the document.
func (p *Policy) StatusSummary() map[string]any {
	modules := map[string]any{}
	if raw, ok := p.Get("modules", map[string]any{}).(map[string]any); ok {
		for name, v := range raw {
			module, _ := v.(map[string]any)
			enabled, _ := module["enabled"].(bool)
			loaded, _ := module["loaded"].(bool)
			modules[name] = map[string]any{"enabled": enabled, "loaded": loaded}
		}
	}

	sensors := map[string]any{}
	if raw, ok := p.Get("sensors", map[string]any{}).(map[string]any); ok {
		for name, v := range raw {
			sensor, _ := v.(map[string]any)
			enabled, _ := sensor["enabled"].(bool)
			sensors[name] = enabled
		}
	}

	network := map[string]any{}
	if raw, ok := p.Get("network", map[string]any{}).(map[string]any); ok {
		for name, v := range raw {
			channel, _ := v.(map[string]any)
			enabled, _ := channel["enabled"].(bool)
			network[name] = enabled
		}
	}

	allowed := make([]string, 0, len(p.AllowedModes()))
	for _, mode := range p.AllowedModes() {
		allowed = append(allowed, string(mode))
	}

	return map[string]any{
		"device_id":     p.DeviceID(),
		"mode":          string(p.CurrentMode()),
		"allowed_modes": allowed,
		"modules":       modules,
		"safety": map[string]any{
			"require_auditor": p.RequiresAuditor(),
			"redaction_level": string(p.RedactionLevel()),
		},
		"sensors":        sensors,
		"network":        network,
		"remote_enabled": p.getBool("remote.enabled", false),
	}
}
