package profile

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"haven-hq/warden/pkg/audit"
	"haven-hq/warden/pkg/policy"
)

// AuditFunc receives profile lifecycle events.
type AuditFunc func(eventType audit.EventType, details map[string]any)

// Manager validates and holds the active profile envelope. One profile
// is active at a time; loading replaces it, Clear drops it.
type Manager struct {
	mu      sync.RWMutex
	policy  *policy.Policy
	current *Envelope
	auditFn AuditFunc
	logger  *slog.Logger
}

// NewManager returns a manager bound to the policy. A nil policy allows
// every profile preference through.
func NewManager(pol *policy.Policy) *Manager {
	return &Manager{
		policy: pol,
		logger: slog.Default().With("component", "profile"),
	}
}

// SetAuditFunc installs the audit hook.
func (m *Manager) SetAuditFunc(fn AuditFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditFn = fn
}

func (m *Manager) audit(eventType audit.EventType, details map[string]any) {
	m.mu.RLock()
	fn := m.auditFn
	m.mu.RUnlock()
	if fn != nil {
		fn(eventType, details)
	}
}

// Current returns the active profile, or nil.
func (m *Manager) Current() *Envelope {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Validate checks an envelope without activating it. Unknown reading
// levels and formats degrade to defaults with a warning rather than a
// rejection; expiry and a missing required signature reject outright.
func (m *Manager) Validate(envelope *Envelope) Validation {
	if envelope == nil {
		return Validation{Valid: false, Err: "no profile data"}
	}

	checked := *envelope
	var warnings []string

	if checked.ReadingLevel == "" {
		checked.ReadingLevel = "general"
	} else if !contains(knownReadingLevels, checked.ReadingLevel) {
		warnings = append(warnings, fmt.Sprintf("unknown reading level %q, defaulting to general", checked.ReadingLevel))
		checked.ReadingLevel = "general"
	}

	if checked.FormatPreference == "" {
		checked.FormatPreference = FormatConversational
	} else if !contains(knownFormats, checked.FormatPreference) {
		warnings = append(warnings, fmt.Sprintf("unknown format %q, defaulting to conversational", checked.FormatPreference))
		checked.FormatPreference = FormatConversational
	}

	if checked.Language == "" {
		checked.Language = "en"
	}

	if checked.Expired(time.Now()) {
		return Validation{Valid: false, Err: "profile has expired"}
	}

	if m.policy != nil {
		if required, _ := m.policy.Get("profile.require_signature", false).(bool); required && checked.Signature == "" {
			return Validation{Valid: false, Err: "profile signature required but not provided"}
		}
	}

	return Validation{Valid: true, Profile: &checked, Warnings: warnings}
}

// Load validates an envelope and activates it.
func (m *Manager) Load(envelope *Envelope) Validation {
	validation := m.Validate(envelope)
	if !validation.Valid {
		m.audit(audit.EventError, map[string]any{
			"operation": "profile_load",
			"message":   validation.Err,
		})
		return validation
	}

	m.mu.Lock()
	m.current = validation.Profile
	m.mu.Unlock()

	m.audit(audit.EventProfileLoaded, map[string]any{
		"profile_id":        validation.Profile.ProfileID,
		"reading_level":     validation.Profile.ReadingLevel,
		"format_preference": validation.Profile.FormatPreference,
	})
	return validation
}

// LoadJSON parses and activates a profile from a JSON document.
func (m *Manager) LoadJSON(data []byte) Validation {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Validation{Valid: false, Err: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return m.Load(&envelope)
}

// LoadQR activates a profile from scanned QR content, which may carry
// the JSON directly or base64-encoded.
func (m *Manager) LoadQR(data string) Validation {
	var envelope Envelope
	if err := json.Unmarshal([]byte(data), &envelope); err == nil {
		return m.Load(&envelope)
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err == nil {
		if err := json.Unmarshal(decoded, &envelope); err == nil {
			return m.Load(&envelope)
		}
	}

	return Validation{Valid: false, Err: "could not parse QR data as profile"}
}

// Clear drops the active profile.
func (m *Manager) Clear() {
	m.mu.Lock()
	cleared := m.current
	m.current = nil
	m.mu.Unlock()

	if cleared != nil {
		m.audit(audit.EventProfileCleared, map[string]any{
			"profile_id": cleared.ProfileID,
		})
	}
}

// EffectiveReadingLevel resolves the reading level from profile and
// policy, honoring the policy's profile-override toggle.
func (m *Manager) EffectiveReadingLevel() string {
	current := m.Current()
	profileLevel := ""
	if current != nil {
		profileLevel = current.ReadingLevel
	}
	if m.policy != nil {
		return string(m.policy.ReadingLevelFor(profileLevel))
	}
	if profileLevel != "" {
		return profileLevel
	}
	return "general"
}

// EffectiveFormat resolves the output format from profile and policy.
func (m *Manager) EffectiveFormat() string {
	current := m.Current()
	if current != nil {
		if m.policy == nil {
			return current.FormatPreference
		}
		if allowed, _ := m.policy.Get("output.allow_profile_override", true).(bool); allowed {
			return current.FormatPreference
		}
	}
	if m.policy != nil {
		if def, ok := m.policy.Get("output.default_format", FormatConversational).(string); ok {
			return def
		}
	}
	return FormatConversational
}

// PipelineContext assembles the profile view for a pipeline run.
func (m *Manager) PipelineContext() Context {
	current := m.Current()
	ctx := Context{
		ReadingLevel: m.EffectiveReadingLevel(),
		Format:       m.EffectiveFormat(),
		Language:     "en",
	}
	if current != nil {
		ctx.HasProfile = true
		ctx.ProfileID = current.ProfileID
		if current.Language != "" {
			ctx.Language = current.Language
		}
	}
	return ctx
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
