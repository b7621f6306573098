package keyring

import (
	"time"

	"haven-hq/warden/pkg/audit"
)

// Well-known capability scopes. Keys may carry any scope string; these are
// the ones the decision core itself checks.
const (
	ScopeAll            = "*"
	ScopeModeControl    = "mode_control"
	ScopeSafetyOverride = "safety_override"
)

// DefaultSessionTTL bounds an override session when the caller does not
// ask for a specific duration.
const DefaultSessionTTL = 15 * time.Minute

// Entry is a registered key. Only the hash of the secret is ever held.
type Entry struct {
	ID          string   `yaml:"id" json:"id"`
	Hash        string   `yaml:"hash" json:"hash"`
	Scopes      []string `yaml:"scopes" json:"scopes"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	CreatedAt   string   `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	ExpiresAt   string   `yaml:"expires_at,omitempty" json:"expires_at,omitempty"`
}

// HasScope reports whether the entry grants the given scope. The wildcard
// scope grants everything.
func (e *Entry) HasScope(scope string) bool {
	for _, s := range e.Scopes {
		if s == ScopeAll || s == scope {
			return true
		}
	}
	return false
}

// Expired reports whether the entry's expiry, if set, has passed. An
// unparsable expiry is treated as no expiry.
func (e *Entry) Expired(now time.Time) bool {
	if e.ExpiresAt == "" {
		return false
	}
	expires, err := time.Parse(time.RFC3339, e.ExpiresAt)
	if err != nil {
		return false
	}
	return now.After(expires)
}

// Document is the on-disk shape of a key configuration file.
type Document struct {
	Keys []Entry `yaml:"keys" json:"keys"`
}

// Validation is the outcome of checking a plaintext key against a
// required scope.
type Validation struct {
	Valid  bool
	KeyID  string
	Scopes []string

	// Reason is set when Valid is false. When no key matches the secret
	// the reason is deliberately generic.
	Reason string
}

// Failure reasons recorded in audit details and Validation.Reason.
const (
	ReasonExpired           = "expired"
	ReasonInsufficientScope = "insufficient_scope"
	ReasonNoMatch           = "invalid key"
)

// OverrideSession is an active, time-boxed authorization grant.
type OverrideSession struct {
	ID        string         `json:"id"`
	KeyID     string         `json:"key_id"`
	Scope     string         `json:"scope"`
	GrantedAt time.Time      `json:"granted_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	Action    map[string]any `json:"action,omitempty"`
}

// Active reports whether the session has not yet expired.
func (s *OverrideSession) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// KeyInfo is the listing view of an entry, with the hash withheld.
type KeyInfo struct {
	ID          string   `json:"id"`
	Scopes      []string `json:"scopes"`
	Description string   `json:"description,omitempty"`
	Expired     bool     `json:"expired"`
}

// AuditFunc receives key and session lifecycle events. It has the same
// shape as (*audit.Log).AppendFunc so a registry wires straight into the
// audit chain.
type AuditFunc func(eventType audit.EventType, details map[string]any)
