package keyring

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"haven-hq/warden/pkg/audit"
)

// Registry holds the registered keys and active override sessions. All
// methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	keys     map[string]*Entry
	sessions map[string]*OverrideSession

	sessionTTL time.Duration
	auditFn    AuditFunc
	logger     *slog.Logger
}

// New returns an empty registry with the default session duration.
func New() *Registry {
	return &Registry{
		keys:       map[string]*Entry{},
		sessions:   map[string]*OverrideSession{},
		sessionTTL: DefaultSessionTTL,
		logger:     slog.Default().With("component", "keyring"),
	}
}

// SetAuditFunc installs the audit hook. Pass nil to disable auditing.
func (r *Registry) SetAuditFunc(fn AuditFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auditFn = fn
}

// SetSessionTTL changes the default override session duration.
func (r *Registry) SetSessionTTL(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d > 0 {
		r.sessionTTL = d
	}
}

func (r *Registry) audit(eventType audit.EventType, details map[string]any) {
	if r.auditFn != nil {
		r.auditFn(eventType, details)
	}
}

// LoadFile replaces the registered keys with the contents of a YAML key
// document. Active sessions are not touched.
func (r *Registry) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("keyring: read key file: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("keyring: parse key file: %w", err)
	}
	return r.LoadDocument(&doc)
}

// LoadDocument replaces the registered keys with the document contents.
func (r *Registry) LoadDocument(doc *Document) error {
	keys := make(map[string]*Entry, len(doc.Keys))
	for i := range doc.Keys {
		entry := doc.Keys[i]
		if entry.ID == "" {
			return fmt.Errorf("keyring: key %d has no id", i)
		}
		if entry.Hash == "" {
			return fmt.Errorf("keyring: key %q has no hash", entry.ID)
		}
		keys[entry.ID] = &entry
	}

	r.mu.Lock()
	r.keys = keys
	r.mu.Unlock()

	r.logger.Info("keys loaded", "count", len(keys))
	return nil
}

// HashSecret returns the hex SHA-256 of a plaintext secret, the format
// stored in key documents.
func HashSecret(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// GenerateSecret produces a new random plaintext secret and its hash.
func GenerateSecret() (plaintext, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("keyring: generate secret: %w", err)
	}
	plaintext = base64.RawURLEncoding.EncodeToString(buf)
	return plaintext, HashSecret(plaintext), nil
}

// Validate checks a plaintext secret against the required scope.
//
// The checks run in a fixed order: a matching key that has expired fails
// with ReasonExpired even when its scopes would not cover the request; a
// live key without the scope fails with ReasonInsufficientScope. When no
// key matches the secret, the result carries no key identity at all.
func (r *Registry) Validate(plaintext, requiredScope string) Validation {
	hash := HashSecret(plaintext)
	now := time.Now()

	r.mu.RLock()
	var match *Entry
	for _, entry := range r.keys {
		if entry.Hash == hash {
			match = entry
			break
		}
	}
	r.mu.RUnlock()

	if match == nil {
		r.audit(audit.EventKeyValidationFailed, map[string]any{
			"reason":         ReasonNoMatch,
			"required_scope": requiredScope,
		})
		return Validation{Valid: false, Reason: ReasonNoMatch}
	}

	if match.Expired(now) {
		r.audit(audit.EventKeyValidationFailed, map[string]any{
			"key_id":         match.ID,
			"reason":         ReasonExpired,
			"required_scope": requiredScope,
		})
		return Validation{Valid: false, KeyID: match.ID, Reason: ReasonExpired}
	}

	if !match.HasScope(requiredScope) {
		r.audit(audit.EventKeyValidationFailed, map[string]any{
			"key_id":           match.ID,
			"reason":           ReasonInsufficientScope,
			"required_scope":   requiredScope,
			"available_scopes": match.Scopes,
		})
		return Validation{
			Valid:  false,
			KeyID:  match.ID,
			Scopes: match.Scopes,
			Reason: ReasonInsufficientScope,
		}
	}

	r.audit(audit.EventKeyValidationSuccess, map[string]any{
		"key_id": match.ID,
		"scope":  requiredScope,
	})
	return Validation{Valid: true, KeyID: match.ID, Scopes: match.Scopes}
}

// CreateOverrideSession validates the secret for the scope and, on
// success, opens a time-boxed session. A negative ttl uses the registry
// default; a zero ttl grants a session that is already expired, which
// CheckSession reports inactive immediately.
func (r *Registry) CreateOverrideSession(plaintext, scope string, action map[string]any, ttl time.Duration) (*OverrideSession, error) {
	validation := r.Validate(plaintext, scope)
	if !validation.Valid {
		return nil, fmt.Errorf("keyring: %s", validation.Reason)
	}

	r.mu.Lock()
	if ttl < 0 {
		ttl = r.sessionTTL
	}
	now := time.Now()
	session := &OverrideSession{
		ID:        uuid.NewString(),
		KeyID:     validation.KeyID,
		Scope:     scope,
		GrantedAt: now,
		ExpiresAt: now.Add(ttl),
		Action:    action,
	}
	r.sessions[session.ID] = session
	r.mu.Unlock()

	r.audit(audit.EventOverrideSessionCreated, map[string]any{
		"session_id": session.ID,
		"key_id":     session.KeyID,
		"scope":      scope,
		"action":     action,
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
	return session, nil
}

// CheckSession reports whether a session is still active and covers the
// scope. An expired session is evicted on first sight.
func (r *Registry) CheckSession(sessionID, scope string) bool {
	now := time.Now()

	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if ok && !session.Active(now) {
		delete(r.sessions, sessionID)
		r.mu.Unlock()
		r.audit(audit.EventOverrideSessionExpired, map[string]any{
			"session_id": sessionID,
		})
		return false
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	return session.Scope == scope || session.Scope == ScopeAll
}

// RevokeSession removes a session immediately. It reports whether the
// session existed.
func (r *Registry) RevokeSession(sessionID string) bool {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.audit(audit.EventOverrideSessionRevoked, map[string]any{
		"session_id": sessionID,
		"key_id":     session.KeyID,
		"scope":      session.Scope,
	})
	return true
}

// CleanupExpired removes every expired session and returns how many were
// removed.
func (r *Registry) CleanupExpired() int {
	now := time.Now()

	r.mu.Lock()
	var expired []string
	for id, session := range r.sessions {
		if !session.Active(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if len(expired) > 0 {
		r.audit(audit.EventSessionsCleanup, map[string]any{
			"count": len(expired),
		})
	}
	return len(expired)
}

// ActiveSessions returns the number of live sessions without evicting
// expired ones.
func (r *Registry) ActiveSessions() int {
	now := time.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, session := range r.sessions {
		if session.Active(now) {
			n++
		}
	}
	return n
}

// ListKeys returns every registered key without its hash.
func (r *Registry) ListKeys() []KeyInfo {
	now := time.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]KeyInfo, 0, len(r.keys))
	for _, entry := range r.keys {
		infos = append(infos, KeyInfo{
			ID:          entry.ID,
			Scopes:      entry.Scopes,
			Description: entry.Description,
			Expired:     entry.Expired(now),
		})
	}
	return infos
}

// Template returns a starter key document for operators setting up a new
// appliance.
func Template() *Document {
	return &Document{
		Keys: []Entry{
			{
				ID:          "example-master",
				Hash:        "<generate with warden keys generate>",
				Scopes:      []string{ScopeAll},
				Description: "Master override key",
			},
			{
				ID:          "example-mode",
				Hash:        "<hash>",
				Scopes:      []string{ScopeModeControl},
				Description: "Mode switching only",
			},
			{
				ID:          "example-safety",
				Hash:        "<hash>",
				Scopes:      []string{ScopeSafetyOverride},
				Description: "Safety override only",
			},
		},
	}
}
