package profile

import (
	"time"
)

// Output format preferences.
const (
	FormatConversational = "conversational"
	FormatStructured     = "structured"
	FormatBulletPoints   = "bullet_points"
	FormatStepByStep     = "step_by_step"
	FormatBrief          = "brief"
	FormatDetailed       = "detailed"
)

var knownFormats = []string{
	FormatConversational, FormatStructured, FormatBulletPoints,
	FormatStepByStep, FormatBrief, FormatDetailed,
}

var knownReadingLevels = []string{"child", "teen", "general", "technical", "expert"}

// Envelope is the profile payload. It shapes output only.
type Envelope struct {
	// Identity, optional, used for audit correlation.
	ProfileID string `json:"profile_id,omitempty"`
	Name      string `json:"name,omitempty"`

	// Output shaping.
	ReadingLevel     string `json:"reading_level,omitempty"`
	FormatPreference string `json:"format_preference,omitempty"`
	Language         string `json:"language,omitempty"`

	// General permissions. These are not override keys.
	Permissions []string `json:"permissions,omitempty"`

	// Custom carries admin-defined fields the core does not interpret.
	Custom map[string]any `json:"custom,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Expired reports whether the envelope's expiry, if set, has passed. An
// unparsable expiry is treated as no expiry.
func (e *Envelope) Expired(now time.Time) bool {
	if e.ExpiresAt == "" {
		return false
	}
	expires, err := time.Parse(time.RFC3339, e.ExpiresAt)
	if err != nil {
		return false
	}
	return now.After(expires)
}

// HasPermission reports whether the envelope carries a general
// permission. The wildcard grants all.
func (e *Envelope) HasPermission(permission string) bool {
	for _, p := range e.Permissions {
		if p == "*" || p == permission {
			return true
		}
	}
	return false
}

// Validation is the outcome of checking an envelope.
type Validation struct {
	Valid    bool
	Profile  *Envelope
	Err      string
	Warnings []string
}

// Context is the profile view the pipeline consumes.
type Context struct {
	ReadingLevel string
	Format       string
	Language     string
	HasProfile   bool
	ProfileID    string
}
