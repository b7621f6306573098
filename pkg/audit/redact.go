package audit

import (
	"crypto/sha256"
	"encoding/hex"
)

// RedactionLevel controls how much of the sensitive detail fields survives
// into the written log.
type RedactionLevel string

const (
	// RedactionNone writes details through unchanged.
	RedactionNone RedactionLevel = "none"

	// RedactionMinimal copies details without altering the sensitive
	// fields. Reserved for deployments that want the copy semantics
	// without truncation.
	RedactionMinimal RedactionLevel = "minimal"

	// RedactionStandard truncates long sensitive text fields.
	RedactionStandard RedactionLevel = "standard"

	// RedactionStrict replaces sensitive text fields entirely with a
	// redaction marker carrying a content hash and the original length.
	RedactionStrict RedactionLevel = "strict"
)

const (
	// MaxDetailLength is the length at which sensitive text fields are
	// truncated under standard redaction.
	MaxDetailLength = 500

	// truncationMarker is appended to truncated fields.
	truncationMarker = "...[truncated]"
)

// sensitiveFields are the detail keys subject to truncation and hashing.
var sensitiveFields = []string{"query", "response", "message"}

// redactDetails applies the configured redaction level to a copy of the
// caller-supplied details. The input map is never modified.
func redactDetails(details map[string]any, level RedactionLevel) map[string]any {
	if level == RedactionNone {
		return details
	}

	redacted := make(map[string]any, len(details))
	for k, v := range details {
		redacted[k] = v
	}

	switch level {
	case RedactionStandard:
		for _, field := range sensitiveFields {
			if s, ok := redacted[field].(string); ok && len(s) > MaxDetailLength {
				redacted[field] = s[:MaxDetailLength] + truncationMarker
			}
		}
	case RedactionStrict:
		for _, field := range sensitiveFields {
			if s, ok := redacted[field].(string); ok {
				redacted[field] = map[string]any{
					"redacted": true,
					"hash":     hashContent(s),
					"length":   len(s),
				}
			}
		}
	}

	return redacted
}

// hashContent returns the truncated hex SHA-256 of a string, matching the
// checksum width used by the chain.
func hashContent(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:ChecksumLength]
}
