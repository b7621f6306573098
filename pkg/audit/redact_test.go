package audit

import (
	"strings"
	"testing"
)

func TestRedactDetails(t *testing.T) {
	long := strings.Repeat("a", 600)

	t.Run("none passes through", func(t *testing.T) {
		in := map[string]any{"query": long}
		out := redactDetails(in, RedactionNone)
		if out["query"] != long {
			t.Error("none level altered the query field")
		}
	})

	t.Run("minimal copies unchanged", func(t *testing.T) {
		in := map[string]any{"query": long, "other": 7}
		out := redactDetails(in, RedactionMinimal)
		if out["query"] != long {
			t.Error("minimal level altered the query field")
		}
		if out["other"] != 7 {
			t.Error("minimal level altered a non-sensitive field")
		}
	})

	t.Run("standard truncates long sensitive fields", func(t *testing.T) {
		in := map[string]any{"query": long, "response": "short"}
		out := redactDetails(in, RedactionStandard)

		got, ok := out["query"].(string)
		if !ok {
			t.Fatalf("query is %T, want string", out["query"])
		}
		if !strings.HasSuffix(got, "...[truncated]") {
			t.Errorf("query = %q, want truncation marker suffix", got[len(got)-20:])
		}
		if len(got) != MaxDetailLength+len("...[truncated]") {
			t.Errorf("truncated length = %d, want %d", len(got), MaxDetailLength+len("...[truncated]"))
		}
		if out["response"] != "short" {
			t.Error("standard level altered a short field")
		}
	})

	t.Run("strict replaces with hash and length", func(t *testing.T) {
		in := map[string]any{"message": long}
		out := redactDetails(in, RedactionStrict)

		marker, ok := out["message"].(map[string]any)
		if !ok {
			t.Fatalf("message is %T, want map", out["message"])
		}
		if marker["redacted"] != true {
			t.Error("redacted flag not set")
		}
		if marker["length"] != 600 {
			t.Errorf("length = %v, want 600", marker["length"])
		}
		if h, _ := marker["hash"].(string); len(h) != ChecksumLength {
			t.Errorf("hash length = %d, want %d", len(h), ChecksumLength)
		}
	})

	t.Run("input map never mutated", func(t *testing.T) {
		in := map[string]any{"query": long}
		redactDetails(in, RedactionStrict)
		if in["query"] != long {
			t.Error("strict redaction mutated the input map")
		}
	})

	t.Run("non-string sensitive fields untouched", func(t *testing.T) {
		in := map[string]any{"query": 42}
		out := redactDetails(in, RedactionStrict)
		if out["query"] != 42 {
			t.Errorf("query = %v, want 42", out["query"])
		}
	})
}
