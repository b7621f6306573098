package pipeline

import "testing"

func TestParseWorker(t *testing.T) {
	out, ok := parseWorker(map[string]any{
		"response":   "answer",
		"confidence": 0.7,
		"citations": []any{
			map[string]any{"source": "manual", "quote": "q", "relevance": "r"},
			"not a citation object",
		},
		"caveats": []any{"one", 2, "three"},
	})
	if !ok {
		t.Fatal("parseWorker() ok = false")
	}
	if out.Confidence != 0.7 {
		t.Errorf("Confidence = %v", out.Confidence)
	}
	if len(out.Citations) != 1 || out.Citations[0].Source != "manual" {
		t.Errorf("Citations = %+v", out.Citations)
	}
	if len(out.Caveats) != 2 {
		t.Errorf("Caveats = %v, want non-strings dropped", out.Caveats)
	}
}

func TestParseWorkerMissingResponse(t *testing.T) {
	if _, ok := parseWorker(map[string]any{"error": "nope"}); ok {
		t.Error("parseWorker() ok = true for sentinel")
	}
	if _, ok := parseWorker(map[string]any{"response": ""}); ok {
		t.Error("parseWorker() ok = true for empty response")
	}
}

func TestParseWorkerDefaultConfidence(t *testing.T) {
	out, ok := parseWorker(map[string]any{"response": "answer"})
	if !ok || out.Confidence != 0.5 {
		t.Errorf("parseWorker() = %+v, %v, want confidence 0.5", out, ok)
	}
}

func TestParseAuditor(t *testing.T) {
	out, ok := parseAuditor(map[string]any{
		"verdict":    "revise",
		"flags":      []any{"safety", "made-up-flag", "citation"},
		"reasoning":  "why",
		"risk_level": "volcanic",
	})
	if !ok {
		t.Fatal("parseAuditor() ok = false")
	}
	if len(out.Flags) != 2 {
		t.Errorf("Flags = %v, want unknown flags dropped", out.Flags)
	}
	if out.RiskLevel != RiskLow {
		t.Errorf("RiskLevel = %q, want low for unknown value", out.RiskLevel)
	}
}

func TestParseAuditorBadVerdict(t *testing.T) {
	if _, ok := parseAuditor(map[string]any{"verdict": "maybe"}); ok {
		t.Error("parseAuditor() ok = true for unknown verdict")
	}
	if _, ok := parseAuditor(map[string]any{"reasoning": "no verdict"}); ok {
		t.Error("parseAuditor() ok = true for missing verdict")
	}
}
