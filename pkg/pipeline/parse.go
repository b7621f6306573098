package pipeline

// parseWorker converts a model's structured output into a WorkerOutput.
// It reports false when the output has no usable response text, which
// sends the caller down the plain-text fallback path.
func parseWorker(result map[string]any) (*WorkerOutput, bool) {
	response, _ := result["response"].(string)
	if response == "" {
		return nil, false
	}

	out := &WorkerOutput{
		Response:   response,
		Confidence: floatField(result, "confidence", 0.5),
		Reasoning:  stringField(result, "reasoning"),
		Caveats:    stringList(result["caveats"]),
	}

	if rawCitations, ok := result["citations"].([]any); ok {
		for _, raw := range rawCitations {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			out.Citations = append(out.Citations, Citation{
				Source:    stringField(m, "source"),
				Quote:     stringField(m, "quote"),
				Relevance: stringField(m, "relevance"),
			})
		}
	}
	return out, true
}

// parseAuditor converts a model's structured review into an
// AuditorOutput. A missing or unknown verdict reports false so the
// caller applies the conservative fallback; unknown flags are dropped
// and an unknown risk level degrades to low.
func parseAuditor(result map[string]any) (*AuditorOutput, bool) {
	verdict := Verdict(stringField(result, "verdict"))
	switch verdict {
	case VerdictApprove, VerdictRevise, VerdictReject, VerdictEscalate:
	default:
		return nil, false
	}

	out := &AuditorOutput{
		Verdict:           verdict,
		Reasoning:         stringField(result, "reasoning"),
		SuggestedRevision: stringField(result, "suggested_revision"),
		RiskLevel:         parseRiskLevel(stringField(result, "risk_level")),
	}

	for _, raw := range stringList(result["flags"]) {
		if flag := Flag(raw); knownFlags[flag] {
			out.Flags = append(out.Flags, flag)
		}
	}
	return out, true
}

func parseRiskLevel(s string) RiskLevel {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return RiskLevel(s)
	}
	return RiskLow
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func stringList(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
