package pipeline

// Verdict is the Auditor's judgment of a worker response.
type Verdict string

const (
	// VerdictApprove means the response is good as written.
	VerdictApprove Verdict = "approve"
	// VerdictRevise means minor issues that a revision can fix.
	VerdictRevise Verdict = "revise"
	// VerdictReject means the response cannot be sent as-is.
	VerdictReject Verdict = "reject"
	// VerdictEscalate means the question is beyond local capability.
	VerdictEscalate Verdict = "escalate"
)

// Flag marks a specific issue the Auditor found.
type Flag string

const (
	FlagSafety       Flag = "safety"
	FlagAccuracy     Flag = "accuracy"
	FlagScope        Flag = "scope"
	FlagConfidence   Flag = "confidence"
	FlagCitation     Flag = "citation"
	FlagReadingLevel Flag = "reading_level"
	FlagHarmful      Flag = "harmful"
)

var knownFlags = map[Flag]bool{
	FlagSafety: true, FlagAccuracy: true, FlagScope: true,
	FlagConfidence: true, FlagCitation: true, FlagReadingLevel: true,
	FlagHarmful: true,
}

// RiskLevel grades how dangerous the Auditor considers the response.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Action is the Resolver's final disposition.
type Action string

const (
	ActionSend           Action = "send"
	ActionSendWithCaveat Action = "send_with_caveat"
	ActionReject         Action = "reject"
	ActionEscalate       Action = "escalate"
)

// Citation ties a claim in the worker response to its source.
type Citation struct {
	Source    string `json:"source"`
	Quote     string `json:"quote"`
	Relevance string `json:"relevance"`
}

// WorkerOutput is the structured draft from the Worker model.
type WorkerOutput struct {
	Response   string     `json:"response"`
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
	Caveats    []string   `json:"caveats"`
}

// AuditorOutput is the structured review from the Auditor model.
type AuditorOutput struct {
	Verdict           Verdict   `json:"verdict"`
	Flags             []Flag    `json:"flags"`
	Reasoning         string    `json:"reasoning"`
	SuggestedRevision string    `json:"suggested_revision,omitempty"`
	RiskLevel         RiskLevel `json:"risk_level"`
}

// HasFlag reports whether the review carries the flag.
func (a *AuditorOutput) HasFlag(flag Flag) bool {
	for _, f := range a.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Decision is the Resolver's final answer for a query.
type Decision struct {
	Action            Action   `json:"action"`
	Response          string   `json:"response"`
	Caveats           []string `json:"caveats,omitempty"`
	AuditNotes        string   `json:"audit_notes,omitempty"`
	OverrideAvailable bool     `json:"override_available"`
	OverrideScope     string   `json:"override_scope,omitempty"`

	// WithheldResponse carries the rejected draft when an override is
	// available. It is never serialized; a caller may reveal it only
	// after a key with the override scope validates.
	WithheldResponse string `json:"-"`
}

// Refusal texts for rejected and escalated decisions.
const (
	refusalHarmful  = "I'm not able to help with that request."
	refusalRejected = "I'm not confident I can answer that accurately. Please consult a qualified professional."
	refusalEscalate = "This question is beyond my current capabilities. It should be referred to a human expert."
)

// Override scopes the resolver attaches to rejections.
const (
	scopeSafetyCritical = "safety_critical"
	scopeSafetyOverride = "safety_override"
)
