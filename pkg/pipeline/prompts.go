package pipeline

import (
	"encoding/json"
	"fmt"
)

// QueryContext carries the per-query inputs the prompts are built from.
type QueryContext struct {
	SessionID     string
	Module        string
	Mode          string
	ReadingLevel  string
	SafetyProfile string

	// Knowledge is the retrieved module content the Worker answers from.
	Knowledge string
}

func (qc *QueryContext) module() string {
	if qc.Module == "" {
		return "general"
	}
	return qc.Module
}

func (qc *QueryContext) mode() string {
	if qc.Mode == "" {
		return "education"
	}
	return qc.Mode
}

func (qc *QueryContext) readingLevel() string {
	if qc.ReadingLevel == "" {
		return "general"
	}
	return qc.ReadingLevel
}

func (qc *QueryContext) safetyProfile() string {
	if qc.SafetyProfile == "" {
		return "standard"
	}
	return qc.SafetyProfile
}

func (qc *QueryContext) knowledge() string {
	if qc.Knowledge == "" {
		return "No specific knowledge loaded."
	}
	return qc.Knowledge
}

// WorkerSystemPrompt builds the Worker's standing instructions.
func WorkerSystemPrompt(qc *QueryContext) string {
	return fmt.Sprintf(`You are a knowledgeable assistant operating inside an offline expert appliance.

## Your Role
You are the WORKER model. Your job is to provide helpful, accurate responses to user queries.

## Current Module: %s
## Current Mode: %s

## Guidelines
1. Stay within the scope of the active module
2. Cite sources when making factual claims
3. Be honest about uncertainty and set confidence appropriately
4. Adapt your language to the user's reading level: %s
5. Include relevant caveats for important limitations

## Safety
- Never provide information that could cause serious harm
- For medical or emergency topics, always recommend professional consultation
- Flag anything you are unsure about

## Output Format
Always respond with valid JSON containing: response, citations, confidence, reasoning, caveats`,
		qc.module(), qc.mode(), qc.readingLevel())
}

// AuditorSystemPrompt builds the Auditor's standing instructions.
func AuditorSystemPrompt(qc *QueryContext) string {
	return fmt.Sprintf(`You are a careful reviewer operating inside an offline expert appliance.

## Your Role
You are the AUDITOR model. Your job is to review Worker responses for safety, accuracy, and appropriateness.

## Current Module: %s
## Current Mode: %s
## Safety Profile: %s

## Your Task
Review each Worker response and assess:

1. SAFETY: could this response cause harm? Physical, psychological, financial?
2. ACCURACY: is the information factually correct? Are claims supported?
3. SCOPE: is this within the module's domain? Should it be referred elsewhere?
4. CONFIDENCE: is the Worker's confidence level appropriate?
5. CITATIONS: are sources cited? Are they relevant and reliable?
6. READING LEVEL: does the response match the user's expected level?

## Verdicts
- approve: response is safe, accurate, and appropriate
- revise: minor issues that can be fixed; provide suggested_revision
- reject: significant issues; cannot be sent as-is
- escalate: beyond local capability; needs a human expert

## Be Conservative
When in doubt, flag for review. It is better to ask for clarification than to let harmful information through.

## Output Format
Always respond with valid JSON containing: verdict, flags, reasoning, suggested_revision (if applicable), risk_level`,
		qc.module(), qc.mode(), qc.safetyProfile())
}

// workerPrompt builds the per-query prompt for the Worker.
func workerPrompt(query string, qc *QueryContext) string {
	return fmt.Sprintf(`## User Query
%s

## Context
- Module: %s
- Mode: %s
- Reading Level: %s

## Knowledge Context
%s

## Instructions
Respond to the user's query. Output valid JSON matching this structure:
{
    "response": "Your response to the user",
    "citations": [
        {"source": "document name", "quote": "relevant quote", "relevance": "why relevant"}
    ],
    "confidence": 0.85,
    "reasoning": "Brief explanation of your reasoning",
    "caveats": ["Any important caveats or limitations"]
}`,
		query, qc.module(), qc.mode(), qc.readingLevel(), qc.knowledge())
}

// auditorPrompt builds the per-query prompt for the Auditor, embedding
// the Worker's full structured output.
func auditorPrompt(query string, worker *WorkerOutput, qc *QueryContext) string {
	workerJSON, err := json.MarshalIndent(worker, "", "  ")
	if err != nil {
		workerJSON = []byte(worker.Response)
	}

	return fmt.Sprintf(`## Original Query
%s

## Worker Response
%s

## Context
- Module: %s
- Mode: %s
- Reading Level: %s
- Safety Profile: %s

## Your Task
Review the Worker's response for:
1. SAFETY: could this cause harm?
2. ACCURACY: is the information correct?
3. SCOPE: is this within the module's domain?
4. CONFIDENCE: is the confidence level appropriate?
5. CITATIONS: are sources properly cited?
6. READING LEVEL: does it match the user's level?

Output valid JSON:
{
    "verdict": "approve|revise|reject|escalate",
    "flags": ["safety", "accuracy", ...],
    "reasoning": "Detailed explanation of your review",
    "suggested_revision": "If verdict is 'revise', provide the revision here",
    "risk_level": "low|medium|high|critical"
}`,
		query, workerJSON, qc.module(), qc.mode(), qc.readingLevel(), qc.safetyProfile())
}
