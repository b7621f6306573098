package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"haven-hq/warden/pkg/audit"
	"haven-hq/warden/pkg/llm"
	"haven-hq/warden/pkg/policy"
	"haven-hq/warden/pkg/telemetry/metrics"
)

// AuditFunc receives pipeline stage events for the audit chain.
type AuditFunc func(eventType audit.EventType, details map[string]any)

// Config contains configuration for the pipeline.
type Config struct {
	// Worker drafts responses. Required.
	Worker llm.Generator

	// Auditor reviews drafts. Defaults to the Worker generator with its
	// own prompts when nil.
	Auditor llm.Generator

	// Policy drives the resolver and the auditor-skip rule. When nil the
	// auditor always runs and no overrides are offered.
	Policy *policy.Policy

	// AuditFunc records stage events. Optional.
	AuditFunc AuditFunc

	// Metrics records stage latencies and decisions. Optional.
	Metrics *metrics.PipelineMetrics
}

// Pipeline runs the Worker/Auditor/Resolver flow for one query at a
// time. It is safe for concurrent use.
type Pipeline struct {
	worker  llm.Generator
	auditor llm.Generator
	policy  *policy.Policy
	auditFn AuditFunc
	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
}

// New builds a pipeline from the config.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Worker == nil {
		return nil, fmt.Errorf("pipeline: worker generator is required")
	}
	auditor := cfg.Auditor
	if auditor == nil {
		auditor = cfg.Worker
	}

	return &Pipeline{
		worker:  cfg.Worker,
		auditor: auditor,
		policy:  cfg.Policy,
		auditFn: cfg.AuditFunc,
		metrics: cfg.Metrics,
		logger:  slog.Default().With("component", "pipeline"),
	}, nil
}

func (p *Pipeline) audit(eventType audit.EventType, details map[string]any) {
	if p.auditFn != nil {
		p.auditFn(eventType, details)
	}
}

// Run executes the full flow for a query and returns the final decision.
// The only error condition is a total model failure or a canceled
// context; every softer failure degrades inside the flow instead.
func (p *Pipeline) Run(ctx context.Context, query string, qc *QueryContext) (*Decision, error) {
	if qc == nil {
		qc = &QueryContext{}
	}

	worker, err := p.runWorker(ctx, query, qc)
	if err != nil {
		return nil, err
	}

	p.audit(audit.EventWorkerComplete, map[string]any{
		"query":          truncate(query, 200),
		"confidence":     worker.Confidence,
		"citation_count": len(worker.Citations),
	})

	if p.skipAuditor(worker) {
		p.metrics.RecordAuditorSkip()
		p.audit(audit.EventAuditorSkipped, map[string]any{
			"reason":     "policy does not require auditor and confidence is high",
			"confidence": worker.Confidence,
		})
		decision := &Decision{
			Action:     ActionSend,
			Response:   worker.Response,
			Caveats:    worker.Caveats,
			AuditNotes: "Auditor skipped per policy (high confidence)",
		}
		p.metrics.RecordDecision(string(decision.Action))
		return decision, nil
	}

	review := p.runAuditor(ctx, query, worker, qc)

	flags := make([]string, 0, len(review.Flags))
	for _, f := range review.Flags {
		flags = append(flags, string(f))
	}
	p.audit(audit.EventAuditorComplete, map[string]any{
		"verdict":    string(review.Verdict),
		"flags":      flags,
		"risk_level": string(review.RiskLevel),
	})

	decision := p.resolve(worker, review)

	p.audit(audit.EventResolverDecision, map[string]any{
		"action":             string(decision.Action),
		"override_available": decision.OverrideAvailable,
	})
	p.metrics.RecordDecision(string(decision.Action))

	return decision, nil
}

// skipAuditor applies the skip rule: the policy must not require an
// auditor and the worker's confidence must exceed the configured bar.
// Confidence exactly at the bar still gets reviewed.
func (p *Pipeline) skipAuditor(worker *WorkerOutput) bool {
	if p.policy == nil || p.policy.RequiresAuditor() {
		return false
	}
	return worker.Confidence > p.policy.SkipAuditorConfidence()
}

// runWorker drafts a response. When structured output cannot be parsed
// the raw text is kept with lowered confidence so the auditor still sees
// something reviewable.
func (p *Pipeline) runWorker(ctx context.Context, query string, qc *QueryContext) (*WorkerOutput, error) {
	start := time.Now()
	defer func() {
		p.metrics.ObserveStage("worker", time.Since(start))
	}()

	prompt := workerPrompt(query, qc)
	system := WorkerSystemPrompt(qc)

	result, err := p.worker.GenerateJSON(ctx, prompt, llm.Options{System: system, Temperature: 0.7})
	if err == nil {
		if out, ok := parseWorker(result); ok {
			return out, nil
		}
	}

	// Structured output failed; fall back to plain text generation.
	p.metrics.RecordFallback("worker")
	p.logger.Warn("worker structured output failed, falling back to plain generation",
		"error", err,
	)

	raw, genErr := p.worker.Generate(ctx, prompt, llm.Options{System: system})
	if genErr != nil {
		return nil, fmt.Errorf("pipeline: worker failed: %w", genErr)
	}
	return &WorkerOutput{
		Response:   raw,
		Confidence: 0.5,
		Reasoning:  "Fallback: could not parse structured output",
	}, nil
}

// runAuditor reviews the draft. Any failure produces a conservative
// review that forces a caveated revision rather than an approval.
func (p *Pipeline) runAuditor(ctx context.Context, query string, worker *WorkerOutput, qc *QueryContext) *AuditorOutput {
	start := time.Now()
	defer func() {
		p.metrics.ObserveStage("auditor", time.Since(start))
	}()

	prompt := auditorPrompt(query, worker, qc)
	system := AuditorSystemPrompt(qc)

	result, err := p.auditor.GenerateJSON(ctx, prompt, llm.Options{System: system, Temperature: 0.3})
	if err == nil {
		if out, ok := parseAuditor(result); ok {
			return out
		}
		err = fmt.Errorf("unusable auditor output")
	}

	p.metrics.RecordFallback("auditor")
	p.logger.Warn("auditor failed, applying conservative fallback", "error", err)

	return &AuditorOutput{
		Verdict:   VerdictRevise,
		Flags:     []Flag{FlagConfidence},
		Reasoning: fmt.Sprintf("Auditor error: %v. Flagging for review.", err),
		RiskLevel: RiskMedium,
	}
}

// resolve is the deterministic decision table. It is policy-driven, not
// model-driven.
func (p *Pipeline) resolve(worker *WorkerOutput, review *AuditorOutput) *Decision {
	// Critical safety issues are always rejected, whatever the verdict.
	if review.HasFlag(FlagHarmful) || review.RiskLevel == RiskCritical {
		return p.rejectDecision(worker, refusalHarmful, review, scopeSafetyCritical)
	}

	switch review.Verdict {
	case VerdictApprove:
		return &Decision{
			Action:     ActionSend,
			Response:   worker.Response,
			Caveats:    worker.Caveats,
			AuditNotes: "Approved by auditor",
		}

	case VerdictRevise:
		if review.SuggestedRevision != "" {
			return &Decision{
				Action:     ActionSendWithCaveat,
				Response:   review.SuggestedRevision,
				Caveats:    append(append([]string{}, worker.Caveats...), "Note: "+review.Reasoning),
				AuditNotes: "Revised: " + review.Reasoning,
			}
		}
		return &Decision{
			Action:     ActionSendWithCaveat,
			Response:   worker.Response,
			Caveats:    append(append([]string{}, worker.Caveats...), "Note: This response may have limitations. "+review.Reasoning),
			AuditNotes: "Sent with caveat: " + review.Reasoning,
		}

	case VerdictReject:
		return p.rejectDecision(worker, refusalRejected, review, scopeSafetyOverride)

	case VerdictEscalate:
		return &Decision{
			Action:     ActionEscalate,
			Response:   refusalEscalate,
			AuditNotes: "Escalated: " + review.Reasoning,
		}
	}

	return &Decision{
		Action:     ActionSendWithCaveat,
		Response:   worker.Response,
		Caveats:    []string{"This response has not been fully verified."},
		AuditNotes: "Fallback decision",
	}
}

func (p *Pipeline) rejectDecision(worker *WorkerOutput, refusal string, review *AuditorOutput, scope string) *Decision {
	decision := &Decision{
		Action:     ActionReject,
		Response:   refusal,
		AuditNotes: "Rejected: " + review.Reasoning,
	}
	if p.canOverride() {
		decision.OverrideAvailable = true
		decision.OverrideScope = scope
		decision.WithheldResponse = worker.Response
	}
	return decision
}

// canOverride reports whether the policy offers a safety override path.
func (p *Pipeline) canOverride() bool {
	if p.policy == nil {
		return false
	}
	return p.policy.CanOverrideSafety().Allowed
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
