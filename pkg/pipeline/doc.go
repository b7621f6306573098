// Package pipeline orchestrates the Worker/Auditor/Resolver flow.
//
// The Worker model drafts a cited response, the Auditor model reviews it
// for safety and accuracy, and the Resolver applies a deterministic,
// policy-driven decision table to choose the final action. The Resolver
// is not a model; given the same worker output, auditor output, and
// policy, it always returns the same decision. Every stage degrades
// conservatively: a failed model call lowers confidence or forces a
// review, it never lets a response through unchecked.
package pipeline
