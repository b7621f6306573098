// Package policy loads, validates, and evaluates the declarative policy
// document that governs the decision core.
//
// Every capability is a toggle set by an operator before deployment. The
// engine defines what CAN be configured, not what should be: it validates
// a document against a typed schema, collecting every violation instead
// of stopping at the first, and answers capability questions (may the
// mode switch, may safety be overridden, which redaction level applies)
// without ever mutating the answers' inputs mid-evaluation.
package policy
