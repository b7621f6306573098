// Package llm abstracts the local language model backend behind a small
// generator interface. The decision core never talks to a model server
// directly; it asks a Generator for text or structured JSON and treats
// backend failures as ordinary errors to degrade from, never as a reason
// to fail open.
package llm
