// Package pack loads domain capability bundles. A pack directory carries
// a manifest, Worker and Auditor prompt templates, and knowledge
// documents the Worker answers from. Packs are discovered on disk and
// activated only for modules the policy enables.
package pack
