package pack

import (
	"strings"
)

// Manifest is the pack's metadata, read from manifest.yaml.
type Manifest struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	Version         string   `yaml:"version"`
	Description     string   `yaml:"description"`
	Modes           []string `yaml:"modes"`
	ReadingLevels   []string `yaml:"reading_levels"`
	Languages       []string `yaml:"languages"`
	SafetyProfile   string   `yaml:"safety_profile"`
	RequiresAuditor bool     `yaml:"requires_auditor"`
}

// SupportsMode reports whether the pack declares the mode.
func (m *Manifest) SupportsMode(mode string) bool {
	for _, s := range m.Modes {
		if s == mode {
			return true
		}
	}
	return false
}

// Document is one knowledge document inside a pack.
type Document struct {
	Title   string
	Content string
}

// Pack is a loaded capability bundle.
type Pack struct {
	Manifest Manifest
	Path     string

	workerPrompt  string
	auditorPrompt string
	documents     []Document
}

// ID returns the manifest ID.
func (p *Pack) ID() string { return p.Manifest.ID }

// Name returns the human-readable pack name.
func (p *Pack) Name() string { return p.Manifest.Name }

// Documents returns the pack's knowledge documents.
func (p *Pack) Documents() []Document { return p.documents }

// WorkerSystem renders the pack's Worker prompt for the context.
func (p *Pack) WorkerSystem(mode, readingLevel string) string {
	return p.render(p.workerPrompt, mode, readingLevel)
}

// AuditorSystem renders the pack's Auditor prompt for the context.
func (p *Pack) AuditorSystem(mode, readingLevel string) string {
	return p.render(p.auditorPrompt, mode, readingLevel)
}

func (p *Pack) render(tmpl, mode, readingLevel string) string {
	return strings.NewReplacer(
		"{module}", p.Manifest.Name,
		"{mode}", mode,
		"{reading_level}", readingLevel,
		"{safety_profile}", p.Manifest.SafetyProfile,
	).Replace(tmpl)
}

// maxDocChars bounds how much of one document enters the prompt.
const maxDocChars = 2000

// KnowledgeContext assembles the knowledge block for a query. Retrieval
// is positional for now: the first maxDocs documents, each truncated.
// TODO: rank documents by similarity to the query once an embedding
// index lands in the pack format.
func (p *Pack) KnowledgeContext(query string, maxDocs int) string {
	if len(p.documents) == 0 {
		return "No specific knowledge loaded for this module."
	}
	if maxDocs <= 0 {
		maxDocs = 5
	}

	var parts []string
	for i, doc := range p.documents {
		if i >= maxDocs {
			break
		}
		content := doc.Content
		if len(content) > maxDocChars {
			content = content[:maxDocChars]
		}
		parts = append(parts, "### "+doc.Title+"\n"+content)
	}
	return strings.Join(parts, "\n\n")
}
