package pack

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"haven-hq/warden/pkg/audit"
)

// Pack directory layout.
const (
	manifestFile      = "manifest.yaml"
	workerPromptFile  = "prompts/worker.txt"
	auditorPromptFile = "prompts/auditor.txt"
	knowledgeDir      = "knowledge"
)

// AuditFunc receives pack lifecycle events.
type AuditFunc func(eventType audit.EventType, details map[string]any)

// Loader discovers packs under a root directory and tracks which are
// loaded into memory.
type Loader struct {
	root    string
	mu      sync.RWMutex
	loaded  map[string]*Pack
	auditFn AuditFunc
	logger  *slog.Logger
}

// NewLoader returns a loader over the given packs directory.
func NewLoader(root string) *Loader {
	return &Loader{
		root:   root,
		loaded: map[string]*Pack{},
		logger: slog.Default().With("component", "pack.loader"),
	}
}

// SetAuditFunc installs the audit hook.
func (l *Loader) SetAuditFunc(fn AuditFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.auditFn = fn
}

func (l *Loader) audit(eventType audit.EventType, details map[string]any) {
	l.mu.RLock()
	fn := l.auditFn
	l.mu.RUnlock()
	if fn != nil {
		fn(eventType, details)
	}
}

// Discover lists the manifests of every pack under the root, loaded or
// not, sorted by ID.
func (l *Loader) Discover() ([]Manifest, error) {
	entries, err := os.ReadDir(l.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pack: read packs directory: %w", err)
	}

	var manifests []Manifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifest, err := readManifest(filepath.Join(l.root, entry.Name(), manifestFile))
		if err != nil {
			l.logger.Warn("skipping pack with unreadable manifest",
				"dir", entry.Name(),
				"error", err,
			)
			continue
		}
		manifests = append(manifests, *manifest)
	}

	sort.Slice(manifests, func(i, j int) bool { return manifests[i].ID < manifests[j].ID })
	return manifests, nil
}

// Load reads a pack into memory by ID and marks it loaded.
func (l *Loader) Load(id string) (*Pack, error) {
	dir, err := l.findPackDir(id)
	if err != nil {
		return nil, err
	}

	manifest, err := readManifest(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}

	p := &Pack{Manifest: *manifest, Path: dir}
	p.workerPrompt = readOptionalFile(filepath.Join(dir, workerPromptFile))
	p.auditorPrompt = readOptionalFile(filepath.Join(dir, auditorPromptFile))

	docs, err := readKnowledge(filepath.Join(dir, knowledgeDir))
	if err != nil {
		return nil, err
	}
	p.documents = docs

	l.mu.Lock()
	l.loaded[p.ID()] = p
	l.mu.Unlock()

	l.audit(audit.EventPackLoaded, map[string]any{
		"pack_id":        p.ID(),
		"version":        p.Manifest.Version,
		"document_count": len(docs),
	})
	l.logger.Info("pack loaded", "pack_id", p.ID(), "documents", len(docs))
	return p, nil
}

// Unload drops a loaded pack. It reports whether the pack was loaded.
func (l *Loader) Unload(id string) bool {
	l.mu.Lock()
	_, ok := l.loaded[id]
	if ok {
		delete(l.loaded, id)
	}
	l.mu.Unlock()

	if ok {
		l.audit(audit.EventPackUnloaded, map[string]any{"pack_id": id})
	}
	return ok
}

// Get returns a loaded pack by ID.
func (l *Loader) Get(id string) (*Pack, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.loaded[id]
	return p, ok
}

// Loaded returns the IDs of every loaded pack, sorted.
func (l *Loader) Loaded() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.loaded))
	for id := range l.loaded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (l *Loader) findPackDir(id string) (string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return "", fmt.Errorf("pack: read packs directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(l.root, entry.Name())
		manifest, err := readManifest(filepath.Join(dir, manifestFile))
		if err != nil {
			continue
		}
		if manifest.ID == id {
			return dir, nil
		}
	}
	return "", fmt.Errorf("pack: pack %q not found under %s", id, l.root)
}

func readManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pack: read manifest: %w", err)
	}

	manifest := &Manifest{
		Version:         "1.0.0",
		Modes:           []string{"education"},
		ReadingLevels:   []string{"general"},
		Languages:       []string{"en"},
		SafetyProfile:   "standard",
		RequiresAuditor: true,
	}
	if err := yaml.Unmarshal(raw, manifest); err != nil {
		return nil, fmt.Errorf("pack: parse manifest: %w", err)
	}
	if manifest.ID == "" {
		return nil, fmt.Errorf("pack: manifest %s has no id", path)
	}
	if manifest.Name == "" {
		manifest.Name = manifest.ID
	}
	return manifest, nil
}

func readOptionalFile(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(raw)
}

// readKnowledge loads every markdown and text document in the knowledge
// directory. The first heading line becomes the title, the filename
// otherwise.
func readKnowledge(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pack: read knowledge directory: %w", err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".md" && ext != ".txt" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("pack: read knowledge document: %w", err)
		}
		content := string(raw)
		docs = append(docs, Document{
			Title:   documentTitle(entry.Name(), content),
			Content: content,
		})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Title < docs[j].Title })
	return docs, nil
}

func documentTitle(filename, content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
		if line != "" {
			break
		}
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
