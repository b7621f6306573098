package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GitTransportConfig configures a git-backed bundle channel. The
// operating organization pushes signed bundle files to a repository;
// devices pull and apply them. The checkout is read-only: devices never
// push, so a compromised device cannot poison the channel.
type GitTransportConfig struct {
	// URL of the bundle repository. Local paths work for air-gapped
	// deployments that sync over removable media.
	URL string

	// Branch to track. Defaults to main.
	Branch string

	// Dir is the directory inside the repository holding bundle JSON
	// files. Defaults to "bundles".
	Dir string

	// LocalPath is where the checkout lives. Defaults to a directory
	// under the system temp dir.
	LocalPath string

	// Username and Token enable HTTP basic auth when set.
	Username string
	Token    string

	// Timeout bounds clone and pull operations.
	Timeout time.Duration
}

// GitTransport delivers bundles from a git repository. Poll pulls the
// tracked branch and hands out any bundle file it has not delivered
// yet, lowest sequence number first.
type GitTransport struct {
	cfg GitTransportConfig

	mu        sync.Mutex
	repo      *gogit.Repository
	pending   []*Bundle
	delivered map[string]bool
	logger    *slog.Logger
}

// NewGitTransport returns a transport for the repository. The clone
// happens lazily on first use so construction never touches the
// network.
func NewGitTransport(cfg GitTransportConfig) (*GitTransport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("remote: git transport needs a repository URL")
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.Dir == "" {
		cfg.Dir = "bundles"
	}
	if cfg.LocalPath == "" {
		cfg.LocalPath = filepath.Join(os.TempDir(), "warden-bundles")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &GitTransport{
		cfg:       cfg,
		delivered: make(map[string]bool),
		logger:    slog.Default().With("component", "remote.git"),
	}, nil
}

func (t *GitTransport) auth() *http.BasicAuth {
	if t.cfg.Token == "" {
		return nil
	}
	username := t.cfg.Username
	if username == "" {
		username = "token"
	}
	return &http.BasicAuth{Username: username, Password: t.cfg.Token}
}

// ensureRepo opens the existing checkout or clones a fresh one. Callers
// hold the lock.
func (t *GitTransport) ensureRepo(ctx context.Context) error {
	if t.repo != nil {
		return nil
	}

	if _, err := os.Stat(filepath.Join(t.cfg.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(t.cfg.LocalPath)
		if err != nil {
			return fmt.Errorf("remote: open bundle checkout: %w", err)
		}
		t.repo = repo
		return nil
	}

	cloneCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, t.cfg.LocalPath, false, &gogit.CloneOptions{
		URL:           t.cfg.URL,
		ReferenceName: plumbing.NewBranchReferenceName(t.cfg.Branch),
		SingleBranch:  true,
		Auth:          t.auth(),
	})
	if err != nil {
		return fmt.Errorf("remote: clone bundle repository: %w", err)
	}
	t.repo = repo
	return nil
}

// pull fetches the tracked branch. Already-up-to-date is not an error.
// Callers hold the lock.
func (t *GitTransport) pull(ctx context.Context) error {
	worktree, err := t.repo.Worktree()
	if err != nil {
		return fmt.Errorf("remote: bundle worktree: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName: "origin",
		Auth:       t.auth(),
	})
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		return fmt.Errorf("remote: pull bundles: %w", err)
	}
	return nil
}

// scan reads every bundle file under the bundle directory and queues
// the ones not yet delivered, ordered by sequence number. Callers hold
// the lock.
func (t *GitTransport) scan() error {
	dir := filepath.Join(t.cfg.LocalPath, t.cfg.Dir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remote: read bundle directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("remote: read bundle %s: %w", entry.Name(), err)
		}
		var bundle Bundle
		if err := json.Unmarshal(raw, &bundle); err != nil {
			t.logger.Warn("skipping unparsable bundle file", "file", entry.Name(), "error", err)
			continue
		}
		if bundle.BundleID == "" || t.delivered[bundle.BundleID] {
			continue
		}
		t.delivered[bundle.BundleID] = true
		t.pending = append(t.pending, &bundle)
	}

	sort.Slice(t.pending, func(i, j int) bool {
		return t.pending[i].SequenceNumber < t.pending[j].SequenceNumber
	})
	return nil
}

// Available reports whether the checkout can be reached or created.
func (t *GitTransport) Available(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureRepo(ctx); err != nil {
		t.logger.Warn("bundle repository unavailable", "error", err)
		return false
	}
	return true
}

// Poll pulls the branch and returns the next undelivered bundle, nil
// when there is none.
func (t *GitTransport) Poll(ctx context.Context) (*Bundle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureRepo(ctx); err != nil {
		return nil, err
	}

	if len(t.pending) == 0 {
		if err := t.pull(ctx); err != nil {
			return nil, err
		}
		if err := t.scan(); err != nil {
			return nil, err
		}
	}

	if len(t.pending) == 0 {
		return nil, nil
	}
	next := t.pending[0]
	t.pending = t.pending[1:]
	return next, nil
}

// Acknowledge records the outcome locally. The checkout is read-only,
// so acks are written to an ack ledger beside the bundles for later
// collection rather than pushed upstream.
func (t *GitTransport) Acknowledge(ctx context.Context, bundleID string, success bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	path := filepath.Join(t.cfg.LocalPath, "acks.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("remote: open ack ledger: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(map[string]any{
		"bundle_id": bundleID,
		"success":   success,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("remote: write ack: %w", err)
	}
	return nil
}
