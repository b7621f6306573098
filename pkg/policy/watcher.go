package policy

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the policy document when its file changes on disk. A
// document that fails validation is rejected and the running policy is
// left untouched.
type Watcher struct {
	policy   *Policy
	path     string
	onChange func()

	fs     *fsnotify.Watcher
	done   chan struct{}
	logger *slog.Logger
}

// debounceWindow absorbs the editor write-then-rename event bursts that
// accompany a single save.
const debounceWindow = 250 * time.Millisecond

// NewWatcher watches the document at path and reloads policy on change.
// onChange, if non-nil, runs after every successful reload.
func NewWatcher(policy *Policy, path string, onChange func()) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("policy: create watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace files by rename
	// and a watch on the old inode would go stale.
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("policy: watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		policy:   policy,
		path:     path,
		onChange: onChange,
		fs:       fs,
		done:     make(chan struct{}),
		logger:   slog.Default().With("component", "policy.watcher"),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(debounceWindow)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("policy watch error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	if err := w.policy.Load(w.path); err != nil {
		w.logger.Error("policy reload rejected, previous document stays in effect",
			"path", w.path,
			"error", err,
		)
		return
	}
	w.logger.Info("policy reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange()
	}
}

// Close stops watching. It is safe to call once.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fs.Close()
}
