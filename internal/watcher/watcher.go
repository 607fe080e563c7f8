// Package watcher keeps a project index current by watching its root for
// filesystem changes and re-analyzing changed files after a debounce delay.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codegrove/chunkdex/internal/project"
)

// DefaultDebounce is the delay between the last event for a path and its
// re-analysis. Editors fire bursts of writes per save; one analysis per
// burst is enough.
const DefaultDebounce = 500 * time.Millisecond

// excludedDirs mirrors the project scan exclusions so the watcher never
// subscribes to generated trees.
var excludedDirs = map[string]bool{
	".git":         true,
	".venv":        true,
	"build":        true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"dist":         true,
}

// Watcher debounces filesystem events into project updates.
type Watcher struct {
	project *project.Project
	fw      *fsnotify.Watcher
	delay   time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// New starts watching the project's root and all of its subdirectories.
// A non-positive delay uses DefaultDebounce.
func New(p *project.Project, delay time.Duration) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		project: p,
		fw:      fw,
		delay:   delay,
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[string]*time.Timer),
	}
	if err := w.addRecursive(p.Root); err != nil {
		fw.Close()
		cancel()
		return nil, err
	}
	go w.loop()
	return w, nil
}

// addRecursive subscribes to dir and every non-excluded directory under it.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("watch: skipping unreadable entry", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if filepath.Dir(path) == w.project.Root && excludedDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			slog.Debug("watch: add failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			slog.Warn("watch: error event", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	switch {
	case event.Op.Has(fsnotify.Create):
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				slog.Debug("watch: add created dir", slog.String("path", event.Name), slog.String("error", err.Error()))
			}
			return
		}
		w.scheduleAnalyze(event.Name)
	case event.Op.Has(fsnotify.Write):
		w.scheduleAnalyze(event.Name)
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.scheduleRemove(event.Name)
	}
}

// arm replaces any pending timer for the path. A modify after a pending
// delete (or vice versa) supersedes it; only the last event kind fires.
func (w *Watcher) arm(path string, fire func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		delete(w.timers, path)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		fire()
	})
}

func (w *Watcher) scheduleAnalyze(path string) {
	w.arm(path, func() { w.fireAnalyze(path) })
}

func (w *Watcher) scheduleRemove(path string) {
	w.arm(path, func() { w.project.Remove(path) })
}

// fireAnalyze re-validates the path at fire time before analyzing: the file
// must still be a regular file and, inside a git repo, not currently
// ignored. The ignore check runs against live git state on every fire.
func (w *Watcher) fireAnalyze(path string) {
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		slog.Debug("watch: dropping event, not a regular file", slog.String("path", path))
		return
	}
	if repo := w.project.Repo; repo != nil {
		rel, err := filepath.Rel(repo.Root, path)
		if err == nil && repo.IsIgnored(rel) {
			slog.Debug("watch: dropping ignored path", slog.String("path", path))
			return
		}
	}
	if err := w.project.AnalyzeBatch(w.ctx, []string{path}); err != nil {
		slog.Debug("watch: analyze failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// Close stops the watcher and cancels every pending timer. Safe to call
// more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	w.cancel()
	return w.fw.Close()
}
