// Package project maintains the in-memory index of a source tree: one File
// per analyzed path, kept current by batch re-analysis.
package project

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codegrove/chunkdex/internal/vcs"
)

// DefaultFilesPerWorker sets how many files one worker handles per batch
// before another worker is worth spinning up.
const DefaultFilesPerWorker = 10

// excludedDirs are top-level directories skipped by the non-git scan.
var excludedDirs = map[string]bool{
	".git":         true,
	".venv":        true,
	"build":        true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"dist":         true,
}

// Options tunes project construction.
type Options struct {
	// FilesPerWorker controls batch parallelism; zero means the default.
	FilesPerWorker int
}

// Project is the analyzed state of one source tree. All exported methods
// are safe for concurrent use.
type Project struct {
	Root string
	// Repo is non-nil when Root is a git work tree.
	Repo *vcs.Repo

	filesPerWorker int

	mu         sync.RWMutex
	files      map[string]*File
	deleteSeq  uint64
	lastDelete map[string]uint64
	// inflight counts running batches per delete-sequence snapshot, so
	// delete marks can be pruned once no batch old enough to race them
	// remains.
	inflight map[uint64]int
}

// New scans root and analyzes every file found. Inside a git repo the file
// set is what git tracks (plus unignored untracked files); elsewhere it is
// a recursive walk that skips the usual generated top-level directories.
// Per-file analysis failures are logged and skipped, never fatal.
func New(ctx context.Context, root string, opts Options) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}

	repo, err := vcs.Detect(abs)
	if err != nil {
		return nil, err
	}

	fpw := opts.FilesPerWorker
	if fpw <= 0 {
		fpw = DefaultFilesPerWorker
	}
	p := &Project{
		Root:           abs,
		Repo:           repo,
		filesPerWorker: fpw,
		files:          make(map[string]*File),
		lastDelete:     make(map[string]uint64),
		inflight:       make(map[uint64]int),
	}

	paths, err := p.scan()
	if err != nil {
		return nil, err
	}
	if err := p.AnalyzeBatch(ctx, paths); err != nil {
		return nil, err
	}
	return p, nil
}

// scan lists the absolute paths of candidate files under the root.
func (p *Project) scan() ([]string, error) {
	if p.Repo != nil {
		rels, err := p.Repo.LsFiles()
		if err != nil {
			return nil, err
		}
		paths := make([]string, 0, len(rels))
		for _, rel := range rels {
			paths = append(paths, filepath.Join(p.Root, rel))
		}
		return paths, nil
	}

	var paths []string
	err := filepath.WalkDir(p.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("scan: skipping unreadable entry", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if d.IsDir() {
			if filepath.Dir(path) == p.Root && excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", p.Root, err)
	}
	return paths, nil
}

// workerCount picks the batch parallelism: one worker per filesPerWorker
// files, clamped so small batches stay sequential and large ones never take
// more than half the CPUs.
func (p *Project) workerCount(batch int) int {
	return clampWorkers(batch/p.filesPerWorker, runtime.NumCPU()/2)
}

// clampWorkers bounds a worker count to [1, limit]. A limit below 1 (a
// single-CPU host) still allows one worker, so such hosts run batches
// sequentially.
func clampWorkers(n, limit int) int {
	if limit < 1 {
		limit = 1
	}
	if n < 1 {
		return 1
	}
	if n > limit {
		return limit
	}
	return n
}

// AnalyzeBatch (re)analyzes the given absolute paths and merges the results
// into the index once the whole batch has completed. A file that vanished
// or cannot be read is skipped and its previous entry, if any, survives.
// Paths removed while the batch was in flight stay removed.
func (p *Project) AnalyzeBatch(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	p.mu.Lock()
	snapshot := p.deleteSeq
	p.inflight[snapshot]++
	p.mu.Unlock()
	defer p.releaseSnapshot(snapshot)

	results := make([]*File, len(paths))
	workers := p.workerCount(len(paths))
	if workers == 1 {
		for i, path := range paths {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = analyzeOne(path)
		}
	} else {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, path := range paths {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				results[i] = analyzeOne(path)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	p.merge(snapshot, paths, results)
	return nil
}

// merge applies a completed batch. A nil result means the analysis failed
// and the prior entry stands; a path deleted after the batch's snapshot was
// taken stays deleted.
func (p *Project) merge(snapshot uint64, paths []string, results []*File) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, path := range paths {
		if results[i] == nil {
			continue
		}
		if p.lastDelete[path] > snapshot {
			continue
		}
		p.files[path] = results[i]
	}
}

// releaseSnapshot retires one batch's delete-sequence snapshot and prunes
// marks no remaining batch could race against.
func (p *Project) releaseSnapshot(snapshot uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight[snapshot]--; p.inflight[snapshot] <= 0 {
		delete(p.inflight, snapshot)
	}
	p.pruneDeleteMarksLocked()
}

// pruneDeleteMarksLocked drops delete marks at or below the oldest in-flight
// snapshot. A mark only matters to a batch that started before the delete,
// so once every such batch has finished the mark is dead weight.
func (p *Project) pruneDeleteMarksLocked() {
	floor := p.deleteSeq
	for s := range p.inflight {
		if s < floor {
			floor = s
		}
	}
	for path, seq := range p.lastDelete {
		if seq <= floor {
			delete(p.lastDelete, path)
		}
	}
}

// analyzeOne reads and chunks a single file, returning nil when the file is
// gone, unreadable, or not a regular file.
func analyzeOne(path string) *File {
	info, err := os.Lstat(path)
	if err != nil {
		slog.Debug("analyze: stat failed", slog.String("path", path), slog.String("error", err.Error()))
		return nil
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("analyze: read failed", slog.String("path", path), slog.String("error", err.Error()))
		return nil
	}
	return BuildFile(string(data), path)
}

// Remove drops a path from the index. It is idempotent and records the
// delete so in-flight analyses of the same path do not resurrect it.
func (p *Project) Remove(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleteSeq++
	p.lastDelete[path] = p.deleteSeq
	delete(p.files, path)
	p.pruneDeleteMarksLocked()
}

// GetFile returns the analyzed file for an absolute path.
func (p *Project) GetFile(path string) (*File, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, ok := p.files[path]
	return f, ok
}

// Files returns a snapshot of the index.
func (p *Project) Files() map[string]*File {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]*File, len(p.files))
	for k, v := range p.files {
		out[k] = v
	}
	return out
}

// PathsUnderRoot returns the sorted absolute paths currently indexed.
func (p *Project) PathsUnderRoot() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	paths := make([]string, 0, len(p.files))
	for k := range p.files {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	return paths
}
