package watcher

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegrove/chunkdex/internal/project"
)

const (
	testDebounce = 50 * time.Millisecond
	waitFor      = 3 * time.Second
	tick         = 10 * time.Millisecond
)

func newWatchedProject(t *testing.T) (string, *project.Project, *Watcher) {
	t.Helper()
	dir := t.TempDir()
	p, err := project.New(context.Background(), dir, project.Options{})
	require.NoError(t, err)
	w, err := New(p, testDebounce)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return dir, p, w
}

func TestWatcher_ModifyReanalyzes(t *testing.T) {
	dir, p, _ := newWatchedProject(t)
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# One\n"), 0o644))

	require.Eventually(t, func() bool {
		f, ok := p.GetFile(path)
		return ok && len(f.Chunks) == 1 && f.Chunks[0].Name == "One"
	}, waitFor, tick)

	require.NoError(t, os.WriteFile(path, []byte("# Two\n"), 0o644))
	require.Eventually(t, func() bool {
		f, ok := p.GetFile(path)
		return ok && len(f.Chunks) == 1 && f.Chunks[0].Name == "Two"
	}, waitFor, tick)
}

func TestWatcher_BurstCoalescesToOneTimer(t *testing.T) {
	dir, _, w := newWatchedProject(t)
	path := filepath.Join(dir, "busy.txt")

	for i := 0; i < 5; i++ {
		w.scheduleAnalyze(path)
	}

	w.mu.Lock()
	pending := len(w.timers)
	w.mu.Unlock()
	assert.Equal(t, 1, pending)
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))

	p, err := project.New(context.Background(), dir, project.Options{})
	require.NoError(t, err)
	_, ok := p.GetFile(path)
	require.True(t, ok)

	w, err := New(p, testDebounce)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		_, ok := p.GetFile(path)
		return !ok
	}, waitFor, tick)
}

func TestWatcher_DeleteAfterModifyLeavesPathAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flap.txt")
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))

	p, err := project.New(context.Background(), dir, project.Options{})
	require.NoError(t, err)
	w, err := New(p, testDebounce)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, os.WriteFile(path, []byte("y\n"), 0o644))
	require.NoError(t, os.Remove(path))

	// Give the debounce window plus slack to settle.
	time.Sleep(4 * testDebounce)
	_, ok := p.GetFile(path)
	assert.False(t, ok)
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	dir, p, _ := newWatchedProject(t)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// The directory Add races the file creation; retry the write until the
	// event lands.
	path := filepath.Join(sub, "inner.md")
	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, []byte("# Inner\n"), 0o644); err != nil {
			return false
		}
		_, ok := p.GetFile(path)
		return ok
	}, waitFor, 100*time.Millisecond)
}

func TestWatcher_IgnoredPathIsNotIndexed(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	run("init")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\n"), 0o644))
	run("add", ".gitignore")
	run("commit", "-m", "initial")

	p, err := project.New(context.Background(), dir, project.Options{})
	require.NoError(t, err)
	require.NotNil(t, p.Repo)
	w, err := New(p, testDebounce)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ignored := filepath.Join(dir, "debug.log")
	sibling := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(ignored, []byte("noise\n"), 0o644))
	require.NoError(t, os.WriteFile(sibling, []byte("# Notes\n"), 0o644))

	require.Eventually(t, func() bool {
		_, ok := p.GetFile(sibling)
		return ok
	}, waitFor, tick)

	// Let the ignored file's debounce window settle too.
	time.Sleep(4 * testDebounce)
	_, ok := p.GetFile(ignored)
	assert.False(t, ok, "gitignored files must not enter the index")
}

func TestWatcher_CloseStopsTimers(t *testing.T) {
	dir, _, w := newWatchedProject(t)
	w.scheduleAnalyze(filepath.Join(dir, "pending.txt"))

	require.NoError(t, w.Close())

	w.mu.Lock()
	pending := len(w.timers)
	w.mu.Unlock()
	assert.Zero(t, pending)

	// Close is idempotent.
	assert.NoError(t, w.Close())
}
