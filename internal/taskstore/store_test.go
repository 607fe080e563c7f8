package taskstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "tasks.db")
	s, err := Open(path)
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestOpen_VersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("UPDATE schema_version SET version = '999'")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version mismatch")
}

func TestTaskLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.AddTask(ctx, "review the parser")
	require.NoError(t, err)
	require.Positive(t, id)

	task, err := s.GetTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, id, task.ID)
	assert.Equal(t, StateDoing, task.State)
	assert.Equal(t, "review the parser", task.Action)
	require.NotNil(t, task.LastPickedUpAt)
	assert.Nil(t, task.Outcome)

	require.NoError(t, s.SetTaskDone(ctx, id, "looks fine", FollowUpNone))

	// Done tasks are never handed out again.
	next, err := s.GetTask(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestGetTask_EmptyQueue(t *testing.T) {
	s := openTestStore(t)
	task, err := s.GetTask(context.Background())
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestGetTask_OldestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.AddTask(ctx, "first")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = s.AddTask(ctx, "second")
	require.NoError(t, err)

	task, err := s.GetTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, first, task.ID)
}

func TestGetTask_WholeSecondBeforeFractional(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Timestamps compare as strings, so a created value landing exactly
	// on a second must still order before one half a second later. A
	// variable-width fraction ("...:00Z" vs "...:00.5Z") gets this wrong.
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	insert := func(action string, created time.Time) int64 {
		res, err := s.db.Exec(
			"INSERT INTO tasks (action, state, created) VALUES (?, 'todo', ?)",
			action, created.Format(timestampLayout))
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		return id
	}
	insert("newer", base.Add(500*time.Millisecond))
	older := insert("older", base)

	task, err := s.GetTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, older, task.ID)
	assert.Equal(t, "older", task.Action)
}

func TestGetTask_DoingIsNotReclaimedImmediately(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.AddTask(ctx, "only task")
	require.NoError(t, err)

	claimed, err := s.GetTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	again, err := s.GetTask(ctx)
	require.NoError(t, err)
	assert.Nil(t, again, "a freshly claimed task must stay claimed")
}

func TestGetTask_StaleDoingIsReclaimed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.AddTask(ctx, "abandoned")
	require.NoError(t, err)
	_, err = s.GetTask(ctx)
	require.NoError(t, err)

	// Age the claim past the staleness window.
	stale := time.Now().UTC().Add(-staleDoingAfter - time.Minute).Format(timestampLayout)
	_, err = s.db.Exec("UPDATE tasks SET last_picked_up_at = ? WHERE id = ?", stale, id)
	require.NoError(t, err)

	task, err := s.GetTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, id, task.ID)
	assert.Equal(t, StateDoing, task.State)
}

func TestSetTaskDone_UnknownID(t *testing.T) {
	s := openTestStore(t)
	err := s.SetTaskDone(context.Background(), 12345, "n/a", FollowUpLow)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetTaskDone_InvalidCriticality(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id, err := s.AddTask(ctx, "x")
	require.NoError(t, err)

	err = s.SetTaskDone(ctx, id, "done", FollowUpCriticality("urgent"))
	assert.Error(t, err)
}

func TestSetTaskDone_RecordsOutcome(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.AddTask(ctx, "write docs")
	require.NoError(t, err)
	require.NoError(t, s.SetTaskDone(ctx, id, "docs written", FollowUpHigh))

	var outcome, criticality string
	row := s.db.QueryRow("SELECT outcome, follow_up_criticality FROM tasks WHERE id = ?", id)
	require.NoError(t, row.Scan(&outcome, &criticality))
	assert.Equal(t, "docs written", outcome)
	assert.Equal(t, "high", criticality)
}
