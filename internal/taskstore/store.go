// Package taskstore persists a small work queue in SQLite. Tasks move
// through todo -> doing -> done; a task stuck in doing long enough is
// assumed abandoned and handed out again.
package taskstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrNotFound is returned when a requested task doesn't exist
	ErrNotFound = errors.New("task not found")
)

// State is a task's lifecycle state.
type State string

const (
	StateTodo  State = "todo"
	StateDoing State = "doing"
	StateDone  State = "done"
)

// FollowUpCriticality records how urgently a finished task's outcome needs
// human attention.
type FollowUpCriticality string

const (
	FollowUpNone   FollowUpCriticality = "no_followup"
	FollowUpLow    FollowUpCriticality = "low"
	FollowUpMedium FollowUpCriticality = "medium"
	FollowUpHigh   FollowUpCriticality = "high"
)

// Valid reports whether f is one of the known criticalities.
func (f FollowUpCriticality) Valid() bool {
	switch f {
	case FollowUpNone, FollowUpLow, FollowUpMedium, FollowUpHigh:
		return true
	}
	return false
}

// staleDoingAfter is how long a doing task stays claimed before GetTask
// hands it out again.
const staleDoingAfter = 5 * time.Minute

// timestampLayout is fixed-width so stored timestamps compare correctly as
// strings; variable-width fractions would mis-order ORDER BY created and
// the staleness cutoff.
const timestampLayout = "2006-01-02 15:04:05.000000000"

// Task is one queued unit of work.
type Task struct {
	ID                  int64
	State               State
	Created             time.Time
	LastPickedUpAt      *time.Time
	Action              string
	Outcome             *string
	FollowUpCriticality *FollowUpCriticality
}

// Store is the SQLite-backed task queue.
type Store struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Single writer; WAL for readers alongside it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}
	return db, nil
}

// Open opens (creating if needed) the task database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := applyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// AddTask queues a new task and returns its id.
func (s *Store) AddTask(ctx context.Context, action string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO tasks (action, state, created) VALUES (?, 'todo', ?)",
		action, time.Now().UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("add task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add task: %w", err)
	}
	return id, nil
}

// GetTask claims the next workable task: the oldest todo, or the oldest
// doing that has been claimed for over staleDoingAfter. The claimed task is
// marked doing with a fresh pickup time. Returns nil when nothing is
// workable.
func (s *Store) GetTask(ctx context.Context) (*Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	staleBefore := time.Now().UTC().Add(-staleDoingAfter).Format(timestampLayout)
	row := tx.QueryRowContext(ctx, `
		SELECT id, state, created, last_picked_up_at, action, outcome, follow_up_criticality
		FROM tasks
		WHERE state = 'todo'
		   OR (state = 'doing' AND (last_picked_up_at IS NULL OR last_picked_up_at < ?))
		ORDER BY created
		LIMIT 1`, staleBefore)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"UPDATE tasks SET state = 'doing', last_picked_up_at = ? WHERE id = ?",
		now.Format(timestampLayout), task.ID); err != nil {
		return nil, fmt.Errorf("claim task %d: %w", task.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim task %d: %w", task.ID, err)
	}
	task.State = StateDoing
	task.LastPickedUpAt = &now
	return task, nil
}

// SetTaskDone marks a task done with its outcome.
func (s *Store) SetTaskDone(ctx context.Context, id int64, outcome string, criticality FollowUpCriticality) error {
	if !criticality.Valid() {
		return fmt.Errorf("invalid follow-up criticality %q", criticality)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET state = 'done', outcome = ?, follow_up_criticality = ? WHERE id = ?",
		outcome, string(criticality), id)
	if err != nil {
		return fmt.Errorf("set task %d done: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set task %d done: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*Task, error) {
	var (
		t           Task
		created     string
		pickedUp    sql.NullString
		outcome     sql.NullString
		criticality sql.NullString
	)
	if err := row.Scan(&t.ID, &t.State, &created, &pickedUp, &t.Action, &outcome, &criticality); err != nil {
		return nil, err
	}
	ts, err := parseTimestamp(created)
	if err != nil {
		return nil, fmt.Errorf("task %d: bad created timestamp: %w", t.ID, err)
	}
	t.Created = ts
	if pickedUp.Valid {
		ts, err := parseTimestamp(pickedUp.String)
		if err != nil {
			return nil, fmt.Errorf("task %d: bad pickup timestamp: %w", t.ID, err)
		}
		t.LastPickedUpAt = &ts
	}
	if outcome.Valid {
		t.Outcome = &outcome.String
	}
	if criticality.Valid {
		c := FollowUpCriticality(criticality.String)
		t.FollowUpCriticality = &c
	}
	return &t, nil
}

// parseTimestamp accepts the current layout plus formats older databases
// and the two drivers produce.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{timestampLayout, time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
