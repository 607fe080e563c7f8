package taskstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1"
)

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Tasks table
CREATE TABLE IF NOT EXISTS tasks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    state TEXT NOT NULL DEFAULT 'todo'
        CHECK (state IN ('todo', 'doing', 'done')),
    created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_picked_up_at TIMESTAMP,
    action TEXT NOT NULL,
    outcome TEXT,
    follow_up_criticality TEXT
        CHECK (follow_up_criticality IS NULL
            OR follow_up_criticality IN ('no_followup', 'low', 'medium', 'high'))
);

CREATE INDEX IF NOT EXISTS idx_tasks_state_created ON tasks(state, created);
`

// applyMigrations initializes a fresh database and verifies the schema
// version of an existing one. A version mismatch is an error rather than an
// in-place upgrade: the store is a cache-grade database the user can simply
// delete.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	version, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if version == "" {
		if _, err := db.ExecContext(ctx, migrationV1Up); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		if _, err := db.ExecContext(ctx,
			"INSERT INTO schema_version (version) VALUES (?)", CurrentSchemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}
	if version != CurrentSchemaVersion {
		return fmt.Errorf(
			"database version mismatch: expected %s, got %s; delete the database file and it will be recreated",
			CurrentSchemaVersion, version)
	}
	return nil
}

// schemaVersion returns the recorded version, or "" for a fresh database.
func schemaVersion(ctx context.Context, db *sql.DB) (string, error) {
	var exists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'").Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("check schema table: %w", err)
	}
	if exists == 0 {
		return "", nil
	}
	var version string
	err = db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
