// Package mock creates and mutates a task orchestrator database so the
// dashboard can be demonstrated and tested without the real orchestrator.
// It is the only package that writes to a database.
package mock

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Schema mirrors the orchestrator tables the dashboard reads. Ids are
// 16-byte BLOBs.
const Schema = `
CREATE TABLE IF NOT EXISTS projects (
	id          BLOB PRIMARY KEY,
	name        TEXT NOT NULL,
	summary     TEXT,
	status      TEXT NOT NULL DEFAULT 'PLANNING',
	created_at  TEXT NOT NULL,
	modified_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS features (
	id          BLOB PRIMARY KEY,
	project_id  BLOB REFERENCES projects(id),
	name        TEXT NOT NULL,
	summary     TEXT,
	status      TEXT NOT NULL DEFAULT 'PLANNING',
	priority    TEXT NOT NULL DEFAULT 'MEDIUM',
	created_at  TEXT NOT NULL,
	modified_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	id          BLOB PRIMARY KEY,
	project_id  BLOB REFERENCES projects(id),
	feature_id  BLOB REFERENCES features(id),
	title       TEXT NOT NULL,
	summary     TEXT,
	status      TEXT NOT NULL DEFAULT 'PENDING',
	priority    TEXT NOT NULL DEFAULT 'MEDIUM',
	complexity  INTEGER,
	created_at  TEXT NOT NULL,
	modified_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS dependencies (
	id           BLOB PRIMARY KEY,
	from_task_id BLOB NOT NULL REFERENCES tasks(id),
	to_task_id   BLOB NOT NULL REFERENCES tasks(id),
	type         TEXT NOT NULL DEFAULT 'BLOCKS',
	created_at   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sections (
	id                BLOB PRIMARY KEY,
	entity_type       TEXT NOT NULL,
	entity_id         BLOB NOT NULL,
	title             TEXT NOT NULL,
	usage_description TEXT,
	content           TEXT NOT NULL,
	content_format    TEXT NOT NULL DEFAULT 'MARKDOWN',
	ordinal           INTEGER NOT NULL DEFAULT 0,
	tags              TEXT,
	created_at        TEXT NOT NULL,
	modified_at       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entity_tags (
	id          BLOB PRIMARY KEY,
	entity_id   BLOB NOT NULL,
	entity_type TEXT NOT NULL,
	tag         TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS templates (
	id         BLOB PRIMARY KEY,
	name       TEXT NOT NULL,
	is_enabled INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS work_sessions (
	session_id    TEXT PRIMARY KEY,
	client_id     TEXT NOT NULL,
	user_context  TEXT,
	started_at    TEXT NOT NULL,
	last_activity TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS task_locks (
	id         BLOB PRIMARY KEY,
	task_id    BLOB NOT NULL REFERENCES tasks(id),
	session_id TEXT NOT NULL,
	lock_scope TEXT NOT NULL DEFAULT 'TASK',
	locked_at  TEXT NOT NULL,
	expires_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_feature ON tasks(feature_id);
CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
CREATE INDEX IF NOT EXISTS idx_features_project ON features(project_id);
`

// timeLayout matches how the orchestrator renders timestamps.
const timeLayout = "2006-01-02 15:04:05.000"

func stamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func blob(id uuid.UUID) []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	return b
}

// Create opens (creating if needed) a writable database at path in WAL
// mode and applies Schema.
func Create(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mock: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("mock: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		Schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("mock: init: %w", err)
		}
	}
	return db, nil
}
