package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Basic health check + apply a few safe pragmas.
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS connections (
  id                    TEXT PRIMARY KEY,
  slack_webhook_url     TEXT NOT NULL,
  fathom_webhook_secret TEXT,
  assignee_email_filter TEXT,
  assignee_name_filter  TEXT,
  delivery_mode         TEXT NOT NULL DEFAULT 'message',
  created_at            TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS delivery_log (
  id            TEXT PRIMARY KEY,
  connection_id TEXT NOT NULL,
  kind          TEXT NOT NULL,
  outcome       TEXT NOT NULL,
  items_in      INTEGER NOT NULL DEFAULT 0,
  items_sent    INTEGER NOT NULL DEFAULT 0,
  sink_status   INTEGER,
  detail        TEXT,
  created_at    TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS delivery_log_created_at_idx ON delivery_log(created_at);`,
		`CREATE INDEX IF NOT EXISTS delivery_log_connection_idx ON delivery_log(connection_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
