package db

import "github.com/gerunddev/pokeagent/internal/log"

// schema is the SQL schema for the trace database.
const schema = `
-- Agent sessions table
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    mode TEXT NOT NULL,
    backend TEXT NOT NULL,
    model TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'running',
    error TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    completed_at DATETIME
);

-- Ticks table (one row per decision, failed ones included)
CREATE TABLE IF NOT EXISTS ticks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    sequence INTEGER NOT NULL,
    frame_id INTEGER NOT NULL DEFAULT -1,
    observation TEXT NOT NULL DEFAULT '',
    plan TEXT NOT NULL DEFAULT '',
    plan_created INTEGER NOT NULL DEFAULT 0,
    buttons TEXT NOT NULL DEFAULT '',
    raw_response TEXT NOT NULL DEFAULT '',
    fallback TEXT NOT NULL DEFAULT '',
    error_kind TEXT NOT NULL DEFAULT '',
    error_stage TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(id)
);

CREATE INDEX IF NOT EXISTS idx_ticks_session ON ticks(session_id, sequence);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
`

// Migrate runs all database migrations to ensure the schema is up to date.
func (d *DB) Migrate() error {
	// Create tables if they don't exist
	if _, err := d.conn.Exec(schema); err != nil {
		return err
	}

	// Run incremental migrations for existing databases
	return d.runMigrations()
}

// runMigrations applies incremental schema changes for existing databases.
func (d *DB) runMigrations() error {
	// Migration: Add reasoning column to ticks table
	if exists, err := d.columnExists("ticks", "reasoning"); err != nil {
		return err
	} else if !exists {
		if _, err := d.conn.Exec(`
			ALTER TABLE ticks ADD COLUMN reasoning TEXT NOT NULL DEFAULT '';
		`); err != nil {
			return err
		}
	}

	return nil
}

// columnExists checks if a column exists in the specified table.
func (d *DB) columnExists(table, column string) (bool, error) {
	rows, err := d.conn.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return false, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn("failed to close rows", "operation", "columnExists", "error", closeErr)
		}
	}()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
