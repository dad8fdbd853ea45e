// Package db stores agent sessions and their ticks in SQLite for later
// inspection. Nothing in it is read back into the agent.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gerunddev/pokeagent/internal/log"
)

// ErrNotFound is returned when a requested record is not found.
var ErrNotFound = errors.New("record not found")

// DB holds the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

// New creates a new database connection.
// If the path is ":memory:", an in-memory database is created.
// Otherwise, the parent directory is created if it doesn't exist.
func New(path string) (*DB, error) {
	// Create parent directory if needed (not for in-memory DB)
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open database with foreign keys enabled
	conn, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	// Verify connection
	if err := conn.Ping(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			log.Warn("failed to close connection after ping failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{conn: conn}

	// Run migrations automatically
	if err := db.Migrate(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			log.Warn("failed to close connection after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// =============================================================================
// Session Methods
// =============================================================================

// CreateSession inserts a new session. An empty ID is filled in.
func (d *DB) CreateSession(session *Session) error {
	if session.ID == "" {
		session.ID = NewSessionID()
	}
	if session.Status == "" {
		session.Status = SessionRunning
	}
	session.CreatedAt = time.Now()

	_, err := d.conn.Exec(`
		INSERT INTO sessions (id, mode, backend, model, source, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Mode, session.Backend, session.Model, session.Source,
		session.Status, session.Error, session.CreatedAt,
	)
	return err
}

// GetSession retrieves a session by ID.
func (d *DB) GetSession(id string) (*Session, error) {
	s := &Session{}
	var completedAt sql.NullTime
	err := d.conn.QueryRow(`
		SELECT id, mode, backend, model, source, status, error, created_at, completed_at
		FROM sessions WHERE id = ?`, id,
	).Scan(
		&s.ID, &s.Mode, &s.Backend, &s.Model, &s.Source,
		&s.Status, &s.Error, &s.CreatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	return s, nil
}

// ListSessions returns sessions with tick counts, newest first.
func (d *DB) ListSessions() ([]*SessionSummary, error) {
	rows, err := d.conn.Query(`
		SELECT s.id, s.mode, s.backend, s.model, s.source, s.status, s.error, s.created_at, s.completed_at,
		       COUNT(t.id), COALESCE(SUM(CASE WHEN t.error_kind != '' THEN 1 ELSE 0 END), 0)
		FROM sessions s
		LEFT JOIN ticks t ON t.session_id = s.id
		GROUP BY s.id
		ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn("failed to close rows", "operation", "ListSessions", "error", closeErr)
		}
	}()

	var sessions []*SessionSummary
	for rows.Next() {
		s := &SessionSummary{}
		var completedAt sql.NullTime
		if err := rows.Scan(
			&s.ID, &s.Mode, &s.Backend, &s.Model, &s.Source, &s.Status, &s.Error,
			&s.CreatedAt, &completedAt, &s.Ticks, &s.FailedTicks,
		); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			s.CompletedAt = &completedAt.Time
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// CompleteSession sets a session's final status, error message and
// completed_at timestamp.
func (d *DB) CompleteSession(id string, status SessionStatus, errMsg string) error {
	result, err := d.conn.Exec(`
		UPDATE sessions SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		status, errMsg, time.Now(), id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// =============================================================================
// Tick Methods
// =============================================================================

// RecordTick inserts a tick and sets its ID.
func (d *DB) RecordTick(tick *Tick) error {
	tick.CreatedAt = time.Now()

	result, err := d.conn.Exec(`
		INSERT INTO ticks (session_id, sequence, frame_id, observation, plan, plan_created, buttons,
		                   raw_response, reasoning, fallback, error_kind, error_stage, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tick.SessionID, tick.Sequence, tick.FrameID, tick.Observation, tick.Plan, tick.PlanCreated,
		tick.Buttons, tick.Raw, tick.Reasoning, tick.Fallback, tick.ErrorKind, tick.ErrorStage,
		tick.Error, tick.DurationMS, tick.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	tick.ID = id
	return nil
}

// ListTicks returns a session's ticks ordered by sequence.
func (d *DB) ListTicks(sessionID string) ([]*Tick, error) {
	rows, err := d.conn.Query(`
		SELECT id, session_id, sequence, frame_id, observation, plan, plan_created, buttons,
		       raw_response, reasoning, fallback, error_kind, error_stage, error, duration_ms, created_at
		FROM ticks WHERE session_id = ? ORDER BY sequence ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn("failed to close rows", "operation", "ListTicks", "error", closeErr)
		}
	}()

	var ticks []*Tick
	for rows.Next() {
		t := &Tick{}
		if err := rows.Scan(
			&t.ID, &t.SessionID, &t.Sequence, &t.FrameID, &t.Observation, &t.Plan, &t.PlanCreated,
			&t.Buttons, &t.Raw, &t.Reasoning, &t.Fallback, &t.ErrorKind, &t.ErrorStage,
			&t.Error, &t.DurationMS, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}
