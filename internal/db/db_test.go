package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gerunddev/pokeagent/internal/game"
)

// newTestDB creates a new in-memory database for testing.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

// newTestSession creates a running session for tick tests.
func newTestSession(t *testing.T, db *DB) *Session {
	t.Helper()
	s := &Session{Mode: "four-module", Backend: "gemini", Model: "gemini-2.5-flash", Source: "http://localhost:8000"}
	if err := db.CreateSession(s); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return s
}

// =============================================================================
// Database Connection Tests
// =============================================================================

func TestNew(t *testing.T) {
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() returned error: %v", err)
		}
	}()

	if db.conn == nil {
		t.Error("New() returned DB with nil connection")
	}
}

func TestNew_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "pokeagent.db")

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}

	// Reopening runs migrations against an existing schema
	db, err = New(path)
	if err != nil {
		t.Fatalf("New() on existing database returned error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
}

func TestMigrate_AddsReasoningColumn(t *testing.T) {
	db := newTestDB(t)

	exists, err := db.columnExists("ticks", "reasoning")
	if err != nil {
		t.Fatalf("columnExists() returned error: %v", err)
	}
	if !exists {
		t.Error("expected ticks.reasoning to exist after migration")
	}

	exists, err = db.columnExists("ticks", "no_such_column")
	if err != nil {
		t.Fatalf("columnExists() returned error: %v", err)
	}
	if exists {
		t.Error("columnExists() reported a missing column")
	}
}

// =============================================================================
// Session Tests
// =============================================================================

func TestCreateSession(t *testing.T) {
	db := newTestDB(t)
	s := newTestSession(t, db)

	if s.ID == "" {
		t.Error("CreateSession() did not assign an ID")
	}
	if s.Status != SessionRunning {
		t.Errorf("Status = %q, want %q", s.Status, SessionRunning)
	}
	if s.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestGetSession(t *testing.T) {
	db := newTestDB(t)
	s := newTestSession(t, db)

	got, err := db.GetSession(s.ID)
	if err != nil {
		t.Fatalf("GetSession() returned error: %v", err)
	}
	if got.Mode != "four-module" || got.Backend != "gemini" || got.Model != "gemini-2.5-flash" {
		t.Errorf("GetSession() = %+v", got)
	}
	if got.Source != "http://localhost:8000" {
		t.Errorf("Source = %q", got.Source)
	}
	if got.CompletedAt != nil {
		t.Error("CompletedAt should be nil for a running session")
	}
}

func TestGetSession_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetSession("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession() error = %v, want ErrNotFound", err)
	}
}

func TestCompleteSession(t *testing.T) {
	db := newTestDB(t)
	s := newTestSession(t, db)

	if err := db.CompleteSession(s.ID, SessionFailed, "emulator went away"); err != nil {
		t.Fatalf("CompleteSession() returned error: %v", err)
	}

	got, err := db.GetSession(s.ID)
	if err != nil {
		t.Fatalf("GetSession() returned error: %v", err)
	}
	if got.Status != SessionFailed {
		t.Errorf("Status = %q, want %q", got.Status, SessionFailed)
	}
	if got.Error != "emulator went away" {
		t.Errorf("Error = %q", got.Error)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestCompleteSession_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.CompleteSession("missing", SessionCompleted, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteSession() error = %v, want ErrNotFound", err)
	}
}

func TestListSessions(t *testing.T) {
	db := newTestDB(t)

	first := newTestSession(t, db)
	time.Sleep(10 * time.Millisecond)
	second := newTestSession(t, db)

	ticks := []*Tick{
		{SessionID: first.ID, Sequence: 1, Buttons: "A"},
		{SessionID: first.ID, Sequence: 2, ErrorKind: "oracle", ErrorStage: "perception", Error: "timeout"},
		{SessionID: first.ID, Sequence: 3, Buttons: "B"},
	}
	for _, tick := range ticks {
		if err := db.RecordTick(tick); err != nil {
			t.Fatalf("RecordTick() returned error: %v", err)
		}
	}

	sessions, err := db.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions() returned error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("ListSessions() returned %d sessions, want 2", len(sessions))
	}
	if sessions[0].ID != second.ID {
		t.Errorf("newest session should be first, got %s", sessions[0].ID)
	}
	if sessions[0].Ticks != 0 || sessions[0].FailedTicks != 0 {
		t.Errorf("empty session counts = %d/%d", sessions[0].Ticks, sessions[0].FailedTicks)
	}
	if sessions[1].Ticks != 3 || sessions[1].FailedTicks != 1 {
		t.Errorf("session counts = %d/%d, want 3/1", sessions[1].Ticks, sessions[1].FailedTicks)
	}
}

func TestListSessions_Empty(t *testing.T) {
	db := newTestDB(t)

	sessions, err := db.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions() returned error: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("ListSessions() returned %d sessions, want 0", len(sessions))
	}
}

// =============================================================================
// Tick Tests
// =============================================================================

func TestRecordTick(t *testing.T) {
	db := newTestDB(t)
	s := newTestSession(t, db)

	tick := &Tick{
		SessionID:   s.ID,
		Sequence:    1,
		FrameID:     42,
		Observation: "Standing in Littleroot.",
		Plan:        "Visit the lab.",
		PlanCreated: true,
		Buttons:     EncodeButtons([]game.Button{game.ButtonUp, game.ButtonA}),
		Raw:         "<ACTIONS>UP, A</ACTIONS>",
		Reasoning:   "lab is north",
		DurationMS:  1200,
	}
	if err := db.RecordTick(tick); err != nil {
		t.Fatalf("RecordTick() returned error: %v", err)
	}
	if tick.ID == 0 {
		t.Error("RecordTick() did not set ID")
	}

	ticks, err := db.ListTicks(s.ID)
	if err != nil {
		t.Fatalf("ListTicks() returned error: %v", err)
	}
	if len(ticks) != 1 {
		t.Fatalf("ListTicks() returned %d ticks, want 1", len(ticks))
	}

	got := ticks[0]
	if got.FrameID != 42 || !got.PlanCreated || got.DurationMS != 1200 {
		t.Errorf("ListTicks() = %+v", got)
	}
	if got.Reasoning != "lab is north" || got.Raw != "<ACTIONS>UP, A</ACTIONS>" {
		t.Errorf("text fields not round-tripped: %+v", got)
	}
	buttons := got.ButtonList()
	if len(buttons) != 2 || buttons[0] != game.ButtonUp || buttons[1] != game.ButtonA {
		t.Errorf("ButtonList() = %v", buttons)
	}
	if got.Failed() {
		t.Error("successful tick reported as failed")
	}
}

func TestRecordTick_ForeignKey(t *testing.T) {
	db := newTestDB(t)

	err := db.RecordTick(&Tick{SessionID: "missing", Sequence: 1})
	if err == nil {
		t.Error("RecordTick() should fail for an unknown session")
	}
}

func TestListTicks_Ordered(t *testing.T) {
	db := newTestDB(t)
	s := newTestSession(t, db)

	for _, seq := range []int{3, 1, 2} {
		if err := db.RecordTick(&Tick{SessionID: s.ID, Sequence: seq}); err != nil {
			t.Fatalf("RecordTick() returned error: %v", err)
		}
	}

	ticks, err := db.ListTicks(s.ID)
	if err != nil {
		t.Fatalf("ListTicks() returned error: %v", err)
	}
	for i, tick := range ticks {
		if tick.Sequence != i+1 {
			t.Errorf("ticks[%d].Sequence = %d, want %d", i, tick.Sequence, i+1)
		}
	}
}

func TestTick_ButtonList(t *testing.T) {
	tick := &Tick{}
	if tick.ButtonList() != nil {
		t.Error("empty Buttons should yield nil")
	}

	tick.Buttons = EncodeButtons([]game.Button{game.ButtonLeft, game.ButtonLeft, game.ButtonStart})
	if tick.Buttons != "LEFT,LEFT,START" {
		t.Errorf("EncodeButtons() = %q", tick.Buttons)
	}
	if got := tick.ButtonList(); len(got) != 3 || got[2] != game.ButtonStart {
		t.Errorf("ButtonList() = %v", got)
	}
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if a == b {
		t.Error("NewSessionID() returned duplicate IDs")
	}
	if len(a) != 36 {
		t.Errorf("NewSessionID() = %q, want a UUID", a)
	}
}
