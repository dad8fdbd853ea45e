package db

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gerunddev/pokeagent/internal/game"
)

// SessionStatus represents the status of an agent session.
type SessionStatus string

const (
	SessionRunning     SessionStatus = "running"
	SessionCompleted   SessionStatus = "completed"   // Source exhausted or tick limit reached
	SessionInterrupted SessionStatus = "interrupted" // Canceled by the user
	SessionFailed      SessionStatus = "failed"
)

// Session is one run of the agent against a state source.
type Session struct {
	ID          string
	Mode        string // four-module | simple
	Backend     string
	Model       string
	Source      string // Emulator URL or replay path
	Status      SessionStatus
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// SessionSummary is a session with tick counts, for listings.
type SessionSummary struct {
	Session
	Ticks       int
	FailedTicks int
}

// Tick is the recorded outcome of one decision tick.
type Tick struct {
	ID          int64
	SessionID   string
	Sequence    int
	FrameID     int64
	Observation string
	Plan        string
	PlanCreated bool
	Buttons     string // Comma-separated, empty for failed ticks
	Raw         string
	Reasoning   string
	Fallback    string
	ErrorKind   string // Empty for successful ticks
	ErrorStage  string
	Error       string
	DurationMS  int64
	CreatedAt   time.Time
}

// Failed reports whether the tick produced no buttons.
func (t *Tick) Failed() bool {
	return t.ErrorKind != ""
}

// ButtonList splits Buttons back into buttons.
func (t *Tick) ButtonList() []game.Button {
	if t.Buttons == "" {
		return nil
	}
	parts := strings.Split(t.Buttons, ",")
	out := make([]game.Button, len(parts))
	for i, p := range parts {
		out[i] = game.Button(strings.TrimSpace(p))
	}
	return out
}

// EncodeButtons joins buttons for storage.
func EncodeButtons(buttons []game.Button) string {
	parts := make([]string, len(buttons))
	for i, b := range buttons {
		parts[i] = string(b)
	}
	return strings.Join(parts, ",")
}

// NewSessionID generates a new unique session ID.
func NewSessionID() string {
	return uuid.New().String()
}
