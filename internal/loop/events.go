// Package loop drives an agent session: it pulls snapshots from a state
// source, runs one agent tick per snapshot, sends the buttons back and
// records every tick.
package loop

import (
	"errors"
	"time"

	"github.com/gerunddev/pokeagent/internal/agent"
)

// EventType represents the type of a loop event.
type EventType string

const (
	// EventStarted is emitted when the session starts.
	EventStarted EventType = "started"
	// EventTickStart is emitted when a snapshot has been fetched.
	EventTickStart EventType = "tick_start"
	// EventTickEnd is emitted after buttons were sent.
	EventTickEnd EventType = "tick_end"
	// EventTickFailed is emitted when the agent produced no buttons.
	EventTickFailed EventType = "tick_failed"
	// EventMaxTicks is emitted when the tick limit is reached.
	EventMaxTicks EventType = "max_ticks"
	// EventSourceExhausted is emitted when the state source has nothing left.
	EventSourceExhausted EventType = "source_exhausted"
	// EventError is emitted when the session stops on an error.
	EventError EventType = "error"
)

// Event represents an event emitted by the loop.
type Event struct {
	Type      EventType
	SessionID string
	Tick      int
	MaxTicks  int
	Message   string
	FrameID   int64
	Summary   string             // One-line state summary, for EventTickStart
	Result    *agent.TickResult  // For EventTickEnd
	TickError *agent.TickError   // For EventTickFailed
	Error     error
	Duration  time.Duration
}

// NewEvent creates a new loop event with the given type and message.
func NewEvent(t EventType, tick, maxTicks int, msg string) Event {
	return Event{
		Type:     t,
		Tick:     tick,
		MaxTicks: maxTicks,
		Message:  msg,
	}
}

// NewErrorEvent creates a new error event.
func NewErrorEvent(tick, maxTicks int, err error) Event {
	return Event{
		Type:     EventError,
		Tick:     tick,
		MaxTicks: maxTicks,
		Error:    err,
		Message:  err.Error(),
	}
}

// NewTickEndEvent creates an event for a tick whose buttons were sent.
func NewTickEndEvent(tick, maxTicks int, res *agent.TickResult, d time.Duration) Event {
	return Event{
		Type:     EventTickEnd,
		Tick:     tick,
		MaxTicks: maxTicks,
		FrameID:  res.FrameID,
		Result:   res,
		Duration: d,
		Message:  "Tick complete",
	}
}

// NewTickFailedEvent creates an event for a tick that produced no buttons.
// Errors other than *agent.TickError are reported as internal failures.
func NewTickFailedEvent(tick, maxTicks int, frameID int64, err error, d time.Duration) Event {
	var te *agent.TickError
	if !errors.As(err, &te) {
		te = &agent.TickError{Kind: agent.KindInternal, Err: err}
	}
	return Event{
		Type:      EventTickFailed,
		Tick:      tick,
		MaxTicks:  maxTicks,
		FrameID:   frameID,
		TickError: te,
		Error:     err,
		Duration:  d,
		Message:   err.Error(),
	}
}
