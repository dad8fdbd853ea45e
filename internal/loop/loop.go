package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gerunddev/pokeagent/internal/agent"
	"github.com/gerunddev/pokeagent/internal/db"
	"github.com/gerunddev/pokeagent/internal/emulator"
	"github.com/gerunddev/pokeagent/internal/game"
	"github.com/gerunddev/pokeagent/internal/log"
)

// Config holds configuration for the loop.
type Config struct {
	MaxTicks        int           // 0 runs until the source is exhausted
	TickDelay       time.Duration // Pause after each tick
	EventBufferSize int           // Size of event channel buffer (default: 1000)

	// Recorded on the session row.
	Backend string
	Model   string
	Source  string
}

// Deps holds dependencies for the loop.
type Deps struct {
	Agent     agent.Runner
	Source    emulator.Source
	DB        *db.DB         // Optional trace store
	Formatter game.Formatter // For tick summaries; nil selects game.DefaultFormatter
}

// Loop runs one agent session.
type Loop struct {
	cfg  Config
	deps Deps

	events    chan Event
	eventsMu  sync.Mutex
	tickMu    sync.RWMutex
	tick      int
	sessionID string
}

// New creates a new Loop with the given configuration and dependencies.
func New(cfg Config, deps Deps) *Loop {
	bufferSize := cfg.EventBufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if deps.Formatter == nil {
		deps.Formatter = game.NewDefaultFormatter()
	}
	return &Loop{
		cfg:    cfg,
		deps:   deps,
		events: make(chan Event, bufferSize),
	}
}

// Events returns the channel for receiving loop events.
// The channel is closed when the loop completes.
func (l *Loop) Events() <-chan Event {
	return l.events
}

// CurrentTick returns the number of the last tick that fetched a snapshot.
// This method is safe to call concurrently.
func (l *Loop) CurrentTick() int {
	l.tickMu.RLock()
	defer l.tickMu.RUnlock()
	return l.tick
}

// SessionID returns the session ID once Run has started.
func (l *Loop) SessionID() string {
	l.tickMu.RLock()
	defer l.tickMu.RUnlock()
	return l.sessionID
}

// Run executes ticks until the source is exhausted, the tick limit is
// reached, the source fails or ctx is canceled. Failed ticks send no
// buttons and do not stop the session.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer close(l.events)

	sessionID, err := l.startSession()
	if err != nil {
		return err
	}

	status := db.SessionCompleted
	defer func() {
		msg := ""
		if err != nil {
			msg = err.Error()
			status = db.SessionFailed
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				status = db.SessionInterrupted
			}
		}
		l.completeSession(sessionID, status, msg)
	}()

	l.emit(NewEvent(EventStarted, 0, l.cfg.MaxTicks, fmt.Sprintf("Session %s started (%s)", sessionID, l.deps.Agent.Mode())))

	for {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		current := l.CurrentTick() + 1
		if l.cfg.MaxTicks > 0 && current > l.cfg.MaxTicks {
			l.emit(NewEvent(EventMaxTicks, current-1, l.cfg.MaxTicks,
				fmt.Sprintf("Reached max ticks (%d)", l.cfg.MaxTicks)))
			return nil
		}

		done, err := l.runTick(ctx, current)
		if err != nil {
			l.emit(NewErrorEvent(current, l.cfg.MaxTicks, err))
			return err
		}
		if done {
			l.emit(NewEvent(EventSourceExhausted, current-1, l.cfg.MaxTicks, "State source exhausted"))
			return nil
		}

		if l.cfg.TickDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.cfg.TickDelay):
			}
		}
	}
}

// runTick fetches one snapshot, steps the agent and sends its buttons.
// Returns done when the source is exhausted.
func (l *Loop) runTick(ctx context.Context, current int) (done bool, err error) {
	state, err := l.deps.Source.State(ctx)
	if errors.Is(err, emulator.ErrExhausted) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to fetch state: %w", err)
	}

	l.tickMu.Lock()
	l.tick = current
	l.tickMu.Unlock()

	start := l.emitTickStart(current, state)

	res, stepErr := l.deps.Agent.StepDetailed(ctx, state)
	elapsed := time.Since(start)

	if stepErr != nil {
		ev := NewTickFailedEvent(current, l.cfg.MaxTicks, state.FrameID, stepErr, elapsed)
		l.recordTick(current, state.FrameID, nil, ev.TickError, elapsed)
		l.emit(ev)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, nil
	}

	l.recordTick(current, state.FrameID, res, nil, elapsed)

	if err := l.deps.Source.Press(ctx, res.Buttons); err != nil {
		return false, fmt.Errorf("failed to send buttons: %w", err)
	}

	l.emit(NewTickEndEvent(current, l.cfg.MaxTicks, res, elapsed))
	return false, nil
}

func (l *Loop) emitTickStart(current int, state *game.State) time.Time {
	ev := NewEvent(EventTickStart, current, l.cfg.MaxTicks, "Tick started")
	ev.FrameID = state.FrameID
	ev.Summary = l.deps.Formatter.FormatSummary(state)
	l.emit(ev)
	return time.Now()
}

// startSession creates the session row, or just an ID without a store.
func (l *Loop) startSession() (string, error) {
	session := &db.Session{
		ID:      db.NewSessionID(),
		Mode:    l.deps.Agent.Mode(),
		Backend: l.cfg.Backend,
		Model:   l.cfg.Model,
		Source:  l.cfg.Source,
	}
	if l.deps.DB != nil {
		if err := l.deps.DB.CreateSession(session); err != nil {
			return "", fmt.Errorf("failed to create session: %w", err)
		}
	}

	l.tickMu.Lock()
	l.sessionID = session.ID
	l.tickMu.Unlock()

	log.Info("session started", "session", session.ID, "mode", session.Mode, "backend", session.Backend)
	return session.ID, nil
}

func (l *Loop) completeSession(id string, status db.SessionStatus, msg string) {
	log.Info("session finished", "session", id, "status", status, "ticks", l.CurrentTick())
	if l.deps.DB == nil {
		return
	}
	if err := l.deps.DB.CompleteSession(id, status, msg); err != nil {
		log.Warn("failed to complete session", "session", id, "error", err)
	}
}

// recordTick stores the tick. Storage failures are logged, never fatal.
func (l *Loop) recordTick(current int, frameID int64, res *agent.TickResult, te *agent.TickError, d time.Duration) {
	if l.deps.DB == nil {
		return
	}

	tick := &db.Tick{
		SessionID:  l.SessionID(),
		Sequence:   current,
		FrameID:    frameID,
		DurationMS: d.Milliseconds(),
	}
	if res != nil {
		tick.Observation = res.Observation
		tick.Plan = res.Plan
		tick.PlanCreated = res.PlanCreated
		tick.Buttons = db.EncodeButtons(res.Buttons)
		tick.Raw = res.Raw
		tick.Reasoning = res.Reasoning
		tick.Fallback = res.Fallback
	}
	if te != nil {
		tick.ErrorKind = string(te.Kind)
		tick.ErrorStage = te.Stage
		tick.Error = te.Error()
	}

	if err := l.deps.DB.RecordTick(tick); err != nil {
		log.Warn("failed to record tick", "tick", current, "error", err)
	}
}

// emit sends an event to the events channel without blocking.
func (l *Loop) emit(event Event) {
	l.eventsMu.Lock()
	defer l.eventsMu.Unlock()

	event.SessionID = l.SessionID()
	select {
	case l.events <- event:
	default:
		// Channel full, log and drop
		log.Warn("event channel full, dropping event", "type", event.Type)
	}
}
