// Package agent runs the decision pipeline against one game session.
//
// An Agent owns a Context and, on every Step, runs perception, planning,
// memory and action in that order against a working copy of it. The copy
// replaces the Context only when all four stages succeed, so a failed tick
// leaves no trace. Agents are constructed per session and are not safe for
// concurrent use.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gerunddev/pokeagent/internal/game"
	"github.com/gerunddev/pokeagent/internal/log"
	"github.com/gerunddev/pokeagent/internal/metrics"
	"github.com/gerunddev/pokeagent/internal/oracle"
	"github.com/gerunddev/pokeagent/internal/prompt"
	"github.com/gerunddev/pokeagent/internal/stage"
	"github.com/gerunddev/pokeagent/internal/tracing"
)

// Agent modes.
const (
	ModeFourModule = "four-module"
	ModeSimple     = "simple"
)

// Options configures a new agent.
type Options struct {
	Mode      string // ModeFourModule (default) or ModeSimple
	Oracle    oracle.Oracle
	Formatter game.Formatter  // nil selects game.DefaultFormatter
	Prompts   *prompt.Builder // nil selects the default system prompt
	Metrics   *metrics.Metrics
}

// TickResult describes one successful tick.
type TickResult struct {
	FrameID       int64
	Observation   string // Empty in simple mode
	Plan          string // Empty in simple mode
	PlanCreated   bool
	PlanCompleted bool
	Buttons       []game.Button
	Raw           string
	Reasoning     string
	Dropped       []string
	Fallback      string
}

// Runner is a session agent of either mode.
type Runner interface {
	Mode() string
	Step(ctx context.Context, state *game.State) ([]game.Button, error)
	StepDetailed(ctx context.Context, state *game.State) (*TickResult, error)
}

// New builds a session agent for opts.Mode. The mode cannot change later.
func New(opts Options) (Runner, error) {
	if opts.Oracle == nil {
		return nil, errors.New("agent: oracle is required")
	}
	switch opts.Mode {
	case "", ModeFourModule:
		return NewFourModule(opts), nil
	case ModeSimple:
		return NewSimple(opts), nil
	default:
		return nil, fmt.Errorf("agent: unknown mode %q", opts.Mode)
	}
}

func envFor(opts Options) stage.Env {
	env := stage.Env{Oracle: opts.Oracle, Formatter: opts.Formatter, Prompts: opts.Prompts}
	if env.Formatter == nil {
		env.Formatter = game.NewDefaultFormatter()
	}
	if env.Prompts == nil {
		env.Prompts = prompt.NewBuilder("")
	}
	return env
}

// Agent is the four-stage orchestrator.
type Agent struct {
	env     stage.Env
	metrics *metrics.Metrics
	ctx     Context
}

var _ Runner = (*Agent)(nil)

// NewFourModule returns an Agent with an empty Context.
func NewFourModule(opts Options) *Agent {
	return &Agent{env: envFor(opts), metrics: opts.Metrics}
}

// Mode implements Runner.
func (a *Agent) Mode() string {
	return ModeFourModule
}

// Snapshot returns a deep copy of the current Context.
func (a *Agent) Snapshot() Context {
	return a.ctx.clone()
}

// Step runs one tick and returns only the buttons.
func (a *Agent) Step(ctx context.Context, state *game.State) ([]game.Button, error) {
	res, err := a.StepDetailed(ctx, state)
	if err != nil {
		return nil, err
	}
	return res.Buttons, nil
}

// StepDetailed runs one tick. On failure it returns a *TickError and the
// Context is exactly as it was before the call.
func (a *Agent) StepDetailed(ctx context.Context, state *game.State) (res *TickResult, err error) {
	start := time.Now()
	current := stage.NamePerception

	var frameID int64 = -1
	if state != nil {
		frameID = state.FrameID
	}
	ctx, span := tracing.StartTickSpan(ctx, ModeFourModule, frameID)

	defer func() {
		if r := recover(); r != nil {
			res, err = nil, panicError(current, r)
		}
		a.finish(start, current, res, err)
		tracing.End(span, err)
	}()

	if state == nil {
		return nil, newTickError(current, stage.ErrNilState)
	}

	work := a.ctx.working()
	result := &TickResult{FrameID: state.FrameID}

	if err := a.run(ctx, current, func(ctx context.Context) error {
		obs, err := stage.Perceive(ctx, a.env, state.Frame, state)
		if err != nil {
			return err
		}
		work.Observation = obs
		work.ObservationBuffer = appendBounded(work.ObservationBuffer,
			stage.Observation{FrameID: state.FrameID, Text: obs, State: state}, MaxObservationBuffer)
		result.Observation = obs
		return nil
	}); err != nil {
		return nil, newTickError(current, err)
	}

	current = stage.NamePlanning
	if err := a.run(ctx, current, func(ctx context.Context) error {
		pr, err := stage.Plan(ctx, a.env, stage.PlanInput{
			CurrentPlan: work.Plan,
			Memory:      work.Memory,
			Observation: work.Observation,
			State:       state,
		})
		if err != nil {
			return err
		}
		work.Plan = pr.Plan
		result.Plan = pr.Plan
		result.PlanCreated = pr.Created
		result.PlanCompleted = pr.Completed
		return nil
	}); err != nil {
		return nil, newTickError(current, err)
	}

	current = stage.NameMemory
	if err := a.run(ctx, current, func(context.Context) error {
		work.Memory = stage.UpdateMemory(work.Memory, work.Plan, work.ActionHistory, work.ObservationBuffer)
		return nil
	}); err != nil {
		return nil, newTickError(current, err)
	}

	current = stage.NameAction
	if err := a.run(ctx, current, func(ctx context.Context) error {
		ar, err := stage.Act(ctx, a.env, stage.ActInput{
			Memory:      work.Memory,
			Plan:        work.Plan,
			Observation: work.Observation,
			State:       state,
			History:     work.ActionHistory,
		})
		if err != nil {
			return err
		}
		work.ActionHistory = appendBounded(work.ActionHistory, ar.Buttons, MaxActionHistory)
		result.Buttons = ar.Buttons
		result.Raw = ar.Raw
		result.Reasoning = ar.Reasoning
		result.Dropped = ar.Dropped
		result.Fallback = ar.Fallback
		return nil
	}); err != nil {
		return nil, newTickError(current, err)
	}

	a.ctx = work
	a.metrics.SetContextSizes(len(a.ctx.ActionHistory), len(a.ctx.Memory))
	return result, nil
}

// run executes one stage inside its own span.
func (a *Agent) run(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	ctx, span := tracing.StartStageSpan(ctx, name)
	defer func() { tracing.End(span, err) }()
	return fn(ctx)
}

func (a *Agent) finish(start time.Time, current string, res *TickResult, err error) {
	observeTick(a.metrics, ModeFourModule, time.Since(start), current, res, err)
}

// observeTick logs and records the outcome of a tick in either mode.
func observeTick(m *metrics.Metrics, mode string, d time.Duration, current string, res *TickResult, err error) {
	if err != nil {
		kind := string(KindInternal)
		var te *TickError
		if errors.As(err, &te) {
			kind = string(te.Kind)
		}
		m.ObserveTick(d, true, kind, current)
		log.Warn("tick failed", "mode", mode, "stage", current, "kind", kind, "duration", d, "error", err)
		return
	}

	m.ObserveTick(d, false, "", "")
	buttons := make([]string, len(res.Buttons))
	for i, b := range res.Buttons {
		buttons[i] = string(b)
	}
	m.ObserveButtons(buttons)
	m.ObserveDropped(len(res.Dropped))
	if res.Fallback != "" {
		m.ObserveFallback(res.Fallback)
	}
	if res.PlanCreated {
		m.ObservePlanCreated()
	}

	log.Info("tick complete", "mode", mode, "frame_id", res.FrameID,
		"buttons", game.JoinButtons(res.Buttons), "plan_created", res.PlanCreated, "duration", d)
}
