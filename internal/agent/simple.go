package agent

import (
	"context"
	"time"

	"github.com/gerunddev/pokeagent/internal/game"
	"github.com/gerunddev/pokeagent/internal/metrics"
	"github.com/gerunddev/pokeagent/internal/oracle"
	"github.com/gerunddev/pokeagent/internal/prompt"
	"github.com/gerunddev/pokeagent/internal/stage"
	"github.com/gerunddev/pokeagent/internal/tracing"
)

// simpleStage names the single stage in tick errors.
const simpleStage = "simple"

// Simple decides from one image-and-state oracle call per tick, skipping
// perception, planning and memory. It keeps only its own action history.
type Simple struct {
	env     stage.Env
	metrics *metrics.Metrics
	history [][]game.Button
}

var _ Runner = (*Simple)(nil)

// NewSimple returns a Simple agent with empty history.
func NewSimple(opts Options) *Simple {
	return &Simple{env: envFor(opts), metrics: opts.Metrics}
}

// Mode implements Runner.
func (s *Simple) Mode() string {
	return ModeSimple
}

// History returns a copy of the recorded action batches, oldest first.
func (s *Simple) History() [][]game.Button {
	return cloneBatches(s.history)
}

// Step implements Runner.
func (s *Simple) Step(ctx context.Context, state *game.State) ([]game.Button, error) {
	res, err := s.StepDetailed(ctx, state)
	if err != nil {
		return nil, err
	}
	return res.Buttons, nil
}

// StepDetailed implements Runner. History is unchanged on failure.
func (s *Simple) StepDetailed(ctx context.Context, state *game.State) (res *TickResult, err error) {
	start := time.Now()

	var frameID int64 = -1
	if state != nil {
		frameID = state.FrameID
	}
	ctx, span := tracing.StartTickSpan(ctx, ModeSimple, frameID)

	defer func() {
		if r := recover(); r != nil {
			res, err = nil, panicError(simpleStage, r)
		}
		observeTick(s.metrics, ModeSimple, time.Since(start), simpleStage, res, err)
		tracing.End(span, err)
	}()

	if state == nil {
		return nil, newTickError(simpleStage, stage.ErrNilState)
	}

	f := s.env.Formatter
	p, err := s.env.Prompts.Simple(prompt.SimpleContext{
		State:         f.FormatFull(state),
		ActionContext: stage.ActionContextBlock(f, state, s.history),
	})
	if err != nil {
		return nil, newTickError(simpleStage, err)
	}

	var raw string
	if state.Frame != nil {
		raw, err = s.env.Oracle.QueryWithImage(ctx, state.Frame, p, oracle.LabelSimple)
	} else {
		raw, err = s.env.Oracle.QueryText(ctx, p, oracle.LabelSimple)
	}
	if err != nil {
		return nil, newTickError(simpleStage, err)
	}

	ar := stage.Decide(f, state, raw)
	s.history = appendBounded(s.history, ar.Buttons, MaxActionHistory)

	return &TickResult{
		FrameID:   state.FrameID,
		Buttons:   ar.Buttons,
		Raw:       ar.Raw,
		Reasoning: ar.Reasoning,
		Dropped:   ar.Dropped,
		Fallback:  ar.Fallback,
	}, nil
}
