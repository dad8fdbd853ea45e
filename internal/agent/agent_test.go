package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gerunddev/pokeagent/internal/game"
	"github.com/gerunddev/pokeagent/internal/metrics"
	"github.com/gerunddev/pokeagent/internal/oracle"
	"github.com/gerunddev/pokeagent/internal/oracle/oracletest"
	"github.com/gerunddev/pokeagent/internal/stage"
)

// =============================================================================
// Fixtures
// =============================================================================

func snapshot(frameID int64) *game.State {
	return &game.State{
		FrameID: frameID,
		Frame:   &game.Frame{Data: []byte("png")},
		Player: game.PlayerInfo{
			Location: "ROUTE 101",
			Party:    []game.PartyMember{{SpeciesName: "MUDKIP", Level: 5, CurrentHP: 20, MaxHP: 20}},
		},
	}
}

// scriptTick queues the replies for a tick that creates a plan.
func scriptTick(f *oracletest.Fake, obs, plan, actions string) {
	f.Reply(oracle.LabelPerception, obs).
		Reply(oracle.LabelPlanCreation, plan).
		Reply(oracle.LabelAction, actions)
}

// panicOracle panics on every query.
type panicOracle struct{}

func (panicOracle) QueryText(context.Context, string, string) (string, error) {
	panic("boom")
}

func (panicOracle) QueryWithImage(context.Context, *game.Frame, string, string) (string, error) {
	panic("boom")
}

// =============================================================================
// Construction
// =============================================================================

func TestNew(t *testing.T) {
	fake := oracletest.New()

	r, err := New(Options{Oracle: fake})
	require.NoError(t, err)
	assert.Equal(t, ModeFourModule, r.Mode())

	r, err = New(Options{Mode: ModeSimple, Oracle: fake})
	require.NoError(t, err)
	assert.Equal(t, ModeSimple, r.Mode())

	_, err = New(Options{Mode: "three-module", Oracle: fake})
	assert.Error(t, err)

	_, err = New(Options{})
	assert.Error(t, err)
}

func TestNew_IndependentSessions(t *testing.T) {
	fake := oracletest.New()
	scriptTick(fake, "obs", "plan", "A")

	a := NewFourModule(Options{Oracle: fake})
	b := NewFourModule(Options{Oracle: fake})

	_, err := a.Step(context.Background(), snapshot(1))
	require.NoError(t, err)

	assert.Len(t, a.Snapshot().ActionHistory, 1)
	assert.Empty(t, b.Snapshot().ActionHistory)
}

// =============================================================================
// Four-module ticks
// =============================================================================

func TestStep_FirstTick(t *testing.T) {
	fake := oracletest.New()
	scriptTick(fake, "On Route 101.", "Head north to Oldale.", "<REASONING>north</REASONING><ACTIONS>up, up, a, ZORK</ACTIONS>")
	a := NewFourModule(Options{Oracle: fake})

	res, err := a.StepDetailed(context.Background(), snapshot(3))
	require.NoError(t, err)

	assert.Equal(t, []game.Button{game.ButtonUp, game.ButtonUp, game.ButtonA}, res.Buttons)
	assert.Equal(t, "On Route 101.", res.Observation)
	assert.Equal(t, "Head north to Oldale.", res.Plan)
	assert.True(t, res.PlanCreated)
	assert.Equal(t, "north", res.Reasoning)
	assert.Equal(t, []string{"ZORK"}, res.Dropped)
	assert.Empty(t, res.Fallback)
	assert.Equal(t, int64(3), res.FrameID)

	assert.Equal(t, []string{oracle.LabelPerception, oracle.LabelPlanCreation, oracle.LabelAction}, fake.Labels())
	assert.True(t, fake.Calls()[0].WithImage)

	c := a.Snapshot()
	assert.Equal(t, "On Route 101.", c.Observation)
	assert.Equal(t, "Head north to Oldale.", c.Plan)
	assert.Equal(t, [][]game.Button{{game.ButtonUp, game.ButtonUp, game.ButtonA}}, c.ActionHistory)
	require.Len(t, c.ObservationBuffer, 1)
	assert.Equal(t, int64(3), c.ObservationBuffer[0].FrameID)
	require.Len(t, c.Memory, 1)
	assert.Equal(t, "Head north to Oldale.", c.Memory[0].Plan)
	assert.Empty(t, c.Memory[0].RecentActions, "memory folds history from before this tick's action")
}

func TestStep_StagesSeeUpdatedContext(t *testing.T) {
	fake := oracletest.New()
	scriptTick(fake, "first observation", "first plan", "A")
	fake.Reply(oracle.LabelPerception, "second observation").
		Reply(oracle.LabelPlanAssessment, "Not done.").
		Reply(oracle.LabelAction, "B")
	a := NewFourModule(Options{Oracle: fake})

	_, err := a.Step(context.Background(), snapshot(1))
	require.NoError(t, err)
	_, err = a.Step(context.Background(), snapshot(2))
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 6)
	assessment := calls[4]
	assert.Equal(t, oracle.LabelPlanAssessment, assessment.Label)
	assert.Contains(t, assessment.Prompt, "second observation", "planning reads this tick's observation")
	assert.Contains(t, assessment.Prompt, "first plan")

	action := calls[5]
	assert.Contains(t, action.Prompt, "second observation")
	assert.Contains(t, action.Prompt, "Recent Actions: [A]")
}

func TestStep_AssessmentYesReplacesPlan(t *testing.T) {
	fake := oracletest.New()
	scriptTick(fake, "obs", "Leave the truck.", "A")
	fake.Reply(oracle.LabelPerception, "obs").
		Reply(oracle.LabelPlanAssessment, "Yes, the goal is complete").
		Reply(oracle.LabelPlanCreation, "Meet Mom.").
		Reply(oracle.LabelAction, "A")
	a := NewFourModule(Options{Oracle: fake})

	_, err := a.Step(context.Background(), snapshot(1))
	require.NoError(t, err)
	res, err := a.StepDetailed(context.Background(), snapshot(2))
	require.NoError(t, err)

	assert.True(t, res.PlanCompleted)
	assert.True(t, res.PlanCreated)
	assert.Equal(t, "Meet Mom.", a.Snapshot().Plan)
}

func TestStep_AssessmentNoKeepsPlan(t *testing.T) {
	fake := oracletest.New()
	scriptTick(fake, "obs", "Leave the truck.", "A")
	fake.Reply(oracle.LabelPerception, "obs").
		Reply(oracle.LabelPlanAssessment, "No further progress").
		Reply(oracle.LabelAction, "A")
	a := NewFourModule(Options{Oracle: fake})

	_, err := a.Step(context.Background(), snapshot(1))
	require.NoError(t, err)
	res, err := a.StepDetailed(context.Background(), snapshot(2))
	require.NoError(t, err)

	assert.False(t, res.PlanCreated)
	assert.Equal(t, "Leave the truck.", a.Snapshot().Plan)
	assert.NotContains(t, fake.Labels()[3:], oracle.LabelPlanCreation)
}

func TestStep_Bounds(t *testing.T) {
	fake := oracletest.New()
	fake.Default = &oracletest.Reply{Text: "<ACTIONS>RIGHT</ACTIONS>"}
	a := NewFourModule(Options{Oracle: fake})

	const ticks = 60
	for i := 1; i <= ticks; i++ {
		_, err := a.Step(context.Background(), snapshot(int64(i)))
		require.NoError(t, err)

		c := a.Snapshot()
		require.LessOrEqual(t, len(c.ActionHistory), MaxActionHistory)
		require.LessOrEqual(t, len(c.ObservationBuffer), MaxObservationBuffer)
	}

	c := a.Snapshot()
	assert.Len(t, c.ActionHistory, MaxActionHistory)
	require.Len(t, c.ObservationBuffer, MaxObservationBuffer)
	assert.Equal(t, int64(ticks-MaxObservationBuffer+1), c.ObservationBuffer[0].FrameID, "oldest evicted first")
	assert.Equal(t, int64(ticks), c.ObservationBuffer[MaxObservationBuffer-1].FrameID)
	assert.Len(t, c.Memory, ticks, "memory has no cap of its own")
}

func TestStep_HistoryIsFIFO(t *testing.T) {
	fake := oracletest.New()
	fake.Reply(oracle.LabelPerception, "o").Reply(oracle.LabelPlanCreation, "p")
	fake.Default = &oracletest.Reply{Text: "no"}
	buttons := []game.Button{game.ButtonUp, game.ButtonDown, game.ButtonLeft, game.ButtonRight}
	a := NewFourModule(Options{Oracle: fake})

	for i := 0; i < MaxActionHistory+3; i++ {
		fake.Reply(oracle.LabelAction, string(buttons[i%len(buttons)]))
		_, err := a.Step(context.Background(), snapshot(int64(i)))
		require.NoError(t, err)
	}

	h := a.Snapshot().ActionHistory
	require.Len(t, h, MaxActionHistory)
	assert.Equal(t, buttons[3%len(buttons)], h[0][0])
	assert.Equal(t, buttons[(MaxActionHistory+2)%len(buttons)], h[MaxActionHistory-1][0])
}

// =============================================================================
// Failures
// =============================================================================

func TestStep_PerceptionFailureRollsBack(t *testing.T) {
	fake := oracletest.New()
	scriptTick(fake, "obs", "plan", "A, B")
	a := NewFourModule(Options{Oracle: fake})

	_, err := a.Step(context.Background(), snapshot(1))
	require.NoError(t, err)
	before := a.Snapshot()

	fake.Fail(oracle.LabelPerception, errors.New("connection refused"))
	buttons, err := a.Step(context.Background(), snapshot(2))
	assert.Nil(t, buttons)

	var te *TickError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindOracle, te.Kind)
	assert.Equal(t, stage.NamePerception, te.Stage)
	assert.True(t, te.Retryable())

	assert.Equal(t, before, a.Snapshot())
}

func TestStep_LateFailureRollsBackEarlierStages(t *testing.T) {
	fake := oracletest.New()
	fake.Reply(oracle.LabelPerception, "obs").
		Reply(oracle.LabelPlanCreation, "a brand new plan").
		Fail(oracle.LabelAction, errors.New("503"))
	a := NewFourModule(Options{Oracle: fake})

	_, err := a.Step(context.Background(), snapshot(1))

	var te *TickError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, stage.NameAction, te.Stage)

	c := a.Snapshot()
	assert.Empty(t, c.Observation)
	assert.Empty(t, c.Plan)
	assert.Empty(t, c.Memory)
	assert.Empty(t, c.ActionHistory)
	assert.Empty(t, c.ObservationBuffer)
}

func TestStep_ErrorKinds(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *oracletest.Fake)
		stage string
		kind  Kind
	}{
		{
			name:  "oracle failure in planning",
			setup: func(f *oracletest.Fake) { f.Reply(oracle.LabelPerception, "o").Fail(oracle.LabelPlanCreation, errors.New("quota")) },
			stage: stage.NamePlanning,
			kind:  KindOracle,
		},
		{
			name:  "empty plan",
			setup: func(f *oracletest.Fake) { f.Reply(oracle.LabelPerception, "o").Reply(oracle.LabelPlanCreation, "  ") },
			stage: stage.NamePlanning,
			kind:  KindOracle,
		},
		{
			name:  "untagged failure",
			setup: func(f *oracletest.Fake) { f.FailRaw(oracle.LabelPerception, errors.New("bad state")) },
			stage: stage.NamePerception,
			kind:  KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := oracletest.New()
			tt.setup(fake)
			a := NewFourModule(Options{Oracle: fake})

			_, err := a.Step(context.Background(), snapshot(1))
			var te *TickError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.kind, te.Kind)
			assert.Equal(t, tt.stage, te.Stage)
		})
	}
}

func TestStep_NilState(t *testing.T) {
	a := NewFourModule(Options{Oracle: oracletest.New()})

	_, err := a.Step(context.Background(), nil)
	var te *TickError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindInternal, te.Kind)
	assert.ErrorIs(t, err, stage.ErrNilState)
}

func TestStep_PanicIsContained(t *testing.T) {
	a := NewFourModule(Options{Oracle: panicOracle{}})

	var err error
	assert.NotPanics(t, func() {
		_, err = a.Step(context.Background(), snapshot(1))
	})

	var te *TickError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindInternal, te.Kind)
	assert.Equal(t, stage.NamePerception, te.Stage)
	assert.Contains(t, err.Error(), "panic: boom")
	assert.Equal(t, Context{}, a.Snapshot())
}

func TestStep_CanceledContext(t *testing.T) {
	fake := oracletest.New()
	scriptTick(fake, "o", "p", "A")
	a := NewFourModule(Options{Oracle: fake})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Step(ctx, snapshot(1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Context{}, a.Snapshot())
}

// =============================================================================
// Snapshot, metrics
// =============================================================================

func TestSnapshot_IsDeepCopy(t *testing.T) {
	fake := oracletest.New()
	scriptTick(fake, "o", "p", "A")
	a := NewFourModule(Options{Oracle: fake})
	_, err := a.Step(context.Background(), snapshot(1))
	require.NoError(t, err)

	c := a.Snapshot()
	c.ActionHistory[0][0] = game.ButtonStart
	c.Memory[0].FrameIDs[0] = 99
	c.Plan = "tampered"

	fresh := a.Snapshot()
	assert.Equal(t, game.ButtonA, fresh.ActionHistory[0][0])
	assert.Equal(t, int64(1), fresh.Memory[0].FrameIDs[0])
	assert.Equal(t, "p", fresh.Plan)
}

func TestStep_Metrics(t *testing.T) {
	m := metrics.New()
	fake := oracletest.New()
	scriptTick(fake, "o", "p", "garbage")
	fake.Fail(oracle.LabelPerception, errors.New("down"))
	a := NewFourModule(Options{Oracle: fake, Metrics: m})

	_, err := a.Step(context.Background(), snapshot(1))
	require.NoError(t, err)
	_, err = a.Step(context.Background(), snapshot(2))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TickFailures.WithLabelValues("oracle", "perception")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackActions.WithLabelValues(stage.FallbackDefault)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanReplacements))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionHistorySize))
}

func TestAppendBounded(t *testing.T) {
	var s []int
	for i := 0; i < 7; i++ {
		s = appendBounded(s, i, 3)
	}
	assert.Equal(t, []int{4, 5, 6}, s)
}

// =============================================================================
// Simple mode
// =============================================================================

func TestSimple_Step(t *testing.T) {
	fake := oracletest.New().Reply(oracle.LabelSimple, "<ACTIONS>LEFT, a</ACTIONS>")
	s := NewSimple(Options{Oracle: fake})

	res, err := s.StepDetailed(context.Background(), snapshot(4))
	require.NoError(t, err)
	assert.Equal(t, []game.Button{game.ButtonLeft, game.ButtonA}, res.Buttons)
	assert.Empty(t, res.Plan)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, oracle.LabelSimple, calls[0].Label)
	assert.True(t, calls[0].WithImage)
	assert.Equal(t, [][]game.Button{{game.ButtonLeft, game.ButtonA}}, s.History())
}

func TestSimple_FallbackAndBounds(t *testing.T) {
	fake := oracletest.New()
	fake.Default = &oracletest.Reply{Text: "hmm"}
	s := NewSimple(Options{Oracle: fake})

	state := snapshot(1)
	state.Game.InBattle = true
	for i := 0; i < MaxActionHistory+5; i++ {
		buttons, err := s.Step(context.Background(), state)
		require.NoError(t, err)
		assert.Equal(t, []game.Button{game.ButtonB}, buttons)
	}
	assert.Len(t, s.History(), MaxActionHistory)
}

func TestSimple_FailureKeepsHistory(t *testing.T) {
	fake := oracletest.New().
		Reply(oracle.LabelSimple, "A").
		Fail(oracle.LabelSimple, fmt.Errorf("timeout"))
	s := NewSimple(Options{Oracle: fake})

	_, err := s.Step(context.Background(), snapshot(1))
	require.NoError(t, err)
	_, err = s.Step(context.Background(), snapshot(2))

	var te *TickError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindOracle, te.Kind)
	assert.Equal(t, simpleStage, te.Stage)
	assert.Len(t, s.History(), 1)
}
