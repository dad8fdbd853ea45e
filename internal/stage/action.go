package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/gerunddev/pokeagent/internal/game"
	"github.com/gerunddev/pokeagent/internal/log"
	"github.com/gerunddev/pokeagent/internal/oracle"
	"github.com/gerunddev/pokeagent/internal/parser"
	"github.com/gerunddev/pokeagent/internal/prompt"
)

// Fallback reasons, reported when the response held no valid button.
const (
	FallbackBattle     = "battle"
	FallbackEmptyParty = "empty_party"
	FallbackDefault    = "default"
)

// ActInput is everything the action stage reads.
type ActInput struct {
	Memory      []MemoryEntry
	Plan        string
	Observation string
	State       *game.State
	History     [][]game.Button // Prior batches, oldest first
}

// ActResult is the chosen buttons plus the response they came from.
type ActResult struct {
	Buttons   []game.Button // Never empty
	Raw       string        // Oracle response, unmodified
	Reasoning string
	Dropped   []string // Rejected tokens
	Fallback  string   // Set when Buttons came from DefaultActions
}

// Act asks the oracle for the next buttons. The response is parsed with
// parser.ParseActions; if no valid button survives, DefaultActions decides.
// Oracle errors are returned unchanged.
func Act(ctx context.Context, env Env, in ActInput) (ActResult, error) {
	if in.State == nil {
		return ActResult{}, ErrNilState
	}

	f := env.formatter()
	p, err := env.prompts().Action(prompt.ActionContext{
		State:         f.FormatFull(in.State),
		ActionContext: ActionContextBlock(f, in.State, in.History),
		Memory:        RenderMemory(in.Memory),
		Plan:          in.Plan,
		Observation:   in.Observation,
	})
	if err != nil {
		return ActResult{}, err
	}

	raw, err := env.Oracle.QueryText(ctx, p, oracle.LabelAction)
	if err != nil {
		return ActResult{}, err
	}

	return Decide(f, in.State, raw), nil
}

// Decide parses raw into buttons and applies the default policy when nothing
// valid remains.
func Decide(f game.Formatter, state *game.State, raw string) ActResult {
	parsed := parser.ParseActions(raw)
	result := ActResult{
		Buttons:   parsed.Buttons,
		Raw:       raw,
		Reasoning: parsed.Reasoning,
		Dropped:   parsed.Dropped,
	}

	if len(result.Buttons) == 0 {
		result.Buttons, result.Fallback = DefaultActions(f, state)
		log.Warn("no valid buttons in response, using default",
			"stage", NameAction, "reason", result.Fallback, "buttons", game.JoinButtons(result.Buttons))
	}
	return result
}

// DefaultActions is the policy for responses without valid buttons: B in
// battle, A three times with an empty party (title and intro screens), else B.
func DefaultActions(f game.Formatter, state *game.State) ([]game.Button, string) {
	if state != nil && state.Game.InBattle {
		return []game.Button{game.ButtonB}, FallbackBattle
	}
	if f.PartyHealth(state).Total == 0 {
		return []game.Button{game.ButtonA, game.ButtonA, game.ButtonA}, FallbackEmptyParty
	}
	return []game.Button{game.ButtonB}, FallbackDefault
}

// ActionContextBlock renders the battle or overworld block, the party status
// and the last RecentActionWindow batches of history.
func ActionContextBlock(f game.Formatter, state *game.State, history [][]game.Button) string {
	var lines []string

	if state != nil && state.Game.InBattle {
		lines = append(lines, "=== BATTLE MODE ===")
		if bi := state.Game.BattleInfo; bi != nil {
			if bi.PlayerPokemon != nil {
				lines = append(lines, "Your Pokemon: "+bi.PlayerPokemon.Describe())
			}
			if bi.OpponentPokemon != nil {
				lines = append(lines, "Opponent: "+bi.OpponentPokemon.Describe())
			}
		}
	} else {
		lines = append(lines, "=== OVERWORLD MODE ===")
		if moves := f.MovementOptions(state); len(moves) > 0 {
			lines = append(lines, "Movement Options:")
			for _, m := range moves {
				lines = append(lines, fmt.Sprintf("  %s: %s", m.Direction, m.Description))
			}
		}
	}

	if health := f.PartyHealth(state); health.Total > 0 {
		lines = append(lines, "=== PARTY STATUS ===")
		lines = append(lines, fmt.Sprintf("Healthy Pokemon: %d/%d", health.Healthy, health.Total))
		if len(health.Critical) > 0 {
			lines = append(lines, "Critical Pokemon:")
			for _, c := range health.Critical {
				lines = append(lines, "  "+c)
			}
		}
	}

	if len(history) > 0 {
		start := len(history) - RecentActionWindow
		if start < 0 {
			start = 0
		}
		lines = append(lines, "Recent Actions: "+FormatBatches(history[start:]))
	}

	return strings.Join(lines, "\n")
}
