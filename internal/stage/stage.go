// Package stage implements the four decision stages run on every tick:
// perception, planning, memory and action. Stages never touch the agent's
// context; callers pass inputs in and store results themselves.
package stage

import (
	"errors"
	"unicode/utf8"

	"github.com/gerunddev/pokeagent/internal/game"
	"github.com/gerunddev/pokeagent/internal/oracle"
	"github.com/gerunddev/pokeagent/internal/prompt"
)

// Stage names used in logs, spans, metrics and tick errors.
const (
	NamePerception = "perception"
	NamePlanning   = "planning"
	NameMemory     = "memory"
	NameAction     = "action"
)

// ErrNilState is returned when a stage is handed no snapshot.
var ErrNilState = errors.New("state snapshot is required")

// Env holds the collaborators shared by every stage.
type Env struct {
	Oracle    oracle.Oracle
	Formatter game.Formatter  // nil selects game.DefaultFormatter
	Prompts   *prompt.Builder // nil selects the default system prompt
}

func (e Env) formatter() game.Formatter {
	if e.Formatter == nil {
		return game.NewDefaultFormatter()
	}
	return e.Formatter
}

func (e Env) prompts() *prompt.Builder {
	if e.Prompts == nil {
		return prompt.NewBuilder("")
	}
	return e.Prompts
}

// Observation is one perception result kept for short-term recall.
type Observation struct {
	FrameID int64
	Text    string
	State   *game.State
}

// truncate shortens s to at most n bytes without splitting a rune, marking
// the cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
