// Package prompt builds the oracle prompts for every decision stage.
package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/gerunddev/pokeagent/internal/game"
)

// ErrEmptyPlan is returned when an assessment prompt is requested without a plan.
var ErrEmptyPlan = errors.New("plan cannot be empty")

// DefaultSystemPrompt is prepended to every prompt unless the config supplies one.
const DefaultSystemPrompt = `You are an autonomous agent playing Pokemon Emerald on a Game Boy Advance emulator.
Your goal is to make steady progress through the game as quickly as possible: follow the story,
win battles, keep your party healthy and reach new areas. You see the screen and a structured
readout of game memory each step, and you act only by pressing buttons.

`

// PerceptionTemplate asks the oracle to describe the current situation.
const PerceptionTemplate = `You are actively playing Pokemon Emerald. Observe and describe your current situation in detail using the screen and the game state below.

<game_state>
{{.State}}
</game_state>

Describe the situation according to whichever of these applies:
- CUTSCENE or TITLE SCREEN: What is being shown?
- MAP: What terrain are you on? Which tiles are traversable and which are blocked? Are there NPCs, items or doors nearby? Use your coordinates to place yourself.
- BATTLE: What is the matchup? What moves are available and what strategy makes sense?
- DIALOGUE: What is being said? Does it matter for your progress? Can you respond?
- MENU: Which menu is open? What options are available and which fits your needs?

Combine the screen with the state data. Focus on the current, immediate situation so the next action can be chosen well.`

// PlanAssessmentTemplate asks whether the current plan has been accomplished.
const PlanAssessmentTemplate = `PLAN ASSESSMENT TASK
You are playing Pokemon Emerald. Assess your current situation and whether your current plan has been accomplished.

<context>
<game_state>
{{.State}}
</game_state>

<current_plan>
{{.Plan}}
</current_plan>

<memory_context>
{{if .Memory}}{{.Memory}}{{else}}No memory yet.{{end}}
</memory_context>

<current_observation>
{{if .Observation}}{{.Observation}}{{else}}No observation yet.{{end}}
</current_observation>
</context>

Consider your location, party, money, traversability and recent actions.
Has the objective of the current plan been accomplished? Answer YES if it has, otherwise explain what remains.`

// PlanCreationTemplate asks for a fresh plan.
const PlanCreationTemplate = `PLAN CREATION TASK
You are playing Pokemon Emerald. Assess your current situation and make a plan for the next goal.

<context>
<game_state>
{{.State}}
</game_state>

<memory_context>
{{if .Memory}}{{.Memory}}{{else}}No memory yet.{{end}}
</memory_context>

<current_observation>
{{if .Observation}}{{.Observation}}{{else}}No observation yet.{{end}}
</current_observation>
</context>

Consider your location, party, money, traversability and recent actions.

1. OBJECTIVES:
- Concrete steps toward the immediate goal
- Account for party health and levels
- Account for terrain: tall grass, water, obstacles

2. IMMEDIATE NEXT GOAL (next few actions):
- In battle: what is the strategy given HP and levels?
- On the map: how do you get where you need to go?
- In a menu or dialogue: how do you get through it quickly?
- Does the party need healing at a Pokemon Center?

Describe the immediate next goal in detail. You are speedrunning, so prioritize progress.`

// ActionTemplate asks for the next button presses.
const ActionTemplate = `ACTION DECISION TASK
You are playing Pokemon Emerald with a speedrunning mindset. Make quick, efficient decisions.

<context>
<game_state>
{{.State}}
</game_state>

<action_context>
{{.ActionContext}}
</action_context>

<memory_context>
{{if .Memory}}{{.Memory}}{{else}}No memory yet.{{end}}
</memory_context>

<current_plan>
{{if .Plan}}{{.Plan}}{{else}}No plan yet{{end}}
</current_plan>

<latest_observation>
{{.Observation}}
</latest_observation>
</context>
` + buttonRules

// SimpleTemplate drives the single-call agent: one look at the screen and state, then act.
const SimpleTemplate = `You are playing Pokemon Emerald with a speedrunning mindset. Look at the screen and the game state, then decide your next button presses.

<game_state>
{{.State}}
</game_state>

<action_context>
{{.ActionContext}}
</action_context>
` + buttonRules

// buttonRules is shared by every prompt that asks for buttons.
const buttonRules = `
BATTLE: choose moves by type effectiveness and damage; switch or use items when a Pokemon is in critical condition.
NAVIGATION: follow the movement options above, avoid BLOCKED tiles, avoid tall grass when the party is weak, go around water unless you have Surf.
MENU/DIALOGUE: A starts dialogue, B advances it where possible; in menus use the arrows, A to select and B to back out. When stuck in a menu press B repeatedly.
HEALTH: head to a Pokemon Center when the party is low; heal immediately if nobody can fight.

Output sequences when you know what comes next (e.g. "RIGHT, RIGHT, RIGHT, A" to enter a door). If unsure, output a single button and reassess.

Valid buttons: {{.Buttons}}
- A: interact, confirm, advance dialogue, use moves
- B: cancel, back out, flee
- UP/DOWN/LEFT/RIGHT: move, navigate menus
- START: open the main menu

CRITICAL: NEVER save the game from the in-game menu. Saving ends the run. If a save prompt appears, press B to cancel it.

Output format:
<REASONING> step-by-step reasoning for reaching the immediate next goal </REASONING>
<ACTIONS> comma-separated buttons only, at most 5 </ACTIONS>

Example:
<REASONING> The door is three tiles to the right, so I walk right and press A. </REASONING>
<ACTIONS> RIGHT, RIGHT, RIGHT, A </ACTIONS>

ACTIONS MUST BE INSIDE <ACTIONS> </ACTIONS> TAGS AND USE VALID BUTTONS ONLY: {{.Buttons}}`

var (
	perceptionTemplate     = template.Must(template.New("perception").Parse(PerceptionTemplate))
	planAssessmentTemplate = template.Must(template.New("plan-assessment").Parse(PlanAssessmentTemplate))
	planCreationTemplate   = template.Must(template.New("plan-creation").Parse(PlanCreationTemplate))
	actionTemplate         = template.Must(template.New("action").Parse(ActionTemplate))
	simpleTemplate         = template.Must(template.New("simple").Parse(SimpleTemplate))
)

// PerceptionContext holds the data for the perception prompt.
type PerceptionContext struct {
	State string // Formatted game state
}

// PlanContext holds the data for both planning prompts.
type PlanContext struct {
	State       string
	Plan        string // Only used by the assessment prompt
	Memory      string
	Observation string
}

// ActionContext holds the data for the action prompt.
type ActionContext struct {
	State         string
	ActionContext string // Battle/overworld, party and recent-action block
	Memory        string
	Plan          string
	Observation   string
	Buttons       string // Filled in by the builder
}

// SimpleContext holds the data for the single-call prompt.
type SimpleContext struct {
	State         string
	ActionContext string
	Buttons       string // Filled in by the builder
}

// Builder renders prompts with a fixed system preamble.
type Builder struct {
	system  string
	buttons string
}

// NewBuilder returns a Builder that prepends system to every prompt.
// An empty or whitespace-only system prompt selects DefaultSystemPrompt.
func NewBuilder(system string) *Builder {
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemPrompt
	} else if !strings.HasSuffix(system, "\n") {
		system += "\n\n"
	}
	return &Builder{system: system, buttons: game.JoinButtons(game.ValidButtons)}
}

// System returns the preamble in use.
func (b *Builder) System() string {
	return b.system
}

// Perception builds the observation prompt.
func (b *Builder) Perception(ctx PerceptionContext) (string, error) {
	return b.render(perceptionTemplate, ctx)
}

// PlanAssessment builds the plan-completion prompt.
// Returns ErrEmptyPlan if ctx.Plan is empty or whitespace-only.
func (b *Builder) PlanAssessment(ctx PlanContext) (string, error) {
	if strings.TrimSpace(ctx.Plan) == "" {
		return "", ErrEmptyPlan
	}
	normalizePlan(&ctx)
	return b.render(planAssessmentTemplate, ctx)
}

// PlanCreation builds the new-plan prompt. ctx.Plan is ignored.
func (b *Builder) PlanCreation(ctx PlanContext) (string, error) {
	ctx.Plan = ""
	normalizePlan(&ctx)
	return b.render(planCreationTemplate, ctx)
}

// Action builds the button-decision prompt.
func (b *Builder) Action(ctx ActionContext) (string, error) {
	if strings.TrimSpace(ctx.Memory) == "" {
		ctx.Memory = ""
	}
	if strings.TrimSpace(ctx.Plan) == "" {
		ctx.Plan = ""
	}
	ctx.Buttons = b.buttons
	return b.render(actionTemplate, ctx)
}

// Simple builds the single-call prompt.
func (b *Builder) Simple(ctx SimpleContext) (string, error) {
	ctx.Buttons = b.buttons
	return b.render(simpleTemplate, ctx)
}

func (b *Builder) render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(b.system)
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s prompt template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// normalizePlan turns whitespace-only fields into empty strings so the
// templates fall back to their placeholder text.
func normalizePlan(ctx *PlanContext) {
	if strings.TrimSpace(ctx.Memory) == "" {
		ctx.Memory = ""
	}
	if strings.TrimSpace(ctx.Observation) == "" {
		ctx.Observation = ""
	}
}
