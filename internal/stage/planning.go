package stage

import (
	"context"
	"errors"
	"strings"

	"github.com/gerunddev/pokeagent/internal/game"
	"github.com/gerunddev/pokeagent/internal/log"
	"github.com/gerunddev/pokeagent/internal/oracle"
	"github.com/gerunddev/pokeagent/internal/prompt"
)

// ErrEmptyPlan is returned when plan creation yields only whitespace.
var ErrEmptyPlan = errors.New("oracle returned an empty plan")

// completionToken marks an assessment answer as "plan accomplished".
const completionToken = "yes"

// planLogLimit bounds how much of a plan is written to the log.
const planLogLimit = 300

// PlanInput is everything the planning stage reads.
type PlanInput struct {
	CurrentPlan string // Empty means no plan
	Memory      []MemoryEntry
	Observation string
	State       *game.State
}

// PlanResult reports the plan and how it was reached.
type PlanResult struct {
	Plan      string
	Assessed  bool // An assessment call was made
	Completed bool // The assessment judged the previous plan done
	Created   bool // A new plan was created
}

// IsPlanComplete reports whether an assessment answer signals completion:
// any case-insensitive occurrence of "yes", negated phrasings included.
func IsPlanComplete(answer string) bool {
	return strings.Contains(strings.ToLower(answer), completionToken)
}

// Plan runs the assess/create cycle over the single plan slot.
//
// With no current plan it creates one. With a plan it first asks whether the
// plan is accomplished; a "no" returns the plan unchanged without a creation
// call, a "yes" falls through to creation. The returned plan is never empty.
func Plan(ctx context.Context, env Env, in PlanInput) (PlanResult, error) {
	if in.State == nil {
		return PlanResult{}, ErrNilState
	}

	prompts := env.prompts()
	pc := prompt.PlanContext{
		State:       env.formatter().FormatFull(in.State),
		Memory:      RenderMemory(in.Memory),
		Observation: in.Observation,
	}

	var result PlanResult
	if strings.TrimSpace(in.CurrentPlan) != "" {
		pc.Plan = in.CurrentPlan
		p, err := prompts.PlanAssessment(pc)
		if err != nil {
			return PlanResult{}, err
		}

		answer, err := env.Oracle.QueryText(ctx, p, oracle.LabelPlanAssessment)
		if err != nil {
			return PlanResult{}, err
		}
		result.Assessed = true

		if !IsPlanComplete(answer) {
			log.Debug("plan still in progress", "stage", NamePlanning)
			result.Plan = in.CurrentPlan
			return result, nil
		}
		result.Completed = true
		log.Info("plan completed", "stage", NamePlanning, "plan", truncate(in.CurrentPlan, planLogLimit))
	}

	p, err := prompts.PlanCreation(pc)
	if err != nil {
		return PlanResult{}, err
	}

	plan, err := env.Oracle.QueryText(ctx, p, oracle.LabelPlanCreation)
	if err != nil {
		return PlanResult{}, err
	}
	if strings.TrimSpace(plan) == "" {
		return PlanResult{}, ErrEmptyPlan
	}

	result.Plan = plan
	result.Created = true
	log.Info("plan created", "stage", NamePlanning, "plan", truncate(plan, planLogLimit))
	return result, nil
}
