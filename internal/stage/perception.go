package stage

import (
	"context"

	"github.com/gerunddev/pokeagent/internal/game"
	"github.com/gerunddev/pokeagent/internal/log"
	"github.com/gerunddev/pokeagent/internal/oracle"
	"github.com/gerunddev/pokeagent/internal/prompt"
)

// Perceive asks the oracle to describe the current situation and returns its
// answer verbatim. A nil frame sends the prompt without an image. Oracle
// errors are returned unchanged.
func Perceive(ctx context.Context, env Env, frame *game.Frame, state *game.State) (string, error) {
	if state == nil {
		return "", ErrNilState
	}

	p, err := env.prompts().Perception(prompt.PerceptionContext{
		State: env.formatter().FormatFull(state),
	})
	if err != nil {
		return "", err
	}

	var observation string
	if frame != nil {
		observation, err = env.Oracle.QueryWithImage(ctx, frame, p, oracle.LabelPerception)
	} else {
		observation, err = env.Oracle.QueryText(ctx, p, oracle.LabelPerception)
	}
	if err != nil {
		return "", err
	}

	log.Debug("observation", "stage", NamePerception, "frame_id", state.FrameID, "len", len(observation))
	return observation, nil
}
