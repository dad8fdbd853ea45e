package agent

import (
	"github.com/gerunddev/pokeagent/internal/game"
	"github.com/gerunddev/pokeagent/internal/stage"
)

// Context bounds.
const (
	MaxActionHistory     = 40
	MaxObservationBuffer = 10
)

// Context is the rolling state carried between ticks. It is owned by one
// Agent and changes only when a tick completes.
type Context struct {
	Observation       string // Latest observation; empty before the first tick
	Plan              string // Current plan; empty means none
	Memory            []stage.MemoryEntry
	ActionHistory     [][]game.Button     // Oldest first, at most MaxActionHistory
	ObservationBuffer []stage.Observation // Oldest first, at most MaxObservationBuffer
}

// working returns a copy whose slices can be appended to without touching c.
// Entries are shared; stages never modify them in place.
func (c *Context) working() Context {
	return Context{
		Observation:       c.Observation,
		Plan:              c.Plan,
		Memory:            append([]stage.MemoryEntry(nil), c.Memory...),
		ActionHistory:     append([][]game.Button(nil), c.ActionHistory...),
		ObservationBuffer: append([]stage.Observation(nil), c.ObservationBuffer...),
	}
}

// clone returns a deep copy of c. Observation states are shared.
func (c *Context) clone() Context {
	out := Context{
		Observation: c.Observation,
		Plan:        c.Plan,
	}
	if c.Memory != nil {
		out.Memory = make([]stage.MemoryEntry, len(c.Memory))
		for i, e := range c.Memory {
			out.Memory[i] = stage.MemoryEntry{
				Plan:          e.Plan,
				RecentActions: cloneBatches(e.RecentActions),
				Observation:   e.Observation,
				FrameIDs:      append([]int64(nil), e.FrameIDs...),
			}
		}
	}
	out.ActionHistory = cloneBatches(c.ActionHistory)
	if c.ObservationBuffer != nil {
		out.ObservationBuffer = append([]stage.Observation(nil), c.ObservationBuffer...)
	}
	return out
}

func cloneBatches(batches [][]game.Button) [][]game.Button {
	if batches == nil {
		return nil
	}
	out := make([][]game.Button, len(batches))
	for i, b := range batches {
		out[i] = append([]game.Button(nil), b...)
	}
	return out
}

// appendBounded appends v and drops the oldest entries beyond limit.
func appendBounded[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if over := len(s) - limit; over > 0 {
		s = append(s[:0:0], s[over:]...)
	}
	return s
}
