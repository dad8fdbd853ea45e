package stage

import (
	"fmt"
	"strings"

	"github.com/gerunddev/pokeagent/internal/game"
)

// RecentActionWindow is how many prior action batches a memory entry and the
// action prompt look back over.
const RecentActionWindow = 5

// memoryRenderWindow is how many of the newest entries RenderMemory shows.
const memoryRenderWindow = 3

// memoryFieldLimit bounds each rendered plan or observation.
const memoryFieldLimit = 300

// MemoryEntry is one tick's contribution to memory.
type MemoryEntry struct {
	Plan          string
	RecentActions [][]game.Button
	Observation   string
	FrameIDs      []int64
}

// UpdateMemory returns memory with one entry appended that captures plan,
// the last RecentActionWindow batches of history, the newest observation in
// window, and the frame ids window spans. It never modifies its arguments
// and returns equal results for equal inputs.
func UpdateMemory(memory []MemoryEntry, plan string, history [][]game.Button, window []Observation) []MemoryEntry {
	out := make([]MemoryEntry, len(memory), len(memory)+1)
	copy(out, memory)

	entry := MemoryEntry{Plan: plan}

	start := len(history) - RecentActionWindow
	if start < 0 {
		start = 0
	}
	for _, batch := range history[start:] {
		entry.RecentActions = append(entry.RecentActions, append([]game.Button(nil), batch...))
	}

	if len(window) > 0 {
		entry.Observation = window[len(window)-1].Text
		entry.FrameIDs = make([]int64, len(window))
		for i, o := range window {
			entry.FrameIDs[i] = o.FrameID
		}
	}

	return append(out, entry)
}

// RenderMemory formats the newest entries for a prompt. Returns "" for an
// empty memory so templates can show their placeholder.
func RenderMemory(memory []MemoryEntry) string {
	if len(memory) == 0 {
		return ""
	}

	start := len(memory) - memoryRenderWindow
	if start < 0 {
		start = 0
	}

	var sb strings.Builder
	for i := start; i < len(memory); i++ {
		e := memory[i]
		if i > start {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[%d] Plan: %s\n", i+1, oneLine(truncate(e.Plan, memoryFieldLimit)))
		if e.Observation != "" {
			fmt.Fprintf(&sb, "    Observation: %s\n", oneLine(truncate(e.Observation, memoryFieldLimit)))
		}
		if len(e.RecentActions) > 0 {
			fmt.Fprintf(&sb, "    Actions: %s\n", FormatBatches(e.RecentActions))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatBatches renders batches as "[UP, UP], [A]".
func FormatBatches(batches [][]game.Button) string {
	parts := make([]string, len(batches))
	for i, b := range batches {
		parts[i] = "[" + game.JoinButtons(b) + "]"
	}
	return strings.Join(parts, ", ")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
