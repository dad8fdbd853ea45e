// Package parser extracts button presses and reasoning from oracle responses.
package parser

import (
	"strings"

	"github.com/gerunddev/pokeagent/internal/game"
	"github.com/gerunddev/pokeagent/internal/log"
)

// Response markers. Matching is case-insensitive.
const (
	ActionsOpen    = "<ACTIONS>"
	ActionsClose   = "</ACTIONS>"
	ReasoningOpen  = "<REASONING>"
	ReasoningClose = "</REASONING>"
)

// MaxActions is the most buttons a single response may yield.
const MaxActions = 10

// ActionResult holds the result of parsing an action response.
type ActionResult struct {
	Buttons   []game.Button // Valid buttons in response order, at most MaxActions
	Reasoning string        // Content of the reasoning segment (empty if not found)
	Tagged    bool          // True if the actions segment was found
	Dropped   []string      // Candidate tokens rejected as invalid
	Truncated bool          // True if valid buttons beyond MaxActions were discarded
	Raw       string        // Original response
}

// ParseActions parses an action response.
//
// The parser is lenient. If both action markers are present (the closing one
// after the opening one) the text between them is the token list; otherwise
// the whole response is. Tokens are comma-separated, trimmed and uppercased.
// Tokens outside game.ValidButtons are dropped silently and the survivors are
// truncated to MaxActions. The result may be empty; choosing a default is the
// caller's job.
func ParseActions(response string) *ActionResult {
	result := &ActionResult{Raw: response}

	segment, found := extractTagged(response, ActionsOpen, ActionsClose)
	result.Tagged = found
	if !found {
		segment = response
	}

	for _, candidate := range strings.Split(segment, ",") {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		button, err := game.ParseButton(candidate)
		if err != nil {
			result.Dropped = append(result.Dropped, strings.TrimSpace(candidate))
			continue
		}
		result.Buttons = append(result.Buttons, button)
	}

	if len(result.Buttons) > MaxActions {
		result.Buttons = result.Buttons[:MaxActions]
		result.Truncated = true
	}

	if reasoning, ok := extractTagged(response, ReasoningOpen, ReasoningClose); ok {
		result.Reasoning = reasoning
	}

	if len(result.Dropped) > 0 {
		log.Debug("dropped invalid action tokens", "tokens", result.Dropped, "tagged", result.Tagged)
	}

	return result
}

// extractTagged returns the trimmed text between open and close (both matched
// case-insensitively). The close marker is searched for after the open marker.
// Returns false if either marker is missing.
func extractTagged(s, open, close string) (string, bool) {
	start := indexFold(s, open)
	if start == -1 {
		return "", false
	}
	contentStart := start + len(open)

	end := indexFold(s[contentStart:], close)
	if end == -1 {
		return "", false
	}

	return strings.TrimSpace(s[contentStart : contentStart+end]), true
}

// indexFold is strings.Index with ASCII case folding. Offsets refer to s
// itself, so slicing s with them is always safe.
func indexFold(s, marker string) int {
	for i := 0; i+len(marker) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(marker)], marker) {
			return i
		}
	}
	return -1
}
