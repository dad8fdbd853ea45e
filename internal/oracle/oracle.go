// Package oracle is the boundary to the vision/text model that every stage
// consults. Backends differ only in transport; the Client in front of them
// adds rate limiting, timeouts, metrics, tracing and error tagging.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/gerunddev/pokeagent/internal/game"
)

// Call labels identify which stage issued a query.
const (
	LabelPerception     = "PERCEPTION"
	LabelPlanAssessment = "PLANNING-ASSESSMENT"
	LabelPlanCreation   = "PLANNING-CREATION"
	LabelAction         = "ACTION"
	LabelSimple         = "SIMPLE"
)

// Oracle answers prompts with free-form text. Both calls block until the
// backend responds or ctx ends.
type Oracle interface {
	QueryText(ctx context.Context, prompt, label string) (string, error)
	QueryWithImage(ctx context.Context, frame *game.Frame, prompt, label string) (string, error)
}

// Error tags a failed oracle call with its backend and label.
type Error struct {
	Backend string
	Label   string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("oracle %s (%s): %v", e.Backend, e.Label, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns err tagged as an oracle failure. Nil stays nil and errors that
// already carry a tag are returned unchanged.
func Wrap(backend, label string, err error) error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return err
	}
	return &Error{Backend: backend, Label: label, Err: err}
}

// IsOracleError reports whether err originated from an oracle call.
func IsOracleError(err error) bool {
	var oe *Error
	return errors.As(err, &oe)
}
