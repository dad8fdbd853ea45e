package agent

import (
	"errors"
	"fmt"

	"github.com/gerunddev/pokeagent/internal/oracle"
	"github.com/gerunddev/pokeagent/internal/stage"
)

// Kind classifies a failed tick.
type Kind string

const (
	// KindOracle covers inference failures: transport, timeouts, rate limits
	// and unusable responses. Retrying the tick may succeed.
	KindOracle Kind = "oracle"
	// KindInternal covers everything else, including recovered panics.
	KindInternal Kind = "internal"
)

// TickError reports a tick that produced no buttons. The agent's context is
// unchanged when one is returned.
type TickError struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("%s failure in %s stage: %v", e.Kind, e.Stage, e.Err)
}

func (e *TickError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same snapshot may succeed on another try.
func (e *TickError) Retryable() bool {
	return e.Kind == KindOracle
}

// newTickError classifies err raised by the named stage.
func newTickError(stageName string, err error) *TickError {
	kind := KindInternal
	if oracle.IsOracleError(err) || errors.Is(err, stage.ErrEmptyPlan) {
		kind = KindOracle
	}
	return &TickError{Kind: kind, Stage: stageName, Err: err}
}

// panicError converts a recovered panic into an internal tick error.
func panicError(stageName string, r any) *TickError {
	return &TickError{Kind: KindInternal, Stage: stageName, Err: fmt.Errorf("panic: %v", r)}
}
