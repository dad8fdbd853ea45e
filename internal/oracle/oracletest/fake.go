// Package oracletest provides a scripted Oracle for tests.
package oracletest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gerunddev/pokeagent/internal/game"
	"github.com/gerunddev/pokeagent/internal/oracle"
)

// ErrExhausted is returned when a Fake has no scripted reply left.
var ErrExhausted = errors.New("oracletest: no scripted reply")

// Call records one query made against a Fake.
type Call struct {
	Label     string
	Prompt    string
	WithImage bool
}

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// Fake answers queries from per-label queues. Unscripted labels fall back to
// Default; with no default the call fails with ErrExhausted.
type Fake struct {
	mu      sync.Mutex
	queues  map[string][]Reply
	Default *Reply
	calls   []Call
}

var _ oracle.Oracle = (*Fake)(nil)

// New returns an empty Fake.
func New() *Fake {
	return &Fake{queues: make(map[string][]Reply)}
}

// Reply queues a text answer for label and returns f for chaining.
func (f *Fake) Reply(label, text string) *Fake {
	return f.push(label, Reply{Text: text})
}

// Fail queues an oracle failure for label.
func (f *Fake) Fail(label string, err error) *Fake {
	return f.push(label, Reply{Err: oracle.Wrap("fake", label, err)})
}

// FailRaw queues an untagged failure for label.
func (f *Fake) FailRaw(label string, err error) *Fake {
	return f.push(label, Reply{Err: err})
}

func (f *Fake) push(label string, r Reply) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues[label] = append(f.queues[label], r)
	return f
}

// QueryText implements oracle.Oracle.
func (f *Fake) QueryText(ctx context.Context, prompt, label string) (string, error) {
	return f.answer(ctx, Call{Label: label, Prompt: prompt})
}

// QueryWithImage implements oracle.Oracle.
func (f *Fake) QueryWithImage(ctx context.Context, frame *game.Frame, prompt, label string) (string, error) {
	return f.answer(ctx, Call{Label: label, Prompt: prompt, WithImage: frame != nil})
}

func (f *Fake) answer(ctx context.Context, call Call) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	q := f.queues[call.Label]
	if len(q) == 0 {
		if f.Default != nil {
			return f.Default.Text, f.Default.Err
		}
		return "", oracle.Wrap("fake", call.Label, fmt.Errorf("%w for %s", ErrExhausted, call.Label))
	}
	r := q[0]
	f.queues[call.Label] = q[1:]
	return r.Text, r.Err
}

// Calls returns a copy of every recorded call in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Labels returns the label of every recorded call in order.
func (f *Fake) Labels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	labels := make([]string, len(f.calls))
	for i, c := range f.calls {
		labels[i] = c.Label
	}
	return labels
}
