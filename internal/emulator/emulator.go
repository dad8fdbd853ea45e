// Package emulator provides the game state sources the session loop polls:
// a running emulator server over HTTP, or a recorded JSONL replay.
package emulator

import (
	"context"
	"errors"
	"fmt"

	"github.com/gerunddev/pokeagent/internal/config"
	"github.com/gerunddev/pokeagent/internal/game"
)

// ErrExhausted is returned by State when a source has no more snapshots.
var ErrExhausted = errors.New("state source exhausted")

// Source yields snapshots and accepts button presses.
type Source interface {
	// State returns the current snapshot.
	State(ctx context.Context) (*game.State, error)
	// Press sends a batch of buttons in order.
	Press(ctx context.Context, buttons []game.Button) error
	// Close releases the source.
	Close() error
}

// NewFromConfig opens the configured source. A replay path takes precedence
// over the server URL.
func NewFromConfig(cfg config.EmulatorConfig) (Source, error) {
	if cfg.ReplayPath != "" {
		src, err := OpenReplay(cfg.ReplayPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open replay: %w", err)
		}
		return src, nil
	}
	if cfg.URL == "" {
		return nil, errors.New("no emulator url or replay path configured")
	}
	return NewHTTPSource(cfg.URL, cfg.Timeout), nil
}
