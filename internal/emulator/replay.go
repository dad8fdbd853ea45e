package emulator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gerunddev/pokeagent/internal/game"
)

// maxReplayLine bounds one JSONL record; snapshots carry base64 screenshots.
const maxReplayLine = 16 * 1024 * 1024

// ReplaySource serves snapshots recorded one JSON object per line. Presses
// are recorded but do not affect what comes next.
type ReplaySource struct {
	mu      sync.Mutex
	closer  io.Closer
	scanner *bufio.Scanner
	line    int
	pressed [][]game.Button
}

var _ Source = (*ReplaySource)(nil)

// OpenReplay opens a JSONL replay file.
func OpenReplay(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	src := NewReplay(f)
	src.closer = f
	return src, nil
}

// NewReplay reads snapshots from r.
func NewReplay(r io.Reader) *ReplaySource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplayLine)
	return &ReplaySource{scanner: scanner}
}

// State implements Source. Blank lines are skipped; ErrExhausted marks the end.
func (s *ReplaySource) State(ctx context.Context) (*game.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for s.scanner.Scan() {
		s.line++
		data := s.scanner.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		var state game.State
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("replay line %d: %w", s.line, err)
		}
		return &state, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("replay line %d: %w", s.line+1, err)
	}
	return nil, ErrExhausted
}

// Press implements Source.
func (s *ReplaySource) Press(ctx context.Context, buttons []game.Button) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pressed = append(s.pressed, append([]game.Button(nil), buttons...))
	return nil
}

// Pressed returns every batch pressed so far.
func (s *ReplaySource) Pressed() [][]game.Button {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]game.Button, len(s.pressed))
	for i, b := range s.pressed {
		out[i] = append([]game.Button(nil), b...)
	}
	return out
}

// Close implements Source.
func (s *ReplaySource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
