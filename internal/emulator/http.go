package emulator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gerunddev/pokeagent/internal/game"
)

// Server endpoints.
const (
	statePath  = "/state"
	actionPath = "/action"
)

// actionRequest is the body posted to the action endpoint.
type actionRequest struct {
	Buttons []string `json:"buttons"`
}

// HTTPSource talks to an emulator server exposing GET /state and POST /action.
type HTTPSource struct {
	client *resty.Client
}

var _ Source = (*HTTPSource)(nil)

// NewHTTPSource returns a source for the server at baseURL. A zero timeout
// leaves requests bounded only by their context.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPSource{client: client}
}

// State implements Source.
func (s *HTTPSource) State(ctx context.Context) (*game.State, error) {
	var state game.State
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&state).
		Get(statePath)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", statePath, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %d %s", statePath, resp.StatusCode(), resp.String())
	}
	return &state, nil
}

// Press implements Source.
func (s *HTTPSource) Press(ctx context.Context, buttons []game.Button) error {
	body := actionRequest{Buttons: make([]string, len(buttons))}
	for i, b := range buttons {
		body.Buttons[i] = string(b)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(actionPath)
	if err != nil {
		return fmt.Errorf("POST %s: %w", actionPath, err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusAccepted {
		return fmt.Errorf("POST %s: %d %s", actionPath, resp.StatusCode(), resp.String())
	}
	return nil
}

// Close implements Source.
func (s *HTTPSource) Close() error {
	return nil
}
