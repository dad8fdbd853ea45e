package oracle

import (
	"context"

	"github.com/gerunddev/pokeagent/internal/claude"
)

// ClaudeCLI answers through the local claude CLI.
type ClaudeCLI struct {
	client *claude.Client
}

// NewClaudeCLI wraps a CLI client.
func NewClaudeCLI(client *claude.Client) *ClaudeCLI {
	return &ClaudeCLI{client: client}
}

// Name implements Backend.
func (c *ClaudeCLI) Name() string {
	return "claude-cli"
}

// Complete implements Backend. MaxTokens is not supported by the CLI.
func (c *ClaudeCLI) Complete(ctx context.Context, req Request) (string, error) {
	creq := claude.Request{Prompt: req.Prompt}
	if req.Frame != nil && len(req.Frame.Data) > 0 {
		creq.Image = &claude.Image{MediaType: req.Frame.MIME(), Data: req.Frame.Data}
	}

	resp, err := c.client.Query(ctx, creq)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
