package oracle

import (
	"context"
	"fmt"

	"github.com/gerunddev/pokeagent/internal/claude"
	"github.com/gerunddev/pokeagent/internal/config"
	"github.com/gerunddev/pokeagent/internal/metrics"
)

// NewFromConfig builds the configured backend and wraps it in a Client.
func NewFromConfig(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Client, error) {
	oc := cfg.Oracle
	apiKey := cfg.ResolveAPIKey()

	var (
		backend Backend
		err     error
	)
	switch oc.Backend {
	case config.BackendClaudeCLI:
		backend = NewClaudeCLI(claude.NewClient(claude.ClientConfig{Model: oc.Model}))
	case config.BackendAnthropic:
		backend, err = NewAnthropic(AnthropicConfig{APIKey: apiKey, Model: oc.Model, BaseURL: oc.BaseURL})
	case config.BackendOpenAI:
		backend, err = NewOpenAI(OpenAIConfig{APIKey: apiKey, Model: oc.Model, BaseURL: oc.BaseURL})
	case config.BackendGemini:
		backend, err = NewGemini(ctx, GeminiConfig{APIKey: apiKey, Model: oc.Model, BaseURL: oc.BaseURL})
	default:
		return nil, fmt.Errorf("unsupported oracle backend %q", oc.Backend)
	}
	if err != nil {
		return nil, err
	}

	return NewClient(backend, Options{
		MaxTokens:         oc.MaxTokens,
		Timeout:           oc.Timeout,
		RequestsPerMinute: oc.RequestsPerMinute,
		Metrics:           m,
	}), nil
}
