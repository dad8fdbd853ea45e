package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures the Messages API backend.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Anthropic calls the Messages API.
type Anthropic struct {
	client *anthropic.Client
	model  string
}

// NewAnthropic creates the backend.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := anthropic.NewClient(opts...)
	return &Anthropic{client: &client, model: cfg.Model}, nil
}

// Name implements Backend.
func (a *Anthropic) Name() string {
	return "anthropic"
}

// Complete implements Backend.
func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	var blocks []anthropic.ContentBlockParamUnion
	if req.Frame != nil && len(req.Frame.Data) > 0 {
		blocks = append(blocks, anthropic.NewImageBlockBase64(req.Frame.MIME(), req.Frame.Base64()))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic generate: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}
