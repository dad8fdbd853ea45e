package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig configures the chat completions backend.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // Also used for OpenAI-compatible servers
}

// OpenAI calls the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates the backend.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, model: cfg.Model}, nil
}

// Name implements Backend.
func (o *OpenAI) Name() string {
	return "openai"
}

// Complete implements Backend. Frames are sent as data URLs.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	var message openai.ChatCompletionMessageParamUnion
	if req.Frame != nil && len(req.Frame.Data) > 0 {
		dataURL := "data:" + req.Frame.MIME() + ";base64," + req.Frame.Base64()
		message = openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			openai.TextContentPart(req.Prompt),
		})
	} else {
		message = openai.UserMessage(req.Prompt)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{message},
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}
