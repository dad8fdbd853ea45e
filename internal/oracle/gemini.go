package oracle

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini API backend.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Gemini calls the Gemini generateContent API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates the backend.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model}, nil
}

// Name implements Backend.
func (g *Gemini) Name() string {
	return "gemini"
}

// Complete implements Backend.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	var parts []*genai.Part
	if req.Frame != nil && len(req.Frame.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Frame.Data, req.Frame.MIME()))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var cfg *genai.GenerateContentConfig
	if req.MaxTokens > 0 {
		cfg = &genai.GenerateContentConfig{MaxOutputTokens: int32(req.MaxTokens)}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}
