// Package claude wraps the claude CLI as a one-shot, stream-JSON text oracle.
package claude

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Error types for CLI operations.
var (
	// ErrCommandNotFound is returned when the claude binary is not found in PATH.
	ErrCommandNotFound = errors.New("claude command not found")
	// ErrEmptyResponse is returned when the CLI finishes without any text.
	ErrEmptyResponse = errors.New("claude returned no text")
)

// ClientConfig holds configuration for the CLI client.
type ClientConfig struct {
	Model   string
	Binary  string   // Defaults to "claude"
	EnvVars []string // Additional environment variables (KEY=VALUE format)
}

// Client runs single-turn queries through the claude CLI.
type Client struct {
	model   string
	binary  string
	envVars []string

	// commandCreator allows overriding command creation for testing.
	commandCreator CommandCreator
}

// CommandCreator is a function type for creating exec.Cmd instances.
// It allows mocking command execution in tests.
type CommandCreator func(ctx context.Context, name string, args ...string) *exec.Cmd

// defaultCommandCreator creates a standard exec.Cmd.
func defaultCommandCreator(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// NewClient creates a new CLI client.
func NewClient(cfg ClientConfig) *Client {
	binary := cfg.Binary
	if binary == "" {
		binary = "claude"
	}
	return &Client{
		model:          cfg.Model,
		binary:         binary,
		envVars:        cfg.EnvVars,
		commandCreator: defaultCommandCreator,
	}
}

// SetCommandCreator sets a custom command creator (for testing).
func (c *Client) SetCommandCreator(creator CommandCreator) {
	c.commandCreator = creator
}

// Image is an inline image attached to a request.
type Image struct {
	MediaType string // e.g. "image/png"
	Data      []byte
}

// Request is a single-turn prompt with an optional image.
type Request struct {
	Prompt string
	Image  *Image
}

// Response is the outcome of a query.
type Response struct {
	Text       string
	SessionID  string
	CostUSD    float64
	DurationMS int64
	Usage      Usage
}

// args builds the CLI arguments. The prompt travels on stdin so images can
// ride along as content blocks.
func (c *Client) args() []string {
	// --verbose is required when using --output-format stream-json with -p
	args := []string{
		"-p",
		"--input-format", "stream-json",
		"--output-format", "stream-json",
		"--verbose",
		"--max-turns", "1",
	}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}
	return args
}

// Query sends req and blocks until the CLI exits.
//
// The response text is the final result when the CLI reports one, otherwise
// the assistant text blocks joined in order.
func (c *Client) Query(ctx context.Context, req Request) (*Response, error) {
	input, err := encodeInput(req)
	if err != nil {
		return nil, err
	}

	cmd := c.commandCreator(ctx, c.binary, c.args()...)
	if len(c.envVars) > 0 {
		cmd.Env = append(os.Environ(), c.envVars...)
	}
	cmd.Stdin = bytes.NewReader(input)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return nil, ErrCommandNotFound
		}
		return nil, fmt.Errorf("failed to start claude: %w", err)
	}

	resp, streamErr := collect(NewParser(stdout))
	if streamErr != nil {
		// Drain so Wait does not block on a full pipe
		_, _ = io.Copy(io.Discard, stdout)
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("claude exited with error: %s", msg)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("claude exited with code %d", exitErr.ExitCode())
		}
		return nil, fmt.Errorf("claude process error: %w", err)
	}
	if streamErr != nil {
		return nil, streamErr
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, ErrEmptyResponse
	}
	return resp, nil
}

// collect reads events until EOF and folds them into a Response.
func collect(p *Parser) (*Response, error) {
	resp := &Response{}
	var texts []string
	var final *ResultContent

	for {
		event, err := p.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse error: %w", err)
		}

		switch event.Type {
		case EventInit:
			resp.SessionID = event.Init.SessionID
		case EventMessage:
			if event.Message.Role == "" || event.Message.Role == "assistant" {
				if event.Message.Text != "" {
					texts = append(texts, event.Message.Text)
				}
			}
		case EventResult:
			final = event.Result
		case EventError:
			return nil, fmt.Errorf("claude reported error: %s", event.Error.Message)
		}
	}

	resp.Text = strings.Join(texts, "\n")
	if final != nil {
		if final.IsError {
			return nil, fmt.Errorf("claude reported error result: %s", final.Result)
		}
		if final.Result != "" {
			resp.Text = final.Result
		}
		if final.SessionID != "" {
			resp.SessionID = final.SessionID
		}
		resp.CostUSD = final.CostUSD
		resp.DurationMS = final.DurationMS
		resp.Usage = final.Usage
	}
	return resp, nil
}

// encodeInput renders req as a single stream-JSON user message line.
func encodeInput(req Request) ([]byte, error) {
	var content []inputContent
	if req.Image != nil && len(req.Image.Data) > 0 {
		mediaType := req.Image.MediaType
		if mediaType == "" {
			mediaType = "image/png"
		}
		content = append(content, inputContent{
			Type: "image",
			Source: &imageSource{
				Type:      "base64",
				MediaType: mediaType,
				Data:      base64.StdEncoding.EncodeToString(req.Image.Data),
			},
		})
	}
	content = append(content, inputContent{Type: "text", Text: req.Prompt})

	line, err := json.Marshal(userInput{
		Type:    "user",
		Message: userTurn{Role: "user", Content: content},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode input: %w", err)
	}
	return append(line, '\n'), nil
}
