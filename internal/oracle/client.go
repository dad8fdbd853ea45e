package oracle

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/gerunddev/pokeagent/internal/game"
	"github.com/gerunddev/pokeagent/internal/log"
	"github.com/gerunddev/pokeagent/internal/metrics"
	"github.com/gerunddev/pokeagent/internal/tracing"
)

// Request is one backend call.
type Request struct {
	Prompt    string
	Frame     *game.Frame // nil for text-only calls
	MaxTokens int
}

// Backend is a model transport.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Options configures a Client.
type Options struct {
	MaxTokens         int
	Timeout           time.Duration // Per call; 0 disables
	RequestsPerMinute float64       // 0 disables rate limiting
	Metrics           *metrics.Metrics
}

// Client adapts a Backend to the Oracle interface.
type Client struct {
	backend   Backend
	maxTokens int
	timeout   time.Duration
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
}

var _ Oracle = (*Client)(nil)

// NewClient wraps backend.
func NewClient(backend Backend, opts Options) *Client {
	return &Client{
		backend:   backend,
		maxTokens: opts.MaxTokens,
		timeout:   opts.Timeout,
		limiter:   NewLimiter(opts.RequestsPerMinute),
		metrics:   opts.Metrics,
	}
}

// NewLimiter returns a limiter admitting rpm requests per minute with a
// burst of one, or nil when rpm is not positive.
func NewLimiter(rpm float64) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rpm/60.0), 1)
}

// Backend returns the wrapped backend's name.
func (c *Client) Backend() string {
	return c.backend.Name()
}

// QueryText implements Oracle.
func (c *Client) QueryText(ctx context.Context, prompt, label string) (string, error) {
	return c.do(ctx, Request{Prompt: prompt, MaxTokens: c.maxTokens}, label)
}

// QueryWithImage implements Oracle. A nil frame degrades to a text query.
func (c *Client) QueryWithImage(ctx context.Context, frame *game.Frame, prompt, label string) (string, error) {
	return c.do(ctx, Request{Prompt: prompt, Frame: frame, MaxTokens: c.maxTokens}, label)
}

func (c *Client) do(ctx context.Context, req Request, label string) (text string, err error) {
	name := c.backend.Name()

	ctx, span := tracing.StartOracleSpan(ctx, name, label, req.Frame != nil)
	defer func() { tracing.End(span, err) }()

	if c.limiter != nil {
		if werr := c.limiter.Wait(ctx); werr != nil {
			return "", Wrap(name, label, fmt.Errorf("rate limit wait failed: %w", werr))
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err = c.backend.Complete(ctx, req)
	elapsed := time.Since(start)
	c.metrics.ObserveOracle(name, label, elapsed, err)

	if err != nil {
		log.Warn("oracle call failed", "backend", name, "label", label, "duration", elapsed, "error", err)
		return "", Wrap(name, label, err)
	}

	log.Debug("oracle call", "backend", name, "label", label, "duration", elapsed,
		"prompt_len", len(req.Prompt), "response_len", len(text), "image", req.Frame != nil)
	return text, nil
}
