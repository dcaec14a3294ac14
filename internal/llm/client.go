package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultImageModel = "gemini-2.5-flash-image"
)

// ErrNotConfigured is returned when no API key or Vertex project is set.
var ErrNotConfigured = errors.New("llm: gemini client not configured")

// ContentGenerator is the slice of the genai Models service the app uses.
// *genai.Models satisfies it, as does *Client.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config selects the backend and bounds outbound traffic.
type Config struct {
	APIKey     string
	UseVertex  bool
	Project    string
	Location   string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

// Configured reports whether enough settings exist to build a client.
func (c Config) Configured() bool {
	if c.UseVertex {
		return c.Project != "" && c.Location != ""
	}
	return strings.TrimSpace(c.APIKey) != ""
}

// Client rate limits and times out calls to the underlying generator.
type Client struct {
	models  ContentGenerator
	limiter *rate.Limiter
	timeout time.Duration
}

// New builds a genai-backed client. It is created once at startup and shared.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.UseVertex {
		clientCfg = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  cfg.Project,
			Location: cfg.Location,
		}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("llm: create genai client: %w", err)
	}
	return Wrap(client.Models, cfg), nil
}

// Wrap applies the rate limit and timeout from cfg to any generator.
func Wrap(models ContentGenerator, cfg Config) *Client {
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		models:  models,
		limiter: rate.NewLimiter(limit, burst),
		timeout: cfg.Timeout,
	}
}

// GenerateContent waits for the limiter, then forwards the call. A model
// override set with WithModel takes precedence over model.
func (c *Client) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if override := modelFromContext(ctx); override != "" {
		model = override
	}
	model = normalizeModel(model)
	if model == "" {
		return nil, errors.New("llm: model is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm: rate limit: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("llm: generate with %s: %w", model, err)
	}
	return resp, nil
}

type unconfigured struct{}

func (unconfigured) GenerateContent(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return nil, ErrNotConfigured
}

// Unconfigured returns a generator that fails every call with ErrNotConfigured,
// so the server can start without credentials.
func Unconfigured() ContentGenerator {
	return unconfigured{}
}

func normalizeModel(model string) string {
	return strings.TrimPrefix(strings.TrimSpace(model), "models/")
}
