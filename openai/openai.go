// Package openai is a chat.Backend for OpenAI-compatible chat completion
// endpoints, including Open WebUI's /api/chat/completions.
package openai

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bitop-dev/chat"
	"github.com/bitop-dev/chat/internal/httpx"
	internal "github.com/bitop-dev/chat/internal/openai"
)

const ProviderName = internal.ProviderName

const (
	DefaultBaseURL   = "http://localhost:3000"
	DefaultAPIPrefix = "/api"
)

type Config struct {
	APIKey     string
	BaseURL    string
	APIPrefix  string
	Headers    map[string]string
	HTTPClient *http.Client

	// MaxRetries is the number of retries for retryable statuses and network
	// timeouts when opening the stream. Zero disables retries.
	MaxRetries int
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Client streams completions from one endpoint.
type Client struct {
	cfg Config
}

var _ chat.Backend = (*Client)(nil)

func NewClient(cfg Config) *Client {
	return &Client{cfg: normalizeConfig(cfg)}
}

var defaultClient atomic.Pointer[Client]

func init() {
	defaultClient.Store(NewClient(Config{}))
}

// Configure replaces the client returned by Default.
func Configure(cfg Config) {
	defaultClient.Store(NewClient(cfg))
}

func Default() *Client { return defaultClient.Load() }

func (c *Client) Config() Config { return c.cfg }

// Stream implements chat.Backend.
func (c *Client) Stream(ctx context.Context, req chat.CompletionRequest) (io.ReadCloser, error) {
	u, err := internal.EndpointURL(c.cfg.BaseURL, c.cfg.APIPrefix)
	if err != nil {
		return nil, &chat.TransportError{Provider: ProviderName, Code: "url_error", Message: err.Error(), Cause: err}
	}
	return internal.Stream(ctx, internal.Endpoint{
		URL:        u,
		APIKey:     c.cfg.APIKey,
		Headers:    c.cfg.Headers,
		HTTPClient: c.cfg.HTTPClient,
		Retry: httpx.RetryPolicy{
			MaxRetries: c.cfg.MaxRetries,
			MinBackoff: c.cfg.MinBackoff,
			MaxBackoff: c.cfg.MaxBackoff,
		},
	}, req)
}

func normalizeConfig(cfg Config) Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = DefaultAPIPrefix
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MinBackoff == 0 {
		cfg.MinBackoff = 250 * time.Millisecond
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	return cfg
}
