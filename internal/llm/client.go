// Package llm provides an OpenAI-compatible chat completion client used as the
// agent's language model backend.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"sec-agent/internal/domain"
)

// APIError represents a non-2xx HTTP response from the model endpoint.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// ErrDisabled is returned by the Disabled completer.
var ErrDisabled = errors.New("language model is not configured")

const maxErrorBody = 512

// Client is a chat completion client for any OpenAI-compatible endpoint.
// Each Complete call makes exactly one attempt.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTemperature sets the sampling temperature sent with every request.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = float32(t)
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client for the given base URL, key, and model. The base URL
// is the API root, such as https://dashscope.aliyuncs.com/compatible-mode/v1.
func New(baseURL, apiKey, model string, opts ...Option) *Client {
	c := &Client{
		model: model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	cfg.HTTPClient = c.httpClient
	c.api = openai.NewClientWithConfig(cfg)
	return c
}

// Complete sends prompt as a single user message and returns the first choice.
// Transport failures, non-2xx statuses, and empty answers are returned as
// *domain.UpstreamError.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := c.complete(ctx, prompt)
	if err != nil {
		return "", &domain.UpstreamError{Service: "llm", Err: err}
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: c.temperature,
	})
	c.logger.Debug("llm call completed",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"ok", err == nil,
	)
	if err != nil {
		return "", statusError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// statusError turns the SDK's HTTP status errors into *APIError and leaves
// transport and decode errors as they are.
func statusError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Body: truncate(apiErr.Message)}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Body: truncate(string(reqErr.Body))}
	}
	return err
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}

// Disabled is a Completer that always fails. It stands in for the model when
// no API key is configured so every stage takes its fallback path.
type Disabled struct{}

// Complete implements domain.Completer.
func (Disabled) Complete(context.Context, string) (string, error) {
	return "", &domain.UpstreamError{Service: "llm", Err: ErrDisabled}
}

var (
	_ domain.Completer = (*Client)(nil)
	_ domain.Completer = Disabled{}
)
