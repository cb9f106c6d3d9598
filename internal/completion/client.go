// Package completion calls an OpenAI-compatible chat-completion endpoint.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hyperjump/skfed/internal/config"
	"github.com/hyperjump/skfed/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrMissingAPIKey is returned when no completion credential is configured.
	ErrMissingAPIKey = errors.New("completion API key is not configured")
	// ErrInvalidResponseFormat is returned when a 2xx response has no completion content,
	// including content that is empty after normalization.
	ErrInvalidResponseFormat = errors.New("invalid response format from completion service")
)

// transportFailureMessage is what callers see when the service could not be reached at all.
const transportFailureMessage = "Failed to reach completion service"

// UpstreamError is a non-2xx or transport failure from the completion service.
type UpstreamError struct {
	StatusCode int
	// Message is the human-readable reason extracted from the error body.
	Message string
	// Body is the raw response body, kept for logs.
	Body string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion service returned %d: %s", e.StatusCode, e.Message)
}

// Client sends chat-completion requests. A single attempt is made per call.
type Client struct {
	baseURL     string
	path        string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration

	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient replaces the HTTP client, e.g. to inject a RoundTripper in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a Client from cfg. The API key is resolved from the file or environment.
// A missing key is not an error here; CheckConfig reports it per request.
func New(cfg *config.CompletionConfig, opts ...Option) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "/v1/chat/completions"
	}
	c := &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		path:        path,
		apiKey:      cfg.ResolveAPIKey(),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		httpClient:  &http.Client{Transport: tr},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckConfig returns ErrMissingAPIKey when no credential is available.
func (c *Client) CheckConfig() error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a system turn plus a user turn and returns the normalized reply.
func (c *Client) Complete(ctx context.Context, prompt models.Prompt) (string, error) {
	if err := c.CheckConfig(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Completion request failed", zap.Error(err))
		return "", &UpstreamError{StatusCode: http.StatusInternalServerError, Message: transportFailureMessage, Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.logger.Error("Failed to read completion response", zap.Error(err))
		return "", &UpstreamError{StatusCode: http.StatusInternalServerError, Message: transportFailureMessage, Body: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parseErrorMessage(raw)
		c.logger.Error("Completion service returned an error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(raw)),
		)
		return "", &UpstreamError{StatusCode: resp.StatusCode, Message: msg, Body: string(raw)}
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Error("Completion response is not JSON", zap.String("body", string(raw)), zap.Error(err))
		return "", ErrInvalidResponseFormat
	}
	if len(out.Choices) == 0 || out.Choices[0].Message == nil || out.Choices[0].Message.Content == nil {
		c.logger.Error("Completion response has no message content", zap.String("body", string(raw)))
		return "", ErrInvalidResponseFormat
	}

	reply := NormalizeOutput(*out.Choices[0].Message.Content)
	if reply == "" {
		c.logger.Error("Completion response content is empty", zap.String("body", string(raw)))
		return "", ErrInvalidResponseFormat
	}

	c.logger.Debug("Completion received",
		zap.String("model", c.model),
		zap.Duration("elapsed", time.Since(start)),
	)
	return reply, nil
}

// parseErrorMessage extracts a readable message from an error body.
// Accepted shapes: {"error":{"message":..}}, {"error":".."}, {"message":..}.
// Anything else yields the raw body text.
func parseErrorMessage(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if len(envelope.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
				return nested.Message
			}
			var flat string
			if err := json.Unmarshal(envelope.Error, &flat); err == nil && flat != "" {
				return flat
			}
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return strings.TrimSpace(string(body))
}

var blankLineRun = regexp.MustCompile(`\n{2,}`)

// NormalizeOutput collapses runs of two or more newlines to exactly two and trims
// surrounding whitespace. It is idempotent.
func NormalizeOutput(s string) string {
	return strings.TrimSpace(blankLineRun.ReplaceAllString(s, "\n\n"))
}
