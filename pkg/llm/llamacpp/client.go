// Package llamacpp talks to a llama.cpp server through its native
// /completion endpoint and can launch that server as a child process.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/run-bigpig/clemm/pkg/interfaces"
	"github.com/run-bigpig/clemm/pkg/llm"
	"github.com/run-bigpig/clemm/pkg/logging"
	"github.com/run-bigpig/clemm/pkg/retry"
)

// DefaultURL is where llama.cpp's server listens unless configured otherwise
const DefaultURL = "http://127.0.0.1:8080"

// ErrServerNotReady is returned while the server is loading or unreachable
var ErrServerNotReady = errors.New("llama.cpp server not ready")

// APIError is a non-200 answer from the server
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llama.cpp server returned %d: %s", e.StatusCode, e.Body)
}

// Client implements interfaces.LLM against a llama.cpp server
type Client struct {
	BaseURL       string
	HTTPClient    *http.Client
	logger        logging.Logger
	retryExecutor *retry.Executor
}

// Option represents an option for configuring the client
type Option func(*Client)

// WithLogger sets the logger for the client
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = httpClient
	}
}

// WithRetry retries transport failures and 5xx answers
func WithRetry(opts ...retry.Option) Option {
	return func(c *Client) {
		opts = append([]retry.Option{retry.WithRetryIf(IsRetryable)}, opts...)
		c.retryExecutor = retry.NewExecutor(retry.NewPolicy(opts...))
	}
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, options ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	client := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logging.NewNop(),
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// IsRetryable reports whether err is worth another attempt
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

type completionRequest struct {
	Prompt        string   `json:"prompt"`
	NPredict      int      `json:"n_predict"`
	Temperature   float64  `json:"temperature"`
	TopK          int      `json:"top_k"`
	TopP          float64  `json:"top_p"`
	RepeatPenalty float64  `json:"repeat_penalty"`
	Stop          []string `json:"stop"`
	Stream        bool     `json:"stream"`
}

type completionResponse struct {
	Content string `json:"content"`
}

// Chat formats the conversation as ChatML and requests one completion
func (c *Client) Chat(ctx context.Context, messages []interfaces.Message, params *interfaces.GenerateParams) (string, error) {
	if params == nil {
		params = llm.DefaultGenerateParams()
	}

	body, err := json.Marshal(completionRequest{
		Prompt:        llm.FormatChatML(messages, true),
		NPredict:      params.MaxTokens,
		Temperature:   params.Temperature,
		TopK:          params.TopK,
		TopP:          params.TopP,
		RepeatPenalty: params.RepeatPenalty,
		Stop:          llm.StopSequences(params),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	var resp completionResponse
	operation := func() error {
		c.logger.Debug(ctx, "Executing llama.cpp completion request", map[string]interface{}{
			"url":         c.BaseURL,
			"n_predict":   params.MaxTokens,
			"temperature": params.Temperature,
			"messages":    len(messages),
		})
		return c.do(ctx, http.MethodPost, "/completion", body, &resp)
	}

	if c.retryExecutor != nil {
		err = c.retryExecutor.Execute(ctx, operation)
	} else {
		err = operation()
	}
	if err != nil {
		c.logger.Error(ctx, "Error from llama.cpp server", map[string]interface{}{"error": err.Error()})
		return "", fmt.Errorf("failed to create completion: %w", err)
	}

	return strings.TrimSpace(resp.Content), nil
}

// Health checks /health. It returns ErrServerNotReady while the model loads.
func (c *Client) Health(ctx context.Context) error {
	var status struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &status); err != nil {
		return fmt.Errorf("%w: %v", ErrServerNotReady, err)
	}
	if status.Status != "ok" {
		return fmt.Errorf("%w: status %q", ErrServerNotReady, status.Status)
	}
	return nil
}

// Name returns the name of the LLM provider
func (c *Client) Name() string {
	return "llamacpp"
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
