// Package ollama serves crew members from a local Ollama daemon
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/run-bigpig/clemm/pkg/interfaces"
	"github.com/run-bigpig/clemm/pkg/llm"
	"github.com/run-bigpig/clemm/pkg/logging"
	"github.com/run-bigpig/clemm/pkg/retry"
)

// DefaultHost is the daemon address used when none is configured
const DefaultHost = "http://localhost:11434"

// Client implements interfaces.LLM over Ollama's /api/chat
type Client struct {
	API   *api.Client
	Model string

	logger        logging.Logger
	httpClient    *http.Client
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
		c.httpClient = httpClient
	}
}

// WithRetry retries daemon failures except 4xx answers
func WithRetry(opts ...retry.Option) Option {
	return func(c *Client) {
		opts = append([]retry.Option{retry.WithRetryIf(IsRetryable)}, opts...)
		c.retryExecutor = retry.NewExecutor(retry.NewPolicy(opts...))
	}
}

// NewClient creates a client for model on the daemon at host
func NewClient(host, model string, options ...Option) (*Client, error) {
	if host == "" {
		host = DefaultHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama host %q: %w", host, err)
	}
	if model == "" {
		return nil, errors.New("ollama model name is required")
	}

	c := &Client{
		Model:      model,
		logger:     logging.NewNop(),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, option := range options {
		option(c)
	}
	c.API = api.NewClient(u, c.httpClient)

	return c, nil
}

// IsRetryable reports whether err is worth another attempt
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// Chat sends the conversation and waits for the whole reply
func (c *Client) Chat(ctx context.Context, messages []interfaces.Message, params *interfaces.GenerateParams) (string, error) {
	if params == nil {
		params = llm.DefaultGenerateParams()
	}

	chat := make([]api.Message, len(messages))
	for i, msg := range messages {
		role := msg.Role
		if role != interfaces.RoleSystem && role != interfaces.RoleUser {
			role = interfaces.RoleAssistant
		}
		chat[i] = api.Message{Role: role, Content: msg.Content}
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.Model,
		Messages: chat,
		Stream:   &stream,
		Options: map[string]interface{}{
			"num_predict":    params.MaxTokens,
			"temperature":    params.Temperature,
			"top_k":          params.TopK,
			"top_p":          params.TopP,
			"repeat_penalty": params.RepeatPenalty,
			"stop":           llm.StopSequences(params),
		},
	}

	var reply strings.Builder
	operation := func() error {
		reply.Reset()
		c.logger.Debug(ctx, "Executing Ollama chat request", map[string]interface{}{
			"model":    c.Model,
			"messages": len(chat),
		})
		return c.API.Chat(ctx, req, func(resp api.ChatResponse) error {
			reply.WriteString(resp.Message.Content)
			return nil
		})
	}

	var err error
	if c.retryExecutor != nil {
		err = c.retryExecutor.Execute(ctx, operation)
	} else {
		err = operation()
	}
	if err != nil {
		c.logger.Error(ctx, "Error from Ollama", map[string]interface{}{
			"error": err.Error(),
			"model": c.Model,
		})
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}

	return strings.TrimSpace(reply.String()), nil
}

// Name returns the name of the LLM provider
func (c *Client) Name() string {
	return "ollama"
}
