// Package openai drives any OpenAI-compatible chat completion endpoint,
// including llama.cpp's own /v1 API and hosted OpenAI models.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/run-bigpig/clemm/pkg/interfaces"
	"github.com/run-bigpig/clemm/pkg/llm"
	"github.com/run-bigpig/clemm/pkg/logging"
	"github.com/run-bigpig/clemm/pkg/retry"
)

// DefaultModel is used when no model is configured. llama.cpp ignores it.
const DefaultModel = "gpt-4o-mini"

// ErrNoChoices is returned when the endpoint answers without a completion
var ErrNoChoices = errors.New("no response from OpenAI API")

// OpenAIClient implements the LLM interface for OpenAI-compatible servers
type OpenAIClient struct {
	Client        *openai.Client
	Model         string
	logger        logging.Logger
	retryExecutor *retry.Executor

	baseURL    string
	httpClient *http.Client
}

// Option represents an option for configuring the OpenAI client
type Option func(*OpenAIClient)

// WithModel sets the model for the OpenAI client
func WithModel(model string) Option {
	return func(c *OpenAIClient) {
		c.Model = model
	}
}

// WithLogger sets the logger for the OpenAI client
func WithLogger(logger logging.Logger) Option {
	return func(c *OpenAIClient) {
		c.logger = logger
	}
}

// WithBaseURL points the client at another endpoint, e.g.
// http://127.0.0.1:8080/v1 for a local llama.cpp server
func WithBaseURL(baseURL string) Option {
	return func(c *OpenAIClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *OpenAIClient) {
		c.httpClient = httpClient
	}
}

// WithRetry configures retry policy for the client
func WithRetry(opts ...retry.Option) Option {
	return func(c *OpenAIClient) {
		opts = append([]retry.Option{retry.WithRetryIf(IsRetryable)}, opts...)
		c.retryExecutor = retry.NewExecutor(retry.NewPolicy(opts...))
	}
}

// NewClient creates a new OpenAI client
func NewClient(apiKey string, options ...Option) *OpenAIClient {
	client := &OpenAIClient{
		Model:  DefaultModel,
		logger: logging.NewNop(),
	}

	for _, option := range options {
		option(client)
	}

	config := openai.DefaultConfig(apiKey)
	if client.baseURL != "" {
		config.BaseURL = strings.TrimRight(client.baseURL, "/")
	}
	if client.httpClient != nil {
		config.HTTPClient = client.httpClient
	}
	client.Client = openai.NewClientWithConfig(config)

	return client
}

// IsRetryable retries rate limits, server errors and transport failures
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	return true
}

// Chat uses the ChatCompletion API to have a conversation (messages) with a model
func (c *OpenAIClient) Chat(ctx context.Context, messages []interfaces.Message, params *interfaces.GenerateParams) (string, error) {
	if params == nil {
		params = llm.DefaultGenerateParams()
	}

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		role := msg.Role
		if role != interfaces.RoleSystem && role != interfaces.RoleUser {
			role = openai.ChatMessageRoleAssistant
		}
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		}
	}

	// go-openai drops a zero temperature, so greedy decoding needs a tiny one
	temperature := float32(params.Temperature)
	if temperature == 0 {
		temperature = 1e-6
	}

	req := openai.ChatCompletionRequest{
		Model:       c.Model,
		Messages:    chatMessages,
		MaxTokens:   params.MaxTokens,
		Temperature: temperature,
		TopP:        float32(params.TopP),
		Stop:        llm.StopSequences(params),
	}

	var resp openai.ChatCompletionResponse
	var err error

	operation := func() error {
		c.logger.Debug(ctx, "Executing OpenAI Chat API request", map[string]interface{}{
			"model":       c.Model,
			"max_tokens":  req.MaxTokens,
			"temperature": req.Temperature,
			"top_p":       req.TopP,
			"messages":    len(req.Messages),
		})

		resp, err = c.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			c.logger.Error(ctx, "Error from OpenAI API", map[string]interface{}{
				"error": err.Error(),
				"model": c.Model,
			})
			return fmt.Errorf("failed to create chat completion: %w", err)
		}
		return nil
	}

	if c.retryExecutor != nil {
		err = c.retryExecutor.Execute(ctx, operation)
	} else {
		err = operation()
	}
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	c.logger.Debug(ctx, "Successfully received chat response from OpenAI", map[string]interface{}{
		"model":         c.Model,
		"finish_reason": resp.Choices[0].FinishReason,
	})
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Name implements interfaces.LLM.Name
func (c *OpenAIClient) Name() string {
	return "openai"
}
