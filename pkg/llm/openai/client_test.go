package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/clemm/pkg/interfaces"
	"github.com/run-bigpig/clemm/pkg/llm/openai"
	"github.com/run-bigpig/clemm/pkg/retry"
)

func completion(content string) gopenai.ChatCompletionResponse {
	return gopenai.ChatCompletionResponse{
		Choices: []gopenai.ChatCompletionChoice{
			{
				Message: gopenai.ChatCompletionMessage{
					Content: content,
					Role:    "assistant",
				},
				FinishReason: gopenai.FinishReasonStop,
			},
		},
	}
}

func TestChat(t *testing.T) {
	var reqBody gopenai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(" run_tool fire_laser target=\"asteroid\" \n"))
	}))
	defer server.Close()

	client := openai.NewClient("test-key",
		openai.WithModel("raven"),
		openai.WithBaseURL(server.URL+"/v1/"),
	)

	resp, err := client.Chat(context.Background(), []interfaces.Message{
		{Role: "system", Content: "You are Raven."},
		{Role: "user", Content: "Shoot the rock."},
		{Role: "raven", Content: "Ready."},
	}, &interfaces.GenerateParams{MaxTokens: 150, Temperature: 0.5, TopP: 0.9})

	require.NoError(t, err)
	assert.Equal(t, `run_tool fire_laser target="asteroid"`, resp)

	assert.Equal(t, "raven", reqBody.Model)
	assert.Equal(t, 150, reqBody.MaxTokens)
	assert.InDelta(t, 0.5, reqBody.Temperature, 1e-6)
	assert.InDelta(t, 0.9, reqBody.TopP, 1e-6)
	assert.Equal(t, []string{"<|im_end|>"}, reqBody.Stop)
	require.Len(t, reqBody.Messages, 3)
	assert.Equal(t, "assistant", reqBody.Messages[2].Role)
}

func TestChatNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(gopenai.ChatCompletionResponse{})
	}))
	defer server.Close()

	client := openai.NewClient("test-key", openai.WithBaseURL(server.URL))
	_, err := client.Chat(context.Background(), []interfaces.Message{{Role: "user", Content: "hi"}}, nil)
	assert.ErrorIs(t, err, openai.ErrNoChoices)
}

func TestChatRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(completion("Nominal."))
	}))
	defer server.Close()

	client := openai.NewClient("test-key",
		openai.WithBaseURL(server.URL),
		openai.WithRetry(retry.WithInitialInterval(time.Millisecond)),
	)
	resp, err := client.Chat(context.Background(), []interfaces.Message{{Role: "user", Content: "status"}}, nil)

	require.NoError(t, err)
	assert.Equal(t, "Nominal.", resp)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestChatDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := openai.NewClient("bad-key",
		openai.WithBaseURL(server.URL),
		openai.WithRetry(retry.WithInitialInterval(time.Millisecond)),
	)
	_, err := client.Chat(context.Background(), []interfaces.Message{{Role: "user", Content: "status"}}, nil)

	var apiErr *gopenai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "openai", client.Name())
}
