package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/clemm/pkg/interfaces"
	"github.com/run-bigpig/clemm/pkg/retry"
)

func TestChatSendsChatMLCompletion(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/completion", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "  run_tool open_notes \n"})
	}))
	defer server.Close()

	client := NewClient(server.URL + "/")
	out, err := client.Chat(context.Background(), []interfaces.Message{
		{Role: "system", Content: "You are Raven."},
		{Role: "user", Content: "Open my log."},
	}, &interfaces.GenerateParams{MaxTokens: 150, Temperature: 0, TopK: 50, TopP: 0.95, RepeatPenalty: 1.15})

	require.NoError(t, err)
	assert.Equal(t, "run_tool open_notes", out)

	assert.Equal(t, "<|im_start|>system\nYou are Raven.<|im_end|>\n<|im_start|>user\nOpen my log.<|im_end|>\n<|im_start|>assistant\n", got["prompt"])
	assert.Equal(t, float64(150), got["n_predict"])
	assert.Equal(t, float64(0), got["temperature"])
	assert.Equal(t, float64(50), got["top_k"])
	assert.Equal(t, 0.95, got["top_p"])
	assert.Equal(t, 1.15, got["repeat_penalty"])
	assert.Equal(t, []interface{}{"<|im_end|>"}, got["stop"])
	assert.Equal(t, false, got["stream"])
}

func TestChatReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not loaded"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Chat(context.Background(), nil, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "model not loaded")
	assert.False(t, IsRetryable(err))
}

func TestChatRetriesServerFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "Nominal."})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRetry(
		retry.WithMaxAttempts(3),
		retry.WithInitialInterval(time.Millisecond),
		retry.WithMaximumInterval(time.Millisecond),
	))
	out, err := client.Chat(context.Background(), []interfaces.Message{{Role: "user", Content: "status"}}, nil)

	require.NoError(t, err)
	assert.Equal(t, "Nominal.", out)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHealth(t *testing.T) {
	var loaded atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !loaded.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": map[string]string{"message": "Loading model"}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	assert.ErrorIs(t, client.Health(context.Background()), ErrServerNotReady)

	loaded.Store(true)
	assert.NoError(t, client.Health(context.Background()))
	assert.Equal(t, "llamacpp", client.Name())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&APIError{StatusCode: 503}))
	assert.False(t, IsRetryable(&APIError{StatusCode: 404}))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(assert.AnError))
}
