package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
}

func TestCompleteSendsMessages(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionResponse("translated text"))
	}))
	defer srv.Close()

	m, err := NewOpenAIModel("test-key", srv.URL, "test-model")
	require.NoError(t, err)

	answer, err := m.Complete(context.Background(), "You are a translator.", "Translate this.")
	require.NoError(t, err)
	assert.Equal(t, "translated text", answer)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "You are a translator.", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestCompleteWithModelOverride(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionResponse("ok"))
	}))
	defer srv.Close()

	m, err := NewOpenAIModel("test-key", srv.URL, "default-model")
	require.NoError(t, err)

	_, err = m.CompleteWithModel(context.Background(), "override-model", "", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "override-model", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestCompleteRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]interface{}{
					"message": "rate limited",
					"type":    "rate_limit_error",
				},
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionResponse("after retry"))
	}))
	defer srv.Close()

	m, err := NewOpenAIModel("test-key", srv.URL, "test-model")
	require.NoError(t, err)

	answer, err := m.Complete(context.Background(), "", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "after retry", answer)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestCompleteServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"message": "boom",
				"type":    "server_error",
			},
		})
	}))
	defer srv.Close()

	m, err := NewOpenAIModel("test-key", srv.URL, "test-model")
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), "", "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExternal)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewOpenAIModelRequiresKey(t *testing.T) {
	_, err := NewOpenAIModel("", "", "model")
	assert.Error(t, err)
}
