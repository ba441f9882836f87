package anthropic_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimflow/internal/config"
	"claimflow/internal/port"
	"claimflow/internal/reasoning"
	"claimflow/internal/reasoning/anthropic"
)

func newTestClient(serverURL string) *anthropic.Client {
	return anthropic.NewClientWithBaseURL(&config.ProviderConfig{
		Provider:    "anthropic",
		APIKey:      "test-anthropic-key",
		Model:       "claude-sonnet-4-20250514",
		MaxTokens:   1024,
		TimeoutSecs: 30,
	}, serverURL)
}

func message(text, stopReason string) map[string]any {
	return map[string]any{
		"id":            "msg_1",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-sonnet-4-20250514",
		"content":       []map[string]any{{"type": "text", "text": text}},
		"stop_reason":   stopReason,
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": 10, "output_tokens": 5},
	}
}

func TestClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-anthropic-key", r.Header.Get("X-Api-Key"))

		var reqBody map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-sonnet-4-20250514", reqBody["model"])
		assert.Equal(t, float64(1024), reqBody["max_tokens"])

		system := reqBody["system"].([]any)
		require.Len(t, system, 1)
		assert.Equal(t, "evaluate the claim", system[0].(map[string]any)["text"])

		messages := reqBody["messages"].([]any)
		require.Len(t, messages, 1)
		assert.Equal(t, "user", messages[0].(map[string]any)["role"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(message(`{"matched_policy":{}}`, "end_turn"))
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Complete(context.Background(), port.ReasoningRequest{
		Instruction: "evaluate the claim",
		Input:       "claim",
		Temperature: 0.1,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"matched_policy":{}}`, out.Text)
	assert.Equal(t, "claude-sonnet-4-20250514", out.ModelUsed)
}

func TestClient_Complete_RateLimited(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "15")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), port.ReasoningRequest{Input: "x"})

	var rlErr *reasoning.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "anthropic", rlErr.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", rlErr.Model)
	assert.Equal(t, 15.0, rlErr.RetryAfter.Seconds())
	assert.Equal(t, 1, calls, "sdk retries are disabled")
}

func TestClient_Complete_Truncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(message(`{"document_type":`, "max_tokens"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), port.ReasoningRequest{Input: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := anthropic.NewClient(&config.ProviderConfig{Provider: "anthropic"})
	assert.Error(t, err)
}

func TestRegistry_Anthropic(t *testing.T) {
	r, err := reasoning.NewReasoner(&config.ProviderConfig{Provider: "anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &anthropic.Client{}, r)
}

func TestClient_Complete_EmptyTextIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(message("  ", "end_turn"))
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Complete(context.Background(), port.ReasoningRequest{Input: "x"})

	require.NoError(t, err)
	assert.Empty(t, out.Text)
}
