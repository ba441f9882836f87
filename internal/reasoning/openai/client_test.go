package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimflow/internal/config"
	"claimflow/internal/port"
	"claimflow/internal/reasoning"
	"claimflow/internal/reasoning/openai"
)

func newTestClient(serverURL string) *openai.Client {
	cfg := &config.ProviderConfig{
		Provider:    "openai",
		APIKey:      "test-openai-key",
		Model:       "gpt-4o-mini",
		MaxTokens:   2000,
		TimeoutSecs: 30,
	}
	return openai.NewClientWithBaseURL(cfg, serverURL+"/v1")
}

func completion(content, finishReason string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": finishReason,
			},
		},
	}
}

func TestClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-openai-key", r.Header.Get("Authorization"))

		var reqBody map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "gpt-4o-mini", reqBody["model"])
		assert.InDelta(t, 0.1, reqBody["temperature"], 1e-6)

		messages := reqBody["messages"].([]any)
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]any)["role"])
		assert.Equal(t, "structure this", messages[0].(map[string]any)["content"])
		assert.Equal(t, "user", messages[1].(map[string]any)["role"])
		assert.Equal(t, "claim text", messages[1].(map[string]any)["content"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("  {\"document_type\":\"claim\"}  ", "stop"))
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Complete(context.Background(), port.ReasoningRequest{
		Instruction: "structure this",
		Input:       "claim text",
		Temperature: 0.1,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"document_type":"claim"}`, out.Text)
	assert.Equal(t, "gpt-4o-mini", out.ModelUsed)
}

func TestClient_ExtractText_SendsImagesAsDataURIs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		messages := reqBody["messages"].([]any)
		require.Len(t, messages, 1)
		content := messages[0].(map[string]any)["content"].([]any)
		require.Len(t, content, 3)

		assert.Equal(t, "text", content[0].(map[string]any)["type"])
		assert.Equal(t, "transcribe", content[0].(map[string]any)["text"])
		for _, part := range content[1:] {
			p := part.(map[string]any)
			assert.Equal(t, "image_url", p["type"])
			url := p["image_url"].(map[string]any)["url"].(string)
			assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"), url)
		}

		_ = json.NewEncoder(w).Encode(completion("Policy Number: AC-1234", "stop"))
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).ExtractText(context.Background(), port.VisionInput{
		Instruction: "transcribe",
		Images: []port.ImageInput{
			{Name: "crash1_front.jpeg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}},
			{Name: "crash1_back.jpeg", Data: []byte{0xff, 0xd8}},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "Policy Number: AC-1234", out.Text)
}

func TestClient_ExtractText_NoImages(t *testing.T) {
	_, err := newTestClient("http://unused").ExtractText(context.Background(), port.VisionInput{Instruction: "x"})
	assert.Error(t, err)
}

func TestClient_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After-Ms", "2500")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_error"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), port.ReasoningRequest{Input: "x"})

	var rlErr *reasoning.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "openai", rlErr.Provider)
	assert.Equal(t, "gpt-4o-mini", rlErr.Model)
	assert.Equal(t, 2500*time.Millisecond, rlErr.RetryAfter)
}

func TestClient_RateLimitedWithoutHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_error"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), port.ReasoningRequest{Input: "x"})

	var rlErr *reasoning.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, reasoning.DefaultRetryAfter, rlErr.RetryAfter)
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), port.ReasoningRequest{Input: "x"})

	require.Error(t, err)
	var rlErr *reasoning.RateLimitError
	assert.False(t, errors.As(err, &rlErr))
}

func TestClient_Truncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completion(`{"document_type":`, "length"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), port.ReasoningRequest{Input: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

func TestClient_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), port.ReasoningRequest{Input: "x"})

	assert.Error(t, err)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := openai.NewClient(&config.ProviderConfig{Provider: "openai"})
	assert.Error(t, err)

	_, err = openai.NewClient(&config.ProviderConfig{Provider: "azure-openai", APIKey: "k"})
	assert.Error(t, err)

	c, err := openai.NewClient(&config.ProviderConfig{Provider: "azure-openai", APIKey: "k", Endpoint: "https://aoai.example", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestRegistry_AzureDeployment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/claims-gpt/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-10-21", r.URL.Query().Get("api-version"))
		assert.Equal(t, "azure-key", r.Header.Get("api-key"))
		_ = json.NewEncoder(w).Encode(completion("ok", "stop"))
	}))
	defer server.Close()

	r, err := reasoning.NewReasoner(&config.ProviderConfig{
		Provider:   "azure-openai",
		APIKey:     "azure-key",
		Endpoint:   server.URL,
		APIVersion: "2024-10-21",
		Model:      "claims-gpt",
	})
	require.NoError(t, err)

	out, err := r.Complete(context.Background(), port.ReasoningRequest{Input: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
	assert.Equal(t, "claims-gpt", out.ModelUsed)
}
