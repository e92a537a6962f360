package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"datalens/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.AIConfig {
	return config.AIConfig{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Temperature: 0.3,
		Timeout:     5 * time.Second,
		Referer:     "https://example.test",
		Title:       "Test App",
	}
}

func TestNewOpenRouterClientRequiresKey(t *testing.T) {
	_, err := NewOpenRouterClient(config.AIConfig{})
	assert.Error(t, err)
}

func TestChatCompletionSendsHeadersAndBody(t *testing.T) {
	var gotPath string
	var gotHeaders http.Header
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"42 rows"}}]}`))
	}))
	defer srv.Close()

	client, err := NewOpenRouterClient(testConfig(srv.URL))
	require.NoError(t, err)

	answer, err := client.ChatCompletion(context.Background(), "meta-llama/llama-3.3-8b-instruct:free", "How many rows?", 256)
	require.NoError(t, err)
	assert.Equal(t, "42 rows", answer)

	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotHeaders.Get("Authorization"))
	assert.Equal(t, "https://example.test", gotHeaders.Get("HTTP-Referer"))
	assert.Equal(t, "Test App", gotHeaders.Get("X-Title"))

	assert.Equal(t, "meta-llama/llama-3.3-8b-instruct:free", gotBody["model"])
	assert.Equal(t, 0.3, gotBody["temperature"])
	assert.Equal(t, float64(256), gotBody["max_tokens"])
	msgs := gotBody["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "How many rows?", msgs[1].(map[string]any)["content"])
}

func TestChatCompletionUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewOpenRouterClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = client.ChatCompletion(context.Background(), "some/model", "q", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestChatCompletionEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client, err := NewOpenRouterClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = client.ChatCompletion(context.Background(), "some/model", "q", 10)
	assert.Error(t, err)
}

func TestChatCompletionRejectsEmptyModel(t *testing.T) {
	client, err := NewOpenRouterClient(testConfig("http://unused"))
	require.NoError(t, err)

	_, err = client.ChatCompletion(context.Background(), "  ", "q", 10)
	assert.Error(t, err)
}
