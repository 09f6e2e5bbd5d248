package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rulesmith/internal/llm"
)

func TestAnthropic_Complete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// System messages are lifted out of the messages array.
		assert.Equal(t, "be terse", req["system"])

		messages, ok := req["messages"].([]any)
		require.True(t, ok)
		require.Len(t, messages, 1)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "analysis here"}},
			"usage":   map[string]int{"input_tokens": 42, "output_tokens": 17},
		})
	}))
	defer server.Close()

	provider := llm.NewAnthropic("test-key", "claude-3-5-sonnet-20241022", llm.WithBaseURL(server.URL))

	resp, err := provider.Complete(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "be terse"},
		{Role: llm.RoleUser, Content: "analyze"},
	}, llm.CompletionOptions{MaxTokens: 100, Temperature: 0.3})
	require.NoError(t, err)

	assert.Equal(t, "analysis here", resp.Content)
	assert.Equal(t, 42, resp.PromptTokens)
	assert.Equal(t, 17, resp.CompletionTokens)
}

func TestAnthropic_RateLimitCarriesRetryAfter(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := llm.NewAnthropic("test-key", "", llm.WithBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), nil, llm.CompletionOptions{})
	require.Error(t, err)

	var rateLimit *llm.RateLimitError
	require.ErrorAs(t, err, &rateLimit)
	assert.Equal(t, "anthropic", rateLimit.Provider)
	assert.Equal(t, 12*time.Second, rateLimit.RetryAfter)
	assert.True(t, llm.Retryable(err))
}

func TestAnthropic_RateLimitParsesHTTPDateRetryAfter(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", time.Now().Add(40*time.Second).UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := llm.NewAnthropic("test-key", "", llm.WithBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), nil, llm.CompletionOptions{})
	require.Error(t, err)

	var rateLimit *llm.RateLimitError
	require.ErrorAs(t, err, &rateLimit)

	// The date round-trips through the wall clock, so allow slack.
	assert.Greater(t, rateLimit.RetryAfter, 30*time.Second)
	assert.LessOrEqual(t, rateLimit.RetryAfter, 40*time.Second)
}

func TestOpenAI_Complete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "result"}}},
			"usage":   map[string]int{"prompt_tokens": 8, "completion_tokens": 3},
		})
	}))
	defer server.Close()

	provider := llm.NewOpenAI("test-key", "gpt-4o", llm.WithBaseURL(server.URL))

	resp, err := provider.Complete(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
	}, llm.CompletionOptions{MaxTokens: 50})
	require.NoError(t, err)

	assert.Equal(t, "result", resp.Content)
	assert.Equal(t, 11, resp.TotalTokens())
}

func TestOpenAI_ServerErrorIsRetryableAndRedacted(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`upstream rejected api_key=sk-abcdefgh12345678`))
	}))
	defer server.Close()

	provider := llm.NewOpenAI("test-key", "", llm.WithBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), nil, llm.CompletionOptions{})
	require.Error(t, err)

	var providerErr *llm.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusServiceUnavailable, providerErr.StatusCode)
	assert.NotContains(t, providerErr.Message, "sk-abcdefgh12345678")
	assert.Contains(t, providerErr.Message, "[REDACTED]")
	assert.True(t, llm.Retryable(err))
}

func TestOllama_Complete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, false, req["stream"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]string{"content": "local result"},
			"prompt_eval_count": 20,
			"eval_count":        9,
		})
	}))
	defer server.Close()

	provider := llm.NewOllama(server.URL, "llama3.1:70b")

	resp, err := provider.Complete(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
	}, llm.CompletionOptions{})
	require.NoError(t, err)

	assert.Equal(t, "local result", resp.Content)
	assert.Equal(t, 20, resp.PromptTokens)
	assert.Equal(t, 9, resp.CompletionTokens)
}

func TestOllama_ConnectionFailureIsNetworkError(t *testing.T) {
	t.Parallel()

	// A closed server guarantees a transport-level failure.
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	provider := llm.NewOllama(server.URL, "")

	_, err := provider.Complete(context.Background(), nil, llm.CompletionOptions{})
	require.Error(t, err)

	var network *llm.NetworkError
	require.ErrorAs(t, err, &network)
	assert.True(t, llm.Retryable(err))
}

func TestNewProviderFromEnv_UnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := llm.NewProviderFromEnv("bedrock", "", "")
	require.Error(t, err)

	var validation *llm.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Message, "bedrock")
}

func TestNewProviderFromEnv_MissingKey(t *testing.T) {
	// Not parallel: manipulates process environment.
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := llm.NewProviderFromEnv("anthropic", "", "")
	require.Error(t, err)

	var validation *llm.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Message, "ANTHROPIC_API_KEY")
}

func TestDefaultModels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "claude-3-5-sonnet-20241022", llm.NewAnthropic("k", "").Model())
	assert.Equal(t, "gpt-4o", llm.NewOpenAI("k", "").Model())
	assert.Equal(t, "anthropic/claude-3.5-sonnet", llm.NewOpenRouter("k", "").Model())
	assert.Equal(t, "llama3.1:70b", llm.NewOllama("", "").Model())
}
