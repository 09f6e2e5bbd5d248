package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rulesmith/internal/llm"
)

// scriptedProvider plays back a fixed sequence of responses, one per
// Complete call, and records what it was asked.
type scriptedProvider struct {
	model   string
	pricing llm.Pricing

	responses []scriptedResponse
	calls     int
	prompts   []string
	opts      []llm.CompletionOptions
}

type scriptedResponse struct {
	resp *llm.CompletionResponse
	err  error
}

func textResponse(content string, prompt, completion int) scriptedResponse {
	return scriptedResponse{resp: &llm.CompletionResponse{
		Content:          content,
		PromptTokens:     prompt,
		CompletionTokens: completion,
	}}
}

func failure(err error) scriptedResponse {
	return scriptedResponse{err: err}
}

func (p *scriptedProvider) Complete(_ context.Context, messages []llm.Message, opts llm.CompletionOptions) (*llm.CompletionResponse, error) {
	if len(messages) > 0 {
		p.prompts = append(p.prompts, messages[len(messages)-1].Content)
	}

	p.opts = append(p.opts, opts)

	if p.calls >= len(p.responses) {
		return nil, errors.New("scripted provider: unexpected extra call")
	}

	next := p.responses[p.calls]
	p.calls++

	return next.resp, next.err
}

func (p *scriptedProvider) Model() string {
	if p.model == "" {
		return "test-model"
	}

	return p.model
}

func (p *scriptedProvider) Pricing() llm.Pricing {
	return p.pricing
}

// instantSleep records requested delays without waiting.
type instantSleep struct {
	delays []time.Duration
}

func (s *instantSleep) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)

	return nil
}

// midJitter pins the jitter factor to exactly 1.0 (0.75 + 0.5*0.5).
func midJitter() float64 { return 0.5 }

func newTestClient(p llm.Provider, sleep *instantSleep, opts ...llm.ClientOption) *llm.Client {
	base := []llm.ClientOption{
		llm.WithSleep(sleep.sleep),
		llm.WithJitter(midJitter),
	}

	return llm.NewClient(p, append(base, opts...)...)
}

func TestClient_SuccessFirstTry(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []scriptedResponse{
		textResponse("hello", 10, 5),
	}}
	sleep := &instantSleep{}

	client := newTestClient(provider, sleep)

	resp, err := client.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, llm.CompletionOptions{MaxTokens: 100})
	require.NoError(t, err)

	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, 15, resp.TotalTokens())
	assert.Equal(t, 1, provider.calls)
	assert.Empty(t, sleep.delays)
}

func TestClient_RetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []scriptedResponse{
		failure(&llm.NetworkError{Err: errors.New("connection reset")}),
		failure(&llm.ProviderError{Provider: "openai", StatusCode: 503}),
		textResponse("recovered", 10, 5),
	}}
	sleep := &instantSleep{}

	client := newTestClient(provider, sleep)

	resp, err := client.Complete(context.Background(), nil, llm.CompletionOptions{})
	require.NoError(t, err)

	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, 3, provider.calls)

	// Exponential backoff with jitter pinned to 1.0: 1s then 2s.
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, sleep.delays)
}

func TestClient_BackoffSequenceAndExhaustion(t *testing.T) {
	t.Parallel()

	cause := &llm.RateLimitError{Provider: "anthropic"}
	provider := &scriptedProvider{responses: []scriptedResponse{
		failure(cause), failure(cause), failure(cause), failure(cause),
	}}
	sleep := &instantSleep{}

	client := newTestClient(provider, sleep)

	_, err := client.Complete(context.Background(), nil, llm.CompletionOptions{})
	require.Error(t, err)

	// The last provider error comes back unmodified.
	var rateLimit *llm.RateLimitError
	require.ErrorAs(t, err, &rateLimit)

	// 1 initial attempt + 3 retries.
	assert.Equal(t, 4, provider.calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, sleep.delays)
}

func TestClient_FatalErrorStopsImmediately(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []scriptedResponse{
		failure(&llm.ProviderError{Provider: "openai", Message: "invalid request", StatusCode: 400}),
	}}
	sleep := &instantSleep{}

	client := newTestClient(provider, sleep)

	_, err := client.Complete(context.Background(), nil, llm.CompletionOptions{})
	require.Error(t, err)

	var providerErr *llm.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, 400, providerErr.StatusCode)

	assert.Equal(t, 1, provider.calls)
	assert.Empty(t, sleep.delays)
}

func TestClient_RetryAfterOverridesBackoff(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []scriptedResponse{
		failure(&llm.RateLimitError{Provider: "anthropic", RetryAfter: 7 * time.Second}),
		textResponse("ok", 1, 1),
	}}
	sleep := &instantSleep{}

	client := newTestClient(provider, sleep)

	_, err := client.Complete(context.Background(), nil, llm.CompletionOptions{})
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{7 * time.Second}, sleep.delays)
}

func TestClient_DelayNeverExceedsMaxDelay(t *testing.T) {
	t.Parallel()

	cause := &llm.RateLimitError{Provider: "anthropic", RetryAfter: 10 * time.Minute}
	provider := &scriptedProvider{responses: []scriptedResponse{
		failure(cause),
		textResponse("ok", 1, 1),
	}}
	sleep := &instantSleep{}

	client := newTestClient(provider, sleep)

	_, err := client.Complete(context.Background(), nil, llm.CompletionOptions{})
	require.NoError(t, err)

	require.Len(t, sleep.delays, 1)
	assert.LessOrEqual(t, sleep.delays[0], llm.DefaultMaxDelay)
}

func TestClient_ContextCancelledDuringWait(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []scriptedResponse{
		failure(&llm.NetworkError{Err: errors.New("timeout")}),
	}}

	client := llm.NewClient(provider,
		llm.WithJitter(midJitter),
		llm.WithSleep(func(ctx context.Context, _ time.Duration) error {
			return context.Canceled
		}))

	_, err := client.Complete(context.Background(), nil, llm.CompletionOptions{})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, provider.calls)
}

func TestClient_JitterDisabledGivesExactBackoff(t *testing.T) {
	t.Parallel()

	cause := &llm.RateLimitError{Provider: "anthropic"}
	provider := &scriptedProvider{responses: []scriptedResponse{
		failure(cause), failure(cause), failure(cause), failure(cause),
	}}
	sleep := &instantSleep{}

	// The jitter hook would skew every delay by +25% if it were
	// consulted; with Jitter off the delays must be the bare schedule.
	client := llm.NewClient(provider,
		llm.WithSleep(sleep.sleep),
		llm.WithJitter(func() float64 { return 1.0 }),
		llm.WithRetryPolicy(llm.RetryPolicy{
			MaxRetries:   3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
		}))

	_, err := client.Complete(context.Background(), nil, llm.CompletionOptions{})
	require.Error(t, err)

	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, sleep.delays)
}

func TestClient_CustomRetryPolicy(t *testing.T) {
	t.Parallel()

	cause := &llm.ProviderError{Provider: "openai", StatusCode: 500}
	provider := &scriptedProvider{responses: []scriptedResponse{
		failure(cause), failure(cause),
	}}
	sleep := &instantSleep{}

	client := newTestClient(provider, sleep, llm.WithRetryPolicy(llm.RetryPolicy{
		MaxRetries:   1,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
	}))

	_, err := client.Complete(context.Background(), nil, llm.CompletionOptions{})
	require.Error(t, err)

	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, sleep.delays)
}
