package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Retry defaults: three retries on top of the initial attempt, with
// exponential backoff from one second capped at thirty.
const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 30 * time.Second
)

// RetryPolicy controls how completion calls are retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialDelay is the backoff base for the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// Jitter spreads each delay across ±25% of its base. Disable for
	// deterministic backoff.
	Jitter bool
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Jitter:       true,
	}
}

// Client invokes a Provider with retries on transient failures.
// Non-retryable failures and context cancellation surface immediately.
type Client struct {
	provider Provider
	policy   RetryPolicy
	logger   *slog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) ClientOption {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithClientLogger sets the logger for retry warnings.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSleep replaces the delay function. Tests use this to run retries
// without waiting.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// WithJitter replaces the jitter source, a function returning values in
// [0, 1). Tests pin it for deterministic delays.
func WithJitter(jitter func() float64) ClientOption {
	return func(c *Client) {
		c.jitter = jitter
	}
}

// NewClient wraps a provider with the retry loop.
func NewClient(provider Provider, opts ...ClientOption) *Client {
	c := &Client{
		provider: provider,
		policy:   DefaultRetryPolicy(),
		logger:   slog.Default(),
		sleep:    sleepContext,
		jitter:   rand.Float64,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Provider returns the wrapped provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// Complete calls the provider, retrying transient failures with
// exponential backoff and jitter. The last failure is returned
// unmodified once retries are exhausted.
func (c *Client) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (*CompletionResponse, error) {
	var lastErr error

	attempts := c.policy.MaxRetries + 1

	for attempt := range attempts {
		if attempt > 0 {
			delay := c.backoffDelay(attempt-1, lastErr)

			c.logger.Warn("retrying completion",
				slog.String("model", c.provider.Model()),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("cause", Redact(lastErr.Error())))

			err := c.sleep(ctx, delay)
			if err != nil {
				return nil, fmt.Errorf("retry wait: %w", err)
			}
		}

		resp, err := c.provider.Complete(ctx, messages, opts)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !Retryable(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

// backoffDelay computes the delay before the retry following failure
// number n (zero-based). A server-provided Retry-After hint replaces
// the exponential base; jitter, when enabled, spreads the result across
// ±25% of the base, and the delay never exceeds MaxDelay.
func (c *Client) backoffDelay(n int, cause error) time.Duration {
	base := c.policy.InitialDelay << n
	if base > c.policy.MaxDelay || base <= 0 {
		base = c.policy.MaxDelay
	}

	if hint := retryAfterHint(cause); hint > 0 {
		base = hint
		if base > c.policy.MaxDelay {
			base = c.policy.MaxDelay
		}
	}

	if !c.policy.Jitter {
		return base
	}

	// Spread delays across [0.75, 1.25) of the base.
	jittered := time.Duration(float64(base) * (0.75 + 0.5*c.jitter()))
	if jittered > c.policy.MaxDelay {
		jittered = c.policy.MaxDelay
	}

	return jittered
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
