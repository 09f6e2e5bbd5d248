package llm

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"
)

// ProviderError is a non-2xx answer from a provider's API.
type ProviderError struct {
	Provider   string
	Message    string
	StatusCode int
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}

	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

// RateLimitError reports a 429 from the provider. RetryAfter carries the
// server-requested delay when the response named one, zero otherwise.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %s: rate limited, retry after %s", e.Provider, e.RetryAfter)
	}

	return fmt.Sprintf("provider %s: rate limited", e.Provider)
}

// NetworkError wraps transport-level failures, timeouts included.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// TokenLimitError reports a prompt that exceeds the model's context
// window. Never retryable: the same prompt would fail again.
type TokenLimitError struct {
	Tokens int
	Limit  int
}

func (e *TokenLimitError) Error() string {
	return fmt.Sprintf("token limit exceeded: %d tokens, limit %d", e.Tokens, e.Limit)
}

// ValidationError reports invalid input with a remediation hint.
type ValidationError struct {
	Message    string
	Suggestion string
}

func (e *ValidationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Suggestion)
	}

	return e.Message
}

// Retryable reports whether a retry could plausibly succeed. Rate
// limits, transport failures, and server-side 5xx errors are transient;
// client-side rejections, token overruns, and validation failures are
// not.
func Retryable(err error) bool {
	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		return true
	}

	var network *NetworkError
	if errors.As(err, &network) {
		return true
	}

	var provider *ProviderError
	if errors.As(err, &provider) {
		switch provider.StatusCode {
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}

	return false
}

// retryAfterHint extracts the server-requested delay when err is a rate
// limit carrying one.
func retryAfterHint(err error) time.Duration {
	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		return rateLimit.RetryAfter
	}

	return 0
}

// secretPatterns match credential material that may leak into provider
// error bodies. Labeled patterns keep the label and drop the value.
var secretPatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(api[_-]?key[=:\s]+)[^\s]+`), "${1}[REDACTED]"},
	{regexp.MustCompile(`(token[=:\s]+)[^\s]+`), "${1}[REDACTED]"},
	{regexp.MustCompile(`(?i)(bearer\s+)[^\s]+`), "${1}[REDACTED]"},
	{regexp.MustCompile(`sk-[a-zA-Z0-9]{8,}`), "[REDACTED]"},
}

// Redact strips API keys and tokens from text destined for logs or
// user-facing errors.
func Redact(text string) string {
	for _, pattern := range secretPatterns {
		text = pattern.re.ReplaceAllString(text, pattern.replacement)
	}

	return text
}
