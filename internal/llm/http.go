package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// defaultHTTPTimeout bounds a single completion round trip. Large
// prompts against slow models can legitimately take minutes.
const defaultHTTPTimeout = 5 * time.Minute

// maxErrorBody caps how much of an error response is kept for the
// error message.
const maxErrorBody = 2048

// httpProvider holds the transport state shared by the HTTP-backed
// providers.
type httpProvider struct {
	http    *http.Client
	baseURL string
}

// ProviderOption configures an HTTP-backed provider.
type ProviderOption func(*httpProvider)

// WithBaseURL points the provider at a different endpoint, such as a
// proxy or a test server.
func WithBaseURL(url string) ProviderOption {
	return func(p *httpProvider) {
		p.baseURL = url
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *httpProvider) {
		p.http = client
	}
}

func newHTTPProvider(baseURL string, opts ...ProviderOption) httpProvider {
	p := httpProvider{
		http:    &http.Client{Timeout: defaultHTTPTimeout},
		baseURL: baseURL,
	}

	for _, opt := range opts {
		opt(&p)
	}

	return p
}

// postJSON sends body as JSON and returns the raw response. Transport
// failures come back as *NetworkError; non-2xx statuses as
// *RateLimitError or *ProviderError with the body redacted.
func (p *httpProvider) postJSON(ctx context.Context, providerName, path string, headers map[string]string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, statusError(providerName, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	return data, nil
}

// statusError converts a non-2xx response into the error taxonomy.
func statusError(providerName string, resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Provider:   providerName,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	return &ProviderError{
		Provider:   providerName,
		Message:    Redact(string(body)),
		StatusCode: resp.StatusCode,
	}
}

// parseRetryAfter handles both Retry-After forms: delta-seconds and
// HTTP-date. Past dates and garbage yield zero, meaning no hint.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}

		return time.Duration(seconds) * time.Second
	}

	when, err := http.ParseTime(value)
	if err != nil {
		return 0
	}

	until := time.Until(when)
	if until <= 0 {
		return 0
	}

	return until
}
