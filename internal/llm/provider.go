// Package llm wraps remote model providers behind a single interface
// with retry, failure classification, and multi-chunk analysis
// orchestration on top.
package llm

import "context"

// Message roles accepted by the chat-style providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionOptions tune a single completion call.
type CompletionOptions struct {
	// MaxTokens caps the completion length.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64
}

// CompletionResponse is the provider's answer plus reported token usage.
// Token counts come from the provider, never from local estimates.
type CompletionResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens returns prompt plus completion tokens.
func (r *CompletionResponse) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// Pricing is the provider's cost per thousand tokens, in USD.
type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Cost returns the USD cost for the given token usage.
func (p Pricing) Cost(promptTokens, completionTokens int) float64 {
	const perThousand = 1000.0

	return float64(promptTokens)/perThousand*p.InputPer1K +
		float64(completionTokens)/perThousand*p.OutputPer1K
}

// Provider is a remote completion backend.
type Provider interface {
	// Complete sends messages and returns the model's completion.
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (*CompletionResponse, error)

	// Model returns the model identifier requests are sent with.
	Model() string

	// Pricing returns per-1k-token costs for this provider's model.
	Pricing() Pricing
}
