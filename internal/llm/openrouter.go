package llm

import (
	"context"
	"os"
)

const (
	openrouterBaseURL      = "https://openrouter.ai/api"
	openrouterEnvKey       = "OPENROUTER_API_KEY"
	defaultOpenRouterModel = "anthropic/claude-3.5-sonnet"
)

// OpenRouter calls the OpenRouter API, which is wire-compatible with
// OpenAI chat completions.
type OpenRouter struct {
	httpProvider

	apiKey string
	model  string
}

// NewOpenRouter builds an OpenRouter provider.
func NewOpenRouter(apiKey, model string, opts ...ProviderOption) *OpenRouter {
	if model == "" {
		model = defaultOpenRouterModel
	}

	return &OpenRouter{
		httpProvider: newHTTPProvider(openrouterBaseURL, opts...),
		apiKey:       apiKey,
		model:        model,
	}
}

// OpenRouterFromEnv reads the API key from OPENROUTER_API_KEY.
func OpenRouterFromEnv(model string, opts ...ProviderOption) (*OpenRouter, error) {
	apiKey := os.Getenv(openrouterEnvKey)
	if apiKey == "" {
		return nil, &ValidationError{
			Message:    openrouterEnvKey + " not set",
			Suggestion: "export " + openrouterEnvKey,
		}
	}

	return NewOpenRouter(apiKey, model, opts...), nil
}

// Complete sends a chat completion request.
func (o *OpenRouter) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (*CompletionResponse, error) {
	req := chatRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}

	data, err := o.postJSON(ctx, "openrouter", chatCompletionsPath, headers, req)
	if err != nil {
		return nil, err
	}

	return completionFromChat("openrouter", data)
}

// Model returns the configured model identifier.
func (o *OpenRouter) Model() string {
	return o.model
}

// Pricing returns a placeholder rate; actual OpenRouter pricing varies
// by routed model.
func (o *OpenRouter) Pricing() Pricing {
	return Pricing{InputPer1K: 0.003, OutputPer1K: 0.015}
}
