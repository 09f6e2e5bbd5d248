package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

const (
	openaiBaseURL       = "https://api.openai.com"
	openaiEnvKey        = "OPENAI_API_KEY"
	defaultGPTModel     = "gpt-4o"
	chatCompletionsPath = "/v1/chat/completions"
)

// OpenAI calls the OpenAI Chat Completions API.
type OpenAI struct {
	httpProvider

	apiKey string
	model  string
}

// NewOpenAI builds an OpenAI provider. An empty model selects gpt-4o.
func NewOpenAI(apiKey, model string, opts ...ProviderOption) *OpenAI {
	if model == "" {
		model = defaultGPTModel
	}

	return &OpenAI{
		httpProvider: newHTTPProvider(openaiBaseURL, opts...),
		apiKey:       apiKey,
		model:        model,
	}
}

// OpenAIFromEnv reads the API key from OPENAI_API_KEY.
func OpenAIFromEnv(model string, opts ...ProviderOption) (*OpenAI, error) {
	apiKey := os.Getenv(openaiEnvKey)
	if apiKey == "" {
		return nil, &ValidationError{
			Message:    openaiEnvKey + " not set",
			Suggestion: "export " + openaiEnvKey,
		}
	}

	return NewOpenAI(apiKey, model, opts...), nil
}

// chatRequest is the OpenAI-compatible chat completion request shared
// with OpenRouter.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

// chatResponse is the OpenAI-compatible chat completion response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func completionFromChat(providerName string, data []byte) (*CompletionResponse, error) {
	var resp chatResponse

	err := json.Unmarshal(data, &resp)
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", providerName, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, &ProviderError{Provider: providerName, Message: "empty completion"}
	}

	return &CompletionResponse{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Complete sends a chat completion request.
func (o *OpenAI) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (*CompletionResponse, error) {
	req := chatRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}

	data, err := o.postJSON(ctx, "openai", chatCompletionsPath, headers, req)
	if err != nil {
		return nil, err
	}

	return completionFromChat("openai", data)
}

// Model returns the configured model identifier.
func (o *OpenAI) Model() string {
	return o.model
}

// Pricing returns GPT-4o list pricing.
func (o *OpenAI) Pricing() Pricing {
	return Pricing{InputPer1K: 2.5, OutputPer1K: 10.0}
}
