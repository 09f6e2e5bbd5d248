package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

const (
	anthropicBaseURL   = "https://api.anthropic.com"
	anthropicVersion   = "2023-06-01"
	anthropicEnvKey    = "ANTHROPIC_API_KEY"
	defaultClaudeModel = "claude-3-5-sonnet-20241022"
)

// Anthropic calls the Anthropic Messages API.
type Anthropic struct {
	httpProvider

	apiKey string
	model  string
}

// NewAnthropic builds an Anthropic provider. An empty model selects the
// default Claude model.
func NewAnthropic(apiKey, model string, opts ...ProviderOption) *Anthropic {
	if model == "" {
		model = defaultClaudeModel
	}

	return &Anthropic{
		httpProvider: newHTTPProvider(anthropicBaseURL, opts...),
		apiKey:       apiKey,
		model:        model,
	}
}

// AnthropicFromEnv reads the API key from ANTHROPIC_API_KEY.
func AnthropicFromEnv(model string, opts ...ProviderOption) (*Anthropic, error) {
	apiKey := os.Getenv(anthropicEnvKey)
	if apiKey == "" {
		return nil, &ValidationError{
			Message:    anthropicEnvKey + " not set",
			Suggestion: "export " + anthropicEnvKey + " or set provider.name to ollama for local models",
		}
	}

	return NewAnthropic(apiKey, model, opts...), nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends a Messages API request. System messages are lifted
// into the top-level system field as the API requires.
func (a *Anthropic) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (*CompletionResponse, error) {
	req := anthropicRequest{
		Model:       a.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	for _, msg := range messages {
		if msg.Role == RoleSystem {
			req.System = msg.Content

			continue
		}

		req.Messages = append(req.Messages, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}

	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}

	data, err := a.postJSON(ctx, "anthropic", "/v1/messages", headers, req)
	if err != nil {
		return nil, err
	}

	var resp anthropicResponse

	err = json.Unmarshal(data, &resp)
	if err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}

	var content string

	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	if content == "" {
		return nil, &ProviderError{Provider: "anthropic", Message: "empty completion"}
	}

	return &CompletionResponse{
		Content:          content,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}, nil
}

// Model returns the configured model identifier.
func (a *Anthropic) Model() string {
	return a.model
}

// Pricing returns Claude Sonnet list pricing.
func (a *Anthropic) Pricing() Pricing {
	return Pricing{InputPer1K: 3.0, OutputPer1K: 15.0}
}
