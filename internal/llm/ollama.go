package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

const (
	ollamaDefaultHost  = "http://localhost:11434"
	ollamaEnvHost      = "OLLAMA_HOST"
	defaultOllamaModel = "llama3.1:70b"
)

// Ollama calls a local Ollama server. No authentication, zero cost.
type Ollama struct {
	httpProvider

	model string
}

// NewOllama builds an Ollama provider against the given host.
func NewOllama(host, model string, opts ...ProviderOption) *Ollama {
	if host == "" {
		host = ollamaDefaultHost
	}

	if model == "" {
		model = defaultOllamaModel
	}

	return &Ollama{
		httpProvider: newHTTPProvider(host, opts...),
		model:        model,
	}
}

// OllamaFromEnv reads the host from OLLAMA_HOST, defaulting to the
// local server.
func OllamaFromEnv(model string, opts ...ProviderOption) *Ollama {
	return NewOllama(os.Getenv(ollamaEnvHost), model, opts...)
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

// Complete sends a non-streaming chat request to /api/chat.
func (o *Ollama) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (*CompletionResponse, error) {
	req := ollamaRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   false,
		Options: ollamaOptions{
			NumPredict:  opts.MaxTokens,
			Temperature: opts.Temperature,
		},
	}

	data, err := o.postJSON(ctx, "ollama", "/api/chat", nil, req)
	if err != nil {
		return nil, err
	}

	var resp ollamaResponse

	err = json.Unmarshal(data, &resp)
	if err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}

	if resp.Message.Content == "" {
		return nil, &ProviderError{Provider: "ollama", Message: "empty completion"}
	}

	return &CompletionResponse{
		Content:          resp.Message.Content,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
	}, nil
}

// Model returns the configured model identifier.
func (o *Ollama) Model() string {
	return o.model
}

// Pricing returns zero; local inference is free.
func (o *Ollama) Pricing() Pricing {
	return Pricing{}
}
