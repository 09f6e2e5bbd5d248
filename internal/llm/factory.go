package llm

import "fmt"

// Provider names accepted in configuration.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// NewProviderFromEnv builds the named provider, pulling credentials
// from the environment. baseURL overrides the provider's endpoint when
// non-empty.
func NewProviderFromEnv(name, model, baseURL string) (Provider, error) {
	var opts []ProviderOption
	if baseURL != "" {
		opts = append(opts, WithBaseURL(baseURL))
	}

	switch name {
	case ProviderAnthropic:
		return AnthropicFromEnv(model, opts...)
	case ProviderOpenAI:
		return OpenAIFromEnv(model, opts...)
	case ProviderOpenRouter:
		return OpenRouterFromEnv(model, opts...)
	case ProviderOllama:
		return OllamaFromEnv(model, opts...), nil
	default:
		return nil, &ValidationError{
			Message:    fmt.Sprintf("unknown provider %q", name),
			Suggestion: "use one of anthropic, openai, openrouter, ollama",
		}
	}
}

// Provider context windows, in tokens. Unknown providers fall back to
// the conservative default.
const (
	anthropicContextLimit  = 200_000
	openAIContextLimit     = 128_000
	openRouterContextLimit = 128_000
	ollamaContextLimit     = 100_000
	defaultContextLimit    = 100_000
)

// ContextLimitFor returns the named provider's context window in
// tokens.
func ContextLimitFor(name string) int {
	switch name {
	case ProviderAnthropic:
		return anthropicContextLimit
	case ProviderOpenAI:
		return openAIContextLimit
	case ProviderOpenRouter:
		return openRouterContextLimit
	case ProviderOllama:
		return ollamaContextLimit
	default:
		return defaultContextLimit
	}
}

// PricingFor returns the named provider's list pricing without
// building a provider, so estimates work without credentials. Unknown
// providers get Anthropic rates as a conservative default.
func PricingFor(name string) Pricing {
	switch name {
	case ProviderOpenAI:
		return (&OpenAI{}).Pricing()
	case ProviderOpenRouter:
		return (&OpenRouter{}).Pricing()
	case ProviderOllama:
		return (&Ollama{}).Pricing()
	default:
		return (&Anthropic{}).Pricing()
	}
}
