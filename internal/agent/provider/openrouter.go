package provider

import (
	"fmt"
)

// OpenRouterProvider fronts the OpenRouter chat-completions API, which
// follows the OpenAI wire contract.
type OpenRouterProvider struct {
	*openAICompat
}

const defaultOpenRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// DefaultOpenRouterConfig returns the defaults for OpenRouter.
func DefaultOpenRouterConfig() Config {
	return Config{
		Model:       "mistralai/mistral-7b-instruct:free",
		MaxTokens:   defaultMaxTokens,
		Temperature: 0.0,
		Timeout:     defaultTimeout,
	}
}

// NewOpenRouterProvider creates a new OpenRouter provider.
func NewOpenRouterProvider(cfg Config) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required")
	}

	if cfg.Model == "" {
		cfg.Model = DefaultOpenRouterConfig().Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultOpenRouterConfig().MaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultOpenRouterConfig().Timeout
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOpenRouterEndpoint
	}

	return &OpenRouterProvider{
		openAICompat: newOpenAICompat("openrouter", endpoint, cfg),
	}, nil
}

// interface guard
var _ Provider = (*OpenRouterProvider)(nil)
