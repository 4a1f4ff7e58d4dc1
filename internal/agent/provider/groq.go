package provider

import (
	"fmt"
)

// GroqProvider fronts the Groq chat-completions API, which follows the
// OpenAI wire contract.
type GroqProvider struct {
	*openAICompat
}

const defaultGroqEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// DefaultGroqConfig returns the defaults for Groq.
func DefaultGroqConfig() Config {
	return Config{
		Model:       "llama-3.1-70b-versatile",
		MaxTokens:   defaultMaxTokens,
		Temperature: 0.0,
		Timeout:     defaultTimeout,
	}
}

// NewGroqProvider creates a new Groq provider.
func NewGroqProvider(cfg Config) (*GroqProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Groq API key is required")
	}

	if cfg.Model == "" {
		cfg.Model = DefaultGroqConfig().Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultGroqConfig().MaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultGroqConfig().Timeout
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultGroqEndpoint
	}

	return &GroqProvider{
		openAICompat: newOpenAICompat("groq", endpoint, cfg),
	}, nil
}

// interface guard
var _ Provider = (*GroqProvider)(nil)
