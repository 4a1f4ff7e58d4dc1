// Package provider defines the provider-neutral function-calling contract
// and the adapters that map it onto each backend's wire protocol.
//
// Adapters translate a Conversation plus a tool menu into one backend call
// and normalize the reply into an Outcome: either final text or a single
// pending tool call. Two wire conventions exist and are not interchangeable:
// Gemini embeds a single inline functionCall in a generation reply, while
// Groq and OpenRouter follow the OpenAI tool-call array convention with
// caller-echoed call identifiers. The Cascade hides the difference from
// callers above it.
package provider

import (
	"context"
	"errors"
	"time"
)

// Provider is a single LLM backend capable of function calling.
type Provider interface {
	// Call sends the conversation and tool menu to the backend and maps
	// the reply onto the neutral Outcome variant. Turn encoding is owned
	// by the adapter: each provider renders the transcript in its own
	// wire convention.
	Call(ctx context.Context, conv *Conversation, tools []ToolSpec) (*Outcome, error)

	// Name returns the provider identifier (e.g. "gemini", "groq").
	Name() string

	// Model returns the configured model identifier.
	Model() string
}

// ToolSpec describes one callable tool offered to the model. Parameters is
// a JSON-schema object ({"type": "object", "properties": ..., "required":
// ...}). Specs are immutable; they are loaded once per agent instance.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Outcome is the provider-neutral reply. Exactly one of FinalText or
// ToolCall is set: FinalText carries the model's terminal answer, ToolCall
// a pending request the caller must execute before querying again.
type Outcome struct {
	FinalText string
	ToolCall  *ToolCall
}

// ErrMalformedResponse marks a backend reply that was received and decoded
// but matches neither the final-text nor the tool-call shape. It is fatal
// for the attempt and never retried by the same adapter.
var ErrMalformedResponse = errors.New("unexpected response format")

// Config carries the per-provider settings shared by all adapters. Keys
// and models are read once at construction and immutable afterwards.
type Config struct {
	// APIKey authenticates against the backend. Required.
	APIKey string

	// Model is the model identifier. Adapter defaults apply when empty.
	Model string

	// Endpoint overrides the backend base URL. Used by tests; adapters
	// default to their public endpoint.
	Endpoint string

	// MaxTokens caps the generated reply length.
	MaxTokens int

	// Temperature controls sampling randomness. Triage runs at 0 for
	// reproducibility.
	Temperature float64

	// Timeout bounds each HTTP call. A call exceeding it fails the
	// attempt and the cascade moves on; there is no in-place retry.
	Timeout time.Duration
}

const (
	defaultMaxTokens = 2048
	defaultTimeout   = 60 * time.Second
)
