package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// GeminiProvider implements Provider using the Gemini generateContent API.
// Gemini follows the inline-call convention: a reply is a single structured
// payload carrying either free text or one embedded functionCall
// descriptor. The backend issues no call identifiers, so the adapter
// synthesizes one per call.
type GeminiProvider struct {
	client   *http.Client
	config   Config
	endpoint string
}

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com"

// DefaultGeminiConfig returns the defaults for Gemini.
func DefaultGeminiConfig() Config {
	return Config{
		Model:       "gemini-2.0-flash-exp",
		MaxTokens:   defaultMaxTokens,
		Temperature: 0.0,
		Timeout:     defaultTimeout,
	}
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(cfg Config) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	if cfg.Model == "" {
		cfg.Model = DefaultGeminiConfig().Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultGeminiConfig().MaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultGeminiConfig().Timeout
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	return &GeminiProvider{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		config:   cfg,
		endpoint: endpoint,
	}, nil
}

// Call implements Provider.Call for Gemini.
func (p *GeminiProvider) Call(ctx context.Context, conv *Conversation, tools []ToolSpec) (*Outcome, error) {
	reqBody := p.buildRequest(conv, tools)

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.endpoint, p.config.Model, p.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.parseErrorResponse(resp.StatusCode, body)
	}

	return p.parseResponse(body)
}

// Name implements Provider.Name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model implements Provider.Model.
func (p *GeminiProvider) Model() string {
	return p.config.Model
}

// Request types for the generateContent contract.

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Tools             []geminiTool           `json:"tools,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text         string              `json:"text,omitempty"`
	FunctionCall *geminiFunctionCall `json:"functionCall,omitempty"`
}

type geminiFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiFunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// Response types.

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// buildRequest encodes the conversation in the inline-call convention:
// tool results are rendered as user text ("Function <name> returned: ..."),
// and prior assistant tool calls are not echoed back. The backend needs no
// structured replay of its own calls.
func (p *GeminiProvider) buildRequest(conv *Conversation, tools []ToolSpec) geminiRequest {
	req := geminiRequest{
		GenerationConfig: geminiGenerationConfig{
			Temperature:     p.config.Temperature,
			MaxOutputTokens: p.config.MaxTokens,
		},
	}

	if conv.System() != "" {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: conv.System()}},
		}
	}

	for _, turn := range conv.Turns() {
		switch turn.Role {
		case RoleUser:
			req.Contents = append(req.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: turn.Content}},
			})
		case RoleTool:
			payload, _ := json.Marshal(turn.ToolResult.Payload)
			req.Contents = append(req.Contents, geminiContent{
				Role: "user",
				Parts: []geminiPart{{
					Text: fmt.Sprintf("Function %s returned: %s", turn.ToolResult.Name, payload),
				}},
			})
		case RoleAssistant:
			// Inline convention: no echo of prior tool calls.
		}
	}

	for _, tool := range tools {
		req.Tools = append(req.Tools, geminiTool{
			FunctionDeclarations: []geminiFunctionDeclaration{{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			}},
		})
	}

	return req
}

// parseResponse maps a generateContent reply onto the Outcome variant.
func (p *GeminiProvider) parseResponse(body []byte) (*Outcome, error) {
	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates in reply", ErrMalformedResponse)
	}

	for _, part := range geminiResp.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]interface{}{}
			}
			return &Outcome{
				ToolCall: &ToolCall{
					ID:        "gemini-" + uuid.NewString(),
					Name:      part.FunctionCall.Name,
					Arguments: args,
				},
			}, nil
		}
		if part.Text != "" {
			return &Outcome{FinalText: part.Text}, nil
		}
	}

	return nil, fmt.Errorf("%w: no text or function call in reply", ErrMalformedResponse)
}

// parseErrorResponse parses a non-2xx reply.
func (p *GeminiProvider) parseErrorResponse(statusCode int, body []byte) error {
	var errResp geminiErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return fmt.Errorf("Gemini API error (status %d): %s", statusCode, string(body))
	}

	return fmt.Errorf("Gemini API error (status %d, %s): %s",
		statusCode, errResp.Error.Status, errResp.Error.Message)
}

// interface guard
var _ Provider = (*GeminiProvider)(nil)
