package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// openAICompat is the shared codec for chat-completions backends that speak
// the OpenAI wire contract (Groq, OpenRouter). It implements the tool-call
// array convention: replies carry a tool_calls array with backend-issued
// identifiers, and the request must replay each prior call as an assistant
// message followed by a role:tool message bound to the same identifier.
//
// Multiple parallel calls in one reply are not supported by the loop; the
// codec honours only the first entry.
type openAICompat struct {
	name     string
	client   *http.Client
	config   Config
	endpoint string
}

func newOpenAICompat(name, endpoint string, cfg Config) *openAICompat {
	return &openAICompat{
		name: name,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		config:   cfg,
		endpoint: endpoint,
	}
}

// Call implements Provider.Call against a chat-completions endpoint.
func (p *openAICompat) Call(ctx context.Context, conv *Conversation, tools []ToolSpec) (*Outcome, error) {
	reqBody, err := p.buildRequest(conv, tools)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

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
func (p *openAICompat) Name() string {
	return p.name
}

// Model implements Provider.Model.
func (p *openAICompat) Model() string {
	return p.config.Model
}

// Request types for the chat-completions contract.

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

// openAIMessage carries Content as a pointer so assistant tool-call turns
// serialize with an explicit null, which the contract requires.
type openAIMessage struct {
	Role       string           `json:"role"`
	Content    *string          `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

// openAIFunctionCall carries Arguments as a JSON-encoded string, not an
// object. The codec decodes it on the way in and re-encodes on the way out.
type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIFunctionSpec `json:"function"`
}

type openAIFunctionSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// Response types.

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
}

type openAIChoice struct {
	Message      openAIResponseMessage `json:"message"`
	FinishReason string                `json:"finish_reason,omitempty"`
}

type openAIResponseMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// buildRequest encodes the conversation in the tool-call array convention.
// Every executed call is replayed as an assistant message carrying the
// original call followed by a role:tool message bound via tool_call_id;
// dropping either half makes the backend reject the history.
func (p *openAICompat) buildRequest(conv *Conversation, tools []ToolSpec) (openAIRequest, error) {
	req := openAIRequest{
		Model:       p.config.Model,
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	}

	if conv.System() != "" {
		system := conv.System()
		req.Messages = append(req.Messages, openAIMessage{
			Role:    "system",
			Content: &system,
		})
	}

	for _, turn := range conv.Turns() {
		switch turn.Role {
		case RoleUser:
			content := turn.Content
			req.Messages = append(req.Messages, openAIMessage{
				Role:    "user",
				Content: &content,
			})
		case RoleAssistant:
			args, err := json.Marshal(turn.ToolCall.Arguments)
			if err != nil {
				return openAIRequest{}, fmt.Errorf("failed to encode arguments for %s: %w", turn.ToolCall.Name, err)
			}
			req.Messages = append(req.Messages, openAIMessage{
				Role:    "assistant",
				Content: nil,
				ToolCalls: []openAIToolCall{{
					ID:   turn.ToolCall.ID,
					Type: "function",
					Function: openAIFunctionCall{
						Name:      turn.ToolCall.Name,
						Arguments: string(args),
					},
				}},
			})
		case RoleTool:
			payload, err := json.Marshal(turn.ToolResult.Payload)
			if err != nil {
				return openAIRequest{}, fmt.Errorf("failed to encode result for %s: %w", turn.ToolResult.Name, err)
			}
			content := string(payload)
			req.Messages = append(req.Messages, openAIMessage{
				Role:       "tool",
				Content:    &content,
				ToolCallID: turn.ToolResult.CallID,
			})
		}
	}

	for _, tool := range tools {
		req.Tools = append(req.Tools, openAITool{
			Type: "function",
			Function: openAIFunctionSpec{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return req, nil
}

// parseResponse maps a chat-completions reply onto the Outcome variant.
func (p *openAICompat) parseResponse(body []byte) (*Outcome, error) {
	var chatResp openAIResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in reply", ErrMalformedResponse)
	}

	msg := chatResp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		call := msg.ToolCalls[0]
		args := map[string]interface{}{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("%w: undecodable arguments for %s", ErrMalformedResponse, call.Function.Name)
			}
		}
		return &Outcome{
			ToolCall: &ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: args,
			},
		}, nil
	}

	if msg.Content != "" {
		return &Outcome{FinalText: msg.Content}, nil
	}

	return nil, fmt.Errorf("%w: no text or tool call in reply", ErrMalformedResponse)
}

// parseErrorResponse parses a non-2xx reply.
func (p *openAICompat) parseErrorResponse(statusCode int, body []byte) error {
	var errResp openAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return fmt.Errorf("%s API error (status %d): %s", p.name, statusCode, string(body))
	}

	return fmt.Errorf("%s API error (status %d, %s): %s",
		p.name, statusCode, errResp.Error.Type, errResp.Error.Message)
}
