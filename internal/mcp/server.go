// Package mcp exposes the triage agent over the Model Context Protocol.
// The two registry functions are published as individual tools, and
// triage_incident runs the full autonomous loop in one call.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pagerops/triage/internal/agent"
	"github.com/pagerops/triage/internal/agent/tools"
)

// ToolTriageIncident runs the whole agent loop, unlike the registry tools
// which execute a single function.
const ToolTriageIncident = "triage_incident"

// Runner runs the triage loop for one incident.
type Runner interface {
	Triage(ctx context.Context, incidentDescription string) (*agent.TriageResult, error)
}

// TriageServer wraps the mcp-go server with the triage tool set.
type TriageServer struct {
	mcpServer *server.MCPServer
	runner    Runner
	registry  *tools.Registry
	version   string
}

// ServerOptions configures the triage MCP server.
type ServerOptions struct {
	Runner   Runner
	Registry *tools.Registry
	Version  string
}

// NewTriageServer creates an MCP server exposing the triage tools and
// workflow prompt.
func NewTriageServer(opts ServerOptions) (*TriageServer, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}

	mcpServer := server.NewMCPServer(
		"Incident Triage MCP Server",
		opts.Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	s := &TriageServer{
		mcpServer: mcpServer,
		runner:    opts.Runner,
		registry:  opts.Registry,
		version:   opts.Version,
	}

	s.registerTools()
	s.registerPrompts()

	return s, nil
}

func (s *TriageServer) registerTools() {
	// Registry tools keep the schemas they already present to the LLM
	// providers.
	for _, name := range s.registry.Names() {
		tool, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		schemaJSON, err := json.Marshal(tool.InputSchema())
		if err != nil {
			// This should never happen with well-formed schemas
			panic(fmt.Sprintf("Failed to marshal schema for tool %s: %v", name, err))
		}
		mcpTool := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schemaJSON)
		s.mcpServer.AddTool(mcpTool, s.registryToolHandler(tool.Name()))
	}

	triageSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"description": map[string]interface{}{
				"type":        "string",
				"description": "Free-form incident description to triage",
			},
		},
		"required": []string{"description"},
	}
	schemaJSON, err := json.Marshal(triageSchema)
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal schema for tool %s: %v", ToolTriageIncident, err))
	}
	mcpTool := mcp.NewToolWithRawSchema(
		ToolTriageIncident,
		"Run the autonomous triage loop for an incident: classify it, fetch the standard mitigation plan and summarize the response",
		schemaJSON,
	)
	s.mcpServer.AddTool(mcpTool, s.triageToolHandler())
}

// registryToolHandler adapts a registry function to the mcp-go handler
// format. Execution failures become tool error results, not protocol
// errors.
func (s *TriageServer) registryToolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := decodeArguments(request)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		result, err := s.registry.Execute(ctx, name, args)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Tool execution failed: %v", err)), nil
		}

		resultJSON, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
		}

		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

// triageToolHandler runs the full agent loop and returns the result
// together with its validation report.
func (s *TriageServer) triageToolHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := decodeArguments(request)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		description, _ := args["description"].(string)
		if description == "" {
			return mcp.NewToolResultError("Invalid arguments: description is required"), nil
		}

		result, err := s.runner.Triage(ctx, description)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Triage failed: %v", err)), nil
		}

		payload := struct {
			Result     *agent.TriageResult `json:"result"`
			Validation agent.Validation    `json:"validation"`
		}{
			Result:     result,
			Validation: agent.ValidateResult(result),
		}

		resultJSON, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
		}

		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

// decodeArguments renders the request arguments back to JSON and into the
// map shape the registry expects.
func decodeArguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	raw, err := json.Marshal(request.Params.Arguments)
	if err != nil {
		return nil, err
	}
	args := map[string]interface{}{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("arguments must be an object: %w", err)
	}
	return args, nil
}

func (s *TriageServer) registerPrompts() {
	workflowPrompt := mcp.Prompt{
		Name:        "incident_triage_workflow",
		Description: "Classify an incident and assemble its standard mitigation plan",
		Arguments: []mcp.PromptArgument{
			{Name: "incident_description", Description: "Free-form description of the incident", Required: true},
			{Name: "occurred_at", Description: "Optional time the incident occurred", Required: false},
		},
	}

	s.mcpServer.AddPrompt(workflowPrompt, s.workflowPromptHandler())
}

func (s *TriageServer) workflowPromptHandler() server.PromptHandlerFunc {
	return func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		description := request.Params.Arguments["incident_description"]
		occurredAt := request.Params.Arguments["occurred_at"]

		text := fmt.Sprintf("Triage this incident. Call extract_incident_details to classify it, then get_standard_mitigation for the matching response plan, and finish with a short summary.\n\nIncident: %s", description)
		if occurredAt != "" {
			text += fmt.Sprintf("\nOccurred at: %s", occurredAt)
		}

		messages := []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: text,
				},
			},
		}

		return &mcp.GetPromptResult{
			Description: "Incident triage workflow",
			Messages:    messages,
		}, nil
	}
}

// GetMCPServer returns the underlying mcp-go server for transport setup.
func (s *TriageServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
