// Package tools implements the functions the triage agent exposes to the
// model: incident classification and mitigation lookup, behind an explicit
// registry keyed by function name.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pagerops/triage/internal/agent/provider"
	"github.com/pagerops/triage/internal/logging"
	"github.com/pagerops/triage/internal/playbook"
)

// Tool names offered to the model.
const (
	ToolExtractIncidentDetails = "extract_incident_details"
	ToolGetStandardMitigation  = "get_standard_mitigation"
)

// Tool is one function callable by the model. Execute receives the decoded
// arguments object and returns a JSON-shaped payload.
type Tool interface {
	// Name returns the tool's unique identifier.
	Name() string

	// Description returns a human-readable description for the LLM.
	Description() string

	// InputSchema returns the JSON Schema of the arguments object.
	InputSchema() map[string]interface{}

	// Execute runs the tool. An error marks the execution as failed; the
	// agent loop reports it back to the model rather than aborting.
	Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)
}

// UnknownToolError reports a call to a name no tool is registered under.
// Unlike an execution failure it is not recoverable: the model was offered
// an explicit menu and asked for something off it.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown function: %q", e.Name)
}

// Registry manages tool registration and dispatch. Lookups are exact name
// matches against an explicit map; there is no reflective or dynamic
// resolution.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logging.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// NewTriageRegistry creates a registry with the two triage functions
// registered, backed by the given playbook store.
func NewTriageRegistry(store *playbook.Store, logger *logging.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(NewClassifyTool())
	r.Register(NewMitigationTool(store))
	return r
}

// Register adds a tool. A tool registered under an existing name replaces
// the previous one.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	r.logger.Debug("registered tool %s", tool.Name())
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns the provider-neutral tool menu, sorted by name so the wire
// encoding is deterministic.
func (r *Registry) Specs() []provider.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]provider.ToolSpec, 0, len(r.tools))
	for _, tool := range r.tools {
		specs = append(specs, provider.ToolSpec{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.InputSchema(),
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Execute dispatches a call by name. A missing name returns
// *UnknownToolError; any other error is an execution failure of the named
// tool.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return tool.Execute(ctx, args)
}

// Argument extraction helpers shared by the triage tools. Arguments arrive
// as decoded JSON, so numbers are float64 and arrays are []interface{}.

func stringArg(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

func stringSliceArg(args map[string]interface{}, key string) ([]string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch vv := v.(type) {
	case []string:
		return vv, nil
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("argument %q must be an array of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("argument %q must be an array of strings", key)
	}
}
