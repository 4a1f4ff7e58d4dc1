// Package agent implements the incident triage loop: a bounded
// query-execute cycle that drives the provider cascade with a tool menu,
// executes the tool calls the model requests, and assembles a TriageResult
// on every terminal branch.
//
// The loop owns the conversation. Tool successes append the assistant call
// and its result to the transcript; tool failures append a plain user turn
// asking the model to try a different approach. The conversation is fresh
// per incident, there is no cross-incident memory.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pagerops/triage/internal/agent/audit"
	"github.com/pagerops/triage/internal/agent/provider"
	"github.com/pagerops/triage/internal/agent/tools"
	"github.com/pagerops/triage/internal/logging"
	"github.com/pagerops/triage/internal/metrics"
)

// DefaultMaxIterations bounds the query-execute cycle. Two tool calls plus
// a summary fits comfortably; ten leaves room for feedback turns after
// failed executions.
const DefaultMaxIterations = 10

// SystemPrompt is the fixed instruction seeded into every triage
// conversation.
const SystemPrompt = `You are an expert IT incident triage agent. Your role is to:

1. Analyze incident descriptions to extract structured information (severity, type, affected systems)
2. Recommend standard mitigation procedures based on the incident classification
3. Provide clear, actionable guidance for incident responders

You have access to the following functions:
- extract_incident_details: Analyzes incident text to determine severity, type, and affected systems
- get_standard_mitigation: Retrieves standard mitigation playbooks based on incident classification

Process for triaging an incident:
1. First, call extract_incident_details to analyze the incident description
2. Then, use the extracted information to call get_standard_mitigation
3. Finally, provide a clear summary with:
   - Incident classification (severity and type)
   - Affected systems
   - Immediate actions to take
   - Investigation steps
   - Escalation criteria

Be concise, precise, and focus on actionable information.`

// Options carries the optional collaborators and limits of an Agent. The
// zero value is valid: default iteration budget, no metrics, no audit log.
type Options struct {
	// MaxIterations overrides the query-execute budget. Zero or negative
	// selects DefaultMaxIterations.
	MaxIterations int

	// Metrics receives per-run and per-tool observations. May be nil.
	Metrics *metrics.Metrics

	// Audit receives the JSONL event stream. May be nil.
	Audit *audit.Logger
}

// Agent runs the triage loop against a provider cascade and a tool
// registry. Agents are stateless between runs and safe for concurrent use:
// all per-run state lives on the stack of Triage.
type Agent struct {
	cascade       *provider.Cascade
	registry      *tools.Registry
	logger        *logging.Logger
	metrics       *metrics.Metrics
	audit         *audit.Logger
	maxIterations int
	now           func() time.Time
}

// NewAgent creates an agent over the given cascade and tool registry.
func NewAgent(cascade *provider.Cascade, registry *tools.Registry, opts Options) *Agent {
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Agent{
		cascade:       cascade,
		registry:      registry,
		logger:        logging.GetLogger("agent"),
		metrics:       opts.Metrics,
		audit:         opts.Audit,
		maxIterations: maxIterations,
		now:           time.Now,
	}
}

// Triage runs the full loop for one incident description and returns the
// assembled result.
//
// Degraded terminations still return a result: an exhausted iteration
// budget yields StatusIncomplete, a model reply carrying neither text nor
// a tool call yields StatusError, both with a nil error. Only failures that
// leave no usable transcript return an error instead: every provider
// failing a model turn, an unknown tool name, or context cancellation.
func (a *Agent) Triage(ctx context.Context, incidentDescription string) (*TriageResult, error) {
	runID := uuid.NewString()
	start := a.now()

	conv := provider.NewConversation(SystemPrompt)
	conv.AddUser("Please triage this incident:\n\n" + incidentDescription)
	specs := a.registry.Specs()

	a.logger.Info("starting triage run %s", runID)
	a.audit.LogRunStart(runID, incidentDescription, a.cascade.Providers())

	executionLog := []LogEntry{}
	toolResults := map[string]map[string]interface{}{}
	finalResponse := ""
	status := StatusIncomplete

	iteration := 0
	for iteration < a.maxIterations {
		iteration++
		a.logger.Debug("iteration %d/%d", iteration, a.maxIterations)

		outcome, providerName, err := a.cascade.Call(ctx, conv, specs)
		if err != nil {
			a.audit.LogError(runID, err)
			a.metrics.RecordTriage(StatusError, iteration, a.now().Sub(start).Seconds())
			return nil, fmt.Errorf("model turn %d: %w", iteration, err)
		}

		if outcome.ToolCall == nil {
			if outcome.FinalText != "" {
				a.logger.Info("triage completed after %d iterations", iteration)
				a.audit.LogModelTurn(runID, iteration, providerName, "final", "")
				finalResponse = outcome.FinalText
				status = StatusSuccess
			} else {
				a.logger.Error("model returned neither text nor a function call")
				a.audit.LogModelTurn(runID, iteration, providerName, "empty", "")
				finalResponse = "Error: Agent failed to process incident"
				status = StatusError
			}
			break
		}

		call := outcome.ToolCall
		a.logger.Info("executing function: %s", call.Name)
		a.audit.LogModelTurn(runID, iteration, providerName, "tool_call", call.Name)
		a.audit.LogToolStart(runID, iteration, call.Name, call.Arguments)

		toolStart := a.now()
		result, execErr := a.registry.Execute(ctx, call.Name, call.Arguments)
		toolElapsed := a.now().Sub(toolStart)

		if execErr != nil {
			var unknownTool *tools.UnknownToolError
			if errors.As(execErr, &unknownTool) {
				// The model asked for a tool that was never offered.
				// That is a wiring defect, not something feedback can
				// repair.
				a.audit.LogError(runID, execErr)
				a.metrics.RecordTriage(StatusError, iteration, a.now().Sub(start).Seconds())
				return nil, fmt.Errorf("model turn %d: %w", iteration, execErr)
			}

			a.logger.Error("function %s failed: %v", call.Name, execErr)
			executionLog = append(executionLog, LogEntry{
				Timestamp: a.now().UTC(),
				Iteration: iteration,
				Function:  call.Name,
				Arguments: call.Arguments,
				Error:     execErr.Error(),
				Status:    StatusError,
			})
			a.metrics.RecordToolExecution(call.Name, "error")
			a.audit.LogToolComplete(runID, iteration, call.Name, false, toolElapsed, execErr.Error())

			feedback := fmt.Sprintf("Function execution failed with error: %v. Please try a different approach.", execErr)
			conv.AddUser(feedback)
			a.audit.LogToolFeedback(runID, iteration, feedback)
			continue
		}

		a.logger.Info("function %s executed successfully", call.Name)
		toolResults[call.Name] = result
		executionLog = append(executionLog, LogEntry{
			Timestamp: a.now().UTC(),
			Iteration: iteration,
			Function:  call.Name,
			Arguments: call.Arguments,
			Result:    result,
			Status:    StatusSuccess,
		})
		a.metrics.RecordToolExecution(call.Name, "success")
		a.audit.LogToolComplete(runID, iteration, call.Name, true, toolElapsed, result)

		conv.AddToolCall(*call)
		conv.AddToolResult(provider.ToolResult{CallID: call.ID, Name: call.Name, Payload: result})
	}

	if status == StatusIncomplete {
		a.logger.Warn("max iterations reached")
		finalResponse = "Incident analysis incomplete. Maximum iterations reached."
	}

	elapsed := a.now().Sub(start)
	a.metrics.RecordTriage(status, iteration, elapsed.Seconds())
	a.audit.LogRunComplete(runID, status, iteration, elapsed)

	return &TriageResult{
		RunID:               runID,
		Status:              status,
		IncidentDescription: incidentDescription,
		IncidentDetails:     toolResults[tools.ToolExtractIncidentDetails],
		MitigationPlan:      toolResults[tools.ToolGetStandardMitigation],
		ToolResults:         toolResults,
		FinalResponse:       finalResponse,
		ExecutionLog:        executionLog,
		TotalIterations:     iteration,
		Timestamp:           a.now().UTC(),
	}, nil
}
