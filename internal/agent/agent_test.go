package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pagerops/triage/internal/agent/provider"
	"github.com/pagerops/triage/internal/agent/tools"
	"github.com/pagerops/triage/internal/logging"
	"github.com/pagerops/triage/internal/metrics"
	"github.com/pagerops/triage/internal/playbook"
)

// failingTool always errors, exercising the feedback path.
type failingTool struct{}

func (failingTool) Name() string        { return "broken_tool" }
func (failingTool) Description() string { return "Always fails" }
func (failingTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (failingTool) Execute(context.Context, map[string]interface{}) (map[string]interface{}, error) {
	return nil, errors.New("boom")
}

func newTestAgent(t *testing.T, opts Options, steps ...provider.MockStep) (*Agent, *provider.MockProvider) {
	t.Helper()

	registry := tools.NewTriageRegistry(playbook.NewDefaultStore(), logging.GetLogger("test"))
	registry.Register(failingTool{})

	mock := provider.NewMockProvider("mock", steps...)
	cascade := provider.NewCascade([]provider.Provider{mock}, logging.GetLogger("test"), nil)

	return NewAgent(cascade, registry, opts), mock
}

func extractArgs(description string) map[string]interface{} {
	return map[string]interface{}{"incident_description": description}
}

func mitigationArgs(incidentType, severity string) map[string]interface{} {
	return map[string]interface{}{
		"incident_type":    incidentType,
		"severity":         severity,
		"affected_systems": []interface{}{"production"},
	}
}

func TestTriageHappyPath(t *testing.T) {
	agent, mock := newTestAgent(t, Options{},
		provider.CallStep("call_1", tools.ToolExtractIncidentDetails, extractArgs("Production database is completely down, all users affected")),
		provider.CallStep("call_2", tools.ToolGetStandardMitigation, mitigationArgs("service_outage", "critical")),
		provider.TextStep("Severity critical. Start the outage playbook."),
	)

	result, err := agent.Triage(context.Background(), "Production database is completely down, all users affected")
	if err != nil {
		t.Fatalf("Triage() error = %v", err)
	}

	if result.Status != StatusSuccess {
		t.Errorf("Status = %q, want %q", result.Status, StatusSuccess)
	}
	if result.FinalResponse != "Severity critical. Start the outage playbook." {
		t.Errorf("FinalResponse = %q", result.FinalResponse)
	}
	if result.TotalIterations != 3 {
		t.Errorf("TotalIterations = %d, want 3", result.TotalIterations)
	}
	if result.RunID == "" {
		t.Error("expected a run ID")
	}

	if len(result.ExecutionLog) != 2 {
		t.Fatalf("ExecutionLog has %d entries, want 2", len(result.ExecutionLog))
	}
	for i, entry := range result.ExecutionLog {
		if entry.Status != StatusSuccess {
			t.Errorf("ExecutionLog[%d].Status = %q, want success", i, entry.Status)
		}
	}
	if result.ExecutionLog[0].Function != tools.ToolExtractIncidentDetails {
		t.Errorf("ExecutionLog[0].Function = %q", result.ExecutionLog[0].Function)
	}
	if result.ToolCallCount() != 2 {
		t.Errorf("ToolCallCount() = %d, want 2", result.ToolCallCount())
	}

	if result.IncidentDetails == nil {
		t.Fatal("IncidentDetails is nil")
	}
	if got := result.IncidentDetails["severity"]; got != "critical" {
		t.Errorf("IncidentDetails severity = %v, want critical", got)
	}
	if result.MitigationPlan == nil {
		t.Fatal("MitigationPlan is nil")
	}
	if _, ok := result.MitigationPlan["immediate_actions"]; !ok {
		t.Error("MitigationPlan missing immediate_actions")
	}

	// Third model turn must see both executed calls in the transcript.
	calls := mock.Calls()
	if len(calls) != 3 {
		t.Fatalf("mock saw %d calls, want 3", len(calls))
	}
	turns := calls[2].Turns()
	wantRoles := []provider.Role{
		provider.RoleUser,
		provider.RoleAssistant, provider.RoleTool,
		provider.RoleAssistant, provider.RoleTool,
	}
	if len(turns) != len(wantRoles) {
		t.Fatalf("third call saw %d turns, want %d", len(turns), len(wantRoles))
	}
	for i, want := range wantRoles {
		if turns[i].Role != want {
			t.Errorf("turn %d role = %q, want %q", i, turns[i].Role, want)
		}
	}
}

func TestTriageSeedsConversation(t *testing.T) {
	agent, mock := newTestAgent(t, Options{}, provider.TextStep("done"))

	if _, err := agent.Triage(context.Background(), "API latency spiking"); err != nil {
		t.Fatalf("Triage() error = %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("mock saw %d calls, want 1", len(calls))
	}
	if calls[0].System() != SystemPrompt {
		t.Error("system prompt not threaded through")
	}
	turns := calls[0].Turns()
	if len(turns) != 1 {
		t.Fatalf("first call saw %d turns, want 1", len(turns))
	}
	want := "Please triage this incident:\n\nAPI latency spiking"
	if turns[0].Content != want {
		t.Errorf("initial turn = %q, want %q", turns[0].Content, want)
	}

	// The tool menu must carry both built-in tools.
	specs := mock.Specs()[0]
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	joined := strings.Join(names, ",")
	if !strings.Contains(joined, tools.ToolExtractIncidentDetails) || !strings.Contains(joined, tools.ToolGetStandardMitigation) {
		t.Errorf("tool menu = %v", names)
	}
}

func TestTriageToolFailureBecomesFeedbackTurn(t *testing.T) {
	agent, mock := newTestAgent(t, Options{},
		provider.CallStep("call_1", "broken_tool", nil),
		provider.TextStep("Could not execute the tool, here is my best guess."),
	)

	result, err := agent.Triage(context.Background(), "Something broke")
	if err != nil {
		t.Fatalf("Triage() error = %v", err)
	}

	if result.Status != StatusSuccess {
		t.Errorf("Status = %q, want success after recovery", result.Status)
	}
	if len(result.ExecutionLog) != 1 {
		t.Fatalf("ExecutionLog has %d entries, want 1", len(result.ExecutionLog))
	}
	entry := result.ExecutionLog[0]
	if entry.Status != StatusError {
		t.Errorf("entry status = %q, want error", entry.Status)
	}
	if entry.Error != "boom" {
		t.Errorf("entry error = %q, want boom", entry.Error)
	}
	if entry.Result != nil {
		t.Errorf("entry result = %v, want nil", entry.Result)
	}

	// Failure appends a plain user turn, never an assistant echo.
	turns := mock.Calls()[1].Turns()
	if len(turns) != 2 {
		t.Fatalf("second call saw %d turns, want 2", len(turns))
	}
	if turns[1].Role != provider.RoleUser {
		t.Errorf("feedback role = %q, want user", turns[1].Role)
	}
	want := "Function execution failed with error: boom. Please try a different approach."
	if turns[1].Content != want {
		t.Errorf("feedback = %q, want %q", turns[1].Content, want)
	}
}

func TestTriageUnknownToolIsFatal(t *testing.T) {
	agent, _ := newTestAgent(t, Options{},
		provider.CallStep("call_1", "not_a_tool", nil),
	)

	result, err := agent.Triage(context.Background(), "Something broke")
	if err == nil {
		t.Fatal("expected an error")
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	var unknownTool *tools.UnknownToolError
	if !errors.As(err, &unknownTool) {
		t.Fatalf("error = %v, want UnknownToolError", err)
	}
	if unknownTool.Name != "not_a_tool" {
		t.Errorf("UnknownToolError.Name = %q", unknownTool.Name)
	}
}

func TestTriageMaxIterations(t *testing.T) {
	agent, mock := newTestAgent(t, Options{MaxIterations: 3},
		provider.CallStep("call_1", tools.ToolExtractIncidentDetails, extractArgs("down")),
		provider.CallStep("call_2", tools.ToolExtractIncidentDetails, extractArgs("down")),
		provider.CallStep("call_3", tools.ToolExtractIncidentDetails, extractArgs("down")),
	)

	result, err := agent.Triage(context.Background(), "down")
	if err != nil {
		t.Fatalf("Triage() error = %v", err)
	}

	if result.Status != StatusIncomplete {
		t.Errorf("Status = %q, want incomplete", result.Status)
	}
	if result.FinalResponse != "Incident analysis incomplete. Maximum iterations reached." {
		t.Errorf("FinalResponse = %q", result.FinalResponse)
	}
	if result.TotalIterations != 3 {
		t.Errorf("TotalIterations = %d, want 3", result.TotalIterations)
	}
	if mock.Remaining() != 0 {
		t.Errorf("mock has %d unused steps", mock.Remaining())
	}
	// Budget exhaustion still surfaces the collected payloads.
	if result.IncidentDetails == nil {
		t.Error("IncidentDetails lost on incomplete run")
	}
}

func TestTriageNoSignalOutcome(t *testing.T) {
	agent, _ := newTestAgent(t, Options{},
		provider.MockStep{Outcome: &provider.Outcome{}},
	)

	result, err := agent.Triage(context.Background(), "down")
	if err != nil {
		t.Fatalf("Triage() error = %v", err)
	}
	if result.Status != StatusError {
		t.Errorf("Status = %q, want error", result.Status)
	}
	if result.FinalResponse != "Error: Agent failed to process incident" {
		t.Errorf("FinalResponse = %q", result.FinalResponse)
	}
	if result.TotalIterations != 1 {
		t.Errorf("TotalIterations = %d, want 1", result.TotalIterations)
	}
}

func TestTriageCascadeExhausted(t *testing.T) {
	agent, _ := newTestAgent(t, Options{},
		provider.ErrStep(errors.New("backend down")),
	)

	result, err := agent.Triage(context.Background(), "down")
	if err == nil {
		t.Fatal("expected an error")
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	var exhausted *provider.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %v, want ExhaustedError", err)
	}
}

func TestTriageTracksLatestPayloadPerTool(t *testing.T) {
	agent, _ := newTestAgent(t, Options{},
		provider.CallStep("call_1", tools.ToolExtractIncidentDetails, extractArgs("Production database is completely down")),
		provider.CallStep("call_2", tools.ToolExtractIncidentDetails, extractArgs("Minor cosmetic glitch on the settings page")),
		provider.TextStep("done"),
	)

	result, err := agent.Triage(context.Background(), "see calls")
	if err != nil {
		t.Fatalf("Triage() error = %v", err)
	}
	if got := result.IncidentDetails["severity"]; got != "low" {
		t.Errorf("severity = %v, want low (latest call wins)", got)
	}
	if len(result.ExecutionLog) != 2 {
		t.Errorf("ExecutionLog has %d entries, want 2", len(result.ExecutionLog))
	}
}

func TestTriageRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "test")

	agent, _ := newTestAgent(t, Options{Metrics: m},
		provider.CallStep("call_1", tools.ToolExtractIncidentDetails, extractArgs("down")),
		provider.TextStep("done"),
	)

	if _, err := agent.Triage(context.Background(), "down"); err != nil {
		t.Fatalf("Triage() error = %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, want := range []string{"triage_runs_total", "triage_tool_executions_total", "triage_iterations"} {
		if !found[want] {
			t.Errorf("metric %s not recorded", want)
		}
	}
}
