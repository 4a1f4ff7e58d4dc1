package agent

import "time"

// Triage terminal status values. Success means the model produced a final
// summary, Incomplete means the iteration budget ran out first, Error means
// the run terminated abnormally but still produced a result document.
const (
	StatusSuccess    = "success"
	StatusIncomplete = "incomplete"
	StatusError      = "error"
)

// LogEntry records one tool execution attempt. Exactly one of Result or
// Error is set, mirrored by Status ("success" or "error").
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Iteration int                    `json:"iteration"`
	Function  string                 `json:"function"`
	Arguments map[string]interface{} `json:"arguments"`
	Result    map[string]interface{} `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Status    string                 `json:"status"`
}

// TriageResult is the complete outcome of one triage run. It is assembled
// on every terminal branch, including incomplete and degraded ones, so a
// caller always gets the execution log and whatever payloads were
// collected before termination.
//
// IncidentDetails and MitigationPlan are convenience views of the two
// well-known tool payloads; ToolResults carries the latest payload per tool
// name and is the authoritative record when tools are added or renamed.
type TriageResult struct {
	RunID               string                            `json:"run_id"`
	Status              string                            `json:"status"`
	IncidentDescription string                            `json:"incident_description"`
	IncidentDetails     map[string]interface{}            `json:"incident_details"`
	MitigationPlan      map[string]interface{}            `json:"mitigation_plan"`
	ToolResults         map[string]map[string]interface{} `json:"tool_results,omitempty"`
	FinalResponse       string                            `json:"final_response"`
	ExecutionLog        []LogEntry                        `json:"execution_log"`
	TotalIterations     int                               `json:"total_iterations"`
	Timestamp           time.Time                         `json:"timestamp"`
}

// ToolCallCount returns the number of successful tool executions in the
// log.
func (r *TriageResult) ToolCallCount() int {
	n := 0
	for _, entry := range r.ExecutionLog {
		if entry.Status == StatusSuccess {
			n++
		}
	}
	return n
}
