package agent

import (
	"testing"
	"time"
)

func completeResult() *TriageResult {
	return &TriageResult{
		RunID:               "run-1",
		Status:              StatusSuccess,
		IncidentDescription: "Production database is down",
		IncidentDetails: map[string]interface{}{
			"severity":         "critical",
			"incident_type":    "service_outage",
			"affected_systems": []string{"production"},
		},
		MitigationPlan: map[string]interface{}{
			"immediate_actions":   []string{"Activate incident response team"},
			"investigation_steps": []string{"Review deployment history"},
			"escalation_criteria": "If service not restored within 15 minutes or impact >1000 users",
		},
		FinalResponse: "Start the outage playbook.",
		ExecutionLog: []LogEntry{
			{Iteration: 1, Function: "extract_incident_details", Status: StatusSuccess},
			{Iteration: 2, Function: "get_standard_mitigation", Status: StatusSuccess},
		},
		TotalIterations: 3,
		Timestamp:       time.Now().UTC(),
	}
}

func hasString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func TestValidateCompleteResult(t *testing.T) {
	v := ValidateResult(completeResult())

	if !v.Valid {
		t.Errorf("Valid = false, issues = %v", v.Issues)
	}
	if len(v.Issues) != 0 {
		t.Errorf("Issues = %v, want none", v.Issues)
	}
	if len(v.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", v.Warnings)
	}
	if v.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestValidateEmptyResult(t *testing.T) {
	v := ValidateResult(&TriageResult{})

	if v.Valid {
		t.Error("Valid = true for empty result")
	}
	for _, want := range []string{"Missing incident_details", "Missing mitigation_plan", "Missing final_response"} {
		if !hasString(v.Issues, want) {
			t.Errorf("Issues = %v, missing %q", v.Issues, want)
		}
	}
	if !hasString(v.Warnings, "Empty execution log") {
		t.Errorf("Warnings = %v, missing empty-log warning", v.Warnings)
	}
}

func TestValidateMissingPayloadFields(t *testing.T) {
	result := completeResult()
	delete(result.IncidentDetails, "severity")
	delete(result.MitigationPlan, "escalation_criteria")

	v := ValidateResult(result)

	if v.Valid {
		t.Error("Valid = true despite missing fields")
	}
	if !hasString(v.Issues, "incident_details missing field: severity") {
		t.Errorf("Issues = %v", v.Issues)
	}
	if !hasString(v.Issues, "mitigation_plan missing field: escalation_criteria") {
		t.Errorf("Issues = %v", v.Issues)
	}
}

func TestValidateUnusualSeverity(t *testing.T) {
	result := completeResult()
	result.IncidentDetails["severity"] = "catastrophic"

	v := ValidateResult(result)

	if !v.Valid {
		t.Errorf("Valid = false, issues = %v; unusual severity is a warning", v.Issues)
	}
	if !hasString(v.Warnings, "Unusual severity: catastrophic") {
		t.Errorf("Warnings = %v", v.Warnings)
	}
}

func TestValidateManyFunctionCalls(t *testing.T) {
	result := completeResult()
	for len(result.ExecutionLog) <= 5 {
		result.ExecutionLog = append(result.ExecutionLog, LogEntry{Status: StatusSuccess})
	}

	v := ValidateResult(result)

	if !hasString(v.Warnings, "Many function calls: 6") {
		t.Errorf("Warnings = %v", v.Warnings)
	}
}

func TestValidatePrefersToolResults(t *testing.T) {
	result := completeResult()
	// Simulate a result where only the generic payload map survived.
	result.ToolResults = map[string]map[string]interface{}{
		"extract_incident_details": result.IncidentDetails,
		"get_standard_mitigation":  result.MitigationPlan,
	}
	result.IncidentDetails = nil
	result.MitigationPlan = nil

	v := ValidateResult(result)

	if !v.Valid {
		t.Errorf("Valid = false, issues = %v", v.Issues)
	}
}

func TestValidateCustomContract(t *testing.T) {
	contract := Contract{
		Payloads: []PayloadRule{
			{Tool: "summarize", Label: "summary", Required: []string{"text"}},
		},
		MaxExpectedCalls: 1,
	}
	result := &TriageResult{
		ToolResults: map[string]map[string]interface{}{
			"summarize": {"text": "ok"},
		},
		FinalResponse: "done",
		ExecutionLog: []LogEntry{
			{Status: StatusSuccess},
			{Status: StatusSuccess},
		},
	}

	v := contract.Validate(result)

	if !v.Valid {
		t.Errorf("Valid = false, issues = %v", v.Issues)
	}
	if !hasString(v.Warnings, "Many function calls: 2") {
		t.Errorf("Warnings = %v", v.Warnings)
	}
}
