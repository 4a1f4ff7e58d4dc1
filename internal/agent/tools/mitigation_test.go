package tools

import (
	"context"
	"reflect"
	"testing"

	"github.com/pagerops/triage/internal/playbook"
)

func TestMitigationTool_KnownType(t *testing.T) {
	tool := NewMitigationTool(playbook.NewDefaultStore())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"incident_type":    "service_outage",
		"severity":         "critical",
		"affected_systems": []interface{}{"db-primary", "api-gateway"},
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if result["incident_type"] != "service_outage" {
		t.Errorf("incident_type = %v", result["incident_type"])
	}
	if result["severity"] != "critical" {
		t.Errorf("severity = %v", result["severity"])
	}
	if got := result["affected_systems"]; !reflect.DeepEqual(got, []string{"db-primary", "api-gateway"}) {
		t.Errorf("affected_systems = %v", got)
	}

	actions, _ := result["immediate_actions"].([]string)
	if len(actions) != 4 || actions[0] != "Verify service status via monitoring dashboards" {
		t.Errorf("immediate_actions = %v", actions)
	}
	if result["escalation_criteria"] != "If service not restored within 15 minutes or impact >1000 users" {
		t.Errorf("escalation_criteria = %v", result["escalation_criteria"])
	}
	if result["target_response_time"] != "5 minutes" {
		t.Errorf("target_response_time = %v", result["target_response_time"])
	}
	if result["estimated_resolution_time"] != "15 minutes - 2 hours" {
		t.Errorf("estimated_resolution_time = %v", result["estimated_resolution_time"])
	}
	if result["generated_at"] == "" {
		t.Error("generated_at should be set")
	}
}

func TestMitigationTool_FallbackToUnknown(t *testing.T) {
	tool := NewMitigationTool(playbook.NewDefaultStore())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"incident_type": "alien_invasion",
		"severity":      "high",
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	// The requested type is echoed even when the recipe falls back.
	if result["incident_type"] != "alien_invasion" {
		t.Errorf("incident_type = %v, want the requested type echoed", result["incident_type"])
	}
	if result["escalation_criteria"] != "Escalate within 15 minutes for classification" {
		t.Errorf("escalation_criteria = %v, want the unknown playbook", result["escalation_criteria"])
	}
	if result["target_response_time"] != "15 minutes" {
		t.Errorf("target_response_time = %v", result["target_response_time"])
	}
	if got := result["affected_systems"]; !reflect.DeepEqual(got, []string{}) {
		t.Errorf("affected_systems = %v, want empty slice", got)
	}
}

func TestMitigationTool_UnlistedSeverity(t *testing.T) {
	tool := NewMitigationTool(playbook.NewDefaultStore())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"incident_type": "network_issue",
		"severity":      "catastrophic",
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if result["target_response_time"] != "1 hour" {
		t.Errorf("target_response_time = %v, want fallback", result["target_response_time"])
	}
	if result["estimated_resolution_time"] != "Unknown" {
		t.Errorf("estimated_resolution_time = %v, want fallback", result["estimated_resolution_time"])
	}
}

func TestMitigationTool_MissingArguments(t *testing.T) {
	tool := NewMitigationTool(playbook.NewDefaultStore())

	if _, err := tool.Execute(context.Background(), map[string]interface{}{"severity": "high"}); err == nil {
		t.Error("expected error for missing incident_type")
	}
	if _, err := tool.Execute(context.Background(), map[string]interface{}{"incident_type": "service_outage"}); err == nil {
		t.Error("expected error for missing severity")
	}
	if _, err := tool.Execute(context.Background(), map[string]interface{}{
		"incident_type":    "service_outage",
		"severity":         "high",
		"affected_systems": []interface{}{1, 2},
	}); err == nil {
		t.Error("expected error for non-string affected_systems entries")
	}
}
