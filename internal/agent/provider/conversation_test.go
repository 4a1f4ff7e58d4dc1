package provider

import (
	"testing"
)

func TestConversation_AppendOrder(t *testing.T) {
	conv := NewConversation("triage system prompt")
	conv.AddUser("Please triage this incident:\n\nDatabase is down")
	conv.AddToolCall(ToolCall{ID: "call_1", Name: "extract_incident_details"})
	conv.AddToolResult(ToolResult{CallID: "call_1", Name: "extract_incident_details", Payload: map[string]interface{}{"severity": "critical"}})
	conv.AddUser("Function execution failed with error: boom. Please try a different approach.")

	if conv.System() != "triage system prompt" {
		t.Errorf("System() = %q", conv.System())
	}
	if conv.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", conv.Len())
	}

	wantRoles := []Role{RoleUser, RoleAssistant, RoleTool, RoleUser}
	for i, turn := range conv.Turns() {
		if turn.Role != wantRoles[i] {
			t.Errorf("turn %d role = %q, want %q", i, turn.Role, wantRoles[i])
		}
	}

	if conv.Turns()[1].ToolCall.ID != "call_1" {
		t.Errorf("tool call ID = %q", conv.Turns()[1].ToolCall.ID)
	}
	if conv.Turns()[2].ToolResult.CallID != "call_1" {
		t.Errorf("tool result CallID = %q", conv.Turns()[2].ToolResult.CallID)
	}
}

func TestConversation_CloneIsolation(t *testing.T) {
	conv := NewConversation("sys")
	conv.AddUser("incident")

	snapshot := conv.Clone()
	conv.AddToolCall(ToolCall{ID: "call_1", Name: "extract_incident_details"})
	conv.AddUser("more")

	if snapshot.Len() != 1 {
		t.Errorf("snapshot grew with the original: Len() = %d, want 1", snapshot.Len())
	}
	if conv.Len() != 3 {
		t.Errorf("original Len() = %d, want 3", conv.Len())
	}
	if snapshot.System() != "sys" {
		t.Errorf("snapshot System() = %q", snapshot.System())
	}
}
