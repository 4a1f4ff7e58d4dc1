package tools

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestClassifyTool_Classification(t *testing.T) {
	tests := []struct {
		name           string
		description    string
		wantSeverity   string
		wantType       string
		wantSystems    []string
		wantConfidence string
	}{
		{
			name:           "full outage",
			description:    "Production database is completely down, all users affected",
			wantSeverity:   "critical",
			wantType:       "service_outage",
			wantSystems:    []string{"production"},
			wantConfidence: "high",
		},
		{
			name:           "security incident",
			description:    "Unauthorized access detected on admin panel",
			wantSeverity:   "critical",
			wantType:       "security_breach",
			wantSystems:    []string{"system_unknown"},
			wantConfidence: "high",
		},
		{
			name:           "degradation",
			description:    "Checkout is slow for some users",
			wantSeverity:   "high",
			wantType:       "performance_degradation",
			wantSystems:    []string{"system_unknown"},
			wantConfidence: "high",
		},
		{
			name:           "outage wording beats security wording",
			description:    "Security breach caused a complete outage",
			wantSeverity:   "critical",
			wantType:       "service_outage",
			wantSystems:    []string{"system_unknown"},
			wantConfidence: "high",
		},
		{
			name:           "cosmetic issue",
			description:    "Minor cosmetic glitch on the settings page",
			wantSeverity:   "low",
			wantType:       "configuration_error",
			wantSystems:    []string{"system_unknown"},
			wantConfidence: "high",
		},
		{
			name:           "nothing recognized",
			description:    "Something odd happened earlier today",
			wantSeverity:   "medium",
			wantType:       "unknown",
			wantSystems:    []string{"system_unknown"},
			wantConfidence: "low",
		},
		{
			name:           "duplicate system mentions collapse",
			description:    "Backup database corrupted, backup database offline",
			wantSeverity:   "medium",
			wantType:       "data_loss",
			wantSystems:    []string{"backup"},
			wantConfidence: "high",
		},
	}

	tool := NewClassifyTool()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tool.Execute(context.Background(), map[string]interface{}{
				"incident_description": tt.description,
			})
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}

			if got := result["severity"]; got != tt.wantSeverity {
				t.Errorf("severity = %v, want %v", got, tt.wantSeverity)
			}
			if got := result["incident_type"]; got != tt.wantType {
				t.Errorf("incident_type = %v, want %v", got, tt.wantType)
			}
			if got := result["affected_systems"]; !reflect.DeepEqual(got, tt.wantSystems) {
				t.Errorf("affected_systems = %v, want %v", got, tt.wantSystems)
			}
			if got := result["confidence"]; got != tt.wantConfidence {
				t.Errorf("confidence = %v, want %v", got, tt.wantConfidence)
			}
			if result["analyzed_at"] == "" {
				t.Error("analyzed_at should be set")
			}
		})
	}
}

func TestClassifyTool_SummaryTruncation(t *testing.T) {
	tool := NewClassifyTool()

	long := strings.Repeat("a", 300)
	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"incident_description": long,
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	summary, _ := result["description_summary"].(string)
	if len(summary) != 200 {
		t.Errorf("description_summary length = %d, want 200", len(summary))
	}

	short := "API gateway timeout"
	result, _ = tool.Execute(context.Background(), map[string]interface{}{
		"incident_description": short,
	})
	if result["description_summary"] != short {
		t.Errorf("short description should pass through unchanged, got %v", result["description_summary"])
	}
}

func TestClassifyTool_MissingArgument(t *testing.T) {
	tool := NewClassifyTool()

	if _, err := tool.Execute(context.Background(), map[string]interface{}{}); err == nil {
		t.Error("expected error for missing incident_description")
	}
	if _, err := tool.Execute(context.Background(), map[string]interface{}{"incident_description": 42}); err == nil {
		t.Error("expected error for non-string incident_description")
	}
}
