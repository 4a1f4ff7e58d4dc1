package tools

import (
	"context"
	"time"

	"github.com/pagerops/triage/internal/playbook"
)

// MitigationTool implements get_standard_mitigation: playbook lookup by
// incident type with severity-keyed response and resolution targets.
type MitigationTool struct {
	store *playbook.Store
	now   func() time.Time
}

// NewMitigationTool creates the mitigation tool over a playbook store.
func NewMitigationTool(store *playbook.Store) *MitigationTool {
	return &MitigationTool{store: store, now: time.Now}
}

// Name implements Tool.Name.
func (t *MitigationTool) Name() string {
	return ToolGetStandardMitigation
}

// Description implements Tool.Description.
func (t *MitigationTool) Description() string {
	return "Retrieves standard mitigation playbooks based on incident classification"
}

// InputSchema implements Tool.InputSchema.
func (t *MitigationTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"incident_type": map[string]interface{}{
				"type":        "string",
				"description": "Incident type from classification",
				"enum": []string{
					"service_outage", "security_breach", "performance_degradation",
					"data_loss", "network_issue", "configuration_error",
					"capacity_issue", "unknown",
				},
			},
			"severity": map[string]interface{}{
				"type":        "string",
				"description": "Severity level from classification",
				"enum":        []string{"critical", "high", "medium", "low"},
			},
			"affected_systems": map[string]interface{}{
				"type":        "array",
				"description": "Systems affected by the incident",
				"items":       map[string]interface{}{"type": "string"},
			},
		},
		"required": []string{"incident_type", "severity"},
	}
}

// Execute implements Tool.Execute. An incident type without a playbook falls
// back to the "unknown" recipe but is still echoed back unchanged.
func (t *MitigationTool) Execute(_ context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	incidentType, err := stringArg(args, "incident_type")
	if err != nil {
		return nil, err
	}
	severity, err := stringArg(args, "severity")
	if err != nil {
		return nil, err
	}
	affectedSystems, err := stringSliceArg(args, "affected_systems")
	if err != nil {
		return nil, err
	}
	if affectedSystems == nil {
		affectedSystems = []string{}
	}

	pb := t.store.Get(incidentType)

	return map[string]interface{}{
		"incident_type":             incidentType,
		"severity":                  severity,
		"affected_systems":          affectedSystems,
		"immediate_actions":         pb.ImmediateActions,
		"investigation_steps":       pb.InvestigationSteps,
		"escalation_criteria":       pb.EscalationCriteria,
		"target_response_time":      t.store.ResponseTime(severity),
		"estimated_resolution_time": t.store.ResolutionEstimate(severity),
		"generated_at":              t.now().UTC().Format(time.RFC3339),
	}, nil
}
