package agent

import (
	"fmt"
	"time"

	"github.com/pagerops/triage/internal/agent/tools"
)

// Validation is the report produced by checking a TriageResult against a
// Contract. Issues mark the result unusable (Valid is false), warnings
// flag oddities that responders should eyeball but that do not block
// downstream consumers.
type Validation struct {
	Valid     bool      `json:"valid"`
	Issues    []string  `json:"issues"`
	Warnings  []string  `json:"warnings"`
	Timestamp time.Time `json:"timestamp"`
}

// PayloadRule describes the shape one tool payload must have in a complete
// result. Label is the result-document key used in messages.
type PayloadRule struct {
	Tool     string
	Label    string
	Required []string

	// Enums maps payload fields to their allowed values. A present field
	// with an out-of-set value produces a warning, not an issue.
	Enums map[string][]string
}

// Contract describes what a complete triage result must contain. The
// default contract matches the two built-in tools; custom registries
// supply their own.
type Contract struct {
	Payloads []PayloadRule

	// MaxExpectedCalls is the execution-log length above which the
	// validator warns about excessive tool calling.
	MaxExpectedCalls int
}

// DefaultContract returns the contract for the built-in triage tools.
func DefaultContract() Contract {
	return Contract{
		Payloads: []PayloadRule{
			{
				Tool:     tools.ToolExtractIncidentDetails,
				Label:    "incident_details",
				Required: []string{"severity", "incident_type", "affected_systems"},
				Enums: map[string][]string{
					"severity": {"critical", "high", "medium", "low"},
				},
			},
			{
				Tool:     tools.ToolGetStandardMitigation,
				Label:    "mitigation_plan",
				Required: []string{"immediate_actions", "investigation_steps", "escalation_criteria"},
			},
		},
		MaxExpectedCalls: 5,
	}
}

// ValidateResult checks a result against the default contract.
func ValidateResult(result *TriageResult) Validation {
	return DefaultContract().Validate(result)
}

// Validate checks the result for completeness and correctness. The result
// is never mutated; the report is built from scratch on every call.
func (c Contract) Validate(result *TriageResult) Validation {
	validation := Validation{
		Valid:     true,
		Issues:    []string{},
		Warnings:  []string{},
		Timestamp: time.Now().UTC(),
	}

	for _, rule := range c.Payloads {
		payload := payloadFor(result, rule.Tool)
		if len(payload) == 0 {
			validation.Valid = false
			validation.Issues = append(validation.Issues, fmt.Sprintf("Missing %s", rule.Label))
			continue
		}

		for _, field := range rule.Required {
			if _, ok := payload[field]; !ok {
				validation.Valid = false
				validation.Issues = append(validation.Issues, fmt.Sprintf("%s missing field: %s", rule.Label, field))
			}
		}

		for field, allowed := range rule.Enums {
			value, ok := payload[field]
			if !ok {
				// Absence is already a hard issue above.
				continue
			}
			if !containsValue(allowed, value) {
				validation.Warnings = append(validation.Warnings, fmt.Sprintf("Unusual %s: %v", field, value))
			}
		}
	}

	if result.FinalResponse == "" {
		validation.Valid = false
		validation.Issues = append(validation.Issues, "Missing final_response")
	}

	if len(result.ExecutionLog) == 0 {
		validation.Warnings = append(validation.Warnings, "Empty execution log")
	} else if len(result.ExecutionLog) > c.MaxExpectedCalls {
		validation.Warnings = append(validation.Warnings, fmt.Sprintf("Many function calls: %d", len(result.ExecutionLog)))
	}

	return validation
}

// payloadFor resolves a tool's payload from the result. Results decoded
// from JSON may carry only the convenience fields, so those serve as
// fallbacks for the built-in tools.
func payloadFor(result *TriageResult, tool string) map[string]interface{} {
	if payload, ok := result.ToolResults[tool]; ok {
		return payload
	}
	switch tool {
	case tools.ToolExtractIncidentDetails:
		return result.IncidentDetails
	case tools.ToolGetStandardMitigation:
		return result.MitigationPlan
	}
	return nil
}

func containsValue(allowed []string, value interface{}) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == s {
			return true
		}
	}
	return false
}
