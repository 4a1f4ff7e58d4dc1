// Package display renders triage results for the terminal.
package display

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"

	"github.com/pagerops/triage/internal/agent"
	"github.com/pagerops/triage/internal/batch"
)

const dividerWidth = 70

func divider() string {
	return dividerStyle.Render(strings.Repeat("=", dividerWidth))
}

// Rule renders the thin separator printed under mode banners.
func Rule() string {
	return dividerStyle.Render(strings.Repeat("-", dividerWidth))
}

// Header renders the program banner.
func Header() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(divider())
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  INCIDENT TRIAGE AGENT"))
	b.WriteString("\n")
	b.WriteString(taglineStyle.Render("  Autonomous IT incident classification and response recommendation"))
	b.WriteString("\n")
	b.WriteString(divider())
	b.WriteString("\n")
	return b.String()
}

// Result renders the full triage report: classification, response plan,
// agent summary and execution metrics.
func Result(result *agent.TriageResult) string {
	if result == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(divider())
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("TRIAGE RESULTS"))
	b.WriteString("\n")
	b.WriteString(divider())
	b.WriteString("\n\n")

	if len(result.IncidentDetails) > 0 {
		writeClassification(&b, result.IncidentDetails)
	}
	if len(result.MitigationPlan) > 0 {
		writePlan(&b, result.MitigationPlan)
	}
	if result.FinalResponse != "" {
		b.WriteString(sectionStyle.Render("AGENT SUMMARY:"))
		b.WriteString("\n")
		fmt.Fprintf(&b, "  %s\n\n", result.FinalResponse)
	}

	b.WriteString(sectionStyle.Render("EXECUTION METRICS:"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %-22s%d\n", "Total Iterations:", result.TotalIterations)
	fmt.Fprintf(&b, "  %-22s%d\n", "Function Calls:", len(result.ExecutionLog))
	fmt.Fprintf(&b, "  %-22s%d\n", "Successful Calls:", result.ToolCallCount())
	b.WriteString("\n")
	b.WriteString(divider())
	b.WriteString("\n")
	return b.String()
}

func writeClassification(b *strings.Builder, details map[string]interface{}) {
	severity := stringField(details, "severity", "Unknown")

	b.WriteString(sectionStyle.Render("INCIDENT CLASSIFICATION:"))
	b.WriteString("\n")
	fmt.Fprintf(b, "  %-16s%s\n", "Severity:", severityStyle(severity).Render(strings.ToUpper(severity)))
	fmt.Fprintf(b, "  %-16s%s\n", "Type:", titleCase(strings.ReplaceAll(stringField(details, "incident_type", "Unknown"), "_", " ")))
	fmt.Fprintf(b, "  %-16s%s\n", "Affected:", strings.Join(stringList(details, "affected_systems", []string{"Unknown"}), ", "))
	fmt.Fprintf(b, "  %-16s%s\n", "Confidence:", titleCase(stringField(details, "confidence", "Unknown")))
	b.WriteString("\n")
}

func writePlan(b *strings.Builder, plan map[string]interface{}) {
	b.WriteString(sectionStyle.Render("RESPONSE PLAN:"))
	b.WriteString("\n")
	fmt.Fprintf(b, "  %-22s%s\n", "Target Response Time:", stringField(plan, "target_response_time", "N/A"))
	fmt.Fprintf(b, "  %-22s%s\n", "Est. Resolution:", stringField(plan, "estimated_resolution_time", "N/A"))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("IMMEDIATE ACTIONS:"))
	b.WriteString("\n")
	for i, action := range stringList(plan, "immediate_actions", nil) {
		fmt.Fprintf(b, "  %d. %s\n", i+1, action)
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("INVESTIGATION STEPS:"))
	b.WriteString("\n")
	for i, step := range stringList(plan, "investigation_steps", nil) {
		fmt.Fprintf(b, "  %d. %s\n", i+1, step)
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("ESCALATION CRITERIA:"))
	b.WriteString("\n")
	fmt.Fprintf(b, "  %s\n\n", stringField(plan, "escalation_criteria", "N/A"))
}

// Validation renders detected issues and warnings. Returns "" when there is
// nothing to show.
func Validation(validation agent.Validation) string {
	if validation.Valid && len(validation.Warnings) == 0 {
		return ""
	}

	var b strings.Builder
	if !validation.Valid {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render("WARNING: Validation issues detected:"))
		b.WriteString("\n")
		for _, issue := range validation.Issues {
			fmt.Fprintf(&b, "  - %s\n", issueStyle.Render(issue))
		}
	}
	if len(validation.Warnings) > 0 {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render("Validation warnings:"))
		b.WriteString("\n")
		for _, warning := range validation.Warnings {
			fmt.Fprintf(&b, "  - %s\n", issueStyle.Render(warning))
		}
	}
	return b.String()
}

// BatchSummary renders the closing block of a batch run.
func BatchSummary(summary batch.Summary) string {
	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(sectionStyle.Render("Batch processing complete!"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Results saved to: %s\n", summary.OutputPath)
	fmt.Fprintf(&b, "Total incidents: %d\n", summary.Total)
	fmt.Fprintf(&b, "Successful: %d\n", summary.Succeeded)
	fmt.Fprintf(&b, "Errors: %d\n", summary.Failed)
	return b.String()
}

func severityStyle(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "critical", "high":
		return severityHighStyle
	case "medium":
		return severityMediumStyle
	case "low":
		return severityLowStyle
	default:
		return taglineStyle
	}
}

// titleCase lowercases the input and uppercases the first letter of each
// word, matching how classification fields are normalized for display.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func stringField(m map[string]interface{}, key, fallback string) string {
	if value, ok := m[key].(string); ok && value != "" {
		return value
	}
	return fallback
}

func stringList(m map[string]interface{}, key string, fallback []string) []string {
	raw, ok := m[key]
	if !ok {
		return fallback
	}
	switch items := raw.(type) {
	case []string:
		return items
	case []interface{}:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprintf("%v", item))
			}
		}
		return out
	case string:
		return []string{items}
	default:
		return fallback
	}
}
