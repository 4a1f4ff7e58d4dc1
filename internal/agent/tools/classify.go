package tools

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// ClassifyTool implements extract_incident_details: rule-based analysis of
// raw incident text into severity, incident type and affected systems.
type ClassifyTool struct {
	now func() time.Time
}

// NewClassifyTool creates the classifier.
func NewClassifyTool() *ClassifyTool {
	return &ClassifyTool{now: time.Now}
}

// Name implements Tool.Name.
func (t *ClassifyTool) Name() string {
	return ToolExtractIncidentDetails
}

// Description implements Tool.Description.
func (t *ClassifyTool) Description() string {
	return "Analyzes incident text to determine severity, type, and affected systems"
}

// InputSchema implements Tool.InputSchema.
func (t *ClassifyTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"incident_description": map[string]interface{}{
				"type":        "string",
				"description": "Raw incident description text to analyze",
			},
		},
		"required": []string{"incident_description"},
	}
}

// Severity keywords, checked in order: the first bucket with a hit wins.
// Both outage and security wording map to critical.
var severityBuckets = []struct {
	severity string
	keywords []string
}{
	{"critical", []string{"down", "outage", "critical", "complete failure", "all users affected"}},
	{"critical", []string{"breach", "security", "unauthorized", "compromised", "exploit"}},
	{"high", []string{"slow", "degraded", "intermittent", "some users"}},
	{"low", []string{"minor", "cosmetic", "low impact"}},
}

// Incident type keywords, checked in order: service_outage wording takes
// precedence over security_breach and so on down the list.
var typeBuckets = []struct {
	incidentType string
	keywords     []string
}{
	{"service_outage", []string{"down", "outage", "unavailable", "not responding"}},
	{"security_breach", []string{"breach", "security", "unauthorized", "hack", "compromised"}},
	{"performance_degradation", []string{"slow", "degraded", "latency", "timeout", "performance"}},
	{"data_loss", []string{"data loss", "deleted", "missing data", "corrupted"}},
	{"network_issue", []string{"network", "connectivity", "dns", "routing"}},
	{"configuration_error", []string{"config", "misconfiguration", "settings", "deployment failed"}},
	{"capacity_issue", []string{"capacity", "disk full", "memory", "cpu", "resource"}},
}

// System name patterns: "payment service", "server db-3" and the like.
var systemPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\w+)\s+(?:service|server|database|api|application)`),
	regexp.MustCompile(`(?:service|server|db|api)[\s-](\w+)`),
}

// Execute implements Tool.Execute.
func (t *ClassifyTool) Execute(_ context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	incidentDescription, err := stringArg(args, "incident_description")
	if err != nil {
		return nil, err
	}

	description := strings.ToLower(incidentDescription)

	severity := "medium"
	for _, bucket := range severityBuckets {
		if containsAny(description, bucket.keywords) {
			severity = bucket.severity
			break
		}
	}

	incidentType := "unknown"
	for _, bucket := range typeBuckets {
		if containsAny(description, bucket.keywords) {
			incidentType = bucket.incidentType
			break
		}
	}

	affectedSystems := extractSystems(description)

	confidence := "high"
	if incidentType == "unknown" {
		confidence = "low"
	}

	return map[string]interface{}{
		"severity":            severity,
		"incident_type":       incidentType,
		"affected_systems":    affectedSystems,
		"description_summary": summarize(incidentDescription, 200),
		"analyzed_at":         t.now().UTC().Format(time.RFC3339),
		"confidence":          confidence,
	}, nil
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// extractSystems pulls system names out of the lowercased description using
// the shared patterns, deduplicated in first-seen order. When nothing
// matches the caller still gets a marker entry rather than an empty list.
func extractSystems(description string) []string {
	seen := make(map[string]bool)
	var systems []string

	for _, pattern := range systemPatterns {
		for _, match := range pattern.FindAllStringSubmatch(description, -1) {
			name := strings.TrimSpace(match[1])
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			systems = append(systems, name)
		}
	}

	if len(systems) == 0 {
		return []string{"system_unknown"}
	}
	return systems
}

// summarize truncates to at most max runes.
func summarize(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
