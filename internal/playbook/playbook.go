// Package playbook manages the standard mitigation catalog: per-incident-type
// recipes plus severity-keyed response and resolution tables. The catalog
// ships with built-in defaults and can be overridden by a YAML file that is
// hot-reloadable at runtime.
package playbook

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hashicorp/go-version"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// SupportedSchemaVersion is the newest catalog file schema this build reads.
const SupportedSchemaVersion = "v1"

// Playbook is one mitigation recipe, keyed in the catalog by incident type.
type Playbook struct {
	ImmediateActions   []string `yaml:"immediate_actions" json:"immediate_actions"`
	InvestigationSteps []string `yaml:"investigation_steps" json:"investigation_steps"`
	EscalationCriteria string   `yaml:"escalation_criteria" json:"escalation_criteria"`
}

// File is the on-disk playbook catalog.
//
// Example YAML structure:
//
//	schema_version: v1
//	playbooks:
//	  service_outage:
//	    immediate_actions:
//	      - Verify service status via monitoring dashboards
//	    investigation_steps:
//	      - Review application logs for errors
//	    escalation_criteria: If service not restored within 15 minutes
//	response_times:
//	  critical: 5 minutes
//	resolution_estimates:
//	  critical: 15 minutes - 2 hours
type File struct {
	// SchemaVersion is the explicit file schema version (e.g. "v1").
	SchemaVersion string `yaml:"schema_version"`

	// Playbooks maps incident type to its mitigation recipe. An "unknown"
	// entry is required; it is the fallback for unrecognized types.
	Playbooks map[string]Playbook `yaml:"playbooks"`

	// ResponseTimes maps severity to the target response time.
	ResponseTimes map[string]string `yaml:"response_times"`

	// ResolutionEstimates maps severity to the estimated resolution time.
	ResolutionEstimates map[string]string `yaml:"resolution_estimates"`
}

// Validate checks schema version and structural requirements.
func (f *File) Validate() error {
	if f.SchemaVersion == "" {
		return fmt.Errorf("schema_version is required")
	}
	parsed, err := version.NewVersion(f.SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid schema_version %q: %w", f.SchemaVersion, err)
	}
	supported := version.Must(version.NewVersion(SupportedSchemaVersion))
	if !parsed.Equal(supported) {
		return fmt.Errorf("unsupported schema_version: %q (expected %q)",
			f.SchemaVersion, SupportedSchemaVersion)
	}

	if len(f.Playbooks) == 0 {
		return fmt.Errorf("at least one playbook is required")
	}
	if _, ok := f.Playbooks["unknown"]; !ok {
		return fmt.Errorf("playbook %q is required as the fallback entry", "unknown")
	}

	for name, pb := range f.Playbooks {
		if len(pb.ImmediateActions) == 0 {
			return fmt.Errorf("playbook %q: immediate_actions is required", name)
		}
		if len(pb.InvestigationSteps) == 0 {
			return fmt.Errorf("playbook %q: investigation_steps is required", name)
		}
		if pb.EscalationCriteria == "" {
			return fmt.Errorf("playbook %q: escalation_criteria is required", name)
		}
	}

	return nil
}

// Load reads and validates a playbook catalog using Koanf.
func Load(path string) (*File, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load playbook catalog from %q: %w", path, err)
	}

	var f File
	if err := k.UnmarshalWithConf("", &f, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse playbook catalog from %q: %w", path, err)
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("playbook catalog validation failed for %q: %w", path, err)
	}

	return &f, nil
}

// LoadOrCreate loads the catalog at path, first writing the built-in
// defaults there when no file exists yet.
func LoadOrCreate(path string) (*File, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := WriteFile(path, Defaults()); err != nil {
			return nil, fmt.Errorf("failed to write default playbook catalog: %w", err)
		}
	}
	return Load(path)
}

// WriteFile atomically writes a catalog to disk using a temp-file-then-rename
// pattern, so readers never observe a partial write.
func WriteFile(path string, f *File) error {
	data, err := yamlv3.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal playbook catalog: %w", err)
	}

	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".playbooks.*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if _, err := os.Stat(tmpPath); err == nil {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %q: %w", path, err)
	}

	return nil
}

// Store is the live catalog consulted by the mitigation tool. Replace swaps
// the whole file under a write lock, which is how hot reload publishes a new
// catalog without disturbing in-flight lookups.
type Store struct {
	mu   sync.RWMutex
	file *File
}

// NewStore creates a store over a validated catalog.
func NewStore(f *File) *Store {
	return &Store{file: f}
}

// NewDefaultStore creates a store over the built-in catalog.
func NewDefaultStore() *Store {
	return NewStore(Defaults())
}

// Get returns the playbook for an incident type, falling back to the
// "unknown" entry for unrecognized types.
func (s *Store) Get(incidentType string) Playbook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pb, ok := s.file.Playbooks[incidentType]; ok {
		return pb
	}
	return s.file.Playbooks["unknown"]
}

// Has reports whether a playbook exists for the exact incident type.
func (s *Store) Has(incidentType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.file.Playbooks[incidentType]
	return ok
}

// Types returns the catalog's incident types, sorted.
func (s *Store) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]string, 0, len(s.file.Playbooks))
	for name := range s.file.Playbooks {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// ResponseTime returns the target response time for a severity. Unlisted
// severities get "1 hour".
func (s *Store) ResponseTime(severity string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.file.ResponseTimes[severity]; ok {
		return t
	}
	return "1 hour"
}

// ResolutionEstimate returns the estimated resolution time for a severity.
// Unlisted severities get "Unknown".
func (s *Store) ResolutionEstimate(severity string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.file.ResolutionEstimates[severity]; ok {
		return t
	}
	return "Unknown"
}

// Replace swaps the live catalog. Used by the file watcher on reload.
func (s *Store) Replace(f *File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file = f
}

// Defaults returns the built-in catalog.
func Defaults() *File {
	return &File{
		SchemaVersion: SupportedSchemaVersion,
		Playbooks: map[string]Playbook{
			"service_outage": {
				ImmediateActions: []string{
					"Verify service status via monitoring dashboards",
					"Check recent deployments or configuration changes",
					"Attempt service restart if safe to do so",
					"Activate incident response team",
				},
				InvestigationSteps: []string{
					"Review application logs for errors",
					"Check infrastructure health (CPU, memory, disk)",
					"Verify database connectivity and performance",
					"Check for upstream/downstream service dependencies",
				},
				EscalationCriteria: "If service not restored within 15 minutes or impact >1000 users",
			},
			"security_breach": {
				ImmediateActions: []string{
					"Isolate affected systems from network",
					"Preserve logs and evidence",
					"Notify security team and management immediately",
					"Begin incident response protocol",
				},
				InvestigationSteps: []string{
					"Identify attack vector and entry point",
					"Assess scope of compromise",
					"Review access logs and authentication events",
					"Check for data exfiltration or unauthorized access",
				},
				EscalationCriteria: "Immediate escalation to CISO and legal team",
			},
			"performance_degradation": {
				ImmediateActions: []string{
					"Monitor current resource utilization",
					"Check for unusual traffic patterns or load",
					"Review recent code or configuration changes",
					"Consider scaling resources if needed",
				},
				InvestigationSteps: []string{
					"Analyze application performance metrics",
					"Review slow query logs and database performance",
					"Check for memory leaks or resource exhaustion",
					"Verify CDN and caching layer health",
				},
				EscalationCriteria: "If degradation persists >30 minutes or worsens",
			},
			"data_loss": {
				ImmediateActions: []string{
					"Stop all write operations if possible",
					"Identify scope and timeframe of data loss",
					"Locate most recent backup",
					"Notify data owners and stakeholders",
				},
				InvestigationSteps: []string{
					"Determine root cause of data loss",
					"Verify backup integrity and completeness",
					"Plan restoration procedure",
					"Document affected records or transactions",
				},
				EscalationCriteria: "Immediate escalation if customer data affected",
			},
			"network_issue": {
				ImmediateActions: []string{
					"Verify network connectivity to critical systems",
					"Check DNS resolution and routing tables",
					"Review firewall and security group rules",
					"Contact network operations team",
				},
				InvestigationSteps: []string{
					"Trace network path and identify failure point",
					"Check for ISP or cloud provider incidents",
					"Review recent network configuration changes",
					"Verify BGP routes and peering status",
				},
				EscalationCriteria: "If network unavailable >10 minutes",
			},
			"configuration_error": {
				ImmediateActions: []string{
					"Identify recent configuration changes",
					"Rollback to last known good configuration",
					"Verify rollback restored functionality",
					"Document the problematic change",
				},
				InvestigationSteps: []string{
					"Compare current vs previous configuration",
					"Test configuration in staging environment",
					"Review change approval and validation",
					"Update configuration management procedures",
				},
				EscalationCriteria: "If rollback unsuccessful or impact unclear",
			},
			"capacity_issue": {
				ImmediateActions: []string{
					"Free up resources (clear cache, remove temp files)",
					"Scale up infrastructure if auto-scaling enabled",
					"Identify largest resource consumers",
					"Implement rate limiting if needed",
				},
				InvestigationSteps: []string{
					"Analyze resource growth trends",
					"Identify capacity planning gaps",
					"Review resource allocation and quotas",
					"Plan for capacity expansion",
				},
				EscalationCriteria: "If resources reach 90%+ utilization",
			},
			"unknown": {
				ImmediateActions: []string{
					"Gather detailed incident information",
					"Engage incident response team",
					"Monitor system health metrics",
					"Document all symptoms and observations",
				},
				InvestigationSteps: []string{
					"Review all recent changes (code, config, infra)",
					"Check monitoring dashboards for anomalies",
					"Correlate with external incidents or outages",
					"Consult subject matter experts",
				},
				EscalationCriteria: "Escalate within 15 minutes for classification",
			},
		},
		ResponseTimes: map[string]string{
			"critical": "5 minutes",
			"high":     "15 minutes",
			"medium":   "1 hour",
			"low":      "4 hours",
		},
		ResolutionEstimates: map[string]string{
			"critical": "15 minutes - 2 hours",
			"high":     "1 - 4 hours",
			"medium":   "4 - 24 hours",
			"low":      "1 - 3 days",
		},
	}
}
