// Package batch processes many incidents through the triage loop with
// bounded concurrency and writes a single report file. Per-incident
// failures are recorded in the report and never abort the run; only
// context cancellation stops a batch early.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pagerops/triage/internal/agent"
	"github.com/pagerops/triage/internal/api"
	"github.com/pagerops/triage/internal/logging"
)

// ResultsFileName is the report written into the output directory.
const ResultsFileName = "batch_results.json"

// Runner runs the triage loop for one incident.
type Runner interface {
	Triage(ctx context.Context, incidentDescription string) (*agent.TriageResult, error)
}

// Incident is one batch input entry.
type Incident struct {
	Description string
	OccurredAt  string
}

// Entry is one line of the batch report. Exactly one of Result or Error is
// set. IncidentNumber is 1-based and follows input order.
type Entry struct {
	IncidentNumber int                 `json:"incident_number"`
	OccurredAt     string              `json:"occurred_at,omitempty"`
	Result         *agent.TriageResult `json:"result,omitempty"`
	Validation     *agent.Validation   `json:"validation,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// Summary aggregates a finished batch.
type Summary struct {
	Total      int
	Succeeded  int
	Failed     int
	Duration   time.Duration
	OutputPath string
}

// LoadIncidents reads a JSON array of incidents. Entries may be plain
// strings or objects with "description" and optional "occurred_at" fields;
// anything else is rendered back to JSON and triaged as text.
func LoadIncidents(path string) ([]Incident, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied batch file
	if err != nil {
		return nil, fmt.Errorf("failed to read incident file %q: %w", path, err)
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("incident file %q must contain a JSON array of incidents: %w", path, err)
	}

	incidents := make([]Incident, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			incidents = append(incidents, Incident{Description: v})
		case map[string]interface{}:
			incident := Incident{}
			if description, ok := v["description"].(string); ok && description != "" {
				incident.Description = description
			} else {
				rendered, _ := json.Marshal(v)
				incident.Description = string(rendered)
			}
			if occurredAt, ok := v["occurred_at"].(string); ok {
				incident.OccurredAt = occurredAt
			}
			incidents = append(incidents, incident)
		default:
			rendered, _ := json.Marshal(v)
			incidents = append(incidents, Incident{Description: string(rendered)})
		}
	}

	return incidents, nil
}

// Processor runs batches against a triage runner.
type Processor struct {
	runner      Runner
	logger      *logging.Logger
	concurrency int
}

// NewProcessor creates a batch processor. concurrency values below 1 are
// raised to 1.
func NewProcessor(runner Runner, concurrency int) *Processor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Processor{
		runner:      runner,
		logger:      logging.GetLogger("batch"),
		concurrency: concurrency,
	}
}

// Process triages every incident and returns one entry per input, in input
// order. Incidents that fail produce error entries; the rest of the batch
// keeps going.
func (p *Processor) Process(ctx context.Context, incidents []Incident) []Entry {
	entries := make([]Entry, len(incidents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, incident := range incidents {
		g.Go(func() error {
			number := i + 1

			if err := gctx.Err(); err != nil {
				entries[i] = Entry{IncidentNumber: number, Error: err.Error()}
				return nil
			}

			p.logger.Info("processing incident %d/%d", number, len(incidents))

			result, err := p.runner.Triage(gctx, incident.Description)
			if err != nil {
				p.logger.Error("incident %d failed: %v", number, err)
				entries[i] = Entry{IncidentNumber: number, Error: err.Error()}
				return nil
			}

			validation := agent.ValidateResult(result)
			if !validation.Valid {
				p.logger.Warn("incident %d has validation issues: %v", number, validation.Issues)
			}

			entries[i] = Entry{
				IncidentNumber: number,
				OccurredAt:     normalizeOccurredAt(incident.OccurredAt),
				Result:         result,
				Validation:     &validation,
			}

			p.logger.Info("incident %d/%d completed (severity: %s)", number, len(incidents), severityOf(result))
			return nil
		})
	}

	// Workers never return errors; Wait only orders the writes.
	_ = g.Wait()
	return entries
}

// normalizeOccurredAt renders a parseable occurred_at as RFC 3339 and
// passes anything else through untouched. A bad date never fails the
// incident.
func normalizeOccurredAt(value string) string {
	if value == "" {
		return ""
	}
	t, err := api.ParseOccurredAt(value)
	if err != nil || t.IsZero() {
		return value
	}
	return t.Format(time.RFC3339)
}

func severityOf(result *agent.TriageResult) string {
	if result == nil {
		return "Unknown"
	}
	if severity, ok := result.IncidentDetails["severity"].(string); ok && severity != "" {
		return severity
	}
	return "Unknown"
}

// WriteResults writes the report into outputDir (created if missing) and
// returns the report path.
func WriteResults(outputDir string, entries []Entry) (string, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create output directory %q: %w", outputDir, err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode batch results: %w", err)
	}

	path := filepath.Join(outputDir, ResultsFileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write batch results to %q: %w", path, err)
	}

	return path, nil
}

// Summarize aggregates entry outcomes.
func Summarize(entries []Entry, duration time.Duration, outputPath string) Summary {
	summary := Summary{
		Total:      len(entries),
		Duration:   duration,
		OutputPath: outputPath,
	}
	for _, entry := range entries {
		if entry.Error == "" {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	return summary
}
