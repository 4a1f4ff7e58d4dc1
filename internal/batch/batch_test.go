package batch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pagerops/triage/internal/agent"
)

type stubRunner struct {
	mu          sync.Mutex
	calls       int
	inFlight    int32
	maxInFlight int32
	failOn      string
	delay       time.Duration
}

func (s *stubRunner) Triage(ctx context.Context, incidentDescription string) (*agent.TriageResult, error) {
	current := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&s.maxInFlight)
		if current <= peak || atomic.CompareAndSwapInt32(&s.maxInFlight, peak, current) {
			break
		}
	}

	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.failOn != "" && strings.Contains(incidentDescription, s.failOn) {
		return nil, errors.New("triage blew up")
	}

	return &agent.TriageResult{
		RunID:               "run-1",
		Status:              agent.StatusSuccess,
		IncidentDescription: incidentDescription,
		IncidentDetails: map[string]interface{}{
			"severity":         "high",
			"incident_type":    "database_failure",
			"affected_systems": []interface{}{"db-primary"},
		},
		MitigationPlan: map[string]interface{}{
			"immediate_actions":   []interface{}{"failover"},
			"investigation_steps": []interface{}{"check logs"},
			"escalation_criteria": "30 minutes",
		},
		FinalResponse: "triaged: " + incidentDescription,
		ExecutionLog: []agent.LogEntry{
			{Iteration: 1, Function: "extract_incident_details", Status: "success"},
		},
		TotalIterations: 2,
		Timestamp:       time.Now().UTC(),
	}, nil
}

func (s *stubRunner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func writeIncidentFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "incidents.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write incident file: %v", err)
	}
	return path
}

func TestLoadIncidents(t *testing.T) {
	path := writeIncidentFile(t, `[
		"Database is down",
		{"description": "API latency spike", "occurred_at": "2024-03-01T10:00:00Z"},
		{"service": "checkout", "error_rate": 0.4},
		42
	]`)

	incidents, err := LoadIncidents(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(incidents) != 4 {
		t.Fatalf("expected 4 incidents, got %d", len(incidents))
	}

	if incidents[0].Description != "Database is down" {
		t.Errorf("unexpected first description: %q", incidents[0].Description)
	}
	if incidents[1].Description != "API latency spike" {
		t.Errorf("unexpected second description: %q", incidents[1].Description)
	}
	if incidents[1].OccurredAt != "2024-03-01T10:00:00Z" {
		t.Errorf("occurred_at not carried: %q", incidents[1].OccurredAt)
	}
	// Objects without a description are triaged as their JSON rendering.
	if !strings.Contains(incidents[2].Description, `"service":"checkout"`) {
		t.Errorf("expected JSON rendering of object, got %q", incidents[2].Description)
	}
	if incidents[3].Description != "42" {
		t.Errorf("unexpected fourth description: %q", incidents[3].Description)
	}
}

func TestLoadIncidentsRejectsNonArray(t *testing.T) {
	path := writeIncidentFile(t, `{"description": "not an array"}`)

	_, err := LoadIncidents(path)
	if err == nil {
		t.Fatal("expected an error for non-array input")
	}
	if !strings.Contains(err.Error(), "JSON array") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadIncidentsMissingFile(t *testing.T) {
	_, err := LoadIncidents(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestProcessOrdersEntries(t *testing.T) {
	runner := &stubRunner{delay: 5 * time.Millisecond}
	processor := NewProcessor(runner, 4)

	incidents := []Incident{
		{Description: "incident one"},
		{Description: "incident two"},
		{Description: "incident three"},
	}

	entries := processor.Process(context.Background(), incidents)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.IncidentNumber != i+1 {
			t.Errorf("entry %d has incident_number %d", i, entry.IncidentNumber)
		}
		if entry.Result == nil {
			t.Fatalf("entry %d missing result", i)
		}
		if entry.Validation == nil || !entry.Validation.Valid {
			t.Errorf("entry %d expected valid validation", i)
		}
		if entry.Error != "" {
			t.Errorf("entry %d unexpected error: %s", i, entry.Error)
		}
	}
	if entries[1].Result.IncidentDescription != "incident two" {
		t.Errorf("entries out of order: %q", entries[1].Result.IncidentDescription)
	}
}

func TestProcessContinuesPastErrors(t *testing.T) {
	runner := &stubRunner{failOn: "bad"}
	processor := NewProcessor(runner, 2)

	incidents := []Incident{
		{Description: "fine"},
		{Description: "bad incident"},
		{Description: "also fine"},
	}

	entries := processor.Process(context.Background(), incidents)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Error != "" || entries[2].Error != "" {
		t.Errorf("healthy incidents should not error: %q %q", entries[0].Error, entries[2].Error)
	}
	if entries[1].Error != "triage blew up" {
		t.Errorf("unexpected error entry: %q", entries[1].Error)
	}
	if entries[1].Result != nil || entries[1].Validation != nil {
		t.Error("failed entry should carry no result or validation")
	}
	if runner.callCount() != 3 {
		t.Errorf("expected all incidents attempted, got %d calls", runner.callCount())
	}
}

func TestProcessRespectsConcurrencyLimit(t *testing.T) {
	runner := &stubRunner{delay: 10 * time.Millisecond}
	processor := NewProcessor(runner, 1)

	incidents := []Incident{
		{Description: "one"},
		{Description: "two"},
		{Description: "three"},
	}

	processor.Process(context.Background(), incidents)
	if peak := atomic.LoadInt32(&runner.maxInFlight); peak != 1 {
		t.Errorf("expected at most 1 concurrent triage, observed %d", peak)
	}
}

func TestProcessNormalizesOccurredAt(t *testing.T) {
	runner := &stubRunner{}
	processor := NewProcessor(runner, 1)

	incidents := []Incident{
		{Description: "unix time", OccurredAt: "1709287200"},
		{Description: "already rfc3339", OccurredAt: "2024-03-01T10:00:00Z"},
		{Description: "unparseable", OccurredAt: "!!!"},
	}

	entries := processor.Process(context.Background(), incidents)
	if entries[0].OccurredAt != "2024-03-01T10:00:00Z" {
		t.Errorf("unix timestamp not normalized: %q", entries[0].OccurredAt)
	}
	if entries[1].OccurredAt != "2024-03-01T10:00:00Z" {
		t.Errorf("rfc3339 timestamp mangled: %q", entries[1].OccurredAt)
	}
	if entries[2].OccurredAt != "!!!" {
		t.Errorf("unparseable timestamp should pass through, got %q", entries[2].OccurredAt)
	}
}

func TestProcessStopsOnCancelledContext(t *testing.T) {
	runner := &stubRunner{}
	processor := NewProcessor(runner, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries := processor.Process(ctx, []Incident{{Description: "one"}, {Description: "two"}})
	for i, entry := range entries {
		if entry.Error == "" {
			t.Errorf("entry %d expected a cancellation error", i)
		}
	}
}

func TestWriteResults(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "nested", "out")
	entries := []Entry{
		{IncidentNumber: 1, Error: "boom"},
		{IncidentNumber: 2, Result: &agent.TriageResult{RunID: "run-2", Status: agent.StatusSuccess}},
	}

	path, err := WriteResults(outputDir, entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != ResultsFileName {
		t.Errorf("unexpected report name: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	var decoded []Entry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(decoded))
	}
	if decoded[0].Error != "boom" || decoded[1].Result == nil {
		t.Error("report entries did not round-trip")
	}
}

func TestSummarize(t *testing.T) {
	entries := []Entry{
		{IncidentNumber: 1},
		{IncidentNumber: 2, Error: "boom"},
		{IncidentNumber: 3},
	}

	summary := Summarize(entries, 2*time.Second, "/tmp/out/batch_results.json")
	if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.Duration != 2*time.Second {
		t.Errorf("unexpected duration: %v", summary.Duration)
	}
	if summary.OutputPath != "/tmp/out/batch_results.json" {
		t.Errorf("unexpected output path: %q", summary.OutputPath)
	}
}
