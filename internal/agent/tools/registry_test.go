package tools

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/pagerops/triage/internal/logging"
	"github.com/pagerops/triage/internal/playbook"
)

func newTestRegistry() *Registry {
	return NewTriageRegistry(playbook.NewDefaultStore(), logging.GetLogger("tools-test"))
}

func TestTriageRegistry_Names(t *testing.T) {
	r := newTestRegistry()

	want := []string{ToolExtractIncidentDetails, ToolGetStandardMitigation}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestTriageRegistry_Specs(t *testing.T) {
	r := newTestRegistry()

	specs := r.Specs()
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	if specs[0].Name != ToolExtractIncidentDetails {
		t.Errorf("specs[0] = %q, want sorted order", specs[0].Name)
	}
	for _, spec := range specs {
		if spec.Description == "" {
			t.Errorf("spec %s has no description", spec.Name)
		}
		if spec.Parameters["type"] != "object" {
			t.Errorf("spec %s parameters should be an object schema", spec.Name)
		}
	}
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Execute(context.Background(), "restart_datacenter", nil)
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}

	var unknownErr *UnknownToolError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownToolError, got %T: %v", err, err)
	}
	if unknownErr.Name != "restart_datacenter" {
		t.Errorf("Name = %q", unknownErr.Name)
	}
}

func TestRegistry_ExecuteDispatch(t *testing.T) {
	r := newTestRegistry()

	result, err := r.Execute(context.Background(), ToolExtractIncidentDetails, map[string]interface{}{
		"incident_description": "Production database is completely down, all users affected",
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if result["severity"] != "critical" {
		t.Errorf("severity = %v", result["severity"])
	}
}

func TestRegistry_ExecuteNilArguments(t *testing.T) {
	r := newTestRegistry()

	// Nil arguments reach the tool as an empty object; the tool's own
	// validation rejects it as a normal execution failure.
	_, err := r.Execute(context.Background(), ToolExtractIncidentDetails, nil)
	if err == nil {
		t.Fatal("expected execution error")
	}
	var unknownErr *UnknownToolError
	if errors.As(err, &unknownErr) {
		t.Error("missing argument must not be reported as an unknown tool")
	}
}

func TestRegistry_Get(t *testing.T) {
	r := newTestRegistry()

	if _, ok := r.Get(ToolGetStandardMitigation); !ok {
		t.Error("expected mitigation tool to be registered")
	}
	if _, ok := r.Get("nope"); ok {
		t.Error("expected lookup miss for unregistered name")
	}
}
