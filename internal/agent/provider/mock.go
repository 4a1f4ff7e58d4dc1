package provider

import (
	"context"
	"fmt"
	"sync"
)

// MockStep is one scripted reply for a MockProvider.
type MockStep struct {
	Outcome *Outcome
	Err     error
}

// MockProvider replays scripted steps in order and snapshots every
// conversation it is handed. Tests across packages use it to drive the
// agent loop without a network.
type MockProvider struct {
	mu    sync.Mutex
	name  string
	model string
	steps []MockStep
	calls []*Conversation
	specs [][]ToolSpec
}

// NewMockProvider creates a mock that consumes one step per Call.
func NewMockProvider(name string, steps ...MockStep) *MockProvider {
	return &MockProvider{
		name:  name,
		model: "mock-model",
		steps: steps,
	}
}

// TextStep scripts a plain final-text reply.
func TextStep(text string) MockStep {
	return MockStep{Outcome: &Outcome{FinalText: text}}
}

// CallStep scripts a tool-call reply.
func CallStep(id, name string, args map[string]interface{}) MockStep {
	if args == nil {
		args = map[string]interface{}{}
	}
	return MockStep{Outcome: &Outcome{ToolCall: &ToolCall{ID: id, Name: name, Arguments: args}}}
}

// ErrStep scripts a failure.
func ErrStep(err error) MockStep {
	return MockStep{Err: err}
}

// Call implements Provider.Call.
func (m *MockProvider) Call(_ context.Context, conv *Conversation, tools []ToolSpec) (*Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, conv.Clone())
	specs := make([]ToolSpec, len(tools))
	copy(specs, tools)
	m.specs = append(m.specs, specs)

	if len(m.steps) == 0 {
		return nil, fmt.Errorf("mock %s: no scripted replies left", m.name)
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	return step.Outcome, step.Err
}

// Name implements Provider.Name.
func (m *MockProvider) Name() string {
	return m.name
}

// Model implements Provider.Model.
func (m *MockProvider) Model() string {
	return m.model
}

// Calls returns the conversation snapshot taken at each Call.
func (m *MockProvider) Calls() []*Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Specs returns the tool specs handed to each Call.
func (m *MockProvider) Specs() [][]ToolSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.specs
}

// Remaining reports how many scripted steps are left.
func (m *MockProvider) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}

// interface guard
var _ Provider = (*MockProvider)(nil)
