// Package audit provides audit logging for triage runs. It captures every
// run event (model turns, tool executions, terminal status) to a JSONL file
// for debugging, analysis, and reproducibility.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// EventType represents the type of audit event.
type EventType string

const (
	// EventTypeRunStart marks the start of a triage run.
	EventTypeRunStart EventType = "run_start"
	// EventTypeModelTurn marks one cascade answer: which provider replied
	// and whether it produced text or a tool call.
	EventTypeModelTurn EventType = "model_turn"
	// EventTypeToolStart marks the start of a function execution.
	EventTypeToolStart EventType = "tool_start"
	// EventTypeToolComplete marks the completion of a function execution.
	EventTypeToolComplete EventType = "tool_complete"
	// EventTypeToolFeedback marks a failure report sent back to the model.
	EventTypeToolFeedback EventType = "tool_feedback"
	// EventTypeRunComplete marks a run reaching a terminal state.
	EventTypeRunComplete EventType = "run_complete"
	// EventTypeError marks an error that ended the run.
	EventTypeError EventType = "error"
)

// Event is a single audit log entry.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// Type is the event type.
	Type EventType `json:"type"`
	// RunID identifies the triage run the event belongs to.
	RunID string `json:"run_id"`
	// Data contains event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Logger writes audit events to a JSONL file. A nil *Logger is valid and
// records nothing, so surfaces that run without auditing skip the plumbing.
type Logger struct {
	file   *os.File
	writer *bufio.Writer
	mutex  sync.Mutex
}

// NewLogger creates an audit logger appending to the given file path.
func NewLogger(filePath string) (*Logger, error) {
	// The audit log location is user configuration.
	// #nosec G304
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &Logger{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// write appends one event. Each write is flushed for crash safety.
func (l *Logger) write(event Event) error {
	if l == nil {
		return nil
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	if _, err := l.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}

	return nil
}

// LogRunStart logs the start of a triage run.
func (l *Logger) LogRunStart(runID, incident string, providers []string) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeRunStart,
		RunID:     runID,
		Data: map[string]interface{}{
			"incident":  truncateString(incident, 200),
			"providers": providers,
		},
	})
}

// LogModelTurn logs one answered cascade turn.
func (l *Logger) LogModelTurn(runID string, iteration int, provider, outcome, toolName string) error {
	data := map[string]interface{}{
		"iteration": iteration,
		"provider":  provider,
		"outcome":   outcome,
	}
	if toolName != "" {
		data["tool_name"] = toolName
	}
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeModelTurn,
		RunID:     runID,
		Data:      data,
	})
}

// LogToolStart logs the start of a function execution.
func (l *Logger) LogToolStart(runID string, iteration int, function string, args map[string]interface{}) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeToolStart,
		RunID:     runID,
		Data: map[string]interface{}{
			"iteration": iteration,
			"function":  function,
			"args":      args,
		},
	})
}

// LogToolComplete logs the completion of a function execution.
func (l *Logger) LogToolComplete(runID string, iteration int, function string, success bool, duration time.Duration, result interface{}) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeToolComplete,
		RunID:     runID,
		Data: map[string]interface{}{
			"iteration":   iteration,
			"function":    function,
			"success":     success,
			"duration_ms": duration.Milliseconds(),
			"result":      result,
		},
	})
}

// LogToolFeedback logs the failure report appended to the conversation
// after a tool execution error.
func (l *Logger) LogToolFeedback(runID string, iteration int, message string) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeToolFeedback,
		RunID:     runID,
		Data: map[string]interface{}{
			"iteration": iteration,
			"message":   truncateString(message, 500),
		},
	})
}

// LogRunComplete logs a run reaching a terminal state.
func (l *Logger) LogRunComplete(runID, status string, iterations int, duration time.Duration) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeRunComplete,
		RunID:     runID,
		Data: map[string]interface{}{
			"status":      status,
			"iterations":  iterations,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// LogError logs an error that ended a run.
func (l *Logger) LogError(runID string, err error) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeError,
		RunID:     runID,
		Data: map[string]interface{}{
			"error": err.Error(),
		},
	})
}

// Close flushes pending writes and closes the file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	var errs []error
	if err := l.writer.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush audit log: %w", err))
	}
	if err := l.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close audit log file: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing audit log: %v", errs)
	}
	return nil
}

// truncateString truncates a string to maxLen characters.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...[truncated]"
}
