package api

import (
	"fmt"
	"strconv"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

// ValidationError represents a request validation error.
type ValidationError struct {
	message string
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, args ...interface{}) *ValidationError {
	return &ValidationError{
		message: fmt.Sprintf(message, args...),
	}
}

// Error returns the error message.
func (ve *ValidationError) Error() string {
	return ve.message
}

// ParseOccurredAt parses the optional occurred_at request field, supporting
// Unix timestamps, RFC 3339 and human-readable dates ("2 hours ago",
// "yesterday 14:00"). An empty value returns the zero time with no error.
func ParseOccurredAt(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}

	// Try Unix seconds before handing off to the date parser: bare
	// integers are ambiguous to it.
	if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
		if unix < 0 {
			return time.Time{}, NewValidationError("occurred_at timestamp must be non-negative")
		}
		return time.Unix(unix, 0).UTC(), nil
	}

	parser := dps.Parser{}
	cfg := &dps.Configuration{
		// Interpret partial dates like "March" as the current period.
		PreferredDateSource: dps.CurrentPeriod,
	}

	parsed, err := parser.Parse(cfg, value)
	if err != nil {
		return time.Time{}, NewValidationError("occurred_at must be a Unix timestamp, RFC 3339 or human-readable date: %v", err)
	}

	if parsed.IsZero() {
		return time.Time{}, NewValidationError("occurred_at could not be parsed as a valid date: %s", value)
	}

	return parsed.Time.UTC(), nil
}
