package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pagerops/triage/internal/logging"
	"github.com/pagerops/triage/internal/metrics"
)

// AdapterError records one provider's failure during a cascade turn.
type AdapterError struct {
	Provider string
	Err      error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// ExhaustedError reports that every configured provider failed for a single
// model turn. Attempts preserves cascade order.
type ExhaustedError struct {
	Attempts []*AdapterError
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Error())
	}
	return "all LLM providers failed: " + strings.Join(parts, "; ")
}

// Cascade tries providers in fixed priority order until one produces a
// usable outcome. There are no per-provider retries and no reordering:
// a provider that fails is skipped for the remainder of the turn, and the
// next turn starts again from the front of the list.
//
// The conversation is never modified between attempts, so every provider
// sees the identical history encoded in its own convention.
type Cascade struct {
	providers []Provider
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// NewCascade creates a cascade over the given providers. The slice order is
// the priority order. metrics may be nil.
func NewCascade(providers []Provider, logger *logging.Logger, m *metrics.Metrics) *Cascade {
	return &Cascade{
		providers: providers,
		logger:    logger,
		metrics:   m,
	}
}

// Providers returns the configured provider names in priority order.
func (c *Cascade) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Call walks the cascade for one model turn. It returns the outcome and the
// name of the provider that produced it. If the context is cancelled the
// walk stops early with the context error; remaining providers are not
// burned on a dead request.
func (c *Cascade) Call(ctx context.Context, conv *Conversation, tools []ToolSpec) (*Outcome, string, error) {
	if len(c.providers) == 0 {
		return nil, "", fmt.Errorf("no providers configured")
	}

	attempts := make([]*AdapterError, 0, len(c.providers))
	for i, p := range c.providers {
		start := time.Now()
		outcome, err := p.Call(ctx, conv, tools)
		elapsed := time.Since(start)

		if err == nil {
			c.logger.Debug("provider %s answered in %s", p.Name(), elapsed.Round(time.Millisecond))
			c.metrics.RecordProviderCall(p.Name(), "success", elapsed.Seconds())
			return outcome, p.Name(), nil
		}

		c.logger.Warn("provider %s (%d/%d) failed: %v", p.Name(), i+1, len(c.providers), err)
		c.metrics.RecordProviderCall(p.Name(), "error", elapsed.Seconds())
		attempts = append(attempts, &AdapterError{Provider: p.Name(), Err: err})

		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
	}

	c.metrics.RecordCascadeExhausted()
	return nil, "", &ExhaustedError{Attempts: attempts}
}
