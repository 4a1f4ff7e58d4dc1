package commands

import (
	"fmt"
	"time"

	"github.com/pagerops/triage/internal/agent"
	"github.com/pagerops/triage/internal/agent/audit"
	"github.com/pagerops/triage/internal/agent/provider"
	"github.com/pagerops/triage/internal/agent/tools"
	"github.com/pagerops/triage/internal/config"
	"github.com/pagerops/triage/internal/logging"
	"github.com/pagerops/triage/internal/metrics"
	"github.com/pagerops/triage/internal/playbook"
)

// triageStack is the wired agent plus the collaborators commands keep
// handles on: the playbook store for hot reload and the audit logger for
// Close.
type triageStack struct {
	agent    *agent.Agent
	registry *tools.Registry
	store    *playbook.Store
	audit    *audit.Logger
}

func (s *triageStack) Close() {
	if s.audit != nil {
		_ = s.audit.Close()
	}
}

// buildStack wires providers, playbooks, tools and the agent loop from
// config. m may be nil for the CLI surfaces.
func buildStack(cfg *config.Config, m *metrics.Metrics) (*triageStack, error) {
	providers, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}
	cascade := provider.NewCascade(providers, logging.GetLogger("cascade"), m)

	store := playbook.NewDefaultStore()
	if cfg.PlaybookPath != "" {
		f, err := playbook.LoadOrCreate(cfg.PlaybookPath)
		if err != nil {
			return nil, err
		}
		store = playbook.NewStore(f)
	}

	registry := tools.NewTriageRegistry(store, logging.GetLogger("tools"))

	var auditLogger *audit.Logger
	if cfg.AuditLogPath != "" {
		auditLogger, err = audit.NewLogger(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	a := agent.NewAgent(cascade, registry, agent.Options{
		MaxIterations: cfg.MaxIterations,
		Metrics:       m,
		Audit:         auditLogger,
	})

	return &triageStack{
		agent:    a,
		registry: registry,
		store:    store,
		audit:    auditLogger,
	}, nil
}

// buildProviders constructs the configured adapters in cascade priority
// order: Gemini, then Groq, then OpenRouter.
func buildProviders(cfg *config.Config) ([]provider.Provider, error) {
	var providers []provider.Provider

	if cfg.Gemini.Configured() {
		p, err := provider.NewGeminiProvider(providerConfig(cfg.Gemini))
		if err != nil {
			return nil, fmt.Errorf("failed to configure gemini: %w", err)
		}
		providers = append(providers, p)
	}
	if cfg.Groq.Configured() {
		p, err := provider.NewGroqProvider(providerConfig(cfg.Groq))
		if err != nil {
			return nil, fmt.Errorf("failed to configure groq: %w", err)
		}
		providers = append(providers, p)
	}
	if cfg.OpenRouter.Configured() {
		p, err := provider.NewOpenRouterProvider(providerConfig(cfg.OpenRouter))
		if err != nil {
			return nil, fmt.Errorf("failed to configure openrouter: %w", err)
		}
		providers = append(providers, p)
	}

	if len(providers) == 0 {
		return nil, config.NewConfigError("no LLM provider configured: set GEMINI_API_KEY, GROQ_API_KEY or OPENROUTER_API_KEY")
	}
	return providers, nil
}

func providerConfig(pc config.ProviderConfig) provider.Config {
	return provider.Config{
		APIKey:   pc.APIKey,
		Model:    pc.Model,
		Endpoint: pc.Endpoint,
		Timeout:  time.Duration(pc.TimeoutSeconds) * time.Second,
	}
}

// loadConfig loads the optional config file, environment fallbacks and
// validates the merged result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
