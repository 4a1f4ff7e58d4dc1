// Package config holds the application configuration: per-provider LLM
// credentials and models, the triage loop budget, file paths, and the API
// server settings.
//
// Sources are layered: built-in defaults, then an optional YAML config
// file, then environment variables for anything still unset, then CLI
// flags on top. Validate runs after all layers are applied.
package config

import (
	"fmt"
	"os"
)

// ProviderConfig holds the settings for one LLM backend. A provider is
// considered configured when it has an API key; unconfigured providers are
// skipped when the cascade is built.
type ProviderConfig struct {
	// APIKey authenticates against the backend.
	APIKey string `yaml:"api_key"`

	// Model overrides the adapter's default model.
	Model string `yaml:"model"`

	// Endpoint overrides the backend base URL. Normally empty.
	Endpoint string `yaml:"endpoint"`

	// TimeoutSeconds bounds each HTTP call to the backend.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Configured reports whether the provider has credentials.
func (p ProviderConfig) Configured() bool {
	return p.APIKey != ""
}

// Config holds all configuration for the application.
type Config struct {
	// Gemini, Groq and OpenRouter configure the provider cascade in
	// priority order.
	Gemini     ProviderConfig `yaml:"gemini"`
	Groq       ProviderConfig `yaml:"groq"`
	OpenRouter ProviderConfig `yaml:"openrouter"`

	// LogLevel is the logging level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// PlaybookPath is the YAML file carrying the mitigation catalog.
	// Empty selects the compiled-in defaults.
	PlaybookPath string `yaml:"playbook_path"`

	// AuditLogPath is where the JSONL audit trail is written. Empty
	// disables audit logging.
	AuditLogPath string `yaml:"audit_log_path"`

	// APIPort is the port the API server listens on.
	APIPort int `yaml:"api_port"`

	// MaxIterations bounds the triage loop.
	MaxIterations int `yaml:"max_iterations"`

	// BatchConcurrency is the number of incidents processed in parallel
	// in batch mode.
	BatchConcurrency int `yaml:"batch_concurrency"`

	// CacheSize is the number of triage results the API server keeps in
	// its LRU cache.
	CacheSize int `yaml:"cache_size"`

	// TracingEnabled indicates whether OpenTelemetry tracing is enabled.
	TracingEnabled bool `yaml:"tracing_enabled"`

	// TracingEndpoint is the OTLP gRPC endpoint for trace export.
	TracingEndpoint string `yaml:"tracing_endpoint"`

	// TracingTLSCAPath is the path to the CA certificate for TLS
	// verification of the tracing endpoint.
	TracingTLSCAPath string `yaml:"tracing_tls_ca_path"`
}

// Default returns the built-in configuration. Provider models and
// endpoints stay empty so the adapter defaults apply.
func Default() *Config {
	return &Config{
		LogLevel:         "info",
		APIPort:          8080,
		MaxIterations:    10,
		BatchConcurrency: 4,
		CacheSize:        128,
	}
}

// ApplyEnv fills unset fields from the environment. File and flag values
// win over the environment, so only empty fields are touched.
func (c *Config) ApplyEnv() {
	applyEnvString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	applyEnvString(&c.Gemini.Model, "GEMINI_MODEL")
	applyEnvString(&c.Groq.APIKey, "GROQ_API_KEY")
	applyEnvString(&c.Groq.Model, "GROQ_MODEL")
	applyEnvString(&c.OpenRouter.APIKey, "OPENROUTER_API_KEY")
	applyEnvString(&c.OpenRouter.Model, "OPENROUTER_MODEL")
	applyEnvString(&c.AuditLogPath, "TRIAGE_AUDIT_LOG")
	if c.LogLevel == "" {
		applyEnvString(&c.LogLevel, "LOG_LEVEL")
	}
}

func applyEnvString(target *string, key string) {
	if *target != "" {
		return
	}
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

// ConfiguredProviders returns the names of the providers that have
// credentials, in cascade priority order.
func (c *Config) ConfiguredProviders() []string {
	names := []string{}
	if c.Gemini.Configured() {
		names = append(names, "gemini")
	}
	if c.Groq.Configured() {
		names = append(names, "groq")
	}
	if c.OpenRouter.Configured() {
		names = append(names, "openrouter")
	}
	return names
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if len(c.ConfiguredProviders()) == 0 {
		return NewConfigError("no LLM provider configured: set GEMINI_API_KEY, GROQ_API_KEY or OPENROUTER_API_KEY")
	}

	if c.APIPort < 1 || c.APIPort > 65535 {
		return NewConfigError("APIPort must be between 1 and 65535")
	}

	if c.MaxIterations < 1 {
		return NewConfigError("MaxIterations must be at least 1")
	}

	if c.BatchConcurrency < 1 {
		return NewConfigError("BatchConcurrency must be at least 1")
	}

	if c.CacheSize < 1 {
		return NewConfigError("CacheSize must be at least 1")
	}

	for _, pc := range []struct {
		name string
		cfg  ProviderConfig
	}{
		{"gemini", c.Gemini},
		{"groq", c.Groq},
		{"openrouter", c.OpenRouter},
	} {
		if pc.cfg.TimeoutSeconds < 0 {
			return NewConfigError(fmt.Sprintf("%s timeout must not be negative", pc.name))
		}
	}

	if c.TracingEnabled && c.TracingEndpoint == "" {
		return NewConfigError("TracingEndpoint must be set when tracing is enabled")
	}

	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	return e.message
}
