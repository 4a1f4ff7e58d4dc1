package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pagerops/triage/internal/api"
	"github.com/pagerops/triage/internal/logging"
	"github.com/pagerops/triage/internal/metrics"
	"github.com/pagerops/triage/internal/playbook"
	"github.com/pagerops/triage/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the triage API server",
	Long: `Start the HTTP API server.

POST /api/v1/triage runs the agent loop for one incident and returns the
result with its validation report. /health and /metrics serve probes and
Prometheus scrapes. With --cache, repeat incident descriptions are served
from an LRU cache; with --watch-playbook, edits to the playbook catalog
are hot-reloaded without a restart.

Examples:
  triage serve --port 8080
  triage serve --playbook /var/lib/triage/playbooks.yaml --watch-playbook
  triage serve --cache --cache-size 256`,
	RunE: runServe,
}

var (
	servePort          int
	servePlaybookPath  string
	serveWatchPlaybook bool
	serveAuditLogPath  string
	serveCacheEnabled  bool
	serveCacheSize     int
	serveCacheTTL      time.Duration

	serveTracingEnabled     bool
	serveTracingEndpoint    string
	serveTracingTLSCAPath   string
	serveTracingTLSInsecure bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"Port the API server listens on (default: config api_port)")
	serveCmd.Flags().StringVar(&servePlaybookPath, "playbook", "",
		"Playbook catalog YAML file; created with the built-in catalog when missing")
	serveCmd.Flags().BoolVar(&serveWatchPlaybook, "watch-playbook", false,
		"Hot-reload the playbook catalog when the file changes")
	serveCmd.Flags().StringVar(&serveAuditLogPath, "audit-log", "",
		"Path to write the run audit log (JSONL format). If empty, audit logging is disabled.")
	serveCmd.Flags().BoolVar(&serveCacheEnabled, "cache", false,
		"Serve repeat incident descriptions from an LRU result cache")
	serveCmd.Flags().IntVar(&serveCacheSize, "cache-size", 0,
		"Result cache entries (default: config cache_size)")
	serveCmd.Flags().DurationVar(&serveCacheTTL, "cache-ttl", 15*time.Minute,
		"Result cache entry TTL")

	serveCmd.Flags().BoolVar(&serveTracingEnabled, "tracing-enabled", false,
		"Enable OpenTelemetry tracing")
	serveCmd.Flags().StringVar(&serveTracingEndpoint, "tracing-endpoint", "",
		"OTLP gRPC endpoint for traces (e.g., otel-collector:4317)")
	serveCmd.Flags().StringVar(&serveTracingTLSCAPath, "tracing-tls-ca", "",
		"Path to CA certificate for TLS verification (optional)")
	serveCmd.Flags().BoolVar(&serveTracingTLSInsecure, "tracing-tls-insecure", false,
		"Skip TLS certificate verification (insecure, use only for testing)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.APIPort = servePort
	}
	if cmd.Flags().Changed("playbook") {
		cfg.PlaybookPath = servePlaybookPath
	}
	if cmd.Flags().Changed("audit-log") {
		cfg.AuditLogPath = serveAuditLogPath
	}
	if cmd.Flags().Changed("cache-size") {
		cfg.CacheSize = serveCacheSize
	}
	if cmd.Flags().Changed("tracing-enabled") {
		cfg.TracingEnabled = serveTracingEnabled
	}
	if cmd.Flags().Changed("tracing-endpoint") {
		cfg.TracingEndpoint = serveTracingEndpoint
	}
	if cmd.Flags().Changed("tracing-tls-ca") {
		cfg.TracingTLSCAPath = serveTracingTLSCAPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := setupLogFromConfig(cmd, cfg); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	logger := logging.GetLogger("serve")
	logger.Info("Starting triage API v%s", Version)

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry, "api")

	tracingProvider, err := tracing.NewTracingProvider(tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.TracingEndpoint,
		TLSCAPath:   cfg.TracingTLSCAPath,
		TLSInsecure: serveTracingTLSInsecure,
	})
	if err != nil {
		logger.Warn("Failed to initialize tracing (continuing without tracing): %v", err)
		tracingProvider = nil
	}

	stack, err := buildStack(cfg, m)
	if err != nil {
		return err
	}
	defer stack.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveWatchPlaybook {
		if cfg.PlaybookPath == "" {
			return fmt.Errorf("--watch-playbook requires --playbook or playbook_path in the config")
		}
		watcher, err := playbook.NewWatcher(playbook.WatcherConfig{FilePath: cfg.PlaybookPath},
			func(f *playbook.File) error {
				stack.store.Replace(f)
				return nil
			})
		if err != nil {
			return fmt.Errorf("failed to create playbook watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start playbook watcher: %w", err)
		}
		defer func() {
			if err := watcher.Stop(); err != nil {
				logger.Warn("playbook watcher stop: %v", err)
			}
		}()
	}

	opts := api.Options{
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	if tracingProvider != nil {
		opts.Tracing = tracingProvider
	}
	if serveCacheEnabled {
		cache, err := api.NewResultCache(api.ResultCacheConfig{
			Size: cfg.CacheSize,
			TTL:  serveCacheTTL,
		})
		if err != nil {
			return fmt.Errorf("failed to create result cache: %w", err)
		}
		opts.Cache = cache
		logger.Info("Result cache enabled (size: %d, ttl: %s)", cfg.CacheSize, serveCacheTTL)
	}

	server := api.NewServer(cfg.APIPort, stack.agent, opts)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	logger.Info("Listening for triage requests on port %d...", cfg.APIPort)
	<-ctx.Done()
	logger.Info("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown: %v", err)
	}

	if tracingProvider != nil {
		if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down tracing: %v", err)
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
