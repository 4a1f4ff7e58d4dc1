package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/pagerops/triage/internal/logging"
	"github.com/pagerops/triage/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol (MCP) server that exposes the triage
functions as MCP tools for AI assistants.

The registry functions (extract_incident_details, get_standard_mitigation)
are published individually, and triage_incident runs the full autonomous
loop in one call.

Supports two transport modes:
  - stdio: standard input/output mode (default, for subprocess-based MCP clients)
  - http: streamable HTTP server mode with a /health endpoint`,
	RunE: runMCPServer,
}

var (
	mcpTransport    string
	mcpHTTPAddr     string
	mcpEndpointPath string
	mcpPlaybookPath string
)

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "stdio",
		"Transport type: stdio or http")
	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http-addr", getEnv("MCP_HTTP_ADDR", ":8082"),
		"HTTP server address (host:port)")
	mcpCmd.Flags().StringVar(&mcpEndpointPath, "mcp-endpoint", getEnv("MCP_ENDPOINT", "/mcp"),
		"HTTP endpoint path for MCP requests")
	mcpCmd.Flags().StringVar(&mcpPlaybookPath, "playbook", "",
		"Playbook catalog YAML file; created with the built-in catalog when missing")
}

func runMCPServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("playbook") {
		cfg.PlaybookPath = mcpPlaybookPath
	}

	if err := setupLogFromConfig(cmd, cfg); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	logger := logging.GetLogger("mcp")
	logger.Info("Starting triage MCP server (transport: %s)", mcpTransport)

	stack, err := buildStack(cfg, nil)
	if err != nil {
		return err
	}
	defer stack.Close()

	triageServer, err := mcp.NewTriageServer(mcp.ServerOptions{
		Runner:   stack.agent,
		Registry: stack.registry,
		Version:  Version,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	mcpServer := triageServer.GetMCPServer()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal: %v, shutting down gracefully...", sig)
		cancel()
	}()

	switch mcpTransport {
	case "http":
		endpointPath := mcpEndpointPath
		if endpointPath == "" {
			endpointPath = "/mcp"
		} else if endpointPath[0] != '/' {
			endpointPath = "/" + endpointPath
		}

		logger.Info("Starting HTTP server on %s (endpoint: %s)", mcpHTTPAddr, endpointPath)

		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("ok"))
		})

		httpSrv := &http.Server{
			Addr:              mcpHTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second, // Prevent Slowloris attacks
		}

		// Stateless mode keeps clients that do not manage sessions working.
		streamableServer := server.NewStreamableHTTPServer(
			mcpServer,
			server.WithEndpointPath(endpointPath),
			server.WithStateLess(true),
			server.WithStreamableHTTPServer(httpSrv),
		)
		mux.Handle(endpointPath, streamableServer)

		errCh := make(chan error, 1)
		go func() {
			if err := streamableServer.Start(mcpHTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := streamableServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during shutdown: %v", err)
				return err
			}
		case err := <-errCh:
			logger.Error("Server error: %v", err)
			return err
		}

	case "stdio":
		logger.Info("Starting stdio transport")
		if err := server.ServeStdio(mcpServer); err != nil {
			logger.Error("Stdio transport error: %v", err)
			return err
		}

	default:
		return fmt.Errorf("invalid transport type: %s (must be 'stdio' or 'http')", mcpTransport)
	}

	logger.Info("Server stopped")
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
