package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagerops/triage/internal/batch"
	"github.com/pagerops/triage/internal/display"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Triage a file of incidents and write a report",
	Long: `Process a JSON array of incidents through the triage loop and write
batch_results.json into the output directory.

Entries may be plain strings or objects with "description" and optional
"occurred_at" fields. A failed incident becomes an error entry in the
report; the batch keeps going and the command still exits zero. Only
startup failures (no provider configured, unreadable input) are fatal.

Examples:
  triage batch --file incidents.json
  triage batch --file incidents.json --output-dir ./reports --concurrency 4`,
	RunE: runBatch,
}

var (
	batchFile         string
	batchOutputDir    string
	batchConcurrency  int
	batchPlaybookPath string
	batchAuditLogPath string
)

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchFile, "file", "",
		"JSON file containing an array of incidents (required)")
	batchCmd.Flags().StringVar(&batchOutputDir, "output-dir", ".",
		"Directory the report is written into")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0,
		"Incidents processed in parallel (default: config batch_concurrency)")
	batchCmd.Flags().StringVar(&batchPlaybookPath, "playbook", "",
		"Playbook catalog YAML file (default: built-in catalog)")
	batchCmd.Flags().StringVar(&batchAuditLogPath, "audit-log", "",
		"Path to write the run audit log (JSONL format). If empty, audit logging is disabled.")

	_ = batchCmd.MarkFlagRequired("file")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("playbook") {
		cfg.PlaybookPath = batchPlaybookPath
	}
	if cmd.Flags().Changed("audit-log") {
		cfg.AuditLogPath = batchAuditLogPath
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.BatchConcurrency = batchConcurrency
	}

	if err := setupLogFromConfig(cmd, cfg); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	stack, err := buildStack(cfg, nil)
	if err != nil {
		return err
	}
	defer stack.Close()

	incidents, err := batch.LoadIncidents(batchFile)
	if err != nil {
		return err
	}

	fmt.Print(display.Header())
	fmt.Printf("Batch Mode - Processing incidents from: %s\n", batchFile)
	fmt.Println(display.Rule())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nCancelling batch...")
		cancel()
	}()

	start := time.Now()
	processor := batch.NewProcessor(stack.agent, cfg.BatchConcurrency)
	entries := processor.Process(ctx, incidents)

	outputPath, err := batch.WriteResults(batchOutputDir, entries)
	if err != nil {
		return err
	}

	summary := batch.Summarize(entries, time.Since(start), outputPath)
	fmt.Println(display.BatchSummary(summary))
	return nil
}
