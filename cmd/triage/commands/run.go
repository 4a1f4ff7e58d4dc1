package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pagerops/triage/internal/agent"
	"github.com/pagerops/triage/internal/display"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Triage a single incident or start the interactive prompt",
	Long: `Triage incidents from the terminal.

With --incident the given description is triaged once and the result is
printed. Without it an interactive prompt starts: enter a description over
one or more lines, submit with a blank line, type 'quit' to exit.

Examples:
  # One-off triage
  triage run --incident "Production database is completely down, all users affected"

  # One-off triage, saving the result artifact next to the cwd
  triage run --incident "Payment API timeouts" --save

  # Interactive session with a custom playbook catalog
  triage run --playbook ./playbooks.yaml`,
	RunE: runRun,
}

var (
	runIncident      string
	runSave          bool
	runOutput        string
	runPlaybookPath  string
	runAuditLogPath  string
	runMaxIterations int
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runIncident, "incident", "",
		"Single incident description (for quick one-off triage)")
	runCmd.Flags().BoolVar(&runSave, "save", false,
		"Save the result artifact without asking")
	runCmd.Flags().StringVar(&runOutput, "output", "",
		"Artifact path (default: triage_result_<timestamp>.json)")
	runCmd.Flags().StringVar(&runPlaybookPath, "playbook", "",
		"Playbook catalog YAML file (default: built-in catalog)")
	runCmd.Flags().StringVar(&runAuditLogPath, "audit-log", "",
		"Path to write the run audit log (JSONL format). If empty, audit logging is disabled.")
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0,
		"Override the agent loop iteration budget")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("playbook") {
		cfg.PlaybookPath = runPlaybookPath
	}
	if cmd.Flags().Changed("audit-log") {
		cfg.AuditLogPath = runAuditLogPath
	}
	if cmd.Flags().Changed("max-iterations") {
		cfg.MaxIterations = runMaxIterations
	}

	if err := setupLogFromConfig(cmd, cfg); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	stack, err := buildStack(cfg, nil)
	if err != nil {
		return err
	}
	defer stack.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nExiting...")
		cancel()
	}()

	if runIncident != "" {
		return runSingle(ctx, stack, runIncident)
	}
	return runInteractive(ctx, stack)
}

// runSingle triages one incident and prints the report.
func runSingle(ctx context.Context, stack *triageStack, incident string) error {
	fmt.Print(display.Header())
	fmt.Println("Single Incident Mode")
	fmt.Println(display.Rule())

	result, err := stack.agent.Triage(ctx, incident)
	if err != nil {
		return err
	}

	validation := agent.ValidateResult(result)
	fmt.Print(display.Validation(validation))
	fmt.Print(display.Result(result))

	if runSave || runOutput != "" {
		return saveArtifact(result, validation, runOutput)
	}
	return nil
}

// runInteractive loops on stdin: multi-line descriptions, a blank line
// submits, 'quit' exits. Per-incident failures are printed and the prompt
// continues.
func runInteractive(ctx context.Context, stack *triageStack) error {
	fmt.Print(display.Header())
	fmt.Println("Interactive Mode - Enter incident descriptions (Ctrl+C or 'quit' to exit)")
	fmt.Println(display.Rule())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Println("\nEnter incident description (or 'quit' to exit):")
		fmt.Print("> ")

		incident, quit := readIncident(scanner)
		if quit {
			fmt.Println("\nExiting...")
			return nil
		}
		if incident == "" {
			if scanner.Err() != nil || ctx.Err() != nil {
				return scanner.Err()
			}
			continue
		}

		fmt.Println("\nProcessing incident...")

		result, err := stack.agent.Triage(ctx, incident)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
			continue
		}

		validation := agent.ValidateResult(result)
		fmt.Print(display.Validation(validation))
		fmt.Print(display.Result(result))

		if runSave {
			if err := saveArtifact(result, validation, runOutput); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			continue
		}

		fmt.Print("Save results to file? (y/N): ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if strings.EqualFold(strings.TrimSpace(scanner.Text()), "y") {
			if err := saveArtifact(result, validation, runOutput); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}
}

// readIncident collects lines until a blank line follows at least one
// non-blank line. It reports quit when the user types 'quit' on its own
// line or stdin closes.
func readIncident(scanner *bufio.Scanner) (string, bool) {
	var lines []string
	for {
		if !scanner.Scan() {
			return "", true
		}
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if strings.EqualFold(trimmed, "quit") {
			return "", true
		}
		if trimmed == "" {
			if len(lines) > 0 {
				return strings.Join(lines, "\n"), false
			}
			return "", false
		}
		lines = append(lines, line)
	}
}

// saveArtifact writes {result, validation} as indented JSON. An empty path
// derives triage_result_<timestamp>.json from the result timestamp.
func saveArtifact(result *agent.TriageResult, validation agent.Validation, path string) error {
	if path == "" {
		stamp := result.Timestamp.UTC().Format("2006-01-02T15-04-05Z")
		path = fmt.Sprintf("triage_result_%s.json", stamp)
	}

	artifact := struct {
		Result     *agent.TriageResult `json:"result"`
		Validation agent.Validation    `json:"validation"`
	}{
		Result:     result,
		Validation: validation,
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save result to %q: %w", path, err)
	}

	fmt.Printf("Results saved to: %s\n", path)
	return nil
}
