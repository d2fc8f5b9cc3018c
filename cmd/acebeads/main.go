// Package main is the CLI entry point for acebeads — a self-improving
// context engine that mines execution traces from a coding agent into a
// durable, human-readable playbook.
//
// Architecture overview:
//
//	Generator traces --> Reflector (insights) --> Curator (deltas)
//	                                                   |
//	                      Evaluator <-- Merger <-------+
//	                         |
//	                    playbook.md
//
// CLI commands (cobra):
//
//	acebeads playbook show|prune   - Inspect or prune the playbook
//	acebeads trace append|list     - Append/list execution traces
//	acebeads reflect               - Mine traces into insights
//	acebeads curate                - Turn insights into queued deltas
//	acebeads merge                 - Apply the delta queue to the playbook
//	acebeads evaluate              - Score the current playbook
//	acebeads cycle run             - Run the full learning cycle
//	acebeads tracker ...           - Drive the external issue tracker
//	acebeads dashboard serve       - Serve a read-only cycle event feed
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sjarmak/acebeads/internal/config"
)

// Build-time variables injected via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
)

// configPath is the global flag for an explicit project-local config
// file. When empty, Load falls back to .acebeads.yaml in the working
// directory (spec.md Section 6 precedence chain).
var configPath string

// jsonOutput selects structured JSON output over human-readable lines
// (spec.md Section 6: "JSON mode emits a single structured object").
var jsonOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "acebeads",
	Short: "acebeads — a self-improving context engine for coding agents",
	Long: `acebeads mines execution traces from a coding agent into scored
insights, validates them into deltas, and merges them deterministically
into a human-readable playbook. An Evaluator gates every candidate
playbook against the current one before acceptance.

Run 'acebeads cycle run' to execute one full learning cycle, or drive
individual stages (reflect, curate, merge, evaluate) independently.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to an explicit config file (defaults to .acebeads.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit structured JSON instead of human-readable output")

	rootCmd.AddCommand(playbookCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(reflectCmd)
	rootCmd.AddCommand(curateCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(cycleCmd)
	rootCmd.AddCommand(trackerCmd)
	rootCmd.AddCommand(dashboardCmd)
}

// loadConfig resolves config precedence against the current working
// directory (spec.md Section 6).
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining working directory: %w", err)
	}
	return config.Load(configPath, cwd)
}

// cliError wraps an error with the pipeline exit code it maps to
// (spec.md Section 6: "0 success; 2 argument/usage error; 3 generic
// runtime error; 4 artifact not found; 7 parse error").
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func usageError(err error) error   { return &cliError{code: 2, err: err} }
func notFoundError(err error) error { return &cliError{code: 4, err: err} }
func parseError(err error) error   { return &cliError{code: 7, err: err} }

// exitCodeFor maps a returned error to a pipeline exit code and reports
// it on stderr, as a JSON error object when --json is set (spec.md
// Section 7: "{error:{code,message}}"). Errors not wrapped in cliError
// are treated as generic runtime errors (exit 3).
func exitCodeFor(err error) int {
	var ce *cliError
	code, reportErr := 3, err
	if ok := asCliError(err, &ce); ok {
		code, reportErr = ce.code, ce.err
	}

	if jsonOutput {
		printJSONError(code, reportErr)
	} else {
		fmt.Fprintln(os.Stderr, "acebeads:", reportErr)
	}
	return code
}

func asCliError(err error, target **cliError) bool {
	for err != nil {
		if ce, ok := err.(*cliError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// writeResult prints v as indented JSON when jsonOutput is set, or lets
// the caller's human-readable printer run otherwise.
func writeResult(v any, human func()) error {
	if jsonOutput {
		return printJSON(v)
	}
	human()
	return nil
}
