package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sjarmak/acebeads/internal/reflector"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Append or list execution traces",
}

func init() {
	traceCmd.AddCommand(traceAppendCmd)
	traceCmd.AddCommand(traceListCmd)
}

var traceAppendFile string

var traceAppendCmd = &cobra.Command{
	Use:   "append",
	Short: "Append one execution trace (JSON) to the trace log",
	Long: `Append a single execution trace to the trace log. Reads JSON from
--file, or from stdin if --file is omitted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		data, err := readTraceInput()
		if err != nil {
			return err
		}

		var trace reflector.ExecutionTrace
		if err := json.Unmarshal(data, &trace); err != nil {
			return parseError(fmt.Errorf("parsing trace JSON: %w", err))
		}
		if trace.TraceID == "" || trace.BeadID == "" {
			return usageError(fmt.Errorf("trace requires trace_id and bead_id"))
		}

		store := openTraces(cfg)
		if err := store.Append(trace); err != nil {
			return fmt.Errorf("appending trace: %w", err)
		}

		return writeResult(struct {
			TraceID string `json:"trace_id"`
		}{TraceID: trace.TraceID}, func() {
			fmt.Printf("appended trace %s (bead %s)\n", trace.TraceID, trace.BeadID)
		})
	},
}

func init() {
	traceAppendCmd.Flags().StringVar(&traceAppendFile, "file", "", "Path to a JSON trace file (defaults to stdin)")
}

func readTraceInput() ([]byte, error) {
	if traceAppendFile == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading trace from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(traceAppendFile)
	if err != nil {
		return nil, notFoundError(fmt.Errorf("reading trace file %s: %w", traceAppendFile, err))
	}
	return data, nil
}

var traceListBead string

var traceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List execution traces, optionally filtered to one bead",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store := openTraces(cfg)
		result, err := store.ReadAll()
		if err != nil {
			return fmt.Errorf("reading trace log: %w", err)
		}

		traces := result.Traces
		if traceListBead != "" {
			traces = filterByBead(traces, traceListBead)
		}

		return writeResult(struct {
			Traces  []reflector.ExecutionTrace `json:"traces"`
			Skipped int                        `json:"skipped"`
		}{Traces: traces, Skipped: result.Skipped}, func() {
			for _, t := range traces {
				fmt.Printf("%s  bead=%s  outcome=%s  completed=%v\n", t.TraceID, t.BeadID, t.Outcome, t.Completed)
			}
			if result.Skipped > 0 {
				fmt.Printf("(%d malformed line(s) skipped)\n", result.Skipped)
			}
		})
	},
}

func init() {
	traceListCmd.Flags().StringVar(&traceListBead, "bead", "", "Limit output to one bead id")
}

func filterByBead(traces []reflector.ExecutionTrace, bead string) []reflector.ExecutionTrace {
	var out []reflector.ExecutionTrace
	for _, t := range traces {
		if t.BeadID == bead {
			out = append(out, t)
		}
	}
	return out
}
