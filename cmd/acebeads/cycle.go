package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sjarmak/acebeads/internal/curator"
	"github.com/sjarmak/acebeads/internal/cycle"
	"github.com/sjarmak/acebeads/internal/tracestore"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run the full learning cycle",
}

func init() {
	cycleCmd.AddCommand(cycleRunCmd)
}

var cycleTimeout time.Duration

var cycleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Reflect, curate, merge, and evaluate in one serialized pass",
	Long: `Run one full learning cycle: mine the trace log for insights,
curate them into deltas, merge the delta queue into the playbook, and
gate the result through the Evaluator before committing
(spec.md Section 5).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openKnowledge(cfg)
		if err != nil {
			return err
		}

		traceStore := openTraces(cfg)
		result, err := traceStore.ReadAll()
		if err != nil {
			return fmt.Errorf("reading trace log: %w", err)
		}

		if cfg.TraceRetention.MaxTracesPerBead > 0 {
			if _, err := traceStore.Apply(tracestore.RetentionPolicy{
				MaxTracesPerBead: cfg.TraceRetention.MaxTracesPerBead,
				MaxAgeInDays:     cfg.TraceRetention.MaxAgeInDays,
				ArchivePath:      cfg.TraceRetention.ArchivePath,
			}); err != nil {
				return fmt.Errorf("applying trace retention: %w", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
		defer cancel()

		runner := cycle.NewRunner()
		cycleResult, err := runner.Run(ctx, cycle.Config{
			Knowledge:           store,
			Queue:               openQueue(cfg),
			Traces:              traceStore,
			ConfidenceFloor:     cfg.Learning.ConfidenceMin,
			MaxDeltasPerSession: cfg.MaxDeltasPerSession,
			PruneThreshold:      -3,
			HarmfulThreshold:    2,
			ArchiveDate:         func() string { return time.Now().UTC().Format("2006-01-02") },
			CuratorOptions: curator.Options{
				ConfidenceThreshold: cfg.Learning.ConfidenceMin,
				MaxDeltasPerSession: cfg.MaxDeltasPerSession,
			},
		}, result.Traces)
		if err != nil {
			return fmt.Errorf("running cycle: %w", err)
		}

		return writeResult(cycleResult, func() {
			fmt.Printf("mined %d insight(s), accepted %d, rejected %d\n",
				cycleResult.InsightsMined, len(cycleResult.Accepted), len(cycleResult.Rejected))
			fmt.Printf("bullets_added=%d bullets_pruned=%d net_score_change=%d\n",
				cycleResult.BulletsAdded, cycleResult.BulletsPruned, cycleResult.NetScoreChange)
			for _, r := range cycleResult.Rejected {
				fmt.Printf("  rejected %s: %s\n", r.DeltaID, r.Reason)
			}
		})
	},
}

func init() {
	cycleRunCmd.Flags().DurationVar(&cycleTimeout, "timeout", 60*time.Second, "Maximum time the cycle may run before it is cancelled")
}
