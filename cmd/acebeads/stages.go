package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sjarmak/acebeads/internal/curator"
	"github.com/sjarmak/acebeads/internal/evaluator"
	"github.com/sjarmak/acebeads/internal/merger"
	"github.com/sjarmak/acebeads/internal/reflector"
)

// reflectCmd mines the trace log into insights, writing them to
// insights_path (spec.md Section 4.4). It is a read of traces and an
// append to the insights log; it never touches the playbook.
var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Mine the trace log into scored insights",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		traceStore := openTraces(cfg)
		result, err := traceStore.ReadAll()
		if err != nil {
			return fmt.Errorf("reading trace log: %w", err)
		}

		refl := reflector.New()
		var insights []reflector.Insight
		for _, trace := range result.Traces {
			insights = append(insights, refl.Single(trace)...)
		}
		insights = append(insights, refl.BatchWithThreads(result.Traces)...)

		if err := reflector.AppendLog(cfg.InsightsPath, insights); err != nil {
			return fmt.Errorf("writing insights log: %w", err)
		}

		return writeResult(struct {
			InsightsMined int `json:"insights_mined"`
			TracesSkipped int `json:"traces_skipped"`
		}{InsightsMined: len(insights), TracesSkipped: result.Skipped}, func() {
			fmt.Printf("mined %d insight(s) from %d trace(s) (%d skipped)\n", len(insights), len(result.Traces), result.Skipped)
		})
	},
}

// curateCmd reads the insights log, filters/dedups/routes eligible
// insights into deltas, and enqueues them (spec.md Section 4.5).
var curateCmd = &cobra.Command{
	Use:   "curate",
	Short: "Turn eligible insights into queued playbook deltas",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		insights, err := reflector.ReadLog(cfg.InsightsPath)
		if err != nil {
			return fmt.Errorf("reading insights log: %w", err)
		}

		deltas := curator.Curate(insights, curator.Options{
			ConfidenceThreshold: cfg.Learning.ConfidenceMin,
			MaxDeltasPerSession: cfg.MaxDeltasPerSession,
		})

		queue := openQueue(cfg)
		if len(deltas) > 0 {
			if err := queue.Enqueue(deltas); err != nil {
				return fmt.Errorf("enqueueing deltas: %w", err)
			}
		}

		return writeResult(struct {
			Queued int `json:"queued"`
		}{Queued: len(deltas)}, func() {
			fmt.Printf("queued %d delta(s) from %d insight(s)\n", len(deltas), len(insights))
		})
	},
}

// mergeCmd applies the current delta queue to the playbook
// (spec.md Section 4.3) without running Evaluate or retention.
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Apply the delta queue to the playbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openKnowledge(cfg)
		if err != nil {
			return err
		}
		queue := openQueue(cfg)

		queued, err := queue.Read()
		if err != nil {
			return fmt.Errorf("reading delta queue: %w", err)
		}
		existing, manifest, err := store.LoadBullets()
		if err != nil {
			return fmt.Errorf("loading playbook: %w", err)
		}

		merged, accepted, rejections := merger.Merge(existing, queued, merger.Options{
			ConfidenceFloor: cfg.Learning.ConfidenceMin,
		})
		merged = curator.Consolidate(merged)

		if err := store.WriteBullets(merged, manifest); err != nil {
			return fmt.Errorf("writing playbook: %w", err)
		}

		consumed := make([]string, 0, len(queued))
		for _, d := range queued {
			consumed = append(consumed, d.ID)
		}
		if err := queue.Dequeue(consumed); err != nil {
			return fmt.Errorf("dequeuing processed deltas: %w", err)
		}

		rejected := make([]rejectionJSON, 0, len(rejections))
		for _, r := range rejections {
			rejected = append(rejected, rejectionJSON{DeltaID: r.DeltaID, Reason: string(r.Reason)})
		}

		return writeResult(struct {
			Accepted []string        `json:"accepted"`
			Rejected []rejectionJSON `json:"rejected"`
		}{Accepted: accepted, Rejected: rejected}, func() {
			fmt.Printf("accepted %d delta(s), rejected %d\n", len(accepted), len(rejected))
			for _, r := range rejected {
				fmt.Printf("  rejected %s: %s\n", r.DeltaID, r.Reason)
			}
		})
	},
}

type rejectionJSON struct {
	DeltaID string `json:"delta_id"`
	Reason  string `json:"reason"`
}

// evaluateCmd computes Metrics over the current playbook
// (spec.md Section 4.6).
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score the current playbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openKnowledge(cfg)
		if err != nil {
			return err
		}

		bullets, _, err := store.LoadBullets()
		if err != nil {
			return fmt.Errorf("loading playbook: %w", err)
		}
		metrics := evaluator.Compute(bullets)

		return writeResult(metrics, func() {
			fmt.Printf("total_bullets=%d avg_helpful=%.2f avg_harmful=%.2f net_score=%d\n",
				metrics.TotalBullets, metrics.AvgHelpful, metrics.AvgHarmful, metrics.NetScore)
			for section, count := range metrics.BySection {
				fmt.Printf("  %s: %d\n", section, count)
			}
		})
	},
}
