// Package cycle runs one learning cycle — Reflect, Curate, Merge,
// Evaluate — as a single sequential pipeline serialized by a
// process-wide mutex, interruptible only between stages (spec.md
// Section 5). Trace retention is not a stage of Run: Config.Traces is
// not read by it, and `acebeads cycle run` applies the retention policy
// itself before starting the cycle.
package cycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/sjarmak/acebeads/internal/curator"
	"github.com/sjarmak/acebeads/internal/deltaqueue"
	"github.com/sjarmak/acebeads/internal/evaluator"
	"github.com/sjarmak/acebeads/internal/knowledge"
	"github.com/sjarmak/acebeads/internal/merger"
	"github.com/sjarmak/acebeads/internal/reflector"
	"github.com/sjarmak/acebeads/internal/tracestore"
)

// Rejection mirrors a single rejected delta in the cycle result.
type Rejection struct {
	DeltaID string `json:"delta_id"`
	Reason  string `json:"reason"`
}

// Result is the structured per-stage summary a cycle run returns
// (spec.md Section 7: "success object with per-stage counts").
type Result struct {
	Accepted       []string    `json:"accepted"`
	Rejected       []Rejection `json:"rejected"`
	BulletsAdded   int         `json:"bullets_added"`
	BulletsPruned  int         `json:"bullets_pruned"`
	NetScoreChange int         `json:"net_score_change"`
	InsightsMined  int         `json:"insights_mined"`
	TracesSkipped  int         `json:"traces_skipped"`
}

// Config threads the paths and thresholds a cycle needs, constructed
// once at cycle entry (spec.md Section 9: "Global state ... threaded
// through a single config struct").
type Config struct {
	Knowledge           *knowledge.Store
	Queue               *deltaqueue.Queue
	Traces              *tracestore.Store
	ConfidenceFloor     float64
	MaxDeltasPerSession int
	PruneThreshold      int
	HarmfulThreshold    int
	ArchiveDate         func() string
	CuratorOptions      curator.Options
}

// Runner executes learning cycles, serialized by a process-wide mutex
// (spec.md Section 5: "if the host cannot guarantee serialization, an
// implementation must hold a process-wide mutex around the cycle").
type Runner struct {
	mu sync.Mutex
}

// NewRunner returns a ready-to-use Runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes one learning cycle over the given traces against cfg.
// Cancellation via ctx is only checked between stages; a cancelled
// cycle leaves prior artifacts intact (spec.md Section 5).
func (r *Runner) Run(ctx context.Context, cfg Config, traces []reflector.ExecutionTrace) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result Result

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("cycle aborted before reflect: %w", err)
	}

	refl := reflector.New()
	var insights []reflector.Insight
	for _, trace := range traces {
		insights = append(insights, refl.Single(trace)...)
	}
	insights = append(insights, refl.Batch(traces)...)
	result.InsightsMined = len(insights)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("cycle aborted before curate: %w", err)
	}

	opts := cfg.CuratorOptions
	if opts.ConfidenceThreshold == 0 {
		opts.ConfidenceThreshold = cfg.ConfidenceFloor
	}
	if opts.MaxDeltasPerSession == 0 {
		opts.MaxDeltasPerSession = cfg.MaxDeltasPerSession
	}
	deltas := curator.Curate(insights, opts)

	if len(deltas) > 0 {
		if err := cfg.Queue.Enqueue(deltas); err != nil {
			return result, fmt.Errorf("enqueueing deltas: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("cycle aborted before merge: %w", err)
	}

	queued, err := cfg.Queue.Read()
	if err != nil {
		return result, fmt.Errorf("reading delta queue: %w", err)
	}

	existing, manifest, err := cfg.Knowledge.LoadBullets()
	if err != nil {
		return result, fmt.Errorf("loading playbook: %w", err)
	}
	before := evaluator.Compute(existing)

	merged, accepted, rejections := merger.Merge(existing, queued, merger.Options{
		ConfidenceFloor: cfg.ConfidenceFloor,
		Now:             cfg.ArchiveDate,
	})
	for _, rej := range rejections {
		result.Rejected = append(result.Rejected, Rejection{DeltaID: rej.DeltaID, Reason: string(rej.Reason)})
	}
	result.Accepted = accepted

	merged = curator.Consolidate(merged)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("cycle aborted before evaluate: %w", err)
	}

	candidate := evaluator.Compute(merged)

	if !evaluator.Accept(before, candidate) {
		// Candidate rejected: the current playbook is preserved and the
		// queue keeps whatever wasn't consumed this cycle.
		return result, nil
	}

	date := ""
	if cfg.ArchiveDate != nil {
		date = cfg.ArchiveDate()
	}
	kept, err := curator.ArchiveHarmful(cfg.Knowledge, merged, cfg.HarmfulThreshold, date)
	if err != nil {
		return result, fmt.Errorf("archiving harmful bullets: %w", err)
	}

	pruned := evaluator.Prune(kept, cfg.PruneThreshold)
	result.BulletsPruned = len(kept) - len(pruned)
	result.BulletsAdded = len(pruned) - before.TotalBullets
	if result.BulletsAdded < 0 {
		result.BulletsAdded = 0
	}

	final := evaluator.Compute(pruned)
	result.NetScoreChange = final.NetScore - before.NetScore

	if err := cfg.Knowledge.WriteBullets(pruned, manifest); err != nil {
		return result, fmt.Errorf("writing playbook: %w", err)
	}

	consumedIDs := make([]string, 0, len(queued))
	for _, d := range queued {
		consumedIDs = append(consumedIDs, d.ID)
	}
	if err := cfg.Queue.Dequeue(consumedIDs); err != nil {
		return result, fmt.Errorf("dequeuing processed deltas: %w", err)
	}

	return result, nil
}
