package cycle

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sjarmak/acebeads/internal/curator"
	"github.com/sjarmak/acebeads/internal/deltaqueue"
	"github.com/sjarmak/acebeads/internal/knowledge"
	"github.com/sjarmak/acebeads/internal/reflector"
	"github.com/sjarmak/acebeads/internal/tracestore"
)

func testConfig(t *testing.T) Config {
	dir := t.TempDir()
	store, err := knowledge.NewStore(dir, filepath.Join(dir, "playbook.md"), filepath.Join(dir, "archive.md"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	n := 0
	return Config{
		Knowledge:           store,
		Queue:               deltaqueue.New(filepath.Join(dir, "queue.json")),
		Traces:              tracestore.New(filepath.Join(dir, "traces.jsonl")),
		ConfidenceFloor:      0.6,
		MaxDeltasPerSession:  3,
		PruneThreshold:       -3,
		HarmfulThreshold:     2,
		ArchiveDate:          func() string { return "2026-01-01" },
		CuratorOptions: curator.Options{
			Now: func() string { return "2026-01-01T00:00:00Z" },
			NewID: func() string {
				n++
				return "delta-" + string(rune('a'+n-1))
			},
		},
	}
}

func tscModuleError(file string) reflector.NormalizedError {
	return reflector.NormalizedError{
		Tool:     reflector.ToolTSC,
		File:     file,
		Message:  "Cannot find module './missing'",
		Severity: reflector.SeverityError,
	}
}

func TestRun_EndToEnd_AcceptsRecurringErrorPattern(t *testing.T) {
	cfg := testConfig(t)

	var traces []reflector.ExecutionTrace
	files := []string{"a.ts", "b.ts", "c.ts", "d.ts", "e.ts"}
	for i, f := range files {
		traces = append(traces, reflector.ExecutionTrace{
			TraceID: "trace-" + string(rune('a'+i)),
			BeadID:  "bead-" + string(rune('a'+i)),
			Executions: []reflector.ExecutionResult{
				{Status: reflector.StatusFail, Errors: []reflector.NormalizedError{tscModuleError(f)}},
			},
		})
	}

	result, err := cycle(t, cfg, traces)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.InsightsMined == 0 {
		t.Fatalf("expected at least one insight mined")
	}
	if result.BulletsAdded == 0 {
		t.Fatalf("expected a bullet to be added for the recurring module-resolution pattern, got result %+v", result)
	}

	bullets, _, err := cfg.Knowledge.LoadBullets()
	if err != nil {
		t.Fatalf("LoadBullets: %v", err)
	}
	if len(bullets) == 0 {
		t.Fatalf("expected the playbook to gain a bullet")
	}
}

func TestRun_ContextCancelledBeforeStart(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner()
	_, err := r.Run(ctx, cfg, nil)
	if err == nil {
		t.Fatalf("expected an error for a cancelled context")
	}
}

func TestRun_NoTracesIsNoop(t *testing.T) {
	cfg := testConfig(t)
	result, err := cycle(t, cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.InsightsMined != 0 || result.BulletsAdded != 0 {
		t.Fatalf("expected a no-op cycle for zero traces, got %+v", result)
	}
}

func cycle(t *testing.T, cfg Config, traces []reflector.ExecutionTrace) (Result, error) {
	t.Helper()
	r := NewRunner()
	return r.Run(context.Background(), cfg, traces)
}
