package merger

import (
	"encoding/json"
	"testing"

	"github.com/sjarmak/acebeads/internal/deltaqueue"
	"github.com/sjarmak/acebeads/internal/knowledge"
)

func opts() Options {
	return Options{ConfidenceFloor: 0.6}
}

func addDelta(section, content string, confidence float64) deltaqueue.Delta {
	return deltaqueue.Delta{
		ID:       "delta-" + content,
		Section:  section,
		Op:       deltaqueue.OpAdd,
		Content:  content,
		Metadata: deltaqueue.Metadata{Confidence: confidence, Source: "bead-1"},
		Evidence: "observed across three separate task runs",
	}
}

// S1 — Add new pattern, accept.
func TestMerge_S1_AddNewPattern(t *testing.T) {
	deltas := []deltaqueue.Delta{addDelta("test/patterns", "Always validate input before processing", 0.85)}
	bullets, accepted, rejected := Merge(nil, deltas, opts())

	if len(rejected) != 0 {
		t.Fatalf("expected no rejections, got %+v", rejected)
	}
	if len(accepted) != 1 {
		t.Fatalf("expected 1 accepted, got %d", len(accepted))
	}
	if len(bullets) != 1 {
		t.Fatalf("expected 1 bullet, got %d", len(bullets))
	}
	b := bullets[0]
	if b.Content != "Always validate input before processing" {
		t.Errorf("content not preserved verbatim: %q", b.Content)
	}
	if b.Helpful != 0 || b.Harmful != 0 {
		t.Errorf("expected (0,0) counters, got (%d,%d)", b.Helpful, b.Harmful)
	}
}

// S2 — Duplicate with different spacing.
func TestMerge_S2_DuplicateDifferentSpacing(t *testing.T) {
	existing := []knowledge.Bullet{
		{ID: "b1", Section: "test/patterns", Content: "Always validate input", Helpful: 1, Harmful: 0},
	}
	deltas := []deltaqueue.Delta{addDelta("test/patterns", "  ALWAYS   VALIDATE   INPUT  ", 0.9)}

	bullets, accepted, rejected := Merge(existing, deltas, opts())

	if len(bullets) != 1 {
		t.Fatalf("expected 1 bullet (dedup), got %d", len(bullets))
	}
	if len(accepted) != 0 {
		t.Fatalf("expected 0 accepted, got %d", len(accepted))
	}
	if len(rejected) != 1 || rejected[0].Reason != ReasonDuplicate {
		t.Fatalf("expected duplicate rejection, got %+v", rejected)
	}
}

// S3 — Amend counters.
func TestMerge_S3_AmendCounters(t *testing.T) {
	existing := []knowledge.Bullet{
		{ID: "b1", Section: "test/patterns", Content: "Always validate input", Helpful: 1, Harmful: 0},
	}
	amend := deltaqueue.Delta{
		ID:       "amend-1",
		Section:  "test/patterns",
		Op:       deltaqueue.OpAmend,
		Content:  "Always validate input",
		Metadata: deltaqueue.Metadata{Confidence: 0.9, HelpfulIncrement: 2, HarmfulIncrement: 1, Source: "bead-2"},
		Evidence: "confirmed by a second independent task run",
	}

	bullets, accepted, rejected := Merge(existing, []deltaqueue.Delta{amend}, opts())

	if len(rejected) != 0 {
		t.Fatalf("expected no rejections, got %+v", rejected)
	}
	if len(accepted) != 1 || accepted[0] != "amend-1" {
		t.Fatalf("expected amend-1 accepted, got %+v", accepted)
	}
	if len(bullets) != 1 || bullets[0].Helpful != 3 || bullets[0].Harmful != 1 {
		t.Fatalf("expected (3,1), got %+v", bullets)
	}
}

// S4 — Harmful > helpful filter.
func TestMerge_S4_HarmfulFilteredOut(t *testing.T) {
	existing := []knowledge.Bullet{
		{ID: "b1", Section: "test/patterns", Content: "Questionable advice", Helpful: 2, Harmful: 5},
	}
	bullets, _, _ := Merge(existing, nil, opts())
	if len(bullets) != 0 {
		t.Fatalf("expected harmful bullet filtered out, got %+v", bullets)
	}
}

func TestMerge_Amend_InvalidWhenAbsent(t *testing.T) {
	amend := deltaqueue.Delta{
		ID: "amend-x", Section: "a", Op: deltaqueue.OpAmend, Content: "does not exist",
		Metadata: deltaqueue.Metadata{Confidence: 0.9}, Evidence: "irrelevant evidence text",
	}
	_, accepted, rejected := Merge(nil, []deltaqueue.Delta{amend}, opts())
	if len(accepted) != 0 {
		t.Fatalf("expected no acceptance, got %+v", accepted)
	}
	if len(rejected) != 1 || rejected[0].Reason != ReasonInvalid {
		t.Fatalf("expected invalid rejection, got %+v", rejected)
	}
}

func TestMerge_Deprecate_RemovesBullet(t *testing.T) {
	existing := []knowledge.Bullet{
		{ID: "b1", Section: "a", Content: "Old advice to remove", Helpful: 3, Harmful: 0},
	}
	deprecate := deltaqueue.Delta{
		ID: "dep-1", Section: "a", Op: deltaqueue.OpDeprecate, Content: "Old advice to remove",
		Metadata: deltaqueue.Metadata{Confidence: 0.9}, Evidence: "superseded by newer pattern",
	}
	bullets, accepted, rejected := Merge(existing, []deltaqueue.Delta{deprecate}, opts())
	if len(rejected) != 0 {
		t.Fatalf("expected no rejections, got %+v", rejected)
	}
	if len(accepted) != 1 {
		t.Fatalf("expected 1 accepted, got %+v", accepted)
	}
	if len(bullets) != 0 {
		t.Fatalf("expected bullet removed, got %+v", bullets)
	}
}

func TestMerge_LowConfidenceLowEvidence(t *testing.T) {
	lowConf := deltaqueue.Delta{
		ID: "d1", Section: "a", Op: deltaqueue.OpAdd, Content: "some new advice here",
		Metadata: deltaqueue.Metadata{Confidence: 0.1}, Evidence: "a sufficiently long evidence string",
	}
	lowEvidence := deltaqueue.Delta{
		ID: "d2", Section: "a", Op: deltaqueue.OpAdd, Content: "some other advice here",
		Metadata: deltaqueue.Metadata{Confidence: 0.9}, Evidence: "short",
	}

	_, accepted, rejected := Merge(nil, []deltaqueue.Delta{lowConf, lowEvidence}, opts())
	if len(accepted) != 0 {
		t.Fatalf("expected no acceptance, got %+v", accepted)
	}
	if len(rejected) != 2 {
		t.Fatalf("expected 2 rejections, got %+v", rejected)
	}
	if rejected[0].Reason != ReasonLowConfidence {
		t.Errorf("expected low-confidence for d1, got %q", rejected[0].Reason)
	}
	if rejected[1].Reason != ReasonLowEvidence {
		t.Errorf("expected low-evidence for d2, got %q", rejected[1].Reason)
	}
}

// Invariant 1: Determinism.
func TestMerge_Determinism(t *testing.T) {
	existing := []knowledge.Bullet{
		{ID: "b1", Section: "a", Content: "first bullet content here", Helpful: 2, Harmful: 0},
	}
	deltas := []deltaqueue.Delta{addDelta("a", "second bullet content here", 0.9)}

	b1, _, _ := Merge(existing, deltas, opts())
	b2, _, _ := Merge(existing, deltas, opts())

	j1, _ := json.Marshal(b1)
	j2, _ := json.Marshal(b2)
	if string(j1) != string(j2) {
		t.Fatalf("merge is not deterministic:\n%s\nvs\n%s", j1, j2)
	}
}

// Invariant 2: Uniqueness.
func TestMerge_NoHashCollisions(t *testing.T) {
	deltas := []deltaqueue.Delta{
		addDelta("a", "first distinct bullet", 0.9),
		addDelta("a", "second distinct bullet", 0.9),
		addDelta("a", "  FIRST   distinct bullet  ", 0.9),
	}
	bullets, _, rejected := Merge(nil, deltas, opts())

	seen := map[string]bool{}
	for _, b := range bullets {
		if seen[b.Hash()] {
			t.Fatalf("duplicate hash in output: %s", b.Hash())
		}
		seen[b.Hash()] = true
	}
	if len(rejected) != 1 {
		t.Fatalf("expected the near-duplicate rejected, got %+v", rejected)
	}
}

// Invariant 3: Non-collapse.
func TestMerge_NonCollapse(t *testing.T) {
	existing := []knowledge.Bullet{
		{ID: "b1", Section: "a", Content: "existing bullet content", Helpful: 1, Harmful: 0},
	}
	deltas := []deltaqueue.Delta{
		addDelta("a", "new bullet one content", 0.9),
		addDelta("a", "new bullet two content", 0.9),
	}
	addCount := 0
	for _, d := range deltas {
		if d.Op == deltaqueue.OpAdd {
			addCount++
		}
	}

	bullets, _, _ := Merge(existing, deltas, opts())
	if len(bullets) > len(existing)+addCount {
		t.Fatalf("collapse violated: %d bullets > %d + %d", len(bullets), len(existing), addCount)
	}
}
