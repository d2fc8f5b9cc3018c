package curator

import (
	"strings"
	"testing"

	"github.com/sjarmak/acebeads/internal/knowledge"
	"github.com/sjarmak/acebeads/internal/reflector"
)

func testOpts() Options {
	n := 0
	return Options{
		ConfidenceThreshold: 0.8,
		MaxDeltasPerSession: 3,
		Now:                 func() string { return "2026-01-01T00:00:00Z" },
		NewID: func() string {
			n++
			return "delta-" + string(rune('a'+n-1))
		},
	}
}

func insight(pattern string, confidence float64, runner string, tags ...string) reflector.Insight {
	return reflector.Insight{
		ID:             "insight-" + pattern,
		Signal:         reflector.Signal{Pattern: pattern, Evidence: []string{"some concrete evidence here"}},
		Recommendation: "do something about " + pattern,
		Confidence:     confidence,
		OnlineEligible: confidence >= 0.8,
		Source:         reflector.Source{Runner: runner},
		MetaTags:       tags,
	}
}

func TestCurate_FiltersIneligible(t *testing.T) {
	insights := []reflector.Insight{
		insight("a", 0.9, "tsc"),
		insight("b", 0.5, "tsc"),
	}
	deltas := Curate(insights, testOpts())
	if len(deltas) != 1 {
		t.Fatalf("expected 1 delta, got %d", len(deltas))
	}
}

func TestCurate_DedupKeepsFirst(t *testing.T) {
	first := insight("duplicate pattern", 0.95, "tsc")
	second := insight("Duplicate Pattern", 0.9, "vitest")
	deltas := Curate([]reflector.Insight{first, second}, testOpts())
	if len(deltas) != 1 {
		t.Fatalf("expected 1 delta after dedup, got %d", len(deltas))
	}
	if deltas[0].Content != first.Recommendation {
		t.Fatalf("expected the first insight's recommendation to win, got %q", deltas[0].Content)
	}
}

func TestCurate_RoutingTable(t *testing.T) {
	cases := []struct {
		runner  string
		tags    []string
		section string
	}{
		{"tsc", nil, "typescript/patterns"},
		{"custom", []string{"has-type-info"}, "typescript/patterns"},
		{"vitest", nil, "build/test/patterns"},
		{"custom", []string{"test-runner"}, "build/test/patterns"},
		{"discovery", nil, "architecture/patterns"},
		{"custom", []string{"meta-pattern"}, "architecture/patterns"},
		{"custom", []string{"discovered-from"}, "dependency/patterns"},
		{"unknown-runner", nil, "build/test/patterns"},
	}

	for _, c := range cases {
		in := insight("pattern-"+c.runner+strings.Join(c.tags, ""), 0.9, c.runner, c.tags...)
		deltas := Curate([]reflector.Insight{in}, testOpts())
		if len(deltas) != 1 {
			t.Fatalf("expected 1 delta for %+v, got %d", c, len(deltas))
		}
		if deltas[0].Section != c.section {
			t.Fatalf("case %+v: expected section %q, got %q", c, c.section, deltas[0].Section)
		}
	}
}

func TestCurate_RoutesByScopeGlobWhenTagsDontMatch(t *testing.T) {
	in := insight("bare-runner-pattern", 0.9, "custom-runner")
	in.Scope = []string{"internal/widget/widget_test.go"}

	deltas := Curate([]reflector.Insight{in}, testOpts())
	if len(deltas) != 1 {
		t.Fatalf("expected 1 delta, got %d", len(deltas))
	}
	if deltas[0].Section != "build/test/patterns" {
		t.Fatalf("expected scope glob to route to build/test/patterns, got %q", deltas[0].Section)
	}
	if len(deltas[0].Metadata.Scope) != 1 || deltas[0].Metadata.Scope[0] != "internal/widget/widget_test.go" {
		t.Fatalf("expected scope to carry through to delta metadata, got %v", deltas[0].Metadata.Scope)
	}
}

func TestCurate_ConfidenceDescendingTruncated(t *testing.T) {
	opts := testOpts()
	opts.MaxDeltasPerSession = 2
	insights := []reflector.Insight{
		insight("low", 0.81, "tsc"),
		insight("high", 0.97, "tsc"),
		insight("mid", 0.9, "tsc"),
	}
	deltas := Curate(insights, opts)
	if len(deltas) != 2 {
		t.Fatalf("expected 2 deltas (truncated), got %d", len(deltas))
	}
	if deltas[0].Metadata.Confidence < deltas[1].Metadata.Confidence {
		t.Fatalf("expected confidence-descending order, got %v then %v", deltas[0].Metadata.Confidence, deltas[1].Metadata.Confidence)
	}
	if !strings.Contains(deltas[0].Content, "high") {
		t.Fatalf("expected the highest-confidence insight first, got %q", deltas[0].Content)
	}
}

func TestConsolidate_MergesDuplicateContentAndAnnotates(t *testing.T) {
	bullets := []knowledge.Bullet{
		{ID: "b1", Section: "s", Content: "Always validate input", Helpful: 3, Harmful: 1},
		{ID: "b2", Section: "s", Content: "always   validate input", Helpful: 5, Harmful: 0},
		{ID: "b3", Section: "s", Content: "Unrelated bullet", Helpful: 1, Harmful: 0},
	}

	out := Consolidate(bullets)
	if len(out) != 2 {
		t.Fatalf("expected 2 bullets after consolidation, got %d", len(out))
	}

	var winner knowledge.Bullet
	for _, b := range out {
		if b.AggregatedFrom > 0 {
			winner = b
		}
	}
	if winner.ID != "b2" {
		t.Fatalf("expected b2 (highest helpful) to win, got %q", winner.ID)
	}
	if winner.Helpful != 8 || winner.Harmful != 1 {
		t.Fatalf("expected summed counters (8,1), got (%d,%d)", winner.Helpful, winner.Harmful)
	}
	if !strings.Contains(winner.Content, "Aggregated from 2 instances") {
		t.Fatalf("expected aggregation annotation, got %q", winner.Content)
	}
}

func TestCountersFromFeedback_SumsPerBullet(t *testing.T) {
	feedback := []reflector.BulletFeedback{
		{BulletID: "b1", Feedback: reflector.FeedbackHelpful},
		{BulletID: "b1", Feedback: reflector.FeedbackHelpful},
		{BulletID: "b1", Feedback: reflector.FeedbackHarmful},
		{BulletID: "b2", Feedback: reflector.FeedbackIgnored},
	}
	deltas := CountersFromFeedback(feedback)
	if deltas["b1"].HelpfulDelta != 2 || deltas["b1"].HarmfulDelta != 1 {
		t.Fatalf("unexpected b1 delta: %+v", deltas["b1"])
	}
	if _, ok := deltas["b2"]; ok && (deltas["b2"].HelpfulDelta != 0 || deltas["b2"].HarmfulDelta != 0) {
		t.Fatalf("ignored feedback should not move counters: %+v", deltas["b2"])
	}
}

func TestSplitHarmful_DefaultThreshold(t *testing.T) {
	bullets := []knowledge.Bullet{
		{ID: "b1", Helpful: 1, Harmful: 2},
		{ID: "b2", Helpful: 5, Harmful: 1},
	}
	kept, archived := SplitHarmful(bullets, 0)
	if len(kept) != 1 || kept[0].ID != "b2" {
		t.Fatalf("expected b2 kept, got %+v", kept)
	}
	if len(archived) != 1 || archived[0].ID != "b1" {
		t.Fatalf("expected b1 archived, got %+v", archived)
	}
}

func TestArchiveHarmful_Idempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := knowledge.NewStore(dir, dir+"/playbook.md", dir+"/archive.md")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	bullets := []knowledge.Bullet{
		{ID: "b1", Section: "s", Content: "harmful bullet content", Helpful: 1, Harmful: 3},
		{ID: "b2", Section: "s", Content: "fine bullet content", Helpful: 4, Harmful: 0},
	}

	kept, err := ArchiveHarmful(store, bullets, 0, "2026-01-01")
	if err != nil {
		t.Fatalf("ArchiveHarmful: %v", err)
	}
	if len(kept) != 1 || kept[0].ID != "b2" {
		t.Fatalf("expected b2 kept, got %+v", kept)
	}

	// Archiving the same input again must not duplicate the entry.
	kept2, err := ArchiveHarmful(store, bullets, 0, "2026-01-02")
	if err != nil {
		t.Fatalf("ArchiveHarmful second call: %v", err)
	}
	if len(kept2) != 1 {
		t.Fatalf("expected idempotent kept set, got %+v", kept2)
	}
}
