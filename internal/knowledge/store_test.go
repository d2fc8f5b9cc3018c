package knowledge

import (
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	s, err := NewStore(root, filepath.Join(root, "playbook.md"), filepath.Join(root, "archive.md"))
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	return s
}

func TestLoadBullets_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	bullets, manifest, err := s.LoadBullets()
	if err != nil {
		t.Fatalf("LoadBullets() error: %v", err)
	}
	if bullets != nil || manifest != nil {
		t.Errorf("expected empty result for missing playbook, got bullets=%v manifest=%v", bullets, manifest)
	}
}

func TestWriteThenLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	bullets := []Bullet{
		{ID: "b2", Section: "test/patterns", Content: "Second bullet content", Helpful: 1, Harmful: 0},
		{ID: "b1", Section: "test/patterns", Content: "Always validate input before processing", Helpful: 3, Harmful: 1,
			Provenance: &Provenance{DeltaID: "d1", SourceID: "s1", CreatedAt: "2026-01-01T00:00:00Z", Hash: "abc123"}},
		{ID: "b3", Section: "typescript/patterns", Content: "Narrow types at API boundaries", Helpful: 2, Harmful: 0, AggregatedFrom: 3},
	}

	if err := s.WriteBullets(bullets, nil); err != nil {
		t.Fatalf("WriteBullets() error: %v", err)
	}

	loaded, _, err := s.LoadBullets()
	if err != nil {
		t.Fatalf("LoadBullets() error: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 bullets, got %d", len(loaded))
	}

	byID := map[string]Bullet{}
	for _, b := range loaded {
		byID[b.ID] = b
	}

	b1 := byID["b1"]
	if b1.Helpful != 3 || b1.Harmful != 1 {
		t.Errorf("b1 counters = (%d,%d), want (3,1)", b1.Helpful, b1.Harmful)
	}
	if b1.Provenance == nil || b1.Provenance.DeltaID != "d1" {
		t.Errorf("b1 provenance not round-tripped: %+v", b1.Provenance)
	}

	b3 := byID["b3"]
	if b3.AggregatedFrom != 3 {
		t.Errorf("b3 AggregatedFrom = %d, want 3", b3.AggregatedFrom)
	}
}

func TestWriteBullets_CanonicalOrder(t *testing.T) {
	s := newTestStore(t)

	bullets := []Bullet{
		{ID: "low", Section: "a", Content: "zzz low helpful", Helpful: 1, Harmful: 0},
		{ID: "high", Section: "a", Content: "aaa high helpful", Helpful: 5, Harmful: 0},
	}
	if err := s.WriteBullets(bullets, nil); err != nil {
		t.Fatalf("WriteBullets() error: %v", err)
	}

	data, _, err := s.LoadBullets()
	if err != nil {
		t.Fatalf("LoadBullets() error: %v", err)
	}
	if len(data) != 2 || data[0].ID != "high" {
		t.Fatalf("expected high-helpful bullet first, got %+v", data)
	}
}

func TestIncrementCounters_PreservesOtherText(t *testing.T) {
	s := newTestStore(t)
	bullets := []Bullet{
		{ID: "b1", Section: "test/patterns", Content: "Always validate input", Helpful: 1, Harmful: 0},
	}
	if err := s.WriteBullets(bullets, nil); err != nil {
		t.Fatalf("WriteBullets() error: %v", err)
	}

	if err := s.IncrementCounters(map[string]CounterDelta{"b1": {HelpfulDelta: 2, HarmfulDelta: 1}}); err != nil {
		t.Fatalf("IncrementCounters() error: %v", err)
	}

	loaded, _, err := s.LoadBullets()
	if err != nil {
		t.Fatalf("LoadBullets() error: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Helpful != 3 || loaded[0].Harmful != 1 {
		t.Fatalf("expected (3,1), got %+v", loaded)
	}
	if loaded[0].Content != "Always validate input" {
		t.Errorf("content changed: %q", loaded[0].Content)
	}
}

func TestIncrementCounters_MissingBulletIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteBullets([]Bullet{{ID: "b1", Section: "x", Content: "some content here", Helpful: 0, Harmful: 0}}, nil); err != nil {
		t.Fatalf("WriteBullets() error: %v", err)
	}
	if err := s.IncrementCounters(map[string]CounterDelta{"nonexistent": {HelpfulDelta: 1}}); err != nil {
		t.Fatalf("IncrementCounters() error: %v", err)
	}
}

func TestGuard_RejectsEscapingRoot(t *testing.T) {
	root := t.TempDir()
	_, err := NewStore(root, filepath.Join(root, "..", "outside.md"), filepath.Join(root, "archive.md"))
	if err == nil {
		t.Fatal("expected write scope violation, got nil")
	}
	if !strings.Contains(err.Error(), "write scope violation") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFindInsertPosition_SectionAbsent(t *testing.T) {
	lines := []string{"## Other", "", "[Bullet #b1, helpful:0, harmful:0] some content here"}
	_, ok := FindInsertPosition(lines, "missing/section")
	if ok {
		t.Error("expected ok=false for absent section")
	}
}

func TestFindInsertPosition_AfterLastBullet(t *testing.T) {
	lines := []string{
		"## Test Patterns",
		"",
		"[Bullet #b1, helpful:0, harmful:0] first bullet content",
		"[Bullet #b2, helpful:0, harmful:0] second bullet content",
		"",
	}
	idx, ok := FindInsertPosition(lines, "test/patterns")
	if !ok {
		t.Fatal("expected section found")
	}
	if idx != 4 {
		t.Errorf("idx = %d, want 4", idx)
	}
}

func TestAppendArchive_Idempotent(t *testing.T) {
	s := newTestStore(t)
	b := []Bullet{{ID: "b1", Section: "x", Content: "harmful advice that got pruned", Helpful: 1, Harmful: 3}}

	if err := s.AppendArchive(b, "2026-01-01"); err != nil {
		t.Fatalf("AppendArchive() error: %v", err)
	}
	if err := s.AppendArchive(b, "2026-01-02"); err != nil {
		t.Fatalf("second AppendArchive() error: %v", err)
	}

	ids, err := s.archivedIDs()
	if err != nil {
		t.Fatalf("archivedIDs() error: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("expected 1 archived id (idempotent), got %d", len(ids))
	}
}

func TestNormalize(t *testing.T) {
	a := Normalize("  ALWAYS   VALIDATE   INPUT  ")
	bNorm := Normalize("always validate input")
	if a != bNorm {
		t.Errorf("Normalize mismatch: %q vs %q", a, bNorm)
	}
}

func TestHash_SameSectionDifferentSpacing(t *testing.T) {
	h1 := Hash("test/patterns", "Always validate input")
	h2 := Hash("test/patterns", "  ALWAYS   VALIDATE   INPUT  ")
	if h1 != h2 {
		t.Errorf("expected equal hashes, got %q vs %q", h1, h2)
	}
}
