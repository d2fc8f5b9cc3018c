package reflector

import (
	"os"
	"path/filepath"
	"testing"
)

func insight(id string, confidence float64) Insight {
	return Insight{
		ID:             id,
		Timestamp:      "2026-01-01T00:00:00Z",
		TaskID:         "t1",
		Source:         Source{Runner: "tester", BeadIDs: []string{"b1"}},
		Signal:         Signal{Pattern: "repeated_failure", Evidence: []string{"e1"}},
		Recommendation: "retry with backoff",
		Confidence:     confidence,
		OnlineEligible: true,
	}
}

func TestReadLog_MissingFileIsEmpty(t *testing.T) {
	insights, err := ReadLog(filepath.Join(t.TempDir(), "insights.jsonl"))
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if len(insights) != 0 {
		t.Fatalf("expected no insights, got %d", len(insights))
	}
}

func TestAppendLog_NoopOnEmptySlice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insights.jsonl")
	if err := AppendLog(path, nil); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file created for empty insight slice, stat err=%v", err)
	}
}

func TestAppendLogThenReadLog_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insights.jsonl")

	if err := AppendLog(path, []Insight{insight("i1", 0.9)}); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
	if err := AppendLog(path, []Insight{insight("i2", 0.5)}); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}

	insights, err := ReadLog(path)
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if len(insights) != 2 {
		t.Fatalf("expected 2 insights, got %d", len(insights))
	}
	if insights[0].ID != "i1" || insights[1].ID != "i2" {
		t.Fatalf("unexpected order: %+v", insights)
	}
}

func TestReadLog_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insights.jsonl")

	if err := AppendLog(path, []Insight{insight("i1", 0.9)}); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{not valid json\n\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if err := AppendLog(path, []Insight{insight("i2", 0.5)}); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}

	insights, err := ReadLog(path)
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if len(insights) != 2 {
		t.Fatalf("expected malformed/blank lines skipped, got %d insights: %+v", len(insights), insights)
	}
	if insights[0].ID != "i1" || insights[1].ID != "i2" {
		t.Fatalf("unexpected insights after skip: %+v", insights)
	}
}
