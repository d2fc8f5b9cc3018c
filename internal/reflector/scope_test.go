package reflector

import "testing"

func TestMatchesScope_HotPathGlobMatches(t *testing.T) {
	globs := CompileGlobs("**/*.test.*", "**/package.json")
	if !MatchesScope([]string{"src/a.ts", "src/a.test.ts"}, globs) {
		t.Fatalf("expected a match against **/*.test.*")
	}
}

func TestMatchesScope_NoMatch(t *testing.T) {
	globs := CompileGlobs("**/*.test.*")
	if MatchesScope([]string{"src/a.ts", "src/b.ts"}, globs) {
		t.Fatalf("expected no match")
	}
}

func TestMatchesScope_InvalidPatternSkipped(t *testing.T) {
	globs := CompileGlobs("[", "**/*.test.*")
	if len(globs) != 1 {
		t.Fatalf("expected the malformed pattern to be dropped, got %d globs", len(globs))
	}
}

func TestErrorGroupInsight_TouchedTestFileEarnsScopeBonus(t *testing.T) {
	r := testReflector()
	trace := ExecutionTrace{
		TraceID:      "trace-scope",
		BeadID:       "bead-1",
		TouchedFiles: []string{"src/a.test.ts"},
		Executions: []ExecutionResult{
			{Status: StatusFail, Errors: []NormalizedError{tscError("src/a.ts", "Type 'string' is not assignable to type 'number'")}},
		},
	}

	insights := r.Single(trace)
	if len(insights) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(insights))
	}

	withoutBonus, _ := Confidence(ConfidenceInputs{Frequency: 1, BeadCount: 1, FileCount: 1, AllSeverityError: true})
	if insights[0].Confidence <= withoutBonus {
		t.Fatalf("expected scope bonus to raise confidence above %v, got %v", withoutBonus, insights[0].Confidence)
	}
}
