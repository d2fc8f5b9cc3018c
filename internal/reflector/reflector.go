package reflector

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Reflector mines traces for insights. It holds no state across runs —
// every method is a pure function of its inputs plus the injectable
// clock/id generator below, kept swappable for deterministic tests the
// way the teacher's engine keeps compiled matchers swappable at load
// time.
type Reflector struct {
	now   func() time.Time
	newID func() string
}

// New returns a Reflector using the real clock and a real UUID generator.
func New() *Reflector {
	return &Reflector{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

func (r *Reflector) timestamp() string {
	return r.now().Format(time.RFC3339)
}

type errorGroup struct {
	tool     Tool
	pattern  string
	messages []string
	files    map[string]bool
	allError bool
}

func groupKey(tool Tool, pattern string) string {
	return string(tool) + "::" + pattern
}

// Single produces insights from a single trace: one per (tool, pattern)
// group among failed executions, plus an optional discovery-chain
// insight and an optional harmful-bullet-feedback insight (spec.md
// Section 4.4, "Single-trace mode"). A malformed trace (missing
// trace_id) yields no insights rather than an error.
func (r *Reflector) Single(trace ExecutionTrace) []Insight {
	if trace.TraceID == "" {
		return nil
	}

	var insights []Insight

	groups := r.groupFailedErrors(trace)
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		insights = append(insights, r.errorGroupInsight(trace, g))
	}

	if len(trace.DiscoveredIssues) >= 1 {
		insights = append(insights, r.discoveryChainInsight(trace))
	}

	if len(trace.HarmfulFeedback()) > 0 {
		insights = append(insights, r.harmfulFeedbackInsight(trace))
	}

	return insights
}

func (r *Reflector) groupFailedErrors(trace ExecutionTrace) map[string]*errorGroup {
	groups := map[string]*errorGroup{}

	for _, exec := range trace.FailedExecutions() {
		for _, e := range exec.Errors {
			pattern := DerivePattern(e)
			key := groupKey(e.Tool, pattern)

			g, ok := groups[key]
			if !ok {
				g = &errorGroup{tool: e.Tool, pattern: pattern, files: map[string]bool{}, allError: true}
				groups[key] = g
			}
			g.messages = append(g.messages, e.Message)
			if e.File != "" {
				g.files[e.File] = true
			}
			if e.Severity != SeverityError {
				g.allError = false
			}
		}
	}

	return groups
}

func (r *Reflector) errorGroupInsight(trace ExecutionTrace, g *errorGroup) Insight {
	scope := sortedFileList(g.files)
	touched := trace.TouchedFiles
	if len(touched) == 0 {
		touched = scope
	}

	confidence, eligible := Confidence(ConfidenceInputs{
		Frequency:        len(g.messages),
		BeadCount:        1,
		FileCount:        len(g.files),
		AllSeverityError: g.allError,
		ScopeMatch:       MatchesScope(touched, hotPathGlobs),
	})

	return Insight{
		ID:        r.newID(),
		Timestamp: r.timestamp(),
		TaskID:    trace.TraceID,
		Source: Source{
			Runner:  string(g.tool),
			BeadIDs: []string{trace.BeadID},
		},
		Signal: Signal{
			Pattern:  g.pattern,
			Evidence: g.messages,
		},
		Recommendation: recommendationFor(g.tool, g.pattern),
		Scope:          scope,
		Confidence:     confidence,
		OnlineEligible: eligible,
		MetaTags:       []string{string(g.tool)},
	}
}

func (r *Reflector) discoveryChainInsight(trace ExecutionTrace) Insight {
	confidence := 0.65
	if len(trace.DiscoveredIssues) >= 3 {
		confidence = 0.85
	}

	beadIDs := append([]string{trace.BeadID}, trace.DiscoveredIssues...)

	return Insight{
		ID:        r.newID(),
		Timestamp: r.timestamp(),
		TaskID:    trace.TraceID,
		Source: Source{
			Runner:  "discovery",
			BeadIDs: beadIDs,
		},
		Signal: Signal{
			Pattern:  "discovery-chain",
			Evidence: trace.DiscoveredIssues,
		},
		Recommendation: "Investigate follow-up work items discovered during this task before closing out.",
		Confidence:     confidence,
		OnlineEligible: confidence >= 0.8,
		MetaTags:       []string{"discovered-from"},
	}
}

func (r *Reflector) harmfulFeedbackInsight(trace ExecutionTrace) Insight {
	harmful := trace.HarmfulFeedback()

	var evidence []string
	var bulletIDs []string
	for _, f := range harmful {
		evidence = append(evidence, f.BulletID+": "+f.Reason)
		bulletIDs = append(bulletIDs, f.BulletID)
	}

	return Insight{
		ID:        r.newID(),
		Timestamp: r.timestamp(),
		TaskID:    trace.TraceID,
		Source: Source{
			Runner:  "playbook",
			BeadIDs: []string{trace.BeadID},
		},
		Signal: Signal{
			Pattern:  "harmful-bullet-feedback",
			Evidence: evidence,
		},
		Recommendation: "Review and consider deprecating bullets flagged harmful in this trace: " + joinComma(bulletIDs),
		Confidence:     0.75,
		OnlineEligible: false,
		MetaTags:       []string{"harmful-feedback"},
	}
}

func recommendationFor(tool Tool, pattern string) string {
	switch pattern {
	case "type-mismatch":
		return "Add a playbook bullet reminding the generator to check types at this boundary before running " + string(tool) + "."
	case "module-resolution":
		return "Add a playbook bullet about verifying module paths/aliases before relying on imports."
	default:
		return "Investigate recurring " + string(tool) + " failures matching this pattern."
	}
}

func sortedKeys(groups map[string]*errorGroup) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFileList(files map[string]bool) []string {
	if len(files) == 0 {
		return nil
	}
	list := make([]string, 0, len(files))
	for f := range files {
		list = append(list, f)
	}
	sort.Strings(list)
	return list
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
