// Package curator turns reflector insights into playbook deltas: it
// filters by eligibility, dedups by normalized pattern, routes each
// survivor to a section, and truncates to a per-session cap in
// confidence-descending order (spec.md Section 4.5).
package curator

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sjarmak/acebeads/internal/deltaqueue"
	"github.com/sjarmak/acebeads/internal/reflector"
)

// Route maps a meta-tag/runner predicate to a target section. Routes are
// evaluated in order; the first match wins (mirrors the teacher's
// ordered rule table).
type Route struct {
	Section string
	Match   func(insight reflector.Insight) bool
}

// DefaultRoutes is the section-routing table from spec.md Section 4.5.
// Most routes match on either a tag/runner substring or a file-glob over
// the insight's scope, whichever fires first — an insight whose runner or
// meta-tags mention "tsc" routes the same as one whose touched files are all
// *.ts, without the caller having to pick a discovery mechanism.
func DefaultRoutes() []Route {
	return []Route{
		{
			Section: "typescript/patterns",
			Match:   anyMatch(hasTagContaining("type", "tsc"), hasScopeGlob("**/*.ts", "**/*.tsx")),
		},
		{
			Section: "build/test/patterns",
			Match:   anyMatch(hasTagContaining("vitest", "test"), hasScopeGlob("**/*.test.*", "**/*.spec.*", "**/*_test.go")),
		},
		{Section: "architecture/patterns", Match: hasTagContaining("discovery", "meta-pattern")},
		{
			Section: "dependency/patterns",
			Match:   anyMatch(hasTagContaining("discovered-from", "dependency"), hasScopeGlob("**/package.json", "**/go.mod", "**/go.sum")),
		},
	}
}

func hasTagContaining(needles ...string) func(reflector.Insight) bool {
	return func(in reflector.Insight) bool {
		haystacks := append([]string{in.Source.Runner}, in.MetaTags...)
		for _, h := range haystacks {
			h = strings.ToLower(h)
			for _, n := range needles {
				if strings.Contains(h, n) {
					return true
				}
			}
		}
		return false
	}
}

// hasScopeGlob compiles patterns once and returns a predicate matching an
// insight whose Scope (the files its evidence touched) contains any file
// matching any pattern — the same compiled-once, matched-many-times glob
// style the Reflector uses for its confidence bonus.
func hasScopeGlob(patterns ...string) func(reflector.Insight) bool {
	globs := reflector.CompileGlobs(patterns...)
	return func(in reflector.Insight) bool {
		return reflector.MatchesScope(in.Scope, globs)
	}
}

// anyMatch ORs together route predicates: the route fires if any of them
// does.
func anyMatch(preds ...func(reflector.Insight) bool) func(reflector.Insight) bool {
	return func(in reflector.Insight) bool {
		for _, p := range preds {
			if p(in) {
				return true
			}
		}
		return false
	}
}

// defaultSection is the fallback route when nothing in the table matches.
const defaultSection = "build/test/patterns"

// route assigns a section to an insight by walking the table in order.
func route(routes []Route, in reflector.Insight) string {
	for _, r := range routes {
		if r.Match(in) {
			return r.Section
		}
	}
	return defaultSection
}

// Options configures a Curator run.
type Options struct {
	ConfidenceThreshold float64
	MaxDeltasPerSession int
	Routes              []Route
	Source              string
	Now                 func() string
	NewID               func() string
}

func (o Options) withDefaults() Options {
	if o.Routes == nil {
		o.Routes = DefaultRoutes()
	}
	if o.MaxDeltasPerSession <= 0 {
		o.MaxDeltasPerSession = 3
	}
	if o.Source == "" {
		o.Source = "reflector"
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Curate implements spec.md Section 4.5 steps 1-4: filter eligible
// insights, dedup by normalized pattern keeping the first, route each
// survivor to a section, and emit in confidence-descending order
// truncated to MaxDeltasPerSession.
func Curate(insights []reflector.Insight, opts Options) []deltaqueue.Delta {
	opts = opts.withDefaults()

	eligible := make([]reflector.Insight, 0, len(insights))
	for _, in := range insights {
		if in.OnlineEligible && in.Confidence >= opts.ConfidenceThreshold {
			eligible = append(eligible, in)
		}
	}

	seen := map[string]bool{}
	var deduped []reflector.Insight
	for _, in := range eligible {
		key := normalizePattern(in.Signal.Pattern)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, in)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Confidence > deduped[j].Confidence
	})

	if len(deduped) > opts.MaxDeltasPerSession {
		deduped = deduped[:opts.MaxDeltasPerSession]
	}

	deltas := make([]deltaqueue.Delta, 0, len(deduped))
	for _, in := range deduped {
		deltas = append(deltas, toDelta(in, opts))
	}
	return deltas
}

func toDelta(in reflector.Insight, opts Options) deltaqueue.Delta {
	evidence := strings.Join(in.Signal.Evidence, "; ")
	createdAt := ""
	if opts.Now != nil {
		createdAt = opts.Now()
	}

	return deltaqueue.Delta{
		ID:      opts.NewID(),
		Section: route(opts.Routes, in),
		Op:      deltaqueue.OpAdd,
		Content: in.Recommendation,
		Metadata: deltaqueue.Metadata{
			Source:     opts.Source,
			Confidence: in.Confidence,
			Tags:       in.MetaTags,
			Scope:      in.Scope,
		},
		Evidence:  evidence,
		CreatedAt: createdAt,
	}
}

func normalizePattern(pattern string) string {
	return strings.ToLower(strings.TrimSpace(pattern))
}
