package reflector

import (
	"log/slog"

	"github.com/gobwas/glob"
)

// hotPathGlobs are file patterns whose presence among a trace's touched
// files or an insight's scope earns the confidence model's scope bonus
// (spec.md Section 4.4: errors recurring in these paths affect enough of
// the surface area to be worth a bullet). Compiled once at package load
// and matched many times per trace, the same shape as the teacher's
// path-glob matcher.
var hotPathGlobs = CompileGlobs(
	"**/*.test.*",
	"**/*.spec.*",
	"**/package.json",
	"**/tsconfig*.json",
	"**/*.config.*",
)

// CompileGlobs compiles each pattern with '/' as the path separator,
// dropping (and logging) any pattern that fails to compile rather than
// erroring the caller — a malformed pattern in config should degrade the
// bonus, not take down the pipeline.
func CompileGlobs(patterns ...string) []glob.Glob {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			slog.Warn("skipping invalid scope glob pattern", "pattern", p, "error", err)
			continue
		}
		globs = append(globs, g)
	}
	return globs
}

// MatchesScope reports whether any file in files matches any compiled
// glob in globs.
func MatchesScope(files []string, globs []glob.Glob) bool {
	for _, f := range files {
		for _, g := range globs {
			if g.Match(f) {
				return true
			}
		}
	}
	return false
}
