package reflector

import (
	"regexp"
	"strings"
)

const patternTruncateLen = 80

var (
	typeErrorRe     = regexp.MustCompile(`is not assignable to type|type\s+'.*'\s+is not|argument of type`)
	moduleErrorRe   = regexp.MustCompile(`cannot find module|module not found|unresolved import|cannot resolve`)
	quotedStringRe  = regexp.MustCompile(`["'\x60][^"'\x60]*["'\x60]`)
	digitRunRe      = regexp.MustCompile(`\d+`)
	whitespaceRunRe = regexp.MustCompile(`\s+`)
)

// DerivePattern collapses a normalized error into a canonical pattern
// string. Type-error variants collapse to a single "type-mismatch"
// label; import/resolution errors collapse to "module-resolution";
// everything else is stripped of quoted literals and digits, then
// truncated (spec.md Section 4.4).
func DerivePattern(e NormalizedError) string {
	msg := strings.ToLower(e.Message)

	switch {
	case e.Tool == ToolTSC && typeErrorRe.MatchString(msg):
		return "type-mismatch"
	case moduleErrorRe.MatchString(msg):
		return "module-resolution"
	default:
		return StripVariablePortions(msg)
	}
}

// StripVariablePortions strips quoted literals and digit runs from a
// message and truncates it, used both for single-trace pattern
// derivation and for batch-mode cluster keys (spec.md Section 4.4:
// "errorPattern strips quotes and digits and truncates").
func StripVariablePortions(msg string) string {
	s := quotedStringRe.ReplaceAllString(msg, "<val>")
	s = digitRunRe.ReplaceAllString(s, "N")
	s = whitespaceRunRe.ReplaceAllString(strings.TrimSpace(s), " ")
	if len(s) > patternTruncateLen {
		s = s[:patternTruncateLen]
	}
	return s
}
