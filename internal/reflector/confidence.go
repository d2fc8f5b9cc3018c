package reflector

// ConfidenceInputs are the pure-function inputs to the confidence model
// (spec.md Section 4.4). No learning, no state — the same inputs always
// produce the same confidence.
type ConfidenceInputs struct {
	// Frequency is how many times the pattern was observed.
	Frequency int
	// BeadCount is the number of distinct work-items affected.
	BeadCount int
	// FileCount is the number of distinct files affected.
	FileCount int
	// AllSeverityError is true when every NormalizedError in the
	// pattern's evidence has Severity == "error" (no warnings mixed in).
	AllSeverityError bool
	// ScopeMatch is true when the touched files matched one of the
	// configured hot-path globs (see MatchesScope), earning a small
	// bonus for recurring failures in high-traffic paths.
	ScopeMatch bool
}

// baseConfidenceCap bounds the frequency-only contribution before bonuses,
// leaving headroom for the bonuses below to reach 1.0.
const baseConfidenceCap = 0.8

// Confidence computes a deterministic confidence score in [0,1] from
// ConfidenceInputs, and whether the result clears the online-eligible
// bar (spec.md Section 4.4: online_eligible = confidence >= 0.8).
func Confidence(in ConfidenceInputs) (confidence float64, onlineEligible bool) {
	base := 0.3 + 0.1*float64(in.Frequency-1)
	if base > baseConfidenceCap {
		base = baseConfidenceCap
	}
	if base < 0 {
		base = 0
	}

	score := base

	if in.BeadCount >= 3 {
		score += 0.2
	}
	if in.BeadCount >= 5 {
		score += 0.1
	}

	if in.FileCount >= 3 {
		score += 0.1
	}

	if in.AllSeverityError {
		score += 0.1
	}

	if in.ScopeMatch {
		score += 0.1
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	return score, score >= 0.8
}
