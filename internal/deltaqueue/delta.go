// Package deltaqueue implements the durable, append/read/remove queue of
// proposed playbook changes. The Delta Queue is the sole writer of its
// queue file; it stores a pretty-printed JSON array, sorted on every
// write for deterministic diffs (spec.md Section 4.2).
package deltaqueue

// Op is the kind of change a Delta proposes against the bullet set.
type Op string

const (
	OpAdd       Op = "add"
	OpAmend     Op = "amend"
	OpDeprecate Op = "deprecate"
)

// Metadata carries a delta's provenance, gating signals, and counters.
type Metadata struct {
	Source           string   `json:"source"`
	Commit           string   `json:"commit,omitempty"`
	Files            []string `json:"files,omitempty"`
	Run              string   `json:"run,omitempty"`
	Confidence       float64  `json:"confidence"`
	HelpfulIncrement int      `json:"helpful,omitempty"`
	HarmfulIncrement int      `json:"harmful,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	Scope            []string `json:"scope,omitempty"`
}

// Delta is a proposed atomic change to the bullet set.
type Delta struct {
	ID        string   `json:"id"`
	Section   string   `json:"section"`
	Op        Op       `json:"op"`
	Content   string   `json:"content"`
	Metadata  Metadata `json:"metadata"`
	Evidence  string   `json:"evidence"`
	CreatedAt string   `json:"created_at"`
}

// minEvidenceLength is the minimum length, in characters, a delta's
// evidence field must have to be considered valid (spec.md Section 3).
const minEvidenceLength = 8

// Valid reports whether d satisfies the schema and threshold checks
// spec.md Section 3 defines for a valid delta, given the configured
// confidence floor. It does NOT check for duplicates against an existing
// bullet set — that is the Merger's responsibility.
func (d Delta) Valid(confidenceFloor float64) (bool, string) {
	if d.ID == "" || d.Section == "" || d.Content == "" {
		return false, "invalid"
	}
	switch d.Op {
	case OpAdd, OpAmend, OpDeprecate:
	default:
		return false, "invalid"
	}
	if d.Metadata.Confidence < 0 || d.Metadata.Confidence > 1 {
		return false, "invalid"
	}
	if d.Metadata.HelpfulIncrement < 0 || d.Metadata.HarmfulIncrement < 0 {
		return false, "invalid"
	}
	if d.Metadata.Confidence < confidenceFloor {
		return false, "low-confidence"
	}
	if len(d.Evidence) < minEvidenceLength {
		return false, "low-evidence"
	}
	return true, ""
}
