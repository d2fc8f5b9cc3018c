// Package merger implements the single entry point for deterministic
// application of deltas to a bullet set (spec.md Section 4.3). The
// output depends only on inputs, never on insertion history: re-running
// Merge on the same queue against the same playbook yields byte-identical
// playbooks once serialized.
package merger

import (
	"github.com/google/uuid"
	"github.com/sjarmak/acebeads/internal/deltaqueue"
	"github.com/sjarmak/acebeads/internal/knowledge"
)

// RejectReason classifies why a delta was not applied.
type RejectReason string

const (
	ReasonDuplicate     RejectReason = "duplicate"
	ReasonLowEvidence   RejectReason = "low-evidence"
	ReasonLowConfidence RejectReason = "low-confidence"
	ReasonInvalid       RejectReason = "invalid"
	ReasonHarmful       RejectReason = "harmful"
)

// Rejection records a single rejected delta and why.
type Rejection struct {
	DeltaID string
	Reason  RejectReason
}

// Options configures a merge run.
type Options struct {
	// ConfidenceFloor is the minimum metadata.confidence a delta must
	// carry to be considered valid.
	ConfidenceFloor float64
	// Now is not read by Merge: a new bullet's provenance CreatedAt is
	// copied from the delta's CreatedAt.
	Now func() string
}

// Merge applies incoming deltas to existing in input order, producing
// the new bullet set plus the ids that were accepted and the rejections
// that were not. See spec.md Section 4.3 for the algorithm.
func Merge(existing []knowledge.Bullet, incoming []deltaqueue.Delta, opts Options) ([]knowledge.Bullet, []string, []Rejection) {
	byHash := make(map[string]int, len(existing)) // hash -> index into `bullets`
	bullets := make([]knowledge.Bullet, len(existing))
	copy(bullets, existing)
	for i, b := range bullets {
		byHash[b.Hash()] = i
	}

	var accepted []string
	var rejected []Rejection

	for _, d := range incoming {
		if ok, reason := d.Valid(opts.ConfidenceFloor); !ok {
			rejected = append(rejected, Rejection{DeltaID: d.ID, Reason: RejectReason(reason)})
			continue
		}

		h := knowledge.Hash(d.Section, d.Content)

		switch d.Op {
		case deltaqueue.OpAdd:
			if _, exists := byHash[h]; exists {
				rejected = append(rejected, Rejection{DeltaID: d.ID, Reason: ReasonDuplicate})
				continue
			}
			nb := knowledge.Bullet{
				ID:      d.ID,
				Section: d.Section,
				Content: d.Content,
				Helpful: d.Metadata.HelpfulIncrement,
				Harmful: d.Metadata.HarmfulIncrement,
				Provenance: &knowledge.Provenance{
					DeltaID:   d.ID,
					SourceID:  d.Metadata.Source,
					CreatedAt: d.CreatedAt,
					Hash:      h,
				},
			}
			bullets = append(bullets, nb)
			byHash[h] = len(bullets) - 1
			accepted = append(accepted, d.ID)

		case deltaqueue.OpAmend:
			idx, exists := byHash[h]
			if !exists {
				rejected = append(rejected, Rejection{DeltaID: d.ID, Reason: ReasonInvalid})
				continue
			}
			b := bullets[idx]
			b.Content = d.Content
			b.Helpful += d.Metadata.HelpfulIncrement
			b.Harmful += d.Metadata.HarmfulIncrement
			b.Provenance = &knowledge.Provenance{
				DeltaID:   d.ID,
				SourceID:  d.Metadata.Source,
				CreatedAt: d.CreatedAt,
				Hash:      h,
			}
			bullets[idx] = b
			accepted = append(accepted, d.ID)

		case deltaqueue.OpDeprecate:
			idx, exists := byHash[h]
			if !exists {
				rejected = append(rejected, Rejection{DeltaID: d.ID, Reason: ReasonInvalid})
				continue
			}
			removeAt(&bullets, byHash, idx)
			accepted = append(accepted, d.ID)

		default:
			rejected = append(rejected, Rejection{DeltaID: d.ID, Reason: ReasonInvalid})
		}
	}

	filtered := bullets[:0:0]
	for _, b := range bullets {
		if b.Harmful <= b.Helpful {
			filtered = append(filtered, b)
		}
	}

	knowledge.SortCanonical(filtered)
	return filtered, accepted, rejected
}

// removeAt deletes the bullet at index idx and keeps byHash consistent
// for all bullets whose index shifts as a result.
func removeAt(bullets *[]knowledge.Bullet, byHash map[string]int, idx int) {
	b := *bullets
	removedHash := b[idx].Hash()
	delete(byHash, removedHash)

	*bullets = append(b[:idx], b[idx+1:]...)
	for h, i := range byHash {
		if i > idx {
			byHash[h] = i - 1
		}
	}
}

// NewID returns a fresh UUID string, used by callers (Curator, Reflector)
// constructing new deltas/insights ahead of a merge.
func NewID() string {
	return uuid.NewString()
}
