package curator

import (
	"github.com/sjarmak/acebeads/internal/knowledge"
	"github.com/sjarmak/acebeads/internal/reflector"
)

// CountersFromFeedback sums helpful/harmful feedback per bullet id from a
// closed trace's bullet feedback list, producing the increment map the
// Knowledge Store's counter update consumes (spec.md Section 4.5,
// "Bullet-counter update"). Bullets missing from the live playbook are
// tolerated as a no-op by the Store itself.
func CountersFromFeedback(feedback []reflector.BulletFeedback) map[string]knowledge.CounterDelta {
	deltas := map[string]knowledge.CounterDelta{}
	for _, f := range feedback {
		d := deltas[f.BulletID]
		switch f.Feedback {
		case reflector.FeedbackHelpful:
			d.HelpfulDelta++
		case reflector.FeedbackHarmful:
			d.HarmfulDelta++
		}
		deltas[f.BulletID] = d
	}
	return deltas
}
