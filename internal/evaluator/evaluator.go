// Package evaluator scores a playbook and decides whether a candidate
// should replace the current one before it is committed (spec.md
// Section 4.6). The evaluator holds no state of its own; every function
// here is a pure computation over a bullet slice.
package evaluator

import (
	"sort"

	"github.com/sjarmak/acebeads/internal/knowledge"
)

// Metrics is the set of aggregate measurements the Evaluator computes
// over one playbook's bullets.
type Metrics struct {
	TotalBullets int
	AvgHelpful   float64
	AvgHarmful   float64
	NetScore     int
	BySection    map[string]int
	Top5         []knowledge.Bullet
	Bottom5      []knowledge.Bullet
}

// Compute derives Metrics from a bullet slice.
func Compute(bullets []knowledge.Bullet) Metrics {
	m := Metrics{
		TotalBullets: len(bullets),
		BySection:    map[string]int{},
	}
	if len(bullets) == 0 {
		return m
	}

	var helpful, harmful, net int
	for _, b := range bullets {
		helpful += b.Helpful
		harmful += b.Harmful
		net += b.Score()
		m.BySection[b.Section]++
	}

	m.AvgHelpful = float64(helpful) / float64(len(bullets))
	m.AvgHarmful = float64(harmful) / float64(len(bullets))
	m.NetScore = net

	byScore := make([]knowledge.Bullet, len(bullets))
	copy(byScore, bullets)
	sort.SliceStable(byScore, func(i, j int) bool {
		return byScore[i].Score() > byScore[j].Score()
	})

	m.Top5 = firstN(byScore, 5)
	m.Bottom5 = lastN(byScore, 5)

	return m
}

func firstN(bullets []knowledge.Bullet, n int) []knowledge.Bullet {
	if len(bullets) < n {
		n = len(bullets)
	}
	out := make([]knowledge.Bullet, n)
	copy(out, bullets[:n])
	return out
}

func lastN(bullets []knowledge.Bullet, n int) []knowledge.Bullet {
	if len(bullets) < n {
		n = len(bullets)
	}
	out := make([]knowledge.Bullet, n)
	copy(out, bullets[len(bullets)-n:])
	return out
}

// Accept implements the acceptance predicate from spec.md Section 4.6:
// candidate replaces current iff candidate.net_score > current.net_score,
// OR net_score tied and candidate.avg_helpful > current.avg_helpful, OR
// candidate.total_bullets > current.total_bullets AND candidate.avg_helpful
// >= current.avg_helpful. Otherwise the current playbook is preserved.
func Accept(current, candidate Metrics) bool {
	if candidate.NetScore > current.NetScore {
		return true
	}
	if candidate.NetScore == current.NetScore && candidate.AvgHelpful > current.AvgHelpful {
		return true
	}
	if candidate.TotalBullets > current.TotalBullets && candidate.AvgHelpful >= current.AvgHelpful {
		return true
	}
	return false
}

// defaultPruneThreshold is the score floor below which a bullet is
// dropped by Prune (spec.md Section 4.6).
const defaultPruneThreshold = -3

// Prune deletes every bullet whose helpful-harmful score is below
// threshold (or defaultPruneThreshold when threshold is 0).
func Prune(bullets []knowledge.Bullet, threshold int) []knowledge.Bullet {
	if threshold == 0 {
		threshold = defaultPruneThreshold
	}
	var out []knowledge.Bullet
	for _, b := range bullets {
		if b.Score() < threshold {
			continue
		}
		out = append(out, b)
	}
	return out
}
