package curator

import (
	"fmt"
	"sort"

	"github.com/sjarmak/acebeads/internal/knowledge"
)

// Consolidate implements the post-write consolidation hook (spec.md
// Section 4.5): groups bullets by normalize(content), and for each group
// of >= 2 merges into a winner (highest helpful, tie-break lowest
// harmful), summing counters from the losers and annotating the winner
// with "Aggregated from <K> instances" before removing the losers.
func Consolidate(bullets []knowledge.Bullet) []knowledge.Bullet {
	groups := map[string][]knowledge.Bullet{}
	var order []string
	for _, b := range bullets {
		key := knowledge.Normalize(b.Content)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], b)
	}

	out := make([]knowledge.Bullet, 0, len(bullets))
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}

		winner := pickWinner(group)
		totalHelpful, totalHarmful := 0, 0
		for _, b := range group {
			totalHelpful += b.Helpful
			totalHarmful += b.Harmful
		}
		winner.Helpful = totalHelpful
		winner.Harmful = totalHarmful
		winner.AggregatedFrom = len(group)
		winner.Content = annotate(winner.Content, len(group))
		out = append(out, winner)
	}

	return out
}

func pickWinner(group []knowledge.Bullet) knowledge.Bullet {
	sorted := make([]knowledge.Bullet, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Helpful != sorted[j].Helpful {
			return sorted[i].Helpful > sorted[j].Helpful
		}
		return sorted[i].Harmful < sorted[j].Harmful
	})
	return sorted[0]
}

func annotate(content string, count int) string {
	suffix := fmt.Sprintf(" (Aggregated from %d instances)", count)
	return content + suffix
}
