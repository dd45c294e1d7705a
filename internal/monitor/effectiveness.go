package monitor

import (
	"sort"

	"github.com/kalambet/vita/internal/storage"
)

// Rating boundaries for classifying past interventions. A score of exactly
// 2 lands in neither set: the type is neither boosted nor excluded. Keep
// the gap — neutrality at 2 is intended behavior, not an off-by-one.
const (
	effectiveScoreMin  = 3
	ineffectiveScoreLt = 2
	effectiveBoost     = 10
)

// FilterIssues re-ranks candidate issues using the user's rated intervention
// history. Types rated ineffective are dropped outright — exclusion dominates
// even when the same type also has effective ratings. Types rated effective
// get a flat priority boost. The result is sorted by adjusted score
// descending; ties keep detection order.
func FilterIssues(issues []Issue, history []storage.Intervention) []Issue {
	effective := make(map[string]bool)
	ineffective := make(map[string]bool)
	for _, iv := range history {
		if !iv.EffectivenessScore.Valid {
			continue
		}
		score := iv.EffectivenessScore.Int64
		if score >= effectiveScoreMin {
			effective[iv.InterventionType] = true
		}
		if score < ineffectiveScoreLt {
			ineffective[iv.InterventionType] = true
		}
	}

	filtered := make([]Issue, 0, len(issues))
	for _, issue := range issues {
		if ineffective[issue.Type] {
			continue
		}
		filtered = append(filtered, issue)
	}

	adjusted := func(i Issue) int {
		score := i.Priority
		if effective[i.Type] {
			score += effectiveBoost
		}
		return score
	}

	sort.SliceStable(filtered, func(a, b int) bool {
		return adjusted(filtered[a]) > adjusted(filtered[b])
	})
	return filtered
}
