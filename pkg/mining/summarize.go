package mining

import (
	"slices"
	"time"
)

// Summarize buckets scored patterns into categories and keeps the topN
// highest ranked; topN <= 0 keeps them all. It does not modify scored.
// Identical inputs yield an identical summary apart from GeneratedAt, which
// is set to now.
func Summarize(scored []ScoredPattern, classifier Classifier, topN int, now time.Time) WorkflowSummary {
	ranked := make([]ScoredPattern, len(scored))
	copy(ranked, scored)
	Rank(ranked)

	totals := make(map[string]float64)
	for i := range ranked {
		category := classifier.Classify(ranked[i].Sequence)
		if category == "" {
			category = CategoryOther
		}
		ranked[i].Category = category
		totals[category] += ranked[i].Score
	}

	top := ranked
	if topN > 0 && len(top) > topN {
		top = top[:topN]
	}

	return WorkflowSummary{
		CategoryTotals: totals,
		TopPatterns:    slices.Clip(top),
		GeneratedAt:    now,
	}
}
