package mining

import (
	"math"
	"slices"
	"strings"
	"time"

	"thoreinstein.com/chronicle/pkg/config"
	chronerrors "thoreinstein.com/chronicle/pkg/errors"
)

// neutralRegularity is used when a pattern has too few occurrences to
// measure spacing.
const neutralRegularity = 0.5

// CorpusStats are the corpus-wide inputs to scoring.
type CorpusStats struct {
	TotalSessions int
	PatternCount  int
	CommandCost   time.Duration
	// MaxTimeSaved is the largest cost*length*support in the catalogue, in
	// seconds.
	MaxTimeSaved float64
}

// NewCorpusStats computes the corpus statistics for catalogue.
func NewCorpusStats(catalogue Catalogue, totalSessions int, commandCost time.Duration) CorpusStats {
	stats := CorpusStats{
		TotalSessions: totalSessions,
		PatternCount:  len(catalogue),
		CommandCost:   commandCost,
	}
	for _, p := range catalogue {
		stats.MaxTimeSaved = math.Max(stats.MaxTimeSaved, rawTimeSaved(p, commandCost))
	}
	return stats
}

func rawTimeSaved(p *Pattern, cost time.Duration) float64 {
	return cost.Seconds() * float64(p.Len()) * float64(p.SupportCount)
}

// Score computes the automation score of p. It fails with a
// CorpusStatsError when no sessions were observed.
func Score(p *Pattern, stats CorpusStats, weights config.ScoreWeights) (ScoredPattern, error) {
	if stats.TotalSessions <= 0 {
		return ScoredPattern{}, chronerrors.NewCorpusStatsError(stats.TotalSessions, stats.PatternCount,
			"cannot score patterns without any observed session")
	}

	c := Components{
		Frequency:    math.Min(1, float64(p.SupportCount)/float64(stats.TotalSessions)),
		LengthWeight: lengthWeight(p.Len()),
		Regularity:   regularity(p.Occurrences),
	}
	if stats.MaxTimeSaved > 0 {
		c.TimeSavedEstimate = math.Min(1, rawTimeSaved(p, stats.CommandCost)/stats.MaxTimeSaved)
	}

	score := weights.Frequency*c.Frequency +
		weights.Length*c.LengthWeight +
		weights.TimeSaved*c.TimeSavedEstimate +
		weights.Regularity*c.Regularity

	return ScoredPattern{
		Pattern:    *p,
		Score:      math.Max(0, math.Min(1, score)),
		Components: c,
	}, nil
}

// ScoreAll scores every pattern in the catalogue and returns them ranked.
func ScoreAll(catalogue Catalogue, stats CorpusStats, weights config.ScoreWeights) ([]ScoredPattern, error) {
	if len(catalogue) > 0 && stats.TotalSessions <= 0 {
		return nil, chronerrors.NewCorpusStatsError(stats.TotalSessions, len(catalogue),
			"patterns exist but no session was observed")
	}

	scored := make([]ScoredPattern, 0, len(catalogue))
	for _, p := range catalogue.Sorted() {
		sp, err := Score(p, stats, weights)
		if err != nil {
			return nil, err
		}
		scored = append(scored, sp)
	}
	Rank(scored)
	return scored, nil
}

// Rank sorts patterns by score desc, support desc, length desc, id asc.
func Rank(scored []ScoredPattern) {
	slices.SortFunc(scored, compareScored)
}

func compareScored(a, b ScoredPattern) int {
	switch {
	case a.Score != b.Score:
		if a.Score > b.Score {
			return -1
		}
		return 1
	case a.SupportCount != b.SupportCount:
		return b.SupportCount - a.SupportCount
	case a.Len() != b.Len():
		return b.Len() - a.Len()
	default:
		return strings.Compare(a.ID, b.ID)
	}
}

func lengthWeight(n int) float64 {
	if n <= 0 {
		return 0
	}
	return 1 - 1/float64(n)
}

// regularity is 1/(1+cv) of the gaps between consecutive occurrences, where
// cv is the coefficient of variation.
func regularity(occurrences []Occurrence) float64 {
	if len(occurrences) < 3 {
		return neutralRegularity
	}

	times := make([]int64, len(occurrences))
	for i, o := range occurrences {
		times[i] = o.Timestamp.UnixNano()
	}
	slices.Sort(times)

	gaps := make([]float64, len(times)-1)
	var sum float64
	for i := 1; i < len(times); i++ {
		gaps[i-1] = float64(times[i]-times[i-1]) / float64(time.Second)
		sum += gaps[i-1]
	}
	mean := sum / float64(len(gaps))
	if mean == 0 {
		return neutralRegularity
	}

	var variance float64
	for _, g := range gaps {
		d := g - mean
		variance += d * d
	}
	variance /= float64(len(gaps))

	cv := math.Sqrt(variance) / mean
	return 1 / (1 + cv)
}
