package mining

import (
	"slices"
	"strings"
)

// mostFrequentLimit bounds Profile.MostFrequent.
const mostFrequentLimit = 10

// SignatureCount is one row of the most-frequent table.
type SignatureCount struct {
	Signature string `json:"signature" yaml:"signature"`
	Count     int    `json:"count" yaml:"count"`
}

// Profile describes the analysed corpus as a whole.
type Profile struct {
	TotalCommands    int              `json:"total_commands" yaml:"total_commands"`
	UniqueSignatures int              `json:"unique_signatures" yaml:"unique_signatures"`
	Diversity        float64          `json:"diversity" yaml:"diversity"` // unique / total
	Sessions         int              `json:"sessions" yaml:"sessions"`
	DegradedCount    int              `json:"degraded_count" yaml:"degraded_count"`
	MostFrequent     []SignatureCount `json:"most_frequent" yaml:"most_frequent"`
	// HourlyDistribution counts commands per hour of day in the timestamps'
	// own location.
	HourlyDistribution [24]int        `json:"hourly_distribution" yaml:"hourly_distribution"`
	DailyDistribution  map[string]int `json:"daily_distribution" yaml:"daily_distribution"`
}

// BuildProfile summarises stream. Commands with a zero timestamp are left
// out of the time distributions.
func BuildProfile(stream []NormalizedCommand, sessions int) Profile {
	profile := Profile{
		TotalCommands:     len(stream),
		Sessions:          sessions,
		DailyDistribution: make(map[string]int),
	}

	counts := make(map[string]int)
	for _, cmd := range stream {
		counts[cmd.Signature]++
		if cmd.Degraded {
			profile.DegradedCount++
		}
		ts := cmd.Raw.Timestamp
		if ts.IsZero() {
			continue
		}
		profile.HourlyDistribution[ts.Hour()]++
		profile.DailyDistribution[ts.Weekday().String()]++
	}

	profile.UniqueSignatures = len(counts)
	if profile.TotalCommands > 0 {
		profile.Diversity = float64(profile.UniqueSignatures) / float64(profile.TotalCommands)
	}

	for signature, count := range counts {
		profile.MostFrequent = append(profile.MostFrequent, SignatureCount{Signature: signature, Count: count})
	}
	slices.SortFunc(profile.MostFrequent, func(a, b SignatureCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Signature, b.Signature)
	})
	if len(profile.MostFrequent) > mostFrequentLimit {
		profile.MostFrequent = profile.MostFrequent[:mostFrequentLimit]
	}

	return profile
}
