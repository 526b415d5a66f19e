package mining

import (
	"fmt"
	"iter"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// PatternID returns the stable identifier of a signature sequence.
func PatternID(sequence []string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(sequenceKey(sequence)))
}

// Catalogue maps pattern id to pattern.
type Catalogue map[string]*Pattern

// Sorted returns the patterns ordered by id.
func (c Catalogue) Sorted() []*Pattern {
	out := make([]*Pattern, 0, len(c))
	for _, p := range c {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Pattern) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

// Aggregator counts n-grams into patterns. Each Aggregator is an arena owned
// by a single goroutine; arenas are combined with Merge.
type Aggregator struct {
	patterns map[string]*Pattern // keyed by sequenceKey
}

// NewAggregator creates an empty arena.
func NewAggregator() *Aggregator {
	return &Aggregator{patterns: make(map[string]*Pattern)}
}

// Add records one occurrence of ng.
func (a *Aggregator) Add(ng Ngram) {
	key := sequenceKey(ng.Sequence)
	p, ok := a.patterns[key]
	if !ok {
		p = &Pattern{
			ID:       PatternID(ng.Sequence),
			Sequence: slices.Clone(ng.Sequence),
		}
		a.patterns[key] = p
	}
	p.Occurrences = append(p.Occurrences, Occurrence{
		SessionID:  ng.SessionID,
		StartIndex: ng.StartIndex,
		Timestamp:  ng.Timestamp,
	})
	p.SupportCount = len(p.Occurrences)
}

// AddAll records every n-gram of seq.
func (a *Aggregator) AddAll(seq iter.Seq[Ngram]) {
	for ng := range seq {
		a.Add(ng)
	}
}

// Len returns the number of distinct sequences seen.
func (a *Aggregator) Len() int {
	return len(a.patterns)
}

// Merge combines arenas into a new one. Inputs are not modified. The result
// does not depend on argument order.
func Merge(arenas ...*Aggregator) *Aggregator {
	merged := NewAggregator()
	for _, arena := range arenas {
		if arena == nil {
			continue
		}
		for key, p := range arena.patterns {
			dst, ok := merged.patterns[key]
			if !ok {
				dst = &Pattern{ID: p.ID, Sequence: slices.Clone(p.Sequence)}
				merged.patterns[key] = dst
			}
			dst.Occurrences = append(dst.Occurrences, p.Occurrences...)
		}
	}
	for _, p := range merged.patterns {
		slices.SortFunc(p.Occurrences, compareOccurrences)
		p.SupportCount = len(p.Occurrences)
	}
	return merged
}

func compareOccurrences(a, b Occurrence) int {
	if a.StartIndex != b.StartIndex {
		return a.StartIndex - b.StartIndex
	}
	if a.SessionID < b.SessionID {
		return -1
	}
	if a.SessionID > b.SessionID {
		return 1
	}
	return 0
}

// Aggregate counts seq and finalizes the result in one step.
func Aggregate(seq iter.Seq[Ngram], minSupport int) Catalogue {
	a := NewAggregator()
	a.AddAll(seq)
	return a.Finalize(minSupport)
}

// Finalize applies the minimum-support filter and then absorption, and
// returns the resulting catalogue. The arena is left untouched.
//
// A pattern of length L is absorbed by a pattern of length L+1 that starts
// with it (offset 0) or ends with it (offset 1) when both have the same
// support and every occurrence of the longer pattern lines up with an
// occurrence of the shorter one at that offset. All absorption decisions are
// taken against the filtered set, so chains collapse onto the longest
// pattern.
func (a *Aggregator) Finalize(minSupport int) Catalogue {
	candidates := make(map[string]*Pattern, len(a.patterns))
	for key, p := range a.patterns {
		if p.SupportCount >= minSupport {
			candidates[key] = p
		}
	}

	occurrenceSets := make(map[string]map[occurrenceKey]struct{})
	absorbed := make(map[string]bool)

	for _, super := range candidates {
		if super.Len() < 2 {
			continue
		}
		for offset, sub := range [][]string{super.Sequence[:super.Len()-1], super.Sequence[1:]} {
			subKey := sequenceKey(sub)
			if absorbed[subKey] {
				continue
			}
			p, ok := candidates[subKey]
			if !ok || p.SupportCount != super.SupportCount {
				continue
			}

			set, ok := occurrenceSets[subKey]
			if !ok {
				set = occurrenceSet(p)
				occurrenceSets[subKey] = set
			}
			if coversAtOffset(super, set, offset) {
				absorbed[subKey] = true
			}
		}
	}

	catalogue := make(Catalogue, len(candidates)-len(absorbed))
	for key, p := range candidates {
		if absorbed[key] {
			continue
		}
		catalogue[p.ID] = clonePattern(p)
	}
	return catalogue
}

type occurrenceKey struct {
	session string
	start   int
}

func occurrenceSet(p *Pattern) map[occurrenceKey]struct{} {
	set := make(map[occurrenceKey]struct{}, len(p.Occurrences))
	for _, o := range p.Occurrences {
		set[occurrenceKey{o.SessionID, o.StartIndex}] = struct{}{}
	}
	return set
}

func coversAtOffset(super *Pattern, set map[occurrenceKey]struct{}, offset int) bool {
	for _, o := range super.Occurrences {
		if _, ok := set[occurrenceKey{o.SessionID, o.StartIndex + offset}]; !ok {
			return false
		}
	}
	return true
}

func clonePattern(p *Pattern) *Pattern {
	return &Pattern{
		ID:           p.ID,
		Sequence:     slices.Clone(p.Sequence),
		Occurrences:  slices.Clone(p.Occurrences),
		SupportCount: p.SupportCount,
	}
}
