package mining

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// corpus lays sessions out one hour apart in a single stream.
func corpus(sessions ...[]string) []NormalizedCommand {
	var stream []NormalizedCommand
	for i, sigs := range sessions {
		id := fmt.Sprintf("s%02d", i)
		stream = append(stream, commands(id, baseTime.Add(time.Duration(i)*time.Hour), 10*time.Second, sigs...)...)
	}
	return stream
}

func findPattern(c Catalogue, sequence ...string) *Pattern {
	p, ok := c[PatternID(sequence)]
	if !ok {
		return nil
	}
	return p
}

func TestAggregate_AbsorbsEqualSupportSubPatterns(t *testing.T) {
	var sessions [][]string
	for range 5 {
		sessions = append(sessions, []string{"a", "b", "c"})
	}

	catalogue := Aggregate(Index(corpus(sessions...), 3, nil), 2)

	require.Len(t, catalogue, 1)
	abc := findPattern(catalogue, "a", "b", "c")
	require.NotNil(t, abc)
	assert.Equal(t, 5, abc.SupportCount)
	assert.Nil(t, findPattern(catalogue, "a", "b"))
	assert.Nil(t, findPattern(catalogue, "b", "c"))
}

func TestAggregate_KeepsIndependentlyFrequentSubPattern(t *testing.T) {
	var sessions [][]string
	for range 5 {
		sessions = append(sessions, []string{"a", "b", "c"})
	}
	for i := range 3 {
		sessions = append(sessions, []string{"a", "b", fmt.Sprintf("z%d", i)})
	}

	catalogue := Aggregate(Index(corpus(sessions...), 3, nil), 2)

	abc := findPattern(catalogue, "a", "b", "c")
	require.NotNil(t, abc)
	assert.Equal(t, 5, abc.SupportCount)

	ab := findPattern(catalogue, "a", "b")
	require.NotNil(t, ab)
	assert.Equal(t, 8, ab.SupportCount)

	// [a] has the same support as [a b] and is explained by it
	assert.Nil(t, findPattern(catalogue, "a"))
}

func TestAggregate_MinimumSupport(t *testing.T) {
	stream := corpus(
		[]string{"x", "once"},
		[]string{"x", "y"},
	)

	catalogue := Aggregate(Index(stream, 2, nil), 2)

	assert.Nil(t, findPattern(catalogue, "once"))
	assert.Nil(t, findPattern(catalogue, "x", "y"))
	x := findPattern(catalogue, "x")
	require.NotNil(t, x)
	assert.Equal(t, 2, x.SupportCount)
}

func TestAggregate_SupportCountMatchesOccurrences(t *testing.T) {
	stream := corpus(
		[]string{"a", "b", "a", "b"},
		[]string{"b", "a"},
	)

	catalogue := Aggregate(Index(stream, 2, nil), 1)

	for _, p := range catalogue {
		assert.Equal(t, len(p.Occurrences), p.SupportCount, "pattern %s", p.String())
		seen := make(map[occurrenceKey]bool)
		for _, o := range p.Occurrences {
			key := occurrenceKey{o.SessionID, o.StartIndex}
			assert.False(t, seen[key], "duplicate occurrence %v in %s", key, p.String())
			seen[key] = true
		}
	}

	ab := findPattern(catalogue, "a", "b")
	require.NotNil(t, ab)
	assert.Equal(t, 2, ab.SupportCount)
}

func TestMerge_MatchesSingleArena(t *testing.T) {
	stream := corpus(
		[]string{"a", "b", "c"},
		[]string{"a", "b"},
		[]string{"c", "a", "b", "c"},
	)
	sessions := Sessions(stream, nil)

	single := NewAggregator()
	single.AddAll(Index(stream, 3, nil))

	arenas := make([]*Aggregator, len(sessions))
	for i, s := range sessions {
		arenas[i] = NewAggregator()
		arenas[i].AddAll(s.Ngrams(3))
	}

	forward := Merge(arenas...)
	backward := Merge(arenas[2], arenas[1], nil, arenas[0])

	assert.Equal(t, single.Finalize(2), forward.Finalize(2))
	assert.Equal(t, forward.Finalize(2), backward.Finalize(2))
	assert.Equal(t, single.Len(), forward.Len())
}

func TestMerge_DoesNotModifyInputs(t *testing.T) {
	a := NewAggregator()
	a.Add(Ngram{Sequence: []string{"x"}, StartIndex: 3, SessionID: "s1"})
	b := NewAggregator()
	b.Add(Ngram{Sequence: []string{"x"}, StartIndex: 1, SessionID: "s0"})

	merged := Merge(a, b)

	assert.Equal(t, 1, a.patterns[sequenceKey([]string{"x"})].SupportCount)
	p := merged.patterns[sequenceKey([]string{"x"})]
	require.Len(t, p.Occurrences, 2)
	assert.Equal(t, 1, p.Occurrences[0].StartIndex)
	assert.Equal(t, 3, p.Occurrences[1].StartIndex)
}

func TestPatternID(t *testing.T) {
	id := PatternID([]string{"git add", "git push"})
	assert.Len(t, id, 16)
	assert.Equal(t, id, PatternID([]string{"git add", "git push"}))
	assert.NotEqual(t, id, PatternID([]string{"git add git push"}))
}

func TestCatalogue_Sorted(t *testing.T) {
	catalogue := Aggregate(Index(corpus([]string{"a", "b"}, []string{"a", "b"}), 1, nil), 1)

	sorted := catalogue.Sorted()
	require.Len(t, sorted, 2)
	assert.Less(t, sorted[0].ID, sorted[1].ID)
}
