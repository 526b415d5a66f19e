package mining

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// commands builds a session of already-normalized commands spaced step
// apart, starting at start.
func commands(session string, start time.Time, step time.Duration, signatures ...string) []NormalizedCommand {
	out := make([]NormalizedCommand, len(signatures))
	for i, sig := range signatures {
		out[i] = NormalizedCommand{
			Signature: sig,
			Raw: RawEvent{
				Timestamp: start.Add(time.Duration(i) * step),
				Shell:     ShellZsh,
				Text:      sig,
				SessionID: session,
			},
		}
	}
	return out
}

func collect(stream []NormalizedCommand, maxLen int, boundary SessionBoundary) []Ngram {
	return slices.Collect(Index(stream, maxLen, boundary))
}

func TestIndex_WindowsAndOrdering(t *testing.T) {
	stream := commands("s1", baseTime, time.Second, "a", "b", "c")

	got := collect(stream, 2, nil)

	want := [][]string{
		{"a"}, {"a", "b"},
		{"b"}, {"b", "c"},
		{"c"},
	}
	require.Len(t, got, len(want))
	for i, ng := range got {
		assert.Equal(t, want[i], ng.Sequence)
		assert.Equal(t, "s1", ng.SessionID)
	}

	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		assert.LessOrEqual(t, prev.StartIndex, cur.StartIndex)
		if prev.StartIndex == cur.StartIndex {
			assert.Less(t, len(prev.Sequence), len(cur.Sequence))
		}
	}
}

func TestIndex_NoPaddingBeyondSession(t *testing.T) {
	stream := commands("s1", baseTime, time.Second, "a", "b")

	got := collect(stream, 5, nil)

	assert.Len(t, got, 3) // a, ab, b
	for _, ng := range got {
		assert.LessOrEqual(t, len(ng.Sequence), 2)
	}
}

func TestIndex_SessionIsolation(t *testing.T) {
	var stream []NormalizedCommand
	stream = append(stream, commands("s1", baseTime, time.Minute, "a", "b")...)
	stream = append(stream, commands("s2", baseTime, time.Minute, "c", "d")...)
	// Same raw session, resumed after a two hour gap
	stream = append(stream, commands("s2", baseTime.Add(2*time.Hour), time.Minute, "e", "f")...)

	boundary := IdleBoundary(30 * time.Minute)
	got := collect(stream, 3, boundary)

	sessionOf := make(map[int]string)
	for i, s := range Sessions(stream, boundary) {
		for j := range s.Commands {
			sessionOf[s.Offset+j] = s.ID
		}
		assert.Equal(t, []string{"s1", "s2", "s2#1"}[i], s.ID)
	}

	for _, ng := range got {
		for j := range ng.Sequence {
			assert.Equal(t, ng.SessionID, sessionOf[ng.StartIndex+j],
				"n-gram %v starting at %d crosses a session boundary", ng.Sequence, ng.StartIndex)
		}
	}
}

func TestIndex_StartIndexIsStreamPosition(t *testing.T) {
	var stream []NormalizedCommand
	stream = append(stream, commands("s1", baseTime, time.Second, "a", "b")...)
	stream = append(stream, commands("s2", baseTime, time.Second, "c")...)

	got := collect(stream, 1, nil)

	require.Len(t, got, 3)
	assert.Equal(t, 0, got[0].StartIndex)
	assert.Equal(t, 1, got[1].StartIndex)
	assert.Equal(t, 2, got[2].StartIndex)
	assert.Equal(t, "s2", got[2].SessionID)
	assert.Equal(t, stream[2].Raw.Timestamp, got[2].Timestamp)
}

func TestIndex_StopsEarly(t *testing.T) {
	stream := commands("s1", baseTime, time.Second, "a", "b", "c", "d")

	n := 0
	for range Index(stream, 3, nil) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestIdleBoundary(t *testing.T) {
	prev := NormalizedCommand{Raw: RawEvent{Timestamp: baseTime}}
	near := NormalizedCommand{Raw: RawEvent{Timestamp: baseTime.Add(10 * time.Minute)}}
	far := NormalizedCommand{Raw: RawEvent{Timestamp: baseTime.Add(45 * time.Minute)}}

	boundary := IdleBoundary(30 * time.Minute)
	assert.False(t, boundary(prev, near))
	assert.True(t, boundary(prev, far))

	assert.False(t, IdleBoundary(0)(prev, far))
}

func TestSessions_Empty(t *testing.T) {
	assert.Empty(t, Sessions(nil, nil))
	assert.Empty(t, collect(nil, 3, nil))
}
