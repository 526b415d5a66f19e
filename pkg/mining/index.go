package mining

import (
	"fmt"
	"iter"
	"time"
)

// SessionBoundary reports whether next starts a new logical session after
// prev. The stream is always split where the raw session id changes; a
// boundary only adds further splits.
type SessionBoundary func(prev, next NormalizedCommand) bool

// IdleBoundary splits a session when the gap between two consecutive
// commands exceeds threshold. A zero threshold never splits.
func IdleBoundary(threshold time.Duration) SessionBoundary {
	return func(prev, next NormalizedCommand) bool {
		if threshold <= 0 {
			return false
		}
		return next.Raw.Timestamp.Sub(prev.Raw.Timestamp) > threshold
	}
}

// Session is a contiguous run of commands that belong together. Offset is
// the position of the first command in the original stream.
type Session struct {
	ID       string
	Commands []NormalizedCommand
	Offset   int
}

// Sessions partitions stream into logical sessions. The first segment of a
// raw session keeps its id; later segments split off by boundary are
// suffixed "#1", "#2" and so on.
func Sessions(stream []NormalizedCommand, boundary SessionBoundary) []Session {
	if len(stream) == 0 {
		return nil
	}

	segments := make(map[string]int)
	var sessions []Session

	start := 0
	for i := 1; i <= len(stream); i++ {
		if i < len(stream) && !splits(stream[i-1], stream[i], boundary) {
			continue
		}

		raw := stream[start].Raw.SessionID
		id := raw
		if n := segments[raw]; n > 0 {
			id = fmt.Sprintf("%s#%d", raw, n)
		}
		segments[raw]++

		sessions = append(sessions, Session{
			ID:       id,
			Commands: stream[start:i],
			Offset:   start,
		})
		start = i
	}

	return sessions
}

func splits(prev, next NormalizedCommand, boundary SessionBoundary) bool {
	if prev.Raw.SessionID != next.Raw.SessionID {
		return true
	}
	return boundary != nil && boundary(prev, next)
}

// Ngrams yields every window of length 1..maxLen inside the session,
// ordered by start position and then by increasing length. StartIndex is
// the position in the original stream.
func (s Session) Ngrams(maxLen int) iter.Seq[Ngram] {
	return func(yield func(Ngram) bool) {
		if maxLen <= 0 {
			return
		}
		for i := range s.Commands {
			for l := 1; l <= maxLen && i+l <= len(s.Commands); l++ {
				seq := make([]string, l)
				for j := range l {
					seq[j] = s.Commands[i+j].Signature
				}
				ng := Ngram{
					Sequence:   seq,
					StartIndex: s.Offset + i,
					SessionID:  s.ID,
					Timestamp:  s.Commands[i].Raw.Timestamp,
				}
				if !yield(ng) {
					return
				}
			}
		}
	}
}

// Index lazily enumerates the n-grams of stream up to length maxLen. No
// n-gram crosses a session boundary.
func Index(stream []NormalizedCommand, maxLen int, boundary SessionBoundary) iter.Seq[Ngram] {
	return func(yield func(Ngram) bool) {
		for _, session := range Sessions(stream, boundary) {
			for ng := range session.Ngrams(maxLen) {
				if !yield(ng) {
					return
				}
			}
		}
	}
}
