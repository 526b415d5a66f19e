// Package mining turns a stream of shell commands into ranked, explainable
// automation opportunities.
//
// The pipeline runs in five stages, each feeding the next:
//  1. Normalize - raw command text to a structural signature
//  2. Index - sliding-window n-grams per session
//  3. Aggregate - count n-grams into patterns, absorb redundant sub-patterns
//  4. Score - automation score from frequency, length, time cost, regularity
//  5. Summarize - bucket scored patterns into categories and rank them
//
// Engine wires the stages together and runs per-session aggregation on a
// bounded worker pool.
package mining

import (
	"strings"
	"time"
)

// Shell identifies the shell a command was typed into.
type Shell string

const (
	ShellBash  Shell = "bash"
	ShellZsh   Shell = "zsh"
	ShellOther Shell = "other"
)

// ParseShell maps a shell name to a Shell, defaulting to ShellOther.
func ParseShell(name string) Shell {
	switch Shell(strings.ToLower(name)) {
	case ShellBash:
		return ShellBash
	case ShellZsh:
		return ShellZsh
	default:
		return ShellOther
	}
}

// RawEvent is one command as collected from shell history. RawEvents are
// expected in (SessionID, Timestamp) order.
type RawEvent struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Shell     Shell     `json:"shell" yaml:"shell"`
	Text      string    `json:"text" yaml:"text"`
	SessionID string    `json:"session_id" yaml:"session_id"`
}

// NormalizedCommand is a RawEvent reduced to its structural signature.
type NormalizedCommand struct {
	Signature string
	Raw       RawEvent
	// Literals holds the distinct argument values that were redacted from the
	// signature, sorted. Display only; never used for matching.
	Literals []string
	// Degraded marks a command that could not be parsed as shell syntax and
	// was split on whitespace instead.
	Degraded bool
}

// Ngram is a contiguous window of signatures inside one session.
type Ngram struct {
	Sequence   []string
	StartIndex int
	SessionID  string
	Timestamp  time.Time // time of the first command in the window
}

// Occurrence locates one appearance of a pattern.
type Occurrence struct {
	SessionID  string    `json:"session_id" yaml:"session_id"`
	StartIndex int       `json:"start_index" yaml:"start_index"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
}

// Pattern is a recurring signature sequence. SupportCount always equals
// len(Occurrences).
type Pattern struct {
	ID           string       `json:"id" yaml:"id"`
	Sequence     []string     `json:"sequence" yaml:"sequence"`
	Occurrences  []Occurrence `json:"occurrences" yaml:"occurrences"`
	SupportCount int          `json:"support_count" yaml:"support_count"`
}

// Len returns the number of commands in the pattern.
func (p *Pattern) Len() int {
	return len(p.Sequence)
}

// String renders the sequence the way it is shown to users.
func (p *Pattern) String() string {
	return strings.Join(p.Sequence, " → ")
}

// Components are the individual scorer inputs, each in [0,1].
type Components struct {
	Frequency         float64 `json:"frequency" yaml:"frequency"`
	LengthWeight      float64 `json:"length_weight" yaml:"length_weight"`
	TimeSavedEstimate float64 `json:"time_saved_estimate" yaml:"time_saved_estimate"`
	Regularity        float64 `json:"regularity" yaml:"regularity"`
}

// ScoredPattern is a Pattern with its automation score.
type ScoredPattern struct {
	Pattern    `yaml:",inline"`
	Score      float64    `json:"score" yaml:"score"`
	Components Components `json:"components" yaml:"components"`
	Category   string     `json:"category,omitempty" yaml:"category,omitempty"`
}

// WorkflowSummary is the result of one analysis run, handed to report and
// insight consumers.
type WorkflowSummary struct {
	CategoryTotals map[string]float64 `json:"category_totals" yaml:"category_totals"`
	TopPatterns    []ScoredPattern    `json:"top_patterns" yaml:"top_patterns"`
	Suggestions    []Suggestion       `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	Profile        Profile            `json:"profile" yaml:"profile"`
	GeneratedAt    time.Time          `json:"generated_at" yaml:"generated_at"`
}

// DominantCategory returns the category with the highest total, breaking
// ties by name. It returns "" for an empty summary.
func (s *WorkflowSummary) DominantCategory() string {
	best := ""
	bestTotal := -1.0
	for category, total := range s.CategoryTotals {
		if total > bestTotal || (total == bestTotal && category < best) {
			best, bestTotal = category, total
		}
	}
	return best
}

// Status reports whether a run finished or stopped early.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
)

// DiagnosticKind classifies non-fatal findings recorded during a run.
type DiagnosticKind string

const (
	DiagnosticDegradedParse DiagnosticKind = "degraded_parse"
	DiagnosticPartialResult DiagnosticKind = "partial_result"
)

// Diagnostic is a non-fatal finding attached to a run.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind" yaml:"kind"`
	Message string         `json:"message" yaml:"message"`
	Text    string         `json:"text,omitempty" yaml:"text,omitempty"`
}

// signatureSep joins sequences into map keys and hash input. It cannot
// appear in a signature because signatures are built from shell words.
const signatureSep = "\x1f"

func sequenceKey(seq []string) string {
	return strings.Join(seq, signatureSep)
}
