package mining

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"thoreinstein.com/chronicle/pkg/config"
	chronerrors "thoreinstein.com/chronicle/pkg/errors"
)

const (
	// maxDegradedDiagnostics bounds per-command parse diagnostics; the rest
	// are reported as a single count.
	maxDegradedDiagnostics = 50

	// cancelCheckInterval is how many n-grams a worker indexes between
	// context checks.
	cancelCheckInterval = 1024
)

// Engine runs the full mining pipeline over a collected event list.
type Engine struct {
	cfg        *config.AnalysisConfig
	classifier Classifier
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger replaces the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock sets the clock used for WorkflowSummary.GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine for cfg. An invalid configuration is reported
// as a ConfigError. A nil classifier selects the built-in keyword table.
func NewEngine(cfg *config.AnalysisConfig, classifier Classifier, verbose bool, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, chronerrors.NewConfigError("analysis", "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if classifier == nil {
		classifier = DefaultKeywordClassifier()
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	e := &Engine{
		cfg:        cfg,
		classifier: classifier,
		logger:     slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RunStats are counters describing one run.
type RunStats struct {
	Events            int           `json:"events" yaml:"events"`
	Commands          int           `json:"commands" yaml:"commands"`
	Sessions          int           `json:"sessions" yaml:"sessions"`
	CompletedSessions int           `json:"completed_sessions" yaml:"completed_sessions"`
	Candidates        int           `json:"candidates" yaml:"candidates"`
	Patterns          int           `json:"patterns" yaml:"patterns"`
	Duration          time.Duration `json:"duration" yaml:"duration"`
}

// Result is the outcome of Engine.Run.
type Result struct {
	Summary     WorkflowSummary
	Catalogue   Catalogue
	Status      Status
	Diagnostics []Diagnostic
	Stats       RunStats
}

// Partial reports whether the run stopped before every session was
// aggregated.
func (r *Result) Partial() bool {
	return r.Status == StatusPartial
}

// Run mines events, which must be ordered by (SessionID, Timestamp).
//
// Sessions are aggregated concurrently. When ctx is cancelled or the
// configured timeout expires, no further sessions are started, sessions in
// flight are discarded, and the summary is built from the sessions that
// completed; the result then carries StatusPartial. Run only returns an
// error for inconsistent corpus statistics.
func (e *Engine) Run(ctx context.Context, events []RawEvent) (*Result, error) {
	started := time.Now()

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	result := &Result{Status: StatusComplete}
	result.Stats.Events = len(events)

	stream := e.normalize(events, result)
	result.Stats.Commands = len(stream)

	sessions := Sessions(stream, IdleBoundary(e.cfg.SessionIdleThreshold))
	result.Stats.Sessions = len(sessions)
	e.logger.Debug("normalized history",
		"events", len(events),
		"commands", len(stream),
		"sessions", len(sessions))

	arenas := e.aggregateSessions(ctx, sessions)

	completed := 0
	for _, arena := range arenas {
		if arena != nil {
			completed++
		}
	}
	result.Stats.CompletedSessions = completed

	if completed < len(sessions) {
		result.Status = StatusPartial
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Kind: DiagnosticPartialResult,
			Message: fmt.Sprintf("analysis stopped after %d of %d sessions: %v",
				completed, len(sessions), context.Cause(ctx)),
		})
		e.logger.Warn("returning partial result",
			"completed_sessions", completed,
			"sessions", len(sessions))
	}

	merged := Merge(arenas...)
	result.Stats.Candidates = merged.Len()

	result.Catalogue = merged.Finalize(e.cfg.MinSupport)
	result.Stats.Patterns = len(result.Catalogue)

	stats := NewCorpusStats(result.Catalogue, completed, e.cfg.CommandCost)
	scored, err := ScoreAll(result.Catalogue, stats, e.cfg.Weights)
	if err != nil {
		return nil, chronerrors.Wrap(err, "failed to score patterns")
	}

	result.Summary = Summarize(scored, e.classifier, e.cfg.TopN, e.now())
	result.Summary.Suggestions = Suggest(result.Summary.TopPatterns, stream)
	result.Summary.Profile = BuildProfile(stream, len(sessions))

	result.Stats.Duration = time.Since(started)
	e.logger.Debug("analysis finished",
		"status", result.Status,
		"candidates", result.Stats.Candidates,
		"patterns", result.Stats.Patterns,
		"duration", result.Stats.Duration)

	return result, nil
}

func (e *Engine) normalize(events []RawEvent, result *Result) []NormalizedCommand {
	normalizer := NewNormalizer(NormalizeOptions{SubcommandTools: e.cfg.SubcommandTools})

	stream := make([]NormalizedCommand, 0, len(events))
	degraded := 0
	for _, ev := range events {
		cmd, ok := normalizer.Normalize(ev)
		if !ok {
			continue
		}
		if cmd.Degraded {
			degraded++
			if degraded <= maxDegradedDiagnostics {
				result.Diagnostics = append(result.Diagnostics, Diagnostic{
					Kind:    DiagnosticDegradedParse,
					Message: "command could not be parsed as shell syntax; split on whitespace",
					Text:    ev.Text,
				})
			}
		}
		stream = append(stream, cmd)
	}

	if degraded > maxDegradedDiagnostics {
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Kind:    DiagnosticDegradedParse,
			Message: fmt.Sprintf("%d more commands were split on whitespace", degraded-maxDegradedDiagnostics),
		})
	}
	if degraded > 0 {
		e.logger.Debug("degraded parses", "count", degraded)
	}
	return stream
}

// aggregateSessions indexes and counts each session on a bounded worker
// pool. The returned slice is parallel to sessions; an entry is nil when the
// session did not complete before ctx was done.
func (e *Engine) aggregateSessions(ctx context.Context, sessions []Session) []*Aggregator {
	arenas := make([]*Aggregator, len(sessions))

	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for i, session := range sessions {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			arenas[i] = aggregateSession(ctx, session, e.cfg.MaxPatternLength)
			return nil
		})
	}
	// Workers never fail; Wait only joins them.
	_ = g.Wait()

	return arenas
}

// aggregateSession returns nil if ctx is done before the session is fully
// counted.
func aggregateSession(ctx context.Context, session Session, maxLen int) *Aggregator {
	if ctx.Err() != nil {
		return nil
	}

	arena := NewAggregator()
	n := 0
	for ng := range session.Ngrams(maxLen) {
		arena.Add(ng)
		n++
		if n%cancelCheckInterval == 0 && ctx.Err() != nil {
			return nil
		}
	}
	return arena
}
