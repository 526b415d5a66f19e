package history

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"thoreinstein.com/chronicle/pkg/config"
	chronerrors "thoreinstein.com/chronicle/pkg/errors"
	"thoreinstein.com/chronicle/pkg/mining"
)

// CollectOptions narrows a collection run.
type CollectOptions struct {
	Since *time.Time
	Until *time.Time
}

// CollectStats describes what a collection run kept and dropped.
type CollectStats struct {
	Source     string
	Read       int
	Ignored    int
	Duplicates int
	Kept       int
}

// Collector turns a history source into mining.RawEvents ordered by
// (session, timestamp).
type Collector struct {
	cfg     *config.HistoryConfig
	ignore  []*regexp.Regexp
	logger  *slog.Logger
	verbose bool

	// LastStats holds the counters of the most recent Collect call.
	LastStats CollectStats
}

// CollectorOption customizes a Collector.
type CollectorOption func(*Collector)

// WithLogger replaces the collector's logger. The logger is shared with the
// database readers the collector opens.
func WithLogger(logger *slog.Logger) CollectorOption {
	return func(c *Collector) {
		c.logger = logger
	}
}

// NewCollector creates a collector. Invalid ignore patterns are reported as
// a ConfigError.
func NewCollector(cfg *config.HistoryConfig, verbose bool, opts ...CollectorOption) (*Collector, error) {
	ignore := make([]*regexp.Regexp, 0, len(cfg.IgnorePatterns))
	for _, pattern := range cfg.IgnorePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, chronerrors.NewConfigErrorWithCause("history.ignore_patterns",
				fmt.Sprintf("invalid pattern %q", pattern), err)
		}
		ignore = append(ignore, re)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	c := &Collector{
		cfg:     cfg,
		ignore:  ignore,
		logger:  slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
		verbose: verbose,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Collector) database() *DatabaseManager {
	dm := NewDatabaseManager(c.cfg.DatabasePath, c.verbose)
	dm.logger = c.logger
	return dm
}

// DetectSource resolves the configured source. For "auto" it prefers a
// history database, then the zsh, bash and fish history files in that
// order.
func (c *Collector) DetectSource() (string, error) {
	switch c.cfg.Source {
	case SourceHistdb, SourceAtuin, SourceZsh, SourceBash, SourceFish:
		return c.cfg.Source, nil
	case SourceAuto, "":
	default:
		return "", chronerrors.NewConfigError("history.source", "unknown source "+c.cfg.Source)
	}

	dm := c.database()
	if schema, err := dm.Schema(); err == nil {
		return sourceForSchema(schema), nil
	}
	if fileExists(c.cfg.ZshHistoryPath) {
		return SourceZsh, nil
	}
	if fileExists(c.cfg.BashHistoryPath) {
		return SourceBash, nil
	}
	if fileExists(c.cfg.FishHistoryPath) {
		return SourceFish, nil
	}

	return "", chronerrors.NewHistoryError("", "Detect", "no history source found")
}

// Collect reads the configured source, drops ignored commands and
// duplicates, and returns events ordered by (session, timestamp).
func (c *Collector) Collect(ctx context.Context, opts CollectOptions) ([]mining.RawEvent, error) {
	source, err := c.DetectSource()
	if err != nil {
		return nil, err
	}

	commands, err := c.read(ctx, source, opts)
	if err != nil {
		return nil, err
	}

	stats := CollectStats{Source: source, Read: len(commands)}
	events := c.toEvents(source, commands, opts, &stats)
	stats.Kept = len(events)
	c.LastStats = stats

	c.logger.Debug("collected history",
		"source", stats.Source,
		"read", stats.Read,
		"ignored", stats.Ignored,
		"duplicates", stats.Duplicates,
		"kept", stats.Kept)

	return events, nil
}

func (c *Collector) read(ctx context.Context, source string, opts CollectOptions) ([]Command, error) {
	switch source {
	case SourceHistdb, SourceAtuin:
		dm := c.database()
		schema, err := dm.Schema()
		if err != nil {
			return nil, err
		}
		if got := sourceForSchema(schema); got != source {
			return nil, chronerrors.NewHistoryError(source, "Detect",
				fmt.Sprintf("database at %s is a %s database", c.cfg.DatabasePath, schema))
		}
		// Ignored and duplicate commands are dropped after the query, so the
		// limit is applied again once they are gone.
		return dm.QueryCommandsContext(ctx, QueryOptions{Since: opts.Since, Until: opts.Until})
	case SourceZsh:
		return ReadHistoryFile(c.cfg.ZshHistoryPath, SourceZsh)
	case SourceBash:
		return ReadHistoryFile(c.cfg.BashHistoryPath, SourceBash)
	case SourceFish:
		return ReadHistoryFile(c.cfg.FishHistoryPath, SourceFish)
	default:
		return nil, chronerrors.NewConfigError("history.source", "unknown source "+source)
	}
}

type dedupKey struct {
	text   string
	minute int64
}

func (c *Collector) toEvents(source string, commands []Command, opts CollectOptions, stats *CollectStats) []mining.RawEvent {
	shell := shellForSource(source)

	// Oldest first so that the earliest of a set of duplicates is kept
	slices.SortStableFunc(commands, func(a, b Command) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	seen := make(map[dedupKey]bool)
	events := make([]mining.RawEvent, 0, len(commands))
	for _, cmd := range commands {
		text := strings.TrimSpace(cmd.Command)
		if text == "" {
			continue
		}
		if opts.Since != nil && cmd.Timestamp.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && cmd.Timestamp.After(*opts.Until) {
			continue
		}
		if c.isIgnored(text) {
			stats.Ignored++
			continue
		}

		key := dedupKey{text: text, minute: cmd.Timestamp.Truncate(time.Minute).Unix()}
		if seen[key] {
			stats.Duplicates++
			continue
		}
		seen[key] = true

		session := cmd.Session
		if session == "" {
			session = source
		}
		events = append(events, mining.RawEvent{
			Timestamp: cmd.Timestamp,
			Shell:     shell,
			Text:      text,
			SessionID: session,
		})
	}

	if limit := c.cfg.Limit; limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	slices.SortStableFunc(events, func(a, b mining.RawEvent) int {
		if a.SessionID != b.SessionID {
			return strings.Compare(a.SessionID, b.SessionID)
		}
		return a.Timestamp.Compare(b.Timestamp)
	})

	return events
}

func (c *Collector) isIgnored(text string) bool {
	for _, re := range c.ignore {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func shellForSource(source string) mining.Shell {
	switch source {
	case SourceHistdb, SourceZsh:
		return mining.ShellZsh
	case SourceBash:
		return mining.ShellBash
	default:
		return mining.ShellOther
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
