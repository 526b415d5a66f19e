package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"thoreinstein.com/chronicle/pkg/config"
	"thoreinstein.com/chronicle/pkg/history"
	"thoreinstein.com/chronicle/pkg/mining"
	"thoreinstein.com/chronicle/pkg/report"
	"thoreinstein.com/chronicle/pkg/store"
	"thoreinstein.com/chronicle/pkg/telemetry"
)

// analyzeCmd mines shell history and reports automation opportunities
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Find repeated command workflows worth automating",
	Long: `Collect shell history, mine it for recurring command sequences and rank them
by automation value.

Commands are reduced to structural signatures (git commit -m STR), split into
sessions, and every contiguous sequence up to --max-length commands is counted.
Sequences seen at least --min-support times are scored and grouped by category.

Examples:
  chronicle analyze                          # Analyse the detected history source
  chronicle analyze --source atuin --top 10
  chronicle analyze --history-file ~/.bash_history --source bash
  chronicle analyze --since 30d --format markdown > workflows.md
  chronicle analyze --timeout 5s             # Report what finished within 5s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyzeCommand(cmd, cmd.OutOrStdout())
	},
}

var (
	analyzeSource      string
	analyzeHistoryFile string
	analyzeFormat      string
	analyzeTop         int
	analyzeMaxLength   int
	analyzeMinSupport  int
	analyzeIdle        time.Duration
	analyzeTimeout     time.Duration
	analyzeWorkers     int
	analyzeSince       string
	analyzeNoStore     bool
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeSource, "source", "", "History source: auto, histdb, atuin, zsh, bash, fish")
	analyzeCmd.Flags().StringVar(&analyzeHistoryFile, "history-file", "", "Read this zsh, bash or fish history file")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "", "Output format: text, markdown, json, yaml")
	analyzeCmd.Flags().IntVar(&analyzeTop, "top", 0, "Number of patterns to report")
	analyzeCmd.Flags().IntVar(&analyzeMaxLength, "max-length", 0, "Longest command sequence to mine")
	analyzeCmd.Flags().IntVar(&analyzeMinSupport, "min-support", 0, "Minimum occurrences for a pattern")
	analyzeCmd.Flags().DurationVar(&analyzeIdle, "idle", 0, "Idle gap that starts a new session")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 0, "Stop mining after this long and report partial results")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "Parallel session workers")
	analyzeCmd.Flags().StringVar(&analyzeSince, "since", "", "Only analyse commands since a date or look-back window (e.g. 7d, 36h)")
	analyzeCmd.Flags().BoolVar(&analyzeNoStore, "no-store", false, "Do not save the run")
}

func runAnalyzeCommand(cmd *cobra.Command, out io.Writer) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	if err := applyAnalyzeFlags(cmd.Flags(), cfg); err != nil {
		return err
	}

	var opts history.CollectOptions
	if analyzeSince != "" {
		since, err := parseSince(analyzeSince, time.Now())
		if err != nil {
			return errors.Wrap(err, "invalid --since time")
		}
		opts.Since = &since
	}

	logger := newLogger(cmd.ErrOrStderr())

	collector, err := history.NewCollector(&cfg.History, verbose, history.WithLogger(logger))
	if err != nil {
		return err
	}
	events, err := collector.Collect(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "failed to collect history")
	}

	classifier, err := mining.NewClassifier(&cfg.Classifier)
	if err != nil {
		return err
	}
	engine, err := mining.NewEngine(&cfg.Analysis, classifier, verbose, mining.WithLogger(logger))
	if err != nil {
		return err
	}

	result, err := engine.Run(ctx, events)
	if err != nil {
		return errors.Wrap(err, "analysis failed")
	}

	warnDiagnostics(cmd.ErrOrStderr(), result)

	if cfg.Store.Enabled && !analyzeNoStore {
		if err := saveRun(ctx, cmd.ErrOrStderr(), cfg, collector.LastStats.Source, result); err != nil {
			// Storage failures do not block the report
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
	}

	if err := recordTelemetry(ctx, cfg, collector.LastStats.Source, result); err != nil && verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: telemetry export failed: %v\n", err)
	}

	format, err := report.ResolveFormat(cfg.Output.Format, isTerminal(out))
	if err != nil {
		return err
	}
	return report.Write(out, &result.Summary, format)
}

// applyAnalyzeFlags overrides configuration with the flags that were set.
func applyAnalyzeFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("source") {
		cfg.History.Source = analyzeSource
	}
	if flags.Changed("history-file") {
		switch cfg.History.Source {
		case history.SourceBash:
			cfg.History.BashHistoryPath = analyzeHistoryFile
		case history.SourceZsh:
			cfg.History.ZshHistoryPath = analyzeHistoryFile
		case history.SourceFish:
			cfg.History.FishHistoryPath = analyzeHistoryFile
		default:
			if strings.Contains(analyzeHistoryFile, "fish") {
				cfg.History.Source = history.SourceFish
				cfg.History.FishHistoryPath = analyzeHistoryFile
			} else if strings.Contains(analyzeHistoryFile, "bash") {
				cfg.History.Source = history.SourceBash
				cfg.History.BashHistoryPath = analyzeHistoryFile
			} else {
				cfg.History.Source = history.SourceZsh
				cfg.History.ZshHistoryPath = analyzeHistoryFile
			}
		}
	}
	if flags.Changed("format") {
		cfg.Output.Format = analyzeFormat
	}
	if flags.Changed("top") {
		cfg.Analysis.TopN = analyzeTop
	}
	if flags.Changed("max-length") {
		cfg.Analysis.MaxPatternLength = analyzeMaxLength
	}
	if flags.Changed("min-support") {
		cfg.Analysis.MinSupport = analyzeMinSupport
	}
	if flags.Changed("idle") {
		cfg.Analysis.SessionIdleThreshold = analyzeIdle
	}
	if flags.Changed("timeout") {
		cfg.Analysis.Timeout = analyzeTimeout
	}
	if flags.Changed("workers") {
		cfg.Analysis.Workers = analyzeWorkers
	}

	return cfg.Validate()
}

func warnDiagnostics(w io.Writer, result *mining.Result) {
	if result.Partial() {
		fmt.Fprintf(w, "Warning: partial result, %d of %d sessions analysed\n",
			result.Stats.CompletedSessions, result.Stats.Sessions)
	}
	if !verbose {
		return
	}
	for _, d := range result.Diagnostics {
		if d.Text != "" {
			fmt.Fprintf(w, "  %s: %s (%s)\n", d.Kind, d.Message, truncate(d.Text, 60))
		} else {
			fmt.Fprintf(w, "  %s: %s\n", d.Kind, d.Message)
		}
	}
}

func saveRun(ctx context.Context, w io.Writer, cfg *config.Config, source string, result *mining.Result) error {
	runs, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer runs.Close()

	run, err := runs.Save(ctx, source, result)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(w, "Saved run %s\n", run.ID)
	}
	return nil
}

func recordTelemetry(ctx context.Context, cfg *config.Config, source string, result *mining.Result) error {
	exporter, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	if err := exporter.RecordRun(ctx, telemetry.MetricsFromResult(source, result)); err != nil {
		_ = exporter.Close(ctx)
		return err
	}
	return exporter.Close(ctx)
}

// isTerminal reports whether out is an interactive terminal.
func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
