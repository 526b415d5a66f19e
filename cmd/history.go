package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"thoreinstein.com/chronicle/pkg/history"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the shell history chronicle analyses",
	Long: `Inspect the shell history that chronicle reads.

The query and info subcommands work on the history database (zsh-histdb or atuin).
The sources subcommand shows which history source analysis would use and what
collection keeps after ignore patterns and deduplication.`,
}

// historyQueryCmd queries the history database
var historyQueryCmd = &cobra.Command{
	Use:   "query [pattern]",
	Short: "Query command history",
	Long: `Query the command history database with optional filters.

Examples:
  chronicle history query                     # List recent commands
  chronicle history query "git"               # Search for commands containing "git"
  chronicle history query --since "2025-08-10"
  chronicle history query --directory /path/to/dir
  chronicle history query --failed-only
  chronicle history query --exit-code 1
  chronicle history query --min-duration 5s`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := ""
		if len(args) > 0 {
			pattern = args[0]
		}
		return runHistoryQueryCommand(cmd.Context(), cmd.OutOrStdout(), pattern)
	},
}

// historyInfoCmd shows database information
var historyInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show history database information",
	Long:  `Display information about the history database including schema, size, and statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistoryInfoCommand(cmd.OutOrStdout())
	},
}

// historySourcesCmd shows what collection would read
var historySourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Show the history source used for analysis",
	Long: `Resolve the configured history source and report how many commands collection
reads, ignores, deduplicates and keeps.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistorySourcesCommand(cmd.Context(), cmd.OutOrStdout())
	},
}

var (
	historySince       string
	historyUntil       string
	historyDirectory   string
	historySession     string
	historySessionID   string
	historyFailedOnly  bool
	historyExitCode    int
	historyMinDuration time.Duration
	historyLimit       int
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyQueryCmd)
	historyCmd.AddCommand(historyInfoCmd)
	historyCmd.AddCommand(historySourcesCmd)

	historyQueryCmd.Flags().StringVar(&historySince, "since", "", "Start time (YYYY-MM-DD HH:MM or YYYY-MM-DD)")
	historyQueryCmd.Flags().StringVar(&historyUntil, "until", "", "End time (YYYY-MM-DD HH:MM or YYYY-MM-DD)")
	historyQueryCmd.Flags().StringVar(&historyDirectory, "directory", "", "Filter by directory path")
	historyQueryCmd.Flags().StringVar(&historySession, "session", "", "Filter by session")
	historyQueryCmd.Flags().StringVar(&historySessionID, "session-id", "", "Filter by exact session ID")
	historyQueryCmd.Flags().BoolVar(&historyFailedOnly, "failed-only", false, "Show only failed commands")
	historyQueryCmd.Flags().IntVar(&historyExitCode, "exit-code", -1, "Filter by exact exit code")
	historyQueryCmd.Flags().DurationVar(&historyMinDuration, "min-duration", 0, "Filter by minimum duration (e.g. 5s, 1m)")
	historyQueryCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum number of commands to show")
}

func runHistoryQueryCommand(ctx context.Context, out io.Writer, pattern string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	dbManager := history.NewDatabaseManager(cfg.History.DatabasePath, verbose)
	if !dbManager.IsAvailable() {
		return errors.Newf("history database not available at: %s", cfg.History.DatabasePath)
	}

	options := history.QueryOptions{
		Directory:   historyDirectory,
		Session:     historySession,
		SessionID:   historySessionID,
		MinDuration: historyMinDuration,
		Pattern:     pattern,
		Limit:       historyLimit,
	}

	if historySince != "" {
		since, err := parseTimeString(historySince)
		if err != nil {
			return errors.Wrap(err, "invalid --since time")
		}
		options.Since = &since
	}
	if historyUntil != "" {
		until, err := parseTimeString(historyUntil)
		if err != nil {
			return errors.Wrap(err, "invalid --until time")
		}
		options.Until = &until
	}

	if historyExitCode != -1 {
		options.ExitCode = &historyExitCode
	} else if historyFailedOnly {
		failedExitCode := 1
		options.ExitCode = &failedExitCode
	}

	commands, err := dbManager.QueryCommandsContext(ctx, options)
	if err != nil {
		return errors.Wrap(err, "failed to query commands")
	}

	printCommands(out, commands)
	return nil
}

func printCommands(out io.Writer, commands []history.Command) {
	if len(commands) == 0 {
		fmt.Fprintln(out, "No commands found matching the criteria.")
		return
	}

	fmt.Fprintf(out, "Found %d commands:\n\n", len(commands))

	for i, cmd := range commands {
		statusIcon := "✓"
		if cmd.ExitCode != 0 {
			statusIcon = "✗"
		}

		fmt.Fprintf(out, "%3d. %s %s [%s] %s", i+1, statusIcon,
			cmd.Timestamp.Format("2006-01-02 15:04:05"),
			formatDurationMs(cmd.Duration),
			truncate(cmd.Command, 80))

		if cmd.Directory != "" {
			fmt.Fprintf(out, "\n     Directory: %s", truncateLeft(cmd.Directory, 30))
		}
		if cmd.Session != "" {
			fmt.Fprintf(out, "\n     Session: %s", cmd.Session)
		}
		if cmd.ExitCode != 0 {
			fmt.Fprintf(out, "\n     Exit Code: %d", cmd.ExitCode)
		}
		fmt.Fprintln(out)

		if i < len(commands)-1 {
			fmt.Fprintln(out)
		}
	}
}

func runHistoryInfoCommand(out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	dbManager := history.NewDatabaseManager(cfg.History.DatabasePath, verbose)

	info, err := dbManager.GetDatabaseInfo()
	if err != nil {
		return errors.Wrap(err, "failed to get database info")
	}

	fmt.Fprintln(out, "History Database Information")
	fmt.Fprintln(out, "============================")

	fmt.Fprintf(out, "Path: %s\n", info["path"])
	fmt.Fprintf(out, "Exists: %v\n", info["exists"])

	if exists, _ := info["exists"].(bool); !exists {
		fmt.Fprintln(out, "Database file does not exist.")
		fmt.Fprintln(out, "Make sure zsh-histdb or atuin is configured and running.")
		return nil
	}

	if size, ok := info["size"]; ok {
		fmt.Fprintf(out, "Size: %d bytes\n", size)
	}
	if modified, ok := info["modified"].(time.Time); ok {
		fmt.Fprintf(out, "Modified: %s\n", modified.Format("2006-01-02 15:04:05"))
	}
	if schema, ok := info["schema"]; ok {
		fmt.Fprintf(out, "Schema: %s\n", schema)
	}
	if count, ok := info["command_count"]; ok {
		fmt.Fprintf(out, "Commands: %d\n", count)
	}
	if errMsg, ok := info["error"]; ok {
		fmt.Fprintf(out, "Error: %s\n", errMsg)
	}

	if dbManager.IsAvailable() {
		fmt.Fprintln(out, "Status: Available ✓")
	} else {
		fmt.Fprintln(out, "Status: Not available ✗")
	}

	return nil
}

func runHistorySourcesCommand(ctx context.Context, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	collector, err := history.NewCollector(&cfg.History, verbose, history.WithLogger(newLogger(os.Stderr)))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Configured source: %s\n", cfg.History.Source)
	for _, candidate := range []struct{ name, path string }{
		{"database", cfg.History.DatabasePath},
		{"zsh history", cfg.History.ZshHistoryPath},
		{"bash history", cfg.History.BashHistoryPath},
		{"fish history", cfg.History.FishHistoryPath},
	} {
		state := "missing"
		if _, err := os.Stat(candidate.path); err == nil {
			state = "present"
		}
		fmt.Fprintf(out, "  %-13s %s (%s)\n", candidate.name+":", candidate.path, state)
	}

	if _, err := collector.Collect(ctx, history.CollectOptions{}); err != nil {
		return err
	}

	stats := collector.LastStats
	fmt.Fprintf(out, "\nResolved source: %s\n", stats.Source)
	fmt.Fprintf(out, "Read: %d  Ignored: %d  Duplicates: %d  Kept: %d\n",
		stats.Read, stats.Ignored, stats.Duplicates, stats.Kept)
	return nil
}
