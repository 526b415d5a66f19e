package errors

import (
	"fmt"
	"strings"
)

// FormatUserError returns a user-friendly error message with actionable guidance.
// It examines the error chain and provides context-appropriate help text.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	// Check for ConfigError
	var configErr *ConfigError
	if As(err, &configErr) {
		return formatConfigError(configErr)
	}

	// Check for HistoryError
	var histErr *HistoryError
	if As(err, &histErr) {
		return formatHistoryError(histErr)
	}

	// Check for CorpusStatsError
	var statsErr *CorpusStatsError
	if As(err, &statsErr) {
		return formatCorpusStatsError(statsErr)
	}

	// Check for AnalysisError
	var analysisErr *AnalysisError
	if As(err, &analysisErr) {
		return formatAnalysisError(analysisErr)
	}

	// Check for StoreError
	var storeErr *StoreError
	if As(err, &storeErr) {
		return formatStoreError(storeErr)
	}

	// Default: return the error message as-is
	return err.Error()
}

// formatConfigError formats a ConfigError with actionable guidance.
func formatConfigError(err *ConfigError) string {
	var b strings.Builder

	if err.Field != "" {
		fmt.Fprintf(&b, "Configuration error in '%s': %s\n", err.Field, err.Message)
	} else {
		fmt.Fprintf(&b, "Configuration error: %s\n", err.Message)
	}

	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Check your config file: ~/.config/chronicle/config.toml\n")
	b.WriteString("  • Run 'chronicle config show' to see the effective settings\n")

	if strings.HasPrefix(err.Field, "analysis.weights") {
		b.WriteString("  • Scorer weights (frequency, length, time_saved, regularity) must be non-negative and sum to 1.0\n")
	}

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatHistoryError formats a HistoryError with guidance per history source.
func formatHistoryError(err *HistoryError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "History error (%s) during %s: %s\n", err.Source, err.Operation, err.Message)

	switch err.Source {
	case "histdb", "atuin":
		b.WriteString("\nTo fix this:\n")
		b.WriteString("  • Run 'chronicle history info' to check the database path and schema\n")
		b.WriteString("  • Set history.database_path in your config file\n")
	case "zsh", "bash":
		b.WriteString("\nTo fix this:\n")
		b.WriteString("  • Verify the history file exists and is readable\n")
		b.WriteString("  • Pass --history-file to point at a different file\n")
	default:
		b.WriteString("\nTo fix this:\n")
		b.WriteString("  • Set history.source to one of: auto, histdb, atuin, zsh, bash\n")
	}

	if err.Retryable {
		b.WriteString("\nThe history database was busy. You can try running the command again.\n")
	}

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatCorpusStatsError formats a CorpusStatsError.
func formatCorpusStatsError(err *CorpusStatsError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Inconsistent corpus: %s\n", err.Message)
	fmt.Fprintf(&b, "\nObserved %d sessions but %d patterns were produced.\n", err.TotalSessions, err.PatternCount)
	b.WriteString("This indicates a bug in session splitting or corrupted input; please report it.\n")

	return b.String()
}

// formatAnalysisError formats an AnalysisError with stage-specific guidance.
func formatAnalysisError(err *AnalysisError) string {
	var b strings.Builder

	if err.Stage != "" {
		fmt.Fprintf(&b, "Analysis error in '%s' stage: %s\n", err.Stage, err.Message)
	} else {
		fmt.Fprintf(&b, "Analysis error: %s\n", err.Message)
	}

	b.WriteString("\nTo troubleshoot:\n")
	b.WriteString("  • Run with --verbose for more details\n")
	b.WriteString("  • Try a smaller --limit to narrow down the offending history entries\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatStoreError formats a StoreError.
func formatStoreError(err *StoreError) string {
	var b strings.Builder

	if err.RunID != "" {
		fmt.Fprintf(&b, "Run store error during %s for %s: %s\n", err.Operation, err.RunID, err.Message)
	} else {
		fmt.Fprintf(&b, "Run store error during %s: %s\n", err.Operation, err.Message)
	}

	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Check store.path in your config file\n")
	b.WriteString("  • Use --no-store to analyze without saving the run\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}
