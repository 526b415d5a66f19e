// Package errors provides typed errors for the chronicle project.
//
// This package defines domain-specific error types that provide structured
// error information for the different subsystems (config, history collection,
// the mining pipeline, run storage). All error types implement the standard
// error interface and support errors.Is() and errors.As() from the standard
// library and cockroachdb/errors.
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ConfigError represents configuration-related errors. Invalid analysis
// settings (weights that do not sum to 1.0, a non-positive pattern length,
// negative thresholds) are reported as ConfigError and are never clamped.
type ConfigError struct {
	Field   string // Which config field has the issue
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
	}
	return "config error: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with an underlying cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// HistoryError represents failures while collecting shell history.
type HistoryError struct {
	Source    string // e.g., "histdb", "atuin", "zsh", "bash"
	Operation string // e.g., "Open", "Query", "Parse"
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
func (e *HistoryError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("history %s %s failed: %s", e.Source, e.Operation, e.Message)
	}
	return fmt.Sprintf("history %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *HistoryError) Unwrap() error {
	return e.Cause
}

// NewHistoryError creates a new HistoryError.
func NewHistoryError(source, operation, message string) *HistoryError {
	return &HistoryError{Source: source, Operation: operation, Message: message}
}

// NewHistoryErrorWithCause creates a new HistoryError with an underlying cause.
// A cause that reports a locked or busy database is marked retryable.
func NewHistoryErrorWithCause(source, operation, message string, cause error) *HistoryError {
	return &HistoryError{
		Source:    source,
		Operation: operation,
		Message:   message,
		Retryable: IsRetryable(cause) || isBusyDatabase(cause),
		Cause:     cause,
	}
}

// AnalysisError represents a failure inside one stage of the mining pipeline.
type AnalysisError struct {
	Stage   string // e.g., "normalize", "index", "aggregate", "score", "summarize"
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("analysis stage %s failed: %s", e.Stage, e.Message)
	}
	return "analysis error: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// NewAnalysisError creates a new AnalysisError.
func NewAnalysisError(stage, message string) *AnalysisError {
	return &AnalysisError{Stage: stage, Message: message}
}

// NewAnalysisErrorWithCause creates a new AnalysisError with an underlying cause.
func NewAnalysisErrorWithCause(stage, message string, cause error) *AnalysisError {
	return &AnalysisError{Stage: stage, Message: message, Cause: cause}
}

// CorpusStatsError reports corpus statistics that cannot describe the
// patterns being scored, such as patterns present while zero sessions were
// observed. It is an input-consistency fault and is always fatal.
type CorpusStatsError struct {
	TotalSessions int
	PatternCount  int
	Message       string
}

// Error implements the error interface.
func (e *CorpusStatsError) Error() string {
	return fmt.Sprintf("corpus statistics error (%d sessions, %d patterns): %s",
		e.TotalSessions, e.PatternCount, e.Message)
}

// NewCorpusStatsError creates a new CorpusStatsError.
func NewCorpusStatsError(totalSessions, patternCount int, message string) *CorpusStatsError {
	return &CorpusStatsError{TotalSessions: totalSessions, PatternCount: patternCount, Message: message}
}

// StoreError represents run storage errors.
type StoreError struct {
	Operation string // e.g., "Open", "Save", "Get"
	RunID     string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("store %s for run %s failed: %s", e.Operation, e.RunID, e.Message)
	}
	return fmt.Sprintf("store %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new StoreError.
func NewStoreError(operation, runID, message string, cause error) *StoreError {
	return &StoreError{Operation: operation, RunID: runID, Message: message, Cause: cause}
}

// ErrRunNotFound is returned when a stored run does not exist.
var ErrRunNotFound = errors.New("run not found")

// IsRetryable checks if an error or any error in its chain is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var histErr *HistoryError
	if errors.As(err, &histErr) {
		return histErr.Retryable
	}

	return false
}

// IsConfigError checks if an error or any error in its chain is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsHistoryError checks if an error or any error in its chain is a HistoryError.
func IsHistoryError(err error) bool {
	var histErr *HistoryError
	return errors.As(err, &histErr)
}

// IsAnalysisError checks if an error or any error in its chain is an AnalysisError.
func IsAnalysisError(err error) bool {
	var analysisErr *AnalysisError
	return errors.As(err, &analysisErr)
}

// IsCorpusStatsError checks if an error or any error in its chain is a CorpusStatsError.
func IsCorpusStatsError(err error) bool {
	var statsErr *CorpusStatsError
	return errors.As(err, &statsErr)
}

// IsStoreError checks if an error or any error in its chain is a StoreError.
func IsStoreError(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}

// isBusyDatabase reports sqlite lock contention, which clears once the
// shell hook writing the history database commits.
func isBusyDatabase(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return containsAny(msg, "database is locked", "SQLITE_BUSY", "database table is locked")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Re-export commonly used functions from cockroachdb/errors for convenience.
// This allows consumers to use chronerrors.Wrap() instead of importing two packages.
var (
	// New creates a new error with the given message.
	New = errors.New

	// Newf creates a new error with formatted message.
	Newf = errors.Newf

	// Wrap wraps an error with additional context.
	Wrap = errors.Wrap

	// Wrapf wraps an error with formatted additional context.
	Wrapf = errors.Wrapf

	// Is reports whether any error in err's chain matches target.
	Is = errors.Is

	// As finds the first error in err's chain that matches target.
	As = errors.As

	// Cause returns the root cause of an error.
	Cause = errors.Cause
)
