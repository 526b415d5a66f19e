// Package store persists analysis runs in a local sqlite database so that
// earlier summaries can be listed and compared.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	chronerrors "thoreinstein.com/chronicle/pkg/errors"
	"thoreinstein.com/chronicle/pkg/mining"
)

// schemaVersion is bumped whenever the runs table changes shape.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	generated_at INTEGER NOT NULL,
	status       TEXT NOT NULL,
	source       TEXT NOT NULL,
	events       INTEGER NOT NULL,
	sessions     INTEGER NOT NULL,
	patterns     INTEGER NOT NULL,
	duration_ms  INTEGER NOT NULL,
	summary      TEXT NOT NULL,
	diagnostics  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_generated_at ON runs(generated_at);
`

// RunInfo is the listing view of a stored run.
type RunInfo struct {
	ID          string        `json:"id" yaml:"id"`
	GeneratedAt time.Time     `json:"generated_at" yaml:"generated_at"`
	Status      mining.Status `json:"status" yaml:"status"`
	Source      string        `json:"source" yaml:"source"`
	Events      int           `json:"events" yaml:"events"`
	Sessions    int           `json:"sessions" yaml:"sessions"`
	Patterns    int           `json:"patterns" yaml:"patterns"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// Run is a stored run with its full summary.
type Run struct {
	RunInfo     `yaml:",inline"`
	Summary     mining.WorkflowSummary `json:"summary" yaml:"summary"`
	Diagnostics []mining.Diagnostic    `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Store reads and writes runs.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the run database at path, creating it and its parent
// directory when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, chronerrors.NewStoreError("Open", "", "failed to create store directory", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, chronerrors.NewStoreError("Open", "", "failed to open database", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, chronerrors.NewStoreError("Open", "", "failed to create schema", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_migrations (version) VALUES (?)`, schemaVersion); err != nil {
		db.Close()
		return nil, chronerrors.NewStoreError("Open", "", "failed to record schema version", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores result under a new run ID and returns the stored record.
func (s *Store) Save(ctx context.Context, source string, result *mining.Result) (*Run, error) {
	run := &Run{
		RunInfo: RunInfo{
			ID:          uuid.NewString(),
			GeneratedAt: result.Summary.GeneratedAt,
			Status:      result.Status,
			Source:      source,
			Events:      result.Stats.Events,
			Sessions:    result.Stats.CompletedSessions,
			Patterns:    result.Stats.Patterns,
			Duration:    result.Stats.Duration,
		},
		Summary:     result.Summary,
		Diagnostics: result.Diagnostics,
	}
	if run.GeneratedAt.IsZero() {
		run.GeneratedAt = time.Now()
	}

	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return nil, chronerrors.NewStoreError("Save", run.ID, "failed to encode summary", err)
	}
	diagnostics, err := json.Marshal(run.Diagnostics)
	if err != nil {
		return nil, chronerrors.NewStoreError("Save", run.ID, "failed to encode diagnostics", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, generated_at, status, source, events, sessions, patterns, duration_ms, summary, diagnostics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.GeneratedAt.UnixNano(),
		string(run.Status),
		run.Source,
		run.Events,
		run.Sessions,
		run.Patterns,
		run.Duration.Milliseconds(),
		string(summary),
		string(diagnostics),
	)
	if err != nil {
		return nil, chronerrors.NewStoreError("Save", run.ID, "failed to insert run", err)
	}

	return run, nil
}

// List returns the most recent runs first. A limit of 0 or less returns
// every run.
func (s *Store) List(ctx context.Context, limit int) ([]RunInfo, error) {
	query := `
		SELECT id, generated_at, status, source, events, sessions, patterns, duration_ms
		FROM runs
		ORDER BY generated_at DESC, id`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, chronerrors.NewStoreError("List", "", "failed to query runs", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		info, err := scanRunInfo(rows)
		if err != nil {
			return nil, chronerrors.NewStoreError("List", "", "failed to scan run", err)
		}
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, chronerrors.NewStoreError("List", "", "failed to iterate runs", err)
	}

	return runs, nil
}

// Get returns the run with the given ID, or an error wrapping
// errors.ErrRunNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, generated_at, status, source, events, sessions, patterns, duration_ms, summary, diagnostics
		FROM runs
		WHERE id = ?`, id)

	var (
		run         Run
		generatedAt int64
		durationMs  int64
		status      string
		summary     string
		diagnostics string
	)
	err := row.Scan(&run.ID, &generatedAt, &status, &run.Source, &run.Events, &run.Sessions,
		&run.Patterns, &durationMs, &summary, &diagnostics)
	if err == sql.ErrNoRows {
		return nil, chronerrors.NewStoreError("Get", id, "no such run", chronerrors.ErrRunNotFound)
	}
	if err != nil {
		return nil, chronerrors.NewStoreError("Get", id, "failed to read run", err)
	}

	run.GeneratedAt = time.Unix(0, generatedAt)
	run.Status = mining.Status(status)
	run.Duration = time.Duration(durationMs) * time.Millisecond

	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, chronerrors.NewStoreError("Get", id, "failed to decode summary", err)
	}
	if err := json.Unmarshal([]byte(diagnostics), &run.Diagnostics); err != nil {
		return nil, chronerrors.NewStoreError("Get", id, "failed to decode diagnostics", err)
	}

	return &run, nil
}

// Delete removes a run.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return chronerrors.NewStoreError("Delete", id, "failed to delete run", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chronerrors.NewStoreError("Delete", id, "no such run", chronerrors.ErrRunNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRunInfo(row scanner) (RunInfo, error) {
	var (
		info        RunInfo
		generatedAt int64
		durationMs  int64
		status      string
	)
	if err := row.Scan(&info.ID, &generatedAt, &status, &info.Source, &info.Events,
		&info.Sessions, &info.Patterns, &durationMs); err != nil {
		return RunInfo{}, err
	}
	info.GeneratedAt = time.Unix(0, generatedAt)
	info.Status = mining.Status(status)
	info.Duration = time.Duration(durationMs) * time.Millisecond
	return info, nil
}
