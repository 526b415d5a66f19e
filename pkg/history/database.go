package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	chronerrors "thoreinstein.com/chronicle/pkg/errors"
)

// busyTimeoutMillis lets sqlite wait for the shell hook's write lock before
// reporting SQLITE_BUSY.
const busyTimeoutMillis = 2000

// DatabaseManager reads commands from a zsh-histdb or atuin sqlite database.
type DatabaseManager struct {
	path    string
	verbose bool
	logger  *slog.Logger
	retry   chronerrors.RetryConfig
}

// NewDatabaseManager creates a manager for the database at path.
func NewDatabaseManager(path string, verbose bool) *DatabaseManager {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return &DatabaseManager{
		path:    path,
		verbose: verbose,
		logger:  slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
		retry:   chronerrors.DefaultRetryConfig(),
	}
}

// Path returns the database path.
func (dm *DatabaseManager) Path() string {
	return dm.path
}

// IsAvailable reports whether the database exists and has a known schema.
func (dm *DatabaseManager) IsAvailable() bool {
	if dm.path == "" {
		return false
	}
	_, err := dm.Schema()
	return err == nil
}

// open refuses missing files; sqlite would otherwise create an empty
// database at the path.
func (dm *DatabaseManager) open() (*sql.DB, error) {
	if _, err := os.Stat(dm.path); err != nil {
		return nil, chronerrors.NewHistoryErrorWithCause("", "Open", "history database not found at "+dm.path, err)
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", dm.path, busyTimeoutMillis)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, chronerrors.NewHistoryErrorWithCause("", "Open", "failed to open history database", err)
	}
	return db, nil
}

// Schema detects which history tool wrote the database.
func (dm *DatabaseManager) Schema() (string, error) {
	db, err := dm.open()
	if err != nil {
		return "", err
	}
	defer db.Close()

	return detectSchema(db)
}

func detectSchema(db *sql.DB) (string, error) {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return "", chronerrors.NewHistoryErrorWithCause("", "Detect", "failed to read database schema", err)
	}
	defer rows.Close()

	tables := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", chronerrors.NewHistoryErrorWithCause("", "Detect", "failed to read table name", err)
		}
		tables[name] = true
	}
	if err := rows.Err(); err != nil {
		return "", chronerrors.NewHistoryErrorWithCause("", "Detect", "failed to read database schema", err)
	}

	switch {
	case tables["commands"] && tables["places"]:
		return SchemaZshHistdb, nil
	case tables["history"]:
		return SchemaAtuin, nil
	default:
		return "", chronerrors.NewHistoryError("", "Detect", "unrecognized history database schema")
	}
}

// QueryCommands returns commands matching options, most recent first.
func (dm *DatabaseManager) QueryCommands(options QueryOptions) ([]Command, error) {
	return dm.QueryCommandsContext(context.Background(), options)
}

// QueryCommandsContext is QueryCommands with cancellation. A locked database
// is retried with backoff.
func (dm *DatabaseManager) QueryCommandsContext(ctx context.Context, options QueryOptions) ([]Command, error) {
	return chronerrors.RetryWithResult(ctx, dm.retry, func() ([]Command, error) {
		return dm.queryOnce(ctx, options)
	})
}

func (dm *DatabaseManager) queryOnce(ctx context.Context, options QueryOptions) ([]Command, error) {
	db, err := dm.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	schema, err := detectSchema(db)
	if err != nil {
		return nil, err
	}

	var (
		query string
		args  []interface{}
		scan  func(*sql.Rows) (Command, error)
	)
	switch schema {
	case SchemaAtuin:
		query, args = dm.buildAtuinQuery(options)
		scan = scanAtuinRow
	default:
		query, args = dm.buildZshHistdbQuery(options)
		scan = scanZshHistdbRow
	}

	if dm.verbose {
		dm.logger.Debug("querying history database", "schema", schema, "query", query, "args", args)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, chronerrors.NewHistoryErrorWithCause(sourceForSchema(schema), "Query", "failed to query commands", err)
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		cmd, err := scan(rows)
		if err != nil {
			return nil, chronerrors.NewHistoryErrorWithCause(sourceForSchema(schema), "Query", "failed to scan command", err)
		}
		commands = append(commands, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, chronerrors.NewHistoryErrorWithCause(sourceForSchema(schema), "Query", "failed to read commands", err)
	}

	return commands, nil
}

func sourceForSchema(schema string) string {
	if schema == SchemaAtuin {
		return SourceAtuin
	}
	return SourceHistdb
}

// buildZshHistdbQuery builds the query for a zsh-histdb database. Times and
// durations are stored in seconds.
func (dm *DatabaseManager) buildZshHistdbQuery(options QueryOptions) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	sb.WriteString(`SELECT c.id, c.argv, c.start_time, COALESCE(c.duration, 0), COALESCE(c.exit_status, 0),
		COALESCE(p.dir, ''), COALESCE(s.session, ''), COALESCE(c.hostname, '')
		FROM commands c
		LEFT JOIN places p ON c.place_id = p.id
		LEFT JOIN sessions s ON c.session_id = s.id
		WHERE 1=1`)

	if options.Since != nil {
		sb.WriteString(" AND c.start_time >= ?")
		args = append(args, options.Since.Unix())
	}
	if options.Until != nil {
		sb.WriteString(" AND c.start_time <= ?")
		args = append(args, options.Until.Unix())
	}
	if options.Directory != "" {
		sb.WriteString(" AND p.dir LIKE ?")
		args = append(args, options.Directory+"%")
	}
	if options.Session != "" {
		sb.WriteString(" AND s.session LIKE ?")
		args = append(args, "%"+options.Session+"%")
	}
	if options.SessionID != "" {
		sb.WriteString(" AND s.session = ?")
		args = append(args, options.SessionID)
	}
	if options.ExitCode != nil {
		sb.WriteString(" AND c.exit_status = ?")
		args = append(args, *options.ExitCode)
	}
	if options.MinDuration > 0 {
		sb.WriteString(" AND c.duration >= ?")
		args = append(args, int64(options.MinDuration/time.Second))
	}
	if options.Pattern != "" {
		sb.WriteString(" AND c.argv LIKE ?")
		args = append(args, "%"+options.Pattern+"%")
	}

	sb.WriteString(" ORDER BY c.start_time DESC, c.id DESC")

	if options.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, options.Limit)
	}

	return sb.String(), args
}

// buildAtuinQuery builds the query for an atuin database. Times and
// durations are stored in nanoseconds.
func (dm *DatabaseManager) buildAtuinQuery(options QueryOptions) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	sb.WriteString(`SELECT rowid, command, timestamp, COALESCE(duration, 0), COALESCE(exit, 0),
		COALESCE(cwd, ''), COALESCE(session, ''), COALESCE(hostname, '')
		FROM history
		WHERE 1=1`)

	if options.Since != nil {
		sb.WriteString(" AND timestamp >= ?")
		args = append(args, options.Since.UnixNano())
	}
	if options.Until != nil {
		sb.WriteString(" AND timestamp <= ?")
		args = append(args, options.Until.UnixNano())
	}
	if options.Directory != "" {
		sb.WriteString(" AND cwd LIKE ?")
		args = append(args, options.Directory+"%")
	}
	if options.Session != "" {
		sb.WriteString(" AND session LIKE ?")
		args = append(args, "%"+options.Session+"%")
	}
	if options.SessionID != "" {
		sb.WriteString(" AND session = ?")
		args = append(args, options.SessionID)
	}
	if options.ExitCode != nil {
		sb.WriteString(" AND exit = ?")
		args = append(args, *options.ExitCode)
	}
	if options.MinDuration > 0 {
		sb.WriteString(" AND duration >= ?")
		args = append(args, int64(options.MinDuration))
	}
	if options.Pattern != "" {
		sb.WriteString(" AND command LIKE ?")
		args = append(args, "%"+options.Pattern+"%")
	}

	sb.WriteString(" ORDER BY timestamp DESC, rowid DESC")

	if options.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, options.Limit)
	}

	return sb.String(), args
}

func scanZshHistdbRow(rows *sql.Rows) (Command, error) {
	var (
		cmd       Command
		startTime int64
		duration  int64
	)
	err := rows.Scan(&cmd.ID, &cmd.Command, &startTime, &duration, &cmd.ExitCode,
		&cmd.Directory, &cmd.Session, &cmd.Host)
	if err != nil {
		return Command{}, err
	}
	cmd.Timestamp = time.Unix(startTime, 0)
	cmd.Duration = duration * 1000
	return cmd, nil
}

func scanAtuinRow(rows *sql.Rows) (Command, error) {
	var (
		cmd       Command
		timestamp int64
		duration  int64
	)
	err := rows.Scan(&cmd.ID, &cmd.Command, &timestamp, &duration, &cmd.ExitCode,
		&cmd.Directory, &cmd.Session, &cmd.Host)
	if err != nil {
		return Command{}, err
	}
	cmd.Timestamp = time.Unix(0, timestamp)
	cmd.Duration = duration / int64(time.Millisecond)
	return cmd, nil
}

// GetDatabaseInfo describes the database for `chronicle history info`.
// Failures after the file is found are reported under the "error" key.
func (dm *DatabaseManager) GetDatabaseInfo() (map[string]interface{}, error) {
	info := map[string]interface{}{
		"path":   dm.path,
		"exists": false,
	}

	stat, err := os.Stat(dm.path)
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return nil, chronerrors.NewHistoryErrorWithCause("", "Stat", "failed to stat history database", err)
	}

	info["exists"] = true
	info["size"] = stat.Size()
	info["modified"] = stat.ModTime()

	db, err := dm.open()
	if err != nil {
		info["error"] = err.Error()
		return info, nil
	}
	defer db.Close()

	schema, err := detectSchema(db)
	if err != nil {
		info["error"] = err.Error()
		return info, nil
	}
	info["schema"] = schema

	table := "commands"
	if schema == SchemaAtuin {
		table = "history"
	}

	var count int64
	// table is one of two constants, never user input
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		info["error"] = err.Error()
		return info, nil
	}
	info["command_count"] = count

	return info, nil
}
