package cmd

import (
	"bytes"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"thoreinstein.com/chronicle/pkg/history"
)

func TestHistoryCommandStructure(t *testing.T) {
	t.Parallel()

	cmd := historyCmd

	if cmd.Use != "history" {
		t.Errorf("history command Use = %q, want %q", cmd.Use, "history")
	}

	subcommandNames := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommandNames[sub.Use] = true
	}

	for _, expected := range []string{"query [pattern]", "info", "sources"} {
		if !subcommandNames[expected] {
			t.Errorf("history command missing %q subcommand", expected)
		}
	}
}

func TestHistoryQueryCommandFlags(t *testing.T) {
	t.Parallel()

	cmd := historyQueryCmd

	expectedFlags := []struct {
		name     string
		defValue string
	}{
		{"since", ""},
		{"until", ""},
		{"directory", ""},
		{"session", ""},
		{"session-id", ""},
		{"failed-only", "false"},
		{"exit-code", "-1"},
		{"min-duration", "0s"},
		{"limit", "50"},
	}

	for _, expected := range expectedFlags {
		flag := cmd.Flags().Lookup(expected.name)
		if flag == nil {
			t.Errorf("history query command should have --%s flag", expected.name)
			continue
		}
		if flag.DefValue != expected.defValue {
			t.Errorf("--%s default = %q, want %q", expected.name, flag.DefValue, expected.defValue)
		}
	}

	if !strings.Contains(cmd.Long, "chronicle history query") {
		t.Error("history query Long description should contain usage examples")
	}
}

// createTestAtuinDatabase creates an atuin database with a few commands.
func createTestAtuinDatabase(t *testing.T, dir string) string {
	t.Helper()

	dbPath := filepath.Join(dir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE history (
			id TEXT PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			duration INTEGER NOT NULL,
			exit INTEGER NOT NULL,
			command TEXT NOT NULL,
			cwd TEXT NOT NULL,
			session TEXT NOT NULL,
			hostname TEXT NOT NULL
		)`)
	if err != nil {
		t.Fatalf("Failed to create history table: %v", err)
	}

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	rows := []struct {
		offset   time.Duration
		command  string
		exit     int
		duration time.Duration
	}{
		{0, "make build", 0, 2 * time.Second},
		{time.Minute, "make test", 2, 30 * time.Second},
		{2 * time.Minute, "git status", 0, 50 * time.Millisecond},
	}
	for i, r := range rows {
		_, err = db.Exec(`INSERT INTO history VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			fmt.Sprintf("id-%d", i), base.Add(r.offset).UnixNano(), r.duration.Nanoseconds(),
			r.exit, r.command, "/home/user/project", "sess-1", "host")
		if err != nil {
			t.Fatalf("Failed to insert row: %v", err)
		}
	}

	return dbPath
}

func TestRunHistoryQueryCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := createTestAtuinDatabase(t, dir)
	setupTestConfig(t, fmt.Sprintf("[history]\ndatabase_path = %q\n", dbPath))

	var out bytes.Buffer
	if err := runHistoryQueryCommand(t.Context(), &out, "make"); err != nil {
		t.Fatalf("runHistoryQueryCommand: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "Found 2 commands") {
		t.Errorf("output should report 2 commands:\n%s", got)
	}
	if !strings.Contains(got, "✗") || !strings.Contains(got, "Exit Code: 2") {
		t.Errorf("failed command should be marked:\n%s", got)
	}
	if !strings.Contains(got, "[30.0s]") {
		t.Errorf("duration should be shown:\n%s", got)
	}
	if strings.Contains(got, "git status") {
		t.Errorf("pattern filter should exclude git status:\n%s", got)
	}
}

func TestRunHistoryQueryCommand_MissingDatabase(t *testing.T) {
	setupTestConfig(t, fmt.Sprintf("[history]\ndatabase_path = %q\n", filepath.Join(t.TempDir(), "none.db")))

	err := runHistoryQueryCommand(t.Context(), &bytes.Buffer{}, "")
	if err == nil || !strings.Contains(err.Error(), "not available") {
		t.Errorf("expected unavailable database error, got %v", err)
	}
}

func TestRunHistoryInfoCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := createTestAtuinDatabase(t, dir)
	setupTestConfig(t, fmt.Sprintf("[history]\ndatabase_path = %q\n", dbPath))

	var out bytes.Buffer
	if err := runHistoryInfoCommand(&out); err != nil {
		t.Fatalf("runHistoryInfoCommand: %v", err)
	}

	got := out.String()
	for _, want := range []string{"Schema: " + history.SchemaAtuin, "Commands: 3", "Status: Available"} {
		if !strings.Contains(got, want) {
			t.Errorf("info output missing %q:\n%s", want, got)
		}
	}
}

func TestRunHistorySourcesCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := createTestAtuinDatabase(t, dir)
	setupTestConfig(t, fmt.Sprintf(`
[history]
source = "auto"
database_path = %q
zsh_history_path = %q
bash_history_path = %q
fish_history_path = %q
ignore_patterns = ["^git status$"]
`, dbPath, filepath.Join(dir, "none_zsh"), filepath.Join(dir, "none_bash"), filepath.Join(dir, "none_fish")))

	var out bytes.Buffer
	if err := runHistorySourcesCommand(t.Context(), &out); err != nil {
		t.Fatalf("runHistorySourcesCommand: %v", err)
	}

	got := out.String()
	for _, want := range []string{"fish history:", "none_fish (missing)", "Resolved source: atuin", "Read: 3", "Ignored: 1", "Kept: 2"} {
		if !strings.Contains(got, want) {
			t.Errorf("sources output missing %q:\n%s", want, got)
		}
	}
}
