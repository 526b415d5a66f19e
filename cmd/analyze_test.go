package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"thoreinstein.com/chronicle/pkg/config"
	"thoreinstein.com/chronicle/pkg/store"
)

func TestAnalyzeCommandFlags(t *testing.T) {
	t.Parallel()

	cmd := analyzeCmd

	expectedFlags := []struct {
		name     string
		defValue string
	}{
		{"source", ""},
		{"history-file", ""},
		{"format", ""},
		{"top", "0"},
		{"max-length", "0"},
		{"min-support", "0"},
		{"idle", "0s"},
		{"timeout", "0s"},
		{"workers", "0"},
		{"since", ""},
		{"no-store", "false"},
	}

	for _, expected := range expectedFlags {
		flag := cmd.Flags().Lookup(expected.name)
		if flag == nil {
			t.Errorf("analyze command should have --%s flag", expected.name)
			continue
		}
		if flag.DefValue != expected.defValue {
			t.Errorf("--%s default = %q, want %q", expected.name, flag.DefValue, expected.defValue)
		}
	}

	if !strings.Contains(cmd.Long, "chronicle analyze") {
		t.Error("analyze Long description should contain usage examples")
	}
}

// writeWorkflowHistory writes a zsh extended history file in which the same
// three-command git workflow runs once an hour.
func writeWorkflowHistory(t *testing.T, dir string, reps int) string {
	t.Helper()

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC).Unix()
	var b strings.Builder
	for i := 0; i < reps; i++ {
		base := start + int64(i)*3600
		fmt.Fprintf(&b, ": %d:0;git add ./src\n", base)
		fmt.Fprintf(&b, ": %d:1;git commit -m \"wip %d\"\n", base+60, i)
		fmt.Fprintf(&b, ": %d:2;git push\n", base+120)
	}

	path := filepath.Join(dir, ".zsh_history")
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		t.Fatalf("failed to write history: %v", err)
	}
	return path
}

func TestAnalyzeCommand_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	historyPath := writeWorkflowHistory(t, dir, 5)
	storePath := filepath.Join(dir, "runs.db")

	setupTestConfig(t, fmt.Sprintf(`
[history]
source = "zsh"
zsh_history_path = %q
ignore_patterns = []

[store]
enabled = true
path = %q
`, historyPath, storePath))

	stdout, _, err := executeCommand(t, "analyze", "--format", "json")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	var summary struct {
		TopPatterns []struct {
			Sequence     []string `json:"sequence"`
			SupportCount int      `json:"support_count"`
			Category     string   `json:"category"`
		} `json:"top_patterns"`
		Suggestions []struct {
			Kind string `json:"kind"`
		} `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("analyze output is not JSON: %v\n%s", err, stdout)
	}

	if len(summary.TopPatterns) != 1 {
		t.Fatalf("got %d patterns, want 1: %+v", len(summary.TopPatterns), summary.TopPatterns)
	}
	top := summary.TopPatterns[0]
	want := []string{"git add PATH", "git commit FLAG STR", "git push"}
	if strings.Join(top.Sequence, "|") != strings.Join(want, "|") {
		t.Errorf("sequence = %v, want %v", top.Sequence, want)
	}
	if top.SupportCount != 5 {
		t.Errorf("support = %d, want 5", top.SupportCount)
	}
	if top.Category != "version-control" {
		t.Errorf("category = %q, want version-control", top.Category)
	}
	if len(summary.Suggestions) != 1 || summary.Suggestions[0].Kind != "function" {
		t.Errorf("suggestions = %+v, want one function", summary.Suggestions)
	}

	runs, err := store.Open(t.Context(), storePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer runs.Close()
	infos, err := runs.List(t.Context(), 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(infos) != 1 || infos[0].Source != "zsh" {
		t.Errorf("stored runs = %+v, want one zsh run", infos)
	}
}

func TestApplyAnalyzeFlags(t *testing.T) {
	cfg := config.Default()

	cmd := analyzeCmd
	t.Cleanup(func() {
		for _, name := range []string{"history-file", "min-support", "max-length"} {
			cmd.Flags().Lookup(name).Changed = false
		}
		analyzeHistoryFile, analyzeMinSupport, analyzeMaxLength = "", 0, 0
	})

	if err := cmd.Flags().Set("history-file", "/tmp/my_bash_history"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("min-support", "4"); err != nil {
		t.Fatal(err)
	}

	if err := applyAnalyzeFlags(cmd.Flags(), cfg); err != nil {
		t.Fatalf("applyAnalyzeFlags: %v", err)
	}
	if cfg.History.Source != "bash" || cfg.History.BashHistoryPath != "/tmp/my_bash_history" {
		t.Errorf("history = %+v, want bash file", cfg.History)
	}
	if cfg.Analysis.MinSupport != 4 {
		t.Errorf("min support = %d, want 4", cfg.Analysis.MinSupport)
	}

	if err := cmd.Flags().Set("max-length", "0"); err != nil {
		t.Fatal(err)
	}
	if err := applyAnalyzeFlags(cmd.Flags(), cfg); err == nil {
		t.Error("max-length 0 should be rejected")
	}
}

func TestApplyAnalyzeFlags_FishHistoryFile(t *testing.T) {
	cfg := config.Default()

	cmd := analyzeCmd
	t.Cleanup(func() {
		cmd.Flags().Lookup("history-file").Changed = false
		analyzeHistoryFile = ""
	})

	if err := cmd.Flags().Set("history-file", "/tmp/fish_history"); err != nil {
		t.Fatal(err)
	}
	if err := applyAnalyzeFlags(cmd.Flags(), cfg); err != nil {
		t.Fatalf("applyAnalyzeFlags: %v", err)
	}
	if cfg.History.Source != "fish" || cfg.History.FishHistoryPath != "/tmp/fish_history" {
		t.Errorf("history = %+v, want fish file", cfg.History)
	}
}
