package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// setupTestConfig writes a config file into a temporary directory, points
// --config at it and runs the test from an empty working directory so that
// no repository-local config is merged.
func setupTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	resetConfig()
	oldCfgFile := cfgFile
	cfgFile = path
	t.Chdir(t.TempDir())
	t.Cleanup(func() {
		cfgFile = oldCfgFile
		resetConfig()
	})

	return dir
}

// executeCommand runs the root command with args and returns stdout and
// stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}
