package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chronerrors "thoreinstein.com/chronicle/pkg/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestInitConfig_ExplicitFileAndEnv(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Chdir(t.TempDir())

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, cfgPath, `
[analysis]
top_n = 7
max_pattern_length = 4

[history]
source = "zsh"
`)
	t.Setenv("CHRONICLE_ANALYSIS_MIN_SUPPORT", "4")

	cfg, verbose, err := InitConfig(cfgPath, false)
	require.NoError(t, err)
	assert.False(t, verbose)

	assert.Equal(t, 7, cfg.Analysis.TopN)
	assert.Equal(t, 4, cfg.Analysis.MaxPatternLength)
	assert.Equal(t, 4, cfg.Analysis.MinSupport)
	assert.Equal(t, "zsh", cfg.History.Source)
	assert.InDelta(t, 1.0, cfg.Analysis.Weights.Sum(), 1e-9)
}

func TestInitConfig_MissingExplicitFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	_, _, err := InitConfig(filepath.Join(t.TempDir(), "nope.toml"), false)
	require.Error(t, err)
}

func TestInitConfig_InvalidWeightsRejected(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Chdir(t.TempDir())

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, cfgPath, `
[analysis.weights]
frequency = 0.9
length = 0.9
time_saved = 0.0
regularity = 0.0
`)

	_, _, err := InitConfig(cfgPath, false)
	require.Error(t, err)
	assert.True(t, chronerrors.IsConfigError(err))
}

func TestLoadRepoLocalConfig_MergesOverUserConfig(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	repo := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(repo, ".git"), 0o755))
	writeFile(t, filepath.Join(repo, LocalConfigName), `
[analysis]
min_support = 5
`)
	sub := filepath.Join(repo, "src", "pkg")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	t.Chdir(sub)

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, cfgPath, `
[analysis]
min_support = 3
top_n = 9
`)

	cfg, _, err := InitConfig(cfgPath, false)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Analysis.MinSupport)
	assert.Equal(t, 9, cfg.Analysis.TopN)
}

func TestFindGitRoot(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(repo, ".git"), 0o755))
	sub := filepath.Join(repo, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	t.Chdir(sub)

	root, err := FindGitRoot()
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(repo)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
