package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/viper"

	chronerrors "thoreinstein.com/chronicle/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	Analysis   AnalysisConfig   `mapstructure:"analysis" toml:"analysis"`
	Classifier ClassifierConfig `mapstructure:"classifier" toml:"classifier"`
	History    HistoryConfig    `mapstructure:"history" toml:"history"`
	Store      StoreConfig      `mapstructure:"store" toml:"store"`
	Output     OutputConfig     `mapstructure:"output" toml:"output"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry" toml:"telemetry"`
}

// AnalysisConfig holds the pattern mining settings threaded through every
// pipeline stage.
type AnalysisConfig struct {
	MaxPatternLength     int           `mapstructure:"max_pattern_length" toml:"max_pattern_length"`         // K: longest n-gram indexed
	MinSupport           int           `mapstructure:"min_support" toml:"min_support"`                       // Patterns seen fewer times are dropped
	TopN                 int           `mapstructure:"top_n" toml:"top_n"`                                   // Bound on WorkflowSummary.TopPatterns
	SessionIdleThreshold time.Duration `mapstructure:"session_idle_threshold" toml:"session_idle_threshold"` // Gap that starts a new session
	CommandCost          time.Duration `mapstructure:"command_cost" toml:"command_cost"`                     // Average typing+execution cost per command
	Workers              int           `mapstructure:"workers" toml:"workers"`                               // Parallel session workers (0 = GOMAXPROCS)
	Timeout              time.Duration `mapstructure:"timeout" toml:"timeout"`                               // Overall analysis deadline (0 = none)
	SubcommandTools      []string      `mapstructure:"subcommand_tools" toml:"subcommand_tools"`             // Tools whose first bare word is kept verbatim
	Weights              ScoreWeights  `mapstructure:"weights" toml:"weights"`
}

// ScoreWeights are the automation scorer component weights. They must be
// non-negative and sum to 1.0.
type ScoreWeights struct {
	Frequency  float64 `mapstructure:"frequency" toml:"frequency"`
	Length     float64 `mapstructure:"length" toml:"length"`
	TimeSaved  float64 `mapstructure:"time_saved" toml:"time_saved"`
	Regularity float64 `mapstructure:"regularity" toml:"regularity"`
}

// Sum returns the total of all weights.
func (w ScoreWeights) Sum() float64 {
	return w.Frequency + w.Length + w.TimeSaved + w.Regularity
}

// ClassifierConfig selects the category scheme used by the summarizer.
type ClassifierConfig struct {
	Scheme     string              `mapstructure:"scheme" toml:"scheme"`         // "keyword" or "regex"
	Categories map[string][]string `mapstructure:"categories" toml:"categories"` // keyword scheme: category -> command names
	Order      []string            `mapstructure:"order" toml:"order"`           // keyword scheme: tie-break order of categories
	Rules      []ClassifierRule    `mapstructure:"rules" toml:"rules"`           // regex scheme: first match wins
}

// ClassifierRule maps a regular expression over a joined signature sequence
// to a category.
type ClassifierRule struct {
	Category string `mapstructure:"category" toml:"category"`
	Pattern  string `mapstructure:"pattern" toml:"pattern"`
}

// HistoryConfig holds command history collection configuration
type HistoryConfig struct {
	Source          string   `mapstructure:"source" toml:"source"` // "auto", "histdb", "atuin", "zsh", "bash", "fish"
	DatabasePath    string   `mapstructure:"database_path" toml:"database_path"`
	ZshHistoryPath  string   `mapstructure:"zsh_history_path" toml:"zsh_history_path"`
	BashHistoryPath string   `mapstructure:"bash_history_path" toml:"bash_history_path"`
	FishHistoryPath string   `mapstructure:"fish_history_path" toml:"fish_history_path"`
	IgnorePatterns  []string `mapstructure:"ignore_patterns" toml:"ignore_patterns"`
	Limit           int      `mapstructure:"limit" toml:"limit"` // Most recent N commands (0 = all)
}

// StoreConfig holds analysis run storage configuration
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Path    string `mapstructure:"path" toml:"path"`
}

// OutputConfig holds report output configuration
type OutputConfig struct {
	Format string `mapstructure:"format" toml:"format"` // "", "text", "markdown", "json", "yaml"
}

// TelemetryConfig holds OTLP metrics export configuration
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled" toml:"enabled"`
	Endpoint string `mapstructure:"endpoint" toml:"endpoint"`
	Insecure bool   `mapstructure:"insecure" toml:"insecure"`
}

// Valid enumerations.
var (
	ValidHistorySources    = []string{"auto", "histdb", "atuin", "zsh", "bash", "fish"}
	ValidOutputFormats     = []string{"", "text", "markdown", "json", "yaml"}
	ValidClassifierSchemes = []string{"keyword", "regex"}
)

// weightTolerance absorbs float rounding in user-supplied weights.
const weightTolerance = 1e-6

// Load loads the configuration from file and environment variables
func Load() (*Config, error) {
	config := &Config{}

	// Set defaults
	setDefaults()

	// Unmarshal the config
	if err := viper.Unmarshal(config); err != nil {
		return nil, chronerrors.Wrap(err, "failed to unmarshal config")
	}

	// Expand paths
	if err := expandPaths(config); err != nil {
		return nil, chronerrors.Wrap(err, "failed to expand paths")
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, chronerrors.Wrap(err, "config validation failed")
	}

	return config, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	v := viper.New()
	applyDefaults(v)

	config := &Config{}
	// Defaults are static values of the right types; decoding cannot fail.
	_ = v.Unmarshal(config)
	_ = expandPaths(config)
	return config
}

// Validate validates the configuration and returns any validation errors.
func (c *Config) Validate() error {
	if err := c.Analysis.Validate(); err != nil {
		return err
	}
	if err := c.Classifier.Validate(); err != nil {
		return err
	}
	if !slices.Contains(ValidHistorySources, c.History.Source) {
		return chronerrors.NewConfigError("history.source", "must be one of: auto, histdb, atuin, zsh, bash, fish")
	}
	if c.History.Limit < 0 {
		return chronerrors.NewConfigError("history.limit", "must not be negative")
	}
	if !slices.Contains(ValidOutputFormats, c.Output.Format) {
		return chronerrors.NewConfigError("output.format", "must be one of: text, markdown, json, yaml")
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return chronerrors.NewConfigError("telemetry.endpoint", "required when telemetry is enabled")
	}
	return nil
}

// Validate checks the analysis settings. Invalid values are reported, never
// clamped.
func (a *AnalysisConfig) Validate() error {
	if a.MaxPatternLength <= 0 {
		return chronerrors.NewConfigError("analysis.max_pattern_length", "must be greater than 0")
	}
	if a.MinSupport < 0 {
		return chronerrors.NewConfigError("analysis.min_support", "must not be negative")
	}
	if a.TopN < 0 {
		return chronerrors.NewConfigError("analysis.top_n", "must not be negative")
	}
	if a.SessionIdleThreshold < 0 {
		return chronerrors.NewConfigError("analysis.session_idle_threshold", "must not be negative")
	}
	if a.CommandCost < 0 {
		return chronerrors.NewConfigError("analysis.command_cost", "must not be negative")
	}
	if a.Workers < 0 {
		return chronerrors.NewConfigError("analysis.workers", "must not be negative")
	}
	if a.Timeout < 0 {
		return chronerrors.NewConfigError("analysis.timeout", "must not be negative")
	}

	w := a.Weights
	for _, weight := range []struct {
		name  string
		value float64
	}{
		{"frequency", w.Frequency},
		{"length", w.Length},
		{"time_saved", w.TimeSaved},
		{"regularity", w.Regularity},
	} {
		if weight.value < 0 || math.IsNaN(weight.value) {
			return chronerrors.NewConfigError("analysis.weights."+weight.name, "must be a non-negative number")
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > weightTolerance {
		return chronerrors.NewConfigError("analysis.weights",
			fmt.Sprintf("weights must sum to 1.0, got %g", sum))
	}

	return nil
}

// Validate checks the classifier scheme.
func (c *ClassifierConfig) Validate() error {
	if !slices.Contains(ValidClassifierSchemes, c.Scheme) {
		return chronerrors.NewConfigError("classifier.scheme", "must be one of: keyword, regex")
	}
	if c.Scheme == "regex" && len(c.Rules) == 0 {
		return chronerrors.NewConfigError("classifier.rules", "regex scheme requires at least one rule")
	}
	for i, rule := range c.Rules {
		if rule.Category == "" || rule.Pattern == "" {
			return chronerrors.NewConfigError("classifier.rules",
				fmt.Sprintf("rule %d needs both category and pattern", i))
		}
	}
	return nil
}

// setDefaults sets default configuration values on the global viper instance
func setDefaults() {
	applyDefaults(viper.GetViper())
}

func applyDefaults(v *viper.Viper) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fall back to current directory if home dir can't be determined
		homeDir = "."
	}

	// Analysis defaults
	v.SetDefault("analysis.max_pattern_length", 5)
	v.SetDefault("analysis.min_support", 2)
	v.SetDefault("analysis.top_n", 20)
	v.SetDefault("analysis.session_idle_threshold", 30*time.Minute)
	v.SetDefault("analysis.command_cost", 5*time.Second)
	v.SetDefault("analysis.workers", 0)
	v.SetDefault("analysis.timeout", time.Duration(0))
	v.SetDefault("analysis.subcommand_tools", DefaultSubcommandTools())

	// Scorer weights: frequency and time saved dominate, regularity refines
	v.SetDefault("analysis.weights.frequency", 0.35)
	v.SetDefault("analysis.weights.length", 0.20)
	v.SetDefault("analysis.weights.time_saved", 0.30)
	v.SetDefault("analysis.weights.regularity", 0.15)

	// Classifier defaults
	v.SetDefault("classifier.scheme", "keyword")
	v.SetDefault("classifier.categories", map[string][]string{})
	v.SetDefault("classifier.order", []string{})
	v.SetDefault("classifier.rules", []ClassifierRule{})

	// History defaults
	v.SetDefault("history.source", "auto")
	v.SetDefault("history.database_path", filepath.Join(homeDir, ".histdb", "zsh-history.db"))
	v.SetDefault("history.zsh_history_path", filepath.Join(homeDir, ".zsh_history"))
	v.SetDefault("history.bash_history_path", filepath.Join(homeDir, ".bash_history"))
	v.SetDefault("history.fish_history_path", filepath.Join(homeDir, ".local", "share", "fish", "fish_history"))
	v.SetDefault("history.ignore_patterns", []string{`^history$`, `^clear$`, `^exit$`, `^logout$`, `^pwd$`})
	v.SetDefault("history.limit", 0)

	// Store defaults
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", filepath.Join(homeDir, ".local", "share", "chronicle", "runs.db"))

	// Output defaults (empty means text on a terminal, json otherwise)
	v.SetDefault("output.format", "")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", false)
}

// DefaultSubcommandTools returns the tools whose first bare-word argument is
// part of the command identity (git commit vs git push).
func DefaultSubcommandTools() []string {
	return []string{
		"git", "gh", "hg", "svn",
		"docker", "podman", "kubectl", "helm", "incus", "lxc",
		"go", "cargo", "npm", "yarn", "pnpm", "pip", "uv", "make", "mvn", "gradle", "bundle", "rake",
		"systemctl", "launchctl", "brew", "apt", "apt-get", "dnf",
		"nix", "terraform", "aws", "gcloud", "az",
		"tmux", "poetry",
	}
}

// expandPaths expands ~ and environment variables in paths
func expandPaths(config *Config) error {
	var err error

	for _, p := range []*string{
		&config.History.DatabasePath,
		&config.History.ZshHistoryPath,
		&config.History.BashHistoryPath,
		&config.History.FishHistoryPath,
		&config.Store.Path,
	} {
		*p, err = expandPath(*p)
		if err != nil {
			return err
		}
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, path[1:]), nil
}
