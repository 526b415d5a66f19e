package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"thoreinstein.com/chronicle/pkg/bootstrap"
	"thoreinstein.com/chronicle/pkg/config"
	chronerrors "thoreinstein.com/chronicle/pkg/errors"
)

var cfgFile string
var verbose bool
var appConfig *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chronicle",
	Short: "Chronicle - mine shell history for automation opportunities",
	Long: `Chronicle reads your shell history from a zsh-histdb or atuin database, or
from zsh, bash and fish history files. It finds the command sequences you repeat
and ranks them by how much automating them would save you.

Each recurring workflow is scored from its frequency, its length, the time it
costs you and how regularly it happens, grouped into categories, and turned
into an alias, function or script suggestion.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, chronerrors.FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "C", "", "config file (default is $HOME/.config/chronicle/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig returns the configuration derived from the config file, the
// repository-local config and the environment.
func loadConfig() (*config.Config, error) {
	var err error
	appConfig, verbose, err = bootstrap.InitConfig(cfgFile, verbose)
	if err != nil {
		return nil, err
	}
	return appConfig, nil
}

// resetConfig clears the cached configuration.
// This is primarily used in tests to ensure each test starts with a fresh config.
func resetConfig() {
	appConfig = nil
	bootstrap.Reset()
	viper.Reset()
}

// newLogger returns the logger shared by the components of one command run.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
