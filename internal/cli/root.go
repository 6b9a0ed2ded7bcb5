// Package cli implements the airgrid command-line interface.
package cli

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "airgrid",
	Short: "Programming generator for virtual TV channels",
	Long: `airgrid generates and evaluates programming schedules for virtual TV
channels: randomized candidate schedules assembled by weighted
multi-criterion scoring against a user-authored profile, with optional
improvement and forbidden-replacement passes.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "airgrid.toml", "Path to the TOML service config")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger.
func newLogger(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(lvl).With().Timestamp().Logger()
}
