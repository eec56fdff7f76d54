package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "elvagent",
	Short: "Autonomous CI remediation agent for GitHub pull requests",
	Long: `elvagent polls a repository's open pull requests, classifies their CI
state and dispatches workers: a tiered CI fixer (formatter, then a model-guided
patch), a description writer and a reviewer. Every handled event is recorded
in a SQLite ledger so each commit is processed once.

Configuration is read from ELVAGENT_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

// execute runs the root command.
func execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cycleCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(openPRCmd)
}
