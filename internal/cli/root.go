// Package cli implements the PuzzlePup command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "puzzlepup",
	Short: "PuzzlePup — player engagement backend",
	Long: `PuzzlePup is the engagement and reward backend for the puzzle game.
It tracks check-in streaks, weekly challenges, achievements and referral
bonuses, and serves them over an HTTP API backed by a local SQLite store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
