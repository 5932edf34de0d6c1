// Package cli implements the PiùCane command-line interface using Cobra.
// Each subcommand maps to a gamification operation (levels, award, dda, etc.).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "piucane",
	Short: "PiùCane gamification engine",
	Long: `PiùCane tracks XP, levels, streaks, badges and rewards for dog owners,
and adapts mission difficulty to how each user is doing.

Run 'piucane serve' to start the HTTP API, or use the subcommands
below to inspect and update profiles directly.`,
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
