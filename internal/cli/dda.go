package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/piucane/piucane/internal/domain"
)

func init() {
	ddaCmd.AddCommand(ddaInitCmd, ddaShowCmd, ddaEvaluateCmd)
	rootCmd.AddCommand(ddaCmd)
}

var ddaCmd = &cobra.Command{
	Use:   "dda",
	Short: "Inspect and evaluate dynamic difficulty",
}

var ddaInitCmd = &cobra.Command{
	Use:   "init USER",
	Short: "Create the difficulty state for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runDDAInit,
}

var ddaShowCmd = &cobra.Command{
	Use:   "show USER",
	Short: "Show the current difficulty and performance metrics",
	Args:  cobra.ExactArgs(1),
	RunE:  runDDAShow,
}

var ddaEvaluateCmd = &cobra.Command{
	Use:   "evaluate USER",
	Short: "Re-evaluate difficulty and apply an adjustment if due",
	Args:  cobra.ExactArgs(1),
	RunE:  runDDAEvaluate,
}

func runDDAInit(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	st, err := d.Service.InitializeDDA(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printDDAState(cmd.OutOrStdout(), st)
	return nil
}

func runDDAShow(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	st, err := d.Service.DDAState(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printDDAState(cmd.OutOrStdout(), st)
	return nil
}

func runDDAEvaluate(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	adj, err := d.Service.EvaluateDifficulty(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if adj == nil {
		fmt.Fprintf(out, "%s no adjustment\n", yellow("[hold]"))
		return nil
	}
	fmt.Fprintf(out, "%s %s -> %s (score %.2f)\n", green("[adjusted]"),
		adj.FromDifficulty, adj.ToDifficulty, adj.PerformanceScore)
	fmt.Fprintf(out, "  reason: %s\n", adj.Reason)
	return nil
}

func printDDAState(w io.Writer, st *domain.DDAState) {
	fmt.Fprintf(w, "User:         %s\n", bold(st.UserID))
	fmt.Fprintf(w, "Difficulty:   %s (%s-%s)\n", st.CurrentDifficulty, st.MinDifficulty, st.MaxDifficulty)
	fmt.Fprintf(w, "Score:        %.2f\n", st.CurrentPerformanceScore)
	fmt.Fprintf(w, "Completion:   %.2f\n", st.Metrics.CompletionRate)
	fmt.Fprintf(w, "Engagement:   %.2f\n", st.Metrics.EngagementRate)
	fmt.Fprintf(w, "Streak:       %d days\n", st.Metrics.StreakDays)
	fmt.Fprintf(w, "Adjustments:  %d\n", len(st.AdjustmentHistory))
}
