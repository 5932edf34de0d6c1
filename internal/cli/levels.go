package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/piucane/piucane/internal/app/gamification"
	"github.com/piucane/piucane/internal/domain"
)

func init() {
	levelsCmd.Flags().IntVar(&levelsLimit, "limit", 20, "Number of levels to show (0 = all)")
	rootCmd.AddCommand(levelsCmd)
	rootCmd.AddCommand(levelCmd)
	rootCmd.AddCommand(calcCmd)
}

var levelsLimit int

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "List the level table",
	Args:  cobra.NoArgs,
	RunE:  runLevels,
}

var levelCmd = &cobra.Command{
	Use:   "level N",
	Short: "Show one level with its rewards and unlocks",
	Args:  cobra.ExactArgs(1),
	RunE:  runLevel,
}

var calcCmd = &cobra.Command{
	Use:   "calc XP",
	Short: "Compute the level position for a total XP amount",
	Args:  cobra.ExactArgs(1),
	RunE:  runCalc,
}

func runLevels(cmd *cobra.Command, args []string) error {
	table := gamification.NewLevelTable()
	levels := table.Levels()
	if levelsLimit > 0 && levelsLimit < len(levels) {
		levels = levels[:levelsLimit]
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LEVEL\tREQUIRED XP\tTITLE\tREWARDS")
	for _, l := range levels {
		fmt.Fprintf(w, "%d\t%d\t%s\t%d\n", l.Level, l.RequiredXP, l.Title, len(l.Rewards))
	}
	return w.Flush()
}

func runLevel(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("level must be an integer: %q", args[0])
	}
	table := gamification.NewLevelTable()
	l, ok := table.Level(n)
	if !ok {
		return fmt.Errorf("level %d not found (1-%d)", n, table.Max())
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Level:        %s\n", bold(l.Level))
	fmt.Fprintf(out, "Title:        %s\n", l.Title)
	fmt.Fprintf(out, "Required XP:  %d\n", l.RequiredXP)
	fmt.Fprintf(out, "Description:  %s\n", l.Description)
	for _, r := range l.Rewards {
		fmt.Fprintf(out, "Reward:       %s\n", describeReward(r))
	}
	if len(l.UnlockedFeatures) > 0 {
		fmt.Fprintf(out, "Features:     %s\n", strings.Join(l.UnlockedFeatures, ", "))
	}
	if len(l.UnlockedMissions) > 0 {
		fmt.Fprintf(out, "Missions:     %s\n", strings.Join(l.UnlockedMissions, ", "))
	}
	if len(l.UnlockedBadges) > 0 {
		fmt.Fprintf(out, "Badges:       %s\n", strings.Join(l.UnlockedBadges, ", "))
	}
	return nil
}

func runCalc(cmd *cobra.Command, args []string) error {
	xp, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("xp must be an integer: %q", args[0])
	}
	table := gamification.NewLevelTable()
	info := table.CalculateLevelFromXP(xp)
	fmt.Fprintln(cmd.OutOrStdout(), levelBar(info, table.Max()))
	return nil
}

func describeReward(r domain.LevelReward) string {
	switch r.Kind {
	case domain.LevelRewardXP:
		return fmt.Sprintf("+%d XP", r.XP)
	case domain.LevelRewardItem:
		return fmt.Sprintf("item %s (%s)", r.Name, r.SKU)
	case domain.LevelRewardBadge:
		return "badge " + r.BadgeID
	}
	return string(r.Kind)
}
