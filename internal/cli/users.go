package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/piucane/piucane/internal/domain"
)

func init() {
	awardCmd.Flags().StringVar(&awardType, "type", string(domain.SourceSpecialEvent), "XP source type (mission, badge, streak, special_event, daily_bonus)")
	awardCmd.Flags().StringVar(&awardName, "name", "", "Source name shown on rewards")
	activityCmd.Flags().StringVar(&activityDate, "date", "", "Day to record (YYYY-MM-DD, default today)")

	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(awardCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(rewardsCmd)
	rootCmd.AddCommand(claimCmd)
}

var (
	awardType    string
	awardName    string
	activityDate string
)

var profileCmd = &cobra.Command{
	Use:   "profile USER",
	Short: "Show a user's level, streak and badges",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfile,
}

var awardCmd = &cobra.Command{
	Use:   "award USER AMOUNT",
	Short: "Award XP to a user (multipliers apply)",
	Args:  cobra.ExactArgs(2),
	RunE:  runAward,
}

var activityCmd = &cobra.Command{
	Use:   "activity USER",
	Short: "Record a day of activity toward the user's streak",
	Args:  cobra.ExactArgs(1),
	RunE:  runActivity,
}

var rewardsCmd = &cobra.Command{
	Use:   "rewards USER",
	Short: "List a user's earned rewards",
	Args:  cobra.ExactArgs(1),
	RunE:  runRewards,
}

var claimCmd = &cobra.Command{
	Use:   "claim USER REWARD_ID",
	Short: "Claim a pending reward",
	Args:  cobra.ExactArgs(2),
	RunE:  runClaim,
}

func runProfile(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	p, err := d.Service.GetProfile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	badges, err := d.Service.ListBadges(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	levels := d.Service.Levels()
	info := levels.CalculateLevelFromXP(p.TotalXP)
	title := ""
	if l, ok := levels.Level(info.Level); ok {
		title = l.Title
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "User:       %s\n", bold(p.UserID))
	fmt.Fprintf(out, "Level:      %d %s\n", info.Level, title)
	fmt.Fprintf(out, "Total XP:   %d\n", p.TotalXP)
	fmt.Fprintf(out, "Premium:    %t\n", p.Premium)
	fmt.Fprintf(out, "Streak:     %d days (longest %d)\n", p.Streak.CurrentDays, p.Streak.LongestDays)
	fmt.Fprintf(out, "Missions:   %d completed\n", p.Stats.MissionsCompleted)
	fmt.Fprintf(out, "Badges:     %d\n", len(badges))
	fmt.Fprintf(out, "  %s\n", levelBar(info, levels.Max()))
	return nil
}

func runAward(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("amount must be a number: %q", args[1])
	}

	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	src := domain.XPSource{Type: domain.XPSourceType(awardType), Name: awardName}
	res, err := d.Service.AwardXP(cmd.Context(), args[0], amount, src)
	if err != nil {
		return err
	}
	printAward(cmd.OutOrStdout(), res)
	return nil
}

func runActivity(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	ec, err := d.Config.EngineConfig()
	if err != nil {
		return err
	}
	day, err := parseDay(activityDate, ec.Location, time.Now())
	if err != nil {
		return err
	}

	res, err := d.Service.RecordActivity(cmd.Context(), args[0], day)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !res.Counted {
		fmt.Fprintf(out, "%s already counted, streak %d days\n", yellow("[skip]"), res.Streak.CurrentDays)
		return nil
	}
	fmt.Fprintf(out, "%s streak %d days\n", green("[ok]"), res.Streak.CurrentDays)
	printAward(out, res.Award)
	for _, b := range res.Badges {
		fmt.Fprintf(out, "%s %s (%s) +%d XP\n", cyan("[badge]"), b.Name, b.Rarity, b.XPAwarded)
	}
	return nil
}

func runRewards(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	rewards, err := d.Service.ListRewards(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(rewards) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No rewards yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tVALUE\tSTATUS\tSOURCE\tEARNED")
	for _, r := range rewards {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Type,
			r.Value,
			r.Status,
			r.SourceName,
			r.EarnedAt.Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}

func runClaim(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.Service.ClaimReward(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s %s\n", green("[claimed]"), res.Reward.Type, res.Reward.Value)
	if res.Reward.Code != "" {
		fmt.Fprintf(out, "  code: %s\n", res.Reward.Code)
	}
	printAward(out, res.Award)
	return nil
}
