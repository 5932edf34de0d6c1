package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/piucane/piucane/internal/daemon"
	"github.com/piucane/piucane/internal/domain"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// openDaemon loads the config and wires the store, lock and service
// without starting the HTTP server.
func openDaemon(cmd *cobra.Command) (*daemon.Daemon, error) {
	return daemon.New(cmd.Context())
}

// parseDay accepts YYYY-MM-DD in loc, or returns now when s is empty.
func parseDay(s string, loc *time.Location, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	// Noon avoids DST edges when the day is later truncated.
	return t.Add(12 * time.Hour), nil
}

func printAward(w io.Writer, res *domain.AwardResult) {
	if res == nil {
		return
	}
	fmt.Fprintf(w, "%s +%d XP, level %d, %d XP to next\n", green("[xp]"), res.XPAwarded,
		res.ProfileUpdate.CurrentLevel, res.ProfileUpdate.XPToNextLevel)
	if res.LevelChange.LeveledUp {
		fmt.Fprintf(w, "%s level %d -> %d\n", yellow("[level up]"),
			res.LevelChange.PreviousLevel, res.LevelChange.NewLevel)
		for _, r := range res.LevelChange.Rewards {
			fmt.Fprintf(w, "  %s %s %s\n", cyan("reward"), r.Type, r.Value)
		}
	}
}
