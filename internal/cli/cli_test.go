package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/piucane/piucane/internal/domain"
)

// runCLI executes the root command against a fresh PIUCANE_HOME-backed
// daemon and returns everything written to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	// Flag vars are package globals; reset them between invocations.
	levelsLimit = 20
	awardType = string(domain.SourceSpecialEvent)
	awardName = ""
	activityDate = ""
	configForce = false

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func setHome(t *testing.T) {
	t.Helper()
	t.Setenv("PIUCANE_HOME", t.TempDir())
}

func TestLevelBar(t *testing.T) {
	tests := []struct {
		name string
		info domain.LevelInfo
		want string
	}{
		{"empty", domain.LevelInfo{Level: 1, XPToNextLevel: 100}, "Lv 1 [" + strings.Repeat(".", barWidth) + "]   0% | 100 XP to Lv 2"},
		{"half", domain.LevelInfo{Level: 3, LevelProgress: 0.5, XPToNextLevel: 50}, "Lv 3 [" + strings.Repeat("=", 14) + ">" + strings.Repeat(".", 15) + "]  50% | 50 XP to Lv 4"},
		{"max", domain.LevelInfo{Level: 100, LevelProgress: 1}, "Lv 100 [" + strings.Repeat("=", barWidth) + "] 100% | max level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := levelBar(tt.info, 100); got != tt.want {
				t.Errorf("levelBar() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestLevelsCommand(t *testing.T) {
	out, err := runCLI(t, "levels", "--limit", "3")
	if err != nil {
		t.Fatalf("levels: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("levels printed %d lines, want header + 3:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[2], "100") || !strings.Contains(lines[3], "459") {
		t.Errorf("levels output:\n%s", out)
	}
}

func TestLevelCommand(t *testing.T) {
	out, err := runCLI(t, "level", "5")
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	if !strings.Contains(out, "Required XP:  2111") {
		t.Errorf("level 5 output:\n%s", out)
	}
	if !strings.Contains(out, "+50 XP") {
		t.Errorf("level 5 should list its XP reward:\n%s", out)
	}

	if _, err := runCLI(t, "level", "101"); err == nil {
		t.Error("level 101 should fail")
	}
	if _, err := runCLI(t, "level", "five"); err == nil {
		t.Error("non-numeric level should fail")
	}
}

func TestCalcCommand(t *testing.T) {
	out, err := runCLI(t, "calc", "10000")
	if err != nil {
		t.Fatalf("calc: %v", err)
	}
	if !strings.Contains(out, "Lv 9 [") || !strings.Contains(out, "2570 XP to Lv 10") {
		t.Errorf("calc output: %q", out)
	}
}

func TestProfileFlow(t *testing.T) {
	setHome(t)

	if _, err := runCLI(t, "profile", "rex"); err == nil {
		t.Fatal("profile of an unknown user should fail")
	}

	out, err := runCLI(t, "award", "rex", "2200", "--name", "welcome")
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if !strings.Contains(out, "[xp] +") || !strings.Contains(out, "[level up] level 1 -> ") {
		t.Errorf("award output:\n%s", out)
	}

	out, err = runCLI(t, "profile", "rex")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if !strings.Contains(out, "User:       rex") || !strings.Contains(out, "Lv ") {
		t.Errorf("profile output:\n%s", out)
	}

	out, err = runCLI(t, "rewards", "rex")
	if err != nil {
		t.Fatalf("rewards: %v", err)
	}
	if !strings.Contains(out, "STATUS") || !strings.Contains(out, string(domain.RewardPending)) {
		t.Errorf("rewards output:\n%s", out)
	}

	if _, err := runCLI(t, "claim", "rex", "missing-reward"); err == nil {
		t.Error("claiming an unknown reward should fail")
	}
	if _, err := runCLI(t, "award", "rex", "lots"); err == nil {
		t.Error("non-numeric amount should fail")
	}
}

func TestActivityCommand(t *testing.T) {
	setHome(t)

	out, err := runCLI(t, "activity", "rex", "--date", "2025-07-01")
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if !strings.Contains(out, "[ok] streak 1 days") {
		t.Errorf("first activity output:\n%s", out)
	}

	out, err = runCLI(t, "activity", "rex", "--date", "2025-07-01")
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if !strings.Contains(out, "[skip]") {
		t.Errorf("repeat activity output:\n%s", out)
	}

	out, err = runCLI(t, "activity", "rex", "--date", "2025-07-02")
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if !strings.Contains(out, "[ok] streak 2 days") {
		t.Errorf("next-day activity output:\n%s", out)
	}

	if _, err := runCLI(t, "activity", "rex", "--date", "01/07/2025"); err == nil {
		t.Error("malformed date should fail")
	}
}

func TestDDACommands(t *testing.T) {
	setHome(t)

	if _, err := runCLI(t, "dda", "show", "rex"); err == nil {
		t.Fatal("dda show before init should fail")
	}

	out, err := runCLI(t, "dda", "init", "rex")
	if err != nil {
		t.Fatalf("dda init: %v", err)
	}
	if !strings.Contains(out, "Difficulty:   medium") {
		t.Errorf("dda init output:\n%s", out)
	}

	out, err = runCLI(t, "dda", "evaluate", "rex")
	if err != nil {
		t.Fatalf("dda evaluate: %v", err)
	}
	if !strings.Contains(out, "[adjusted] medium -> easy") {
		t.Errorf("dda evaluate output:\n%s", out)
	}

	out, err = runCLI(t, "dda", "evaluate", "rex")
	if err != nil {
		t.Fatalf("dda evaluate: %v", err)
	}
	if !strings.Contains(out, "[hold]") {
		t.Errorf("evaluate within cooldown should hold:\n%s", out)
	}
}

func TestConfigCommands(t *testing.T) {
	setHome(t)

	out, err := runCLI(t, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "config.toml") {
		t.Errorf("config init output: %q", out)
	}
	if _, err := runCLI(t, "config", "init"); err == nil {
		t.Error("second config init without --force should fail")
	}
	if _, err := runCLI(t, "config", "init", "--force"); err != nil {
		t.Errorf("config init --force: %v", err)
	}

	out, err = runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "[gamification]") || !strings.Contains(out, `timezone = "Europe/Rome"`) {
		t.Errorf("config show output:\n%s", out)
	}
}
