package cli

import (
	"fmt"
	"strings"

	"github.com/piucane/piucane/internal/domain"
)

// ─── Level Bar ──────────────────────────────────────────────────────────────
// Renders level progress for the profile command:
//   Lv 9 [==>...........................]  10% | 2570 XP to Lv 10

const barWidth = 30 // Characters for the progress bar

// levelBar renders info as a one-line progress bar. maxLevel caps the bar
// at 100% once the table is exhausted.
func levelBar(info domain.LevelInfo, maxLevel int) string {
	pct := info.LevelProgress * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if info.Level >= maxLevel {
		pct = 100
	}

	// Build the bar: [=======>............]
	filled := int(pct / 100 * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	empty := barWidth - filled

	var bar string
	if filled == barWidth {
		bar = strings.Repeat("=", filled)
	} else if filled > 0 {
		bar = strings.Repeat("=", filled-1) + ">" + strings.Repeat(".", empty)
	} else {
		bar = strings.Repeat(".", barWidth)
	}

	if info.Level >= maxLevel {
		return fmt.Sprintf("Lv %d [%s] %3.0f%% | max level", info.Level, bar, pct)
	}
	return fmt.Sprintf("Lv %d [%s] %3.0f%% | %d XP to Lv %d",
		info.Level, bar, pct, info.XPToNextLevel, info.Level+1)
}
