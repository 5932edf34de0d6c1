// Package gamification implements the PiùCane progression engine:
// level table, XP awards, dynamic difficulty adjustment, mission
// adaptation, streaks, badges, mission progress and notifications.
//
// The engines (XPEngine, MissionAdapter) compute over snapshots and never
// persist. Service ties them to a domain.Store and a domain.Locker.
package gamification

import (
	"time"

	"github.com/piucane/piucane/internal/domain"
)

// Config controls the gamification engines.
type Config struct {
	// Location used for weekend and happy-hour multipliers.
	Location *time.Location

	// EventMultiplier is the active special-event factor (1.0 = none).
	EventMultiplier float64

	// ItemRewardTTL bounds how long a free-item reward stays claimable.
	ItemRewardTTL time.Duration

	// Cooldown is the minimum gap between two difficulty adjustments.
	Cooldown time.Duration

	// HistoryWindow is how many recent missions feed a DDA evaluation.
	HistoryWindow int

	// StagnantAfter marks an active mission as dropped after this much inactivity.
	StagnantAfter time.Duration

	// Thresholds are the DDA bands given to newly initialized users.
	Thresholds domain.DDAThresholds

	// ExpirySweep is the interval of the background reward expiry sweep.
	ExpirySweep time.Duration

	// LockWait bounds how long a per-user operation waits for its lock.
	LockWait time.Duration

	Notifications domain.NotificationPolicy
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		loc = time.UTC
	}
	return Config{
		Location:        loc,
		EventMultiplier: 1.0,
		ItemRewardTTL:   90 * 24 * time.Hour,
		Cooldown:        24 * time.Hour,
		HistoryWindow:   10,
		StagnantAfter:   72 * time.Hour,
		Thresholds:      domain.DefaultDDAThresholds(),
		ExpirySweep:     time.Hour,
		LockWait:        5 * time.Second,
		Notifications:   domain.DefaultNotificationPolicy(),
	}
}
