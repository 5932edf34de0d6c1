package domain

import (
	"context"
	"time"
)

// ─── Store Interfaces ───────────────────────────────────────────────────────
// Infrastructure implements them; the gamification layer depends on them.
// Lookups return (nil, nil) when the record does not exist.

// ProfileStore persists gamification profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*GamificationProfile, error)
	// CreateProfile inserts p unless a profile already exists (idempotent).
	CreateProfile(ctx context.Context, p GamificationProfile) error
	// ApplyProfileUpdate increments total XP by u.TotalXPDelta, sets the level
	// fields and returns the stored profile.
	ApplyProfileUpdate(ctx context.Context, userID string, u ProfileUpdate) (*GamificationProfile, error)
	SaveStreak(ctx context.Context, userID string, s Streak) error
	IncrementMissionStats(ctx context.Context, userID string, d MissionStatsDelta) error
	SetPremium(ctx context.Context, userID string, premium bool) error
}

// MissionHistoryStore persists mission attempts.
type MissionHistoryStore interface {
	InsertMissionProgress(ctx context.Context, p MissionProgress) error
	GetMissionProgress(ctx context.Context, id string) (*MissionProgress, error)
	UpdateMissionProgress(ctx context.Context, p MissionProgress) error
	// RecentMissionProgress returns the n most recently active records, newest first.
	RecentMissionProgress(ctx context.Context, userID string, n int) ([]MissionProgress, error)
}

// RewardSink accepts earned rewards for the claim flow.
type RewardSink interface {
	// AddRewards writes all rewards in one batch.
	AddRewards(ctx context.Context, rewards []EarnedReward) error
	ListRewards(ctx context.Context, userID string) ([]EarnedReward, error)
	GetReward(ctx context.Context, id string) (*EarnedReward, error)
	UpdateReward(ctx context.Context, r EarnedReward) error
	// ExpireRewards flips pending rewards whose expiry is before t.
	ExpireRewards(ctx context.Context, t time.Time) (int64, error)
}

// DDAStore persists per-user difficulty engine records.
type DDAStore interface {
	GetDDAState(ctx context.Context, userID string) (*DDAState, error)
	SaveDDAState(ctx context.Context, s DDAState) error
}

// BadgeStore records unlocked badges.
type BadgeStore interface {
	// UnlockBadge returns false if the badge was already unlocked.
	UnlockBadge(ctx context.Context, userID, badgeID string, at time.Time) (bool, error)
	ListBadges(ctx context.Context, userID string) ([]UnlockedBadge, error)
}

// NotificationStore persists queued notifications.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n Notification) (int64, error)
	NotificationCountSince(ctx context.Context, userID string, since time.Time) (int, error)
	ListPendingNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkNotificationShown(ctx context.Context, id int64) error
}

// Store is the full persistence surface of the service.
type Store interface {
	ProfileStore
	MissionHistoryStore
	RewardSink
	DDAStore
	BadgeStore
	NotificationStore
	Ping(ctx context.Context) error
	Close() error
}

// Locker serializes work on one key across goroutines or processes.
type Locker interface {
	// Lock blocks until the key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
	Ping(ctx context.Context) error
}
