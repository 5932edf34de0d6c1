package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/piucane/piucane/internal/domain"
)

// BadgeService evaluates the badge catalog against profile snapshots.
type BadgeService struct {
	store       domain.BadgeStore
	definitions []domain.BadgeDef
	now         func() time.Time
}

// NewBadgeService creates a badge service over the full catalog.
func NewBadgeService(store domain.BadgeStore) *BadgeService {
	return &BadgeService{
		store:       store,
		definitions: BadgeCatalog(),
		now:         time.Now,
	}
}

// CheckAndUnlock unlocks every catalog badge whose predicate holds for p.
// Returns only newly unlocked badges; already-held ones are skipped.
func (b *BadgeService) CheckAndUnlock(ctx context.Context, p domain.GamificationProfile) ([]domain.BadgeDef, error) {
	held, err := b.heldSet(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	var newlyUnlocked []domain.BadgeDef
	for _, def := range b.definitions {
		if held[def.ID] || def.Predicate == nil || !def.Predicate(p) {
			continue
		}
		isNew, err := b.store.UnlockBadge(ctx, p.UserID, def.ID, b.now())
		if err != nil {
			return nil, fmt.Errorf("unlock %s: %w", def.ID, err)
		}
		if isNew {
			newlyUnlocked = append(newlyUnlocked, def)
		}
	}
	return newlyUnlocked, nil
}

// Grant unlocks a badge outside the catalog, e.g. a level milestone badge.
func (b *BadgeService) Grant(ctx context.Context, userID, badgeID string) (bool, error) {
	return b.store.UnlockBadge(ctx, userID, badgeID, b.now())
}

// ListUnlocked returns the user's badges.
func (b *BadgeService) ListUnlocked(ctx context.Context, userID string) ([]domain.UnlockedBadge, error) {
	return b.store.ListBadges(ctx, userID)
}

// Definitions returns the catalog (for display).
func (b *BadgeService) Definitions() []domain.BadgeDef {
	return b.definitions
}

func (b *BadgeService) heldSet(ctx context.Context, userID string) (map[string]bool, error) {
	unlocked, err := b.store.ListBadges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	held := make(map[string]bool, len(unlocked))
	for _, u := range unlocked {
		held[u.BadgeID] = true
	}
	return held, nil
}

// ─── Badge Catalog ──────────────────────────────────────────────────────────
// Predicates read only the profile snapshot. Level milestone badges
// (level_10, level_25, ...) come from level-up rewards, not from here.

// BadgeCatalog returns every predicate badge.
func BadgeCatalog() []domain.BadgeDef {
	return []domain.BadgeDef{
		// ── Missions ───────────────────────────────────────────────────
		{
			ID: "first_mission", Name: "First Steps", Rarity: domain.RarityCommon,
			Predicate: func(p domain.GamificationProfile) bool { return p.Stats.MissionsCompleted >= 1 },
		},
		{
			ID: "missions_10", Name: "Reliable Owner", Rarity: domain.RarityRare,
			Predicate: func(p domain.GamificationProfile) bool { return p.Stats.MissionsCompleted >= 10 },
		},
		{
			ID: "missions_50", Name: "Care Routine", Rarity: domain.RarityEpic,
			Predicate: func(p domain.GamificationProfile) bool { return p.Stats.MissionsCompleted >= 50 },
		},
		{
			ID: "missions_100", Name: "Mission Master", Rarity: domain.RarityLegendary,
			Predicate: func(p domain.GamificationProfile) bool { return p.Stats.MissionsCompleted >= 100 },
		},

		// ── Streaks ────────────────────────────────────────────────────
		{
			ID: "streak_7", Name: "Week Walker", Rarity: domain.RarityCommon,
			Predicate: func(p domain.GamificationProfile) bool { return p.Streak.LongestDays >= 7 },
		},
		{
			ID: "streak_30", Name: "Monthly Companion", Rarity: domain.RarityRare,
			Predicate: func(p domain.GamificationProfile) bool { return p.Streak.LongestDays >= 30 },
		},
		{
			ID: "streak_100", Name: "Centurion", Rarity: domain.RarityEpic,
			Predicate: func(p domain.GamificationProfile) bool { return p.Streak.LongestDays >= 100 },
		},
		{
			ID: "streak_365", Name: "Year Together", Rarity: domain.RarityLegendary,
			Predicate: func(p domain.GamificationProfile) bool { return p.Streak.LongestDays >= 365 },
		},

		// ── Quality ────────────────────────────────────────────────────
		{
			ID: "efficient_owner", Name: "Efficient Owner", Rarity: domain.RarityRare,
			Predicate: func(p domain.GamificationProfile) bool {
				return p.Stats.MissionsCompleted >= 5 && p.Stats.EngagementRate >= 0.9
			},
		},
	}
}
