package gamification

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/piucane/piucane/internal/domain"
)

// SourceLevelUp tags rewards emitted by a level-up.
const SourceLevelUp = "level_up"

var sourceMultipliers = map[domain.XPSourceType]float64{
	domain.SourceMission:      1.0,
	domain.SourceBadge:        1.2,
	domain.SourceStreak:       1.5,
	domain.SourceSpecialEvent: 2.0,
	domain.SourceDailyBonus:   0.8,
}

var difficultyMultipliers = map[domain.Difficulty]float64{
	domain.DifficultyEasy:     0.8,
	domain.DifficultyMedium:   1.0,
	domain.DifficultyHard:     1.5,
	domain.DifficultyAdaptive: 1.2,
}

// SourceMultiplier returns the multiplier for an XP source type.
func SourceMultiplier(t domain.XPSourceType) (float64, bool) {
	m, ok := sourceMultipliers[t]
	return m, ok
}

// DifficultyMultiplier returns the multiplier for a difficulty tier.
func DifficultyMultiplier(d domain.Difficulty) (float64, bool) {
	m, ok := difficultyMultipliers[d]
	return m, ok
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Award Engine
// ═══════════════════════════════════════════════════════════════════════════

// XPEngine computes XP awards over profile snapshots. It never persists.
// Safe for concurrent use; the event multiplier may change at runtime.
type XPEngine struct {
	levels     *LevelTable
	loc        *time.Location
	itemExpiry time.Duration

	mu              sync.RWMutex
	eventMultiplier float64

	// Injectable for testing
	now   func() time.Time
	newID func() string
}

// NewXPEngine creates an engine over the level table.
func NewXPEngine(levels *LevelTable, cfg Config) *XPEngine {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	event := cfg.EventMultiplier
	if event <= 0 {
		event = 1.0
	}
	return &XPEngine{
		levels:          levels,
		loc:             loc,
		itemExpiry:      cfg.ItemRewardTTL,
		eventMultiplier: event,
		now:             time.Now,
		newID:           uuid.NewString,
	}
}

// Levels returns the engine's level table.
func (e *XPEngine) Levels() *LevelTable {
	return e.levels
}

// SetEventMultiplier replaces the active special-event multiplier.
func (e *XPEngine) SetEventMultiplier(m float64) error {
	if m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return fmt.Errorf("%w: event multiplier must be positive, got %v", domain.ErrInvalidInput, m)
	}
	e.mu.Lock()
	e.eventMultiplier = m
	e.mu.Unlock()
	return nil
}

// EventMultiplier returns the active special-event multiplier.
func (e *XPEngine) EventMultiplier() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.eventMultiplier
}

// UserMultiplier composes the per-user factors at the current local time:
// premium ×1.5, weekend ×1.2, 18:00-20:59 ×1.1, then the event multiplier.
func (e *XPEngine) UserMultiplier(p domain.GamificationProfile) float64 {
	m := 1.0
	if p.Premium {
		m *= 1.5
	}
	local := e.now().In(e.loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		m *= 1.2
	}
	if h := local.Hour(); h >= 18 && h <= 20 {
		m *= 1.1
	}
	return m * e.EventMultiplier()
}

// AwardXP applies every multiplier to amount and derives the level change.
// The caller persists result.ProfileUpdate and the level-up rewards.
func (e *XPEngine) AwardXP(p domain.GamificationProfile, amount float64, source domain.XPSource) (domain.AwardResult, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return domain.AwardResult{}, fmt.Errorf("%w (got %v)", domain.ErrNonPositiveXP, amount)
	}

	xp, ok := sourceMultipliers[source.Type]
	if !ok {
		return domain.AwardResult{}, fmt.Errorf("%w %q", domain.ErrUnknownSourceType, source.Type)
	}
	xp *= amount

	if source.Difficulty != "" {
		dm, ok := difficultyMultipliers[source.Difficulty]
		if !ok {
			return domain.AwardResult{}, fmt.Errorf("%w: unknown difficulty %q", domain.ErrInvalidInput, source.Difficulty)
		}
		xp *= dm
	}

	if source.QualityBonus != nil {
		q := *source.QualityBonus
		if math.IsNaN(q) || q <= -1 {
			return domain.AwardResult{}, fmt.Errorf("%w: quality bonus must be greater than -1, got %v", domain.ErrInvalidInput, q)
		}
		xp *= 1 + q
	}

	xp = math.Round(xp * e.UserMultiplier(p))
	// float64(MaxInt64) rounds up to 2^63, so >= rejects everything int64 cannot hold.
	if p.TotalXP < 0 || xp >= float64(math.MaxInt64-p.TotalXP) {
		return domain.AwardResult{}, fmt.Errorf("%w (total %d, award %.0f)", domain.ErrXPOverflow, p.TotalXP, xp)
	}
	return e.CreditXP(p, int64(xp))
}

// CreditXP adds an already-final XP amount to the snapshot, without
// multipliers, and emits level-up rewards for every level crossed.
func (e *XPEngine) CreditXP(p domain.GamificationProfile, xp int64) (domain.AwardResult, error) {
	if xp < 0 {
		return domain.AwardResult{}, fmt.Errorf("%w (got %d)", domain.ErrNonPositiveXP, xp)
	}
	if p.TotalXP < 0 || xp > math.MaxInt64-p.TotalXP {
		return domain.AwardResult{}, fmt.Errorf("%w (total %d, award %d)", domain.ErrXPOverflow, p.TotalXP, xp)
	}

	now := e.now()
	prevLevel := e.levels.LevelForXP(p.TotalXP)
	info := e.levels.CalculateLevelFromXP(p.TotalXP + xp)

	change := domain.LevelChange{
		PreviousLevel: prevLevel,
		NewLevel:      info.Level,
		LeveledUp:     info.Level > prevLevel,
	}

	if change.LeveledUp {
		for n := prevLevel + 1; n <= info.Level; n++ {
			rewards, err := e.levelRewards(p.UserID, n, now)
			if err != nil {
				return domain.AwardResult{}, err
			}
			change.Rewards = append(change.Rewards, rewards...)
		}
	}

	return domain.AwardResult{
		XPAwarded:   xp,
		LevelChange: change,
		ProfileUpdate: domain.ProfileUpdate{
			TotalXPDelta:  xp,
			CurrentLevel:  info.Level,
			XPToNextLevel: info.XPToNextLevel,
			LevelProgress: info.LevelProgress,
			UpdatedAt:     now,
		},
	}, nil
}

// levelRewards converts the configured rewards of one level into pending
// EarnedRewards, preserving their XP, item, badge order.
func (e *XPEngine) levelRewards(userID string, n int, now time.Time) ([]domain.EarnedReward, error) {
	level, ok := e.levels.Level(n)
	if !ok {
		return nil, fmt.Errorf("%w: level %d out of range", domain.ErrInvalidInput, n)
	}

	out := make([]domain.EarnedReward, 0, len(level.Rewards))
	for _, lr := range level.Rewards {
		r := domain.EarnedReward{
			ID:         e.newID(),
			UserID:     userID,
			Status:     domain.RewardPending,
			EarnedAt:   now,
			SourceType: SourceLevelUp,
			SourceID:   fmt.Sprintf("level-%d", n),
			SourceName: level.Title,
		}
		switch lr.Kind {
		case domain.LevelRewardXP:
			r.Type = domain.RewardXP
			r.Value = strconv.FormatInt(lr.XP, 10)
		case domain.LevelRewardItem:
			r.Type = domain.RewardFreeItem
			r.Value = lr.Name
			r.SKU = lr.SKU
			if e.itemExpiry > 0 {
				exp := now.Add(e.itemExpiry)
				r.ExpiresAt = &exp
			}
		case domain.LevelRewardBadge:
			r.Type = domain.RewardBadge
			r.Value = lr.BadgeID
		default:
			return nil, fmt.Errorf("%w: unknown level reward kind %q at level %d", domain.ErrInvalidInput, lr.Kind, n)
		}
		out = append(out, r)
	}
	return out, nil
}

// ─── Calculators ────────────────────────────────────────────────────────────

var categoryBaseXP = map[string]float64{
	"health":    50,
	"training":  40,
	"nutrition": 35,
	"grooming":  30,
	"exercise":  30,
	"social":    25,
	"other":     25,
}

// CalculateMissionXP returns the base XP of a mission before award
// multipliers. Unknown categories use the "other" base; an unknown or empty
// difficulty counts as medium.
func CalculateMissionXP(category string, steps int, difficulty domain.Difficulty, quality float64) int64 {
	base, ok := categoryBaseXP[category]
	if !ok {
		base = categoryBaseXP["other"]
	}
	if steps < 1 {
		steps = 1
	}
	dm, ok := difficultyMultipliers[difficulty]
	if !ok {
		dm = 1.0
	}
	return int64(math.Round((base + float64(steps-1)*10) * dm * qualityFactor(quality)))
}

// MissionPayout is the XP a completed attempt pays before user multipliers.
// An attempt started from a mission with Rewards.XP pays that (already
// difficulty-scaled) value adjusted for quality; otherwise the calculator decides.
func MissionPayout(p domain.MissionProgress) int64 {
	if p.RewardXP <= 0 {
		return CalculateMissionXP(p.Category, p.TotalSteps, p.Difficulty, p.QualityScore)
	}
	return int64(math.Round(float64(p.RewardXP) * qualityFactor(p.QualityScore)))
}

func qualityFactor(quality float64) float64 {
	if math.IsNaN(quality) {
		quality = 0.5
	}
	return clamp(1+(quality-0.5)*0.5, 0.75, 1.25)
}

// CalculateStreakXP is a step function of consecutive days.
func CalculateStreakXP(days int) int64 {
	switch {
	case days <= 3:
		return 10
	case days <= 7:
		return 25
	case days <= 14:
		return 50
	case days <= 30:
		return 100
	case days <= 60:
		return 200
	default:
		return 300
	}
}

// CalculateBadgeXP returns the fixed XP of a badge rarity, 0 if unknown.
func CalculateBadgeXP(rarity domain.BadgeRarity) int64 {
	switch rarity {
	case domain.RarityCommon:
		return 25
	case domain.RarityRare:
		return 75
	case domain.RarityEpic:
		return 200
	case domain.RarityLegendary:
		return 500
	}
	return 0
}
