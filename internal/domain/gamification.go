// Package domain holds the PiùCane gamification types.
// Levels, profiles, rewards, missions and the per-user difficulty state.
// Domain types carry no infrastructure dependency.
package domain

import (
	"fmt"
	"time"
)

// MaxLevel is the highest reachable level.
const MaxLevel = 100

// ─── Difficulty ─────────────────────────────────────────────────────────────

// Difficulty is a mission difficulty tier.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyMedium   Difficulty = "medium"
	DifficultyHard     Difficulty = "hard"
	DifficultyAdaptive Difficulty = "adaptive" // resolved through DDA, never a terminal tier
)

// DifficultyScale is the ordered fixed scale DDA moves along.
var DifficultyScale = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Rank returns the index of d on DifficultyScale, or -1 for adaptive/unknown.
func (d Difficulty) Rank() int {
	for i, s := range DifficultyScale {
		if s == d {
			return i
		}
	}
	return -1
}

// Valid reports whether d is a known difficulty (adaptive included).
func (d Difficulty) Valid() bool {
	return d == DifficultyAdaptive || d.Rank() >= 0
}

// ParseDifficulty validates a difficulty string.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(s)
	if !d.Valid() {
		return "", fmt.Errorf("%w: unknown difficulty %q", ErrInvalidInput, s)
	}
	return d, nil
}

// ─── Levels ─────────────────────────────────────────────────────────────────

// LevelRewardKind tags the LevelReward variant.
type LevelRewardKind string

const (
	LevelRewardXP    LevelRewardKind = "xp"
	LevelRewardItem  LevelRewardKind = "item"
	LevelRewardBadge LevelRewardKind = "badge"
)

// LevelReward is a one-time reward granted on reaching a level.
// Only the fields of its Kind are meaningful.
type LevelReward struct {
	Kind    LevelRewardKind `json:"kind"`
	XP      int64           `json:"xp,omitempty"`
	SKU     string          `json:"sku,omitempty"`
	Name    string          `json:"name,omitempty"`
	BadgeID string          `json:"badge_id,omitempty"`
}

// ColorScheme is the UI palette of a level band.
type ColorScheme struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Accent    string `json:"accent"`
}

// Level is one row of the generated level table. Never mutated.
type Level struct {
	Level            int           `json:"level"`
	RequiredXP       int64         `json:"required_xp"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Rewards          []LevelReward `json:"rewards"`
	UnlockedFeatures []string      `json:"unlocked_features"`
	UnlockedMissions []string      `json:"unlocked_missions"`
	UnlockedBadges   []string      `json:"unlocked_badges"`
	ColorScheme      ColorScheme   `json:"color_scheme"`
}

// LevelInfo is the level position derived from a total XP amount.
type LevelInfo struct {
	Level          int     `json:"level"`
	XPToNextLevel  int64   `json:"xp_to_next_level"`
	LevelProgress  float64 `json:"level_progress"`
	CurrentLevelXP int64   `json:"current_level_xp"`
	NextLevelXP    int64   `json:"next_level_xp"`
}

// ─── Profile ────────────────────────────────────────────────────────────────

// Streak tracks consecutive days of activity.
type Streak struct {
	CurrentDays   int       `json:"current_days" bson:"current_days"`
	LongestDays   int       `json:"longest_days" bson:"longest_days"`
	LastDate      time.Time `json:"last_date" bson:"last_date"`
	FreezeUsed    bool      `json:"freeze_used" bson:"freeze_used"`         // 1 free freeze per week
	FreezeWeekISO string    `json:"freeze_week_iso" bson:"freeze_week_iso"` // "2025-W28"
}

// ProfileStats are the historical aggregates DDA seeds from.
type ProfileStats struct {
	MissionsStarted       int     `json:"missions_started" bson:"missions_started"`
	MissionsCompleted     int     `json:"missions_completed" bson:"missions_completed"`
	MissionsFailed        int     `json:"missions_failed" bson:"missions_failed"`
	AverageMissionMinutes float64 `json:"average_mission_minutes" bson:"average_mission_minutes"`
	EngagementRate        float64 `json:"engagement_rate" bson:"engagement_rate"`
}

// GamificationProfile is the per-user progression state.
// CurrentLevel is always derived from TotalXP through the level table.
type GamificationProfile struct {
	UserID        string       `json:"user_id" bson:"_id"`
	TotalXP       int64        `json:"total_xp" bson:"total_xp"`
	CurrentLevel  int          `json:"current_level" bson:"current_level"`
	XPToNextLevel int64        `json:"xp_to_next_level" bson:"xp_to_next_level"`
	LevelProgress float64      `json:"level_progress" bson:"level_progress"`
	Premium       bool         `json:"premium" bson:"premium"`
	Stats         ProfileStats `json:"stats" bson:"stats"`
	Streak        Streak       `json:"streak" bson:"streak"`
	CreatedAt     time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" bson:"updated_at"`
}

// ProfileUpdate is a partial profile write.
// TotalXPDelta is applied as an increment; the level fields are set.
type ProfileUpdate struct {
	TotalXPDelta  int64     `json:"total_xp_delta"`
	CurrentLevel  int       `json:"current_level"`
	XPToNextLevel int64     `json:"xp_to_next_level"`
	LevelProgress float64   `json:"level_progress"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MissionStatsDelta increments the mission aggregates of a profile.
type MissionStatsDelta struct {
	Started   int
	Completed int
	Failed    int
	// Minutes of a completed mission, folded into AverageMissionMinutes.
	Minutes float64
	// Efficiency of a completed mission, folded into EngagementRate.
	Efficiency float64
}

// ─── XP ─────────────────────────────────────────────────────────────────────

// XPSourceType categorizes how XP was earned.
type XPSourceType string

const (
	SourceMission      XPSourceType = "mission"
	SourceBadge        XPSourceType = "badge"
	SourceStreak       XPSourceType = "streak"
	SourceSpecialEvent XPSourceType = "special_event"
	SourceDailyBonus   XPSourceType = "daily_bonus"
)

// XPSource describes the origin of an XP award.
type XPSource struct {
	Type         XPSourceType `json:"type"`
	ID           string       `json:"id,omitempty"`
	Name         string       `json:"name,omitempty"`
	Difficulty   Difficulty   `json:"difficulty,omitempty"`
	QualityBonus *float64     `json:"quality_bonus,omitempty"`
}

// LevelChange summarizes the level effect of an award.
type LevelChange struct {
	PreviousLevel int            `json:"previous_level"`
	NewLevel      int            `json:"new_level"`
	LeveledUp     bool           `json:"leveled_up"`
	Rewards       []EarnedReward `json:"rewards"`
}

// AwardResult is the output of the XP award engine.
type AwardResult struct {
	XPAwarded     int64         `json:"xp_awarded"`
	LevelChange   LevelChange   `json:"level_change"`
	ProfileUpdate ProfileUpdate `json:"profile_update"`
}

// ─── Rewards ────────────────────────────────────────────────────────────────

// RewardType categorizes earned rewards.
type RewardType string

const (
	RewardXP               RewardType = "xp"
	RewardBadge            RewardType = "badge"
	RewardDiscount         RewardType = "discount"
	RewardFreeItem         RewardType = "free_item"
	RewardExclusiveContent RewardType = "exclusive_content"
)

// RewardStatus is the claim state of an earned reward.
type RewardStatus string

const (
	RewardPending RewardStatus = "pending"
	RewardClaimed RewardStatus = "claimed"
	RewardExpired RewardStatus = "expired"
)

// EarnedReward is a reward a user can claim.
type EarnedReward struct {
	ID         string       `json:"id" bson:"_id"`
	UserID     string       `json:"user_id" bson:"user_id"`
	Type       RewardType   `json:"type" bson:"type"`
	Value      string       `json:"value" bson:"value"`
	SKU        string       `json:"sku,omitempty" bson:"sku,omitempty"`
	Code       string       `json:"code,omitempty" bson:"code,omitempty"`
	Status     RewardStatus `json:"status" bson:"status"`
	EarnedAt   time.Time    `json:"earned_at" bson:"earned_at"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	ClaimedAt  *time.Time   `json:"claimed_at,omitempty" bson:"claimed_at,omitempty"`
	SourceType string       `json:"source_type" bson:"source_type"`
	SourceID   string       `json:"source_id" bson:"source_id"`
	SourceName string       `json:"source_name" bson:"source_name"`
}

// Claimable reports whether the reward can move to claimed at t.
func (r EarnedReward) Claimable(t time.Time) bool {
	if r.Status != RewardPending {
		return false
	}
	return r.ExpiresAt == nil || t.Before(*r.ExpiresAt)
}

// ─── Dynamic Difficulty Adjustment ──────────────────────────────────────────

// PerformanceMetrics are the DDA inputs computed from recent missions.
type PerformanceMetrics struct {
	CompletionRate        float64 `json:"completion_rate" bson:"completion_rate"`
	AverageTimeToComplete float64 `json:"average_time_to_complete" bson:"average_time_to_complete"`
	StreakDays            int     `json:"streak_days" bson:"streak_days"`
	DropRate              float64 `json:"drop_rate" bson:"drop_rate"`
	EngagementRate        float64 `json:"engagement_rate" bson:"engagement_rate"`
	SessionFrequency      float64 `json:"session_frequency" bson:"session_frequency"`
}

// ScoreBand is an inclusive score range.
type ScoreBand struct {
	Min float64 `json:"min" bson:"min" toml:"min"`
	Max float64 `json:"max" bson:"max" toml:"max"`
}

// DDAThresholds split the performance score into three bands.
type DDAThresholds struct {
	DecreaseDifficulty float64   `json:"decrease_difficulty" bson:"decrease_difficulty" toml:"decrease_difficulty"`
	MaintainDifficulty ScoreBand `json:"maintain_difficulty" bson:"maintain_difficulty" toml:"maintain_difficulty"`
	IncreaseDifficulty float64   `json:"increase_difficulty" bson:"increase_difficulty" toml:"increase_difficulty"`
}

// DefaultDDAThresholds returns the standard bands.
func DefaultDDAThresholds() DDAThresholds {
	return DDAThresholds{
		DecreaseDifficulty: 0.4,
		MaintainDifficulty: ScoreBand{Min: 0.45, Max: 0.65},
		IncreaseDifficulty: 0.7,
	}
}

// Validate enforces decrease < maintain.min <= maintain.max < increase.
func (t DDAThresholds) Validate() error {
	if !(t.DecreaseDifficulty < t.MaintainDifficulty.Min &&
		t.MaintainDifficulty.Min <= t.MaintainDifficulty.Max &&
		t.MaintainDifficulty.Max < t.IncreaseDifficulty) {
		return fmt.Errorf("%w: thresholds must satisfy decrease < maintain.min <= maintain.max < increase (got %.2f, %.2f-%.2f, %.2f)",
			ErrInvalidInput, t.DecreaseDifficulty, t.MaintainDifficulty.Min, t.MaintainDifficulty.Max, t.IncreaseDifficulty)
	}
	return nil
}

// DDAdjustment records one difficulty change. Append-only.
type DDAdjustment struct {
	Timestamp        time.Time  `json:"timestamp" bson:"timestamp"`
	FromDifficulty   Difficulty `json:"from_difficulty" bson:"from_difficulty"`
	ToDifficulty     Difficulty `json:"to_difficulty" bson:"to_difficulty"`
	Reason           string     `json:"reason" bson:"reason"`
	PerformanceScore float64    `json:"performance_score" bson:"performance_score"`
	CompletionRate   float64    `json:"completion_rate" bson:"completion_rate"`
	StreakDays       int        `json:"streak_days" bson:"streak_days"`
	EngagementRate   float64    `json:"engagement_rate" bson:"engagement_rate"`
	DropRate         float64    `json:"drop_rate" bson:"drop_rate"`
}

// DDAState is the persisted per-user difficulty engine record.
type DDAState struct {
	UserID                  string             `json:"user_id" bson:"_id"`
	CurrentDifficulty       Difficulty         `json:"current_difficulty" bson:"current_difficulty"`
	CurrentPerformanceScore float64            `json:"current_performance_score" bson:"current_performance_score"`
	Metrics                 PerformanceMetrics `json:"metrics" bson:"metrics"`
	AdaptationSensitivity   float64            `json:"adaptation_sensitivity" bson:"adaptation_sensitivity"`
	MinDifficulty           Difficulty         `json:"min_difficulty" bson:"min_difficulty"`
	MaxDifficulty           Difficulty         `json:"max_difficulty" bson:"max_difficulty"`
	AdjustmentHistory       []DDAdjustment     `json:"adjustment_history" bson:"adjustment_history"`
	LastAdjustmentAt        time.Time          `json:"last_adjustment_at" bson:"last_adjustment_at"`
	Thresholds              DDAThresholds      `json:"thresholds" bson:"thresholds"`
	CreatedAt               time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt               time.Time          `json:"updated_at" bson:"updated_at"`
}

// ─── Missions ───────────────────────────────────────────────────────────────

// Verification describes how a step is checked.
type Verification struct {
	Type     string `json:"type"` // "photo", "checkin", "none", ...
	Required bool   `json:"required"`
}

// MissionStep is one step of a mission.
type MissionStep struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Instructions     string       `json:"instructions"`
	EstimatedMinutes int          `json:"estimated_minutes"`
	Verification     Verification `json:"verification"`
}

// MissionRewards is the payout of a mission.
type MissionRewards struct {
	XP     int64    `json:"xp"`
	Badges []string `json:"badges,omitempty"`
}

// Mission is a user-facing pet care task.
type Mission struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Category          string         `json:"category"`
	Difficulty        Difficulty     `json:"difficulty"`
	EstimatedDuration int            `json:"estimated_duration"` // minutes
	Steps             []MissionStep  `json:"steps"`
	Rewards           MissionRewards `json:"rewards"`
	Tips              []string       `json:"tips,omitempty"`
}

// Clone returns a deep copy of the mission.
func (m Mission) Clone() Mission {
	cp := m
	cp.Steps = append([]MissionStep(nil), m.Steps...)
	cp.Rewards.Badges = append([]string(nil), m.Rewards.Badges...)
	cp.Tips = append([]string(nil), m.Tips...)
	return cp
}

// MissionStatus is the lifecycle state of a mission attempt.
type MissionStatus string

const (
	MissionActive    MissionStatus = "active"
	MissionCompleted MissionStatus = "completed"
	MissionFailed    MissionStatus = "failed"
)

// MissionProgress is one user's attempt at a mission.
type MissionProgress struct {
	ID             string        `json:"id" bson:"_id"`
	UserID         string        `json:"user_id" bson:"user_id"`
	MissionID      string        `json:"mission_id" bson:"mission_id"`
	Category       string        `json:"category" bson:"category"`
	Difficulty     Difficulty    `json:"difficulty" bson:"difficulty"`
	TotalSteps     int           `json:"total_steps" bson:"total_steps"`
	StepsCompleted int           `json:"steps_completed" bson:"steps_completed"`
	EstimatedMins  int           `json:"estimated_minutes" bson:"estimated_minutes"`
	Status         MissionStatus `json:"status" bson:"status"`
	TimeSpent      float64       `json:"time_spent" bson:"time_spent"` // minutes
	Efficiency     float64       `json:"efficiency" bson:"efficiency"`
	QualityScore   float64       `json:"quality_score" bson:"quality_score"`
	RewardXP       int64         `json:"reward_xp,omitempty" bson:"reward_xp"` // adapted Rewards.XP; 0 = use the calculator
	StartedAt      time.Time     `json:"started_at" bson:"started_at"`
	LastActiveAt   time.Time     `json:"last_active_at" bson:"last_active_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// ─── Badges ─────────────────────────────────────────────────────────────────

// BadgeRarity determines the XP value of a badge.
type BadgeRarity string

const (
	RarityCommon    BadgeRarity = "common"
	RarityRare      BadgeRarity = "rare"
	RarityEpic      BadgeRarity = "epic"
	RarityLegendary BadgeRarity = "legendary"
)

// BadgeDef defines a badge and when it is earned.
type BadgeDef struct {
	ID        string                         `json:"id"`
	Name      string                         `json:"name"`
	Rarity    BadgeRarity                    `json:"rarity"`
	Predicate func(GamificationProfile) bool `json:"-"`
}

// UnlockedBadge records when a user earned a badge.
type UnlockedBadge struct {
	BadgeID    string    `json:"badge_id" bson:"badge_id"`
	UnlockedAt time.Time `json:"unlocked_at" bson:"unlocked_at"`
}

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationType categorizes notifications.
type NotificationType string

const (
	NotifyLevelUp          NotificationType = "level_up"
	NotifyReward           NotificationType = "reward"
	NotifyBadge            NotificationType = "badge"
	NotifyDifficultyChange NotificationType = "difficulty_change"
)

// Notification is a user-facing message waiting for delivery.
type Notification struct {
	ID        int64            `json:"id" bson:"seq"`
	UserID    string           `json:"user_id" bson:"user_id"`
	Type      NotificationType `json:"type" bson:"type"`
	Title     string           `json:"title" bson:"title"`
	Body      string           `json:"body" bson:"body"`
	CreatedAt time.Time        `json:"created_at" bson:"created_at"`
	Shown     bool             `json:"shown" bson:"shown"`
}

// NotificationPolicy governs how often notifications are stored.
type NotificationPolicy struct {
	MaxPerDay  int    `json:"max_per_day" toml:"max_per_day"`
	QuietStart string `json:"quiet_start" toml:"quiet_start"` // "22:00"
	QuietEnd   string `json:"quiet_end" toml:"quiet_end"`     // "08:00"
}

// DefaultNotificationPolicy returns the standard policy.
func DefaultNotificationPolicy() NotificationPolicy {
	return NotificationPolicy{
		MaxPerDay:  3,
		QuietStart: "22:00",
		QuietEnd:   "08:00",
	}
}
