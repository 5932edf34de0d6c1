package gamification

import (
	"fmt"
	"math"
	"sort"

	"github.com/piucane/piucane/internal/domain"
)

// RequiredXP returns the cumulative XP needed to reach a level.
// requiredXP(1) = 0, requiredXP(n) = round((n-1)^2.2 × 100).
func RequiredXP(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(math.Round(math.Pow(float64(level-1), 2.2) * 100))
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Table
// ═══════════════════════════════════════════════════════════════════════════

// LevelTable is the generated 1..100 progression table. Read-only after creation.
type LevelTable struct {
	levels []domain.Level
}

// NewLevelTable generates the table.
func NewLevelTable() *LevelTable {
	return &LevelTable{levels: GenerateLevels()}
}

// Levels returns every level in ascending order. Callers must not mutate it.
func (t *LevelTable) Levels() []domain.Level {
	return t.levels
}

// Level returns a single level. ok is false outside 1..100.
func (t *LevelTable) Level(n int) (domain.Level, bool) {
	if n < 1 || n > len(t.levels) {
		return domain.Level{}, false
	}
	return t.levels[n-1], true
}

// Max returns the highest level.
func (t *LevelTable) Max() int {
	return len(t.levels)
}

// LevelForXP returns the largest level whose threshold is at most totalXP.
func (t *LevelTable) LevelForXP(totalXP int64) int {
	level := 1
	for _, l := range t.levels {
		if l.RequiredXP > totalXP {
			break
		}
		level = l.Level
	}
	return level
}

// CalculateLevelFromXP derives the level position for a total XP amount.
// Negative totals are treated as zero.
func (t *LevelTable) CalculateLevelFromXP(totalXP int64) domain.LevelInfo {
	if totalXP < 0 {
		totalXP = 0
	}
	level := t.LevelForXP(totalXP)
	current := t.levels[level-1].RequiredXP

	if level >= t.Max() {
		return domain.LevelInfo{
			Level:          level,
			XPToNextLevel:  0,
			LevelProgress:  1,
			CurrentLevelXP: current,
			NextLevelXP:    current,
		}
	}

	next := t.levels[level].RequiredXP
	progress := 1.0
	if span := next - current; span > 0 {
		progress = clamp(float64(totalXP-current)/float64(span), 0, 1)
	}
	return domain.LevelInfo{
		Level:          level,
		XPToNextLevel:  next - totalXP,
		LevelProgress:  progress,
		CurrentLevelXP: current,
		NextLevelXP:    next,
	}
}

// ─── Generation ─────────────────────────────────────────────────────────────

type levelBand struct {
	from   int
	title  string
	blurb  string
	colors domain.ColorScheme
}

var levelBands = []levelBand{
	{1, "Puppy Pal", "Just getting started with your dog.", domain.ColorScheme{Primary: "#F9C74F", Secondary: "#FFF3C4", Accent: "#F8961E"}},
	{10, "Good Companion", "Daily care is becoming a habit.", domain.ColorScheme{Primary: "#90BE6D", Secondary: "#E3F2D9", Accent: "#43AA8B"}},
	{25, "Pack Leader", "Your dog trusts your routine.", domain.ColorScheme{Primary: "#4D908E", Secondary: "#D6ECEB", Accent: "#277DA1"}},
	{50, "Canine Expert", "Care, training and nutrition under control.", domain.ColorScheme{Primary: "#577590", Secondary: "#DDE5EE", Accent: "#F94144"}},
	{75, "Dog Whisperer", "Few owners reach this bond.", domain.ColorScheme{Primary: "#6A4C93", Secondary: "#E9E1F4", Accent: "#FFCA3A"}},
	{100, "PiùCane Legend", "The highest rank in the PiùCane community.", domain.ColorScheme{Primary: "#1B1B1E", Secondary: "#D4AF37", Accent: "#FFFFFF"}},
}

var featureUnlocks = map[int][]string{
	1:   {"basic_missions", "profile"},
	5:   {"advanced_missions"},
	10:  {"community_challenges"},
	15:  {"custom_reminders"},
	20:  {"expert_missions"},
	30:  {"priority_support"},
	50:  {"exclusive_content"},
	75:  {"vip_events"},
	100: {"legend_perks"},
}

var missionUnlocks = map[int][]string{
	1:  {"daily_walk", "basic_training"},
	5:  {"advanced_training"},
	10: {"agility_course"},
	20: {"nutrition_plan"},
	40: {"expert_challenges"},
}

// Catalog badges become visible once the level reaches their rarity tier.
var rarityUnlockLevel = map[domain.BadgeRarity]int{
	domain.RarityCommon:    1,
	domain.RarityRare:      10,
	domain.RarityEpic:      25,
	domain.RarityLegendary: 50,
}

type itemReward struct {
	sku  string
	name string
}

var milestoneItems = map[int]itemReward{
	5:   {"treat_sample", "Treat sample pack"},
	10:  {"toy_voucher", "Toy voucher"},
	25:  {"premium_food_sample", "Premium food sample"},
	50:  {"grooming_kit", "Grooming kit"},
	100: {"lifetime_box", "Lifetime surprise box"},
}

var milestoneBadges = map[int]bool{10: true, 25: true, 50: true, 75: true, 100: true}

// GenerateLevels builds the 100-level table. Deterministic.
func GenerateLevels() []domain.Level {
	levels := make([]domain.Level, 0, domain.MaxLevel)

	var features, missions []string
	for n := 1; n <= domain.MaxLevel; n++ {
		band := bandFor(n)
		features = appendSorted(features, featureUnlocks[n]...)
		missions = appendSorted(missions, missionUnlocks[n]...)

		levels = append(levels, domain.Level{
			Level:            n,
			RequiredXP:       RequiredXP(n),
			Title:            band.title,
			Description:      fmt.Sprintf("Level %d. %s", n, band.blurb),
			Rewards:          milestoneRewards(n),
			UnlockedFeatures: append([]string(nil), features...),
			UnlockedMissions: append([]string(nil), missions...),
			UnlockedBadges:   badgesUnlockedAt(n),
			ColorScheme:      band.colors,
		})
	}
	return levels
}

func bandFor(level int) levelBand {
	band := levelBands[0]
	for _, b := range levelBands {
		if level >= b.from {
			band = b
		}
	}
	return band
}

// milestoneRewards returns the one-time rewards of a level: XP first, then
// items, then badges. Only every 5th level has any.
func milestoneRewards(level int) []domain.LevelReward {
	if level%5 != 0 {
		return nil
	}
	rewards := []domain.LevelReward{{Kind: domain.LevelRewardXP, XP: int64(level) * 10}}
	if item, ok := milestoneItems[level]; ok {
		rewards = append(rewards, domain.LevelReward{Kind: domain.LevelRewardItem, SKU: item.sku, Name: item.name})
	}
	if milestoneBadges[level] {
		rewards = append(rewards, domain.LevelReward{Kind: domain.LevelRewardBadge, BadgeID: fmt.Sprintf("level_%d", level)})
	}
	return rewards
}

func badgesUnlockedAt(level int) []string {
	var ids []string
	for _, def := range BadgeCatalog() {
		if level >= rarityUnlockLevel[def.Rarity] {
			ids = append(ids, def.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func appendSorted(set []string, items ...string) []string {
	if len(items) == 0 {
		return set
	}
	set = append(set, items...)
	sort.Strings(set)
	return set
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
