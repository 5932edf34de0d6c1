package gamification

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/piucane/piucane/internal/domain"
)

// wednesdayMorning is outside every time-based multiplier.
var wednesdayMorning = time.Date(2025, 7, 2, 10, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Location = time.UTC
	return cfg
}

func newTestXPEngine(at time.Time) *XPEngine {
	e := NewXPEngine(NewLevelTable(), testConfig())
	e.now = func() time.Time { return at }
	return e
}

// ─── Multipliers ────────────────────────────────────────────────────────────

func TestAwardXP_PureMultiplier(t *testing.T) {
	e := newTestXPEngine(wednesdayMorning)
	p := domain.GamificationProfile{UserID: "u1"}

	for _, amount := range []float64{1, 10, 99, 100, 12345} {
		res, err := e.AwardXP(p, amount, domain.XPSource{Type: domain.SourceMission})
		if err != nil {
			t.Fatalf("AwardXP(%v): %v", amount, err)
		}
		if res.XPAwarded != int64(amount) {
			t.Errorf("mission award %v -> %d, want %v", amount, res.XPAwarded, amount)
		}
	}
}

func TestAwardXP_SourceMultipliers(t *testing.T) {
	e := newTestXPEngine(wednesdayMorning)
	p := domain.GamificationProfile{UserID: "u1"}

	tests := []struct {
		source domain.XPSourceType
		want   int64
	}{
		{domain.SourceMission, 100},
		{domain.SourceBadge, 120},
		{domain.SourceStreak, 150},
		{domain.SourceSpecialEvent, 200},
		{domain.SourceDailyBonus, 80},
	}
	for _, tt := range tests {
		res, err := e.AwardXP(p, 100, domain.XPSource{Type: tt.source})
		if err != nil {
			t.Fatalf("%s: %v", tt.source, err)
		}
		if res.XPAwarded != tt.want {
			t.Errorf("%s: awarded %d, want %d", tt.source, res.XPAwarded, tt.want)
		}
	}
}

func TestAwardXP_DifficultyAndQuality(t *testing.T) {
	e := newTestXPEngine(wednesdayMorning)
	p := domain.GamificationProfile{UserID: "u1"}
	bonus := 0.1

	tests := []struct {
		name   string
		source domain.XPSource
		want   int64
	}{
		{"easy", domain.XPSource{Type: domain.SourceMission, Difficulty: domain.DifficultyEasy}, 80},
		{"hard", domain.XPSource{Type: domain.SourceMission, Difficulty: domain.DifficultyHard}, 150},
		{"adaptive", domain.XPSource{Type: domain.SourceMission, Difficulty: domain.DifficultyAdaptive}, 120},
		{"quality", domain.XPSource{Type: domain.SourceMission, QualityBonus: &bonus}, 110},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.AwardXP(p, 100, tt.source)
			if err != nil {
				t.Fatal(err)
			}
			if res.XPAwarded != tt.want {
				t.Errorf("awarded %d, want %d", res.XPAwarded, tt.want)
			}
		})
	}
}

func TestUserMultiplier(t *testing.T) {
	saturday := time.Date(2025, 7, 5, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		at      time.Time
		premium bool
		want    float64
	}{
		{"weekday morning", wednesdayMorning, false, 1.0},
		{"premium", wednesdayMorning, true, 1.5},
		{"saturday", saturday, false, 1.2},
		{"sunday", saturday.Add(24 * time.Hour), false, 1.2},
		{"18:00", time.Date(2025, 7, 2, 18, 0, 0, 0, time.UTC), false, 1.1},
		{"20:59", time.Date(2025, 7, 2, 20, 59, 0, 0, time.UTC), false, 1.1},
		{"17:59", time.Date(2025, 7, 2, 17, 59, 0, 0, time.UTC), false, 1.0},
		{"21:00", time.Date(2025, 7, 2, 21, 0, 0, 0, time.UTC), false, 1.0},
		{"everything", time.Date(2025, 7, 5, 19, 0, 0, 0, time.UTC), true, 1.5 * 1.2 * 1.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestXPEngine(tt.at)
			got := e.UserMultiplier(domain.GamificationProfile{Premium: tt.premium})
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("UserMultiplier = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserMultiplier_UsesLocation(t *testing.T) {
	cfg := testConfig()
	cfg.Location = time.FixedZone("UTC+9", 9*3600)
	e := NewXPEngine(NewLevelTable(), cfg)
	// 10:00 UTC is 19:00 at UTC+9: happy hour.
	e.now = func() time.Time { return wednesdayMorning }

	if got := e.UserMultiplier(domain.GamificationProfile{}); math.Abs(got-1.1) > 1e-9 {
		t.Errorf("UserMultiplier = %v, want 1.1", got)
	}
}

func TestEventMultiplier(t *testing.T) {
	e := newTestXPEngine(wednesdayMorning)
	if err := e.SetEventMultiplier(3); err != nil {
		t.Fatal(err)
	}
	res, err := e.AwardXP(domain.GamificationProfile{}, 100, domain.XPSource{Type: domain.SourceMission})
	if err != nil {
		t.Fatal(err)
	}
	if res.XPAwarded != 300 {
		t.Errorf("awarded %d with event x3, want 300", res.XPAwarded)
	}

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := e.SetEventMultiplier(bad); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("SetEventMultiplier(%v) err = %v, want ErrInvalidInput", bad, err)
		}
	}
	if e.EventMultiplier() != 3 {
		t.Errorf("rejected values should not change the multiplier")
	}
}

// ─── Validation ─────────────────────────────────────────────────────────────

func TestAwardXP_Validation(t *testing.T) {
	e := newTestXPEngine(wednesdayMorning)
	p := domain.GamificationProfile{UserID: "u1"}
	badBonus := -1.0

	tests := []struct {
		name   string
		amount float64
		source domain.XPSource
		want   error
	}{
		{"zero", 0, domain.XPSource{Type: domain.SourceMission}, domain.ErrNonPositiveXP},
		{"negative", -5, domain.XPSource{Type: domain.SourceMission}, domain.ErrNonPositiveXP},
		{"nan", math.NaN(), domain.XPSource{Type: domain.SourceMission}, domain.ErrNonPositiveXP},
		{"unknown source", 10, domain.XPSource{Type: "lottery"}, domain.ErrUnknownSourceType},
		{"unknown difficulty", 10, domain.XPSource{Type: domain.SourceMission, Difficulty: "brutal"}, domain.ErrInvalidInput},
		{"bonus -1", 10, domain.XPSource{Type: domain.SourceMission, QualityBonus: &badBonus}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.AwardXP(p, tt.amount, tt.source)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("err = %v should also match ErrInvalidInput", err)
			}
		})
	}
}

// ─── Level changes ──────────────────────────────────────────────────────────

func TestAwardXP_SpecialEventReachesLevel9(t *testing.T) {
	e := newTestXPEngine(wednesdayMorning)
	p := domain.GamificationProfile{UserID: "u1", CurrentLevel: 1}

	res, err := e.AwardXP(p, 5000, domain.XPSource{Type: domain.SourceSpecialEvent})
	if err != nil {
		t.Fatal(err)
	}
	if res.XPAwarded != 10000 {
		t.Fatalf("awarded %d, want 10000", res.XPAwarded)
	}
	lc := res.LevelChange
	if lc.PreviousLevel != 1 || lc.NewLevel != 9 || !lc.LeveledUp {
		t.Errorf("level change = %+v, want 1 -> 9", lc)
	}
	// Level 5 is the only milestone crossed: XP bonus and an item.
	if len(lc.Rewards) != 2 {
		t.Fatalf("rewards = %d, want 2 (level 5)", len(lc.Rewards))
	}
	u := res.ProfileUpdate
	if u.TotalXPDelta != 10000 || u.CurrentLevel != 9 || u.XPToNextLevel != 2570 {
		t.Errorf("profile update = %+v", u)
	}
}

func TestAwardXP_NoLevelUp(t *testing.T) {
	e := newTestXPEngine(wednesdayMorning)
	p := domain.GamificationProfile{UserID: "u1", TotalXP: 10, CurrentLevel: 1}

	res, err := e.AwardXP(p, 50, domain.XPSource{Type: domain.SourceMission})
	if err != nil {
		t.Fatal(err)
	}
	if res.LevelChange.LeveledUp || len(res.LevelChange.Rewards) != 0 {
		t.Errorf("unexpected level change %+v", res.LevelChange)
	}
	if res.ProfileUpdate.XPToNextLevel != 40 {
		t.Errorf("xp to next = %d, want 40", res.ProfileUpdate.XPToNextLevel)
	}
}

func TestCreditXP_RewardsInLevelOrder(t *testing.T) {
	e := newTestXPEngine(wednesdayMorning)
	ids := 0
	e.newID = func() string { ids++; return "r" + string(rune('a'+ids)) }

	// 0 -> 15849 XP crosses levels 2..11: milestones 5 and 10.
	res, err := e.CreditXP(domain.GamificationProfile{UserID: "u1"}, RequiredXP(11))
	if err != nil {
		t.Fatal(err)
	}
	lc := res.LevelChange
	if lc.NewLevel != 11 {
		t.Fatalf("new level = %d, want 11", lc.NewLevel)
	}

	want := []struct {
		source string
		typ    domain.RewardType
	}{
		{"level-5", domain.RewardXP},
		{"level-5", domain.RewardFreeItem},
		{"level-10", domain.RewardXP},
		{"level-10", domain.RewardFreeItem},
		{"level-10", domain.RewardBadge},
	}
	if len(lc.Rewards) != len(want) {
		t.Fatalf("rewards = %d, want %d", len(lc.Rewards), len(want))
	}
	for i, w := range want {
		r := lc.Rewards[i]
		if r.SourceID != w.source || r.Type != w.typ {
			t.Errorf("reward %d = %s/%s, want %s/%s", i, r.SourceID, r.Type, w.source, w.typ)
		}
		if r.Status != domain.RewardPending || r.UserID != "u1" || r.SourceType != SourceLevelUp {
			t.Errorf("reward %d has bad metadata: %+v", i, r)
		}
	}
	if lc.Rewards[0].Value != "50" || lc.Rewards[2].Value != "100" {
		t.Errorf("xp bonus values = %q, %q", lc.Rewards[0].Value, lc.Rewards[2].Value)
	}
	if lc.Rewards[4].Value != "level_10" {
		t.Errorf("badge value = %q", lc.Rewards[4].Value)
	}

	item := lc.Rewards[1]
	if item.ExpiresAt == nil || !item.ExpiresAt.Equal(wednesdayMorning.Add(90*24*time.Hour)) {
		t.Errorf("item expiry = %v", item.ExpiresAt)
	}
	if lc.Rewards[0].ExpiresAt != nil {
		t.Error("xp rewards should not expire")
	}
}

func TestCreditXP_ZeroAndNegative(t *testing.T) {
	e := newTestXPEngine(wednesdayMorning)
	res, err := e.CreditXP(domain.GamificationProfile{TotalXP: 150}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.LevelChange.LeveledUp || res.ProfileUpdate.CurrentLevel != 2 {
		t.Errorf("zero credit = %+v", res)
	}
	if _, err := e.CreditXP(domain.GamificationProfile{}, -1); !errors.Is(err, domain.ErrNonPositiveXP) {
		t.Errorf("negative credit err = %v", err)
	}
}

func TestAwardXP_Overflow(t *testing.T) {
	e := newTestXPEngine(wednesdayMorning)
	mission := domain.XPSource{Type: domain.SourceMission}

	tests := []struct {
		name   string
		total  int64
		amount float64
	}{
		{"amount beyond int64", 0, 1e19},
		{"total near max", math.MaxInt64 - 10, 1000},
		{"exactly max", 0, float64(math.MaxInt64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.AwardXP(domain.GamificationProfile{UserID: "u1", TotalXP: tt.total}, tt.amount, mission)
			if !errors.Is(err, domain.ErrXPOverflow) {
				t.Errorf("err = %v, want ErrXPOverflow", err)
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("err = %v should also match ErrInvalidInput", err)
			}
		})
	}

	// Headroom that fits is still credited.
	res, err := e.AwardXP(domain.GamificationProfile{UserID: "u1", TotalXP: math.MaxInt64 - 1000}, 10, mission)
	if err != nil {
		t.Fatalf("award within range: %v", err)
	}
	if res.XPAwarded != 10 || res.ProfileUpdate.CurrentLevel != 100 {
		t.Errorf("award within range = %+v", res)
	}
}

func TestCreditXP_Overflow(t *testing.T) {
	e := newTestXPEngine(wednesdayMorning)
	p := domain.GamificationProfile{UserID: "u1", TotalXP: math.MaxInt64 - 5}

	if _, err := e.CreditXP(p, 6); !errors.Is(err, domain.ErrXPOverflow) {
		t.Errorf("credit past max err = %v, want ErrXPOverflow", err)
	}
	res, err := e.CreditXP(p, 5)
	if err != nil {
		t.Fatalf("credit to exactly max: %v", err)
	}
	if res.ProfileUpdate.CurrentLevel != 100 || res.ProfileUpdate.XPToNextLevel != 0 {
		t.Errorf("credit to max = %+v", res.ProfileUpdate)
	}
}

// ─── Calculators ────────────────────────────────────────────────────────────

func TestCalculateMissionXP(t *testing.T) {
	tests := []struct {
		category string
		steps    int
		diff     domain.Difficulty
		quality  float64
		want     int64
	}{
		{"health", 1, domain.DifficultyMedium, 0.5, 50},
		{"training", 3, domain.DifficultyHard, 1.0, 113},
		{"grooming", 1, domain.DifficultyEasy, 0, 18},
		{"walks", 1, domain.DifficultyMedium, 0.5, 25},
		{"social", 0, domain.DifficultyMedium, 0.5, 25},
		{"nutrition", 2, "", 0.5, 45},
		{"health", 1, domain.DifficultyMedium, 5, 63},
		{"health", 1, domain.DifficultyMedium, math.NaN(), 50},
	}
	for _, tt := range tests {
		got := CalculateMissionXP(tt.category, tt.steps, tt.diff, tt.quality)
		if got != tt.want {
			t.Errorf("CalculateMissionXP(%s, %d, %s, %v) = %d, want %d",
				tt.category, tt.steps, tt.diff, tt.quality, got, tt.want)
		}
	}
}

func TestMissionPayout(t *testing.T) {
	tests := []struct {
		name string
		p    domain.MissionProgress
		want int64
	}{
		{"reward neutral quality", domain.MissionProgress{RewardXP: 48, QualityScore: 0.5}, 48},
		{"reward best quality", domain.MissionProgress{RewardXP: 72, QualityScore: 1}, 90},
		{"reward worst quality", domain.MissionProgress{RewardXP: 100, QualityScore: 0}, 75},
		{"reward nan quality", domain.MissionProgress{RewardXP: 40, QualityScore: math.NaN()}, 40},
		{"no reward uses calculator", domain.MissionProgress{
			Category: "training", TotalSteps: 3, Difficulty: domain.DifficultyHard, QualityScore: 1,
		}, 113},
		{"negative reward uses calculator", domain.MissionProgress{
			RewardXP: -5, Category: "health", TotalSteps: 1, Difficulty: domain.DifficultyMedium, QualityScore: 0.5,
		}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MissionPayout(tt.p); got != tt.want {
				t.Errorf("MissionPayout() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCalculateStreakXP(t *testing.T) {
	tests := []struct {
		days int
		want int64
	}{
		{0, 10}, {1, 10}, {3, 10},
		{4, 25}, {7, 25},
		{8, 50}, {14, 50},
		{15, 100}, {30, 100},
		{31, 200}, {60, 200},
		{61, 300}, {365, 300},
	}
	for _, tt := range tests {
		if got := CalculateStreakXP(tt.days); got != tt.want {
			t.Errorf("CalculateStreakXP(%d) = %d, want %d", tt.days, got, tt.want)
		}
	}
}

func TestCalculateBadgeXP(t *testing.T) {
	tests := []struct {
		rarity domain.BadgeRarity
		want   int64
	}{
		{domain.RarityCommon, 25},
		{domain.RarityRare, 75},
		{domain.RarityEpic, 200},
		{domain.RarityLegendary, 500},
		{"mythic", 0},
	}
	for _, tt := range tests {
		if got := CalculateBadgeXP(tt.rarity); got != tt.want {
			t.Errorf("CalculateBadgeXP(%s) = %d, want %d", tt.rarity, got, tt.want)
		}
	}
}
