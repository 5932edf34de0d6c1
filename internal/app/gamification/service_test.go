package gamification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/piucane/piucane/internal/domain"
)

func trainingMission() domain.Mission {
	return domain.Mission{
		ID:                "recall",
		Title:             "Recall training",
		Category:          "training",
		Difficulty:        domain.DifficultyMedium,
		EstimatedDuration: 30,
		Steps: []domain.MissionStep{
			{ID: "s1", Title: "Name game", EstimatedMinutes: 10},
			{ID: "s2", Title: "Short recall", EstimatedMinutes: 10},
			{ID: "s3", Title: "Long recall", EstimatedMinutes: 10},
		},
		Rewards: domain.MissionRewards{XP: 60},
	}
}

// ─── Profiles & XP ──────────────────────────────────────────────────────────

func TestService_EnsureProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.GetProfile(ctx, "u1"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("GetProfile before create = %v, want ErrProfileNotFound", err)
	}
	p, err := svc.EnsureProfile(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if p.CurrentLevel != 1 || p.TotalXP != 0 || p.XPToNextLevel != 100 {
		t.Errorf("fresh profile = %+v", p)
	}
	if _, err := svc.EnsureProfile(ctx, "  "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("blank user id err = %v", err)
	}
}

func TestService_AwardXPPersistsIncrement(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.AwardXP(ctx, "u1", 60, domain.XPSource{Type: domain.SourceMission}); err != nil {
			t.Fatal(err)
		}
	}
	p, err := svc.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalXP != 120 || p.CurrentLevel != 2 || p.XPToNextLevel != 339 {
		t.Errorf("profile = xp %d level %d next %d, want 120/2/339", p.TotalXP, p.CurrentLevel, p.XPToNextLevel)
	}
}

func TestService_ConcurrentAwardsNoLostUpdates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AwardXP(ctx, "u1", 10, domain.XPSource{Type: domain.SourceMission}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent award: %v", err)
	}

	p, _ := svc.GetProfile(ctx, "u1")
	if p.TotalXP != 200 {
		t.Errorf("total xp = %d, want 200", p.TotalXP)
	}
	if p.CurrentLevel != 2 {
		t.Errorf("level = %d, want 2", p.CurrentLevel)
	}
}

func TestService_PremiumAndEventMultipliers(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SetPremium(ctx, "u1", true); err != nil {
		t.Fatal(err)
	}
	res, err := svc.AwardXP(ctx, "u1", 100, domain.XPSource{Type: domain.SourceMission})
	if err != nil {
		t.Fatal(err)
	}
	if res.XPAwarded != 150 {
		t.Errorf("premium award = %d, want 150", res.XPAwarded)
	}

	if err := svc.SetEventMultiplier(2); err != nil {
		t.Fatal(err)
	}
	res, _ = svc.AwardXP(ctx, "u1", 100, domain.XPSource{Type: domain.SourceMission})
	if res.XPAwarded != 300 {
		t.Errorf("premium event award = %d, want 300", res.XPAwarded)
	}
	if err := svc.SetEventMultiplier(0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("zero event multiplier err = %v", err)
	}
}

func TestService_AwardXPRejectsInvalid(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AwardXP(ctx, "u1", -3, domain.XPSource{Type: domain.SourceMission}); !errors.Is(err, domain.ErrNonPositiveXP) {
		t.Errorf("negative award err = %v", err)
	}
	if _, err := svc.AwardXP(ctx, "u1", 10, domain.XPSource{Type: "gift"}); !errors.Is(err, domain.ErrUnknownSourceType) {
		t.Errorf("unknown source err = %v", err)
	}
	p, _ := svc.GetProfile(ctx, "u1")
	if p.TotalXP != 0 {
		t.Errorf("rejected awards credited %d xp", p.TotalXP)
	}
}

func TestService_LockTimeout(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.cfg.LockWait = 50 * time.Millisecond
	ctx := context.Background()

	unlock, err := svc.locker.Lock(ctx, "user:u1")
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	_, err = svc.AwardXP(ctx, "u1", 10, domain.XPSource{Type: domain.SourceMission})
	if !errors.Is(err, domain.ErrConcurrency) {
		t.Errorf("err = %v, want ErrConcurrency", err)
	}
}

// ─── Level-up rewards ───────────────────────────────────────────────────────

func TestService_LevelUpIssuesRewardsAndBadges(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.AwardXP(ctx, "u1", float64(RequiredXP(11)), domain.XPSource{Type: domain.SourceMission})
	if err != nil {
		t.Fatal(err)
	}
	if res.LevelChange.NewLevel != 11 {
		t.Fatalf("new level = %d, want 11", res.LevelChange.NewLevel)
	}

	rewards, err := svc.ListRewards(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rewards) != 5 {
		t.Fatalf("rewards = %d, want 5", len(rewards))
	}
	for i, r := range rewards {
		if r.ID != res.LevelChange.Rewards[i].ID {
			t.Errorf("reward %d stored out of order", i)
		}
	}

	badges, _ := svc.ListBadges(ctx, "u1")
	if len(badges) != 1 || badges[0].BadgeID != "level_10" {
		t.Errorf("badges = %+v, want level_10", badges)
	}

	notifs, err := svc.Notifications(ctx, "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(notifs) != 1 || notifs[0].Type != domain.NotifyLevelUp || !notifs[0].Shown {
		t.Fatalf("notifications = %+v", notifs)
	}
	if again, _ := svc.Notifications(ctx, "u1", 10); len(again) != 0 {
		t.Errorf("notifications returned twice: %+v", again)
	}
}

// ─── Rewards ────────────────────────────────────────────────────────────────

func levelUpTo11(t *testing.T, svc *Service) []domain.EarnedReward {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.AwardXP(ctx, "u1", float64(RequiredXP(11)), domain.XPSource{Type: domain.SourceMission}); err != nil {
		t.Fatal(err)
	}
	rewards, err := svc.ListRewards(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	return rewards
}

func TestService_ClaimXPReward(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	rewards := levelUpTo11(t, svc)

	xpReward := rewards[0]
	if xpReward.Type != domain.RewardXP {
		t.Fatalf("first reward type = %s", xpReward.Type)
	}
	res, err := svc.ClaimReward(ctx, "u1", xpReward.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Reward.Status != domain.RewardClaimed || res.Reward.ClaimedAt == nil {
		t.Errorf("claimed reward = %+v", res.Reward)
	}
	if res.Award == nil || res.Award.XPAwarded != 50 {
		t.Fatalf("xp claim award = %+v, want 50", res.Award)
	}
	p, _ := svc.GetProfile(ctx, "u1")
	if p.TotalXP != RequiredXP(11)+50 {
		t.Errorf("total xp = %d, want %d", p.TotalXP, RequiredXP(11)+50)
	}

	if _, err := svc.ClaimReward(ctx, "u1", xpReward.ID); !errors.Is(err, domain.ErrRewardNotClaimable) {
		t.Errorf("second claim err = %v, want ErrRewardNotClaimable", err)
	}
}

func TestService_ClaimItemRewardGetsCode(t *testing.T) {
	svc, _, _ := newTestService(t)
	rewards := levelUpTo11(t, svc)

	res, err := svc.ClaimReward(context.Background(), "u1", rewards[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.Reward.Code, "PC-") || len(res.Reward.Code) != 11 {
		t.Errorf("code = %q", res.Reward.Code)
	}
	if res.Award != nil {
		t.Error("item claim should not award xp")
	}
}

func TestService_ClaimOtherUsersReward(t *testing.T) {
	svc, _, _ := newTestService(t)
	rewards := levelUpTo11(t, svc)

	_, err := svc.ClaimReward(context.Background(), "u2", rewards[0].ID)
	if !errors.Is(err, domain.ErrRewardNotFound) {
		t.Errorf("err = %v, want ErrRewardNotFound", err)
	}
	if _, err := svc.ClaimReward(context.Background(), "u1", "missing"); !errors.Is(err, domain.ErrRewardNotFound) {
		t.Errorf("missing reward err = %v", err)
	}
}

func TestService_ClaimExpiredReward(t *testing.T) {
	svc, db, c := newTestService(t)
	ctx := context.Background()
	rewards := levelUpTo11(t, svc)

	c.advance(91 * 24 * time.Hour)
	_, err := svc.ClaimReward(ctx, "u1", rewards[1].ID)
	if !errors.Is(err, domain.ErrRewardNotClaimable) {
		t.Fatalf("err = %v, want ErrRewardNotClaimable", err)
	}
	r, _ := db.GetReward(ctx, rewards[1].ID)
	if r.Status != domain.RewardExpired {
		t.Errorf("status = %s, want expired", r.Status)
	}

	// XP rewards never expire
	if _, err := svc.ClaimReward(ctx, "u1", rewards[0].ID); err != nil {
		t.Errorf("claim xp reward after 91 days: %v", err)
	}
}

func TestService_ExpireRewards(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()
	levelUpTo11(t, svc)

	if n, _ := svc.ExpireRewards(ctx); n != 0 {
		t.Errorf("expired %d before the deadline", n)
	}
	c.advance(90 * 24 * time.Hour)
	n, err := svc.ExpireRewards(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expired = %d, want 2 item rewards", n)
	}
	if n, _ := svc.ExpireRewards(ctx); n != 0 {
		t.Errorf("second sweep expired %d", n)
	}
}

func TestService_RunExpiry(t *testing.T) {
	svc, _, c := newTestService(t)
	levelUpTo11(t, svc)
	c.advance(100 * 24 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunExpiry(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		rewards, _ := svc.ListRewards(context.Background(), "u1")
		expired := 0
		for _, r := range rewards {
			if r.Status == domain.RewardExpired {
				expired++
			}
		}
		if expired == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expired = %d after 2s, want 2", expired)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunExpiry did not stop on cancel")
	}
}

func TestService_RunExpiryNonPositiveInterval(t *testing.T) {
	svc, _, c := newTestService(t)
	levelUpTo11(t, svc)
	c.advance(100 * 24 * time.Hour)

	for _, interval := range []time.Duration{0, -time.Minute} {
		done := make(chan struct{})
		go func() {
			svc.RunExpiry(context.Background(), interval)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("RunExpiry(%v) should return after one sweep", interval)
		}
	}

	rewards, _ := svc.ListRewards(context.Background(), "u1")
	expired := 0
	for _, r := range rewards {
		if r.Status == domain.RewardExpired {
			expired++
		}
	}
	if expired != 2 {
		t.Errorf("expired = %d, want the single sweep to expire 2", expired)
	}
}

// ─── Streaks & badges ───────────────────────────────────────────────────────

func TestService_RecordActivity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.RecordActivity(ctx, "u1", wednesdayMorning)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Counted || res.Streak.CurrentDays != 1 || res.Award == nil || res.Award.XPAwarded != 15 {
		t.Fatalf("first activity = %+v", res)
	}

	res, err = svc.RecordActivity(ctx, "u1", wednesdayMorning.Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if res.Counted || res.Award != nil {
		t.Errorf("same-day activity = %+v", res)
	}

	res, _ = svc.RecordActivity(ctx, "u1", wednesdayMorning.AddDate(0, 0, 1))
	if res.Streak.CurrentDays != 2 {
		t.Errorf("streak = %d, want 2", res.Streak.CurrentDays)
	}

	p, _ := svc.GetProfile(ctx, "u1")
	if p.TotalXP != 30 || p.Streak.CurrentDays != 2 || p.Streak.LongestDays != 2 {
		t.Errorf("profile = xp %d streak %+v", p.TotalXP, p.Streak)
	}
}

func TestService_WeekStreakUnlocksBadge(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	var last *ActivityResult
	for i := 0; i < 7; i++ {
		res, err := svc.RecordActivity(ctx, "u1", wednesdayMorning.AddDate(0, 0, i))
		if err != nil {
			t.Fatal(err)
		}
		last = res
	}
	if len(last.Badges) != 1 || last.Badges[0].ID != "streak_7" || last.Badges[0].XPAwarded != 30 {
		t.Fatalf("day 7 badges = %+v", last.Badges)
	}

	// 3×15 + 4×38 streak xp, plus a common badge
	p, _ := svc.GetProfile(ctx, "u1")
	if p.TotalXP != 227 {
		t.Errorf("total xp = %d, want 227", p.TotalXP)
	}

	more, err := svc.CheckBadges(ctx, "u1")
	if err != nil || len(more) != 0 {
		t.Errorf("CheckBadges re-unlocked %+v, %v", more, err)
	}
}

func TestService_ActivitySyncsDDAStreak(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.InitializeDDA(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.RecordActivity(ctx, "u1", wednesdayMorning.AddDate(0, 0, i)); err != nil {
			t.Fatal(err)
		}
	}
	s, err := svc.DDAState(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if s.Metrics.StreakDays != 3 {
		t.Errorf("dda streak = %d, want 3", s.Metrics.StreakDays)
	}
}

// ─── Missions ───────────────────────────────────────────────────────────────

func TestService_MissionLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	start, err := svc.StartMission(ctx, "u1", trainingMission(), "")
	if err != nil {
		t.Fatal(err)
	}
	if start.Mission.Difficulty != domain.DifficultyMedium || start.Progress.Status != domain.MissionActive {
		t.Fatalf("start = %+v", start)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.RecordMissionStep(ctx, start.Progress.ID, 10); err != nil {
			t.Fatal(err)
		}
	}

	done, err := svc.CompleteMission(ctx, start.Progress.ID, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if done.Progress.Status != domain.MissionCompleted || done.Progress.Efficiency != 1 {
		t.Errorf("completed progress = %+v", done.Progress)
	}
	// (40 + 2×10) × 1.0 × 1.25
	if done.Award == nil || done.Award.XPAwarded != 75 {
		t.Fatalf("mission award = %+v, want 75", done.Award)
	}
	if len(done.Badges) != 1 || done.Badges[0].ID != "first_mission" {
		t.Fatalf("badges = %+v, want first_mission", done.Badges)
	}

	p, _ := svc.GetProfile(ctx, "u1")
	if p.TotalXP != 105 || p.CurrentLevel != 2 {
		t.Errorf("profile = xp %d level %d, want 105/2", p.TotalXP, p.CurrentLevel)
	}
	st := p.Stats
	if st.MissionsStarted != 1 || st.MissionsCompleted != 1 || st.AverageMissionMinutes != 30 || st.EngagementRate != 1 {
		t.Errorf("stats = %+v", st)
	}

	if _, err := svc.CompleteMission(ctx, start.Progress.ID, 1.0); !errors.Is(err, domain.ErrMissionNotActive) {
		t.Errorf("second completion err = %v, want ErrMissionNotActive", err)
	}

	list, _ := svc.ListMissions(ctx, "u1", 0)
	if len(list) != 1 || list[0].ID != start.Progress.ID {
		t.Errorf("missions = %+v", list)
	}
}

func TestService_StartMissionAdapts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	start, err := svc.StartMission(ctx, "u1", trainingMission(), domain.DifficultyEasy)
	if err != nil {
		t.Fatal(err)
	}
	if start.Progress.Difficulty != domain.DifficultyEasy || start.Progress.EstimatedMins != 21 {
		t.Errorf("progress = %s/%d min, want easy/21", start.Progress.Difficulty, start.Progress.EstimatedMins)
	}

	// No DDA record yet: adaptive resolves to medium
	start, err = svc.StartMission(ctx, "u1", trainingMission(), domain.DifficultyAdaptive)
	if err != nil {
		t.Fatal(err)
	}
	if start.Mission.Difficulty != domain.DifficultyMedium {
		t.Errorf("adaptive without dda = %s, want medium", start.Mission.Difficulty)
	}
}

func TestService_CompleteMissionPaysAdaptedReward(t *testing.T) {
	tests := []struct {
		diff       domain.Difficulty
		wantReward int64
		wantXP     int64
	}{
		{domain.DifficultyEasy, 48, 60},   // 60 × 0.8, then × 1.25 quality
		{domain.DifficultyMedium, 60, 75}, // 60 × 1.25
		{domain.DifficultyHard, 72, 90},   // 60 × 1.2, then × 1.25 quality
	}
	for _, tt := range tests {
		t.Run(string(tt.diff), func(t *testing.T) {
			svc, _, _ := newTestService(t)
			ctx := context.Background()

			start, err := svc.StartMission(ctx, "u1", trainingMission(), tt.diff)
			if err != nil {
				t.Fatal(err)
			}
			if start.Progress.RewardXP != tt.wantReward || start.Mission.Rewards.XP != tt.wantReward {
				t.Fatalf("reward xp = %d (mission %d), want %d", start.Progress.RewardXP, start.Mission.Rewards.XP, tt.wantReward)
			}

			done, err := svc.CompleteMission(ctx, start.Progress.ID, 1.0)
			if err != nil {
				t.Fatal(err)
			}
			if done.Award == nil || done.Award.XPAwarded != tt.wantXP {
				t.Errorf("award = %+v, want %d xp", done.Award, tt.wantXP)
			}
			if done.Progress.RewardXP != tt.wantReward {
				t.Errorf("stored reward xp = %d, want %d", done.Progress.RewardXP, tt.wantReward)
			}
		})
	}
}

func TestService_FailMission(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	start, err := svc.StartMission(ctx, "u1", trainingMission(), "")
	if err != nil {
		t.Fatal(err)
	}
	failed, err := svc.FailMission(ctx, start.Progress.ID)
	if err != nil {
		t.Fatal(err)
	}
	if failed.Status != domain.MissionFailed {
		t.Errorf("status = %s", failed.Status)
	}
	if _, err := svc.RecordMissionStep(ctx, start.Progress.ID, 5); !errors.Is(err, domain.ErrMissionNotActive) {
		t.Errorf("step on failed mission err = %v", err)
	}
	if _, err := svc.FailMission(ctx, "nope"); !errors.Is(err, domain.ErrMissionNotFound) {
		t.Errorf("unknown progress err = %v", err)
	}

	p, _ := svc.GetProfile(ctx, "u1")
	if p.Stats.MissionsFailed != 1 || p.TotalXP != 0 {
		t.Errorf("profile after failure = %+v", p)
	}
}

// ─── Difficulty ─────────────────────────────────────────────────────────────

func TestService_EvaluateDifficultyLowersAfterFailures(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()

	if _, err := svc.InitializeDDA(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		start, err := svc.StartMission(ctx, "u1", trainingMission(), "")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := svc.FailMission(ctx, start.Progress.ID); err != nil {
			t.Fatal(err)
		}
		c.advance(time.Minute)
	}

	adj, err := svc.EvaluateDifficulty(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if adj == nil || adj.FromDifficulty != domain.DifficultyMedium || adj.ToDifficulty != domain.DifficultyEasy {
		t.Fatalf("adjustment = %+v, want medium -> easy", adj)
	}
	if d, _ := svc.RecommendedDifficulty(ctx, "u1"); d != domain.DifficultyEasy {
		t.Errorf("recommended = %s, want easy", d)
	}

	notifs, _ := svc.Notifications(ctx, "u1", 10)
	if len(notifs) != 1 || notifs[0].Type != domain.NotifyDifficultyChange {
		t.Errorf("notifications = %+v", notifs)
	}

	// Adaptive missions now come out easy
	start, err := svc.StartMission(ctx, "u1", trainingMission(), domain.DifficultyAdaptive)
	if err != nil {
		t.Fatal(err)
	}
	if start.Mission.Difficulty != domain.DifficultyEasy {
		t.Errorf("adaptive = %s, want easy", start.Mission.Difficulty)
	}

	// Inside the cooldown nothing moves
	if adj, err := svc.EvaluateDifficulty(ctx, "u1"); err != nil || adj != nil {
		t.Errorf("evaluation in cooldown = %+v, %v", adj, err)
	}
}

func TestService_EvaluateUninitialized(t *testing.T) {
	svc, _, _ := newTestService(t)
	adj, err := svc.EvaluateDifficulty(context.Background(), "u1")
	if err != nil || adj != nil {
		t.Errorf("evaluate uninitialized = %+v, %v", adj, err)
	}
	if _, err := svc.DDAState(context.Background(), "u1"); !errors.Is(err, domain.ErrDDANotInitialized) {
		t.Errorf("DDAState err = %v", err)
	}
}
