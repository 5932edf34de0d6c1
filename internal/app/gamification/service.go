package gamification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/piucane/piucane/internal/domain"
	"github.com/piucane/piucane/internal/infra/metrics"
)

// Service is the gamification facade used by the API and CLI. Every
// read-compute-write cycle on a user's profile runs under that user's lock,
// and XP is persisted as an increment.
type Service struct {
	store  domain.Store
	locker domain.Locker
	cfg    Config

	levels   *LevelTable
	xp       *XPEngine
	dda      *DDAEngine
	adapter  *MissionAdapter
	badges   *BadgeService
	missions *MissionTracker
	notifier *NotificationService

	now     func() time.Time
	newCode func() string
}

// NewService wires the engines over a store and a locker.
func NewService(store domain.Store, locker domain.Locker, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	levels := NewLevelTable()
	dda := NewDDAEngine(store, locker, cfg)
	return &Service{
		store:    store,
		locker:   locker,
		cfg:      cfg,
		levels:   levels,
		xp:       NewXPEngine(levels, cfg),
		dda:      dda,
		adapter:  NewMissionAdapter(dda),
		badges:   NewBadgeService(store),
		missions: NewMissionTracker(store),
		notifier: NewNotificationService(store, cfg.Notifications, cfg.Location),
		now:      time.Now,
		newCode:  redeemCode,
	}
}

// Levels returns the level table.
func (s *Service) Levels() *LevelTable { return s.levels }

// XP returns the XP engine.
func (s *Service) XP() *XPEngine { return s.xp }

// DDA returns the difficulty engine.
func (s *Service) DDA() *DDAEngine { return s.dda }

// Badges returns the badge service.
func (s *Service) Badges() *BadgeService { return s.badges }

// SetClock replaces the time source of the service and every engine.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.xp.now = now
	s.dda.now = now
	s.badges.now = now
	s.missions.now = now
	s.notifier.now = now
}

// ─── Profiles ───────────────────────────────────────────────────────────────

// GetProfile returns a stored profile or ErrProfileNotFound.
func (s *Service) GetProfile(ctx context.Context, userID string) (*domain.GamificationProfile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p == nil {
		return nil, domain.ErrProfileNotFound
	}
	return p, nil
}

// EnsureProfile returns the user's profile, creating a level-1 profile if needed.
func (s *Service) EnsureProfile(ctx context.Context, userID string) (*domain.GamificationProfile, error) {
	var p *domain.GamificationProfile
	err := s.lockUser(ctx, userID, func() error {
		var err error
		p, err = s.ensureProfile(ctx, userID)
		return err
	})
	return p, err
}

// SetPremium flags premium membership and returns the updated profile.
func (s *Service) SetPremium(ctx context.Context, userID string, premium bool) (*domain.GamificationProfile, error) {
	var p *domain.GamificationProfile
	err := s.lockUser(ctx, userID, func() error {
		if _, err := s.ensureProfile(ctx, userID); err != nil {
			return err
		}
		if err := s.store.SetPremium(ctx, userID, premium); err != nil {
			return fmt.Errorf("set premium: %w", err)
		}
		var err error
		p, err = s.GetProfile(ctx, userID)
		return err
	})
	return p, err
}

func (s *Service) ensureProfile(ctx context.Context, userID string) (*domain.GamificationProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p != nil {
		return p, nil
	}

	now := s.now()
	info := s.levels.CalculateLevelFromXP(0)
	fresh := domain.GamificationProfile{
		UserID:        userID,
		CurrentLevel:  info.Level,
		XPToNextLevel: info.XPToNextLevel,
		LevelProgress: info.LevelProgress,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateProfile(ctx, fresh); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	log.Printf("[gamification] created profile %s", userID)
	return s.GetProfile(ctx, userID)
}

// ─── XP ─────────────────────────────────────────────────────────────────────

// AwardXP applies multipliers to amount and persists the result.
// Awards are not deduplicated: repeating a call credits again.
func (s *Service) AwardXP(ctx context.Context, userID string, amount float64, source domain.XPSource) (*domain.AwardResult, error) {
	var result *domain.AwardResult
	err := s.lockUser(ctx, userID, func() error {
		p, err := s.ensureProfile(ctx, userID)
		if err != nil {
			return err
		}
		res, err := s.xp.AwardXP(*p, amount, source)
		if err != nil {
			return err
		}
		if _, err := s.commitAward(ctx, p, res, string(source.Type)); err != nil {
			return err
		}
		result = &res
		return nil
	})
	return result, err
}

// SetEventMultiplier replaces the active special-event multiplier.
func (s *Service) SetEventMultiplier(m float64) error {
	if err := s.xp.SetEventMultiplier(m); err != nil {
		return err
	}
	log.Printf("[gamification] event multiplier set to %.2f", m)
	return nil
}

// commitAward persists an award computed from the snapshot p: the XP
// increment, level-up rewards, milestone badges and a level-up notification.
// Must be called under the user's lock.
func (s *Service) commitAward(ctx context.Context, p *domain.GamificationProfile, res domain.AwardResult, source string) (*domain.GamificationProfile, error) {
	updated, err := s.store.ApplyProfileUpdate(ctx, p.UserID, res.ProfileUpdate)
	if err != nil {
		return nil, fmt.Errorf("apply profile update: %w", err)
	}

	metrics.XPAwarded.WithLabelValues(source).Add(float64(res.XPAwarded))
	metrics.XPAwardSize.Observe(float64(res.XPAwarded))

	lc := res.LevelChange
	if !lc.LeveledUp {
		return updated, nil
	}

	if err := s.issueRewards(ctx, lc.Rewards); err != nil {
		return nil, err
	}
	for _, r := range lc.Rewards {
		if r.Type != domain.RewardBadge {
			continue
		}
		if _, err := s.badges.Grant(ctx, p.UserID, r.Value); err != nil {
			return nil, fmt.Errorf("grant %s: %w", r.Value, err)
		}
	}

	metrics.LevelUps.WithLabelValues(metrics.LevelBand(lc.NewLevel)).Inc()
	log.Printf("[gamification] %s leveled up %d -> %d (%d rewards)", p.UserID, lc.PreviousLevel, lc.NewLevel, len(lc.Rewards))

	level, _ := s.levels.Level(lc.NewLevel)
	body := fmt.Sprintf("You are now a %s.", level.Title)
	if n := len(lc.Rewards); n > 0 {
		body += fmt.Sprintf(" %d rewards are waiting for you.", n)
	}
	s.notify(ctx, domain.Notification{
		UserID: p.UserID,
		Type:   domain.NotifyLevelUp,
		Title:  fmt.Sprintf("Level %d reached!", lc.NewLevel),
		Body:   body,
	})
	return updated, nil
}

func (s *Service) issueRewards(ctx context.Context, rewards []domain.EarnedReward) error {
	if len(rewards) == 0 {
		return nil
	}
	if err := s.store.AddRewards(ctx, rewards); err != nil {
		return fmt.Errorf("add rewards: %w", err)
	}
	for _, r := range rewards {
		metrics.RewardsIssued.WithLabelValues(string(r.Type)).Inc()
	}
	return nil
}

// ─── Streaks & Badges ───────────────────────────────────────────────────────

// ActivityResult is the outcome of recording a day of activity.
type ActivityResult struct {
	Streak  domain.Streak       `json:"streak"`
	Counted bool                `json:"counted"`
	Award   *domain.AwardResult `json:"award,omitempty"`
	Badges  []BadgeUnlock       `json:"badges,omitempty"`
}

// BadgeUnlock is a newly earned catalog badge and the XP it paid.
type BadgeUnlock struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Rarity    domain.BadgeRarity `json:"rarity"`
	XPAwarded int64              `json:"xp_awarded"`
}

// RecordActivity counts day toward the user's streak. A newly counted day
// pays streak XP and refreshes the DDA streak metric.
func (s *Service) RecordActivity(ctx context.Context, userID string, day time.Time) (*ActivityResult, error) {
	var result ActivityResult
	err := s.lockUser(ctx, userID, func() error {
		p, err := s.ensureProfile(ctx, userID)
		if err != nil {
			return err
		}

		streak, counted := AdvanceStreak(p.Streak, day, s.cfg.Location)
		result.Streak, result.Counted = streak, counted
		if !counted {
			return nil
		}
		if err := s.store.SaveStreak(ctx, userID, streak); err != nil {
			return fmt.Errorf("save streak: %w", err)
		}
		p.Streak = streak

		res, err := s.xp.AwardXP(*p, float64(CalculateStreakXP(streak.CurrentDays)), domain.XPSource{
			Type: domain.SourceStreak,
			ID:   "streak-" + streak.LastDate.Format("2006-01-02"),
			Name: fmt.Sprintf("%d-day streak", streak.CurrentDays),
		})
		if err != nil {
			return err
		}
		updated, err := s.commitAward(ctx, p, res, string(domain.SourceStreak))
		if err != nil {
			return err
		}
		result.Award = &res

		if result.Badges, err = s.checkBadges(ctx, updated); err != nil {
			return err
		}
		return s.dda.SyncStreak(ctx, userID, streak.CurrentDays)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CheckBadges unlocks any catalog badge the user now qualifies for.
func (s *Service) CheckBadges(ctx context.Context, userID string) ([]BadgeUnlock, error) {
	var unlocked []BadgeUnlock
	err := s.lockUser(ctx, userID, func() error {
		p, err := s.ensureProfile(ctx, userID)
		if err != nil {
			return err
		}
		unlocked, err = s.checkBadges(ctx, p)
		return err
	})
	return unlocked, err
}

// ListBadges returns a user's unlocked badges.
func (s *Service) ListBadges(ctx context.Context, userID string) ([]domain.UnlockedBadge, error) {
	return s.badges.ListUnlocked(ctx, userID)
}

// checkBadges must be called under the user's lock.
func (s *Service) checkBadges(ctx context.Context, p *domain.GamificationProfile) ([]BadgeUnlock, error) {
	defs, err := s.badges.CheckAndUnlock(ctx, *p)
	if err != nil {
		return nil, err
	}

	var out []BadgeUnlock
	current := p
	for _, def := range defs {
		metrics.BadgesUnlocked.WithLabelValues(string(def.Rarity)).Inc()
		unlock := BadgeUnlock{ID: def.ID, Name: def.Name, Rarity: def.Rarity}

		if xp := CalculateBadgeXP(def.Rarity); xp > 0 {
			res, err := s.xp.AwardXP(*current, float64(xp), domain.XPSource{
				Type: domain.SourceBadge, ID: def.ID, Name: def.Name,
			})
			if err != nil {
				return nil, err
			}
			if current, err = s.commitAward(ctx, current, res, string(domain.SourceBadge)); err != nil {
				return nil, err
			}
			unlock.XPAwarded = res.XPAwarded
		}

		if err := s.issueRewards(ctx, []domain.EarnedReward{{
			ID:         uuid.NewString(),
			UserID:     p.UserID,
			Type:       domain.RewardBadge,
			Value:      def.ID,
			Status:     domain.RewardPending,
			EarnedAt:   s.now(),
			SourceType: string(domain.SourceBadge),
			SourceID:   def.ID,
			SourceName: def.Name,
		}}); err != nil {
			return nil, err
		}

		s.notify(ctx, domain.Notification{
			UserID: p.UserID,
			Type:   domain.NotifyBadge,
			Title:  "New badge: " + def.Name,
			Body:   fmt.Sprintf("You unlocked a %s badge.", def.Rarity),
		})
		out = append(out, unlock)
	}
	return out, nil
}

// ─── Missions ───────────────────────────────────────────────────────────────

// MissionStart is a started attempt and the mission as adapted for it.
type MissionStart struct {
	Mission  domain.Mission          `json:"mission"`
	Progress *domain.MissionProgress `json:"progress"`
}

// MissionCompletion is the outcome of completing an attempt.
type MissionCompletion struct {
	Progress *domain.MissionProgress `json:"progress"`
	Award    *domain.AwardResult     `json:"award,omitempty"`
	Badges   []BadgeUnlock           `json:"badges,omitempty"`
}

// StartMission adapts m to target (or to m.Difficulty when target is empty)
// and opens an attempt.
func (s *Service) StartMission(ctx context.Context, userID string, m domain.Mission, target domain.Difficulty) (*MissionStart, error) {
	if target == "" {
		target = m.Difficulty
	}
	if target == "" {
		target = domain.DifficultyMedium
	}
	adapted, err := s.AdaptMission(ctx, userID, m, target)
	if err != nil {
		return nil, err
	}

	var progress *domain.MissionProgress
	err = s.lockUser(ctx, userID, func() error {
		if _, err := s.ensureProfile(ctx, userID); err != nil {
			return err
		}
		if progress, err = s.missions.Start(ctx, userID, adapted); err != nil {
			return err
		}
		return s.store.IncrementMissionStats(ctx, userID, domain.MissionStatsDelta{Started: 1})
	})
	if err != nil {
		return nil, err
	}
	metrics.Missions.WithLabelValues("started", adapted.Category).Inc()
	return &MissionStart{Mission: adapted, Progress: progress}, nil
}

// RecordMissionStep marks the next step of an attempt done.
func (s *Service) RecordMissionStep(ctx context.Context, progressID string, minutes float64) (*domain.MissionProgress, error) {
	return s.withProgress(ctx, progressID, func(p *domain.MissionProgress) error {
		return s.missions.RecordStep(ctx, p, minutes)
	})
}

// CompleteMission closes an attempt and pays MissionPayout through the XP engine.
func (s *Service) CompleteMission(ctx context.Context, progressID string, quality float64) (*MissionCompletion, error) {
	var result MissionCompletion
	progress, err := s.withProgress(ctx, progressID, func(mp *domain.MissionProgress) error {
		if err := s.missions.Complete(ctx, mp, quality); err != nil {
			return err
		}
		if err := s.store.IncrementMissionStats(ctx, mp.UserID, domain.MissionStatsDelta{
			Completed:  1,
			Minutes:    mp.TimeSpent,
			Efficiency: mp.Efficiency,
		}); err != nil {
			return fmt.Errorf("mission stats: %w", err)
		}

		p, err := s.GetProfile(ctx, mp.UserID)
		if err != nil {
			return err
		}
		if xp := MissionPayout(*mp); xp > 0 {
			res, err := s.xp.AwardXP(*p, float64(xp), domain.XPSource{
				Type: domain.SourceMission, ID: mp.MissionID, Name: mp.Category,
			})
			if err != nil {
				return err
			}
			if p, err = s.commitAward(ctx, p, res, string(domain.SourceMission)); err != nil {
				return err
			}
			result.Award = &res
		}

		result.Badges, err = s.checkBadges(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.Missions.WithLabelValues("completed", progress.Category).Inc()
	result.Progress = progress
	return &result, nil
}

// FailMission closes an attempt as dropped.
func (s *Service) FailMission(ctx context.Context, progressID string) (*domain.MissionProgress, error) {
	progress, err := s.withProgress(ctx, progressID, func(p *domain.MissionProgress) error {
		if err := s.missions.Fail(ctx, p); err != nil {
			return err
		}
		return s.store.IncrementMissionStats(ctx, p.UserID, domain.MissionStatsDelta{Failed: 1})
	})
	if err != nil {
		return nil, err
	}
	metrics.Missions.WithLabelValues("failed", progress.Category).Inc()
	return progress, nil
}

// ListMissions returns the user's most recent attempts.
func (s *Service) ListMissions(ctx context.Context, userID string, limit int) ([]domain.MissionProgress, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.missions.Recent(ctx, userID, limit)
}

// withProgress loads an attempt, then reloads it under its owner's lock
// before running fn.
func (s *Service) withProgress(ctx context.Context, progressID string, fn func(*domain.MissionProgress) error) (*domain.MissionProgress, error) {
	first, err := s.missions.Get(ctx, progressID)
	if err != nil {
		return nil, err
	}
	var p *domain.MissionProgress
	err = s.lockUser(ctx, first.UserID, func() error {
		if p, err = s.missions.Get(ctx, progressID); err != nil {
			return err
		}
		return fn(p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// AdaptMission reshapes m for target. Adaptive resolves through DDA.
func (s *Service) AdaptMission(ctx context.Context, userID string, m domain.Mission, target domain.Difficulty) (domain.Mission, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return domain.Mission{}, fmt.Errorf("get profile: %w", err)
	}
	if p == nil {
		p = &domain.GamificationProfile{UserID: userID}
	}
	return s.adapter.AdaptMissionForDifficulty(ctx, m, target, *p)
}

// ─── Difficulty ─────────────────────────────────────────────────────────────

// InitializeDDA creates the user's difficulty record from their profile.
func (s *Service) InitializeDDA(ctx context.Context, userID string) (*domain.DDAState, error) {
	p, err := s.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.dda.InitializeUserDDA(ctx, *p)
}

// EvaluateDifficulty runs a DDA evaluation over the user's recent missions.
// Returns nil when nothing changed.
func (s *Service) EvaluateDifficulty(ctx context.Context, userID string) (*domain.DDAdjustment, error) {
	recent, err := s.missions.Recent(ctx, userID, s.cfg.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("recent missions: %w", err)
	}
	adj, err := s.dda.EvaluateAndAdjustDifficulty(ctx, userID, recent)
	if err != nil {
		return nil, err
	}
	if adj == nil {
		metrics.DDAEvaluations.WithLabelValues("unchanged").Inc()
		return nil, nil
	}

	metrics.DDAEvaluations.WithLabelValues("adjusted").Inc()
	metrics.DDAAdjustments.WithLabelValues(string(adj.FromDifficulty), string(adj.ToDifficulty)).Inc()
	s.notify(ctx, domain.Notification{
		UserID: userID,
		Type:   domain.NotifyDifficultyChange,
		Title:  fmt.Sprintf("Missions are now %s", adj.ToDifficulty),
		Body:   adj.Reason,
	})
	return adj, nil
}

// DDAState returns the stored difficulty record or ErrDDANotInitialized.
func (s *Service) DDAState(ctx context.Context, userID string) (*domain.DDAState, error) {
	return s.dda.State(ctx, userID)
}

// RecommendedDifficulty returns the tier DDA currently recommends.
func (s *Service) RecommendedDifficulty(ctx context.Context, userID string) (domain.Difficulty, error) {
	return s.dda.GetRecommendedDifficulty(ctx, userID)
}

// ─── Rewards ────────────────────────────────────────────────────────────────

// ClaimResult is a claimed reward and, for XP rewards, the credited XP.
type ClaimResult struct {
	Reward domain.EarnedReward `json:"reward"`
	Award  *domain.AwardResult `json:"award,omitempty"`
}

// ListRewards returns a user's rewards in earn order.
func (s *Service) ListRewards(ctx context.Context, userID string) ([]domain.EarnedReward, error) {
	return s.store.ListRewards(ctx, userID)
}

// ClaimReward moves a pending, unexpired reward to claimed. XP rewards are
// credited as-is, without multipliers. Item and discount rewards get a
// redeem code.
func (s *Service) ClaimReward(ctx context.Context, userID, rewardID string) (*ClaimResult, error) {
	var result ClaimResult
	err := s.lockUser(ctx, userID, func() error {
		r, err := s.store.GetReward(ctx, rewardID)
		if err != nil {
			return fmt.Errorf("get reward: %w", err)
		}
		if r == nil || r.UserID != userID {
			return domain.ErrRewardNotFound
		}

		now := s.now()
		if !r.Claimable(now) {
			if r.Status == domain.RewardPending {
				// Past expiry but not yet swept
				r.Status = domain.RewardExpired
				if err := s.store.UpdateReward(ctx, *r); err != nil {
					return fmt.Errorf("expire reward: %w", err)
				}
			}
			return fmt.Errorf("%w: %s is %s", domain.ErrRewardNotClaimable, r.ID, r.Status)
		}

		r.Status = domain.RewardClaimed
		r.ClaimedAt = &now
		if (r.Type == domain.RewardFreeItem || r.Type == domain.RewardDiscount) && r.Code == "" {
			r.Code = s.newCode()
		}
		if err := s.store.UpdateReward(ctx, *r); err != nil {
			return fmt.Errorf("update reward: %w", err)
		}

		if r.Type == domain.RewardXP {
			xp, err := strconv.ParseInt(r.Value, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: xp reward %s has value %q", domain.ErrInvalidInput, r.ID, r.Value)
			}
			p, err := s.ensureProfile(ctx, userID)
			if err != nil {
				return err
			}
			res, err := s.xp.CreditXP(*p, xp)
			if err != nil {
				return err
			}
			if _, err := s.commitAward(ctx, p, res, "reward"); err != nil {
				return err
			}
			result.Award = &res
		}

		metrics.RewardsClaimed.WithLabelValues(string(r.Type)).Inc()
		result.Reward = *r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ExpireRewards flips every pending reward past its expiry.
func (s *Service) ExpireRewards(ctx context.Context) (int64, error) {
	n, err := s.store.ExpireRewards(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expire rewards: %w", err)
	}
	if n > 0 {
		metrics.RewardsExpired.Add(float64(n))
		log.Printf("[gamification] expired %d rewards", n)
	}
	return n, nil
}

// RunExpiry sweeps expired rewards every interval until ctx is done.
// A non-positive interval runs a single sweep and returns.
func (s *Service) RunExpiry(ctx context.Context, interval time.Duration) {
	if _, err := s.ExpireRewards(ctx); err != nil {
		log.Printf("[gamification] reward expiry: %v", err)
	}
	if interval <= 0 {
		log.Printf("[gamification] reward expiry interval %v, periodic sweep disabled", interval)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExpireRewards(ctx); err != nil {
				log.Printf("[gamification] reward expiry: %v", err)
			}
		}
	}
}

// ─── Notifications ──────────────────────────────────────────────────────────

// Notifications returns up to limit pending notifications and marks them shown.
func (s *Service) Notifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	pending, err := s.notifier.Pending(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("pending notifications: %w", err)
	}
	for i := range pending {
		if err := s.notifier.MarkShown(ctx, pending[i].ID); err != nil {
			return nil, fmt.Errorf("mark shown: %w", err)
		}
		pending[i].Shown = true
	}
	return pending, nil
}

// notify stores a notification subject to policy. Failures are logged;
// a lost notification never fails the operation that produced it.
func (s *Service) notify(ctx context.Context, n domain.Notification) {
	id, err := s.notifier.Create(ctx, n)
	switch {
	case err != nil:
		log.Printf("[gamification] notification for %s failed: %v", n.UserID, err)
		metrics.Notifications.WithLabelValues(string(n.Type), "error").Inc()
	case id == 0:
		metrics.Notifications.WithLabelValues(string(n.Type), "suppressed").Inc()
	default:
		metrics.Notifications.WithLabelValues(string(n.Type), "stored").Inc()
	}
}

// ─── Locking ────────────────────────────────────────────────────────────────

func (s *Service) lockUser(ctx context.Context, userID string, fn func() error) error {
	return withLock(ctx, s.locker, s.cfg.LockWait, "user:"+userID, fn)
}

// withLock runs fn while holding key. Acquisition waits at most wait.
func withLock(ctx context.Context, locker domain.Locker, wait time.Duration, key string, fn func() error) error {
	lctx := ctx
	if wait > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	start := time.Now()
	unlock, err := locker.Lock(lctx, key)
	metrics.LockWait.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, domain.ErrConcurrency) {
			metrics.LockTimeouts.Inc()
		}
		return err
	}
	defer unlock()
	return fn()
}

// redeemCode returns a short human-typable code, e.g. "PC-3F9A1C7B".
func redeemCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "PC-" + strings.ToUpper(raw[:8])
}
