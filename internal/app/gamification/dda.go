package gamification

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/piucane/piucane/internal/domain"
)

const historyCap, historyKeep = 50, 25

// ═══════════════════════════════════════════════════════════════════════════
// Dynamic Difficulty Adjustment
// ═══════════════════════════════════════════════════════════════════════════

// DDAEngine moves each user along [easy, medium, hard] from their recent
// mission performance. State is one record per user in a DDAStore; all
// mutations of a record run under the user's DDA lock.
type DDAEngine struct {
	store  domain.DDAStore
	locker domain.Locker
	cfg    Config

	now func() time.Time // injectable clock for testing
}

// NewDDAEngine creates an engine over the given store and locker.
func NewDDAEngine(store domain.DDAStore, locker domain.Locker, cfg Config) *DDAEngine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	return &DDAEngine{store: store, locker: locker, cfg: cfg, now: time.Now}
}

// InitializeUserDDA creates the user's record from their profile aggregates.
// An existing record is returned unchanged.
func (e *DDAEngine) InitializeUserDDA(ctx context.Context, p domain.GamificationProfile) (*domain.DDAState, error) {
	if err := e.cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}

	var state *domain.DDAState
	err := withLock(ctx, e.locker, e.cfg.LockWait, ddaKey(p.UserID), func() error {
		existing, err := e.store.GetDDAState(ctx, p.UserID)
		if err != nil {
			return fmt.Errorf("get dda state: %w", err)
		}
		if existing != nil {
			state = existing
			return nil
		}

		now := e.now()
		completed := p.Stats.MissionsCompleted
		metrics := seedMetrics(p)

		// Brand-new users start neutral; the formula is only trusted with history.
		score := 0.5
		if completed > 0 {
			score = PerformanceScore(metrics)
		}

		s := domain.DDAState{
			UserID:                  p.UserID,
			CurrentPerformanceScore: score,
			Metrics:                 metrics,
			AdaptationSensitivity:   0.8 - math.Min(float64(completed)/10, 1)*0.3,
			MinDifficulty:           domain.DifficultyEasy,
			MaxDifficulty:           domain.DifficultyHard,
			LastAdjustmentAt:        time.Unix(0, 0).UTC(),
			Thresholds:              e.cfg.Thresholds,
			CreatedAt:               now,
			UpdatedAt:               now,
		}
		s.CurrentDifficulty = clampDifficulty(RecommendDifficultyLevel(score), s.MinDifficulty, s.MaxDifficulty)

		if err := e.store.SaveDDAState(ctx, s); err != nil {
			return fmt.Errorf("save dda state: %w", err)
		}
		log.Printf("[dda] initialized %s at %s (score %.2f)", p.UserID, s.CurrentDifficulty, score)
		state = &s
		return nil
	})
	return state, err
}

// State returns the user's record, or ErrDDANotInitialized.
func (e *DDAEngine) State(ctx context.Context, userID string) (*domain.DDAState, error) {
	s, err := e.store.GetDDAState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, domain.ErrDDANotInitialized
	}
	return s, nil
}

// EvaluateAndAdjustDifficulty recomputes metrics from progress and moves the
// difficulty one step when the score leaves the maintain band. Returns nil
// when nothing changed: uninitialized user, cooldown, maintain band, or a bound.
func (e *DDAEngine) EvaluateAndAdjustDifficulty(ctx context.Context, userID string, progress []domain.MissionProgress) (*domain.DDAdjustment, error) {
	var adj *domain.DDAdjustment
	err := withLock(ctx, e.locker, e.cfg.LockWait, ddaKey(userID), func() error {
		s, err := e.store.GetDDAState(ctx, userID)
		if err != nil {
			return fmt.Errorf("get dda state: %w", err)
		}
		if s == nil {
			log.Printf("[dda] WARNING: evaluation requested for uninitialized user %s", userID)
			return nil
		}

		now := e.now()
		if now.Sub(s.LastAdjustmentAt) < e.cfg.Cooldown {
			return nil
		}

		s.Metrics = e.computeMetrics(s.Metrics, progress, now)
		s.UpdatedAt = now
		score := PerformanceScore(s.Metrics)

		from := s.CurrentDifficulty
		to, reason := from, ""
		switch {
		case score < s.Thresholds.DecreaseDifficulty:
			to = shiftDifficulty(from, -1, s.MinDifficulty, s.MaxDifficulty)
			reason = fmt.Sprintf("performance score %.0f%% below %.0f%%, lowering difficulty",
				score*100, s.Thresholds.DecreaseDifficulty*100)
		case score > s.Thresholds.IncreaseDifficulty:
			to = shiftDifficulty(from, +1, s.MinDifficulty, s.MaxDifficulty)
			reason = fmt.Sprintf("performance score %.0f%% above %.0f%%, raising difficulty",
				score*100, s.Thresholds.IncreaseDifficulty*100)
		}

		if to != from {
			a := domain.DDAdjustment{
				Timestamp:        now,
				FromDifficulty:   from,
				ToDifficulty:     to,
				Reason:           reason,
				PerformanceScore: score,
				CompletionRate:   s.Metrics.CompletionRate,
				StreakDays:       s.Metrics.StreakDays,
				EngagementRate:   s.Metrics.EngagementRate,
				DropRate:         s.Metrics.DropRate,
			}
			s.AdjustmentHistory = append(s.AdjustmentHistory, a)
			if len(s.AdjustmentHistory) > historyCap {
				s.AdjustmentHistory = append([]domain.DDAdjustment(nil), s.AdjustmentHistory[len(s.AdjustmentHistory)-historyKeep:]...)
			}
			s.CurrentPerformanceScore = score
			s.CurrentDifficulty = to
			s.LastAdjustmentAt = now
			adj = &a
			log.Printf("[dda] %s: %s -> %s (%s)", userID, from, to, reason)
		}

		if err := e.store.SaveDDAState(ctx, *s); err != nil {
			return fmt.Errorf("save dda state: %w", err)
		}
		return nil
	})
	return adj, err
}

// GetRecommendedDifficulty returns the tier for the user's stored score,
// clamped to their bounds. Uninitialized users get medium.
func (e *DDAEngine) GetRecommendedDifficulty(ctx context.Context, userID string) (domain.Difficulty, error) {
	s, err := e.store.GetDDAState(ctx, userID)
	if err != nil {
		return "", err
	}
	if s == nil {
		return domain.DifficultyMedium, nil
	}
	return clampDifficulty(RecommendDifficultyLevel(s.CurrentPerformanceScore), s.MinDifficulty, s.MaxDifficulty), nil
}

// SyncStreak refreshes the streak metric. No-op for uninitialized users.
func (e *DDAEngine) SyncStreak(ctx context.Context, userID string, days int) error {
	return withLock(ctx, e.locker, e.cfg.LockWait, ddaKey(userID), func() error {
		s, err := e.store.GetDDAState(ctx, userID)
		if err != nil || s == nil {
			return err
		}
		if s.Metrics.StreakDays == days {
			return nil
		}
		s.Metrics.StreakDays = days
		s.UpdatedAt = e.now()
		return e.store.SaveDDAState(ctx, *s)
	})
}

// ─── Scoring ────────────────────────────────────────────────────────────────

// PerformanceScore combines the metrics into [0,1]:
// completion×0.4 + streakFactor×0.3 + engagement×0.2 − drop×0.1.
func PerformanceScore(m domain.PerformanceMetrics) float64 {
	streakFactor := math.Min(1, math.Log(float64(m.StreakDays)+1)/math.Log(15))
	if m.StreakDays < 0 {
		streakFactor = 0
	}
	score := m.CompletionRate*0.4 + streakFactor*0.3 + m.EngagementRate*0.2 - m.DropRate*0.1
	return clamp(score, 0, 1)
}

// RecommendDifficultyLevel maps a score to a tier: <0.4 easy, >0.7 hard, else medium.
func RecommendDifficultyLevel(score float64) domain.Difficulty {
	switch {
	case score < 0.4:
		return domain.DifficultyEasy
	case score > 0.7:
		return domain.DifficultyHard
	default:
		return domain.DifficultyMedium
	}
}

// computeMetrics derives metrics from the most recent HistoryWindow records.
// An empty history keeps prev. Streak days always carry over from prev.
func (e *DDAEngine) computeMetrics(prev domain.PerformanceMetrics, progress []domain.MissionProgress, now time.Time) domain.PerformanceMetrics {
	if len(progress) == 0 {
		return prev
	}

	recent := append([]domain.MissionProgress(nil), progress...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].LastActiveAt.After(recent[j].LastActiveAt)
	})
	if len(recent) > e.cfg.HistoryWindow {
		recent = recent[:e.cfg.HistoryWindow]
	}

	var completed, dropped int
	var efficiency, minutes float64
	weekAgo := now.Add(-7 * 24 * time.Hour)
	days := make(map[string]bool)

	for _, p := range recent {
		switch p.Status {
		case domain.MissionCompleted:
			completed++
			minutes += p.TimeSpent
		case domain.MissionFailed:
			dropped++
		case domain.MissionActive:
			if now.Sub(p.LastActiveAt) > e.cfg.StagnantAfter {
				dropped++
			}
		}
		efficiency += p.Efficiency
		if !p.LastActiveAt.Before(weekAgo) && !p.LastActiveAt.After(now) {
			days[p.LastActiveAt.In(e.cfg.Location).Format("2006-01-02")] = true
		}
	}

	total := float64(len(recent))
	m := domain.PerformanceMetrics{
		CompletionRate:   float64(completed) / total,
		DropRate:         float64(dropped) / total,
		EngagementRate:   clamp(efficiency/total, 0, 1),
		SessionFrequency: math.Min(1, float64(len(days))/7),
		StreakDays:       prev.StreakDays,
	}
	if completed > 0 {
		m.AverageTimeToComplete = minutes / float64(completed)
	}
	return m
}

func seedMetrics(p domain.GamificationProfile) domain.PerformanceMetrics {
	st := p.Stats
	if st.MissionsCompleted == 0 {
		return domain.PerformanceMetrics{
			CompletionRate:   0.5,
			DropRate:         0.5,
			EngagementRate:   0.5,
			SessionFrequency: 0.5,
			StreakDays:       p.Streak.CurrentDays,
		}
	}

	started := st.MissionsStarted
	if floor := st.MissionsCompleted + st.MissionsFailed; started < floor {
		started = floor
	}
	return domain.PerformanceMetrics{
		CompletionRate:        float64(st.MissionsCompleted) / float64(started),
		AverageTimeToComplete: st.AverageMissionMinutes,
		StreakDays:            p.Streak.CurrentDays,
		DropRate:              float64(st.MissionsFailed) / float64(started),
		EngagementRate:        clamp(st.EngagementRate, 0, 1),
		SessionFrequency:      math.Min(1, float64(p.Streak.CurrentDays)/7),
	}
}

// ─── Difficulty scale ───────────────────────────────────────────────────────

// shiftDifficulty moves d by step along the scale, clamped to [lo, hi].
func shiftDifficulty(d domain.Difficulty, step int, lo, hi domain.Difficulty) domain.Difficulty {
	r := d.Rank()
	if r < 0 {
		r = domain.DifficultyMedium.Rank()
	}
	r += step
	if r < 0 {
		r = 0
	}
	if r >= len(domain.DifficultyScale) {
		r = len(domain.DifficultyScale) - 1
	}
	return clampDifficulty(domain.DifficultyScale[r], lo, hi)
}

func clampDifficulty(d, lo, hi domain.Difficulty) domain.Difficulty {
	r, l, h := d.Rank(), lo.Rank(), hi.Rank()
	if l < 0 {
		l = 0
	}
	if h < 0 {
		h = len(domain.DifficultyScale) - 1
	}
	if r < l {
		r = l
	}
	if r > h {
		r = h
	}
	return domain.DifficultyScale[r]
}

func ddaKey(userID string) string { return "dda:" + userID }
