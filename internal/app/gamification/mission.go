package gamification

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/piucane/piucane/internal/domain"
)

// MissionTracker records mission attempts. Its records are the DDA history.
type MissionTracker struct {
	store domain.MissionHistoryStore

	now   func() time.Time
	newID func() string
}

// NewMissionTracker creates a tracker over the mission-history store.
func NewMissionTracker(store domain.MissionHistoryStore) *MissionTracker {
	return &MissionTracker{store: store, now: time.Now, newID: uuid.NewString}
}

// Start opens an attempt at m. m.Difficulty must be a fixed tier.
func (t *MissionTracker) Start(ctx context.Context, userID string, m domain.Mission) (*domain.MissionProgress, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if len(m.Steps) == 0 {
		return nil, fmt.Errorf("%w: mission %q has no steps", domain.ErrInvalidInput, m.ID)
	}
	if m.Difficulty.Rank() < 0 {
		return nil, fmt.Errorf("%w: mission difficulty must be easy, medium or hard, got %q", domain.ErrInvalidInput, m.Difficulty)
	}

	estimated := m.EstimatedDuration
	if estimated <= 0 {
		for _, st := range m.Steps {
			estimated += st.EstimatedMinutes
		}
	}

	now := t.now()
	p := domain.MissionProgress{
		ID:            t.newID(),
		UserID:        userID,
		MissionID:     m.ID,
		Category:      m.Category,
		Difficulty:    m.Difficulty,
		TotalSteps:    len(m.Steps),
		EstimatedMins: estimated,
		RewardXP:      m.Rewards.XP,
		Status:        domain.MissionActive,
		StartedAt:     now,
		LastActiveAt:  now,
	}
	if err := t.store.InsertMissionProgress(ctx, p); err != nil {
		return nil, fmt.Errorf("insert mission progress: %w", err)
	}
	return &p, nil
}

// Get loads an attempt, or ErrMissionNotFound.
func (t *MissionTracker) Get(ctx context.Context, id string) (*domain.MissionProgress, error) {
	p, err := t.store.GetMissionProgress(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrMissionNotFound
	}
	return p, nil
}

// RecordStep marks the next step done and adds minutes to the time spent.
func (t *MissionTracker) RecordStep(ctx context.Context, p *domain.MissionProgress, minutes float64) error {
	if p.Status != domain.MissionActive {
		return domain.ErrMissionNotActive
	}
	if minutes < 0 || math.IsNaN(minutes) {
		return fmt.Errorf("%w: minutes must be non-negative", domain.ErrInvalidInput)
	}
	if p.StepsCompleted < p.TotalSteps {
		p.StepsCompleted++
	}
	p.TimeSpent += minutes
	p.LastActiveAt = t.now()
	return t.store.UpdateMissionProgress(ctx, *p)
}

// Complete closes an attempt. quality in [0,1] scales the efficiency score:
// efficiency = clamp(estimated/actual, 0, 1) × clamp(1+(q-0.5)×0.5, 0.75, 1.25), capped at 1.
func (t *MissionTracker) Complete(ctx context.Context, p *domain.MissionProgress, quality float64) error {
	if p.Status != domain.MissionActive {
		return domain.ErrMissionNotActive
	}
	if math.IsNaN(quality) {
		return fmt.Errorf("%w: quality must be a number", domain.ErrInvalidInput)
	}
	quality = clamp(quality, 0, 1)

	now := t.now()
	if p.TimeSpent <= 0 {
		p.TimeSpent = now.Sub(p.StartedAt).Minutes()
	}

	timeRatio := 1.0
	if p.TimeSpent > 0 && p.EstimatedMins > 0 {
		timeRatio = clamp(float64(p.EstimatedMins)/p.TimeSpent, 0, 1)
	}
	qualityAdj := qualityFactor(quality)

	p.StepsCompleted = p.TotalSteps
	p.Status = domain.MissionCompleted
	p.QualityScore = quality
	p.Efficiency = clamp(timeRatio*qualityAdj, 0, 1)
	p.LastActiveAt = now
	p.CompletedAt = &now
	return t.store.UpdateMissionProgress(ctx, *p)
}

// Fail closes an attempt as dropped.
func (t *MissionTracker) Fail(ctx context.Context, p *domain.MissionProgress) error {
	if p.Status != domain.MissionActive {
		return domain.ErrMissionNotActive
	}
	p.Status = domain.MissionFailed
	p.LastActiveAt = t.now()
	return t.store.UpdateMissionProgress(ctx, *p)
}

// Recent returns the user's n most recently active attempts.
func (t *MissionTracker) Recent(ctx context.Context, userID string, n int) ([]domain.MissionProgress, error) {
	return t.store.RecentMissionProgress(ctx, userID, n)
}
