package gamification

import (
	"context"
	"fmt"
	"math"

	"github.com/piucane/piucane/internal/domain"
)

// DifficultyRecommender resolves the adaptive tier for a user.
type DifficultyRecommender interface {
	GetRecommendedDifficulty(ctx context.Context, userID string) (domain.Difficulty, error)
}

const (
	easyEncouragement = "Take it slow: every small step counts."
	hardChallenge     = "Challenge: go for a cleaner, more consistent result than last time."
	easySessionTip    = "Split the mission into shorter sessions if your dog loses focus."
	hardSessionTip    = "Plan longer sessions so you can repeat each step a few times."
)

type tierTransform struct {
	minutes      float64
	xp           float64
	note         string
	tip          string
	verification func(domain.Verification) domain.Verification
}

var tierTransforms = map[domain.Difficulty]tierTransform{
	domain.DifficultyEasy: {
		minutes: 0.7,
		xp:      0.8,
		note:    easyEncouragement,
		tip:     easySessionTip,
		verification: func(v domain.Verification) domain.Verification {
			v.Required = false
			return v
		},
	},
	domain.DifficultyHard: {
		minutes: 1.3,
		xp:      1.2,
		note:    hardChallenge,
		tip:     hardSessionTip,
		verification: func(v domain.Verification) domain.Verification {
			v.Required = true
			return v
		},
	},
}

// MissionAdapter reshapes missions for a difficulty tier.
type MissionAdapter struct {
	recommender DifficultyRecommender
}

// NewMissionAdapter creates an adapter resolving adaptive targets through r.
func NewMissionAdapter(r DifficultyRecommender) *MissionAdapter {
	return &MissionAdapter{recommender: r}
}

// AdaptMissionForDifficulty returns a transformed copy of m. The input is
// never modified and the output difficulty is never adaptive.
func (a *MissionAdapter) AdaptMissionForDifficulty(ctx context.Context, m domain.Mission, target domain.Difficulty, p domain.GamificationProfile) (domain.Mission, error) {
	if target == domain.DifficultyAdaptive {
		resolved, err := a.recommender.GetRecommendedDifficulty(ctx, p.UserID)
		if err != nil {
			return domain.Mission{}, fmt.Errorf("resolve adaptive difficulty: %w", err)
		}
		if resolved == domain.DifficultyAdaptive || resolved.Rank() < 0 {
			return domain.Mission{}, fmt.Errorf("%w: recommender returned %q", domain.ErrInvalidInput, resolved)
		}
		target = resolved
	}

	out := m.Clone()
	switch target {
	case domain.DifficultyMedium:
		out.Difficulty = domain.DifficultyMedium
		return out, nil
	case domain.DifficultyEasy, domain.DifficultyHard:
	default:
		return domain.Mission{}, fmt.Errorf("%w: unknown target difficulty %q", domain.ErrInvalidInput, target)
	}

	tr := tierTransforms[target]
	for i := range out.Steps {
		st := &out.Steps[i]
		st.EstimatedMinutes = scaleMinutes(st.EstimatedMinutes, tr.minutes)
		st.Instructions = appendSentence(st.Instructions, tr.note)
		st.Verification = tr.verification(st.Verification)
	}
	out.EstimatedDuration = scaleMinutes(out.EstimatedDuration, tr.minutes)
	out.Rewards.XP = int64(math.Round(float64(out.Rewards.XP) * tr.xp))
	out.Tips = append(out.Tips, tr.tip)
	out.Difficulty = target
	return out, nil
}

// scaleMinutes rounds to the nearest minute; positive inputs stay at least 1.
func scaleMinutes(v int, factor float64) int {
	if v <= 0 {
		return v
	}
	scaled := int(math.Round(float64(v) * factor))
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}

func appendSentence(text, sentence string) string {
	if text == "" {
		return sentence
	}
	return text + " " + sentence
}
