package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/piucane/piucane/internal/domain"
)

// ─── Profiles ───────────────────────────────────────────────────────────────

// GetProfile retrieves a profile. Returns nil if the user has none.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.GamificationProfile, error) {
	var p domain.GamificationProfile
	err := s.col(colProfiles).FindOne(ctx, bson.M{"_id": userID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProfile inserts a profile. Existing profiles are left untouched.
func (s *Store) CreateProfile(ctx context.Context, p domain.GamificationProfile) error {
	_, err := s.col(colProfiles).InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// ApplyProfileUpdate increments total_xp and sets the level fields in one
// document update, returning the document after the write.
func (s *Store) ApplyProfileUpdate(ctx context.Context, userID string, u domain.ProfileUpdate) (*domain.GamificationProfile, error) {
	updatedAt := u.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	update := bson.M{
		"$inc": bson.M{"total_xp": u.TotalXPDelta},
		"$set": bson.M{
			"current_level":    u.CurrentLevel,
			"xp_to_next_level": u.XPToNextLevel,
			"level_progress":   u.LevelProgress,
			"updated_at":       updatedAt,
		},
	}

	var p domain.GamificationProfile
	err := s.col(colProfiles).FindOneAndUpdate(ctx, bson.M{"_id": userID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveStreak overwrites the streak subdocument.
func (s *Store) SaveStreak(ctx context.Context, userID string, st domain.Streak) error {
	return s.setProfile(ctx, userID, bson.M{"streak": st, "updated_at": time.Now()})
}

// SetPremium flags or unflags a premium member.
func (s *Store) SetPremium(ctx context.Context, userID string, premium bool) error {
	return s.setProfile(ctx, userID, bson.M{"premium": premium, "updated_at": time.Now()})
}

func (s *Store) setProfile(ctx context.Context, userID string, fields bson.M) error {
	res, err := s.col(colProfiles).UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// IncrementMissionStats folds one mission outcome into the aggregates with a
// pipeline update. Every expression in a $set stage reads the pre-update
// document, so the averages use the old completed count.
func (s *Store) IncrementMissionStats(ctx context.Context, userID string, d domain.MissionStatsDelta) error {
	set := bson.M{
		"stats.missions_started": bson.M{"$add": bson.A{"$stats.missions_started", d.Started}},
		"stats.missions_failed":  bson.M{"$add": bson.A{"$stats.missions_failed", d.Failed}},
		"updated_at":             time.Now(),
	}
	if d.Completed > 0 {
		completed := "$stats.missions_completed"
		next := bson.M{"$add": bson.A{completed, d.Completed}}
		set["stats.average_mission_minutes"] = runningAverage("$stats.average_mission_minutes", completed, d.Minutes, next)
		set["stats.engagement_rate"] = runningAverage("$stats.engagement_rate", completed, d.Efficiency, next)
		set["stats.missions_completed"] = next
	}

	res, err := s.col(colProfiles).UpdateOne(ctx, bson.M{"_id": userID},
		mongo.Pipeline{{{Key: "$set", Value: set}}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// runningAverage is (avg × n + v) / next.
func runningAverage(avg, n string, v float64, next bson.M) bson.M {
	return bson.M{"$divide": bson.A{
		bson.M{"$add": bson.A{bson.M{"$multiply": bson.A{avg, n}}, v}},
		next,
	}}
}
