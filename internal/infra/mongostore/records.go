package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/piucane/piucane/internal/domain"
)

// ─── Mission Progress ───────────────────────────────────────────────────────

// InsertMissionProgress records a new mission attempt.
func (s *Store) InsertMissionProgress(ctx context.Context, p domain.MissionProgress) error {
	_, err := s.col(colMissions).InsertOne(ctx, p)
	return err
}

// GetMissionProgress retrieves a mission attempt by ID.
func (s *Store) GetMissionProgress(ctx context.Context, id string) (*domain.MissionProgress, error) {
	var p domain.MissionProgress
	err := s.col(colMissions).FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateMissionProgress overwrites the mutable fields of an attempt.
func (s *Store) UpdateMissionProgress(ctx context.Context, p domain.MissionProgress) error {
	res, err := s.col(colMissions).UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"steps_completed": p.StepsCompleted,
		"status":          p.Status,
		"time_spent":      p.TimeSpent,
		"efficiency":      p.Efficiency,
		"quality_score":   p.QualityScore,
		"last_active_at":  p.LastActiveAt,
		"completed_at":    p.CompletedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrMissionNotFound
	}
	return nil
}

// RecentMissionProgress returns the n most recently active attempts, newest first.
func (s *Store) RecentMissionProgress(ctx context.Context, userID string, n int) ([]domain.MissionProgress, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "last_active_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(n))
	cur, err := s.col(colMissions).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	var out []domain.MissionProgress
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ─── Rewards ────────────────────────────────────────────────────────────────

// rewardDoc keeps the position of a reward inside its batch so rewards
// earned at the same instant list in emission order.
type rewardDoc struct {
	domain.EarnedReward `bson:",inline"`
	Ord                 int `bson:"ord"`
}

// AddRewards inserts a batch of rewards with one ordered InsertMany.
func (s *Store) AddRewards(ctx context.Context, rewards []domain.EarnedReward) error {
	if len(rewards) == 0 {
		return nil
	}
	docs := make([]any, len(rewards))
	for i, r := range rewards {
		docs[i] = rewardDoc{EarnedReward: r, Ord: i}
	}
	if _, err := s.col(colRewards).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert rewards: %w", err)
	}
	return nil
}

// ListRewards returns a user's rewards in the order they were earned.
func (s *Store) ListRewards(ctx context.Context, userID string) ([]domain.EarnedReward, error) {
	opts := options.Find().SetSort(bson.D{{Key: "earned_at", Value: 1}, {Key: "ord", Value: 1}})
	cur, err := s.col(colRewards).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []rewardDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.EarnedReward, len(docs))
	for i, d := range docs {
		out[i] = d.EarnedReward
	}
	return out, nil
}

// GetReward retrieves a reward by ID.
func (s *Store) GetReward(ctx context.Context, id string) (*domain.EarnedReward, error) {
	var d rewardDoc
	err := s.col(colRewards).FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d.EarnedReward, nil
}

// UpdateReward writes the claim state of a reward.
func (s *Store) UpdateReward(ctx context.Context, r domain.EarnedReward) error {
	res, err := s.col(colRewards).UpdateOne(ctx, bson.M{"_id": r.ID}, bson.M{"$set": bson.M{
		"status":     r.Status,
		"code":       r.Code,
		"claimed_at": r.ClaimedAt,
		"expires_at": r.ExpiresAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrRewardNotFound
	}
	return nil
}

// ExpireRewards marks pending rewards whose expiry has passed.
func (s *Store) ExpireRewards(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.col(colRewards).UpdateMany(ctx,
		bson.M{
			"status":     domain.RewardPending,
			"expires_at": bson.M{"$ne": nil, "$lte": t},
		},
		bson.M{"$set": bson.M{"status": domain.RewardExpired}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ─── DDA State ──────────────────────────────────────────────────────────────

// GetDDAState loads a user's difficulty record. Returns nil if absent.
func (s *Store) GetDDAState(ctx context.Context, userID string) (*domain.DDAState, error) {
	var st domain.DDAState
	err := s.col(colDDA).FindOne(ctx, bson.M{"_id": userID}).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveDDAState replaces a user's difficulty record, creating it if needed.
func (s *Store) SaveDDAState(ctx context.Context, st domain.DDAState) error {
	_, err := s.col(colDDA).ReplaceOne(ctx, bson.M{"_id": st.UserID}, st, options.Replace().SetUpsert(true))
	return err
}

// ─── Badges ─────────────────────────────────────────────────────────────────

type badgeDoc struct {
	ID         string    `bson:"_id"` // user_id/badge_id
	UserID     string    `bson:"user_id"`
	BadgeID    string    `bson:"badge_id"`
	UnlockedAt time.Time `bson:"unlocked_at"`
}

// UnlockBadge records a badge as unlocked.
// Returns false if already unlocked (idempotent).
func (s *Store) UnlockBadge(ctx context.Context, userID, badgeID string, at time.Time) (bool, error) {
	_, err := s.col(colBadges).InsertOne(ctx, badgeDoc{
		ID: userID + "/" + badgeID, UserID: userID, BadgeID: badgeID, UnlockedAt: at,
	})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListBadges returns a user's unlocked badges, oldest first.
func (s *Store) ListBadges(ctx context.Context, userID string) ([]domain.UnlockedBadge, error) {
	opts := options.Find().SetSort(bson.D{{Key: "unlocked_at", Value: 1}, {Key: "badge_id", Value: 1}})
	cur, err := s.col(colBadges).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	var out []domain.UnlockedBadge
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification queues a notification under the next sequence number.
func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) (int64, error) {
	seq, err := s.nextSeq(ctx, colNotifications)
	if err != nil {
		return 0, fmt.Errorf("next notification id: %w", err)
	}
	n.ID = seq
	if _, err := s.col(colNotifications).InsertOne(ctx, n); err != nil {
		return 0, err
	}
	return seq, nil
}

// NotificationCountSince counts a user's notifications created at or after since.
func (s *Store) NotificationCountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	n, err := s.col(colNotifications).CountDocuments(ctx, bson.M{
		"user_id":    userID,
		"created_at": bson.M{"$gte": since},
	})
	return int(n), err
}

// ListPendingNotifications returns unshown notifications, newest first.
func (s *Store) ListPendingNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.col(colNotifications).Find(ctx, bson.M{"user_id": userID, "shown": false}, opts)
	if err != nil {
		return nil, err
	}
	var out []domain.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationShown marks a notification as shown.
func (s *Store) MarkNotificationShown(ctx context.Context, id int64) error {
	_, err := s.col(colNotifications).UpdateOne(ctx, bson.M{"seq": id}, bson.M{"$set": bson.M{"shown": true}})
	return err
}

func (s *Store) nextSeq(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.col(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	return doc.Seq, err
}
