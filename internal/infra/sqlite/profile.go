package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/piucane/piucane/internal/domain"
)

// ─── Profiles ───────────────────────────────────────────────────────────────

const profileColumns = `user_id, total_xp, current_level, xp_to_next_level, level_progress, premium,
	missions_started, missions_completed, missions_failed, avg_mission_minutes, engagement_rate,
	streak_current, streak_longest, streak_last_date, streak_freeze_used, streak_freeze_week,
	created_at, updated_at`

// GetProfile retrieves a profile. Returns nil if the user has none.
func (d *DB) GetProfile(ctx context.Context, userID string) (*domain.GamificationProfile, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID)
	return scanProfile(row)
}

// CreateProfile inserts a profile. Existing profiles are left untouched.
func (d *DB) CreateProfile(ctx context.Context, p domain.GamificationProfile) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.TotalXP, p.CurrentLevel, p.XPToNextLevel, p.LevelProgress, p.Premium,
		p.Stats.MissionsStarted, p.Stats.MissionsCompleted, p.Stats.MissionsFailed,
		p.Stats.AverageMissionMinutes, p.Stats.EngagementRate,
		p.Streak.CurrentDays, p.Streak.LongestDays, nullableUnix(&p.Streak.LastDate),
		p.Streak.FreezeUsed, p.Streak.FreezeWeekISO,
		p.CreatedAt.Unix(), p.UpdatedAt.Unix(),
	)
	return err
}

// ApplyProfileUpdate increments total_xp and sets the derived level fields in
// one transaction, then returns the stored row.
func (d *DB) ApplyProfileUpdate(ctx context.Context, userID string, u domain.ProfileUpdate) (*domain.GamificationProfile, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	updatedAt := u.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE profiles SET
			total_xp = total_xp + ?,
			current_level = ?,
			xp_to_next_level = ?,
			level_progress = ?,
			updated_at = ?
		 WHERE user_id = ?`,
		u.TotalXPDelta, u.CurrentLevel, u.XPToNextLevel, u.LevelProgress, updatedAt.Unix(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, domain.ErrProfileNotFound
	}

	p, err := scanProfile(tx.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

// SaveStreak overwrites the streak columns of a profile.
func (d *DB) SaveStreak(ctx context.Context, userID string, s domain.Streak) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE profiles SET
			streak_current = ?, streak_longest = ?, streak_last_date = ?,
			streak_freeze_used = ?, streak_freeze_week = ?, updated_at = ?
		 WHERE user_id = ?`,
		s.CurrentDays, s.LongestDays, nullableUnix(&s.LastDate),
		s.FreezeUsed, s.FreezeWeekISO, time.Now().Unix(), userID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// IncrementMissionStats folds one mission outcome into the profile aggregates.
// Right-hand sides see the pre-update row, so the running averages use the old count.
func (d *DB) IncrementMissionStats(ctx context.Context, userID string, delta domain.MissionStatsDelta) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE profiles SET
			missions_started = missions_started + ?,
			missions_failed = missions_failed + ?,
			avg_mission_minutes = CASE WHEN ? > 0
				THEN (avg_mission_minutes * missions_completed + ?) / (missions_completed + ?)
				ELSE avg_mission_minutes END,
			engagement_rate = CASE WHEN ? > 0
				THEN (engagement_rate * missions_completed + ?) / (missions_completed + ?)
				ELSE engagement_rate END,
			missions_completed = missions_completed + ?,
			updated_at = ?
		 WHERE user_id = ?`,
		delta.Started, delta.Failed,
		delta.Completed, delta.Minutes, delta.Completed,
		delta.Completed, delta.Efficiency, delta.Completed,
		delta.Completed, time.Now().Unix(), userID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// SetPremium flags or unflags a premium member.
func (d *DB) SetPremium(ctx context.Context, userID string, premium bool) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE profiles SET premium = ?, updated_at = ? WHERE user_id = ?`,
		premium, time.Now().Unix(), userID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func scanProfile(s scanner) (*domain.GamificationProfile, error) {
	var p domain.GamificationProfile
	var lastDate sql.NullInt64
	var createdAt, updatedAt int64

	err := s.Scan(&p.UserID, &p.TotalXP, &p.CurrentLevel, &p.XPToNextLevel, &p.LevelProgress, &p.Premium,
		&p.Stats.MissionsStarted, &p.Stats.MissionsCompleted, &p.Stats.MissionsFailed,
		&p.Stats.AverageMissionMinutes, &p.Stats.EngagementRate,
		&p.Streak.CurrentDays, &p.Streak.LongestDays, &lastDate,
		&p.Streak.FreezeUsed, &p.Streak.FreezeWeekISO,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if lastDate.Valid {
		p.Streak.LastDate = time.Unix(lastDate.Int64, 0).UTC()
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}
