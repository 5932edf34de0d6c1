package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/piucane/piucane/internal/domain"
)

// ─── Mission Progress ───────────────────────────────────────────────────────

const missionColumns = `id, user_id, mission_id, category, difficulty, total_steps, steps_completed,
	estimated_minutes, status, time_spent, efficiency, quality_score, reward_xp, started_at, last_active_at, completed_at`

// InsertMissionProgress records a new mission attempt.
func (d *DB) InsertMissionProgress(ctx context.Context, p domain.MissionProgress) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO mission_progress (`+missionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.MissionID, p.Category, string(p.Difficulty), p.TotalSteps, p.StepsCompleted,
		p.EstimatedMins, string(p.Status), p.TimeSpent, p.Efficiency, p.QualityScore, p.RewardXP,
		p.StartedAt.Unix(), p.LastActiveAt.Unix(), nullableUnix(p.CompletedAt),
	)
	return err
}

// GetMissionProgress retrieves a mission attempt by ID.
func (d *DB) GetMissionProgress(ctx context.Context, id string) (*domain.MissionProgress, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+missionColumns+` FROM mission_progress WHERE id = ?`, id)
	return scanMission(row)
}

// UpdateMissionProgress overwrites the mutable fields of an attempt.
func (d *DB) UpdateMissionProgress(ctx context.Context, p domain.MissionProgress) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE mission_progress SET
			steps_completed = ?, status = ?, time_spent = ?, efficiency = ?,
			quality_score = ?, last_active_at = ?, completed_at = ?
		 WHERE id = ?`,
		p.StepsCompleted, string(p.Status), p.TimeSpent, p.Efficiency,
		p.QualityScore, p.LastActiveAt.Unix(), nullableUnix(p.CompletedAt), p.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrMissionNotFound
	}
	return nil
}

// RecentMissionProgress returns the n most recently active attempts, newest first.
func (d *DB) RecentMissionProgress(ctx context.Context, userID string, n int) ([]domain.MissionProgress, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+missionColumns+` FROM mission_progress
		 WHERE user_id = ? ORDER BY last_active_at DESC, rowid DESC LIMIT ?`, userID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MissionProgress
	for rows.Next() {
		p, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanMission(s scanner) (*domain.MissionProgress, error) {
	var p domain.MissionProgress
	var startedAt, lastActive int64
	var completedAt sql.NullInt64

	err := s.Scan(&p.ID, &p.UserID, &p.MissionID, &p.Category, &p.Difficulty, &p.TotalSteps, &p.StepsCompleted,
		&p.EstimatedMins, &p.Status, &p.TimeSpent, &p.Efficiency, &p.QualityScore, &p.RewardXP,
		&startedAt, &lastActive, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.StartedAt = time.Unix(startedAt, 0)
	p.LastActiveAt = time.Unix(lastActive, 0)
	p.CompletedAt = unixPtr(completedAt)
	return &p, nil
}
