package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/piucane/piucane/internal/domain"
)

// ─── Rewards ────────────────────────────────────────────────────────────────

const rewardColumns = `id, user_id, type, value, sku, code, status, earned_at, expires_at, claimed_at,
	source_type, source_id, source_name`

// AddRewards inserts a batch of rewards in a single transaction.
func (d *DB) AddRewards(ctx context.Context, rewards []domain.EarnedReward) error {
	if len(rewards) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rewards (`+rewardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rewards {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.UserID, string(r.Type), r.Value, r.SKU, r.Code, string(r.Status),
			r.EarnedAt.Unix(), nullableUnix(r.ExpiresAt), nullableUnix(r.ClaimedAt),
			r.SourceType, r.SourceID, r.SourceName,
		); err != nil {
			return fmt.Errorf("insert reward %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// ListRewards returns a user's rewards in the order they were earned.
func (d *DB) ListRewards(ctx context.Context, userID string) ([]domain.EarnedReward, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+rewardColumns+` FROM rewards WHERE user_id = ? ORDER BY earned_at ASC, rowid ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EarnedReward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetReward retrieves a reward by ID.
func (d *DB) GetReward(ctx context.Context, id string) (*domain.EarnedReward, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id = ?`, id)
	return scanReward(row)
}

// UpdateReward writes the claim state of a reward.
func (d *DB) UpdateReward(ctx context.Context, r domain.EarnedReward) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE rewards SET status = ?, code = ?, claimed_at = ?, expires_at = ? WHERE id = ?`,
		string(r.Status), r.Code, nullableUnix(r.ClaimedAt), nullableUnix(r.ExpiresAt), r.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrRewardNotFound
	}
	return nil
}

// ExpireRewards marks pending rewards whose expiry has passed.
func (d *DB) ExpireRewards(ctx context.Context, t time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx,
		`UPDATE rewards SET status = ? WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		string(domain.RewardExpired), string(domain.RewardPending), t.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanReward(s scanner) (*domain.EarnedReward, error) {
	var r domain.EarnedReward
	var earnedAt int64
	var expiresAt, claimedAt sql.NullInt64

	err := s.Scan(&r.ID, &r.UserID, &r.Type, &r.Value, &r.SKU, &r.Code, &r.Status,
		&earnedAt, &expiresAt, &claimedAt, &r.SourceType, &r.SourceID, &r.SourceName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.EarnedAt = time.Unix(earnedAt, 0)
	r.ExpiresAt = unixPtr(expiresAt)
	r.ClaimedAt = unixPtr(claimedAt)
	return &r, nil
}
