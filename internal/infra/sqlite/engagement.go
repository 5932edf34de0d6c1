package sqlite

import (
	"context"
	"time"

	"github.com/piucane/piucane/internal/domain"
)

// ─── Badges ─────────────────────────────────────────────────────────────────

// UnlockBadge records a badge as unlocked.
// Returns false if already unlocked (idempotent).
func (d *DB) UnlockBadge(ctx context.Context, userID, badgeID string, at time.Time) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO badges (user_id, badge_id, unlocked_at) VALUES (?, ?, ?)`,
		userID, badgeID, at.Unix(),
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil // true = newly unlocked
}

// ListBadges returns a user's unlocked badges, oldest first.
func (d *DB) ListBadges(ctx context.Context, userID string) ([]domain.UnlockedBadge, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT badge_id, unlocked_at FROM badges WHERE user_id = ? ORDER BY unlocked_at ASC, badge_id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var badges []domain.UnlockedBadge
	for rows.Next() {
		var b domain.UnlockedBadge
		var unlockedAt int64
		if err := rows.Scan(&b.BadgeID, &unlockedAt); err != nil {
			return nil, err
		}
		b.UnlockedAt = time.Unix(unlockedAt, 0)
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification queues a notification.
func (d *DB) InsertNotification(ctx context.Context, n domain.Notification) (int64, error) {
	result, err := d.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, type, title, body, created_at, shown)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		n.UserID, string(n.Type), n.Title, n.Body, n.CreatedAt.Unix(), n.Shown,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// NotificationCountSince counts a user's notifications created at or after since.
func (d *DB) NotificationCountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND created_at >= ?`,
		userID, since.Unix(),
	).Scan(&count)
	return count, err
}

// ListPendingNotifications returns unshown notifications, newest first.
func (d *DB) ListPendingNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, type, title, body, created_at, shown
		 FROM notifications WHERE user_id = ? AND shown = 0
		 ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var createdAt int64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &createdAt, &n.Shown); err != nil {
			return nil, err
		}
		n.CreatedAt = time.Unix(createdAt, 0)
		notifs = append(notifs, n)
	}
	return notifs, rows.Err()
}

// MarkNotificationShown marks a notification as shown.
func (d *DB) MarkNotificationShown(ctx context.Context, id int64) error {
	_, err := d.db.ExecContext(ctx, `UPDATE notifications SET shown = 1 WHERE id = ?`, id)
	return err
}
