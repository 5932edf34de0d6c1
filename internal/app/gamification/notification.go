package gamification

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/piucane/piucane/internal/domain"
)

// NotificationService stores user-facing notifications subject to policy:
//   - at most MaxPerDay per user per local day
//   - nothing between QuietStart and QuietEnd (local time)
//
// Delivery is someone else's job; this only queues.
type NotificationService struct {
	store  domain.NotificationStore
	policy domain.NotificationPolicy
	loc    *time.Location
	now    func() time.Time
}

// NewNotificationService creates a notification service.
func NewNotificationService(store domain.NotificationStore, policy domain.NotificationPolicy, loc *time.Location) *NotificationService {
	if loc == nil {
		loc = time.UTC
	}
	return &NotificationService{store: store, policy: policy, loc: loc, now: time.Now}
}

// Create stores notif if policy allows it.
// Returns the notification ID (0 if suppressed by policy) and any error.
func (n *NotificationService) Create(ctx context.Context, notif domain.Notification) (int64, error) {
	now := n.now()

	todayCount, err := n.TodayCount(ctx, notif.UserID)
	if err != nil {
		return 0, fmt.Errorf("count today: %w", err)
	}
	if todayCount >= n.policy.MaxPerDay {
		return 0, nil // daily limit reached
	}
	if n.isQuietHour(now.In(n.loc)) {
		return 0, nil
	}

	notif.CreatedAt = now
	notif.Shown = false

	id, err := n.store.InsertNotification(ctx, notif)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return id, nil
}

// Pending returns unshown notifications for a user.
func (n *NotificationService) Pending(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return n.store.ListPendingNotifications(ctx, userID, limit)
}

// MarkShown marks a notification as shown.
func (n *NotificationService) MarkShown(ctx context.Context, id int64) error {
	return n.store.MarkNotificationShown(ctx, id)
}

// TodayCount returns how many notifications the user got since local midnight.
func (n *NotificationService) TodayCount(ctx context.Context, userID string) (int, error) {
	local := n.now().In(n.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, n.loc)
	return n.store.NotificationCountSince(ctx, userID, midnight)
}

// Policy returns the current notification policy.
func (n *NotificationService) Policy() domain.NotificationPolicy {
	return n.policy
}

// isQuietHour reports whether t falls within [QuietStart, QuietEnd).
func (n *NotificationService) isQuietHour(t time.Time) bool {
	startHour, startMin := parseHHMM(n.policy.QuietStart)
	endHour, endMin := parseHHMM(n.policy.QuietEnd)

	timeMinutes := t.Hour()*60 + t.Minute()
	startMinutes := startHour*60 + startMin
	endMinutes := endHour*60 + endMin

	if startMinutes == endMinutes {
		return false
	}
	if startMinutes > endMinutes {
		// Wraps midnight: e.g., 22:00 – 08:00
		return timeMinutes >= startMinutes || timeMinutes < endMinutes
	}
	return timeMinutes >= startMinutes && timeMinutes < endMinutes
}

// parseHHMM parses "HH:MM" into hour and minute.
func parseHHMM(s string) (int, int) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h, m
}
