package engagement

import (
	"fmt"
	"time"

	"github.com/puzzlepup/puzzlepup/internal/domain"
	"github.com/puzzlepup/puzzlepup/internal/infra/sqlite"
)

// NotificationService records achievement and milestone notifications.
// Policy: at most MaxPerDay notifications per user per day; anything beyond
// is silently suppressed. Notifications are purely additive — they never
// gate reward logic.
type NotificationService struct {
	db        *sqlite.DB
	maxPerDay int
}

// NewNotificationService creates a notification service.
func NewNotificationService(db *sqlite.DB, maxPerDay int) *NotificationService {
	if maxPerDay <= 0 {
		maxPerDay = 3
	}
	return &NotificationService{db: db, maxPerDay: maxPerDay}
}

// NotifyAchievement records an achievement-unlock notification.
// Returns the notification ID, or 0 when suppressed by the daily cap.
func (n *NotificationService) NotifyAchievement(userID, achievementID string, now time.Time) (int64, error) {
	return n.create(domain.Notification{
		UserID:    userID,
		Type:      domain.NotifyAchievement,
		Title:     "Achievement unlocked!",
		Body:      AchievementName(achievementID),
		CreatedAt: now,
	})
}

// NotifyMilestone records a streak-milestone notification.
func (n *NotificationService) NotifyMilestone(userID string, m Milestone, now time.Time) (int64, error) {
	return n.create(domain.Notification{
		UserID:    userID,
		Type:      domain.NotifyMilestone,
		Title:     fmt.Sprintf("Day %d streak!", m.Day),
		Body:      fmt.Sprintf("You earned %d %s", m.Amount, m.Kind),
		CreatedAt: now,
	})
}

func (n *NotificationService) create(notif domain.Notification) (int64, error) {
	dayStart := time.Date(notif.CreatedAt.Year(), notif.CreatedAt.Month(), notif.CreatedAt.Day(),
		0, 0, 0, 0, notif.CreatedAt.Location())
	count, err := n.db.NotificationCountSince(notif.UserID, dayStart)
	if err != nil {
		return 0, fmt.Errorf("count today: %w", err)
	}
	if count >= n.maxPerDay {
		return 0, nil // Suppressed — daily cap reached
	}

	id, err := n.db.InsertNotification(notif)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return id, nil
}

// Pending returns a user's unshown notifications.
func (n *NotificationService) Pending(userID string, limit int) ([]domain.Notification, error) {
	return n.db.ListPendingNotifications(userID, limit)
}

// MarkShown marks a notification as shown.
func (n *NotificationService) MarkShown(id int64) error {
	return n.db.MarkNotificationShown(id)
}
