package sqlite

import (
	"database/sql"
	"time"

	"github.com/puzzlepup/puzzlepup/internal/domain"
)

// ─── Reward Ledger ──────────────────────────────────────────────────────────

// InsertGrant appends a reward fact. Returns false without error when a
// grant with the same dedupe key already exists (idempotent).
func (d *DB) InsertGrant(q Querier, g domain.RewardGrant) (bool, error) {
	res, err := q.Exec(
		`INSERT INTO reward_ledger (id, user_id, kind, amount, source, dedupe_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(dedupe_key) DO NOTHING`,
		g.ID, g.UserID, string(g.Kind), g.Amount, g.Source, g.DedupeKey, g.CreatedAt.Unix(),
	)
	return oneRow(res, err)
}

// GetGrantByDedupe retrieves the grant recorded for a dedupe key.
// Returns (nil, nil) when none exists.
func (d *DB) GetGrantByDedupe(q Querier, key string) (*domain.RewardGrant, error) {
	row := q.QueryRow(
		`SELECT id, user_id, kind, amount, source, dedupe_key, created_at
		 FROM reward_ledger WHERE dedupe_key = ?`, key,
	)
	return scanGrant(row)
}

// RecentGrant returns the latest grant for (user, source) recorded within
// the trailing window, or (nil, nil). Used for the purchase-retry heuristic
// when no payment ID is supplied.
func (d *DB) RecentGrant(q Querier, userID, source string, now time.Time, within time.Duration) (*domain.RewardGrant, error) {
	row := q.QueryRow(
		`SELECT id, user_id, kind, amount, source, dedupe_key, created_at
		 FROM reward_ledger
		 WHERE user_id = ? AND source = ? AND created_at >= ?
		 ORDER BY created_at DESC LIMIT 1`,
		userID, source, now.Add(-within).Unix(),
	)
	return scanGrant(row)
}

// GrantsForUser lists a user's most recent ledger facts.
func (d *DB) GrantsForUser(q Querier, userID string, limit int) ([]domain.RewardGrant, error) {
	rows, err := q.Query(
		`SELECT id, user_id, kind, amount, source, dedupe_key, created_at
		 FROM reward_ledger WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []domain.RewardGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

func scanGrant(s scanner) (*domain.RewardGrant, error) {
	var g domain.RewardGrant
	var kind string
	var createdAt int64

	err := s.Scan(&g.ID, &g.UserID, &kind, &g.Amount, &g.Source, &g.DedupeKey, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	g.Kind = domain.RewardKind(kind)
	g.CreatedAt = time.Unix(createdAt, 0)
	return &g, nil
}

// ─── Achievements ───────────────────────────────────────────────────────────

// UnlockAchievement records an achievement as unlocked.
// Returns false if already unlocked (idempotent).
func (d *DB) UnlockAchievement(q Querier, userID, id string, at time.Time) (bool, error) {
	res, err := q.Exec(
		`INSERT OR IGNORE INTO user_achievements (user_id, achievement_id, unlocked_at)
		 VALUES (?, ?, ?)`,
		userID, id, at.Unix(),
	)
	return oneRow(res, err)
}

// AchievementSet returns the unlocked achievement ids for a user.
func (d *DB) AchievementSet(q Querier, userID string) (map[string]bool, error) {
	rows, err := q.Query(
		`SELECT achievement_id FROM user_achievements WHERE user_id = ?`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = true
	}
	return set, rows.Err()
}

// ListAchievements returns a user's unlocked achievements, newest first.
func (d *DB) ListAchievements(q Querier, userID string) ([]domain.UnlockedAchievement, error) {
	rows, err := q.Query(
		`SELECT achievement_id, unlocked_at FROM user_achievements
		 WHERE user_id = ? ORDER BY unlocked_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UnlockedAchievement
	for rows.Next() {
		var a domain.UnlockedAchievement
		var at int64
		if err := rows.Scan(&a.ID, &at); err != nil {
			return nil, err
		}
		a.UnlockedAt = time.Unix(at, 0)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification stores a notification for later display.
func (d *DB) InsertNotification(n domain.Notification) (int64, error) {
	res, err := d.db.Exec(
		`INSERT INTO notifications (user_id, type, title, body, created_at, shown)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		n.UserID, string(n.Type), n.Title, n.Body, n.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// NotificationCountSince counts a user's notifications created at or after
// the given instant.
func (d *DB) NotificationCountSince(userID string, since time.Time) (int, error) {
	var count int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND created_at >= ?`,
		userID, since.Unix(),
	).Scan(&count)
	return count, err
}

// ListPendingNotifications returns unshown notifications, oldest first.
func (d *DB) ListPendingNotifications(userID string, limit int) ([]domain.Notification, error) {
	rows, err := d.db.Query(
		`SELECT id, user_id, type, title, body, created_at, shown
		 FROM notifications WHERE user_id = ? AND shown = 0
		 ORDER BY created_at ASC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var typ string
		var createdAt int64
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Body, &createdAt, &n.Shown); err != nil {
			return nil, err
		}
		n.Type = domain.NotificationType(typ)
		n.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationShown marks a notification as shown.
func (d *DB) MarkNotificationShown(id int64) error {
	_, err := d.db.Exec(`UPDATE notifications SET shown = 1 WHERE id = ?`, id)
	return err
}
