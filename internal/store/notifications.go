package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const notificationColumns = `id, user_id, type, title, message, task_id, read, created_at`

// InsertNotification appends an inbox event.
func (q queries) InsertNotification(ctx context.Context, n *Notification) error {
	if n == nil {
		return errors.New("notification is nil")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err := q.execWrite(ctx, "notification",
		`INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.TaskID, boolToInt(n.Read), formatTime(n.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's inbox newest first.
func (q queries) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	args := []any{userID}
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.exec.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var (
			n         Notification
			read      int
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.TaskID, &read, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Read = read != 0
		if t, err := parseTimeString(createdAt); err == nil {
			n.CreatedAt = t
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flags one of the user's notifications read and reports
// whether it exists for that user.
func (q queries) MarkNotificationRead(ctx context.Context, id, userID string) (bool, error) {
	res, err := q.execWrite(ctx, "notification",
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkAllNotificationsRead flags every unread notification of a user and returns the count.
func (q queries) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res, err := q.execWrite(ctx, "notification",
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}

// UnreadNotificationCount counts a user's unread notifications.
func (q queries) UnreadNotificationCount(ctx context.Context, userID string) (int, error) {
	var count int
	if err := q.exec.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM notifications WHERE user_id = ? AND read = 0`, userID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
