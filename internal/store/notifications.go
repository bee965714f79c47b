package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const notificationColumns = "id, episode_id, channel, recipient, status, scheduled_at, sent_at, error_message, created_at, updated_at"

func scanNotification(scanner interface{ Scan(dest ...any) error }) (*Notification, error) {
	var (
		id           int64
		episodeID    string
		channelStr   string
		recipient    string
		statusStr    string
		scheduledRaw sql.NullString
		sentRaw      sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&episodeID,
		&channelStr,
		&recipient,
		&statusStr,
		&scheduledRaw,
		&sentRaw,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	status, ok := ParseNotificationStatus(statusStr)
	if !ok {
		return nil, fmt.Errorf("unknown notification status %q", statusStr)
	}
	channel, ok := ParseChannel(channelStr)
	if !ok {
		return nil, fmt.Errorf("unknown notification channel %q", channelStr)
	}

	return &Notification{
		ID:           id,
		EpisodeID:    episodeID,
		Channel:      channel,
		Recipient:    recipient,
		Status:       status,
		ScheduledAt:  parseTimestamp(scheduledRaw),
		SentAt:       parseTimestamp(sentRaw),
		ErrorMessage: errorMessage.String,
		CreatedAt:    parseTimestamp(createdRaw),
		UpdatedAt:    parseTimestamp(updatedRaw),
	}, nil
}

// CreateNotification inserts a pending notification request.
func (s *Store) CreateNotification(ctx context.Context, episodeID string, channel Channel, recipient string, scheduledAt time.Time) (*Notification, error) {
	now := time.Now().UTC()
	if scheduledAt.IsZero() {
		scheduledAt = now
	}
	timestamp := now.Format(sqlTimeLayout)

	res, err := s.execWithRetry(ctx,
		`INSERT INTO notifications (
            episode_id, channel, recipient, status, scheduled_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		episodeID, channel, recipient, NotificationPending,
		scheduledAt.UTC().Format(sqlTimeLayout), timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetNotificationByID(ctx, id)
}

// GetNotificationByID fetches a notification request by identifier. Returns
// nil when absent.
func (s *Store) GetNotificationByID(ctx context.Context, id int64) (*Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id,
	)
	notification, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return notification, nil
}

// ListDueNotifications returns pending notifications whose scheduled time has
// passed, oldest first.
func (s *Store) ListDueNotifications(ctx context.Context, now time.Time) ([]*Notification, error) {
	return s.queryNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications
          WHERE status = ? AND scheduled_at <= ?
          ORDER BY scheduled_at ASC, id ASC`,
		NotificationPending, now.UTC().Format(sqlTimeLayout),
	)
}

// ListPendingForEpisode returns the pending notifications for one episode,
// oldest first.
func (s *Store) ListPendingForEpisode(ctx context.Context, episodeID string) ([]*Notification, error) {
	return s.queryNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications
          WHERE episode_id = ? AND status = ?
          ORDER BY id ASC`,
		episodeID, NotificationPending,
	)
}

// ListNotificationsForEpisode returns every notification request for one episode.
func (s *Store) ListNotificationsForEpisode(ctx context.Context, episodeID string) ([]*Notification, error) {
	return s.queryNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE episode_id = ? ORDER BY id ASC`,
		episodeID,
	)
}

func (s *Store) queryNotifications(ctx context.Context, query string, args ...any) ([]*Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationSent moves a pending notification to sent and stamps the
// delivery time. Returns false when the row was not pending.
func (s *Store) MarkNotificationSent(ctx context.Context, id int64, sentAt time.Time) (bool, error) {
	now := time.Now().UTC().Format(sqlTimeLayout)
	return s.guardedNotificationUpdate(ctx,
		`UPDATE notifications
            SET status = ?, sent_at = ?, error_message = NULL, updated_at = ?
          WHERE id = ? AND status = ?`,
		NotificationSent, nullableTime(sentAt), now, id, NotificationPending,
	)
}

// MarkNotificationFailed moves a pending notification to failed with the
// delivery error. Returns false when the row was not pending.
func (s *Store) MarkNotificationFailed(ctx context.Context, id int64, message string) (bool, error) {
	now := time.Now().UTC().Format(sqlTimeLayout)
	return s.guardedNotificationUpdate(ctx,
		`UPDATE notifications SET status = ?, error_message = ?, updated_at = ? WHERE id = ? AND status = ?`,
		NotificationFailed, nullableString(message), now, id, NotificationPending,
	)
}

// CancelNotification cancels a pending notification. Returns false when the
// row was not pending.
func (s *Store) CancelNotification(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC().Format(sqlTimeLayout)
	return s.guardedNotificationUpdate(ctx,
		`UPDATE notifications SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		NotificationCancelled, now, id, NotificationPending,
	)
}

// RequeueNotification moves a failed notification back to pending for another
// delivery attempt. Returns false when the row was not failed.
func (s *Store) RequeueNotification(ctx context.Context, id int64, scheduledAt time.Time) (bool, error) {
	now := time.Now().UTC()
	if scheduledAt.IsZero() {
		scheduledAt = now
	}
	return s.guardedNotificationUpdate(ctx,
		`UPDATE notifications
            SET status = ?, scheduled_at = ?, sent_at = NULL, error_message = NULL, updated_at = ?
          WHERE id = ? AND status = ?`,
		NotificationPending, scheduledAt.UTC().Format(sqlTimeLayout),
		now.Format(sqlTimeLayout), id, NotificationFailed,
	)
}

func (s *Store) guardedNotificationUpdate(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update notification rows: %w", err)
	}
	return affected > 0, nil
}
