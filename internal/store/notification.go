package store

import (
	"context"
	"database/sql"
	"time"
)

const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
)

const (
	NotificationTypeLowStock     = "low_stock"
	NotificationTypeTrialExpired = "trial_expired"
)

// NotificationLog is a queued outbound notification. Rows start pending and
// are marked sent or failed by the sender.
type NotificationLog struct {
	ID               int64        `db:"id"`
	NotificationType string       `db:"notification_type"`
	Subject          string       `db:"subject"`
	Body             string       `db:"body"`
	Recipient        string       `db:"recipient"`
	DedupKey         string       `db:"dedup_key"`
	Status           string       `db:"status"`
	CreatedAt        time.Time    `db:"created_at"`
	SentAt           sql.NullTime `db:"sent_at"`
}

const sqlInsertNotificationLog = `
INSERT INTO notification_logs (notification_type, subject, body, recipient, dedup_key, status, created_at)
SELECT $1, $2, $3, $4, $5, 'pending', NOW()
WHERE NOT EXISTS (
    SELECT 1 FROM notification_logs
    WHERE dedup_key = $5 AND created_at > NOW() - INTERVAL '24 hours'
)`

// CreateNotificationLog enqueues a notification unless one with the same
// dedup key was already enqueued in the last 24 hours. Returns true when a
// row was inserted.
func (s *Store) CreateNotificationLog(ctx context.Context, notificationType, subject, body, recipient, dedupKey string) (bool, error) {
	res, err := s.db.ExecContext(ctx, sqlInsertNotificationLog, notificationType, subject, body, recipient, dedupKey)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

const sqlListPendingNotifications = `
SELECT id, notification_type, subject, body, recipient, dedup_key, status, created_at, sent_at
FROM notification_logs
WHERE status = 'pending'
ORDER BY created_at ASC
LIMIT $1`

func (s *Store) ListPendingNotifications(ctx context.Context, limit int) ([]NotificationLog, error) {
	var logs []NotificationLog
	err := s.db.SelectContext(ctx, &logs, sqlListPendingNotifications, limit)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

const sqlMarkNotificationStatus = `
UPDATE notification_logs
SET status = $1, sent_at = CASE WHEN $1 = 'sent' THEN NOW() ELSE sent_at END
WHERE id = $2`

func (s *Store) MarkNotificationStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx, sqlMarkNotificationStatus, status, id)
	return err
}
