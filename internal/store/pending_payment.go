package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Pending payment lifecycle states.
const (
	PendingPaymentStatusPending   = "pending"
	PendingPaymentStatusCompleted = "completed"
)

const sqlCreatePendingPayment = `
INSERT INTO pending_payments (session_id, user_id, user_email, status, created_at, expires_at)
VALUES ($1, $2, $3, 'pending', NOW(), $4)`

func (s *Store) CreatePendingPayment(ctx context.Context, sessionID string, userID uuid.UUID, userEmail string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, sqlCreatePendingPayment, sessionID, userID, userEmail, expiresAt)
	return err
}

const sqlCompletePendingPayment = `
UPDATE pending_payments
SET status = 'completed', processed_at = NOW()
WHERE session_id = $1 AND status = 'pending' AND expires_at > NOW()
RETURNING user_id, user_email`

// CompletePendingPayment flips a pending record to completed exactly once and
// returns the user it correlates. Conditional update: a replayed event finds
// no pending row and gets ErrNotFound so the caller falls through to the next
// resolution strategy.
func (s *Store) CompletePendingPayment(ctx context.Context, sessionID string) (uuid.UUID, string, error) {
	var (
		userID    uuid.UUID
		userEmail string
	)
	err := s.db.QueryRowxContext(ctx, sqlCompletePendingPayment, sessionID).Scan(&userID, &userEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, "", ErrNotFound
		}
		return uuid.Nil, "", err
	}
	return userID, userEmail, nil
}
