package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

const sqlCreatePaymentToken = `
INSERT INTO payment_tokens (token, user_id, used, created_at, expires_at)
VALUES ($1, $2, FALSE, NOW(), $3)`

// CreatePaymentToken stores a freshly minted token for a user.
func (s *Store) CreatePaymentToken(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, sqlCreatePaymentToken, token, userID, expiresAt)
	return err
}

const sqlConsumePaymentToken = `
UPDATE payment_tokens
SET used = TRUE
WHERE token = $1 AND used = FALSE AND expires_at > NOW()
RETURNING user_id`

// ConsumePaymentToken transitions a token used=false -> true and returns the
// owning user id. The update is conditional, so concurrent consumers race
// safely: whoever loses the race gets ErrNotFound, which callers treat as
// "already consumed or expired", never as a link.
func (s *Store) ConsumePaymentToken(ctx context.Context, token string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRowxContext(ctx, sqlConsumePaymentToken, token).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, err
	}
	return userID, nil
}

const sqlCleanupExpiredPaymentTokens = `
DELETE FROM payment_tokens
WHERE expires_at < NOW()`

// CleanupExpiredPaymentTokens garbage-collects expired tokens. Best-effort
// housekeeping; callers ignore the error beyond logging.
func (s *Store) CleanupExpiredPaymentTokens(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, sqlCleanupExpiredPaymentTokens)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
