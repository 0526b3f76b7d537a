package store

import (
	"context"
	"time"
)

// UnlinkedEvent is a payment event that could not be correlated to any
// platform user. Recording it keeps the webhook acknowledged while leaving an
// auditable trail for manual recovery.
type UnlinkedEvent struct {
	ID               int64     `db:"id"`
	EventType        string    `db:"event_type"`
	StripeEventID    string    `db:"stripe_event_id"`
	StripeCustomerID string    `db:"stripe_customer_id"`
	StripeEmail      string    `db:"stripe_email"`
	Reason           string    `db:"reason"`
	CreatedAt        time.Time `db:"created_at"`
}

const sqlInsertUnlinkedEvent = `
INSERT INTO unlinked_events (event_type, stripe_event_id, stripe_customer_id, stripe_email, reason, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (stripe_event_id) DO NOTHING`

// RecordUnlinkedEvent persists an uncorrelatable event. Redelivery of the
// same provider event id is a no-op.
func (s *Store) RecordUnlinkedEvent(ctx context.Context, eventType, stripeEventID, stripeCustomerID, stripeEmail, reason string) error {
	_, err := s.db.ExecContext(ctx, sqlInsertUnlinkedEvent, eventType, stripeEventID, stripeCustomerID, stripeEmail, reason)
	return err
}

const sqlListUnlinkedEvents = `
SELECT id, event_type, stripe_event_id, stripe_customer_id, stripe_email, reason, created_at
FROM unlinked_events
ORDER BY created_at DESC
LIMIT $1`

// ListUnlinkedEvents returns the most recent uncorrelated events for operator
// review.
func (s *Store) ListUnlinkedEvents(ctx context.Context, limit int) ([]UnlinkedEvent, error) {
	var events []UnlinkedEvent
	err := s.db.SelectContext(ctx, &events, sqlListUnlinkedEvents, limit)
	if err != nil {
		return nil, err
	}
	return events, nil
}
