package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Platform subscription statuses. Stripe statuses are mapped onto these; the
// record is never deleted, terminal states are canceled/unpaid.
const (
	SubscriptionStatusTrialing        = "trialing"
	SubscriptionStatusActive          = "active"
	SubscriptionStatusPastDue         = "past_due"
	SubscriptionStatusUnpaid          = "unpaid"
	SubscriptionStatusCanceled        = "canceled"
	SubscriptionStatusPaymentRequired = "payment_required"
)

// UserSubscription is the durable per-user billing status row, unique on
// user_id. It is the source of truth for access-control decisions elsewhere
// in the platform.
type UserSubscription struct {
	UserID                uuid.UUID      `db:"user_id"`
	UserEmail             string         `db:"user_email"`
	StripeCustomerID      string         `db:"stripe_customer_id"`
	StripeSubscriptionID  sql.NullString `db:"stripe_subscription_id"`
	StripeEmail           string         `db:"stripe_email"`
	SubscriptionStatus    string         `db:"subscription_status"`
	PaymentMethodAttached bool           `db:"payment_method_attached"`
	CurrentPeriodStart    sql.NullTime   `db:"current_period_start"`
	CurrentPeriodEnd      sql.NullTime   `db:"current_period_end"`
	UpdatedAt             time.Time      `db:"updated_at"`
}

// UpsertSubscriptionParams carries the full record for an upsert keyed on
// user_id. Nil period pointers and an empty subscription id leave any
// existing value in place, so events that lack those fields do not erase
// what an earlier event wrote.
type UpsertSubscriptionParams struct {
	UserID                uuid.UUID
	UserEmail             string
	StripeCustomerID      string
	StripeSubscriptionID  string
	StripeEmail           string
	SubscriptionStatus    string
	PaymentMethodAttached bool
	CurrentPeriodStart    *time.Time
	CurrentPeriodEnd      *time.Time
}

const sqlUpsertSubscription = `
INSERT INTO user_subscriptions (
    user_id, user_email, stripe_customer_id, stripe_subscription_id, stripe_email,
    subscription_status, payment_method_attached, current_period_start, current_period_end, updated_at
)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, NOW())
ON CONFLICT (user_id) DO UPDATE SET
    user_email              = EXCLUDED.user_email,
    stripe_customer_id      = EXCLUDED.stripe_customer_id,
    stripe_subscription_id  = COALESCE(EXCLUDED.stripe_subscription_id, user_subscriptions.stripe_subscription_id),
    stripe_email            = EXCLUDED.stripe_email,
    subscription_status     = EXCLUDED.subscription_status,
    payment_method_attached = EXCLUDED.payment_method_attached,
    current_period_start    = COALESCE(EXCLUDED.current_period_start, user_subscriptions.current_period_start),
    current_period_end      = COALESCE(EXCLUDED.current_period_end, user_subscriptions.current_period_end),
    updated_at              = NOW()
RETURNING user_id, user_email, stripe_customer_id, stripe_subscription_id, stripe_email,
    subscription_status, payment_method_attached, current_period_start, current_period_end, updated_at`

// UpsertSubscription creates or replaces the billing row for a user.
// Replaying the same event converges on the same record.
func (s *Store) UpsertSubscription(ctx context.Context, params UpsertSubscriptionParams) (UserSubscription, error) {
	var sub UserSubscription
	err := s.db.QueryRowxContext(ctx, sqlUpsertSubscription,
		params.UserID,
		params.UserEmail,
		params.StripeCustomerID,
		params.StripeSubscriptionID,
		params.StripeEmail,
		params.SubscriptionStatus,
		params.PaymentMethodAttached,
		params.CurrentPeriodStart,
		params.CurrentPeriodEnd,
	).StructScan(&sub)
	if err != nil {
		return UserSubscription{}, err
	}
	return sub, nil
}

const sqlUpdateStatusByStripeSubscriptionID = `
UPDATE user_subscriptions
SET subscription_status = $1, updated_at = NOW()
WHERE stripe_subscription_id = $2`

// UpdateSubscriptionStatusByStripeSubID sets the status of the record
// carrying the given processor subscription id. ErrNotFound when no record
// matches, so the caller can fall back to other correlation strategies.
func (s *Store) UpdateSubscriptionStatusByStripeSubID(ctx context.Context, stripeSubID, status string) error {
	res, err := s.db.ExecContext(ctx, sqlUpdateStatusByStripeSubscriptionID, status, stripeSubID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const sqlSelectSubscriptionColumns = `
SELECT user_id, user_email, stripe_customer_id, stripe_subscription_id, stripe_email,
    subscription_status, payment_method_attached, current_period_start, current_period_end, updated_at
FROM user_subscriptions`

func (s *Store) GetSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (UserSubscription, error) {
	var sub UserSubscription
	err := s.db.GetContext(ctx, &sub, sqlSelectSubscriptionColumns+` WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserSubscription{}, ErrNotFound
		}
		return UserSubscription{}, err
	}
	return sub, nil
}

func (s *Store) GetSubscriptionByStripeCustomerID(ctx context.Context, customerID string) (UserSubscription, error) {
	var sub UserSubscription
	err := s.db.GetContext(ctx, &sub, sqlSelectSubscriptionColumns+` WHERE stripe_customer_id = $1`, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserSubscription{}, ErrNotFound
		}
		return UserSubscription{}, err
	}
	return sub, nil
}

func (s *Store) GetSubscriptionByStripeEmail(ctx context.Context, stripeEmail string) (UserSubscription, error) {
	var sub UserSubscription
	err := s.db.GetContext(ctx, &sub, sqlSelectSubscriptionColumns+` WHERE stripe_email = $1`, stripeEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserSubscription{}, ErrNotFound
		}
		return UserSubscription{}, err
	}
	return sub, nil
}

const sqlExpireTrials = `
UPDATE user_subscriptions
SET subscription_status = 'unpaid', updated_at = NOW()
WHERE subscription_status = 'trialing'
  AND current_period_end IS NOT NULL
  AND current_period_end < NOW()
RETURNING user_id, user_email, stripe_customer_id, stripe_subscription_id, stripe_email,
    subscription_status, payment_method_attached, current_period_start, current_period_end, updated_at`

// ExpireTrials transitions trialing rows past their period end to unpaid and
// returns the expired rows.
func (s *Store) ExpireTrials(ctx context.Context) ([]UserSubscription, error) {
	var subs []UserSubscription
	err := s.db.SelectContext(ctx, &subs, sqlExpireTrials)
	if err != nil {
		return nil, err
	}
	return subs, nil
}

const sqlSelectActivePastPeriodEnd = sqlSelectSubscriptionColumns + `
WHERE subscription_status = 'active'
  AND current_period_end IS NOT NULL
  AND current_period_end < NOW()`

// ListActivePastPeriodEnd returns active rows whose period already ended.
// Such rows indicate a missed webhook; the sweep flags them for review and
// does not auto-correct.
func (s *Store) ListActivePastPeriodEnd(ctx context.Context) ([]UserSubscription, error) {
	var subs []UserSubscription
	err := s.db.SelectContext(ctx, &subs, sqlSelectActivePastPeriodEnd)
	if err != nil {
		return nil, err
	}
	return subs, nil
}
