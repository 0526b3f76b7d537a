package processor

import (
	"context"
	"easylist-server/internal/observability"
	"easylist-server/internal/store"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SubscriptionSummary is the client-facing view of a user's billing state.
type SubscriptionSummary struct {
	UserID                uuid.UUID  `json:"user_id"`
	SubscriptionStatus    string     `json:"subscription_status"`
	StripeCustomerID      string     `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID  string     `json:"stripe_subscription_id,omitempty"`
	PaymentMethodAttached bool       `json:"payment_method_attached"`
	CurrentPeriodEnd      *time.Time `json:"current_period_end,omitempty"`
}

// ProcessPaymentSuccess is the synchronous confirmation path taken after the
// checkout redirect. The link token is the sole credential here and is
// consumed exactly once; a used or expired token is rejected outright.
func (p *BillingProcessor) ProcessPaymentSuccess(ctx context.Context, token, stripeEmail string) (SubscriptionSummary, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "stripe_email", Value: stripeEmail})

	userID, err := p.store.ConsumePaymentToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Warn(ctx, "payment success called with used or expired token")
			return SubscriptionSummary{}, ErrTokenInvalid
		}
		p.logger.Error(ctx, "failed to consume payment token", err)
		return SubscriptionSummary{}, err
	}

	ctx = observability.WithFields(ctx, observability.Field{Key: "user_id", Value: userID})

	user, err := p.store.GetUserByID(ctx, userID)
	if err != nil {
		p.logger.Error(ctx, "failed to look up user after token consume", err)
		return SubscriptionSummary{}, err
	}

	cust, err := p.gateway.FindCustomerByEmail(ctx, stripeEmail)
	if err != nil {
		if errors.Is(err, ErrStripeCustomerNotFound) {
			p.logger.Error(ctx, "no stripe customer for reported email", err)
		}
		return SubscriptionSummary{}, err
	}

	params := store.UpsertSubscriptionParams{
		UserID:           userID,
		UserEmail:        user.Email,
		StripeCustomerID: cust.ID,
		StripeEmail:      stripeEmail,
	}

	sub, err := p.gateway.LatestSubscription(ctx, cust.ID)
	switch {
	case err == nil:
		params.StripeSubscriptionID = sub.ID
		params.SubscriptionStatus = confirmationStatus(sub.Status)
		params.PaymentMethodAttached = sub.PaymentMethodAttached
		if !sub.CurrentPeriodStart.IsZero() {
			start := sub.CurrentPeriodStart
			params.CurrentPeriodStart = &start
		}
		if !sub.CurrentPeriodEnd.IsZero() {
			end := sub.CurrentPeriodEnd
			params.CurrentPeriodEnd = &end
		}
	case errors.Is(err, ErrSubscriptionNotFound):
		// Customer exists but has no subscription yet. Record the link and
		// leave the user gated until a lifecycle event arrives.
		params.SubscriptionStatus = store.SubscriptionStatusPaymentRequired
	default:
		p.logger.Error(ctx, "failed to fetch latest subscription", err)
		return SubscriptionSummary{}, err
	}

	record, err := p.store.UpsertSubscription(ctx, params)
	if err != nil {
		p.logger.Error(ctx, "failed to upsert subscription record", err)
		return SubscriptionSummary{}, err
	}

	p.logger.Info(ctx, "payment success processed")
	return summarize(record), nil
}

func summarize(record store.UserSubscription) SubscriptionSummary {
	summary := SubscriptionSummary{
		UserID:                record.UserID,
		SubscriptionStatus:    record.SubscriptionStatus,
		StripeCustomerID:      record.StripeCustomerID,
		StripeSubscriptionID:  record.StripeSubscriptionID.String,
		PaymentMethodAttached: record.PaymentMethodAttached,
	}
	if record.CurrentPeriodEnd.Valid {
		end := record.CurrentPeriodEnd.Time
		summary.CurrentPeriodEnd = &end
	}
	return summary
}
