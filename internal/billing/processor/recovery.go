package processor

import (
	"context"
	"easylist-server/internal/observability"
	"easylist-server/internal/store"
	"errors"
	"fmt"
	"time"
)

// ActivateSubscription recovers a subscription record for a user the
// automatic reconciler failed to link. It looks the user up by platform
// email, pulls the customer and latest subscription from the processor by
// that same email, and upserts the record.
func (p *BillingProcessor) ActivateSubscription(ctx context.Context, email string) (SubscriptionSummary, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "email", Value: email})
	p.logger.Info(ctx, "operator-triggered subscription activation")

	user, err := p.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SubscriptionSummary{}, ErrUserNotFound
		}
		p.logger.Error(ctx, "failed to look up user by email", err)
		return SubscriptionSummary{}, err
	}

	cust, err := p.gateway.FindCustomerByEmail(ctx, email)
	if err != nil {
		return SubscriptionSummary{}, err
	}

	sub, err := p.gateway.LatestSubscription(ctx, cust.ID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return SubscriptionSummary{}, ErrSubscriptionNotFound
		}
		return SubscriptionSummary{}, err
	}

	params := store.UpsertSubscriptionParams{
		UserID:                user.ID,
		UserEmail:             user.Email,
		StripeCustomerID:      cust.ID,
		StripeSubscriptionID:  sub.ID,
		StripeEmail:           cust.Email,
		SubscriptionStatus:    confirmationStatus(sub.Status),
		PaymentMethodAttached: sub.PaymentMethodAttached,
	}
	if !sub.CurrentPeriodStart.IsZero() {
		start := sub.CurrentPeriodStart
		params.CurrentPeriodStart = &start
	}
	if !sub.CurrentPeriodEnd.IsZero() {
		end := sub.CurrentPeriodEnd
		params.CurrentPeriodEnd = &end
	}

	record, err := p.upsertWithAudit(ctx, params)
	if err != nil {
		return SubscriptionSummary{}, err
	}
	return summarize(record), nil
}

// ManualActivationParams are operator-supplied values that overwrite a
// subscription record outright. No processor lookup is performed.
type ManualActivationParams struct {
	Email                string
	StripeCustomerID     string
	StripeSubscriptionID string
	SubscriptionStatus   string
	CurrentPeriodEnd     *time.Time
}

// ManualActivateSubscription force-creates or overwrites a subscription
// record with operator-supplied processor ids and status. Invoked only by a
// human operator when an event could not be reconciled automatically.
func (p *BillingProcessor) ManualActivateSubscription(ctx context.Context, params ManualActivationParams) (SubscriptionSummary, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "email", Value: params.Email})
	p.logger.Info(ctx, "manual subscription activation requested")

	user, err := p.store.GetUserByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SubscriptionSummary{}, ErrUserNotFound
		}
		p.logger.Error(ctx, "failed to look up user by email", err)
		return SubscriptionSummary{}, err
	}

	status := params.SubscriptionStatus
	if status == "" {
		status = store.SubscriptionStatusActive
	}

	now := time.Now().UTC()
	periodEnd := params.CurrentPeriodEnd
	if periodEnd == nil {
		end := now.AddDate(0, 1, 0)
		periodEnd = &end
	}

	record, err := p.upsertWithAudit(ctx, store.UpsertSubscriptionParams{
		UserID:                user.ID,
		UserEmail:             user.Email,
		StripeCustomerID:      params.StripeCustomerID,
		StripeSubscriptionID:  params.StripeSubscriptionID,
		StripeEmail:           params.Email,
		SubscriptionStatus:    status,
		PaymentMethodAttached: true,
		CurrentPeriodStart:    &now,
		CurrentPeriodEnd:      periodEnd,
	})
	if err != nil {
		return SubscriptionSummary{}, err
	}
	return summarize(record), nil
}

// ListUnlinkedEvents returns recent payment events the reconciler could not
// link, for operator review before a manual activation.
func (p *BillingProcessor) ListUnlinkedEvents(ctx context.Context, limit int) ([]store.UnlinkedEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	events, err := p.store.ListUnlinkedEvents(ctx, limit)
	if err != nil {
		p.logger.Error(ctx, "failed to list unlinked events", err)
		return nil, err
	}
	return events, nil
}

// upsertWithAudit logs the before and after records around a recovery
// overwrite so operator actions leave an audit trail.
func (p *BillingProcessor) upsertWithAudit(ctx context.Context, params store.UpsertSubscriptionParams) (store.UserSubscription, error) {
	before := "none"
	if existing, err := p.store.GetSubscriptionByUserID(ctx, params.UserID); err == nil {
		before = fmt.Sprintf("status=%s customer=%s subscription=%s",
			existing.SubscriptionStatus, existing.StripeCustomerID, existing.StripeSubscriptionID.String)
	}

	record, err := p.store.UpsertSubscription(ctx, params)
	if err != nil {
		p.logger.Error(ctx, "failed to upsert subscription record", err)
		return store.UserSubscription{}, err
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "record_before", Value: before},
		observability.Field{Key: "record_after", Value: fmt.Sprintf("status=%s customer=%s subscription=%s",
			record.SubscriptionStatus, record.StripeCustomerID, record.StripeSubscriptionID.String)},
	)
	p.logger.Info(ctx, "subscription record overwritten by operator")
	return record, nil
}
