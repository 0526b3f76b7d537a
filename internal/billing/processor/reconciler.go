package processor

import (
	"context"
	"easylist-server/internal/observability"
	"easylist-server/internal/store"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Normalized payment event types. Each inbound webhook event is mapped onto
// one of these before reconciliation so the precedence chain is written once.
const (
	EventCheckoutCompleted       = "checkout_completed"
	EventSubscriptionCreated     = "subscription_created"
	EventSubscriptionUpdated     = "subscription_updated"
	EventSubscriptionDeleted     = "subscription_deleted"
	EventSubscriptionPaused      = "subscription_paused"
	EventInvoicePaymentSucceeded = "invoice_payment_succeeded"
	EventInvoicePaymentFailed    = "invoice_payment_failed"
	EventTrialWillEnd            = "trial_will_end"
)

// Correlation strategies, in precedence order.
const (
	StrategySessionReference = "session_reference"
	StrategyToken            = "token"
	StrategyCustomerID       = "customer_id"
	StrategyEmail            = "email"
	StrategyUnlinked         = "unlinked"
)

// PaymentEvent is a normalized lifecycle notification from the payment
// processor. Only the fields relevant to correlation and subscription state
// are carried.
type PaymentEvent struct {
	Type                  string
	EventID               string
	CustomerID            string
	SubscriptionID        string
	Email                 string
	Token                 string
	SessionReference      string
	SubscriptionStatus    string
	BillingReason         string
	PaymentMethodAttached bool
	PeriodStart           *time.Time
	PeriodEnd             *time.Time
}

// ReconcileOutcome reports how an event was resolved. Unlinked outcomes are
// not errors; the event is acknowledged and recorded for manual recovery.
type ReconcileOutcome struct {
	Linked   bool      `json:"linked"`
	Strategy string    `json:"strategy"`
	UserID   uuid.UUID `json:"user_id,omitempty"`
	Status   string    `json:"status,omitempty"`
}

// Reconcile maps an inbound payment event to exactly one platform user and
// applies the event-specific mutation to the subscription record. The
// precedence order is session reference, then link token, then existing
// customer id, then existing processor email. First match wins. Replaying the
// same event converges to the same state.
func (p *BillingProcessor) Reconcile(ctx context.Context, event PaymentEvent) (ReconcileOutcome, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "event_type", Value: event.Type},
		observability.Field{Key: "stripe_event_id", Value: event.EventID},
		observability.Field{Key: "stripe_customer_id", Value: event.CustomerID},
	)

	userID, userEmail, strategy, err := p.resolveUser(ctx, event)
	if err != nil {
		return ReconcileOutcome{}, err
	}

	if strategy == StrategyUnlinked {
		reason := "no session reference, valid token, or matching subscription record"
		if err := p.store.RecordUnlinkedEvent(ctx, event.Type, event.EventID, event.CustomerID, event.Email, reason); err != nil {
			p.logger.Error(ctx, "failed to record unlinked event", err)
			return ReconcileOutcome{}, err
		}
		p.logger.Warn(ctx, "payment event could not be linked to any user")
		return ReconcileOutcome{Linked: false, Strategy: StrategyUnlinked}, nil
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "user_id", Value: userID},
		observability.Field{Key: "link_strategy", Value: strategy},
	)

	status, err := p.applyEvent(ctx, event, userID, userEmail)
	if err != nil {
		return ReconcileOutcome{}, err
	}

	p.logger.Info(ctx, "payment event reconciled")
	return ReconcileOutcome{Linked: true, Strategy: strategy, UserID: userID, Status: status}, nil
}

// resolveUser walks the correlation precedence chain. It returns the platform
// email when the matching strategy already knows it, otherwise empty.
func (p *BillingProcessor) resolveUser(ctx context.Context, event PaymentEvent) (uuid.UUID, string, string, error) {
	if event.SessionReference != "" {
		userID, userEmail, err := p.store.CompletePendingPayment(ctx, event.SessionReference)
		if err == nil {
			return userID, userEmail, StrategySessionReference, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return uuid.Nil, "", "", err
		}
		// No pending record for this reference. Either already completed by
		// an earlier delivery or expired; fall through.
	}

	if event.Token != "" {
		userID, err := p.store.ConsumePaymentToken(ctx, event.Token)
		if err == nil {
			return userID, "", StrategyToken, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return uuid.Nil, "", "", err
		}
		// Used or expired tokens are never accepted for linking. The event
		// still gets a chance to match an existing record below.
		p.logger.Warn(ctx, "payment event carried a used or expired token")
	}

	if event.CustomerID != "" {
		sub, err := p.store.GetSubscriptionByStripeCustomerID(ctx, event.CustomerID)
		if err == nil {
			return sub.UserID, sub.UserEmail, StrategyCustomerID, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return uuid.Nil, "", "", err
		}
	}

	if event.Email != "" && p.config.AllowEmailMatch {
		sub, err := p.store.GetSubscriptionByStripeEmail(ctx, event.Email)
		if err == nil {
			ctx := observability.WithFields(ctx,
				observability.Field{Key: "user_id", Value: sub.UserID},
				observability.Field{Key: "stripe_email", Value: event.Email},
			)
			p.logger.Warn(ctx, "payment event linked by email match policy")
			return sub.UserID, sub.UserEmail, StrategyEmail, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return uuid.Nil, "", "", err
		}
	}

	return uuid.Nil, "", StrategyUnlinked, nil
}

// applyEvent performs the event-type-specific mutation for a resolved user
// and returns the resulting subscription status.
func (p *BillingProcessor) applyEvent(ctx context.Context, event PaymentEvent, userID uuid.UUID, userEmail string) (string, error) {
	switch event.Type {
	case EventCheckoutCompleted, EventSubscriptionCreated, EventInvoicePaymentSucceeded:
		return p.activateFromEvent(ctx, event, userID, userEmail)

	case EventSubscriptionUpdated:
		status := normalizeSubscriptionStatus(event.SubscriptionStatus)
		return status, p.setStatus(ctx, event, userID, status)

	case EventInvoicePaymentFailed:
		return store.SubscriptionStatusUnpaid, p.setStatus(ctx, event, userID, store.SubscriptionStatusUnpaid)

	case EventSubscriptionDeleted, EventSubscriptionPaused:
		return store.SubscriptionStatusCanceled, p.setStatus(ctx, event, userID, store.SubscriptionStatusCanceled)

	case EventTrialWillEnd:
		// No state mutation. Queue a heads-up notice for the user.
		dedupKey := fmt.Sprintf("trial_will_end:%s", event.CustomerID)
		body := "Your trial is ending soon. Add a payment method to keep your subscription active."
		if _, err := p.store.CreateNotificationLog(ctx, store.NotificationTypeTrialExpired,
			"Your trial is ending soon", body, userEmail, dedupKey); err != nil {
			p.logger.Error(ctx, "failed to queue trial ending notice", err)
		}
		sub, err := p.store.GetSubscriptionByUserID(ctx, userID)
		if err != nil {
			return "", nil
		}
		return sub.SubscriptionStatus, nil

	default:
		p.logger.Warn(ctx, "ignoring unhandled payment event type")
		return "", nil
	}
}

func (p *BillingProcessor) activateFromEvent(ctx context.Context, event PaymentEvent, userID uuid.UUID, userEmail string) (string, error) {
	if userEmail == "" {
		user, err := p.store.GetUserByID(ctx, userID)
		if err != nil {
			p.logger.Error(ctx, "failed to resolve platform email for upsert", err)
			return "", err
		}
		userEmail = user.Email
	}

	sub, err := p.store.UpsertSubscription(ctx, store.UpsertSubscriptionParams{
		UserID:                userID,
		UserEmail:             userEmail,
		StripeCustomerID:      event.CustomerID,
		StripeSubscriptionID:  event.SubscriptionID,
		StripeEmail:           event.Email,
		SubscriptionStatus:    store.SubscriptionStatusActive,
		PaymentMethodAttached: true,
		CurrentPeriodStart:    event.PeriodStart,
		CurrentPeriodEnd:      event.PeriodEnd,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to upsert subscription record", err)
		return "", err
	}
	return sub.SubscriptionStatus, nil
}

// setStatus applies a status-only mutation. It targets the exact processor
// subscription when the event names one, and otherwise rewrites the resolved
// user's record in place.
func (p *BillingProcessor) setStatus(ctx context.Context, event PaymentEvent, userID uuid.UUID, status string) error {
	if event.SubscriptionID != "" {
		err := p.store.UpdateSubscriptionStatusByStripeSubID(ctx, event.SubscriptionID, status)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Error(ctx, "failed to update subscription status", err)
			return err
		}
	}

	sub, err := p.store.GetSubscriptionByUserID(ctx, userID)
	if err != nil {
		p.logger.Error(ctx, "no subscription record to update status on", err)
		return err
	}

	params := store.UpsertSubscriptionParams{
		UserID:                sub.UserID,
		UserEmail:             sub.UserEmail,
		StripeCustomerID:      sub.StripeCustomerID,
		StripeSubscriptionID:  sub.StripeSubscriptionID.String,
		StripeEmail:           sub.StripeEmail,
		SubscriptionStatus:    status,
		PaymentMethodAttached: sub.PaymentMethodAttached,
	}
	if sub.CurrentPeriodStart.Valid {
		t := sub.CurrentPeriodStart.Time
		params.CurrentPeriodStart = &t
	}
	if sub.CurrentPeriodEnd.Valid {
		t := sub.CurrentPeriodEnd.Time
		params.CurrentPeriodEnd = &t
	}
	if _, err := p.store.UpsertSubscription(ctx, params); err != nil {
		p.logger.Error(ctx, "failed to rewrite subscription status", err)
		return err
	}
	return nil
}

// confirmationStatus maps a gateway-reported status for the synchronous
// confirmation and recovery paths. A fresh checkout starts a trial, so
// trialing counts as active here, and terminal statuses collapse to canceled.
// Lifecycle updates keep the verbatim status via normalizeSubscriptionStatus.
func confirmationStatus(status string) string {
	switch status {
	case "active", "trialing":
		return store.SubscriptionStatusActive
	case "past_due":
		return store.SubscriptionStatusPastDue
	case "canceled", "unpaid":
		return store.SubscriptionStatusCanceled
	default:
		return store.SubscriptionStatusPaymentRequired
	}
}

// normalizeSubscriptionStatus maps processor-reported subscription statuses
// onto the platform's status set.
func normalizeSubscriptionStatus(status string) string {
	switch status {
	case "active", "trialing", "past_due", "unpaid", "canceled":
		return status
	case "paused":
		return store.SubscriptionStatusCanceled
	case "":
		return store.SubscriptionStatusPaymentRequired
	default:
		return store.SubscriptionStatusPaymentRequired
	}
}
