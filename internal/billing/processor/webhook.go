package processor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v79"
)

// HandleWebhook normalizes a verified processor event and feeds it through
// the reconciler. Event types outside the subscription lifecycle are
// acknowledged without action.
func (p *BillingProcessor) HandleWebhook(ctx context.Context, event stripe.Event) (ReconcileOutcome, error) {
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			p.logger.Error(ctx, "failed to unmarshal checkout session", err)
			return ReconcileOutcome{}, err
		}
		return p.Reconcile(ctx, normalizeCheckoutSession(event.ID, session))

	case "customer.subscription.created", "customer.subscription.updated",
		"customer.subscription.deleted", "customer.subscription.paused",
		"customer.subscription.trial_will_end":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			p.logger.Error(ctx, "failed to unmarshal subscription", err)
			return ReconcileOutcome{}, err
		}
		return p.Reconcile(ctx, normalizeSubscription(event, sub))

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			p.logger.Error(ctx, "failed to unmarshal invoice", err)
			return ReconcileOutcome{}, err
		}
		e := normalizeInvoice(event, invoice)
		// Only the invoice that creates the subscription activates. Renewal
		// and one-off invoices are acknowledged without action.
		if e.Type == EventInvoicePaymentSucceeded && e.BillingReason != string(stripe.InvoiceBillingReasonSubscriptionCreate) {
			p.logger.Info(ctx, "ignoring succeeded invoice outside subscription creation")
			return ReconcileOutcome{Linked: false, Strategy: StrategyUnlinked}, nil
		}
		return p.Reconcile(ctx, e)
	}

	p.logger.Info(ctx, "ignoring unhandled webhook event type")
	return ReconcileOutcome{Linked: false, Strategy: StrategyUnlinked}, nil
}

func normalizeCheckoutSession(eventID string, session stripe.CheckoutSession) PaymentEvent {
	e := PaymentEvent{
		Type:             EventCheckoutCompleted,
		EventID:          eventID,
		SessionReference: session.ClientReferenceID,
		Token:            session.Metadata[metadataKeyPaymentToken],
		Email:            session.CustomerEmail,
	}
	if session.Customer != nil {
		e.CustomerID = session.Customer.ID
	}
	if session.CustomerDetails != nil && e.Email == "" {
		e.Email = session.CustomerDetails.Email
	}
	if session.Subscription != nil {
		e.SubscriptionID = session.Subscription.ID
	}
	return e
}

func normalizeSubscription(event stripe.Event, sub stripe.Subscription) PaymentEvent {
	var eventType string
	switch event.Type {
	case "customer.subscription.created":
		eventType = EventSubscriptionCreated
	case "customer.subscription.updated":
		eventType = EventSubscriptionUpdated
	case "customer.subscription.deleted":
		eventType = EventSubscriptionDeleted
	case "customer.subscription.paused":
		eventType = EventSubscriptionPaused
	case "customer.subscription.trial_will_end":
		eventType = EventTrialWillEnd
	}

	e := PaymentEvent{
		Type:                  eventType,
		EventID:               event.ID,
		SubscriptionID:        sub.ID,
		SubscriptionStatus:    string(sub.Status),
		Token:                 sub.Metadata[metadataKeyPaymentToken],
		Email:                 sub.Metadata[metadataKeyPlatformEmail],
		PaymentMethodAttached: sub.DefaultPaymentMethod != nil,
	}
	if sub.Customer != nil {
		e.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodStart > 0 {
		t := time.Unix(sub.CurrentPeriodStart, 0).UTC()
		e.PeriodStart = &t
	}
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		e.PeriodEnd = &t
	}
	return e
}

func normalizeInvoice(event stripe.Event, invoice stripe.Invoice) PaymentEvent {
	eventType := EventInvoicePaymentSucceeded
	if event.Type == "invoice.payment_failed" {
		eventType = EventInvoicePaymentFailed
	}

	e := PaymentEvent{
		Type:          eventType,
		EventID:       event.ID,
		Email:         invoice.CustomerEmail,
		BillingReason: string(invoice.BillingReason),
	}
	if invoice.Customer != nil {
		e.CustomerID = invoice.Customer.ID
	}
	if invoice.Subscription != nil {
		e.SubscriptionID = invoice.Subscription.ID
	}
	if invoice.PeriodStart > 0 {
		t := time.Unix(invoice.PeriodStart, 0).UTC()
		e.PeriodStart = &t
	}
	if invoice.PeriodEnd > 0 {
		t := time.Unix(invoice.PeriodEnd, 0).UTC()
		e.PeriodEnd = &t
	}
	return e
}
