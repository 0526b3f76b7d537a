package processor

import (
	"context"
	"easylist-server/internal/store"
	"encoding/json"
	"testing"

	"github.com/stripe/stripe-go/v79"
)

func invoiceEvent(eventType, billingReason string) stripe.Event {
	raw, _ := json.Marshal(map[string]any{
		"customer":       map[string]any{"id": "cus_inv"},
		"subscription":   map[string]any{"id": "sub_inv"},
		"billing_reason": billingReason,
	})
	return stripe.Event{
		ID:   "evt_inv",
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleWebhookInvoiceBillingReason(t *testing.T) {
	seed := func() (*fakeStore, *BillingProcessor) {
		ctx := context.Background()
		s := newFakeStore()
		user := s.addUser("frank@example.com")
		s.UpsertSubscription(ctx, store.UpsertSubscriptionParams{
			UserID:               user.ID,
			UserEmail:            user.Email,
			StripeCustomerID:     "cus_inv",
			StripeSubscriptionID: "sub_inv",
			SubscriptionStatus:   store.SubscriptionStatusPastDue,
		})
		return s, newTestProcessor(s, newFakeGateway())
	}

	t.Run("renewal invoice is acknowledged without action", func(t *testing.T) {
		ctx := context.Background()
		s, p := seed()

		outcome, err := p.HandleWebhook(ctx, invoiceEvent("invoice.payment_succeeded", "subscription_cycle"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Linked {
			t.Fatalf("renewal invoice should not reconcile: %+v", outcome)
		}
		if len(s.unlinked) != 0 {
			t.Errorf("renewal invoice must not be recorded as unlinked, got %d", len(s.unlinked))
		}
		sub, err := s.GetSubscriptionByStripeCustomerID(ctx, "cus_inv")
		if err != nil {
			t.Fatalf("expected subscription record: %v", err)
		}
		if sub.SubscriptionStatus != store.SubscriptionStatusPastDue {
			t.Errorf("renewal invoice mutated the record: got %q", sub.SubscriptionStatus)
		}
	})

	t.Run("creation invoice activates", func(t *testing.T) {
		ctx := context.Background()
		s, p := seed()

		outcome, err := p.HandleWebhook(ctx, invoiceEvent("invoice.payment_succeeded", "subscription_create"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !outcome.Linked || outcome.Strategy != StrategyCustomerID {
			t.Fatalf("creation invoice did not reconcile: %+v", outcome)
		}
		sub, err := s.GetSubscriptionByStripeCustomerID(ctx, "cus_inv")
		if err != nil {
			t.Fatalf("expected subscription record: %v", err)
		}
		if sub.SubscriptionStatus != store.SubscriptionStatusActive {
			t.Errorf("expected active, got %q", sub.SubscriptionStatus)
		}
	})

	t.Run("failed renewal invoice still marks unpaid", func(t *testing.T) {
		ctx := context.Background()
		s, p := seed()

		outcome, err := p.HandleWebhook(ctx, invoiceEvent("invoice.payment_failed", "subscription_cycle"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !outcome.Linked {
			t.Fatalf("failed invoice should reconcile: %+v", outcome)
		}
		sub, err := s.GetSubscriptionByStripeCustomerID(ctx, "cus_inv")
		if err != nil {
			t.Fatalf("expected subscription record: %v", err)
		}
		if sub.SubscriptionStatus != store.SubscriptionStatusUnpaid {
			t.Errorf("expected unpaid, got %q", sub.SubscriptionStatus)
		}
	})
}
