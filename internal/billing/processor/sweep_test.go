package processor

import (
	"context"
	"easylist-server/internal/store"
	"testing"
	"time"
)

func TestExpireTrials(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()

	yesterday := time.Now().Add(-24 * time.Hour)
	tomorrow := time.Now().Add(24 * time.Hour)

	lapsed := s.addUser("lapsed@example.com")
	s.UpsertSubscription(ctx, store.UpsertSubscriptionParams{
		UserID:             lapsed.ID,
		UserEmail:          lapsed.Email,
		StripeCustomerID:   "cus_lapsed",
		SubscriptionStatus: store.SubscriptionStatusTrialing,
		CurrentPeriodEnd:   &yesterday,
	})

	current := s.addUser("current@example.com")
	s.UpsertSubscription(ctx, store.UpsertSubscriptionParams{
		UserID:             current.ID,
		UserEmail:          current.Email,
		StripeCustomerID:   "cus_current",
		SubscriptionStatus: store.SubscriptionStatusTrialing,
		CurrentPeriodEnd:   &tomorrow,
	})

	p := newTestProcessor(s, newFakeGateway())

	result, err := p.ExpireTrials(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Expired != 1 {
		t.Errorf("expected 1 expired trial, got %d", result.Expired)
	}

	sub, _ := s.GetSubscriptionByUserID(ctx, lapsed.ID)
	if sub.SubscriptionStatus != store.SubscriptionStatusUnpaid {
		t.Errorf("lapsed trial: expected unpaid, got %q", sub.SubscriptionStatus)
	}
	sub, _ = s.GetSubscriptionByUserID(ctx, current.ID)
	if sub.SubscriptionStatus != store.SubscriptionStatusTrialing {
		t.Errorf("current trial touched: got %q", sub.SubscriptionStatus)
	}

	if len(s.notifications) != 1 {
		t.Errorf("expected one trial-expired notice, got %d", len(s.notifications))
	}
}

func TestExpireTrialsFlagsStaleActive(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()

	yesterday := time.Now().Add(-24 * time.Hour)
	stale := s.addUser("stale@example.com")
	s.UpsertSubscription(ctx, store.UpsertSubscriptionParams{
		UserID:                stale.ID,
		UserEmail:             stale.Email,
		StripeCustomerID:      "cus_stale",
		SubscriptionStatus:    store.SubscriptionStatusActive,
		PaymentMethodAttached: true,
		CurrentPeriodEnd:      &yesterday,
	})

	p := newTestProcessor(s, newFakeGateway())

	result, err := p.ExpireTrials(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Expired != 0 {
		t.Errorf("active record was expired by the sweep")
	}
	if len(result.IntegrityFlagged) != 1 || result.IntegrityFlagged[0] != stale.ID.String() {
		t.Errorf("expected stale active record to be flagged, got %v", result.IntegrityFlagged)
	}

	// Flagged, never auto-corrected.
	sub, _ := s.GetSubscriptionByUserID(ctx, stale.ID)
	if sub.SubscriptionStatus != store.SubscriptionStatusActive {
		t.Errorf("sweep mutated a flagged active record to %q", sub.SubscriptionStatus)
	}
}
