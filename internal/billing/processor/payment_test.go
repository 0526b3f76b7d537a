package processor

import (
	"context"
	"easylist-server/internal/store"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestProcessPaymentSuccess(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	user := s.addUser("alice@example.com")
	s.CreatePaymentToken(ctx, "tok_ok", user.ID, time.Now().Add(time.Hour))

	g := newFakeGateway()
	g.customersByEmail["alice@gmail.com"] = GatewayCustomer{ID: "cus_a", Email: "alice@gmail.com"}
	g.subsByCustomer["cus_a"] = GatewaySubscription{
		ID:                    "sub_a",
		CustomerID:            "cus_a",
		Status:                "trialing",
		PaymentMethodAttached: true,
		CurrentPeriodStart:    time.Now(),
		CurrentPeriodEnd:      time.Now().Add(7 * 24 * time.Hour),
	}

	p := newTestProcessor(s, g)

	summary, err := p.ProcessPaymentSuccess(ctx, "tok_ok", "alice@gmail.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.UserID != user.ID {
		t.Errorf("resolved to wrong user: %s", summary.UserID)
	}
	// A trialing gateway subscription is an active record on this path.
	if summary.SubscriptionStatus != store.SubscriptionStatusActive {
		t.Errorf("expected active, got %q", summary.SubscriptionStatus)
	}
	if summary.StripeCustomerID != "cus_a" || summary.StripeSubscriptionID != "sub_a" {
		t.Errorf("identity fields not recorded: %+v", summary)
	}

	// The token was consumed; the second confirmation fails closed.
	if _, err := p.ProcessPaymentSuccess(ctx, "tok_ok", "alice@gmail.com"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid on reuse, got %v", err)
	}
}

func TestProcessPaymentSuccessStatusMapping(t *testing.T) {
	tests := []struct {
		gatewayStatus string
		want          string
	}{
		{"active", store.SubscriptionStatusActive},
		{"trialing", store.SubscriptionStatusActive},
		{"past_due", store.SubscriptionStatusPastDue},
		{"canceled", store.SubscriptionStatusCanceled},
		{"unpaid", store.SubscriptionStatusCanceled},
		{"incomplete", store.SubscriptionStatusPaymentRequired},
	}
	for _, tc := range tests {
		t.Run(tc.gatewayStatus, func(t *testing.T) {
			ctx := context.Background()
			s := newFakeStore()
			user := s.addUser("eve@example.com")
			s.CreatePaymentToken(ctx, "tok_map", user.ID, time.Now().Add(time.Hour))

			g := newFakeGateway()
			g.customersByEmail["eve@gmail.com"] = GatewayCustomer{ID: "cus_e", Email: "eve@gmail.com"}
			g.subsByCustomer["cus_e"] = GatewaySubscription{
				ID:         "sub_e",
				CustomerID: "cus_e",
				Status:     tc.gatewayStatus,
			}

			summary, err := newTestProcessor(s, g).ProcessPaymentSuccess(ctx, "tok_map", "eve@gmail.com")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if summary.SubscriptionStatus != tc.want {
				t.Errorf("gateway status %q: expected %q, got %q", tc.gatewayStatus, tc.want, summary.SubscriptionStatus)
			}
		})
	}
}

func TestProcessPaymentSuccessNoSubscriptionYet(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	user := s.addUser("bob@example.com")
	s.CreatePaymentToken(ctx, "tok_b", user.ID, time.Now().Add(time.Hour))

	g := newFakeGateway()
	g.customersByEmail["bob@gmail.com"] = GatewayCustomer{ID: "cus_b", Email: "bob@gmail.com"}

	p := newTestProcessor(s, g)

	summary, err := p.ProcessPaymentSuccess(ctx, "tok_b", "bob@gmail.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.SubscriptionStatus != store.SubscriptionStatusPaymentRequired {
		t.Errorf("expected payment_required, got %q", summary.SubscriptionStatus)
	}
}

func TestProcessPaymentSuccessUnknownCustomer(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	user := s.addUser("carol@example.com")
	s.CreatePaymentToken(ctx, "tok_c", user.ID, time.Now().Add(time.Hour))

	p := newTestProcessor(s, newFakeGateway())

	if _, err := p.ProcessPaymentSuccess(ctx, "tok_c", "carol@gmail.com"); !errors.Is(err, ErrStripeCustomerNotFound) {
		t.Fatalf("expected ErrStripeCustomerNotFound, got %v", err)
	}
}

func TestCheckoutThenWebhookActivates(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	user := s.addUser("dora@example.com")

	p := newTestProcessor(s, newFakeGateway())

	result, err := p.CreateCheckoutSession(ctx, user.ID)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if result.CheckoutURL == "" || result.SessionID == "" || result.Token == "" {
		t.Fatalf("incomplete checkout result: %+v", result)
	}

	outcome, err := p.Reconcile(ctx, PaymentEvent{
		Type:             EventCheckoutCompleted,
		EventID:          "evt_checkout",
		CustomerID:       "cus_d",
		SubscriptionID:   "sub_d",
		SessionReference: result.SessionID,
	})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !outcome.Linked || outcome.UserID != user.ID {
		t.Fatalf("checkout event did not link to initiating user: %+v", outcome)
	}

	sub, err := s.GetSubscriptionByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("expected subscription record: %v", err)
	}
	if sub.SubscriptionStatus != store.SubscriptionStatusActive {
		t.Errorf("expected active, got %q", sub.SubscriptionStatus)
	}
}

func TestCreateCheckoutSessionUnknownUser(t *testing.T) {
	p := newTestProcessor(newFakeStore(), newFakeGateway())

	if _, err := p.CreateCheckoutSession(context.Background(), uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
