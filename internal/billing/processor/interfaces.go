package processor

import (
	"context"
	"easylist-server/internal/store"
	"time"

	"github.com/google/uuid"
)

// BillingStore defines the database operations required by BillingProcessor.
type BillingStore interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)

	CreatePaymentToken(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time) error
	ConsumePaymentToken(ctx context.Context, token string) (uuid.UUID, error)
	CleanupExpiredPaymentTokens(ctx context.Context) (int64, error)

	CreatePendingPayment(ctx context.Context, sessionID string, userID uuid.UUID, userEmail string, expiresAt time.Time) error
	CompletePendingPayment(ctx context.Context, sessionID string) (uuid.UUID, string, error)

	UpsertSubscription(ctx context.Context, params store.UpsertSubscriptionParams) (store.UserSubscription, error)
	UpdateSubscriptionStatusByStripeSubID(ctx context.Context, stripeSubID, status string) error
	GetSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (store.UserSubscription, error)
	GetSubscriptionByStripeCustomerID(ctx context.Context, customerID string) (store.UserSubscription, error)
	GetSubscriptionByStripeEmail(ctx context.Context, stripeEmail string) (store.UserSubscription, error)
	ExpireTrials(ctx context.Context) ([]store.UserSubscription, error)
	ListActivePastPeriodEnd(ctx context.Context) ([]store.UserSubscription, error)

	RecordUnlinkedEvent(ctx context.Context, eventType, stripeEventID, stripeCustomerID, stripeEmail, reason string) error
	ListUnlinkedEvents(ctx context.Context, limit int) ([]store.UnlinkedEvent, error)
	CreateNotificationLog(ctx context.Context, notificationType, subject, body, recipient, dedupKey string) (bool, error)
}

// GatewayCustomer is the slice of the processor's customer object the
// reconciliation paths care about.
type GatewayCustomer struct {
	ID    string
	Email string
}

// GatewaySubscription is the slice of the processor's subscription object the
// reconciliation paths care about.
type GatewaySubscription struct {
	ID                    string
	CustomerID            string
	Status                string
	PaymentMethodAttached bool
	CurrentPeriodStart    time.Time
	CurrentPeriodEnd      time.Time
}

// CheckoutSessionParams carries everything needed to open a hosted checkout
// page that can later be correlated back to the initiating user.
type CheckoutSessionParams struct {
	CustomerID       string
	CustomerEmail    string
	UserID           uuid.UUID
	PaymentToken     string
	SessionReference string
	SuccessURL       string
	CancelURL        string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentGateway defines the payment-processor operations required by
// BillingProcessor.
type PaymentGateway interface {
	EnsureCustomer(ctx context.Context, email string, metadata map[string]string) (GatewayCustomer, error)
	FindCustomerByEmail(ctx context.Context, email string) (GatewayCustomer, error)
	LatestSubscription(ctx context.Context, customerID string) (GatewaySubscription, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}
