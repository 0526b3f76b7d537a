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

// CheckoutResult is returned to the client initiating a checkout. Token and
// SessionID are redundant correlation paths; either one is enough to link the
// eventual payment event back to the user.
type CheckoutResult struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
	Token       string `json:"token"`
}

// CreateCheckoutSession opens a hosted checkout page for a user. It mints a
// link token and a pending-payment record before calling the processor, so a
// failure after this point leaves only orphaned rows that expire via TTL and
// never a half-linked subscription.
func (p *BillingProcessor) CreateCheckoutSession(ctx context.Context, userID uuid.UUID) (CheckoutResult, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "user_id", Value: userID})
	p.logger.Info(ctx, "creating checkout session")

	user, err := p.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Error(ctx, "user not found for checkout", err)
			return CheckoutResult{}, ErrUserNotFound
		}
		p.logger.Error(ctx, "failed to look up user", err)
		return CheckoutResult{}, err
	}

	generated, err := p.GeneratePaymentToken(ctx, userID)
	if err != nil {
		return CheckoutResult{}, err
	}

	sessionReference := fmt.Sprintf("cs_ref_%s", uuid.New().String())
	expiresAt := time.Now().Add(p.config.TokenTTL)
	if err := p.store.CreatePendingPayment(ctx, sessionReference, userID, user.Email, expiresAt); err != nil {
		p.logger.Error(ctx, "failed to create pending payment record", err)
		return CheckoutResult{}, err
	}

	cust, err := p.gateway.EnsureCustomer(ctx, user.Email, map[string]string{
		metadataKeyUserID:        userID.String(),
		metadataKeyPlatformEmail: user.Email,
		metadataKeyPaymentToken:  generated.Token,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to ensure stripe customer", err)
		return CheckoutResult{}, err
	}

	session, err := p.gateway.CreateCheckoutSession(ctx, CheckoutSessionParams{
		CustomerID:       cust.ID,
		CustomerEmail:    user.Email,
		UserID:           userID,
		PaymentToken:     generated.Token,
		SessionReference: sessionReference,
		SuccessURL:       generated.SuccessURL,
		CancelURL:        fmt.Sprintf("%s/payment-canceled", p.config.AppURL),
	})
	if err != nil {
		p.logger.Error(ctx, "failed to create checkout session", err)
		return CheckoutResult{}, err
	}

	ctx = observability.WithFields(ctx, observability.Field{Key: "checkout_session_id", Value: session.ID})
	p.logger.Info(ctx, "checkout session created")

	return CheckoutResult{
		CheckoutURL: session.URL,
		SessionID:   sessionReference,
		Token:       generated.Token,
	}, nil
}

// CreateCustomerPortalSession returns a billing-portal URL for a user with an
// existing subscription record.
func (p *BillingProcessor) CreateCustomerPortalSession(ctx context.Context, userID uuid.UUID) (string, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "user_id", Value: userID})

	sub, err := p.store.GetSubscriptionByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Error(ctx, "no subscription record for portal session", err)
			return "", ErrNoStripeCustomer
		}
		p.logger.Error(ctx, "failed to look up subscription record", err)
		return "", err
	}
	if sub.StripeCustomerID == "" {
		return "", ErrNoStripeCustomer
	}

	url, err := p.gateway.CreatePortalSession(ctx, sub.StripeCustomerID, p.config.AppURL+"/account")
	if err != nil {
		p.logger.Error(ctx, "failed to create portal session", err)
		return "", err
	}

	return url, nil
}
