package processor

import (
	"context"
	"easylist-server/internal/observability"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
)

// Metadata keys attached to the processor's customer and subscription objects
// so webhook events can be correlated back to a platform account.
const (
	metadataKeyUserID        = "easylist_user_id"
	metadataKeyPlatformEmail = "platform_email"
	metadataKeyPaymentToken  = "payment_token"
)

const (
	subscriptionPriceCents = 3500
	subscriptionTrialDays  = 7
)

// StripeGateway is the production PaymentGateway backed by the Stripe API.
type StripeGateway struct {
	logger *observability.Logger
}

func NewStripeGateway(apiKey string, logger *observability.Logger) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{logger: logger}
}

func (g *StripeGateway) EnsureCustomer(ctx context.Context, email string, metadata map[string]string) (GatewayCustomer, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "email", Value: email})

	existing, err := g.FindCustomerByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrStripeCustomerNotFound) {
		return GatewayCustomer{}, err
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	c, err := customer.New(params)
	if err != nil {
		g.logger.Error(ctx, "failed to create stripe customer", err)
		return GatewayCustomer{}, err
	}

	return GatewayCustomer{ID: c.ID, Email: c.Email}, nil
}

func (g *StripeGateway) FindCustomerByEmail(ctx context.Context, email string) (GatewayCustomer, error) {
	params := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	params.Limit = stripe.Int64(1)

	i := customer.List(params)
	for i.Next() {
		c := i.Customer()
		return GatewayCustomer{ID: c.ID, Email: c.Email}, nil
	}
	if err := i.Err(); err != nil {
		g.logger.Error(ctx, "failed to list stripe customers", err)
		return GatewayCustomer{}, err
	}

	return GatewayCustomer{}, ErrStripeCustomerNotFound
}

func (g *StripeGateway) LatestSubscription(ctx context.Context, customerID string) (GatewaySubscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Limit = stripe.Int64(1)

	i := subscription.List(params)
	for i.Next() {
		s := i.Subscription()
		return GatewaySubscription{
			ID:                    s.ID,
			CustomerID:            customerID,
			Status:                string(s.Status),
			PaymentMethodAttached: s.DefaultPaymentMethod != nil,
			CurrentPeriodStart:    time.Unix(s.CurrentPeriodStart, 0).UTC(),
			CurrentPeriodEnd:      time.Unix(s.CurrentPeriodEnd, 0).UTC(),
		}, nil
	}
	if err := i.Err(); err != nil {
		g.logger.Error(ctx, "failed to list stripe subscriptions", err)
		return GatewaySubscription{}, err
	}

	return GatewaySubscription{}, ErrSubscriptionNotFound
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (CheckoutSession, error) {
	metadata := map[string]string{
		metadataKeyUserID:        p.UserID.String(),
		metadataKeyPlatformEmail: p.CustomerEmail,
		metadataKeyPaymentToken:  p.PaymentToken,
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(p.SessionReference),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(subscriptionPriceCents),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String("month"),
					},
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("EasyList Premium"),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(subscriptionTrialDays),
			Metadata:        metadata,
		},
	}

	s, err := checkoutsession.New(params)
	if err != nil {
		g.logger.Error(ctx, "failed to create checkout session", err)
		return CheckoutSession{}, err
	}

	return CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}

	s, err := portalsession.New(params)
	if err != nil {
		g.logger.Error(ctx, "failed to create billing portal session", err)
		return "", err
	}

	return s.URL, nil
}
