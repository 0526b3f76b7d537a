package processor

import (
	"easylist-server/internal/observability"
	"errors"
	"time"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrTokenInvalid           = errors.New("payment token is invalid, used, or expired")
	ErrSubscriptionNotFound   = errors.New("subscription not found")
	ErrNoStripeCustomer       = errors.New("user has no stripe customer")
	ErrStripeCustomerNotFound = errors.New("stripe customer not found")
)

// Config carries the billing knobs that vary per deployment.
type Config struct {
	AppURL string
	// AllowEmailMatch enables the last-resort correlation of a payment event
	// to an existing subscription row by the processor-reported email. Every
	// match made under this policy is logged for audit.
	AllowEmailMatch bool
	TokenTTL        time.Duration
}

type BillingProcessor struct {
	WebhookSecret string
	config        Config
	store         BillingStore
	gateway       PaymentGateway
	logger        *observability.Logger
}

func New(webhookSecret string, config Config, store BillingStore, gateway PaymentGateway,
	logger *observability.Logger) BillingProcessor {
	if config.TokenTTL == 0 {
		config.TokenTTL = 2 * time.Hour
	}
	return BillingProcessor{
		WebhookSecret: webhookSecret,
		config:        config,
		store:         store,
		gateway:       gateway,
		logger:        logger,
	}
}
