package bootstrap

import (
	"context"
	"easylist-server/internal/auth"
	"easylist-server/internal/config"
	"easylist-server/internal/observability"
	"easylist-server/internal/store"
	"fmt"
	"time"

	billingHandler "easylist-server/internal/billing/handler"
	billingProcessor "easylist-server/internal/billing/processor"
	"easylist-server/internal/clients/mail"
	"easylist-server/internal/clients/sms"
	notificationsHandler "easylist-server/internal/notifications/handler"
	notificationsProcessor "easylist-server/internal/notifications/processor"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	Store  *store.Store
	Logger *observability.Logger

	Authenticator        *auth.Authenticator
	BillingHandler       billingHandler.Handler
	NotificationsHandler notificationsHandler.Handler
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	st, err := store.New(cfg.Database.ConnectionString(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	deps.Store = &st

	mailClient, err := mail.NewResendClient(cfg.Services.ResendAPIKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create resend client: %w", err)
	}

	var smsClient notificationsProcessor.SMSClient
	if cfg.Services.SMSEnabled() {
		smsClient = sms.NewTwilioClient(
			cfg.Services.TwilioAccountSID,
			cfg.Services.TwilioAuthToken,
			cfg.Services.TwilioFromNumber,
			logger,
		)
	}

	deps.Authenticator = auth.New(cfg.Auth.JWTSecret, logger)

	// Billing processor and handler
	gateway := billingProcessor.NewStripeGateway(cfg.Services.StripeSecretKey, logger)
	billingProc := billingProcessor.New(
		cfg.Services.StripeWebhookSecret,
		billingProcessor.Config{
			AppURL:          cfg.Services.AppURL,
			AllowEmailMatch: cfg.Reconcile.AllowEmailMatch,
			TokenTTL:        time.Duration(cfg.Reconcile.TokenTTLHours) * time.Hour,
		},
		deps.Store,
		gateway,
		logger,
	)
	deps.BillingHandler = billingHandler.New(billingProc, logger)

	// Notifications processor and handler
	notificationsProc := notificationsProcessor.New(
		notificationsProcessor.Config{
			SenderAddress:  cfg.Services.DefaultEmailSender,
			AlertRecipient: cfg.Services.AlertEmailRecipient,
			AlertPhone:     cfg.Services.AlertPhoneNumber,
		},
		deps.Store,
		mailClient,
		smsClient,
		logger,
	)
	deps.NotificationsHandler = notificationsHandler.New(notificationsProc, logger)

	return deps, nil
}
