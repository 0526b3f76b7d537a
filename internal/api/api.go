package api

import (
	"easylist-server/internal/auth"
	billingHandler "easylist-server/internal/billing/handler"
	"easylist-server/internal/config"
	notificationsHandler "easylist-server/internal/notifications/handler"
	"net/http"

	"github.com/gin-gonic/gin"
)

type API struct {
	router               *gin.RouterGroup
	billingHandler       billingHandler.Handler
	notificationsHandler notificationsHandler.Handler
	authenticator        *auth.Authenticator
	cfg                  *config.Config
}

func New(router *gin.RouterGroup, billingHandler billingHandler.Handler,
	notificationsHandler notificationsHandler.Handler, authenticator *auth.Authenticator,
	cfg *config.Config) API {
	return API{
		router:               router,
		billingHandler:       billingHandler,
		notificationsHandler: notificationsHandler,
		authenticator:        authenticator,
		cfg:                  cfg,
	}
}

func (a *API) RegisterRoutes() {
	apiGroup := a.router.Group("/api")

	apiGroup.GET("/health", a.handleHealth)

	// Checkout and confirmation paths called by the web client.
	apiGroup.POST("/generate-payment-token", a.billingHandler.HandleGeneratePaymentToken)
	apiGroup.POST("/create-checkout-session", a.billingHandler.HandleCreateCheckoutSession)
	apiGroup.POST("/process-payment-success", a.billingHandler.HandleProcessPaymentSuccess)
	apiGroup.POST("/create-customer-portal-session", a.billingHandler.HandleCreatePortalSession)

	// Processor-signed events; admission control is the signature check.
	apiGroup.POST("/stripe-webhook", a.billingHandler.HandleWebhook)

	// Operator-only recovery and maintenance endpoints.
	operatorGroup := apiGroup.Group("", a.authenticator.HandleJWTMiddleware)
	{
		operatorGroup.POST("/activate-subscription", a.billingHandler.HandleActivateSubscription)
		operatorGroup.POST("/manual-activate-subscription", a.billingHandler.HandleManualActivateSubscription)
		operatorGroup.POST("/expire-trials", a.billingHandler.HandleExpireTrials)
		operatorGroup.GET("/unlinked-events", a.billingHandler.HandleListUnlinkedEvents)
		operatorGroup.POST("/check-inventory-thresholds", a.notificationsHandler.HandleCheckInventoryThresholds)
		operatorGroup.POST("/send-notification-emails", a.notificationsHandler.HandleSendNotificationEmails)
	}
}

// handleHealth reports liveness plus which external integrations are
// configured, without leaking any secret material.
func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"config": gin.H{
			"database_configured": a.cfg.Database.Host != "",
			"stripe_configured":   a.cfg.Services.StripeSecretKey != "",
			"webhook_configured":  a.cfg.Services.StripeWebhookSecret != "",
			"resend_configured":   a.cfg.Services.ResendAPIKey != "",
			"sms_configured":      a.cfg.Services.SMSEnabled(),
			"app_url_configured":  a.cfg.Services.AppURL != "",
		},
	})
}
