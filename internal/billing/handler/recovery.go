package handler

import (
	"easylist-server/internal/apierrors"
	"easylist-server/internal/billing/processor"
	"easylist-server/internal/observability"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type ActivateSubscriptionRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ManualActivateSubscriptionRequest struct {
	Email                string     `json:"email" binding:"required,email"`
	StripeCustomerID     string     `json:"stripe_customer_id" binding:"required"`
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
	SubscriptionStatus   string     `json:"subscription_status"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
}

// operatorContext tags the request context with the acting operator so every
// recovery mutation is attributable in the logs.
func operatorContext(c *gin.Context) *gin.Context {
	if operator, ok := c.Get("Operator-ID"); ok {
		ctx := observability.WithFields(c.Request.Context(),
			observability.Field{Key: "operator_id", Value: operator})
		c.Request = c.Request.WithContext(ctx)
	}
	return c
}

func (h *Handler) HandleActivateSubscription(c *gin.Context) {
	c = operatorContext(c)
	ctx := c.Request.Context()

	var req ActivateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	summary, err := h.processor.ActivateSubscription(ctx, req.Email)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) HandleManualActivateSubscription(c *gin.Context) {
	c = operatorContext(c)
	ctx := c.Request.Context()

	var req ManualActivateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	summary, err := h.processor.ManualActivateSubscription(ctx, processor.ManualActivationParams{
		Email:                req.Email,
		StripeCustomerID:     req.StripeCustomerID,
		StripeSubscriptionID: req.StripeSubscriptionID,
		SubscriptionStatus:   req.SubscriptionStatus,
		CurrentPeriodEnd:     req.CurrentPeriodEnd,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) HandleExpireTrials(c *gin.Context) {
	c = operatorContext(c)
	ctx := c.Request.Context()

	result, err := h.processor.ExpireTrials(ctx)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) HandleListUnlinkedEvents(c *gin.Context) {
	c = operatorContext(c)
	ctx := c.Request.Context()

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := h.processor.ListUnlinkedEvents(ctx, limit)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}
