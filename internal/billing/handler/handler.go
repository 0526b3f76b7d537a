package handler

import (
	"easylist-server/internal/apierrors"
	"easylist-server/internal/billing/processor"
	"easylist-server/internal/observability"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	processor processor.BillingProcessor
	logger    *observability.Logger
}

func New(processor processor.BillingProcessor, logger *observability.Logger) Handler {
	return Handler{processor: processor, logger: logger}
}

type GenerateTokenRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

type CreateCheckoutSessionRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

type ProcessPaymentSuccessRequest struct {
	Token       string `json:"token" binding:"required"`
	StripeEmail string `json:"stripe_email" binding:"required,email"`
}

type CreatePortalSessionRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

func (h *Handler) HandleGeneratePaymentToken(c *gin.Context) {
	ctx := c.Request.Context()
	var req GenerateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	userID := uuid.MustParse(req.UserID)
	generated, err := h.processor.GeneratePaymentToken(ctx, userID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, generated)
}

func (h *Handler) HandleCreateCheckoutSession(c *gin.Context) {
	ctx := c.Request.Context()
	var req CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	userID := uuid.MustParse(req.UserID)
	result, err := h.processor.CreateCheckoutSession(ctx, userID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) HandleProcessPaymentSuccess(c *gin.Context) {
	ctx := c.Request.Context()
	var req ProcessPaymentSuccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	summary, err := h.processor.ProcessPaymentSuccess(ctx, req.Token, req.StripeEmail)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) HandleCreatePortalSession(c *gin.Context) {
	ctx := c.Request.Context()
	var req CreatePortalSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	userID := uuid.MustParse(req.UserID)
	portalURL, err := h.processor.CreateCustomerPortalSession(ctx, userID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"portal_url": portalURL})
}
