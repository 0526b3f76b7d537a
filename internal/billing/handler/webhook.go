package handler

import (
	"easylist-server/internal/apierrors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79/webhook"
)

// HandleWebhook receives processor-signed lifecycle events. Signature
// verification happens before any state mutation; once an event is verified
// and durably classified the response is 200 even when it could not be
// linked, so the processor stops retrying.
func (h *Handler) HandleWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "failed to read request body"))
		return
	}

	signatureHeader := c.GetHeader("Stripe-Signature")
	if signatureHeader == "" {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeSignatureInvalid, "missing Stripe-Signature header"))
		return
	}

	event, err := webhook.ConstructEvent(payload, signatureHeader, h.processor.WebhookSecret)
	if err != nil {
		h.logger.Error(ctx, "webhook signature verification failed", err)
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeSignatureInvalid, "invalid webhook signature"))
		return
	}

	outcome, err := h.processor.HandleWebhook(ctx, event)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	resp := gin.H{"received": true, "linked": outcome.Linked}
	if outcome.Linked {
		resp["strategy"] = outcome.Strategy
	}
	c.JSON(http.StatusOK, resp)
}
