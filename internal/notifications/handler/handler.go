package handler

import (
	"easylist-server/internal/apierrors"
	"easylist-server/internal/notifications/processor"
	"easylist-server/internal/observability"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	processor processor.NotificationProcessor
	logger    *observability.Logger
}

func New(processor processor.NotificationProcessor, logger *observability.Logger) Handler {
	return Handler{processor: processor, logger: logger}
}

func (h *Handler) HandleCheckInventoryThresholds(c *gin.Context) {
	ctx := c.Request.Context()

	queued, items, err := h.processor.CheckInventoryThresholds(ctx)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items_below_threshold": len(items),
		"alerts_queued":         queued,
	})
}

func (h *Handler) HandleSendNotificationEmails(c *gin.Context) {
	ctx := c.Request.Context()

	sent, failed, err := h.processor.SendPendingNotifications(ctx)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sent": sent, "failed": failed})
}
