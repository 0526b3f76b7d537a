package processor

import (
	"context"
	"easylist-server/internal/observability"
	"easylist-server/internal/store"
	"fmt"
	"time"
)

// NotificationStore defines the database operations required by
// NotificationProcessor.
type NotificationStore interface {
	ListItemsBelowThreshold(ctx context.Context) ([]store.InventoryItem, error)
	CreateNotificationLog(ctx context.Context, notificationType, subject, body, recipient, dedupKey string) (bool, error)
	ListPendingNotifications(ctx context.Context, limit int) ([]store.NotificationLog, error)
	MarkNotificationStatus(ctx context.Context, id int64, status string) error
}

// EmailClient defines the email operations required by NotificationProcessor.
type EmailClient interface {
	SendEmail(ctx context.Context, from, to, subject, htmlContent string) (string, error)
}

// SMSClient defines the SMS operations required by NotificationProcessor.
// A nil client disables the SMS channel.
type SMSClient interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

type Config struct {
	SenderAddress  string
	AlertRecipient string
	AlertPhone     string
	// SendInterval paces outbound sends to stay under the email provider's
	// rate limit.
	SendInterval time.Duration
}

type NotificationProcessor struct {
	config Config
	store  NotificationStore
	email  EmailClient
	sms    SMSClient
	logger *observability.Logger
}

func New(config Config, store NotificationStore, email EmailClient, sms SMSClient,
	logger *observability.Logger) NotificationProcessor {
	if config.SendInterval == 0 {
		config.SendInterval = 600 * time.Millisecond
	}
	return NotificationProcessor{
		config: config,
		store:  store,
		email:  email,
		sms:    sms,
		logger: logger,
	}
}

// CheckInventoryThresholds scans for items at or under their restock
// threshold and queues one low-stock alert per item. The queue dedups on the
// item, so repeated scans within a day do not re-alert.
func (p *NotificationProcessor) CheckInventoryThresholds(ctx context.Context) (int, []store.InventoryItem, error) {
	items, err := p.store.ListItemsBelowThreshold(ctx)
	if err != nil {
		p.logger.Error(ctx, "failed to scan inventory thresholds", err)
		return 0, nil, err
	}

	queued := 0
	for _, item := range items {
		subject := fmt.Sprintf("Low stock: %s", item.Name)
		body := fmt.Sprintf("<p><strong>%s</strong> is down to %d units (threshold %d). Time to restock.</p>",
			item.Name, item.Quantity, item.LowStockThreshold)
		dedupKey := fmt.Sprintf("low_stock:%d", item.ID)

		inserted, err := p.store.CreateNotificationLog(ctx, store.NotificationTypeLowStock,
			subject, body, p.config.AlertRecipient, dedupKey)
		if err != nil {
			p.logger.Error(ctx, "failed to queue low stock alert", err)
			return queued, items, err
		}
		if inserted {
			queued++
		}
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "items_below_threshold", Value: len(items)},
		observability.Field{Key: "alerts_queued", Value: queued},
	)
	p.logger.Info(ctx, "inventory threshold scan completed")
	return queued, items, nil
}

// SendPendingNotifications drains the pending notification queue, pacing
// sends at the configured interval. Each notification is marked sent or
// failed individually; one failed send never blocks the rest.
func (p *NotificationProcessor) SendPendingNotifications(ctx context.Context) (sent, failed int, err error) {
	pending, err := p.store.ListPendingNotifications(ctx, 50)
	if err != nil {
		p.logger.Error(ctx, "failed to list pending notifications", err)
		return 0, 0, err
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	ticker := time.NewTicker(p.config.SendInterval)
	defer ticker.Stop()

	for i, n := range pending {
		if i > 0 {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return sent, failed, ctx.Err()
			}
		}

		if p.send(ctx, n) {
			sent++
		} else {
			failed++
		}
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "notifications_sent", Value: sent},
		observability.Field{Key: "notifications_failed", Value: failed},
	)
	p.logger.Info(ctx, "notification queue drained")
	return sent, failed, nil
}

func (p *NotificationProcessor) send(ctx context.Context, n store.NotificationLog) bool {
	sendCtx := observability.WithFields(ctx, observability.Field{Key: "notification_id", Value: n.ID})

	_, err := p.email.SendEmail(sendCtx, p.config.SenderAddress, n.Recipient, n.Subject, n.Body)
	if err != nil {
		if markErr := p.store.MarkNotificationStatus(sendCtx, n.ID, store.NotificationStatusFailed); markErr != nil {
			p.logger.Error(sendCtx, "failed to mark notification failed", markErr)
		}
		return false
	}

	// SMS is a secondary channel for stock alerts, best effort only.
	if p.sms != nil && n.NotificationType == store.NotificationTypeLowStock && p.config.AlertPhone != "" {
		if _, err := p.sms.SendSMS(sendCtx, p.config.AlertPhone, n.Subject); err != nil {
			p.logger.Warn(sendCtx, "failed to send sms alert")
		}
	}

	if err := p.store.MarkNotificationStatus(sendCtx, n.ID, store.NotificationStatusSent); err != nil {
		p.logger.Error(sendCtx, "failed to mark notification sent", err)
	}
	return true
}
