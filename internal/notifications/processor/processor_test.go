package processor

import (
	"context"
	"easylist-server/internal/observability"
	"easylist-server/internal/store"
	"errors"
	"testing"
	"time"
)

type fakeNotificationStore struct {
	items []store.InventoryItem
	logs  []store.NotificationLog
}

func (f *fakeNotificationStore) ListItemsBelowThreshold(_ context.Context) ([]store.InventoryItem, error) {
	return f.items, nil
}

func (f *fakeNotificationStore) CreateNotificationLog(_ context.Context, notificationType, subject, body, recipient, dedupKey string) (bool, error) {
	for _, l := range f.logs {
		if l.DedupKey == dedupKey {
			return false, nil
		}
	}
	f.logs = append(f.logs, store.NotificationLog{
		ID:               int64(len(f.logs) + 1),
		NotificationType: notificationType,
		Subject:          subject,
		Body:             body,
		Recipient:        recipient,
		DedupKey:         dedupKey,
		Status:           store.NotificationStatusPending,
	})
	return true, nil
}

func (f *fakeNotificationStore) ListPendingNotifications(_ context.Context, limit int) ([]store.NotificationLog, error) {
	var pending []store.NotificationLog
	for _, l := range f.logs {
		if l.Status == store.NotificationStatusPending && len(pending) < limit {
			pending = append(pending, l)
		}
	}
	return pending, nil
}

func (f *fakeNotificationStore) MarkNotificationStatus(_ context.Context, id int64, status string) error {
	for i := range f.logs {
		if f.logs[i].ID == id {
			f.logs[i].Status = status
			return nil
		}
	}
	return store.ErrNotFound
}

type fakeEmailClient struct {
	sent    []string
	failFor map[string]bool
}

func (f *fakeEmailClient) SendEmail(_ context.Context, _, to, subject, _ string) (string, error) {
	if f.failFor[subject] {
		return "", errors.New("provider rejected the message")
	}
	f.sent = append(f.sent, subject)
	return "email_id", nil
}

type fakeSMSClient struct {
	sent []string
}

func (f *fakeSMSClient) SendSMS(_ context.Context, to, body string) (string, error) {
	f.sent = append(f.sent, body)
	return "sms_id", nil
}

func newTestNotificationProcessor(s *fakeNotificationStore, email *fakeEmailClient, sms SMSClient) NotificationProcessor {
	return New(Config{
		SenderAddress:  "alerts@easylist.example.com",
		AlertRecipient: "ops@easylist.example.com",
		AlertPhone:     "+15550100",
		SendInterval:   time.Millisecond,
	}, s, email, sms, observability.NewLogger())
}

func TestCheckInventoryThresholds(t *testing.T) {
	s := &fakeNotificationStore{
		items: []store.InventoryItem{
			{ID: 1, Name: "Paper towels", Quantity: 2, LowStockThreshold: 5},
			{ID: 2, Name: "Trash bags", Quantity: 0, LowStockThreshold: 10},
		},
	}
	p := newTestNotificationProcessor(s, &fakeEmailClient{}, nil)

	queued, items, err := p.CheckInventoryThresholds(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || queued != 2 {
		t.Errorf("expected 2 items and 2 queued alerts, got %d items, %d queued", len(items), queued)
	}

	// A second scan dedups on the same items.
	queued, _, err = p.CheckInventoryThresholds(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if queued != 0 {
		t.Errorf("expected rescan to queue nothing, got %d", queued)
	}
}

func TestSendPendingNotifications(t *testing.T) {
	s := &fakeNotificationStore{}
	s.CreateNotificationLog(context.Background(), store.NotificationTypeLowStock,
		"Low stock: Paper towels", "<p>restock</p>", "ops@easylist.example.com", "low_stock:1")
	s.CreateNotificationLog(context.Background(), store.NotificationTypeTrialExpired,
		"Your trial has ended", "<p>trial</p>", "user@example.com", "trial_expired:u1")

	email := &fakeEmailClient{}
	sms := &fakeSMSClient{}
	p := newTestNotificationProcessor(s, email, sms)

	sent, failed, err := p.SendPendingNotifications(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 2 || failed != 0 {
		t.Errorf("expected 2 sent, got sent=%d failed=%d", sent, failed)
	}
	for _, l := range s.logs {
		if l.Status != store.NotificationStatusSent {
			t.Errorf("notification %d not marked sent: %s", l.ID, l.Status)
		}
	}
	// Only the stock alert goes out over SMS.
	if len(sms.sent) != 1 {
		t.Errorf("expected 1 sms, got %d", len(sms.sent))
	}
}

func TestSendPendingNotificationsPartialFailure(t *testing.T) {
	s := &fakeNotificationStore{}
	s.CreateNotificationLog(context.Background(), store.NotificationTypeLowStock,
		"Low stock: A", "<p>a</p>", "ops@easylist.example.com", "low_stock:1")
	s.CreateNotificationLog(context.Background(), store.NotificationTypeLowStock,
		"Low stock: B", "<p>b</p>", "ops@easylist.example.com", "low_stock:2")

	email := &fakeEmailClient{failFor: map[string]bool{"Low stock: A": true}}
	p := newTestNotificationProcessor(s, email, nil)

	sent, failed, err := p.SendPendingNotifications(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 1 || failed != 1 {
		t.Errorf("expected sent=1 failed=1, got sent=%d failed=%d", sent, failed)
	}

	statuses := map[string]string{}
	for _, l := range s.logs {
		statuses[l.Subject] = l.Status
	}
	if statuses["Low stock: A"] != store.NotificationStatusFailed {
		t.Errorf("failed send not marked failed: %s", statuses["Low stock: A"])
	}
	if statuses["Low stock: B"] != store.NotificationStatusSent {
		t.Errorf("good send not marked sent: %s", statuses["Low stock: B"])
	}
}
