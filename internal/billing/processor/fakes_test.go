package processor

import (
	"context"
	"easylist-server/internal/store"
	"time"

	"github.com/google/uuid"
)

type fakeToken struct {
	userID    uuid.UUID
	used      bool
	expiresAt time.Time
}

type fakePending struct {
	userID    uuid.UUID
	userEmail string
	status    string
	expiresAt time.Time
}

type recordedUnlinked struct {
	eventType        string
	stripeEventID    string
	stripeCustomerID string
	stripeEmail      string
	reason           string
}

type recordedNotification struct {
	notificationType string
	recipient        string
	dedupKey         string
}

type fakeStore struct {
	users         map[uuid.UUID]store.User
	tokens        map[string]*fakeToken
	pending       map[string]*fakePending
	subs          map[uuid.UUID]store.UserSubscription
	unlinked      []recordedUnlinked
	notifications []recordedNotification
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[uuid.UUID]store.User),
		tokens:  make(map[string]*fakeToken),
		pending: make(map[string]*fakePending),
		subs:    make(map[uuid.UUID]store.UserSubscription),
	}
}

func (f *fakeStore) addUser(email string) store.User {
	u := store.User{ID: uuid.New(), Email: email, CreatedAt: time.Now()}
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) GetUserByID(_ context.Context, userID uuid.UUID) (store.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) CreatePaymentToken(_ context.Context, token string, userID uuid.UUID, expiresAt time.Time) error {
	f.tokens[token] = &fakeToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (f *fakeStore) ConsumePaymentToken(_ context.Context, token string) (uuid.UUID, error) {
	t, ok := f.tokens[token]
	if !ok || t.used || time.Now().After(t.expiresAt) {
		return uuid.Nil, store.ErrNotFound
	}
	t.used = true
	return t.userID, nil
}

func (f *fakeStore) CleanupExpiredPaymentTokens(_ context.Context) (int64, error) {
	var removed int64
	for token, t := range f.tokens {
		if time.Now().After(t.expiresAt) {
			delete(f.tokens, token)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeStore) CreatePendingPayment(_ context.Context, sessionID string, userID uuid.UUID, userEmail string, expiresAt time.Time) error {
	f.pending[sessionID] = &fakePending{
		userID:    userID,
		userEmail: userEmail,
		status:    store.PendingPaymentStatusPending,
		expiresAt: expiresAt,
	}
	return nil
}

func (f *fakeStore) CompletePendingPayment(_ context.Context, sessionID string) (uuid.UUID, string, error) {
	p, ok := f.pending[sessionID]
	if !ok || p.status != store.PendingPaymentStatusPending || time.Now().After(p.expiresAt) {
		return uuid.Nil, "", store.ErrNotFound
	}
	p.status = store.PendingPaymentStatusCompleted
	return p.userID, p.userEmail, nil
}

func (f *fakeStore) UpsertSubscription(_ context.Context, params store.UpsertSubscriptionParams) (store.UserSubscription, error) {
	sub, exists := f.subs[params.UserID]
	sub.UserID = params.UserID
	sub.UserEmail = params.UserEmail
	sub.StripeCustomerID = params.StripeCustomerID
	sub.StripeEmail = params.StripeEmail
	sub.SubscriptionStatus = params.SubscriptionStatus
	sub.PaymentMethodAttached = params.PaymentMethodAttached
	if params.StripeSubscriptionID != "" || !exists {
		sub.StripeSubscriptionID.String = params.StripeSubscriptionID
		sub.StripeSubscriptionID.Valid = params.StripeSubscriptionID != ""
	}
	if params.CurrentPeriodStart != nil {
		sub.CurrentPeriodStart.Time = *params.CurrentPeriodStart
		sub.CurrentPeriodStart.Valid = true
	}
	if params.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd.Time = *params.CurrentPeriodEnd
		sub.CurrentPeriodEnd.Valid = true
	}
	sub.UpdatedAt = time.Now()
	f.subs[params.UserID] = sub
	return sub, nil
}

func (f *fakeStore) UpdateSubscriptionStatusByStripeSubID(_ context.Context, stripeSubID, status string) error {
	for userID, sub := range f.subs {
		if sub.StripeSubscriptionID.Valid && sub.StripeSubscriptionID.String == stripeSubID {
			sub.SubscriptionStatus = status
			sub.UpdatedAt = time.Now()
			f.subs[userID] = sub
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) GetSubscriptionByUserID(_ context.Context, userID uuid.UUID) (store.UserSubscription, error) {
	sub, ok := f.subs[userID]
	if !ok {
		return store.UserSubscription{}, store.ErrNotFound
	}
	return sub, nil
}

func (f *fakeStore) GetSubscriptionByStripeCustomerID(_ context.Context, customerID string) (store.UserSubscription, error) {
	for _, sub := range f.subs {
		if sub.StripeCustomerID == customerID {
			return sub, nil
		}
	}
	return store.UserSubscription{}, store.ErrNotFound
}

func (f *fakeStore) GetSubscriptionByStripeEmail(_ context.Context, stripeEmail string) (store.UserSubscription, error) {
	for _, sub := range f.subs {
		if sub.StripeEmail == stripeEmail {
			return sub, nil
		}
	}
	return store.UserSubscription{}, store.ErrNotFound
}

func (f *fakeStore) ExpireTrials(_ context.Context) ([]store.UserSubscription, error) {
	var expired []store.UserSubscription
	for userID, sub := range f.subs {
		if sub.SubscriptionStatus == store.SubscriptionStatusTrialing &&
			sub.CurrentPeriodEnd.Valid && sub.CurrentPeriodEnd.Time.Before(time.Now()) {
			sub.SubscriptionStatus = store.SubscriptionStatusUnpaid
			sub.UpdatedAt = time.Now()
			f.subs[userID] = sub
			expired = append(expired, sub)
		}
	}
	return expired, nil
}

func (f *fakeStore) ListActivePastPeriodEnd(_ context.Context) ([]store.UserSubscription, error) {
	var stale []store.UserSubscription
	for _, sub := range f.subs {
		if sub.SubscriptionStatus == store.SubscriptionStatusActive &&
			sub.CurrentPeriodEnd.Valid && sub.CurrentPeriodEnd.Time.Before(time.Now()) {
			stale = append(stale, sub)
		}
	}
	return stale, nil
}

func (f *fakeStore) RecordUnlinkedEvent(_ context.Context, eventType, stripeEventID, stripeCustomerID, stripeEmail, reason string) error {
	f.unlinked = append(f.unlinked, recordedUnlinked{
		eventType:        eventType,
		stripeEventID:    stripeEventID,
		stripeCustomerID: stripeCustomerID,
		stripeEmail:      stripeEmail,
		reason:           reason,
	})
	return nil
}

func (f *fakeStore) ListUnlinkedEvents(_ context.Context, limit int) ([]store.UnlinkedEvent, error) {
	var events []store.UnlinkedEvent
	for i, rec := range f.unlinked {
		if i >= limit {
			break
		}
		events = append(events, store.UnlinkedEvent{
			ID:               int64(i + 1),
			EventType:        rec.eventType,
			StripeEventID:    rec.stripeEventID,
			StripeCustomerID: rec.stripeCustomerID,
			StripeEmail:      rec.stripeEmail,
			Reason:           rec.reason,
		})
	}
	return events, nil
}

func (f *fakeStore) CreateNotificationLog(_ context.Context, notificationType, subject, body, recipient, dedupKey string) (bool, error) {
	for _, n := range f.notifications {
		if n.dedupKey == dedupKey {
			return false, nil
		}
	}
	f.notifications = append(f.notifications, recordedNotification{
		notificationType: notificationType,
		recipient:        recipient,
		dedupKey:         dedupKey,
	})
	return true, nil
}

type fakeGateway struct {
	customersByEmail map[string]GatewayCustomer
	subsByCustomer   map[string]GatewaySubscription
	checkoutSessions []CheckoutSessionParams
	portalURL        string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		customersByEmail: make(map[string]GatewayCustomer),
		subsByCustomer:   make(map[string]GatewaySubscription),
		portalURL:        "https://billing.example.com/portal",
	}
}

func (g *fakeGateway) EnsureCustomer(_ context.Context, email string, _ map[string]string) (GatewayCustomer, error) {
	if c, ok := g.customersByEmail[email]; ok {
		return c, nil
	}
	c := GatewayCustomer{ID: "cus_" + uuid.New().String()[:8], Email: email}
	g.customersByEmail[email] = c
	return c, nil
}

func (g *fakeGateway) FindCustomerByEmail(_ context.Context, email string) (GatewayCustomer, error) {
	c, ok := g.customersByEmail[email]
	if !ok {
		return GatewayCustomer{}, ErrStripeCustomerNotFound
	}
	return c, nil
}

func (g *fakeGateway) LatestSubscription(_ context.Context, customerID string) (GatewaySubscription, error) {
	s, ok := g.subsByCustomer[customerID]
	if !ok {
		return GatewaySubscription{}, ErrSubscriptionNotFound
	}
	return s, nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, params CheckoutSessionParams) (CheckoutSession, error) {
	g.checkoutSessions = append(g.checkoutSessions, params)
	return CheckoutSession{
		ID:  "cs_" + uuid.New().String()[:8],
		URL: "https://checkout.example.com/" + params.SessionReference,
	}, nil
}

func (g *fakeGateway) CreatePortalSession(_ context.Context, _, _ string) (string, error) {
	return g.portalURL, nil
}
