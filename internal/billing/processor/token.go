package processor

import (
	"context"
	"crypto/rand"
	"easylist-server/internal/observability"
	"easylist-server/internal/store"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GeneratedToken is the result of minting a single-use payment-linking token.
type GeneratedToken struct {
	Token      string `json:"token"`
	SuccessURL string `json:"success_url"`
}

// GeneratePaymentToken mints a single-use correlation token for a user and
// returns the success URL the checkout flow should redirect to. Expired
// tokens are garbage-collected opportunistically on each call.
func (p *BillingProcessor) GeneratePaymentToken(ctx context.Context, userID uuid.UUID) (GeneratedToken, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "user_id", Value: userID})

	if _, err := p.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Error(ctx, "user not found for payment token", err)
			return GeneratedToken{}, ErrUserNotFound
		}
		p.logger.Error(ctx, "failed to look up user", err)
		return GeneratedToken{}, err
	}

	// Housekeeping only. A failed cleanup never blocks token issuance.
	if removed, err := p.store.CleanupExpiredPaymentTokens(ctx); err != nil {
		p.logger.Warn(ctx, "failed to clean up expired payment tokens")
	} else if removed > 0 {
		p.logger.Info(ctx, fmt.Sprintf("cleaned up %d expired payment tokens", removed))
	}

	token, err := newOpaqueToken()
	if err != nil {
		p.logger.Error(ctx, "failed to generate payment token", err)
		return GeneratedToken{}, err
	}

	expiresAt := time.Now().Add(p.config.TokenTTL)
	if err := p.store.CreatePaymentToken(ctx, token, userID, expiresAt); err != nil {
		p.logger.Error(ctx, "failed to persist payment token", err)
		return GeneratedToken{}, err
	}

	p.logger.Info(ctx, "payment token generated")
	return GeneratedToken{
		Token:      token,
		SuccessURL: fmt.Sprintf("%s/payment-success?token=%s", p.config.AppURL, token),
	}, nil
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
