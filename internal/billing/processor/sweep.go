package processor

import (
	"context"
	"easylist-server/internal/observability"
	"easylist-server/internal/store"
	"fmt"
)

// SweepResult reports what a trial-expiration sweep did.
type SweepResult struct {
	Expired          int      `json:"expired"`
	IntegrityFlagged []string `json:"integrity_flagged,omitempty"`
}

// ExpireTrials transitions trialing records past their period end to unpaid.
// Active records past their period end are flagged as a data-integrity
// warning but never auto-corrected, since such rows mean a lifecycle event
// was missed and the correct end state is unknown.
func (p *BillingProcessor) ExpireTrials(ctx context.Context) (SweepResult, error) {
	expired, err := p.store.ExpireTrials(ctx)
	if err != nil {
		p.logger.Error(ctx, "failed to expire trials", err)
		return SweepResult{}, err
	}

	ctx = observability.WithFields(ctx, observability.Field{Key: "expired_count", Value: len(expired)})
	p.logger.Info(ctx, "trial expiration sweep completed")

	stale, err := p.store.ListActivePastPeriodEnd(ctx)
	if err != nil {
		p.logger.Error(ctx, "failed to scan for stale active records", err)
		return SweepResult{}, err
	}

	result := SweepResult{Expired: len(expired)}
	for _, sub := range stale {
		result.IntegrityFlagged = append(result.IntegrityFlagged, sub.UserID.String())
		flagCtx := observability.WithFields(ctx,
			observability.Field{Key: "user_id", Value: sub.UserID},
			observability.Field{Key: "stripe_customer_id", Value: sub.StripeCustomerID},
			observability.Field{Key: "current_period_end", Value: sub.CurrentPeriodEnd.Time},
		)
		p.logger.Warn(flagCtx, "active subscription past period end, likely missed event")
	}

	// Best effort. A failed notice never fails the sweep.
	for _, sub := range expired {
		dedupKey := fmt.Sprintf("trial_expired:%s", sub.UserID)
		body := "Your trial has ended. Add a payment method to restore access."
		if _, err := p.store.CreateNotificationLog(ctx, store.NotificationTypeTrialExpired,
			"Your trial has ended", body, sub.UserEmail, dedupKey); err != nil {
			p.logger.Warn(ctx, "failed to queue trial expired notice")
		}
	}

	return result, nil
}
