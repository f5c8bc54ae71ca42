/**
 * @description
 * Background jobs for session hygiene: expiring abandoned signup sessions and
 * recovering sessions stuck waiting on a checkout that will never call back.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/stagedoor/onboarding-service/internal/domain"
	"github.com/stagedoor/onboarding-service/internal/store"
	"github.com/stagedoor/onboarding-service/pkg/rabbitmq"
)

// Jobs holds the dependencies for the scheduled sweeps.
type Jobs struct {
	sessions   store.SessionStore
	events     rabbitmq.Publisher
	logger     *slog.Logger
	sessionTTL time.Duration
	staleAfter time.Duration
}

// NewJobs creates the scheduled jobs.
func NewJobs(sessions store.SessionStore, events rabbitmq.Publisher, logger *slog.Logger, sessionTTL, staleAfter time.Duration) *Jobs {
	return &Jobs{
		sessions:   sessions,
		events:     events,
		logger:     logger,
		sessionTTL: sessionTTL,
		staleAfter: staleAfter,
	}
}

// SweepExpiredSessions drops sessions idle past the TTL. Expired sessions that
// still hold a payment order are reported for out-of-band reconciliation,
// since the order may have been paid without the callback ever reaching us.
func (j *Jobs) SweepExpiredSessions() {
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-j.sessionTTL)

	removed, err := j.sessions.SweepExpired(ctx, cutoff)
	if err != nil {
		j.logger.Error("session sweep failed", "error", err)
		return
	}
	if len(removed) == 0 {
		return
	}

	orphanedOrders := 0
	for _, sess := range removed {
		if sess.PaymentDetails == nil {
			continue
		}
		orphanedOrders++
		j.publishAbandoned(ctx, sess)
	}
	j.logger.Info("swept expired signup sessions", "removed", len(removed), "orphaned_orders", orphanedOrders)
}

// RecoverStalePayments returns sessions stuck in payment_pending to the form
// so the user can retry, and reports the abandoned order.
func (j *Jobs) RecoverStalePayments() {
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-j.staleAfter)

	ids, err := j.sessions.StalePaymentSessionIDs(ctx, cutoff)
	if err != nil {
		j.logger.Error("stale payment scan failed", "error", err)
		return
	}

	recovered := 0
	for _, id := range ids {
		sess, release, err := j.sessions.Acquire(ctx, id)
		if err != nil {
			continue
		}
		// Re-check under the lock; the callback may have raced the scan.
		if sess.State != domain.StatePaymentPending {
			release()
			continue
		}
		j.publishAbandoned(ctx, sess)
		sess.PaymentDetails = nil
		sess.State = domain.StateForm
		sess.PushNotice(domain.NoticeInfo, "Your payment session expired. Please submit again to retry payment.")
		release()
		recovered++
	}
	if recovered > 0 {
		j.logger.Info("recovered stale payment sessions", "count", recovered)
	}
}

func (j *Jobs) publishAbandoned(ctx context.Context, sess *domain.Session) {
	if j.events == nil || sess.PaymentDetails == nil {
		return
	}
	event := domain.OrderAbandonedEvent{
		SessionID:       sess.ID,
		OrderID:         sess.PaymentDetails.OrderID,
		RazorpayOrderID: sess.PaymentDetails.RazorpayOrderID,
		Email:           sess.Form.Email,
		PendingSince:    sess.UpdatedAt.Format(time.RFC3339),
	}
	if err := j.events.Publish(ctx, EventsExchange, RoutingOrderAbandoned, event); err != nil {
		j.logger.Warn("failed to publish abandoned order", "session_id", sess.ID, "error", err)
	}
}
