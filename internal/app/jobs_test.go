package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stagedoor/onboarding-service/internal/domain"
	"github.com/stagedoor/onboarding-service/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedSession(t *testing.T, sessions *store.MemorySessionStore, state domain.SessionState, age time.Duration, order *domain.PaymentOrder) *domain.Session {
	t.Helper()
	sess := &domain.Session{
		ID:             "sess-" + string(state) + "-" + age.String(),
		State:          state,
		PaymentDetails: order,
		CreatedAt:      time.Now().UTC().Add(-age),
		UpdatedAt:      time.Now().UTC().Add(-age),
	}
	if err := sessions.Create(context.Background(), sess); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return sess
}

func TestSweepExpiredSessions(t *testing.T) {
	sessions := store.NewMemorySessionStore()
	events := &stubPublisher{}
	jobs := NewJobs(sessions, events, discardLogger(), time.Hour, 30*time.Minute)

	seedSession(t, sessions, domain.StateForm, 2*time.Hour, nil)
	seedSession(t, sessions, domain.StatePaymentPending, 3*time.Hour, &domain.PaymentOrder{
		OrderID:         "order-1",
		RazorpayOrderID: "rzp_order_1",
	})
	fresh := seedSession(t, sessions, domain.StateForm, time.Minute, nil)

	jobs.SweepExpiredSessions()

	if sessions.Len() != 1 {
		t.Fatalf("expected one surviving session, got %d", sessions.Len())
	}
	if _, release, err := sessions.Acquire(context.Background(), fresh.ID); err != nil {
		t.Fatalf("fresh session was swept: %v", err)
	} else {
		release()
	}
	if !events.has(RoutingOrderAbandoned) {
		t.Fatal("expected an abandoned-order event for the swept pending payment")
	}
	if len(events.routingKeys) != 1 {
		t.Fatalf("expected exactly one event, got %v", events.routingKeys)
	}
}

func TestRecoverStalePayments(t *testing.T) {
	sessions := store.NewMemorySessionStore()
	events := &stubPublisher{}
	jobs := NewJobs(sessions, events, discardLogger(), time.Hour, 30*time.Minute)

	stale := seedSession(t, sessions, domain.StatePaymentPending, 45*time.Minute, &domain.PaymentOrder{
		OrderID:         "order-1",
		RazorpayOrderID: "rzp_order_1",
	})
	recent := seedSession(t, sessions, domain.StatePaymentPending, 5*time.Minute, &domain.PaymentOrder{
		OrderID:         "order-2",
		RazorpayOrderID: "rzp_order_2",
	})

	jobs.RecoverStalePayments()

	sess, release, err := sessions.Acquire(context.Background(), stale.ID)
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	release()
	if sess.State != domain.StateForm {
		t.Fatalf("expected stale session returned to form, got %q", sess.State)
	}
	if sess.PaymentDetails != nil {
		t.Fatal("expected stale session's order cleared")
	}
	if len(sess.Notices) == 0 {
		t.Fatal("expected a notice explaining the expiry")
	}
	if !events.has(RoutingOrderAbandoned) {
		t.Fatal("expected an abandoned-order event")
	}

	sess, release, err = sessions.Acquire(context.Background(), recent.ID)
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	release()
	if sess.State != domain.StatePaymentPending {
		t.Fatalf("expected recent pending session untouched, got %q", sess.State)
	}
}
