/**
 * @description
 * Event payloads published to the onboarding_events exchange. Downstream
 * consumers (analytics, CRM sync, payment reconciliation) pick these up by
 * routing key.
 */
package domain

// SignupCompletedEvent is published after an account is created and the flow
// reaches its terminal state.
type SignupCompletedEvent struct {
	SessionID        string `json:"session_id"`
	Email            string `json:"email"`
	Username         string `json:"username"`
	ProfileType      string `json:"profile_type"`
	SubscriptionType string `json:"subscription_type"`
	PaymentLinked    bool   `json:"payment_linked"`
}

// PaymentVerifiedEvent is published once the gateway signature fields have
// been verified with the backend.
type PaymentVerifiedEvent struct {
	SessionID       string `json:"session_id"`
	OrderID         string `json:"order_id"`
	RazorpayOrderID string `json:"razorpay_order_id"`
	Email           string `json:"email"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// PaymentCancelledEvent is published when the user dismisses the checkout
// without paying and the flow falls back to a free completion.
type PaymentCancelledEvent struct {
	SessionID       string `json:"session_id"`
	OrderID         string `json:"order_id"`
	RazorpayOrderID string `json:"razorpay_order_id"`
	Email           string `json:"email"`
}

// PaymentLinkFailedEvent is published when the post-signup order linkage call
// fails. Linking is best-effort for the user; reconciliation happens
// out-of-band from this event.
type PaymentLinkFailedEvent struct {
	SessionID       string `json:"session_id"`
	OrderID         string `json:"order_id"`
	RazorpayOrderID string `json:"razorpay_order_id"`
	Email           string `json:"email"`
	Reason          string `json:"reason"`
}

// OrderAbandonedEvent is published by the scheduler for payment orders whose
// sessions sat in payment_pending past the stale cutoff, so paid-but-stuck
// orders can be reconciled server-side.
type OrderAbandonedEvent struct {
	SessionID       string `json:"session_id"`
	OrderID         string `json:"order_id"`
	RazorpayOrderID string `json:"razorpay_order_id"`
	Email           string `json:"email"`
	PendingSince    string `json:"pending_since"`
}
