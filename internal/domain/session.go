/**
 * @description
 * The signup session and its state machine. A session is the server-side
 * analogue of one signup page visit: ephemeral, never persisted, discarded on
 * completion or expiry. The marketplace backend remains the system of record
 * for users, orders, and payments.
 */
package domain

import "time"

// SessionState is the single tagged state of a signup session, replacing the
// pile of independent boolean flags an incidental implementation would need.
type SessionState string

const (
	// StatePlanSelection is the initial full-page step gating the signup form.
	StatePlanSelection SessionState = "plan_selection"
	// StateForm accepts field updates, OTP operations, and submission.
	StateForm SessionState = "form"
	// StatePaymentPending means a payment order exists and the checkout is
	// open; the flow waits on exactly one of the completion or dismiss
	// callbacks.
	StatePaymentPending SessionState = "payment_pending"
	// StateVerifyingPayment means the completion callback arrived and the
	// signature fields are being verified with the backend.
	StateVerifyingPayment SessionState = "verifying_payment"
	// StateCreatingAccount means the backend signup call is in flight.
	StateCreatingAccount SessionState = "creating_account"
	// StateLinking means the account exists and the paid order is being
	// associated with it, best-effort.
	StateLinking SessionState = "linking"
	// StateDone is terminal; the client is redirected to the dashboard.
	StateDone SessionState = "done"
)

// Busy reports whether the state has a submission in flight. A new submit
// arriving while busy is ignored outright, so rapid double-submits issue
// exactly one network call.
func (s SessionState) Busy() bool {
	switch s {
	case StatePaymentPending, StateVerifyingPayment, StateCreatingAccount, StateLinking:
		return true
	}
	return false
}

// OtpState tracks email verification for the session. Verified only becomes
// true after the backend confirms a submitted code, and the whole struct is
// reset whenever the email field changes.
type OtpState struct {
	Sent     bool   `json:"sent"`
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

// PaymentOrder is the order created by the backend for a paid tier. Amount is
// in major currency units as returned by the backend; the checkout config
// converts to minor units.
type PaymentOrder struct {
	OrderID         string `json:"orderId"`
	RazorpayOrderID string `json:"razorpayOrderId"`
	KeyID           string `json:"keyId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// NoticeSeverity classifies user-facing notices.
type NoticeSeverity string

const (
	NoticeSuccess NoticeSeverity = "success"
	NoticeError   NoticeSeverity = "error"
	NoticeInfo    NoticeSeverity = "info"
)

// Notice is a user-facing message queued on the session, the server-side
// equivalent of a toast.
type Notice struct {
	Message  string         `json:"message"`
	Severity NoticeSeverity `json:"severity"`
}

// Session is one in-progress signup. All state is ephemeral and scoped to the
// session's lifetime.
type Session struct {
	ID    string       `json:"id"`
	State SessionState `json:"state"`
	Form  SignupForm   `json:"form"`
	Otp   OtpState     `json:"otp"`

	// PaymentVerified and PaymentDetails survive a failed account-creation
	// attempt so the user never has to pay twice after fixing a form field.
	// They are cleared only on successful completion.
	PaymentVerified bool          `json:"payment_verified"`
	PaymentDetails  *PaymentOrder `json:"payment_details,omitempty"`

	// IdempotencyKey is forwarded with signup and order-creation calls so the
	// backend can deduplicate retries of the same session.
	IdempotencyKey string `json:"idempotency_key"`

	Notices    []Notice  `json:"notices,omitempty"`
	RedirectTo string    `json:"redirect_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PushNotice queues a user-facing notice on the session.
func (s *Session) PushNotice(severity NoticeSeverity, message string) {
	s.Notices = append(s.Notices, Notice{Message: message, Severity: severity})
}

// DrainNotices returns queued notices and clears the queue.
func (s *Session) DrainNotices() []Notice {
	out := s.Notices
	s.Notices = nil
	return out
}

// ApplyFormUpdate patches non-nil fields onto the form. Editing the email
// invalidates any prior verification: Otp is reset so the new address must be
// verified again.
func (s *Session) ApplyFormUpdate(u FormUpdate) {
	if u.Email != nil && *u.Email != s.Form.Email {
		s.Form.Email = *u.Email
		s.Otp = OtpState{}
	}
	if u.Password != nil {
		s.Form.Password = *u.Password
	}
	if u.ConfirmPassword != nil {
		s.Form.ConfirmPassword = *u.ConfirmPassword
	}
	if u.FullName != nil {
		s.Form.FullName = *u.FullName
	}
	if u.Username != nil {
		s.Form.Username = *u.Username
	}
	if u.ProfileType != nil {
		s.Form.ProfileType = *u.ProfileType
	}
	if u.AgreeToTerms != nil {
		s.Form.AgreeToTerms = *u.AgreeToTerms
	}
}

// Reset returns the session to its initial defaults: empty form, initial step,
// no payment or verification state. Used by the mode-switch operation.
func (s *Session) Reset() {
	s.State = StatePlanSelection
	s.Form = SignupForm{}
	s.Otp = OtpState{}
	s.PaymentVerified = false
	s.PaymentDetails = nil
	s.Notices = nil
	s.RedirectTo = ""
	s.UpdatedAt = time.Now().UTC()
}
