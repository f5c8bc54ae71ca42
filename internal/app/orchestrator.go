/**
 * @description
 * This file contains the core business logic for the onboarding-service: the
 * signup-with-payment orchestration. The Service sequences email verification,
 * payment-order creation, gateway checkout callbacks, account creation, and
 * best-effort payment linking against the marketplace backend.
 *
 * Key features:
 * - Single tagged session state instead of a pile of boolean flags, so invalid
 *   combinations cannot be represented.
 * - Per-session locking: within one session every operation is strictly
 *   sequential, and a double-submit is an ignored no-op.
 * - Payment state survives a failed account creation, so a user never pays
 *   twice after fixing a form field.
 * - Linking is best-effort; failures are logged and published for out-of-band
 *   reconciliation, never surfaced, and never block completion.
 *
 * @dependencies
 * - github.com/google/uuid: session and idempotency identifiers.
 * - internal/domain, internal/store: models and session storage.
 * - pkg/gateway, pkg/marketplaceclient, pkg/rabbitmq: external collaborators.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stagedoor/onboarding-service/internal/domain"
	"github.com/stagedoor/onboarding-service/internal/store"
	"github.com/stagedoor/onboarding-service/pkg/gateway"
	"github.com/stagedoor/onboarding-service/pkg/marketplaceclient"
	"github.com/stagedoor/onboarding-service/pkg/rabbitmq"
)

const (
	otpTypeSignup = "signup"

	dashboardPath = "/dashboard"

	msgPaymentSuccess        = "Payment successful! Finishing your registration..."
	msgAccountCreated        = "Account created successfully!"
	msgPaymentCancelled      = "Payment cancelled. Completing your signup without payment."
	msgPaymentVerifyFallback = "Payment verification failed. Please contact support"

	// EventsExchange is the topic exchange all onboarding events go to.
	EventsExchange = "onboarding_events"

	routingSignupCompleted   = "onboarding.signup.completed"
	routingPaymentVerified   = "onboarding.payment.verified"
	routingPaymentCancelled  = "onboarding.payment.cancelled"
	routingPaymentLinkFailed = "onboarding.payment.link_failed"
	// RoutingOrderAbandoned marks orders stuck in payment_pending, published by
	// the scheduler sweep.
	RoutingOrderAbandoned = "onboarding.payment.order_abandoned"
)

// MarketplaceAPI is the slice of the marketplace backend this service calls.
type MarketplaceAPI interface {
	SendOTP(ctx context.Context, email, otpType string) (*marketplaceclient.StatusResponse, error)
	VerifyOTP(ctx context.Context, email, code, otpType string) (*marketplaceclient.StatusResponse, error)
	ResendOTP(ctx context.Context, email, otpType string) (*marketplaceclient.StatusResponse, error)
	CreateOrder(ctx context.Context, userID *string, subscriptionType, email string) (*domain.PaymentOrder, error)
	VerifyPayment(ctx context.Context, req marketplaceclient.VerifyPaymentRequest) (*marketplaceclient.StatusResponse, error)
	LinkOrder(ctx context.Context, orderID string, req marketplaceclient.LinkOrderRequest) error
	SignUp(ctx context.Context, req marketplaceclient.SignupRequest, idempotencyKey string) error
	SignIn(ctx context.Context, email, password string) error
}

// CheckoutGateway abstracts the hosted checkout: build a config, pre-check a
// completion signature. The gateway's concrete shape never leaks into the
// flow.
type CheckoutGateway interface {
	Ready() bool
	BuildCheckout(order *domain.PaymentOrder, name, email string) gateway.CheckoutConfig
	VerifySignature(orderID, paymentID, signature string) bool
}

// RateLimiter throttles OTP sends and reserves callback idempotency keys.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error)
	ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Service provides the signup orchestration logic.
type Service struct {
	sessions  store.SessionStore
	api       MarketplaceAPI
	gateway   CheckoutGateway
	events    rabbitmq.Publisher
	limiter   RateLimiter
	otpLimit  int
	otpWindow time.Duration
}

// NewService creates a new onboarding service. limiter may be nil, in which
// case OTP sends are not throttled and callbacks are not deduplicated.
func NewService(sessions store.SessionStore, api MarketplaceAPI, gw CheckoutGateway, events rabbitmq.Publisher, limiter RateLimiter, otpLimit int, otpWindow time.Duration) *Service {
	return &Service{
		sessions:  sessions,
		api:       api,
		gateway:   gw,
		events:    events,
		limiter:   limiter,
		otpLimit:  otpLimit,
		otpWindow: otpWindow,
	}
}

// SubmitResult reports the outcome of a submission or payment callback.
type SubmitResult struct {
	State      domain.SessionState     `json:"state"`
	Ignored    bool                    `json:"ignored,omitempty"`
	Checkout   *gateway.CheckoutConfig `json:"checkout,omitempty"`
	RedirectTo string                  `json:"redirect_to,omitempty"`
}

// StartSession creates a new signup session on the plan-selection step.
func (s *Service) StartSession(ctx context.Context) (*domain.Session, error) {
	now := time.Now().UTC()
	sess := &domain.Session{
		ID:             uuid.NewString(),
		State:          domain.StatePlanSelection,
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Snapshot returns a copy of the session with queued notices, draining them.
// Credentials are blanked in the copy.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, release, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	cp := *sess
	cp.Notices = sess.DrainNotices()
	if sess.PaymentDetails != nil {
		pd := *sess.PaymentDetails
		cp.PaymentDetails = &pd
	}
	cp.Form.Password = ""
	cp.Form.ConfirmPassword = ""
	return &cp, nil
}

// SelectPlan records the chosen tier and advances to the form. Selecting a
// plan always advances, regardless of any prior selection.
func (s *Service) SelectPlan(ctx context.Context, sessionID string, tier domain.SubscriptionTier) error {
	if !domain.ValidTier(tier) {
		return invalidInput("Unknown subscription plan")
	}

	sess, release, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	if sess.State.Busy() || sess.State == domain.StateDone {
		return domain.ErrInvalidState
	}
	sess.Form.SubscriptionType = tier
	sess.State = domain.StateForm
	return nil
}

// UpdateForm patches form fields. Changing the email resets the OTP state so
// the new address must be verified again.
func (s *Service) UpdateForm(ctx context.Context, sessionID string, update domain.FormUpdate) error {
	sess, release, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	if sess.State.Busy() || sess.State == domain.StateDone {
		return domain.ErrInvalidState
	}
	sess.ApplyFormUpdate(update)
	return nil
}

// SendOTP emails a one-time code to the form's email address.
func (s *Service) SendOTP(ctx context.Context, sessionID string) error {
	return s.sendCode(ctx, sessionID, false)
}

// ResendOTP emails a fresh code to the form's email address.
func (s *Service) ResendOTP(ctx context.Context, sessionID string) error {
	return s.sendCode(ctx, sessionID, true)
}

func (s *Service) sendCode(ctx context.Context, sessionID string, resend bool) error {
	sess, release, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	if err := validateEmail(sess.Form.Email); err != nil {
		return err
	}

	if s.limiter != nil && s.otpLimit > 0 {
		count, retryAfter, limitErr := s.limiter.ConsumeRateLimit(ctx, "otp_send", sess.Form.Email, s.otpLimit, s.otpWindow)
		if limitErr != nil {
			// Throttling is a guard rail, not a dependency; keep the flow
			// available when Redis is down.
			log.Printf("level=warn component=onboarding op=send_otp msg=\"rate limiter unavailable\" err=%v", limitErr)
		} else if count > s.otpLimit {
			return fmt.Errorf("%w: too many verification codes requested, try again in %d seconds", domain.ErrRateLimited, retryAfter)
		}
	}

	var resp *marketplaceclient.StatusResponse
	if resend {
		resp, err = s.api.ResendOTP(ctx, sess.Form.Email, otpTypeSignup)
	} else {
		resp, err = s.api.SendOTP(ctx, sess.Form.Email, otpTypeSignup)
	}
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrVerificationFailed, err.Error())
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", domain.ErrVerificationFailed, resp.Message)
	}

	sess.Otp.Sent = true
	sess.Otp.Error = ""
	return nil
}

// VerifyOTPCode confirms a user-entered code with the backend. Verification is
// a trust signal for the user; submission is never blocked on it.
func (s *Service) VerifyOTPCode(ctx context.Context, sessionID, code string) error {
	sess, release, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	if err := validateOTPCode(code); err != nil {
		return err
	}

	resp, err := s.api.VerifyOTP(ctx, sess.Form.Email, code, otpTypeSignup)
	if err != nil {
		sess.Otp.Error = err.Error()
		return fmt.Errorf("%w: %s", domain.ErrVerificationFailed, err.Error())
	}
	if !resp.Success {
		sess.Otp.Error = resp.Message
		return fmt.Errorf("%w: %s", domain.ErrVerificationFailed, resp.Message)
	}

	sess.Otp.Verified = true
	sess.Otp.Error = ""
	return nil
}

// Submit runs the top-level submission: validate, then either create the
// account directly (free tier, or payment already verified) or create a
// payment order and hand back a checkout config.
func (s *Service) Submit(ctx context.Context, sessionID string) (*SubmitResult, error) {
	sess, release, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	// A submission while one is already in flight is ignored outright.
	if sess.State.Busy() || sess.State == domain.StateDone {
		return &SubmitResult{State: sess.State, Ignored: true}, nil
	}

	// A submit racing the step transition lands back on the form without
	// submitting anything.
	if sess.State == domain.StatePlanSelection {
		sess.State = domain.StateForm
		return &SubmitResult{State: sess.State, Ignored: true}, nil
	}

	if err := validateSignupForm(sess.Form); err != nil {
		sess.PushNotice(domain.NoticeError, UserMessage(err))
		return nil, err
	}

	if sess.Form.SubscriptionType == "" {
		sess.Form.SubscriptionType = domain.TierFree
	}

	if sess.Form.SubscriptionType == domain.TierFree || sess.PaymentVerified {
		return s.createAccount(ctx, sess)
	}
	return s.initiatePayment(ctx, sess)
}

// initiatePayment creates a payment order and builds the checkout config. The
// session lock is held by the caller.
func (s *Service) initiatePayment(ctx context.Context, sess *domain.Session) (*SubmitResult, error) {
	if s.gateway == nil || !s.gateway.Ready() {
		msg := "Payment gateway is still loading. Please try again."
		sess.PushNotice(domain.NoticeError, msg)
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderCreationFailed, msg)
	}

	order, err := s.api.CreateOrder(ctx, nil, string(sess.Form.SubscriptionType), sess.Form.Email)
	if err != nil {
		log.Printf("level=warn component=onboarding op=create_order session_id=%s err=%v", sess.ID, err)
		sess.PushNotice(domain.NoticeError, "Could not start payment. Please try again.")
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderCreationFailed, err.Error())
	}

	sess.PaymentDetails = order
	sess.State = domain.StatePaymentPending

	cfg := s.gateway.BuildCheckout(order, sess.Form.FullName, sess.Form.Email)
	return &SubmitResult{State: sess.State, Checkout: &cfg}, nil
}

// CompletePayment handles the gateway's success callback: verify the
// signature fields with the backend, then proceed to account creation
// carrying the order identifiers.
func (s *Service) CompletePayment(ctx context.Context, sessionID string, cb gateway.CompletionResponse) (*SubmitResult, error) {
	sess, release, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if sess.State != domain.StatePaymentPending || sess.PaymentDetails == nil {
		return nil, domain.ErrInvalidState
	}

	// The gateway can redeliver a callback; the first delivery wins.
	if s.limiter != nil && cb.RazorpayPaymentID != "" {
		fresh, limitErr := s.limiter.ReserveIdempotencyKey(ctx, "payment_cb:"+cb.RazorpayPaymentID, time.Hour)
		if limitErr != nil {
			log.Printf("level=warn component=onboarding op=complete_payment msg=\"idempotency reservation unavailable\" err=%v", limitErr)
		} else if !fresh {
			return &SubmitResult{State: sess.State, Ignored: true}, nil
		}
	}

	sess.State = domain.StateVerifyingPayment

	if !s.gateway.VerifySignature(cb.RazorpayOrderID, cb.RazorpayPaymentID, cb.RazorpaySignature) {
		sess.State = domain.StateForm
		sess.PushNotice(domain.NoticeError, msgPaymentVerifyFallback)
		return nil, fmt.Errorf("%w: signature mismatch", domain.ErrPaymentVerificationFailed)
	}

	resp, err := s.api.VerifyPayment(ctx, marketplaceclient.VerifyPaymentRequest{
		RazorpayOrderID:   cb.RazorpayOrderID,
		RazorpayPaymentID: cb.RazorpayPaymentID,
		RazorpaySignature: cb.RazorpaySignature,
		UserID:            nil,
		Email:             sess.Form.Email,
	})
	if err != nil || !resp.Success {
		msg := msgPaymentVerifyFallback
		if err == nil && resp.Message != "" {
			msg = resp.Message
		}
		sess.State = domain.StateForm
		sess.PushNotice(domain.NoticeError, msg)
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentVerificationFailed, msg)
	}

	sess.PaymentVerified = true
	sess.PushNotice(domain.NoticeSuccess, msgPaymentSuccess)
	s.publish(ctx, routingPaymentVerified, domain.PaymentVerifiedEvent{
		SessionID:       sess.ID,
		OrderID:         sess.PaymentDetails.OrderID,
		RazorpayOrderID: sess.PaymentDetails.RazorpayOrderID,
		Email:           sess.Form.Email,
		Amount:          sess.PaymentDetails.Amount,
		Currency:        sess.PaymentDetails.Currency,
	})

	return s.createAccount(ctx, sess)
}

// DismissPayment handles the gateway's dismiss callback: the signup completes
// with no payment info, as a free-fallback completion.
func (s *Service) DismissPayment(ctx context.Context, sessionID string) (*SubmitResult, error) {
	sess, release, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if sess.State != domain.StatePaymentPending {
		return nil, domain.ErrInvalidState
	}

	order := sess.PaymentDetails
	sess.PaymentDetails = nil
	sess.State = domain.StateForm
	sess.PushNotice(domain.NoticeInfo, msgPaymentCancelled)

	if order != nil {
		s.publish(ctx, routingPaymentCancelled, domain.PaymentCancelledEvent{
			SessionID:       sess.ID,
			OrderID:         order.OrderID,
			RazorpayOrderID: order.RazorpayOrderID,
			Email:           sess.Form.Email,
		})
	}

	return s.createAccount(ctx, sess)
}

// createAccount calls the backend signup endpoint and, when a verified payment
// is present, links the order to the new account best-effort. The session lock
// is held by the caller.
func (s *Service) createAccount(ctx context.Context, sess *domain.Session) (*SubmitResult, error) {
	sess.State = domain.StateCreatingAccount

	req := marketplaceclient.SignupRequest{
		Email:            sess.Form.Email,
		Password:         sess.Form.Password,
		Username:         sess.Form.Username,
		DisplayName:      sess.Form.FullName,
		Role:             strings.ToLower(string(sess.Form.ProfileType)),
		SubscriptionType: string(sess.Form.SubscriptionType),
		Bio:              "",
		AvatarURL:        "",
	}

	if err := s.api.SignUp(ctx, req, sess.IdempotencyKey); err != nil {
		// Verified payment state is deliberately preserved here: a transient
		// signup failure must not cost the user a completed payment.
		sess.State = domain.StateForm
		sess.PushNotice(domain.NoticeError, err.Error())
		return nil, fmt.Errorf("%w: %s", domain.ErrSignupFailed, err.Error())
	}

	linked := false
	if sess.PaymentVerified && sess.PaymentDetails != nil {
		sess.State = domain.StateLinking
		linkErr := s.api.LinkOrder(ctx, sess.PaymentDetails.OrderID, marketplaceclient.LinkOrderRequest{
			RazorpayOrderID: sess.PaymentDetails.RazorpayOrderID,
			Email:           sess.Form.Email,
		})
		if linkErr != nil {
			log.Printf("level=warn component=onboarding op=link_order session_id=%s order_id=%s err=%v", sess.ID, sess.PaymentDetails.OrderID, linkErr)
			s.publish(ctx, routingPaymentLinkFailed, domain.PaymentLinkFailedEvent{
				SessionID:       sess.ID,
				OrderID:         sess.PaymentDetails.OrderID,
				RazorpayOrderID: sess.PaymentDetails.RazorpayOrderID,
				Email:           sess.Form.Email,
				Reason:          linkErr.Error(),
			})
		} else {
			linked = true
		}
	}

	s.publish(ctx, routingSignupCompleted, domain.SignupCompletedEvent{
		SessionID:        sess.ID,
		Email:            sess.Form.Email,
		Username:         sess.Form.Username,
		ProfileType:      string(sess.Form.ProfileType),
		SubscriptionType: string(sess.Form.SubscriptionType),
		PaymentLinked:    linked,
	})

	// Payment state is cleared only now, after full completion.
	sess.PaymentVerified = false
	sess.PaymentDetails = nil
	sess.State = domain.StateDone
	sess.RedirectTo = dashboardPath
	sess.PushNotice(domain.NoticeSuccess, msgAccountCreated)

	return &SubmitResult{State: sess.State, RedirectTo: dashboardPath}, nil
}

// ResetSession returns the session to its initial defaults, the mode-switch
// operation. A fresh idempotency key is minted since any later submission is a
// genuinely new signup.
func (s *Service) ResetSession(ctx context.Context, sessionID string) error {
	sess, release, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	sess.Reset()
	sess.IdempotencyKey = uuid.NewString()
	return nil
}

// SignIn forwards credentials to the backend and returns the post-signin
// redirect path.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, error) {
	if err := validateSigninInput(email, password); err != nil {
		return "", err
	}
	if err := s.api.SignIn(ctx, email, password); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrSigninFailed, err.Error())
	}
	return dashboardPath, nil
}

// publish sends an event best-effort; the flow never fails on event delivery.
func (s *Service) publish(ctx context.Context, routingKey string, body interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, EventsExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=onboarding msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}

// UserMessage strips the taxonomy prefix from a wrapped flow error, leaving the
// message meant for the user.
func UserMessage(err error) string {
	msg := err.Error()
	for _, kind := range []error{
		domain.ErrInvalidInput,
		domain.ErrVerificationFailed,
		domain.ErrOrderCreationFailed,
		domain.ErrPaymentVerificationFailed,
		domain.ErrSignupFailed,
		domain.ErrSigninFailed,
		domain.ErrRateLimited,
	} {
		if errors.Is(err, kind) {
			msg = strings.TrimPrefix(msg, kind.Error()+": ")
			break
		}
	}
	return msg
}
