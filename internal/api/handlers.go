/**
 * @description
 * This file contains the HTTP handler functions for the onboarding-service.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate business logic in the service layer, and writing the HTTP
 * response.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/stagedoor/onboarding-service/internal/app"
	"github.com/stagedoor/onboarding-service/internal/domain"
	"github.com/stagedoor/onboarding-service/pkg/gateway"
)

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service       *app.Service
	sessionSecret string
	sessionTTL    time.Duration
}

// NewHandler creates a new Handler with the given service and session token
// settings.
func NewHandler(service *app.Service, sessionSecret string, sessionTTL time.Duration) *Handler {
	return &Handler{service: service, sessionSecret: sessionSecret, sessionTTL: sessionTTL}
}

// sessionView is the client-facing projection of a session.
type sessionView struct {
	SessionID  string              `json:"session_id"`
	State      domain.SessionState `json:"state"`
	Form       domain.SignupForm   `json:"form"`
	Otp        domain.OtpState     `json:"otp"`
	Notices    []domain.Notice     `json:"notices"`
	RedirectTo string              `json:"redirect_to,omitempty"`
}

func viewOf(sess *domain.Session) sessionView {
	notices := sess.Notices
	if notices == nil {
		notices = []domain.Notice{}
	}
	return sessionView{
		SessionID:  sess.ID,
		State:      sess.State,
		Form:       sess.Form,
		Otp:        sess.Otp,
		Notices:    notices,
		RedirectTo: sess.RedirectTo,
	}
}

// handleStartSession creates a new signup session and mints its token.
func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.StartSession(r.Context())
	if err != nil {
		http.Error(w, "Could not start signup session", http.StatusInternalServerError)
		return
	}

	token, err := MintSessionToken(h.sessionSecret, sess.ID, h.sessionTTL)
	if err != nil {
		http.Error(w, "Could not issue session token", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": sess.ID,
		"token":      token,
		"state":      sess.State,
	})
}

// handleGetSession returns the session state and drains pending notices.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sess, err := h.service.Snapshot(r.Context(), sessionID)
	if err != nil {
		h.writeFlowError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, viewOf(sess))
}

// handleSelectPlan records the chosen subscription tier.
func (h *Handler) handleSelectPlan(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		SubscriptionType domain.SubscriptionTier `json:"subscription_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.SelectPlan(r.Context(), sessionID, req.SubscriptionType); err != nil {
		h.writeFlowError(w, err)
		return
	}
	h.respondWithSnapshot(w, r, sessionID)
}

// handleUpdateForm patches signup form fields.
func (h *Handler) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var update domain.FormUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateForm(r.Context(), sessionID, update); err != nil {
		h.writeFlowError(w, err)
		return
	}
	h.respondWithSnapshot(w, r, sessionID)
}

// handleSendOTP emails a verification code to the form's address.
func (h *Handler) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	h.runOTPAction(w, r, h.service.SendOTP, "Verification code sent")
}

// handleResendOTP emails a fresh verification code.
func (h *Handler) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	h.runOTPAction(w, r, h.service.ResendOTP, "Verification code resent")
}

func (h *Handler) runOTPAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, sessionID string) error, message string) {
	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := action(r.Context(), sessionID); err != nil {
		h.writeFlowError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": message})
}

// handleVerifyOTP confirms a user-entered code.
func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		OTPCode string `json:"otp_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.VerifyOTPCode(r.Context(), sessionID, req.OTPCode); err != nil {
		h.writeFlowError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Email verified"})
}

// handleSubmit runs the top-level submission.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.service.Submit(r.Context(), sessionID)
	if err != nil {
		h.writeFlowError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// handleCompletePayment is the gateway's success callback.
func (h *Handler) handleCompletePayment(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var cb gateway.CompletionResponse
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.CompletePayment(r.Context(), sessionID, cb)
	if err != nil {
		h.writeFlowError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// handleDismissPayment is the gateway's dismiss callback.
func (h *Handler) handleDismissPayment(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.service.DismissPayment(r.Context(), sessionID)
	if err != nil {
		h.writeFlowError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// handleResetSession is the mode-switch operation: everything back to initial
// defaults.
func (h *Handler) handleResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.ResetSession(r.Context(), sessionID); err != nil {
		h.writeFlowError(w, err)
		return
	}
	h.respondWithSnapshot(w, r, sessionID)
}

// handleSignIn forwards credentials to the backend.
func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	redirect, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeFlowError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"redirect_to": redirect})
}

func (h *Handler) respondWithSnapshot(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, err := h.service.Snapshot(r.Context(), sessionID)
	if err != nil {
		h.writeFlowError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, viewOf(sess))
}

// writeFlowError maps the flow error taxonomy onto HTTP statuses.
func (h *Handler) writeFlowError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrVerificationFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrOrderCreationFailed):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrPaymentVerificationFailed):
		status = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrSignupFailed):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrSigninFailed):
		status = http.StatusUnauthorized
	}
	respondWithJSON(w, status, map[string]string{"error": app.UserMessage(err)})
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
