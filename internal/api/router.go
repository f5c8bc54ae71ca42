/**
 * @description
 * This file sets up the HTTP router for the onboarding-service using the
 * go-chi/chi router. It defines the API routes, applies middleware for
 * logging, CORS, and session authentication, and maps the routes to their
 * corresponding handler functions.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the onboarding-service
// routes.
func NewRouter(h *Handler, sessionSecret string) *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Onboarding service is healthy"))
	})

	// Sign-in needs no session token
	r.Post("/signin", h.handleSignIn)

	r.Route("/signup/session", func(r chi.Router) {
		// Session creation mints the token the other routes require
		r.Post("/", h.handleStartSession)

		r.Group(func(r chi.Router) {
			r.Use(SessionAuthMiddleware(sessionSecret))

			r.Get("/", h.handleGetSession)
			r.Delete("/", h.handleResetSession)
			r.Post("/plan", h.handleSelectPlan)
			r.Put("/form", h.handleUpdateForm)
			r.Post("/otp/send", h.handleSendOTP)
			r.Post("/otp/verify", h.handleVerifyOTP)
			r.Post("/otp/resend", h.handleResendOTP)
			r.Post("/submit", h.handleSubmit)
			r.Post("/payment/complete", h.handleCompletePayment)
			r.Post("/payment/dismiss", h.handleDismissPayment)
		})
	})

	return r
}
