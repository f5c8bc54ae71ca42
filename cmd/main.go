/**
 * @description
 * This is the main entry point for the onboarding-service. It wires the
 * configuration, Redis rate limiter, RabbitMQ producer, marketplace API
 * client, checkout gateway, session store, HTTP router, and the cron
 * scheduler, then runs the server until a termination signal arrives.
 */
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stagedoor/onboarding-service/internal/api"
	"github.com/stagedoor/onboarding-service/internal/app"
	"github.com/stagedoor/onboarding-service/internal/config"
	"github.com/stagedoor/onboarding-service/internal/store"
	"github.com/stagedoor/onboarding-service/pkg/gateway"
	"github.com/stagedoor/onboarding-service/pkg/marketplaceclient"
	"github.com/stagedoor/onboarding-service/pkg/rabbitmq"
)

func maskAMQPURLForLog(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil {
		return "<unparseable>"
	}
	if u.User != nil {
		u.User = url.UserPassword("****", "****")
	}
	return u.String()
}

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load application configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	// If a platform-provided PORT is set (e.g., Railway/Render), prefer it
	if port := os.Getenv("PORT"); port != "" {
		cfg.ServerPort = port
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8086"
	}
	if cfg.SessionSecret == "" {
		log.Fatal("SESSION_SECRET must be set")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Redis backs OTP throttling and callback deduplication. The flow stays
	// available without it, so a connection failure only logs a warning.
	var limiter *app.RedisOTPRateLimiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("WARNING: invalid REDIS_URL: %v. Continuing without rate limiting.", err)
		} else {
			redisClient := redis.NewClient(opts)
			defer redisClient.Close()
			limiter = app.NewRedisOTPRateLimiter(redisClient, "stagedoor:onboarding")
			log.Println("Redis rate limiter configured")
		}
	} else {
		log.Println("REDIS_URL not set, OTP sends are not throttled")
	}

	log.Printf("RABBITMQ_URL (masked)=%s", maskAMQPURLForLog(cfg.RabbitMQURL))

	// Set up RabbitMQ producer with bounded dial timeout; fall back to a no-op
	// publisher on failure so the signup flow never depends on the broker.
	var producer rabbitmq.Publisher
	if p, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		log.Printf("WARNING: Failed to connect to RabbitMQ at startup: %v. Continuing without MQ.", err)
		producer = rabbitmq.NopProducer{}
	} else {
		producer = p
		defer producer.Close()
		log.Println("RabbitMQ producer connected")
	}

	// External collaborators
	marketplace := marketplaceclient.NewClient(cfg.MarketplaceAPIURL, cfg.MarketplaceAPIKey)
	checkout := gateway.NewCheckout(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	if !checkout.Ready() {
		log.Println("WARNING: RAZORPAY_KEY_ID not set, paid signups will be rejected")
	}

	sessions := store.NewMemorySessionStore()

	otpWindow := time.Duration(cfg.OTPRateWindowSeconds) * time.Second
	service := app.NewService(sessions, marketplace, checkout, producer, limiter, cfg.OTPRateLimit, otpWindow)

	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	staleAfter := time.Duration(cfg.StaleOrderAfterMinutes) * time.Minute

	// Background sweeps for abandoned sessions and stuck checkouts
	jobs := app.NewJobs(sessions, producer, logger, sessionTTL, staleAfter)
	scheduler := app.NewScheduler(jobs, logger, cfg)
	scheduler.Start()

	// Set up router and handlers
	handler := api.NewHandler(service, cfg.SessionSecret, sessionTTL)
	r := api.NewRouter(handler, cfg.SessionSecret)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server gracefully stopped")
}
