package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "SESSION_TTL_MINUTES")
	unsetEnvWithCleanup(t, "OTP_RATE_LIMIT")
	unsetEnvWithCleanup(t, "STALE_ORDER_AFTER_MINUTES")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8086" {
		t.Fatalf("expected default port 8086, got %q", cfg.ServerPort)
	}
	if cfg.SessionTTLMinutes != 60 {
		t.Fatalf("expected default session ttl 60, got %d", cfg.SessionTTLMinutes)
	}
	if cfg.OTPRateLimit != 5 {
		t.Fatalf("expected default otp rate limit 5, got %d", cfg.OTPRateLimit)
	}
	if cfg.StaleOrderAfterMinutes != 30 {
		t.Fatalf("expected default stale order cutoff 30, got %d", cfg.StaleOrderAfterMinutes)
	}
	if cfg.SessionSweepSchedule == "" || cfg.StaleOrderSweepSchedule == "" {
		t.Fatal("expected default sweep schedules")
	}
}

func TestLoadConfig_ReadsEnvironment(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "9000")
	setEnvWithCleanup(t, "MARKETPLACE_API_URL", "https://api.example.com")
	setEnvWithCleanup(t, "RAZORPAY_KEY_ID", "rzp_test_key")
	setEnvWithCleanup(t, "SESSION_SECRET", "topsecret")
	setEnvWithCleanup(t, "OTP_RATE_LIMIT", "3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9000" {
		t.Fatalf("expected port 9000, got %q", cfg.ServerPort)
	}
	if cfg.MarketplaceAPIURL != "https://api.example.com" {
		t.Fatalf("expected marketplace url from env, got %q", cfg.MarketplaceAPIURL)
	}
	if cfg.RazorpayKeyID != "rzp_test_key" {
		t.Fatalf("expected razorpay key from env, got %q", cfg.RazorpayKeyID)
	}
	if cfg.SessionSecret != "topsecret" {
		t.Fatalf("expected session secret from env, got %q", cfg.SessionSecret)
	}
	if cfg.OTPRateLimit != 3 {
		t.Fatalf("expected otp rate limit 3, got %d", cfg.OTPRateLimit)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
