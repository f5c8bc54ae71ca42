/**
 * @description
 * This file handles the configuration management for the onboarding-service.
 * It uses the 'viper' library to load configuration from environment variables,
 * providing a centralized and consistent way to manage application settings.
 */
package config

import (
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	// Marketplace backend (system of record for users, orders, payments).
	MarketplaceAPIURL string `mapstructure:"MARKETPLACE_API_URL"`
	MarketplaceAPIKey string `mapstructure:"MARKETPLACE_API_KEY"`

	// Razorpay checkout credentials. The key id is embedded in checkout
	// configs; the secret is only used for the local signature pre-check.
	RazorpayKeyID     string `mapstructure:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret string `mapstructure:"RAZORPAY_KEY_SECRET"`

	// Session tokens are HS256 JWTs signed with this secret.
	SessionSecret     string `mapstructure:"SESSION_SECRET"`
	SessionTTLMinutes int    `mapstructure:"SESSION_TTL_MINUTES"`

	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	// OTP sends allowed per email within the window.
	OTPRateLimit         int `mapstructure:"OTP_RATE_LIMIT"`
	OTPRateWindowSeconds int `mapstructure:"OTP_RATE_WINDOW_SECONDS"`

	// Cron schedules for the background sweeps.
	SessionSweepSchedule    string `mapstructure:"SESSION_SWEEP_SCHEDULE"`
	StaleOrderSweepSchedule string `mapstructure:"STALE_ORDER_SWEEP_SCHEDULE"`
	StaleOrderAfterMinutes  int    `mapstructure:"STALE_ORDER_AFTER_MINUTES"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("SERVER_PORT", "8086")
	viper.SetDefault("SESSION_TTL_MINUTES", 60)
	viper.SetDefault("OTP_RATE_LIMIT", 5)
	viper.SetDefault("OTP_RATE_WINDOW_SECONDS", 600)
	viper.SetDefault("SESSION_SWEEP_SCHEDULE", "*/10 * * * *")
	viper.SetDefault("STALE_ORDER_SWEEP_SCHEDULE", "*/15 * * * *")
	viper.SetDefault("STALE_ORDER_AFTER_MINUTES", 30)
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("MARKETPLACE_API_URL")
	_ = viper.BindEnv("MARKETPLACE_API_KEY")
	_ = viper.BindEnv("RAZORPAY_KEY_ID")
	_ = viper.BindEnv("RAZORPAY_KEY_SECRET")
	_ = viper.BindEnv("SESSION_SECRET")
	_ = viper.BindEnv("SESSION_TTL_MINUTES")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("OTP_RATE_LIMIT")
	_ = viper.BindEnv("OTP_RATE_WINDOW_SECONDS")
	_ = viper.BindEnv("SESSION_SWEEP_SCHEDULE")
	_ = viper.BindEnv("STALE_ORDER_SWEEP_SCHEDULE")
	_ = viper.BindEnv("STALE_ORDER_AFTER_MINUTES")

	err = viper.Unmarshal(&config)
	return
}
