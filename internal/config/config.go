// Package config defines the static process configuration for the FreshTrack
// notification engine. Configuration is loaded once at startup and is
// immutable thereafter; runtime settings that administrators change while the
// process runs (send time, timezone, channel toggles, templates) live in the
// settings table and are read through db.SettingsRepository instead.
//
// Loading sequence: .env overlay via godotenv (non-fatal if absent), then
// envconfig struct population, then go-playground/validator validation.
// Any missing required value or invalid format fails startup (fail fast).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the top-level configuration struct for the notification engine.
// Sub-components receive only the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Database DatabaseConfig
	Admin    AdminConfig
	Telegram TelegramConfig
	Mail     MailConfig
	Worker   WorkerConfig
	Notify   NotifyConfig
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL" validate:"required"`
	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// AdminConfig holds the admin trigger HTTP surface configuration.
type AdminConfig struct {
	Port string `envconfig:"ADMIN_PORT" default:"8080"`
}

// TelegramConfig holds the Telegram Bot API gateway configuration. An empty
// token disables the chat channel (ConfigurationError at dispatch, skipped
// units of work in the aggregator).
type TelegramConfig struct {
	BotToken      string `envconfig:"TELEGRAM_BOT_TOKEN"`
	APIBaseURL    string `envconfig:"TELEGRAM_API_BASE_URL" default:"https://api.telegram.org"`
	WebhookSecret string `envconfig:"TELEGRAM_WEBHOOK_SECRET"`
}

// Enabled reports whether the Telegram gateway is configured.
func (c TelegramConfig) Enabled() bool { return c.BotToken != "" }

// MailConfig holds the transactional mail gateway configuration. An empty
// API key disables the email channel.
type MailConfig struct {
	APIKey     string `envconfig:"MAIL_API_KEY"`
	APIBaseURL string `envconfig:"MAIL_API_BASE_URL" default:"https://api.mailgun.net"`
	Domain     string `envconfig:"MAIL_DOMAIN"`
	FromAddr   string `envconfig:"MAIL_FROM_ADDR" default:"alerts@freshtrack.local"`
	FromName   string `envconfig:"MAIL_FROM_NAME" default:"FreshTrack"`
}

// Enabled reports whether the mail gateway is configured.
func (c MailConfig) Enabled() bool { return c.APIKey != "" && c.Domain != "" }

// WorkerConfig tunes the delivery sweep.
type WorkerConfig struct {
	SweepInterval   time.Duration `envconfig:"WORKER_SWEEP_INTERVAL" default:"5m"`
	SweepBatchSize  int           `envconfig:"WORKER_SWEEP_BATCH" default:"100" validate:"gt=0"`
	DispatchTimeout time.Duration `envconfig:"WORKER_DISPATCH_TIMEOUT" default:"30s"`
}

// NotifyConfig tunes scheduler resolution. PrimaryHotelID, when set, is the
// hotel whose settings override the system-level send time and timezone for
// the single daily trigger (single-server deployments serve one property
// group with one schedule).
type NotifyConfig struct {
	PrimaryHotelID string `envconfig:"NOTIFY_PRIMARY_HOTEL_ID"`
}

// Load reads the .env overlay, populates the Config from the environment,
// and validates it. Returns an error describing the first failure.
func Load() (*Config, error) {
	// Non-fatal when absent: production injects real environment variables.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: process environment: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return &cfg, nil
}
