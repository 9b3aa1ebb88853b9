// Package config loads process settings from the environment (and .env).
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"automedic-booking/internal/slots"
)

type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`
	Port        string `envconfig:"PORT" default:"50051"`
	WebPort     string `envconfig:"WEB_PORT" default:"8080"`
	Env         string `envconfig:"ENV" default:"development"`

	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET" required:"true"`
	Currency            string `envconfig:"CURRENCY" default:"usd"`

	NATSURL      string `envconfig:"NATS_URL"`
	RedisURL     string `envconfig:"REDIS_URL"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	BusinessTZ   string        `envconfig:"BUSINESS_TZ" default:"UTC"`
	OpenHour     int           `envconfig:"OPEN_HOUR" default:"10"`
	CloseHour    int           `envconfig:"CLOSE_HOUR" default:"22"`
	SlotMinutes  int           `envconfig:"SLOT_MINUTES" default:"30"`
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"3s"`
	DedupTTL     time.Duration `envconfig:"DEDUP_TTL" default:"72h"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"10"`
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	// envconfig accepts required variables that are set but empty
	if c.JWTSecret == "" || c.StripeWebhookSecret == "" || c.DatabaseURL == "" {
		return errors.New("DATABASE_URL, JWT_SECRET and STRIPE_WEBHOOK_SECRET must be set")
	}
	if err := c.Day().Validate(); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.BusinessTZ); err != nil {
		return fmt.Errorf("BUSINESS_TZ: %w", err)
	}
	if c.StoreTimeout <= 0 {
		return errors.New("STORE_TIMEOUT must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("rate limit must be positive")
	}
	return nil
}

func (c *Config) Day() slots.Day {
	return slots.Day{
		OpenHour:  c.OpenHour,
		CloseHour: c.CloseHour,
		Step:      time.Duration(c.SlotMinutes) * time.Minute,
	}
}

// Location is the business time zone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Production() bool { return c.Env == "production" }
