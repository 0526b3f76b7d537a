package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Auth      AuthConfig
	Services  ServicesConfig
	Reconcile ReconcileConfig
	Server    ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Username string
	Password string
	Name     string
}

// AuthConfig holds operator authentication configuration
type AuthConfig struct {
	JWTSecret string
}

// ServicesConfig holds external service API keys and configuration
type ServicesConfig struct {
	StripeSecretKey     string
	StripeWebhookSecret string
	ResendAPIKey        string
	DefaultEmailSender  string
	AlertEmailRecipient string
	AlertPhoneNumber    string
	AppURL              string
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioFromNumber    string
}

// ReconcileConfig holds payment-event reconciliation policy knobs
type ReconcileConfig struct {
	// AllowEmailMatch enables the last-resort lookup of subscription records
	// by processor-reported email. Every use is logged for audit.
	AllowEmailMatch bool
	// TokenTTLHours is the validity window of payment-linking tokens.
	TokenTTLHours int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	// Database configuration
	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Username, err = requireEnv("DB_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}

	// Auth configuration
	if cfg.Auth.JWTSecret, err = requireEnv("JWT_SECRET"); err != nil {
		return nil, err
	}

	// Services configuration
	if cfg.Services.StripeSecretKey, err = requireEnv("STRIPE_SECRET_KEY"); err != nil {
		return nil, err
	}
	if cfg.Services.StripeWebhookSecret, err = requireEnv("STRIPE_WEBHOOK_SECRET"); err != nil {
		return nil, err
	}
	if cfg.Services.ResendAPIKey, err = requireEnv("RESEND_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.Services.DefaultEmailSender, err = requireEnv("DEFAULT_EMAIL_SENDER_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.Services.AppURL, err = requireEnv("APP_URL"); err != nil {
		return nil, err
	}

	// Twilio is optional; SMS alerts are skipped when unset
	cfg.Services.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.Services.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.Services.TwilioFromNumber = os.Getenv("TWILIO_FROM_NUMBER")

	// Operational alert targets
	cfg.Services.AlertEmailRecipient = getEnvWithDefault("ALERT_EMAIL_RECIPIENT", cfg.Services.DefaultEmailSender)
	cfg.Services.AlertPhoneNumber = os.Getenv("ALERT_PHONE_NUMBER")

	// Reconciliation policy
	emailMatch := getEnvWithDefault("RECONCILE_EMAIL_MATCH", "true")
	cfg.Reconcile.AllowEmailMatch, err = strconv.ParseBool(emailMatch)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RECONCILE_EMAIL_MATCH: %w", err)
	}

	tokenTTL := getEnvWithDefault("TOKEN_TTL_HOURS", "2")
	cfg.Reconcile.TokenTTLHours, err = strconv.Atoi(tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOKEN_TTL_HOURS: %w", err)
	}

	// Server configuration
	serverPort, err := requireEnv("SERVER_PORT")
	if err != nil {
		return nil, err
	}
	cfg.Server.Port, err = strconv.Atoi(serverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		c.Username, c.Password, c.Host, c.Name)
}

// SMSEnabled reports whether the Twilio credentials are configured
func (s *ServicesConfig) SMSEnabled() bool {
	return s.TwilioAccountSID != "" && s.TwilioAuthToken != "" && s.TwilioFromNumber != ""
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
