// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the binaries need from the environment.
type Config struct {
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL string

	// Delivery provider
	EmailAPIURL string
	EmailAPIKey string

	// Pre-shared secrets
	CronSecret    string
	WebhookSecret string

	// Dispatch tuning
	CronInterval       time.Duration
	CampaignBatchLimit int
	SendBatchSize      int
	SendBatchDelay     time.Duration
	CampaignDelay      time.Duration

	// Optional delivery-event fanout
	AMQPURL string

	DefaultFromEmail string
	DefaultFromName  string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// Missing .env is fine; OS environment wins either way.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		EmailAPIURL:        getEnv("EMAIL_API_URL", "https://api.resend.com"),
		EmailAPIKey:        os.Getenv("EMAIL_API_KEY"),
		CronSecret:         os.Getenv("CRON_SECRET"),
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		CronInterval:       getEnvDuration("CRON_INTERVAL", time.Minute),
		CampaignBatchLimit: getEnvInt("CAMPAIGN_BATCH_LIMIT", 50),
		SendBatchSize:      getEnvInt("SEND_BATCH_SIZE", 10),
		SendBatchDelay:     time.Duration(getEnvInt("SEND_BATCH_DELAY_MS", 1000)) * time.Millisecond,
		CampaignDelay:      time.Duration(getEnvInt("CAMPAIGN_DELAY_MS", 500)) * time.Millisecond,
		AMQPURL:            os.Getenv("AMQP_URL"),
		DefaultFromEmail:   getEnv("MAIL_FROM_EMAIL", "no-reply@localhost"),
		DefaultFromName:    getEnv("MAIL_FROM_NAME", "Campaigns"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = dsnFromParts()
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL or DB_* variables are required")
	}

	return cfg, nil
}

// dsnFromParts assembles a postgres URL from the discrete DB_* variables.
func dsnFromParts() string {
	user := os.Getenv("DB_USER")
	name := os.Getenv("DB_NAME")
	if user == "" || name == "" {
		return ""
	}
	pass := os.Getenv("DB_PASSWORD")
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, port, name)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
