// Package config builds application configuration from environment
// variables so main stays lean.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr string

	// PostgresURL is the DSN of the relational store. Empty means the
	// in-memory stores are wired instead (tests, demos).
	PostgresURL string

	// RedisURL backs the rate limiter and token revocation list when set;
	// empty falls back to in-process stores.
	RedisURL string

	JWTSigningKey string
	TokenTTL      time.Duration

	// SendGridAPIKey empty degrades notification email to log-only mode.
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string

	// Object storage for consent and absence evidence files.
	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	ConsentBucket   string
	AbsenceBucket   string
	SignedURLExpiry time.Duration

	RateLimitDisabled bool
}

// FromEnv reads configuration with development defaults.
func FromEnv() Config {
	return Config{
		Addr:        envOr("FRISK_ADDR", ":8080"),
		PostgresURL: os.Getenv("FRISK_POSTGRES_URL"),
		RedisURL:    os.Getenv("FRISK_REDIS_URL"),

		JWTSigningKey: envOr("FRISK_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenTTL:      envDurationOr("FRISK_TOKEN_TTL", 12*time.Hour),

		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		EmailFrom:      envOr("FRISK_EMAIL_FROM", "noreply@frisk.app"),
		EmailFromName:  envOr("FRISK_EMAIL_FROM_NAME", "FRISK"),

		S3Endpoint:      os.Getenv("FRISK_S3_ENDPOINT"),
		S3Region:        envOr("FRISK_S3_REGION", "ap-northeast-2"),
		S3AccessKey:     os.Getenv("FRISK_S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("FRISK_S3_SECRET_KEY"),
		ConsentBucket:   envOr("FRISK_CONSENT_BUCKET", "consent-files"),
		AbsenceBucket:   envOr("FRISK_ABSENCE_BUCKET", "absence-files"),
		SignedURLExpiry: envDurationOr("FRISK_SIGNED_URL_EXPIRY", time.Hour),

		RateLimitDisabled: envBool("FRISK_RATELIMIT_DISABLED"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
