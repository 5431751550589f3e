// Package config loads the process environment and the providers file that
// describes every credential provider.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/ordermesh/tokengate/internal/errors"
	"github.com/ordermesh/tokengate/internal/rotation"
)

// Config is the process-level configuration drawn from the environment.
// Provider definitions live in the separate providers file.
type Config struct {
	HTTPAddr string

	AdminUser       string
	AdminPassword   string
	TwoFactorSecret string

	CommerceBaseURL  string
	CommerceProvider string
	ProvidersFile    string

	SchedulerTick    time.Duration
	RotationInterval time.Duration
	AccessTokenTTL   time.Duration

	Concurrency int
	RateLimit   float64
	RateBurst   int
}

// FromEnv reads the configuration from environment variables, applying
// defaults for everything optional. Call Validate before using the result.
func FromEnv() *Config {
	return &Config{
		HTTPAddr:         ":" + getEnv("PORT", "3000"),
		AdminUser:        getEnv("ADMIN_USER", ""),
		AdminPassword:    getEnv("ADMIN_PASSWORD", ""),
		TwoFactorSecret:  getEnv("TWO_FACTOR_SECRET", ""),
		CommerceBaseURL:  getEnv("COMMERCE_BASE_URL", ""),
		CommerceProvider: getEnv("COMMERCE_PROVIDER", ""),
		ProvidersFile:    getEnv("PROVIDERS_FILE", "providers.yaml"),
		SchedulerTick:    getEnvDuration("SCHEDULER_TICK", rotation.DefaultTick),
		RotationInterval: getEnvDuration("ROTATION_INTERVAL", rotation.DefaultRotationInterval),
		AccessTokenTTL:   getEnvDuration("ACCESS_TOKEN_TTL", 5*time.Minute),
		Concurrency:      getEnvInt("CONCURRENCY", 5),
		RateLimit:        getEnvFloat("COMMERCE_RATE_LIMIT", 20),
		RateBurst:        getEnvInt("COMMERCE_RATE_BURST", 40),
	}
}

// Validate checks the fields the server cannot run without.
func (c *Config) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"ADMIN_USER", c.AdminUser},
		{"ADMIN_PASSWORD", c.AdminPassword},
		{"TWO_FACTOR_SECRET", c.TwoFactorSecret},
		{"COMMERCE_BASE_URL", c.CommerceBaseURL},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.ConfigError{
				Field:      r.field,
				Message:    "required environment variable is not set",
				Suggestion: "set " + r.field + " in the environment or the .env file",
			}
		}
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
