package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL is not set")

const devJWTSecret = "dev-secret-change-in-production"

type Config struct {
	Env                 string
	DatabaseURL         string
	DBLogLevel          string
	JWTSecret           string
	Port                string
	TokenTTL            time.Duration
	UploadDir           string
	MaxUploadSize       int64
	FirstUserSupervisor bool
	CORSOrigins         string
	FCMServiceAccount   string
	AWSRegion           string
	SESFromEmail        string
	SESFromName         string
}

// Load reads configuration from the environment. A missing database URL is
// an error; so is a missing JWT secret outside development.
func Load() (*Config, error) {
	cfg := &Config{
		Env:                 getEnv("APP_ENV", "production"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DBLogLevel:          getEnv("DB_LOG_LEVEL", "warn"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		Port:                getEnv("PORT", "3000"),
		TokenTTL:            getDuration("TOKEN_TTL", 30*24*time.Hour),
		UploadDir:           getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadSize:       getInt64("MAX_UPLOAD_MB", 5) * 1024 * 1024,
		FirstUserSupervisor: getBool("FIRST_USER_SUPERVISOR", false),
		CORSOrigins:         getEnv("CORS_ORIGINS", "*"),
		FCMServiceAccount:   getEnv("FCM_SERVICE_ACCOUNT", ""),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),
		SESFromName:         getEnv("SES_FROM_NAME", "Chore Tracker"),
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return errors.New("JWT_SECRET is not set")
		}
		c.JWTSecret = devJWTSecret
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getInt64(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
