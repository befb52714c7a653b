package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Port                             string        `mapstructure:"PORT"`
	GinMode                          string        `mapstructure:"GIN_MODE"`
	FirebaseProjectID                string        `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string        `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string        `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	ClientURL                        string        `mapstructure:"CLIENT_URL"`
	CacheBackend                     string        `mapstructure:"CACHE_BACKEND"` // "redis" or "memory"
	RedisAddress                     string        `mapstructure:"REDIS_ADDRESS"`
	RedisPassword                    string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB                          int           `mapstructure:"REDIS_DB"`
	ProfileCacheTTL                  time.Duration `mapstructure:"PROFILE_CACHE_TTL"`
	DefaultDailyQuota                int           `mapstructure:"DEFAULT_DAILY_QUOTA"`
	QuotaTimezone                    string        `mapstructure:"QUOTA_TIMEZONE"`
	ProvidersFile                    string        `mapstructure:"PROVIDERS_FILE"`
	PersistBackend                   string        `mapstructure:"PERSIST_BACKEND"` // "firestore", "amqp" or "both"
	RabbitMQURL                      string        `mapstructure:"RABBITMQ_URL"`
	RabbitMQQueue                    string        `mapstructure:"RABBITMQ_QUEUE"`
	RecorderWorkers                  int           `mapstructure:"RECORDER_WORKERS"`
	RecorderBuffer                   int           `mapstructure:"RECORDER_BUFFER"`
	ShutdownTimeout                  time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var keys = []string{
	"PORT", "GIN_MODE", "FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS",
	"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64", "CLIENT_URL", "CACHE_BACKEND",
	"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB", "PROFILE_CACHE_TTL",
	"DEFAULT_DAILY_QUOTA", "QUOTA_TIMEZONE", "PROVIDERS_FILE", "PERSIST_BACKEND",
	"RABBITMQ_URL", "RABBITMQ_QUEUE", "RECORDER_WORKERS", "RECORDER_BUFFER",
	"SHUTDOWN_TIMEOUT",
}

// LoadConfig loads configuration from environment variables using Viper.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("CACHE_BACKEND", "redis")
	v.SetDefault("REDIS_ADDRESS", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PROFILE_CACHE_TTL", "5m")
	v.SetDefault("DEFAULT_DAILY_QUOTA", 50)
	v.SetDefault("QUOTA_TIMEZONE", "UTC")
	v.SetDefault("PROVIDERS_FILE", "configs/providers.yaml")
	v.SetDefault("PERSIST_BACKEND", "firestore")
	v.SetDefault("RABBITMQ_QUEUE", "provider-responses")
	v.SetDefault("RECORDER_WORKERS", 4)
	v.SetDefault("RECORDER_BUFFER", 256)
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and enumerated values.
func (c *Config) Validate() error {
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}
	switch c.CacheBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("CACHE_BACKEND must be redis or memory, got %q", c.CacheBackend)
	}
	switch c.PersistBackend {
	case "firestore":
	case "amqp", "both":
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required when PERSIST_BACKEND=%s", c.PersistBackend)
		}
	default:
		return fmt.Errorf("PERSIST_BACKEND must be firestore, amqp or both, got %q", c.PersistBackend)
	}
	if c.ProfileCacheTTL <= 0 {
		return errors.New("PROFILE_CACHE_TTL must be positive")
	}
	if c.DefaultDailyQuota < 1 {
		return errors.New("DEFAULT_DAILY_QUOTA must be at least 1")
	}
	if _, err := time.LoadLocation(c.QuotaTimezone); err != nil {
		return fmt.Errorf("QUOTA_TIMEZONE: %w", err)
	}
	if c.RecorderWorkers < 1 {
		return errors.New("RECORDER_WORKERS must be at least 1")
	}
	return nil
}

// QuotaLocation returns the location used to compute calendar days for usage counters.
func (c *Config) QuotaLocation() *time.Location {
	loc, err := time.LoadLocation(c.QuotaTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
