// internal/config/config.go
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/javajoker/couponx-backend/internal/models"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Cache       CacheConfig
	AWS         AWSConfig
	Payment     PaymentConfig
	Vault       VaultConfig
	Marketplace MarketplaceConfig
	I18n        I18nConfig
	CORS        CORSConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	// Per-IP flood throttle applied before any handler runs.
	IPRequestsPerSecond float64
	IPBurst             int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey string
	Issuer    string
}

type CacheConfig struct {
	Backend string // memory | redis | none
	LRUSize int
	Redis   RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	CloudFrontURL   string
	MaxUploadBytes  int64
}

type PaymentConfig struct {
	StripeSecretKey string
	Currency        string
}

type VaultConfig struct {
	EncryptionKey string
}

type MarketplaceConfig struct {
	RateLimits         map[models.ActionType]models.RateLimitRule
	RateLimitRetention time.Duration
	DisputeWindow      time.Duration
	PendingTimeout     time.Duration
	EscrowHoldPeriod   time.Duration
	SweepInterval      time.Duration
}

type I18nConfig struct {
	DefaultLocale string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// DefaultRateLimits is the per-action quota table used when no override
// is configured.
func DefaultRateLimits() map[models.ActionType]models.RateLimitRule {
	return map[models.ActionType]models.RateLimitRule{
		models.ActionCreateListing:     {MaxAttempts: 10, Window: 60 * time.Minute},
		models.ActionCreateTransaction: {MaxAttempts: 50, Window: 60 * time.Minute},
		models.ActionCreateReview:      {MaxAttempts: 20, Window: 60 * time.Minute},
		models.ActionSendMessage:       {MaxAttempts: 100, Window: 60 * time.Minute},
	}
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	rateLimits, err := loadRateLimits()
	if err != nil {
		return nil, err
	}

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:                getEnv("SERVER_PORT", "8080"),
			Host:                getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:         getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:        getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:         getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			IPRequestsPerSecond: getEnvAsFloat("IP_RATE_LIMIT_RPS", 20),
			IPBurst:             getEnvAsInt("IP_RATE_LIMIT_BURST", 40),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "couponx"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", defaultJWTSecret),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		Cache: CacheConfig{
			Backend: getEnv("CACHE_BACKEND", "memory"),
			LRUSize: getEnvAsInt("CACHE_LRU_SIZE", 10000),
			Redis: RedisConfig{
				Host:     getEnv("REDIS_HOST", "localhost"),
				Port:     getEnv("REDIS_PORT", "6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("REDIS_DB", 0),
			},
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", ""),
			CloudFrontURL:   getEnv("AWS_CLOUDFRONT_URL", ""),
			MaxUploadBytes:  int64(getEnvAsInt("PROOF_IMAGE_MAX_BYTES", 5<<20)),
		},
		Payment: PaymentConfig{
			StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
			Currency:        strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),
		},
		Vault: VaultConfig{
			EncryptionKey: getEnv("VAULT_ENCRYPTION_KEY", ""),
		},
		Marketplace: MarketplaceConfig{
			RateLimits:         rateLimits,
			RateLimitRetention: getEnvAsDuration("RATE_LIMIT_RETENTION", 24*time.Hour),
			DisputeWindow:      getEnvAsDuration("DISPUTE_WINDOW", 7*24*time.Hour),
			PendingTimeout:     getEnvAsDuration("PENDING_TIMEOUT", 30*time.Minute),
			EscrowHoldPeriod:   getEnvAsDuration("ESCROW_HOLD_PERIOD", 72*time.Hour),
			SweepInterval:      getEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		},
		CORS: CORSConfig{
			AllowedOrigins: strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if _, err := c.Vault.Key(); err != nil {
		return err
	}

	if c.JWT.SecretKey == defaultJWTSecret && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	for action, rule := range c.Marketplace.RateLimits {
		if !action.Valid() {
			return fmt.Errorf("unknown rate limit action %q", action)
		}
		if rule.MaxAttempts <= 0 || rule.Window <= 0 {
			return fmt.Errorf("rate limit for %s must have positive attempts and window", action)
		}
	}

	for name, d := range map[string]time.Duration{
		"RATE_LIMIT_RETENTION": c.Marketplace.RateLimitRetention,
		"DISPUTE_WINDOW":       c.Marketplace.DisputeWindow,
		"PENDING_TIMEOUT":      c.Marketplace.PendingTimeout,
		"ESCROW_HOLD_PERIOD":   c.Marketplace.EscrowHoldPeriod,
		"SWEEP_INTERVAL":       c.Marketplace.SweepInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Key decodes the configured vault key. A missing or short key is a
// startup error; no key is ever generated on the fly.
func (v VaultConfig) Key() ([]byte, error) {
	if v.EncryptionKey == "" {
		return nil, fmt.Errorf("VAULT_ENCRYPTION_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(v.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("VAULT_ENCRYPTION_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("VAULT_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// loadRateLimits applies RATE_LIMIT_<ACTION>=max/minutes overrides on top
// of the defaults.
func loadRateLimits() (map[models.ActionType]models.RateLimitRule, error) {
	limits := DefaultRateLimits()
	for action := range limits {
		key := "RATE_LIMIT_" + strings.ToUpper(string(action))
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		rule, err := parseRateLimitRule(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		limits[action] = rule
	}
	return limits, nil
}

func parseRateLimitRule(value string) (models.RateLimitRule, error) {
	parts := strings.SplitN(value, "/", 2)
	if len(parts) != 2 {
		return models.RateLimitRule{}, fmt.Errorf("expected max/minutes, got %q", value)
	}
	max, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return models.RateLimitRule{}, fmt.Errorf("invalid max attempts: %w", err)
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return models.RateLimitRule{}, fmt.Errorf("invalid window minutes: %w", err)
	}
	return models.RateLimitRule{MaxAttempts: max, Window: time.Duration(minutes) * time.Minute}, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
