// Package config loads configuration from the environment and an optional
// .env file, and resolves secrets through a secret.Resolver.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/jun/teledrive/internal/secret"
)

const devSecret = "default-dev-secret"

// Config holds all server configuration.
type Config struct {
	DevMode     bool
	Port        string
	FrontendURL string

	// Logging
	LogLevel  string
	LogFormat string

	// Telegram application
	TelegramAPIID int

	// AWS
	KMSKeyID       string
	FileStoreTable string

	// Files
	UploadTmpDir     string
	ListPageSize     int
	StorageScanLimit int
	SessionTTL       time.Duration

	// Demo accounts; DemoPassword enables a second factor on dev logins.
	// DemoPersist keeps demo messages in DynamoDB instead of process memory.
	DemoLogin    bool
	DemoPassword string
	DemoPersist  bool

	// Secret parameter names (SSM paths, or env names derived from them)
	JWTSecretParam        string
	TelegramAPIHashParam  string
	SessionKeyParam       string
	APIGatewaySecretParam string

	// Resolved secrets
	JWTSecret        string
	TelegramAPIHash  string
	SessionKey       string
	APIGatewaySecret string
}

// Load reads configuration from environment variables with defaults. A
// missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DevMode:               envBool("DEV_MODE", false),
		Port:                  envOr("APP_PORT", "8080"),
		FrontendURL:           envOr("FRONTEND_URL", "http://localhost:3000"),
		LogLevel:              envOr("LOG_LEVEL", "info"),
		LogFormat:             envOr("LOG_FORMAT", "json"),
		TelegramAPIID:         envInt("TELEGRAM_API_ID", 0),
		KMSKeyID:              envOr("KMS_KEY_ID", "alias/teledrive-session-key"),
		FileStoreTable:        envOr("FILE_STORE_TABLE", "FileStore"),
		UploadTmpDir:          envOr("UPLOAD_TMP_DIR", os.TempDir()),
		ListPageSize:          envInt("LIST_PAGE_SIZE", 100),
		StorageScanLimit:      envInt("STORAGE_SCAN_LIMIT", 1000),
		SessionTTL:            envDuration("SESSION_TTL", 30*24*time.Hour),
		DemoLogin:             envBool("DEMO_LOGIN", true),
		DemoPassword:          envOr("DEMO_PASSWORD", ""),
		DemoPersist:           envBool("DEMO_PERSIST", true),
		JWTSecretParam:        envOr("JWT_SECRET_PARAM", "/teledrive/jwt-secret"),
		TelegramAPIHashParam:  envOr("TELEGRAM_API_HASH_PARAM", "/teledrive/telegram-api-hash"),
		SessionKeyParam:       envOr("SESSION_KEY_PARAM", "/teledrive/session-key"),
		APIGatewaySecretParam: envOr("API_GATEWAY_SECRET_PARAM", "/teledrive/api-gateway-secret"),
	}

	if cfg.ListPageSize <= 0 || cfg.ListPageSize > 100 {
		return nil, fmt.Errorf("LIST_PAGE_SIZE must be between 1 and 100, got %d", cfg.ListPageSize)
	}
	if cfg.StorageScanLimit <= 0 {
		return nil, fmt.Errorf("STORAGE_SCAN_LIMIT must be positive, got %d", cfg.StorageScanLimit)
	}
	if !cfg.DevMode && cfg.TelegramAPIID == 0 {
		return nil, fmt.Errorf("TELEGRAM_API_ID is required")
	}
	return cfg, nil
}

// ResolveSecrets fills the secret fields from r. Outside dev mode the JWT
// secret and the Telegram API hash are required; in dev mode missing
// secrets fall back to a fixed development value.
func (c *Config) ResolveSecrets(ctx context.Context, r secret.Resolver) error {
	var err error
	if c.JWTSecret, err = r.GetSecret(ctx, c.JWTSecretParam); err != nil {
		if !c.DevMode {
			return fmt.Errorf("resolve JWT secret: %w", err)
		}
		c.JWTSecret = devSecret
	}
	if c.TelegramAPIHash, err = r.GetSecret(ctx, c.TelegramAPIHashParam); err != nil && !c.DevMode {
		return fmt.Errorf("resolve Telegram API hash: %w", err)
	}
	// The session key only backs the local encryptor; KMS is used otherwise.
	c.SessionKey = secret.Lookup(ctx, r, c.SessionKeyParam, c.JWTSecret)
	c.APIGatewaySecret = secret.Lookup(ctx, r, c.APIGatewaySecretParam, "")
	return nil
}

// TelegramEnabled reports whether real Telegram logins are configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramAPIID != 0 && c.TelegramAPIHash != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
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
