package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/shopfront/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Commerce provider
	CommerceAPIURL         string
	CommercePublishableKey string

	// Hosted auth provider
	HostedAuthURL       string
	HostedAuthAPIKey    string
	HostedAuthJWTSecret string

	// Auth
	DefaultProvider model.Provider
	SessionMaxAge   int

	// Upstream
	UpstreamTimeout time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitLogin   int

	// Profile sync worker
	SyncBatchInterval time.Duration
	SyncMaxAttempts   int

	// Cleanup
	SyncRetentionDays int

	// Image proxy
	ImageMaxSize int64

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.CommerceAPIURL = os.Getenv("COMMERCE_API_URL")
	if cfg.CommerceAPIURL == "" {
		missing = append(missing, "COMMERCE_API_URL")
	}

	cfg.HostedAuthURL = os.Getenv("HOSTED_AUTH_URL")
	if cfg.HostedAuthURL == "" {
		missing = append(missing, "HOSTED_AUTH_URL")
	}

	cfg.HostedAuthAPIKey = os.Getenv("HOSTED_AUTH_API_KEY")
	if cfg.HostedAuthAPIKey == "" {
		missing = append(missing, "HOSTED_AUTH_API_KEY")
	}

	cfg.HostedAuthJWTSecret = os.Getenv("HOSTED_AUTH_JWT_SECRET")
	if cfg.HostedAuthJWTSecret == "" {
		missing = append(missing, "HOSTED_AUTH_JWT_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.CommercePublishableKey = getEnvString("COMMERCE_PUBLISHABLE_KEY", "")

	provider := model.Provider(getEnvString("DEFAULT_AUTH_PROVIDER", string(model.ProviderCommerce)))
	if !provider.IsValid() {
		return nil, fmt.Errorf("invalid DEFAULT_AUTH_PROVIDER: %q (allowed: commerce, hosted)", provider)
	}
	cfg.DefaultProvider = provider

	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.SyncBatchInterval = getEnvDuration("SYNC_BATCH_INTERVAL", 1*time.Minute)
	cfg.SyncMaxAttempts = getEnvInt("SYNC_MAX_ATTEMPTS", 10)
	cfg.SyncRetentionDays = getEnvInt("SYNC_RETENTION_DAYS", 14)
	cfg.ImageMaxSize = getEnvInt64("IMAGE_MAX_SIZE", 5242880)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
