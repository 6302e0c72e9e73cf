package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Fetch     FetchConfig
	Browser   BrowserConfig
	Market    MarketConfig
	Cache     CacheConfig
	Store     StoreConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Refresh   RefreshConfig
	Webhook   WebhookConfig
	Batch     BatchConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration // default: 30s
}

// FetchConfig controls how search pages are retrieved.
type FetchConfig struct {
	// Engine selects the fetch engine: "http" or "browser".
	Engine string // default: "http"

	// Timeout is the deadline for a single search page fetch.
	Timeout time.Duration // default: 10s

	// Proxy is an optional HTTP(S) proxy URL used by both engines.
	Proxy string
}

// BrowserConfig controls the Rod browser instance used by the browser engine.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 4

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// MarketConfig selects the marketplace profile.
type MarketConfig struct {
	// ProfilePath is an optional YAML file overriding the Yandex Market defaults.
	ProfilePath string
}

// CacheConfig controls record freshness.
type CacheConfig struct {
	// StaleAfter is the age after which a stored record is re-fetched.
	StaleAfter time.Duration // default: 720h (30 days)
}

// StoreConfig controls persistence.
type StoreConfig struct {
	// Driver is "sqlite", "postgres" or "memory".
	Driver string // default: "sqlite"

	// DSN is the sqlite file path or the postgres connection string.
	DSN string // default: "phoneprice.db"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// RefreshConfig controls the background re-fetch of stale records.
type RefreshConfig struct {
	// Schedule is a cron expression; empty disables the job.
	Schedule string

	// BatchSize caps how many stale models one run re-fetches.
	BatchSize int // default: 50
}

// WebhookConfig controls batch completion callbacks.
type WebhookConfig struct {
	// Secret signs payloads with HMAC-SHA256 when set.
	Secret string

	MaxRetries int           // default: 3
	Timeout    time.Duration // default: 10s
}

// BatchConfig limits the batch endpoint.
type BatchConfig struct {
	MaxModels int // default: 100
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config: failed to read .env file", "error", err)
	}

	return &Config{
		Server: ServerConfig{
			Host:            envOr("PHONEPRICE_HOST", "0.0.0.0"),
			Port:            envIntOr("PHONEPRICE_PORT", 8080),
			Mode:            envOr("PHONEPRICE_MODE", "release"),
			ShutdownTimeout: envDurationOr("PHONEPRICE_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Fetch: FetchConfig{
			Engine:  envOr("PHONEPRICE_ENGINE", "http"),
			Timeout: envDurationOr("PHONEPRICE_FETCH_TIMEOUT", 10*time.Second),
			Proxy:   os.Getenv("PHONEPRICE_PROXY"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("PHONEPRICE_HEADLESS", true),
			MaxPages:   envIntOr("PHONEPRICE_MAX_PAGES", 4),
			NoSandbox:  envBoolOr("PHONEPRICE_NO_SANDBOX", false),
			BrowserBin: os.Getenv("PHONEPRICE_BROWSER_BIN"),
			BlockedResourceTypes: envSliceOr("PHONEPRICE_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Market: MarketConfig{
			ProfilePath: os.Getenv("PHONEPRICE_PROFILE"),
		},
		Cache: CacheConfig{
			StaleAfter: envDurationOr("PHONEPRICE_STALE_AFTER", 720*time.Hour),
		},
		Store: StoreConfig{
			Driver: envOr("PHONEPRICE_STORE", "sqlite"),
			DSN:    envOr("PHONEPRICE_DSN", "phoneprice.db"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PHONEPRICE_AUTH_ENABLED", false),
			APIKeys: envSliceOr("PHONEPRICE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PHONEPRICE_RATE_RPS", 5.0),
			Burst:             envIntOr("PHONEPRICE_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("PHONEPRICE_LOG_LEVEL", "info"),
			Format: envOr("PHONEPRICE_LOG_FORMAT", "json"),
		},
		Refresh: RefreshConfig{
			Schedule:  os.Getenv("PHONEPRICE_REFRESH_CRON"),
			BatchSize: envIntOr("PHONEPRICE_REFRESH_BATCH", 50),
		},
		Webhook: WebhookConfig{
			Secret:     os.Getenv("PHONEPRICE_WEBHOOK_SECRET"),
			MaxRetries: envIntOr("PHONEPRICE_WEBHOOK_RETRIES", 3),
			Timeout:    envDurationOr("PHONEPRICE_WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Batch: BatchConfig{
			MaxModels: envIntOr("PHONEPRICE_MAX_MODELS", 100),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
