package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Server
	Port        string
	CORSOrigins []string
	Env         string

	// Exchange rates
	Rates RatesConfig

	// Group retention
	GroupRetention  time.Duration
	CleanupInterval time.Duration

	// Per-client limits on rate-backed endpoints
	RateLimitPerMinute int
	RateLimitBurst     int
}

// RatesConfig holds exchange rate provider configuration
type RatesConfig struct {
	APIURL      string
	CacheTTL    time.Duration
	HTTPTimeout time.Duration
	WarmupBase  string // Base currency fetched at startup; empty disables warm-up
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Port:        getEnv("PORT", "5000"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		Env:         getEnv("ENV", "development"),
		Rates: RatesConfig{
			APIURL:     getEnv("RATES_API_URL", "https://api.exchangerate-api.com/v4/latest"),
			WarmupBase: strings.ToUpper(getEnv("RATES_WARMUP_BASE", "USD")),
		},
	}

	var err error
	if cfg.Rates.CacheTTL, err = getDuration("RATES_CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.Rates.HTTPTimeout, err = getDuration("RATES_HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.GroupRetention, err = getDuration("GROUP_RETENTION", 90*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = getDuration("CLEANUP_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether the app runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Rates.APIURL == "" {
		return fmt.Errorf("RATES_API_URL is required")
	}
	durations := map[string]time.Duration{
		"RATES_CACHE_TTL":    c.Rates.CacheTTL,
		"RATES_HTTP_TIMEOUT": c.Rates.HTTPTimeout,
		"GROUP_RETENTION":    c.GroupRetention,
		"CLEANUP_INTERVAL":   c.CleanupInterval,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return n, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
