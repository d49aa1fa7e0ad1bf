package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Database configuration
	DatabaseURL string

	// Redis configuration
	RedisURL      string
	RedisPassword string

	// JWT configuration
	JWTSecret string

	// Wallet configuration
	Currencies      []string
	ExchangeFeeRate decimal.Decimal

	// HTTP configuration
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// DefaultCurrencies is the catalog used when CURRENCIES is not set.
var DefaultCurrencies = []string{"USD", "EUR", "GBP", "BTC", "ETH", "USDT"}

// DefaultOrigins is the CORS allowlist used when ALLOWED_ORIGINS is not
// set; it covers local frontend dev servers only.
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:5174"}

// Load loads configuration from the environment, with an optional .env overlay
func Load() (*Config, error) {
	// Missing .env is fine; env vars win either way
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
	}

	cfg.Currencies = splitCSV(getEnv("CURRENCIES", strings.Join(DefaultCurrencies, ",")))
	cfg.AllowedOrigins = splitList(getEnv("ALLOWED_ORIGINS", strings.Join(DefaultOrigins, ",")))

	feeRate, err := decimal.NewFromString(getEnv("EXCHANGE_FEE_RATE", "0.01"))
	if err != nil {
		return nil, fmt.Errorf("invalid EXCHANGE_FEE_RATE: %w", err)
	}
	cfg.ExchangeFeeRate = feeRate

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "100"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	cfg.RateLimitRPS = rps

	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}
	cfg.RateLimitBurst = burst

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if len(c.Currencies) == 0 {
		return fmt.Errorf("CURRENCIES must list at least one currency")
	}

	if c.ExchangeFeeRate.IsNegative() || c.ExchangeFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("EXCHANGE_FEE_RATE must be in [0, 1)")
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToUpper(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitList splits a comma-separated value preserving case (origins are
// case-sensitive, currencies are not).
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
