// Package config loads casinod settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// RNG modes.
const (
	RNGSeeded = "seeded"
	RNGCrypto = "crypto"
)

// Config holds the application configuration
type Config struct {
	CasinoID       string
	DBPath         string
	Addr           string
	DefaultBalance decimal.Decimal
	WheelCooldown  time.Duration
	RNG            string
	ClientSeed     string
	KeyringService string
	SeedFallback   string
	PromoCatalog   string
	CORSOrigins    []string
	IdempotencyLRU int

	LogLevel    string
	LogFormat   string
	Environment string
	Version     string
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		CasinoID:       getEnv("CASINO_ID", "main"),
		DBPath:         getEnv("CASINO_DB_PATH", "casino.db"),
		Addr:           getEnv("CASINO_ADDR", ":8080"),
		RNG:            strings.ToLower(getEnv("CASINO_RNG", RNGSeeded)),
		ClientSeed:     getEnv("CASINO_CLIENT_SEED", "casino-settle"),
		KeyringService: getEnv("CASINO_KEYRING_SERVICE", "casino-settle"),
		SeedFallback:   getEnv("CASINO_SEED_FALLBACK", ""),
		PromoCatalog:   getEnv("CASINO_PROMO_CATALOG", ""),
		CORSOrigins:    splitList(getEnv("CASINO_CORS_ORIGINS", "*")),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
		Environment:    getEnv("ENVIRONMENT", "dev"),
		Version:        getEnv("VERSION", "dev"),
	}

	var errs []error

	bal, err := decimal.NewFromString(getEnv("CASINO_DEFAULT_BALANCE", "0"))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid CASINO_DEFAULT_BALANCE: %w", err))
	}
	cfg.DefaultBalance = bal

	cooldown, err := time.ParseDuration(getEnv("CASINO_WHEEL_COOLDOWN", "60m"))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid CASINO_WHEEL_COOLDOWN: %w", err))
	}
	cfg.WheelCooldown = cooldown

	lru, err := strconv.Atoi(getEnv("CASINO_IDEMPOTENCY_CACHE", "1024"))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid CASINO_IDEMPOTENCY_CACHE: %w", err))
	}
	cfg.IdempotencyLRU = lru

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.CasinoID) == "" {
		errs = append(errs, errors.New("CASINO_ID must not be empty"))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("CASINO_DB_PATH must not be empty"))
	}
	if c.DefaultBalance.IsNegative() {
		errs = append(errs, fmt.Errorf("CASINO_DEFAULT_BALANCE must not be negative, got %s", c.DefaultBalance))
	}
	if c.WheelCooldown <= 0 {
		errs = append(errs, fmt.Errorf("CASINO_WHEEL_COOLDOWN must be positive, got %s", c.WheelCooldown))
	}
	if c.RNG != RNGSeeded && c.RNG != RNGCrypto {
		errs = append(errs, fmt.Errorf("CASINO_RNG must be %q or %q, got %q", RNGSeeded, RNGCrypto, c.RNG))
	}
	if c.RNG == RNGSeeded && c.ClientSeed == "" {
		errs = append(errs, errors.New("CASINO_CLIENT_SEED must be set when CASINO_RNG=seeded"))
	}
	if c.IdempotencyLRU <= 0 {
		errs = append(errs, fmt.Errorf("CASINO_IDEMPOTENCY_CACHE must be positive, got %d", c.IdempotencyLRU))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
