// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/govalues/money"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port          string
	DatabaseURL   string
	RunMigrations bool
	DevSeed       bool

	LogLevel  slog.Level
	LogFormat string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	RateLimit   string

	TemplateCacheSize     int
	EntryNumberPrefix     string
	ReversalPrefix        string
	DefaultCurrency       string
	BalanceToleranceMinor int64
}

// Addr is the listen address derived from Port.
func (c Config) Addr() string { return ":" + c.Port }

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("RUN_MIGRATIONS", false)
	v.SetDefault("DEV_SEED", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("JWT_HS256_SECRET", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("RATE_LIMIT", "600-M")
	v.SetDefault("TEMPLATE_CACHE_SIZE", 256)
	v.SetDefault("ENTRY_NUMBER_PREFIX", "JE")
	v.SetDefault("REVERSAL_PREFIX", "REV-")
	v.SetDefault("DEFAULT_CURRENCY", "COP")
	v.SetDefault("BALANCE_TOLERANCE_MINOR", 1)
}

// Load reads envFiles (default ".env") when present and then the process environment,
// which takes precedence.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := Config{
		Port:                  strings.TrimSpace(v.GetString("PORT")),
		DatabaseURL:           strings.TrimSpace(v.GetString("DATABASE_URL")),
		RunMigrations:         v.GetBool("RUN_MIGRATIONS"),
		DevSeed:               v.GetBool("DEV_SEED"),
		LogFormat:             strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
		JWTSecret:             strings.TrimSpace(v.GetString("JWT_HS256_SECRET")),
		JWTIssuer:             strings.TrimSpace(v.GetString("JWT_ISSUER")),
		JWTAudience:           strings.TrimSpace(v.GetString("JWT_AUDIENCE")),
		RateLimit:             strings.TrimSpace(v.GetString("RATE_LIMIT")),
		TemplateCacheSize:     v.GetInt("TEMPLATE_CACHE_SIZE"),
		EntryNumberPrefix:     strings.TrimSpace(v.GetString("ENTRY_NUMBER_PREFIX")),
		ReversalPrefix:        v.GetString("REVERSAL_PREFIX"),
		DefaultCurrency:       strings.ToUpper(strings.TrimSpace(v.GetString("DEFAULT_CURRENCY"))),
		BalanceToleranceMinor: v.GetInt64("BALANCE_TOLERANCE_MINOR"),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch {
	case c.Port == "":
		return errors.New("PORT must not be empty")
	case c.LogFormat != "json" && c.LogFormat != "text":
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	case c.TemplateCacheSize <= 0:
		return errors.New("TEMPLATE_CACHE_SIZE must be positive")
	case c.BalanceToleranceMinor < 0 || c.BalanceToleranceMinor > 1:
		return fmt.Errorf("BALANCE_TOLERANCE_MINOR must be 0 or 1, got %d", c.BalanceToleranceMinor)
	case c.EntryNumberPrefix == "":
		return errors.New("ENTRY_NUMBER_PREFIX must not be empty")
	}
	if _, err := money.ParseCurr(c.DefaultCurrency); err != nil || len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("DEFAULT_CURRENCY must be an ISO 4217 code, got %q", c.DefaultCurrency)
	}
	return nil
}
