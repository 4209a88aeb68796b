package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	defaultDSN         = "host=localhost user=postgres password=postgres dbname=retail_pos port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:5173"
)

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string

	// RedisAddr boş ise kredi durumu önbelleği kapalıdır.
	RedisAddr string
	CacheTTL  time.Duration

	// LedgerLockTimeout bounds how long a ledger transaction waits for a row lock.
	LedgerLockTimeout time.Duration

	// İlk yönetici hesabı (migration ile oluşturulur)
	AdminEmail    string
	AdminPassword string

	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration from the environment. A .env file in the working
// directory, when present, fills in variables that are not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:   getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		CORSOrigins:   getEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigins),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		AdminEmail:    strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", ""))),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:     getEnv("LOG_OUTPUT", "stdout"),
	}

	var err error
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LedgerLockTimeout, err = getDuration("LEDGER_LOCK_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	// Production güvenlik kontrolleri
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 characters")
	}
	if cfg.AdminEmail != "" && len(cfg.AdminPassword) < 8 {
		return nil, errors.New("ADMIN_PASSWORD must be at least 8 characters when ADMIN_EMAIL is set")
	}

	return cfg, nil
}

// Warn logs settings that are fine for development but not for production.
func (c *Config) Warn() {
	if c.DatabaseDSN == defaultDSN {
		log.Warn().Msg("DATABASE_DSN uses the default value, set your own Postgres connection for production")
	}
	if c.CORSOrigins == defaultCORSOrigins {
		log.Warn().Msg("CORS_ALLOWED_ORIGINS uses the default value, set your own domain for production")
	}
}

func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
