package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`
	AppEnv   string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	Timezone string `mapstructure:"APP_TIMEZONE"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Redis backs the dashboard cache; caching is off when RedisAddr is empty.
	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	RedisPassword     string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB           int           `mapstructure:"REDIS_DB"`
	DashboardCacheTTL time.Duration `mapstructure:"DASHBOARD_CACHE_TTL"`

	JWTSecret    string `mapstructure:"JWT_HMAC_SECRET"`
	StaticTokens string `mapstructure:"STATIC_TOKENS"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_REDIRECT_URL"`

	// DefaultBookingLimit applies to interviewers with no limit set for a week; -1 means no cap.
	DefaultBookingLimit int `mapstructure:"DEFAULT_BOOKING_LIMIT"`

	RateLimitPerMinute int           `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	ShutdownTimeout    time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	CORSAllowedOrigins string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

var defaults = map[string]any{
	"APP_PORT":              "8080",
	"APP_ENV":               "development",
	"LOG_LEVEL":             "info",
	"APP_TIMEZONE":          "Europe/Kiev",
	"DATABASE_URL":          "",
	"REDIS_ADDR":            "",
	"REDIS_PASSWORD":        "",
	"REDIS_DB":              0,
	"DASHBOARD_CACHE_TTL":   "30s",
	"JWT_HMAC_SECRET":       "",
	"STATIC_TOKENS":         "",
	"GOOGLE_CLIENT_ID":      "",
	"GOOGLE_CLIENT_SECRET":  "",
	"GOOGLE_REDIRECT_URL":   "",
	"DEFAULT_BOOKING_LIMIT": -1,
	"RATE_LIMIT_PER_MINUTE": 300,
	"SHUTDOWN_TIMEOUT":      "10s",
	"CORS_ALLOWED_ORIGINS":  "*",
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL required")
	}
	if c.JWTSecret == "" && len(c.Tokens()) == 0 {
		return errors.New("one of JWT_HMAC_SECRET or STATIC_TOKENS required")
	}
	if c.DefaultBookingLimit < -1 {
		return fmt.Errorf("DEFAULT_BOOKING_LIMIT must be -1 or more, got %d", c.DefaultBookingLimit)
	}
	return nil
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Tokens returns the non-empty entries of STATIC_TOKENS.
func (c *Config) Tokens() []string {
	return splitList(c.StaticTokens)
}

func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
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
