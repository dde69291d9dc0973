package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Files consulted for local overrides, most specific first. Variables already
// present in the environment always win.
var dotenvFiles = []string{".env.local", ".env"}

// Config holds all application configuration
type Config struct {
	// Server configuration
	Host string `envconfig:"HOST" default:"localhost"`
	Port int    `envconfig:"PORT" default:"4101"`

	// Database configuration: a sqlite file path or a postgres:// URL
	DatabaseURL string `envconfig:"DATABASE_URL" default:"./data.db"`

	// Strava API configuration
	StravaClientID     string `envconfig:"STRAVA_CLIENT_ID"`
	StravaClientSecret string `envconfig:"STRAVA_CLIENT_SECRET"`
	StravaAPIBaseURL   string `envconfig:"STRAVA_API_BASE_URL" default:"https://www.strava.com/api/v3"`
	StravaTokenURL     string `envconfig:"STRAVA_TOKEN_URL" default:"https://www.strava.com/oauth/token"`
	StravaAuthURL      string `envconfig:"STRAVA_AUTH_URL" default:"https://www.strava.com/oauth/authorize"`

	// Bootstrap single-athlete mode
	StravaRefreshToken string `envconfig:"STRAVA_REFRESH_TOKEN"`
	StravaAthleteID    int64  `envconfig:"STRAVA_ATHLETE_ID"`

	// Sync policy
	PerPage           int           `envconfig:"STRAVA_PER_PAGE" default:"50"`
	AfterEpochDefault int64         `envconfig:"STRAVA_AFTER_EPOCH_DEFAULT" default:"0"`
	CursorMargin      time.Duration `envconfig:"SYNC_CURSOR_MARGIN" default:"60s"`
	PageDelay         time.Duration `envconfig:"SYNC_PAGE_DELAY" default:"200ms"`
	MaxAttempts       int           `envconfig:"SYNC_MAX_ATTEMPTS" default:"4"`
	TokenTimeout      time.Duration `envconfig:"STRAVA_TOKEN_TIMEOUT" default:"30s"`
	ListTimeout       time.Duration `envconfig:"STRAVA_LIST_TIMEOUT" default:"60s"`

	// Logging configuration
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	// Metrics configuration
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricsHost    string `envconfig:"METRICS_HOST" default:"localhost"`
	MetricsPort    int    `envconfig:"METRICS_PORT" default:"9090"`
	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL"`
}

// Load reads configuration from .env files and environment variables.
// It fails fast if required variables are missing or values are out of range.
func Load() (*Config, error) {
	for _, f := range dotenvFiles {
		err := godotenv.Load(f)
		switch {
		case err == nil:
			slog.Debug("Loaded dotenv file", "file", f)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var missingVars []string
	if c.StravaClientID == "" {
		missingVars = append(missingVars, "STRAVA_CLIENT_ID")
	}
	if c.StravaClientSecret == "" {
		missingVars = append(missingVars, "STRAVA_CLIENT_SECRET")
	}
	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	var problems []string
	if c.PerPage < 1 || c.PerPage > 200 {
		problems = append(problems, fmt.Sprintf("STRAVA_PER_PAGE must be between 1 and 200, got %d", c.PerPage))
	}
	if c.AfterEpochDefault < 0 {
		problems = append(problems, "STRAVA_AFTER_EPOCH_DEFAULT must not be negative")
	}
	if c.CursorMargin < 0 {
		problems = append(problems, "SYNC_CURSOR_MARGIN must not be negative")
	}
	if c.PageDelay < 0 {
		problems = append(problems, "SYNC_PAGE_DELAY must not be negative")
	}
	if c.MaxAttempts < 1 {
		problems = append(problems, "SYNC_MAX_ATTEMPTS must be at least 1")
	}
	if c.TokenTimeout <= 0 || c.ListTimeout <= 0 {
		problems = append(problems, "STRAVA_TOKEN_TIMEOUT and STRAVA_LIST_TIMEOUT must be positive")
	}
	for name, raw := range map[string]string{
		"STRAVA_API_BASE_URL": c.StravaAPIBaseURL,
		"STRAVA_TOKEN_URL":    c.StravaTokenURL,
		"STRAVA_AUTH_URL":     c.StravaAuthURL,
	} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			problems = append(problems, fmt.Sprintf("%s must be a valid URL", name))
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// UsesPostgres reports whether DatabaseURL points at a postgres server
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// MaskSecret hides all but the edges of a credential for logging
func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
