// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/api and cmd/orderpulse.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissing is returned when a required setting is absent. Startup must not
// continue past it.
var ErrMissing = errors.New("required configuration missing")

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// --------------------------------------------------------------------------
// Table names, matching the schema in internal/db
// --------------------------------------------------------------------------

const (
	ArticlesTable    = "articles"
	OrdersTable      = "orders"
	HourlyStatsTable = "hourly_stats"
	BotUsersTable    = "bot_users"
	SentReportsTable = "sent_reports"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Storage
	StorageDriver  string
	DatabaseURL    string
	SQLitePath     string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	LogLevel    slog.Level

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Cache
	CacheEnabled bool

	// Scheduling
	Location           *time.Location
	WindowStart        time.Duration // offset from midnight
	WindowEnd          time.Duration
	DispatchMinute     int
	SchedulerEnabled   bool
	ListenerEnabled    bool
	EnforceWindow      bool
	IdleInterval       time.Duration
	DispatchedInterval time.Duration

	// Reporting
	TopN            int
	ReportLogPath   string
	EmailRecipient  string
	EmailEveryHours int
	SinkTimeout     time.Duration

	// Maintenance
	RetentionDays      int
	SubscriberIdleDays int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	driver := strings.ToLower(envOr("STORAGE_DRIVER", DriverPostgres))
	dbURL := envOr("DATABASE_URL", "")
	sqlitePath := envOr("SQLITE_PATH", "")

	switch driver {
	case DriverPostgres:
		if dbURL == "" {
			return nil, fmt.Errorf("%w: DATABASE_URL must be set for the postgres driver", ErrMissing)
		}
	case DriverSQLite:
		if sqlitePath == "" {
			return nil, fmt.Errorf("%w: SQLITE_PATH must be set for the sqlite driver", ErrMissing)
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q (postgres, sqlite, memory)", driver)
	}

	loc, err := time.LoadLocation(envOr("TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("load TIMEZONE: %w", err)
	}
	windowStart, err := envClock("WINDOW_START", "08:30")
	if err != nil {
		return nil, err
	}
	windowEnd, err := envClock("WINDOW_END", "23:30")
	if err != nil {
		return nil, err
	}
	if windowEnd < windowStart {
		return nil, fmt.Errorf("WINDOW_END %s is before WINDOW_START %s", windowEnd, windowStart)
	}

	minute := envInt("DISPATCH_MINUTE", 30)
	if minute < 0 || minute > 59 {
		return nil, fmt.Errorf("DISPATCH_MINUTE must be 0-59, got %d", minute)
	}

	return &Config{
		StorageDriver:  driver,
		DatabaseURL:    dbURL,
		SQLitePath:     sqlitePath,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		LogLevel:    envLevel("LOG_LEVEL", slog.LevelInfo),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:8000",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CacheEnabled: envBool("CACHE_ENABLED", true),

		Location:           loc,
		WindowStart:        windowStart,
		WindowEnd:          windowEnd,
		DispatchMinute:     minute,
		SchedulerEnabled:   envBool("SCHEDULER_ENABLED", true),
		ListenerEnabled:    envBool("LISTENER_ENABLED", true),
		EnforceWindow:      envBool("ENFORCE_WINDOW", true),
		IdleInterval:       time.Duration(envInt("IDLE_INTERVAL_SECONDS", 60)) * time.Second,
		DispatchedInterval: time.Duration(envInt("DISPATCHED_INTERVAL_SECONDS", 61)) * time.Second,

		TopN:            envInt("TOP_N", 3),
		ReportLogPath:   envOr("REPORT_LOG_PATH", "order_reports.log"),
		EmailRecipient:  envOr("EMAIL_RECIPIENT", "admin@example.com"),
		EmailEveryHours: envInt("EMAIL_EVERY_HOURS", 3),
		SinkTimeout:     time.Duration(envInt("SINK_TIMEOUT_SECONDS", 10)) * time.Second,

		RetentionDays:      envInt("RETENTION_DAYS", 90),
		SubscriberIdleDays: envInt("SUBSCRIBER_IDLE_DAYS", 180),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(v)); err == nil {
			return lvl
		}
	}
	return fallback
}

// envClock parses an HH:MM time of day into an offset from midnight.
func envClock(key, fallback string) (time.Duration, error) {
	v := envOr(key, fallback)
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("%s: expected HH:MM, got %q", key, v)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
