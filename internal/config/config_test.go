package config

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
}

func TestLoadRequiresSQLitePath(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "")
	_, err := Load()
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("TIMEZONE", "UTC")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WindowStart != 8*time.Hour+30*time.Minute || cfg.WindowEnd != 23*time.Hour+30*time.Minute {
		t.Fatalf("window = %s..%s", cfg.WindowStart, cfg.WindowEnd)
	}
	if cfg.DispatchMinute != 30 || cfg.TopN != 3 || cfg.EmailEveryHours != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.IdleInterval != 60*time.Second || cfg.DispatchedInterval != 61*time.Second {
		t.Fatalf("intervals = %s / %s", cfg.IdleInterval, cfg.DispatchedInterval)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("log level = %v", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("TIMEZONE", "Europe/Moscow")
	t.Setenv("WINDOW_START", "09:00")
	t.Setenv("WINDOW_END", "21:15")
	t.Setenv("TOP_N", "5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ALLOW_ORIGINS", " http://a , ,http://b")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Location.String() != "Europe/Moscow" {
		t.Fatalf("location = %s", cfg.Location)
	}
	if cfg.WindowStart != 9*time.Hour || cfg.WindowEnd != 21*time.Hour+15*time.Minute {
		t.Fatalf("window = %s..%s", cfg.WindowStart, cfg.WindowEnd)
	}
	if cfg.TopN != 5 || cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected: top=%d level=%v", cfg.TopN, cfg.LogLevel)
	}
	if len(cfg.CORSAllowOrigins) != 2 || cfg.CORSAllowOrigins[1] != "http://b" {
		t.Fatalf("origins = %v", cfg.CORSAllowOrigins)
	}
}

func TestLoadRejectsBadWindow(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("WINDOW_START", "8.30")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed WINDOW_START")
	}
	t.Setenv("WINDOW_START", "22:00")
	t.Setenv("WINDOW_END", "08:00")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for inverted window")
	}
}
