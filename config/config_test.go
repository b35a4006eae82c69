package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.DatabasePath != "mining.db" {
		t.Errorf("expected default database path, got %q", cfg.DatabasePath)
	}
	if cfg.AccrualInterval != time.Minute {
		t.Errorf("expected default accrual interval of one minute, got %v", cfg.AccrualInterval)
	}
	if len(cfg.AllowedOrigins) == 0 {
		t.Error("expected a default CORS origin")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_PATH", ":memory:")
	t.Setenv("ACCRUAL_INTERVAL", "30s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.DatabasePath != ":memory:" {
		t.Errorf("expected :memory:, got %q", cfg.DatabasePath)
	}
	if cfg.AccrualInterval != 30*time.Second {
		t.Errorf("expected 30s interval, got %v", cfg.AccrualInterval)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug level, got %q", cfg.LogLevel)
	}
}

func TestLoad_MalformedValues(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected fallback port 8080, got %d", cfg.Port)
	}

	t.Setenv("ACCRUAL_INTERVAL", "soon")
	if _, err := Load(); err == nil {
		t.Error("expected error for malformed accrual interval")
	}
}
