package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "LOG_LEVEL", "MAX_DB_CONNS", "DB_CONNECT_TIMEOUT_SECONDS", "DB_LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Env != "local" {
		t.Errorf("Env = %q, want local", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.MaxDBConns != 16 {
		t.Errorf("MaxDBConns = %d, want 16", cfg.MaxDBConns)
	}
	if cfg.DBConnectTimeout != 10*time.Second {
		t.Errorf("DBConnectTimeout = %s, want 10s", cfg.DBConnectTimeout)
	}
	if cfg.DBLogLevel != "none" {
		t.Errorf("DBLogLevel = %q, want none", cfg.DBLogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_DB_CONNS", "4")
	t.Setenv("DB_CONNECT_TIMEOUT_SECONDS", "3")
	t.Setenv("DB_LOG_LEVEL", "debug")

	cfg := Load()

	if cfg.MaxDBConns != 4 {
		t.Errorf("MaxDBConns = %d, want 4", cfg.MaxDBConns)
	}
	if cfg.DBConnectTimeout != 3*time.Second {
		t.Errorf("DBConnectTimeout = %s, want 3s", cfg.DBConnectTimeout)
	}
	if cfg.DBLogLevel != "debug" {
		t.Errorf("DBLogLevel = %q, want debug", cfg.DBLogLevel)
	}
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("ROSTER_TEST_INT", "many")

	if got := getEnvInt("ROSTER_TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt = %d, want 7", got)
	}
}
