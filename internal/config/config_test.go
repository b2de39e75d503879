package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsInDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "postgres://localhost/credentials")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseDriver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", cfg.DatabaseDriver)
	}
	if cfg.PasswordArgon2MemoryKiB != 64*1024 || cfg.PasswordArgon2Time != 3 || cfg.PasswordArgon2Threads != 2 {
		t.Fatalf("unexpected argon2 defaults: %+v", cfg)
	}
	if cfg.RehashLockTTL != 30*time.Second {
		t.Fatalf("expected 30s rehash lock ttl, got %v", cfg.RehashLockTTL)
	}
	if cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled || cfg.OTELLogsEnabled {
		t.Fatal("expected otel exporters disabled by default in development")
	}
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REHASH_LOCK_TTL", "5s")
	t.Setenv("PASSWORD_ARGON2_MEMORY_KIB", "131072")
	t.Setenv("PASSWORD_HASH_MAX_CONCURRENT", "4")
	t.Setenv("OTEL_LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseDriver != "sqlite" {
		t.Fatalf("expected lower-cased sqlite driver, got %q", cfg.DatabaseDriver)
	}
	if !cfg.RedisEnabled || cfg.RedisDB != 3 {
		t.Fatalf("unexpected redis settings: enabled=%v db=%d", cfg.RedisEnabled, cfg.RedisDB)
	}
	if cfg.RehashLockTTL != 5*time.Second {
		t.Fatalf("expected 5s lock ttl, got %v", cfg.RehashLockTTL)
	}
	if cfg.PasswordArgon2MemoryKiB != 131072 || cfg.PasswordHashMaxConcurrent != 4 {
		t.Fatalf("unexpected hashing overrides: %+v", cfg)
	}
	if cfg.OTELLogLevel != "debug" {
		t.Fatalf("expected lower-cased log level, got %q", cfg.OTELLogLevel)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/credentials")
	t.Setenv("REHASH_LOCK_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected duration parse error")
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing DATABASE_URL error")
	}
}

func TestLoadReportsEveryMalformedValue(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/credentials")
	t.Setenv("REDIS_DB", "two")
	t.Setenv("REDIS_ENABLED", "maybe")
	t.Setenv("OTEL_TRACE_SAMPLING_RATIO", "half")

	_, err := Load()
	if err == nil {
		t.Fatal("expected malformed values rejected")
	}
	for _, want := range []string{
		"REDIS_DB must be an integer",
		"REDIS_ENABLED must be a boolean",
		"OTEL_TRACE_SAMPLING_RATIO must be a number",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}
