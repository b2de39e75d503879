package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env string

	DatabaseDriver string
	DatabaseURL    string

	RedisEnabled     bool
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RehashLockPrefix string
	RehashLockTTL    time.Duration

	PasswordArgon2MemoryKiB   int
	PasswordArgon2Time        int
	PasswordArgon2Threads     int
	PasswordArgon2KeyLen      int
	PasswordArgon2SaltLen     int
	PasswordHashMaxConcurrent int

	ReadinessProbeTimeout time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

// Load reads the configuration from the environment. Malformed values are
// reported together with any Validate failures instead of falling back to
// defaults.
func Load() (*Config, error) {
	r := &envReader{}
	env := r.str("APP_ENV", "development")
	otelDefault := !isLocalLikeEnv(env)

	cfg := &Config{
		Env:            env,
		DatabaseDriver: strings.ToLower(r.str("DATABASE_DRIVER", "postgres")),
		DatabaseURL:    r.str("DATABASE_URL", ""),

		RedisEnabled:     r.boolean("REDIS_ENABLED", false),
		RedisAddr:        r.str("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    r.str("REDIS_PASSWORD", ""),
		RedisDB:          r.integer("REDIS_DB", 0),
		RehashLockPrefix: r.str("REHASH_LOCK_PREFIX", "credential_rehash"),
		RehashLockTTL:    r.duration("REHASH_LOCK_TTL", 30*time.Second),

		PasswordArgon2MemoryKiB:   r.integer("PASSWORD_ARGON2_MEMORY_KIB", 64*1024),
		PasswordArgon2Time:        r.integer("PASSWORD_ARGON2_TIME", 3),
		PasswordArgon2Threads:     r.integer("PASSWORD_ARGON2_THREADS", 2),
		PasswordArgon2KeyLen:      r.integer("PASSWORD_ARGON2_KEY_LEN", 32),
		PasswordArgon2SaltLen:     r.integer("PASSWORD_ARGON2_SALT_LEN", 16),
		PasswordHashMaxConcurrent: r.integer("PASSWORD_HASH_MAX_CONCURRENT", 0),

		ReadinessProbeTimeout: r.duration("READINESS_PROBE_TIMEOUT", time.Second),

		OTELServiceName:           r.str("OTEL_SERVICE_NAME", "credential-auth"),
		OTELEnvironment:           r.str("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint:  r.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:  r.boolean("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsExportInterval: r.duration("OTEL_METRICS_EXPORT_INTERVAL", 10*time.Second),
		OTELTraceSamplingRatio:    r.float("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:        r.boolean("OTEL_METRICS_ENABLED", otelDefault),
		OTELTracingEnabled:        r.boolean("OTEL_TRACING_ENABLED", otelDefault),
		OTELLogsEnabled:           r.boolean("OTEL_LOGS_ENABLED", otelDefault),
		OTELLogLevel:              strings.ToLower(r.str("OTEL_LOG_LEVEL", "info")),
	}
	if len(r.errs) > 0 {
		return nil, errors.New(strings.Join(r.errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, "DATABASE_DRIVER must be one of postgres, sqlite")
	}
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.DatabaseDriver == "sqlite" && !isLocalLikeEnv(c.Env) {
		errs = append(errs, "DATABASE_DRIVER=sqlite is only allowed in development or test")
	}
	if c.RedisEnabled && strings.TrimSpace(c.RedisAddr) == "" {
		errs = append(errs, "REDIS_ADDR is required when REDIS_ENABLED=true")
	}
	if c.RedisDB < 0 {
		errs = append(errs, "REDIS_DB must be >= 0")
	}
	if c.RehashLockTTL <= 0 || c.RehashLockTTL > 5*time.Minute {
		errs = append(errs, "REHASH_LOCK_TTL must be between 1ms and 5m")
	}
	if c.PasswordArgon2MemoryKiB < 8*1024 {
		errs = append(errs, "PASSWORD_ARGON2_MEMORY_KIB must be >= 8192")
	}
	if c.PasswordArgon2Time < 1 {
		errs = append(errs, "PASSWORD_ARGON2_TIME must be >= 1")
	}
	if c.PasswordArgon2Threads < 1 || c.PasswordArgon2Threads > 255 {
		errs = append(errs, "PASSWORD_ARGON2_THREADS must be between 1 and 255")
	}
	if c.PasswordArgon2KeyLen < 16 {
		errs = append(errs, "PASSWORD_ARGON2_KEY_LEN must be >= 16")
	}
	if c.PasswordArgon2SaltLen < 16 {
		errs = append(errs, "PASSWORD_ARGON2_SALT_LEN must be >= 16")
	}
	if c.PasswordHashMaxConcurrent < 0 {
		errs = append(errs, "PASSWORD_HASH_MAX_CONCURRENT must be >= 0")
	}
	if c.ReadinessProbeTimeout <= 0 {
		errs = append(errs, "READINESS_PROBE_TIMEOUT must be > 0")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// IsLocalLike reports whether the configured environment is a developer or
// test environment.
func (c *Config) IsLocalLike() bool {
	return isLocalLikeEnv(c.Env)
}

func isLocalLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local", "test":
		return true
	default:
		return false
	}
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// envReader reads typed values, recording a problem for every variable that
// is set but does not parse.
type envReader struct {
	errs []string
}

func (r *envReader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (r *envReader) boolean(key string, def bool) bool {
	return parseEnv(r, key, def, "a boolean", strconv.ParseBool)
}

func (r *envReader) integer(key string, def int) int {
	return parseEnv(r, key, def, "an integer", strconv.Atoi)
}

func (r *envReader) float(key string, def float64) float64 {
	return parseEnv(r, key, def, "a number", func(v string) (float64, error) {
		return strconv.ParseFloat(v, 64)
	})
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	return parseEnv(r, key, def, "a duration such as 30s", time.ParseDuration)
}

func parseEnv[T any](r *envReader, key string, def T, kind string, parse func(string) (T, error)) T {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s must be %s", key, kind))
		return def
	}
	return out
}
