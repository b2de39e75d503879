package di

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/credential-auth/internal/app"
	"github.com/sandeepkv93/credential-auth/internal/config"
	"github.com/sandeepkv93/credential-auth/internal/database"
	"github.com/sandeepkv93/credential-auth/internal/health"
	"github.com/sandeepkv93/credential-auth/internal/observability"
	"github.com/sandeepkv93/credential-auth/internal/repository"
	"github.com/sandeepkv93/credential-auth/internal/security"
	"github.com/sandeepkv93/credential-auth/internal/service"
)

const shutdownTimeout = 5 * time.Second

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	wire.Bind(new(repository.UserRepository), new(*repository.GormUserRepository)),
	wire.Bind(new(service.CredentialStore), new(*repository.GormUserRepository)),
)

var SecuritySet = wire.NewSet(
	provideArgon2Params,
	providePasswordHasher,
)

var ServiceSet = wire.NewSet(
	provideRehashGuard,
	wire.Bind(new(service.PasswordHasher), new(*security.PasswordHasher)),
	service.NewAuthService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
)

var AppSet = wire.NewSet(app.New)

type MigrationRunner struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewMigrationRunner(db *gorm.DB, logger *slog.Logger) *MigrationRunner {
	return &MigrationRunner{db: db, logger: logger}
}

func (m *MigrationRunner) Run(ctx context.Context) error {
	if err := database.Migrate(ctx, m.db); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "migration complete")
	return nil
}

func (m *MigrationRunner) Status(ctx context.Context) (*database.MigrationStatus, error) {
	return database.Status(ctx, m.db)
}

func provideObservabilityRuntime(ctx context.Context, cfg *config.Config) (*observability.Runtime, func(), error) {
	rt, err := observability.InitRuntime(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return rt, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := rt.Shutdown(shutdownCtx); err != nil {
			rt.Logger.Error("observability shutdown failed", "error", err)
		}
	}, nil
}

func provideAppLogger(runtime *observability.Runtime) *slog.Logger {
	return runtime.Logger
}

func provideBootstrapLogger(cfg *config.Config) *slog.Logger {
	return observability.NewBootstrapLogger(cfg)
}

func provideRuntimeDB(cfg *config.Config, logger *slog.Logger) (*gorm.DB, func(), error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if err := database.Close(db); err != nil {
			logger.Error("database close failed", "error", err)
		}
	}, nil
}

// provideRedisClient returns a nil client when redis is disabled; consumers
// fall back to in-process behaviour.
func provideRedisClient(cfg *config.Config, logger *slog.Logger) (redis.UniversalClient, func()) {
	if !cfg.RedisEnabled {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	observability.InstrumentRedisClient(client, logger)
	return client, func() {
		if err := client.Close(); err != nil {
			logger.Error("redis close failed", "error", err)
		}
	}
}

func provideArgon2Params(cfg *config.Config) security.Argon2Params {
	return security.Argon2Params{
		MemoryKiB: uint32(cfg.PasswordArgon2MemoryKiB),
		Time:      uint32(cfg.PasswordArgon2Time),
		Threads:   uint8(cfg.PasswordArgon2Threads),
		KeyLen:    uint32(cfg.PasswordArgon2KeyLen),
		SaltLen:   uint32(cfg.PasswordArgon2SaltLen),
	}
}

func providePasswordHasher(cfg *config.Config, params security.Argon2Params, logger *slog.Logger) (*security.PasswordHasher, error) {
	return security.NewPasswordHasher(params,
		security.WithMaxConcurrent(cfg.PasswordHashMaxConcurrent),
		security.WithLogger(observability.ComponentLogger(logger, "password_hasher")),
	)
}

func provideRehashGuard(cfg *config.Config, redisClient redis.UniversalClient, logger *slog.Logger) service.RehashGuard {
	if redisClient == nil {
		return service.NewInMemoryRehashGuard()
	}
	return service.NewRedisRehashGuard(redisClient, cfg.RehashLockPrefix, cfg.RehashLockTTL, logger)
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient, hasher *security.PasswordHasher) *health.ProbeRunner {
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout,
		health.NewDBChecker(db),
		health.NewRedisChecker(redisClient),
		health.NewHasherChecker(hasher),
	)
}
