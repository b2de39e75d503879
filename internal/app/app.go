package app

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/credential-auth/internal/config"
	"github.com/sandeepkv93/credential-auth/internal/health"
	"github.com/sandeepkv93/credential-auth/internal/observability"
	"github.com/sandeepkv93/credential-auth/internal/repository"
	"github.com/sandeepkv93/credential-auth/internal/security"
	"github.com/sandeepkv93/credential-auth/internal/service"
)

// App is the assembled credential core plus the infrastructure it runs on.
// Redis is nil when REDIS_ENABLED=false.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Observability *observability.Runtime
	DB            *gorm.DB
	Redis         redis.UniversalClient
	Users         repository.UserRepository
	Hasher        *security.PasswordHasher
	Auth          service.AuthServiceInterface
	Readiness     *health.ProbeRunner
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	users repository.UserRepository,
	hasher *security.PasswordHasher,
	auth service.AuthServiceInterface,
	readiness *health.ProbeRunner,
) *App {
	return &App{
		Config:        cfg,
		Logger:        logger,
		Observability: runtime,
		DB:            db,
		Redis:         redisClient,
		Users:         users,
		Hasher:        hasher,
		Auth:          auth,
		Readiness:     readiness,
	}
}
