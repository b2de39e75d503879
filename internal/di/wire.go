//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/sandeepkv93/credential-auth/internal/app"
	"github.com/sandeepkv93/credential-auth/internal/security"
)

func InitializeApp(ctx context.Context) (*app.App, func(), error) {
	panic(wire.Build(
		ConfigSet,
		ObservabilitySet,
		RuntimeInfraSet,
		RepositorySet,
		SecuritySet,
		ServiceSet,
		AppSet,
	))
}

func InitializeMigrationRunner() (*MigrationRunner, func(), error) {
	panic(wire.Build(
		ConfigSet,
		provideBootstrapLogger,
		provideRuntimeDB,
		NewMigrationRunner,
	))
}

func InitializeHasher() (*security.PasswordHasher, error) {
	panic(wire.Build(
		ConfigSet,
		provideBootstrapLogger,
		SecuritySet,
	))
}
