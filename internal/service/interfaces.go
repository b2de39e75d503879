package service

import (
	"context"

	"github.com/sandeepkv93/credential-auth/internal/domain"
	"github.com/sandeepkv93/credential-auth/internal/security"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

// CredentialStore is the persistence the service reads users from and writes
// upgraded credentials to. FindByEmail returns repository.ErrUserNotFound
// when no record matches.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, userID uint, hash string) error
}

type PasswordHasher interface {
	Hash(ctx context.Context, plaintext []byte) (string, error)
	Verify(ctx context.Context, artifact string, plaintext []byte) (security.VerificationOutcome, error)
}

// RehashGuard coordinates credential upgrades for one user across
// concurrent logins. acquired=false means another caller holds the lease.
// release is always safe to call.
type RehashGuard interface {
	Acquire(ctx context.Context, userID uint) (release func(), acquired bool, err error)
}

type AuthServiceInterface interface {
	Authenticate(ctx context.Context, email, password string) (*domain.PublicUser, error)
	AuthenticateConfirmed(ctx context.Context, email, password string) (*domain.PublicUser, error)
	EnsureConfirmed(user domain.ConfirmationStatus) error
	EnsureEmailAvailable(ctx context.Context, email string) error
}
