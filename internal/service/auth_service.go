package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sandeepkv93/credential-auth/internal/domain"
	"github.com/sandeepkv93/credential-auth/internal/observability"
	"github.com/sandeepkv93/credential-auth/internal/repository"
	"github.com/sandeepkv93/credential-auth/internal/security"
)

const passwordProvider = "password"

// AuthService checks email/password credentials and upgrades stored hashes
// that were produced under outdated parameters. It keeps no state between
// calls.
type AuthService struct {
	store  CredentialStore
	hasher PasswordHasher
	guard  RehashGuard
	logger *slog.Logger
}

func NewAuthService(store CredentialStore, hasher PasswordHasher, guard RehashGuard, logger *slog.Logger) *AuthService {
	if guard == nil {
		guard = NewNoopRehashGuard()
	}
	return &AuthService{
		store:  store,
		hasher: hasher,
		guard:  guard,
		logger: observability.ComponentLogger(logger, "auth_service"),
	}
}

// Authenticate resolves email to a user and checks password against the
// stored credential. Unknown emails, accounts without a password and wrong
// passwords all fail with ErrInvalidCredentials. Store errors are returned
// unchanged. A credential produced under outdated parameters is upgraded
// before returning; failure to upgrade never fails the login.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.PublicUser, error) {
	ctx, span := observability.Tracer().Start(ctx, "auth.authenticate")
	defer span.End()

	user, err := s.authenticate(ctx, email, password)
	status := loginStatus(err)
	observability.RecordAuthLogin(ctx, passwordProvider, status)
	span.SetAttributes(attribute.String("auth.status", status))

	audit := observability.AuditInput{
		EventName: "auth.login.password",
		Action:    "authenticate",
		Outcome:   "success",
	}
	if err != nil {
		if status == "error" {
			observability.FailSpan(span, err, "credential lookup failed")
		}
		audit.Outcome = "failure"
		audit.Reason = status
		observability.Audit(ctx, s.logger, audit)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("user.id", int64(user.ID)))
	audit.ActorUserID = strconv.FormatUint(uint64(user.ID), 10)
	observability.Audit(ctx, s.logger, audit)
	return user.Public(), nil
}

// AuthenticateConfirmed is Authenticate followed by EnsureConfirmed. The
// password is checked first so an unconfirmed account is only reported to
// a caller who proved the credential.
func (s *AuthService) AuthenticateConfirmed(ctx context.Context, email, password string) (*domain.PublicUser, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureConfirmed(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) EnsureConfirmed(user domain.ConfirmationStatus) error {
	if user == nil || user.EmailConfirmedAt() == nil {
		return ErrUnconfirmedEmail
	}
	return nil
}

// EnsureEmailAvailable fails with an AuthFailure of kind
// FailureEmailAlreadyUsed when a user already owns email. It is advisory:
// two callers can both pass before either inserts, and the unique index on
// users.email is what actually enforces uniqueness.
func (s *AuthService) EnsureEmailAvailable(ctx context.Context, email string) error {
	normalized := repository.NormalizeEmail(email)
	_, err := s.store.FindByEmail(ctx, normalized)
	switch {
	case err == nil:
		return &AuthFailure{Kind: FailureEmailAlreadyUsed, Email: normalized}
	case errors.Is(err, repository.ErrUserNotFound):
		return nil
	default:
		return err
	}
}

func (s *AuthService) authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.store.FindByEmail(ctx, repository.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user == nil || !user.HasPassword() {
		return nil, ErrInvalidCredentials
	}

	outcome, err := s.hasher.Verify(ctx, *user.PasswordHash, []byte(password))
	if err != nil {
		return nil, err
	}
	switch outcome {
	case security.OutcomeValid:
	case security.OutcomeValidNeedsRehash:
		s.upgradeCredential(ctx, user.ID, password)
	default:
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// upgradeCredential re-derives the credential under the current parameters
// and persists it. Every failure is logged and dropped.
func (s *AuthService) upgradeCredential(ctx context.Context, userID uint, password string) {
	ctx, span := observability.Tracer().Start(ctx, "auth.upgrade_credential")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", int64(userID)))

	release, acquired, err := s.guard.Acquire(ctx, userID)
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "credential upgrade lease unavailable, upgrading without it",
			"user_id", userID,
			"error", err,
		)
	case !acquired:
		observability.RecordPasswordRehash(ctx, "skipped")
		s.logger.DebugContext(ctx, "credential upgrade already in progress", "user_id", userID)
		return
	case release != nil:
		defer release()
	}

	artifact, err := s.hasher.Hash(ctx, []byte(password))
	if err != nil {
		observability.RecordPasswordRehash(ctx, "derive_error")
		observability.FailSpan(span, err, "derive")
		s.logger.ErrorContext(ctx, "credential upgrade failed to derive", "user_id", userID, "error", err)
		return
	}
	if err := s.store.UpdatePasswordHash(ctx, userID, artifact); err != nil {
		observability.RecordPasswordRehash(ctx, "persist_error")
		observability.FailSpan(span, err, "persist")
		s.logger.ErrorContext(ctx, "credential upgrade failed to persist", "user_id", userID, "error", err)
		return
	}
	observability.RecordPasswordRehash(ctx, "upgraded")
	observability.Audit(ctx, s.logger, observability.AuditInput{
		EventName:   "auth.credential.upgraded",
		ActorUserID: strconv.FormatUint(uint64(userID), 10),
		Action:      "upgrade_credential",
		Outcome:     "success",
	})
}

func loginStatus(err error) string {
	if err == nil {
		return "success"
	}
	if kind, ok := FailureKindOf(err); ok {
		return string(kind)
	}
	return "error"
}
