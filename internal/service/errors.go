package service

import "errors"

type FailureKind string

const (
	FailureInvalidCredentials FailureKind = "invalid_credentials"
	FailureUnconfirmedEmail   FailureKind = "unconfirmed_email"
	FailureEmailAlreadyUsed   FailureKind = "email_already_used"
)

// AuthFailure is an expected, caller-facing authentication outcome. Store
// and infrastructure errors are never wrapped in it.
type AuthFailure struct {
	Kind  FailureKind
	Email string
}

func (e *AuthFailure) Error() string {
	switch e.Kind {
	case FailureInvalidCredentials:
		return "invalid credentials"
	case FailureUnconfirmedEmail:
		return "email confirmation required"
	case FailureEmailAlreadyUsed:
		return "email already in use"
	default:
		return "authentication failed"
	}
}

// Is matches any AuthFailure of the same kind, so errors.Is works against the
// sentinels below regardless of the Email carried.
func (e *AuthFailure) Is(target error) bool {
	t, ok := target.(*AuthFailure)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidCredentials = &AuthFailure{Kind: FailureInvalidCredentials}
	ErrUnconfirmedEmail   = &AuthFailure{Kind: FailureUnconfirmedEmail}
	ErrEmailAlreadyUsed   = &AuthFailure{Kind: FailureEmailAlreadyUsed}
)

// FailureKindOf reports the failure kind carried by err, if any.
func FailureKindOf(err error) (FailureKind, bool) {
	var failure *AuthFailure
	if errors.As(err, &failure) {
		return failure.Kind, true
	}
	return "", false
}
