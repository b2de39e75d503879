package service

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/sandeepkv93/credential-auth/internal/domain"
	"github.com/sandeepkv93/credential-auth/internal/repository"
	"github.com/sandeepkv93/credential-auth/internal/security"
	"github.com/sandeepkv93/credential-auth/internal/service/mocks"
)

var (
	legacyTestParams  = security.Argon2Params{MemoryKiB: 8 * 1024, Time: 1, Threads: 1, KeyLen: 32, SaltLen: 16}
	currentTestParams = security.Argon2Params{MemoryKiB: 8 * 1024, Time: 2, Threads: 1, KeyLen: 32, SaltLen: 16}
)

type userStoreState struct {
	mu        sync.Mutex
	nextID    uint
	byEmail   map[string]*domain.User
	updates   []uint
	updateErr error
	findErr   error
}

func newUserStoreState() *userStoreState {
	return &userStoreState{nextID: 1, byEmail: map[string]*domain.User{}}
}

func (s *userStoreState) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	u, ok := s.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	if u.PasswordHash != nil {
		h := *u.PasswordHash
		cp.PasswordHash = &h
	}
	return &cp, nil
}

func (s *userStoreState) UpdatePasswordHash(_ context.Context, userID uint, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	for _, u := range s.byEmail {
		if u.ID == userID {
			h := hash
			u.PasswordHash = &h
			s.updates = append(s.updates, userID)
			return nil
		}
	}
	return repository.ErrUserNotFound
}

func (s *userStoreState) storedHash(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.byEmail[email]
	if u == nil || u.PasswordHash == nil {
		return ""
	}
	return *u.PasswordHash
}

func (s *userStoreState) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

type authServiceFixture struct {
	store  *userStoreState
	hasher *security.PasswordHasher
	auth   *AuthService
	logs   *bytes.Buffer
}

func newAuthServiceFixture(t *testing.T) *authServiceFixture {
	t.Helper()
	hasher, err := security.NewPasswordHasher(currentTestParams)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	state := newUserStoreState()

	ctrl := gomock.NewController(t)
	storeMock := mocks.NewMockCredentialStore(ctrl)
	storeMock.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(state.FindByEmail)
	storeMock.EXPECT().UpdatePasswordHash(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(state.UpdatePasswordHash)

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(&lockedWriter{w: logs}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &authServiceFixture{
		store:  state,
		hasher: hasher,
		auth:   NewAuthService(storeMock, hasher, NewInMemoryRehashGuard(), logger),
		logs:   logs,
	}
}

// seedUser stores a user whose credential is derived under params. An empty
// password leaves the account without a credential.
func (fx *authServiceFixture) seedUser(t *testing.T, email, password string, params security.Argon2Params, confirmed bool) *domain.User {
	t.Helper()
	u := &domain.User{ID: fx.store.nextID, Email: email, Name: "User"}
	fx.store.nextID++
	if password != "" {
		artifact, err := security.MustPasswordHasher(params).Hash(context.Background(), []byte(password))
		if err != nil {
			t.Fatalf("seed hash: %v", err)
		}
		u.PasswordHash = &artifact
	}
	if confirmed {
		now := time.Now().UTC()
		u.ConfirmedAt = &now
	}
	fx.store.byEmail[email] = u
	return u
}

type lockedWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
