package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sandeepkv93/credential-auth/internal/domain"
)

func TestUserRepositoryCreateAndFind(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	u := &domain.User{Email: "  Alice@Example.COM ", Name: "Alice", PasswordHash: strPtr("$argon2id$stub"), ConfirmedAt: &now}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected id assigned")
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", u.Email)
	}

	byEmail, err := repo.FindByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != u.ID || !byEmail.HasPassword() || byEmail.ConfirmedAt == nil {
		t.Fatalf("unexpected user: %+v", byEmail)
	}

	byID, err := repo.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Email != "alice@example.com" {
		t.Fatalf("unexpected email %q", byID.Email)
	}
}

func TestUserRepositoryNotFound(t *testing.T) {
	repo := NewUserRepository(newRepositoryDBForTest(t))
	ctx := context.Background()

	if _, err := repo.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.FindByID(ctx, 4242); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound by id, got %v", err)
	}
	if err := repo.UpdatePasswordHash(ctx, 4242, "$argon2id$x"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on update, got %v", err)
	}
}

func TestUserRepositoryCreateDuplicateEmail(t *testing.T) {
	repo := NewUserRepository(newRepositoryDBForTest(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &domain.User{Email: "dup@example.com", Name: "First"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := repo.Create(ctx, &domain.User{Email: "DUP@example.com", Name: "Second"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserRepositoryUpdatePasswordHash(t *testing.T) {
	repo := NewUserRepository(newRepositoryDBForTest(t))
	ctx := context.Background()

	u := &domain.User{Email: "rotate@example.com", Name: "Rotate", PasswordHash: strPtr("old-artifact")}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := repo.UpdatePasswordHash(ctx, u.ID, "new-artifact"); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}
	loaded, err := repo.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if loaded.PasswordHash == nil || *loaded.PasswordHash != "new-artifact" {
		t.Fatalf("expected replaced hash, got %v", loaded.PasswordHash)
	}
	if loaded.Email != "rotate@example.com" || loaded.Name != "Rotate" {
		t.Fatalf("identity fields changed: %+v", loaded)
	}
}

func TestUserRepositoryScanPasswordHashes(t *testing.T) {
	repo := NewUserRepository(newRepositoryDBForTest(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		u := &domain.User{Email: fmt.Sprintf("user%d@example.com", i), Name: "U"}
		if i != 2 {
			u.PasswordHash = strPtr(fmt.Sprintf("artifact-%d", i))
		}
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	seen := map[uint]string{}
	if err := repo.ScanPasswordHashes(ctx, 2, func(id uint, hash string) error {
		seen[id] = hash
		return nil
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 users with credentials, got %d: %v", len(seen), seen)
	}

	stop := errors.New("stop")
	calls := 0
	err := repo.ScanPasswordHashes(ctx, 2, func(uint, string) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error returned, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected scan to stop after first callback, got %d calls", calls)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  MiXed@Example.Org\t"); got != "mixed@example.org" {
		t.Fatalf("unexpected normalized email %q", got)
	}
}
