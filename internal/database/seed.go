package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sandeepkv93/credential-auth/internal/domain"
	"github.com/sandeepkv93/credential-auth/internal/repository"
)

type SeedUserInput struct {
	Email     string
	Name      string
	Artifact  string
	Confirmed bool
}

// SeedUser creates the user, or replaces the stored credential and
// confirmation of an existing user with the same email. It reports whether a
// row was created.
func SeedUser(ctx context.Context, db *gorm.DB, in SeedUserInput) (*domain.User, bool, error) {
	email := repository.NormalizeEmail(in.Email)
	if email == "" {
		return nil, false, fmt.Errorf("email is required")
	}
	var confirmedAt *time.Time
	if in.Confirmed {
		now := time.Now().UTC()
		confirmedAt = &now
	}
	artifact := in.Artifact

	var (
		user    domain.User
		created bool
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = domain.User{Email: email, Name: in.Name, PasswordHash: &artifact, ConfirmedAt: confirmedAt}
			created = true
			return tx.Create(&user).Error
		case err != nil:
			return err
		}
		user.PasswordHash = &artifact
		user.ConfirmedAt = confirmedAt
		if in.Name != "" {
			user.Name = in.Name
		}
		return tx.Save(&user).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &user, created, nil
}

func ConfirmLocalEmail(ctx context.Context, db *gorm.DB, email string) error {
	normalized := repository.NormalizeEmail(email)
	if normalized == "" {
		return fmt.Errorf("email is required")
	}
	now := time.Now().UTC()
	tx := db.WithContext(ctx).Model(&domain.User{}).
		Where("email = ?", normalized).
		Update("confirmed_at", &now)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
