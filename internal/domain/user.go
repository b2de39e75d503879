package domain

import "time"

// ConfirmationStatus is satisfied by anything that knows when its email
// address was confirmed.
type ConfirmationStatus interface {
	EmailConfirmedAt() *time.Time
}

type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string     `gorm:"size:255;not null;default:''" json:"name"`
	PasswordHash *string    `gorm:"size:1024" json:"-"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) EmailConfirmedAt() *time.Time {
	if u == nil {
		return nil
	}
	return u.ConfirmedAt
}

// HasPassword reports whether the account carries a usable stored credential.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Public strips the stored credential.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		ConfirmedAt: u.ConfirmedAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type PublicUser struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (u *PublicUser) EmailConfirmedAt() *time.Time {
	if u == nil {
		return nil
	}
	return u.ConfirmedAt
}
