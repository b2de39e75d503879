package database

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sandeepkv93/credential-auth/internal/domain"
	"github.com/sandeepkv93/credential-auth/internal/observability"
)

func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&domain.User{}); err != nil {
		observability.RecordRepositoryOperation(ctx, "schema", "migrate", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "schema", "migrate", "success")
	return nil
}

type MigrationStatus struct {
	UsersTable        bool   `json:"users_table"`
	EmailUniqueIndex  bool   `json:"email_unique_index"`
	PasswordColumn    bool   `json:"password_column"`
	ConfirmedColumn   bool   `json:"confirmed_column"`
	Users             int64  `json:"users"`
	UsersWithPassword int64  `json:"users_with_password"`
	CheckedAt         string `json:"checked_at"`
}

// Pending reports whether Migrate would change the schema.
func (s MigrationStatus) Pending() bool {
	return !s.UsersTable || !s.EmailUniqueIndex || !s.PasswordColumn || !s.ConfirmedColumn
}

func Status(ctx context.Context, db *gorm.DB) (*MigrationStatus, error) {
	db = db.WithContext(ctx)
	m := db.Migrator()
	st := &MigrationStatus{CheckedAt: time.Now().UTC().Format(time.RFC3339)}

	st.UsersTable = m.HasTable(&domain.User{})
	if !st.UsersTable {
		return st, nil
	}
	st.PasswordColumn = m.HasColumn(&domain.User{}, "PasswordHash")
	st.ConfirmedColumn = m.HasColumn(&domain.User{}, "ConfirmedAt")
	st.EmailUniqueIndex = m.HasIndex(&domain.User{}, "idx_users_email")

	if err := db.Model(&domain.User{}).Count(&st.Users).Error; err != nil {
		return nil, err
	}
	if st.PasswordColumn {
		if err := db.Model(&domain.User{}).
			Where("password_hash IS NOT NULL AND password_hash <> ''").
			Count(&st.UsersWithPassword).Error; err != nil {
			return nil, err
		}
	}
	return st, nil
}
