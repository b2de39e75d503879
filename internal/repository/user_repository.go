package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/sandeepkv93/credential-auth/internal/domain"
	"github.com/sandeepkv93/credential-auth/internal/observability"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

const defaultScanBatchSize = 500

type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	UpdatePasswordHash(ctx context.Context, userID uint, hash string) error
	ScanPasswordHashes(ctx context.Context, batchSize int, fn func(userID uint, hash string) error) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) *GormUserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, r.lookupErr(ctx, "find_by_id", err)
	}
	observability.RecordRepositoryOperation(ctx, "user", "find_by_id", "success")
	return &u, nil
}

// FindByEmail matches on the normalized (trimmed, lower-cased) address.
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&u).Error
	if err != nil {
		return nil, r.lookupErr(ctx, "find_by_email", err)
	}
	observability.RecordRepositoryOperation(ctx, "user", "find_by_email", "success")
	return &u, nil
}

// Create inserts user with a normalized email. Uniqueness is enforced by the
// unique index on users.email, so a concurrent duplicate surfaces here as
// ErrEmailTaken.
func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	user.Email = NormalizeEmail(user.Email)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(ctx, "user", "create", "conflict")
			return ErrEmailTaken
		}
		observability.RecordRepositoryOperation(ctx, "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "user", "create", "success")
	return nil
}

// UpdatePasswordHash replaces the stored credential in a single statement.
// Repeating it with the same value is harmless; concurrent writers race and
// the last one wins.
func (r *GormUserRepository) UpdatePasswordHash(ctx context.Context, userID uint, hash string) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", userID).Update("password_hash", hash)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "user", "update_password_hash", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "user", "update_password_hash", "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(ctx, "user", "update_password_hash", "success")
	return nil
}

// ScanPasswordHashes walks every user with a stored credential in id order
// and calls fn for each. A non-nil error from fn stops the scan and is
// returned unchanged.
func (r *GormUserRepository) ScanPasswordHashes(ctx context.Context, batchSize int, fn func(userID uint, hash string) error) error {
	if batchSize <= 0 {
		batchSize = defaultScanBatchSize
	}
	var (
		batch []domain.User
		fnErr error
	)
	res := r.db.WithContext(ctx).
		Select("id", "password_hash").
		Where("password_hash IS NOT NULL AND password_hash <> ''").
		FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
			for _, u := range batch {
				if err := fn(u.ID, *u.PasswordHash); err != nil {
					fnErr = err
					return err
				}
			}
			return nil
		})
	if fnErr != nil {
		observability.RecordRepositoryOperation(ctx, "user", "scan_password_hashes", "aborted")
		return fnErr
	}
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "user", "scan_password_hashes", "error")
		return res.Error
	}
	observability.RecordRepositoryOperation(ctx, "user", "scan_password_hashes", "success")
	return nil
}

func (r *GormUserRepository) lookupErr(ctx context.Context, operation string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		observability.RecordRepositoryOperation(ctx, "user", operation, "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(ctx, "user", operation, "error")
	return err
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
