package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/med_assist/internal/models"
)

type AccountRepo struct {
	DB *gorm.DB
}

func NewAccountRepo(db *gorm.DB) *AccountRepo {
	return &AccountRepo{DB: db}
}

// Create inserts the account. The unique indexes on email and username are
// the final arbiter for concurrent registrations.
func (r *AccountRepo) Create(ctx context.Context, a *models.Account) error {
	const op = "repo.AccountRepo.Create"

	err := r.DB.WithContext(ctx).Create(a).Error
	if err == nil {
		return nil
	}

	if constraint, ok := uniqueViolation(err); ok {
		switch {
		case strings.Contains(constraint, "email"):
			return ErrEmailTaken
		case strings.Contains(constraint, "username"):
			return ErrUsernameTaken
		default:
			return ErrDuplicate
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

func (r *AccountRepo) ByID(ctx context.Context, id uint) (*models.Account, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *AccountRepo) ByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *AccountRepo) ByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *AccountRepo) first(ctx context.Context, query string, arg any) (*models.Account, error) {
	var a models.Account
	if err := r.DB.WithContext(ctx).Where(query, arg).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("repo.AccountRepo: %w", err)
	}
	return &a, nil
}

func (r *AccountRepo) Exists(ctx context.Context, id uint) (bool, error) {
	return r.exists(ctx, "id = ?", id)
}

func (r *AccountRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", email)
}

func (r *AccountRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = ?", username)
}

func (r *AccountRepo) exists(ctx context.Context, query string, arg any) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.Account{}).Where(query, arg).Count(&count).Error; err != nil {
		return false, fmt.Errorf("repo.AccountRepo.exists: %w", err)
	}
	return count > 0, nil
}

func (r *AccountRepo) UpdatePasswordHash(ctx context.Context, id uint, hash string) error {
	const op = "repo.AccountRepo.UpdatePasswordHash"

	res := r.DB.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepo) List(ctx context.Context, offset, limit int) ([]models.Account, int64, error) {
	const op = "repo.AccountRepo.List"

	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Account{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	accounts := make([]models.Account, 0, limit)
	if err := r.DB.WithContext(ctx).Order("id").Offset(offset).Limit(limit).Find(&accounts).Error; err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return accounts, total, nil
}
