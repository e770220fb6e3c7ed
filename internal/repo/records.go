package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/med_assist/internal/models"
)

// Record is any health record table keyed by (id, user_id).
type Record interface {
	models.Symptom | models.FoodLog | models.Lab | models.Treatment
}

// RecordRepo scopes every query to a single owner. A record that exists but
// belongs to somebody else is indistinguishable from one that does not exist.
type RecordRepo[T Record] struct {
	DB    *gorm.DB
	order string
}

func NewRecordRepo[T Record](db *gorm.DB, order string) *RecordRepo[T] {
	if order == "" {
		order = "id DESC"
	}
	return &RecordRepo[T]{DB: db, order: order}
}

func (r *RecordRepo[T]) Create(ctx context.Context, rec *T) error {
	if err := r.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("repo.RecordRepo.Create: %w", err)
	}
	return nil
}

func (r *RecordRepo[T]) Get(ctx context.Context, ownerID, id uint) (*T, error) {
	var rec T
	if err := r.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("repo.RecordRepo.Get: %w", err)
	}
	return &rec, nil
}

func (r *RecordRepo[T]) List(ctx context.Context, ownerID uint, offset, limit int) ([]T, int64, error) {
	const op = "repo.RecordRepo.List"

	var (
		zero  T
		total int64
	)
	base := r.DB.WithContext(ctx).Model(&zero).Where("user_id = ?", ownerID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]T, 0, limit)
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order(r.order).
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return items, total, nil
}

// Update loads the owner's record under a row lock, lets apply mutate it and
// writes every column back except id and user_id, all in one transaction.
func (r *RecordRepo[T]) Update(ctx context.Context, ownerID, id uint, apply func(*T) error) (*T, error) {
	const op = "repo.RecordRepo.Update"

	var rec T
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwned(tx, &rec, ownerID, id); err != nil {
			return err
		}
		if err := apply(&rec); err != nil {
			return err
		}
		err := tx.Model(new(T)).
			Where("id = ? AND user_id = ?", id, ownerID).
			Select("*").
			Omit("id", "user_id").
			Updates(&rec).Error
		if err != nil {
			return err
		}
		rec = *new(T)
		return tx.Where("id = ? AND user_id = ?", id, ownerID).First(&rec).Error
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &rec, nil
}

func (r *RecordRepo[T]) Delete(ctx context.Context, ownerID, id uint) error {
	const op = "repo.RecordRepo.Delete"

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec T
		if err := lockOwned(tx, &rec, ownerID, id); err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, ownerID).Delete(&rec).Error
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func lockOwned(tx *gorm.DB, dst any, ownerID, id uint) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

// UserInfoRepo stores the one-per-account demographic record.
type UserInfoRepo struct {
	DB *gorm.DB
}

func NewUserInfoRepo(db *gorm.DB) *UserInfoRepo {
	return &UserInfoRepo{DB: db}
}

// Get returns ErrRecordNotFound when the account has not filled it in yet.
func (r *UserInfoRepo) Get(ctx context.Context, ownerID uint) (*models.UserInfo, error) {
	var info models.UserInfo
	if err := r.DB.WithContext(ctx).Where("user_id = ?", ownerID).First(&info).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("repo.UserInfoRepo.Get: %w", err)
	}
	return &info, nil
}

// Upsert creates or replaces the account's record and returns the stored row.
func (r *UserInfoRepo) Upsert(ctx context.Context, info *models.UserInfo) error {
	const op = "repo.UserInfoRepo.Upsert"

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.UserInfo
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", info.UserID).
			First(&existing).Error
		switch {
		case err == nil:
			info.ID = existing.ID
			return tx.Save(info).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(info).Error
		default:
			return err
		}
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
