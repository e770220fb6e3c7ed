package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/med_assist/internal/models"
)

// RevocationRepo is the database-backed revocation ledger.
type RevocationRepo struct {
	DB *gorm.DB
}

func NewRevocationRepo(db *gorm.DB) *RevocationRepo {
	return &RevocationRepo{DB: db}
}

// Revoke records jti. Revoking an already revoked jti is a no-op.
func (r *RevocationRepo) Revoke(ctx context.Context, jti, tokenType string, expiresAt time.Time) error {
	const op = "repo.RevocationRepo.Revoke"

	rec := models.RevokedToken{
		JTI:       jti,
		TokenType: tokenType,
		ExpiresAt: expiresAt.UTC(),
		RevokedAt: time.Now().UTC(),
	}

	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *RevocationRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.RevokedToken{}).Where("jti = ?", jti).Count(&count).Error; err != nil {
		return false, fmt.Errorf("repo.RevocationRepo.IsRevoked: %w", err)
	}
	return count > 0, nil
}

// Prune deletes entries whose token expired before now. Such tokens already
// fail verification on expiry, so the entry no longer shadows anything.
func (r *RevocationRepo) Prune(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&models.RevokedToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("repo.RevocationRepo.Prune: %w", res.Error)
	}
	return res.RowsAffected, nil
}
