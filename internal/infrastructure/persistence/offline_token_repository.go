package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/printpass/backend/internal/domain/ledger"
	"github.com/printpass/backend/internal/domain/shared"
	"github.com/printpass/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOfflineTokenRepository implements ledger.OfflineTokenRepository using GORM
type GormOfflineTokenRepository struct {
	db *gorm.DB
}

// NewGormOfflineTokenRepository creates a new GormOfflineTokenRepository
func NewGormOfflineTokenRepository(db *gorm.DB) *GormOfflineTokenRepository {
	return &GormOfflineTokenRepository{db: db}
}

// FindByToken finds an offline token by its opaque value
func (r *GormOfflineTokenRepository) FindByToken(ctx context.Context, token string) (*ledger.OfflineToken, error) {
	var model models.OfflineTokenModel
	if err := r.db.WithContext(ctx).First(&model, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save inserts a new offline token
func (r *GormOfflineTokenRepository) Save(ctx context.Context, token *ledger.OfflineToken) error {
	model := models.OfflineTokenModelFromDomain(token)
	return r.db.WithContext(ctx).Create(model).Error
}

// MarkReconciled records the offline redemption exactly once. Duplicate
// reconciliation of the same token maps to shared.ErrAlreadyUsed.
func (r *GormOfflineTokenRepository) MarkReconciled(ctx context.Context, token string, usedAt time.Time, printerName string) error {
	result := r.db.WithContext(ctx).
		Model(&models.OfflineTokenModel{}).
		Where("token = ? AND used_at IS NULL AND reconciled_at IS NULL", token).
		Updates(map[string]interface{}{
			"used_at":       usedAt,
			"reconciled_at": time.Now(),
			"printer_name":  printerName,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByToken(ctx, token); err != nil {
			return err
		}
		return shared.ErrAlreadyUsed
	}
	return nil
}

// DeleteExpiredBefore garbage-collects offline tokens past retention
func (r *GormOfflineTokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&models.OfflineTokenModel{})
	return result.RowsAffected, result.Error
}

// Ensure GormOfflineTokenRepository implements ledger.OfflineTokenRepository
var _ ledger.OfflineTokenRepository = (*GormOfflineTokenRepository)(nil)
