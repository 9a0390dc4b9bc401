package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/ledger"
	"github.com/printpass/backend/internal/domain/shared"
	"github.com/printpass/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPrintTokenRepository implements ledger.PrintTokenRepository using GORM
type GormPrintTokenRepository struct {
	db *gorm.DB
}

// NewGormPrintTokenRepository creates a new GormPrintTokenRepository
func NewGormPrintTokenRepository(db *gorm.DB) *GormPrintTokenRepository {
	return &GormPrintTokenRepository{db: db}
}

// FindByToken finds a token by its opaque value
func (r *GormPrintTokenRepository) FindByToken(ctx context.Context, token string) (*ledger.PrintToken, error) {
	var model models.PrintTokenModel
	if err := r.db.WithContext(ctx).First(&model, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOutstanding returns the unfetched, unexpired, uninvalidated token for a
// ledger entry, or shared.ErrNotFound if none is outstanding.
func (r *GormPrintTokenRepository) FindOutstanding(ctx context.Context, entryID uuid.UUID, now time.Time) (*ledger.PrintToken, error) {
	var model models.PrintTokenModel
	if err := r.db.WithContext(ctx).
		Where("ledger_entry_id = ? AND fetched_at IS NULL AND invalidated_at IS NULL AND expires_at > ?", entryID, now).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save inserts a new token. The partial unique index on in-flight tokens
// admits one unfetched, uninvalidated token per ledger entry, so two racing
// issues resolve to one winner; the loser maps to shared.ErrAlreadyInFlight.
func (r *GormPrintTokenRepository) Save(ctx context.Context, token *ledger.PrintToken) error {
	model := models.PrintTokenModelFromDomain(token)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyInFlight
		}
		return err
	}
	return nil
}

// InvalidateExpired voids unfetched tokens whose expiry has passed. An
// expired token still occupies the entry's in-flight slot until it is
// invalidated, so issuance clears stale rows before inserting.
func (r *GormPrintTokenRepository) InvalidateExpired(ctx context.Context, entryID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PrintTokenModel{}).
		Where("ledger_entry_id = ? AND fetched_at IS NULL AND invalidated_at IS NULL AND expires_at <= ?", entryID, now).
		Updates(map[string]interface{}{
			"invalidated_at": now,
			"updated_at":     now,
		})
	return result.RowsAffected, result.Error
}

// MarkFetched sets fetched_at exactly once. The `fetched_at IS NULL` guard
// means two concurrent fetches of the same token resolve to one winner; the
// loser maps to shared.ErrAlreadyUsed.
func (r *GormPrintTokenRepository) MarkFetched(ctx context.Context, token string, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.PrintTokenModel{}).
		Where("token = ? AND fetched_at IS NULL AND invalidated_at IS NULL", token).
		Updates(map[string]interface{}{
			"fetched_at": now,
			"updated_at": now,
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

// MarkUsed records the confirmed physical print exactly once. The token must
// already have been fetched.
func (r *GormPrintTokenRepository) MarkUsed(ctx context.Context, token string, now time.Time, printerName string) error {
	result := r.db.WithContext(ctx).
		Model(&models.PrintTokenModel{}).
		Where("token = ? AND fetched_at IS NOT NULL AND used_at IS NULL AND invalidated_at IS NULL", token).
		Updates(map[string]interface{}{
			"used_at":      now,
			"printer_name": printerName,
			"updated_at":   now,
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

// InvalidateOutstanding voids every unused, unfetched token on a ledger
// entry. Called when the entry exhausts so a stale token cannot fetch
// content afterwards.
func (r *GormPrintTokenRepository) InvalidateOutstanding(ctx context.Context, entryID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PrintTokenModel{}).
		Where("ledger_entry_id = ? AND used_at IS NULL AND fetched_at IS NULL AND invalidated_at IS NULL", entryID).
		Updates(map[string]interface{}{
			"invalidated_at": now,
			"updated_at":     now,
		})
	return result.RowsAffected, result.Error
}

// DeleteExpiredBefore garbage-collects tokens whose expiry predates the cutoff
func (r *GormPrintTokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&models.PrintTokenModel{})
	return result.RowsAffected, result.Error
}

// Ensure GormPrintTokenRepository implements ledger.PrintTokenRepository
var _ ledger.PrintTokenRepository = (*GormPrintTokenRepository)(nil)
