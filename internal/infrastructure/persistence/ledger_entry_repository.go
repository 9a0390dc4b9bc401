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
	"gorm.io/gorm/clause"
)

// GormLedgerEntryRepository implements ledger.EntryRepository using GORM
type GormLedgerEntryRepository struct {
	db *gorm.DB
}

// NewGormLedgerEntryRepository creates a new GormLedgerEntryRepository
func NewGormLedgerEntryRepository(db *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: db}
}

// FindByID finds an entry by ID
func (r *GormLedgerEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	var model models.LedgerEntryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOwnerAndDocument finds the entry for an (owner, document) pair
func (r *GormLedgerEntryRepository) FindByOwnerAndDocument(ctx context.Context, ownerID, documentID uuid.UUID) (*ledger.Entry, error) {
	var model models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND document_id = ?", ownerID, documentID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForOwner lists entries belonging to an owner
func (r *GormLedgerEntryRepository) FindAllForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]ledger.Entry, error) {
	var entryModels []models.LedgerEntryModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).Where("owner_id = ?", ownerID), filter)

	if err := query.Find(&entryModels).Error; err != nil {
		return nil, err
	}

	entries := make([]ledger.Entry, len(entryModels))
	for i, model := range entryModels {
		entries[i] = *model.ToDomain()
	}
	return entries, nil
}

// CountForOwner counts entries belonging to an owner
func (r *GormLedgerEntryRepository) CountForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).Where("owner_id = ?", ownerID), filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save inserts a new entry
func (r *GormLedgerEntryRepository) Save(ctx context.Context, entry *ledger.Entry) error {
	model := models.LedgerEntryModelFromDomain(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// Upsert creates the entry for (owner, document) or refreshes an existing one
// with the incoming quota, zero usage and a fresh redemption identifier.
// The conflict target is the unique (owner_id, document_id) index.
func (r *GormLedgerEntryRepository) Upsert(ctx context.Context, entry *ledger.Entry) error {
	model := models.LedgerEntryModelFromDomain(entry)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_id"}, {Name: "document_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"assigned_quota":   model.AssignedQuota,
				"used_prints":      0,
				"status":           model.Status,
				"redemption_token": model.RedemptionToken,
				"updated_at":       time.Now(),
				"version":          gorm.Expr("ledger_entries.version + 1"),
			}),
		}).
		Create(model).Error
}

// ConsumePrint performs the guarded compare-and-increment that charges one
// print against the entry. The WHERE clause is the whole concurrency story:
// only rows that are ACTIVE with prints remaining can move, so N racing
// confirms on a one-print entry produce exactly one winner. When the
// increment lands on the quota boundary the same statement flips the entry
// to EXHAUSTED and clears the redemption token.
func (r *GormLedgerEntryRepository) ConsumePrint(ctx context.Context, entryID uuid.UUID) (*ledger.ConsumeResult, error) {
	var updated models.LedgerEntryModel
	result := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("id = ? AND status = ? AND used_prints < assigned_quota",
			entryID, string(ledger.EntryStatusActive)).
		Updates(map[string]interface{}{
			"used_prints": gorm.Expr("used_prints + 1"),
			"status": gorm.Expr("CASE WHEN used_prints + 1 >= assigned_quota THEN ? ELSE status END",
				string(ledger.EntryStatusExhausted)),
			"redemption_token": gorm.Expr("CASE WHEN used_prints + 1 >= assigned_quota THEN NULL ELSE redemption_token END"),
			"updated_at":       time.Now(),
			"version":          gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Either the entry does not exist or the guard rejected the increment.
		if _, err := r.FindByID(ctx, entryID); err != nil {
			return nil, err
		}
		return nil, shared.ErrQuotaExceeded
	}

	remaining := updated.AssignedQuota - updated.UsedPrints
	if remaining < 0 {
		remaining = 0
	}
	return &ledger.ConsumeResult{
		UsedPrints:      updated.UsedPrints,
		RemainingPrints: remaining,
		Exhausted:       ledger.EntryStatus(updated.Status) == ledger.EntryStatusExhausted,
	}, nil
}

// applyFilter applies filter options to the query
func (r *GormLedgerEntryRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	sortField := ValidateSortField(filter.OrderBy, LedgerEntrySortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	return query.Order(sortField + " " + sortOrder)
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormLedgerEntryRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "document_id":
			query = query.Where("document_id = ?", value)
		}
	}
	return query
}

// Ensure GormLedgerEntryRepository implements ledger.EntryRepository
var _ ledger.EntryRepository = (*GormLedgerEntryRepository)(nil)
