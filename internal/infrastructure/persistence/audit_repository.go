package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/ledger"
	"github.com/printpass/backend/internal/domain/shared"
	"github.com/printpass/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditRepository implements ledger.AuditRepository using GORM.
// The table is append-only: this repository exposes no update or delete.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Append writes an audit entry
func (r *GormAuditRepository) Append(ctx context.Context, entry *ledger.AuditEntry) error {
	model := models.AuditLogModelFromDomain(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindForOwner lists audit entries for an owner, newest first
func (r *GormAuditRepository) FindForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]ledger.AuditEntry, error) {
	var logModels []models.AuditLogModel
	query := r.db.WithContext(ctx).
		Model(&models.AuditLogModel{}).
		Where("owner_id = ?", ownerID)

	for key, value := range filter.Filters {
		switch key {
		case "action":
			query = query.Where("action = ?", value)
		case "document_id":
			query = query.Where("document_id = ?", value)
		}
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	sortField := ValidateSortField(filter.OrderBy, AuditLogSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)

	if err := query.Order(sortField + " " + sortOrder).Find(&logModels).Error; err != nil {
		return nil, err
	}

	entries := make([]ledger.AuditEntry, len(logModels))
	for i, model := range logModels {
		entries[i] = *model.ToDomain()
	}
	return entries, nil
}

// Ensure GormAuditRepository implements ledger.AuditRepository
var _ ledger.AuditRepository = (*GormAuditRepository)(nil)
