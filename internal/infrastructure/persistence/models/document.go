package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/document"
	"github.com/printpass/backend/internal/domain/shared"
)

// DocumentModel is the GORM model for the documents table
type DocumentModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	StorageKey string    `gorm:"column:storage_key;type:varchar(512);not null;uniqueIndex"`
	MimeType   string    `gorm:"column:mime_type;type:varchar(100);not null"`
	Kind       string    `gorm:"type:varchar(20);not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for DocumentModel
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts DocumentModel to a domain Document
func (m *DocumentModel) ToDomain() *document.Document {
	return &document.Document{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		StorageKey: m.StorageKey,
		MimeType:   m.MimeType,
		Kind:       document.Kind(m.Kind),
	}
}

// DocumentModelFromDomain creates a DocumentModel from a domain Document
func DocumentModelFromDomain(d *document.Document) *DocumentModel {
	return &DocumentModel{
		ID:         d.ID,
		StorageKey: d.StorageKey,
		MimeType:   d.MimeType,
		Kind:       string(d.Kind),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}
