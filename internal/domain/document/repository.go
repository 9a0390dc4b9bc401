package document

import (
	"context"

	"github.com/google/uuid"
)

// Repository provides access to persisted documents
type Repository interface {
	// FindByID finds a document by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)

	// Save persists a new document. Documents are immutable; Save on an
	// existing ID is a caller bug.
	Save(ctx context.Context, doc *Document) error
}
