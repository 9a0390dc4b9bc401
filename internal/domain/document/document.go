// Package document holds the immutable Document record: a durable reference
// to rendered or uploaded content in object storage.
package document

import (
	"github.com/printpass/backend/internal/domain/shared"
)

// Kind distinguishes uploaded source content from pipeline output
type Kind string

const (
	KindSource    Kind = "SOURCE"
	KindGenerated Kind = "GENERATED"
)

// IsValid checks if the Kind is a valid value
func (k Kind) IsValid() bool {
	switch k {
	case KindSource, KindGenerated:
		return true
	}
	return false
}

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// Document is an immutable content record. It is created once, on upload or
// on merge completion, and never mutated or deleted by this system. Ledger
// entries reference documents by ID.
type Document struct {
	shared.BaseEntity
	StorageKey string
	MimeType   string
	Kind       Kind
}

// New creates a new Document record
func New(storageKey, mimeType string, kind Kind) (*Document, error) {
	if storageKey == "" {
		return nil, shared.NewDomainError("INVALID_STORAGE_KEY", "Storage key cannot be empty")
	}
	if mimeType == "" {
		return nil, shared.NewDomainError("INVALID_MIME_TYPE", "MIME type cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", "Invalid document kind: "+string(kind))
	}
	return &Document{
		BaseEntity: shared.NewBaseEntity(),
		StorageKey: storageKey,
		MimeType:   mimeType,
		Kind:       kind,
	}, nil
}

// IsGenerated returns true if the document was produced by the merge pipeline
func (d *Document) IsGenerated() bool {
	return d.Kind == KindGenerated
}
