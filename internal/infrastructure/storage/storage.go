// Package storage provides object storage implementations for document
// content and rendered page artifacts.
package storage

import (
	"context"
	"time"
)

// ObjectStorage is the contract between the pipeline and the object store.
// Page artifacts and merged documents move through Upload/Download; content
// handed to offline clients goes out as a presigned URL.
type ObjectStorage interface {
	// Upload stores data under the given key, overwriting any previous object
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error

	// Download retrieves the object bytes and content type for the given key
	Download(ctx context.Context, storageKey string) ([]byte, string, error)

	// ObjectExists checks if an object exists in storage
	ObjectExists(ctx context.Context, storageKey string) (bool, error)

	// GenerateDownloadURL generates a presigned URL for downloading an object
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)

	// DeleteObject deletes an object from storage
	DeleteObject(ctx context.Context, storageKey string) error
}
