// Package storage writes workout plan exports to object storage.
package storage

import (
	"context"
	"time"
)

// DefaultPresignedURLExpiry is used when no expiry is given.
const DefaultPresignedURLExpiry = 15 * time.Minute

// FileStorage defines the object storage operations the exporter needs.
type FileStorage interface {
	// PutObject uploads body under objectKey.
	PutObject(ctx context.Context, objectKey, contentType string, body []byte) error

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET
	// requests for the object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}
