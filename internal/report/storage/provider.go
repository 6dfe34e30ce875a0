// Package storage uploads exported reports to object storage.
package storage

import (
	"context"
	"time"
)

// Provider stores report artifacts.
type Provider interface {
	// CheckBucket makes sure the target bucket exists.
	CheckBucket(ctx context.Context) error

	// Upload stores data under objectKey.
	Upload(ctx context.Context, objectKey, contentType string, data []byte) error

	// GeneratePresignedURL returns a temporary download link for objectKey.
	GeneratePresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}
