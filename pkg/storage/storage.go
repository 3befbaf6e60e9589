package storage

import (
	"context"
	"io"
	"time"
)

// Storage stages uploaded batch documents for asynchronous processing.
type Storage interface {
	// Store saves a document and returns its object key.
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	// Get opens a staged document.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes a staged document.
	Delete(ctx context.Context, key string) error
	// CleanupBefore removes staged documents older than threshold.
	CleanupBefore(ctx context.Context, threshold time.Time) error
}
