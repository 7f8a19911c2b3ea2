// Package storage persists uploaded paper bodies, behind a small interface
// so the gateway can run against a local filesystem in development and an
// S3-compatible object store in production, the way the teacher splits
// storage behind backend-specific files under its own storage package.
package storage

import (
	"context"
	"io"
)

// Store saves and retrieves a document's original uploaded bytes, keyed by
// an opaque storage path this package chooses at Save time.
type Store interface {
	// Save writes r under a backend-chosen path derived from filename and
	// returns that path for later Open/Delete calls.
	Save(ctx context.Context, filename string, r io.Reader) (storedPath string, err error)
	Open(ctx context.Context, storedPath string) (io.ReadCloser, error)
	Delete(ctx context.Context, storedPath string) error
}
