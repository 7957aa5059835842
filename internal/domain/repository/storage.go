package repository

import (
	"context"
	"io"
)

// StorageRepository defines the interface for physical blob storage.
// Blobs live in one directory per transfer identifier.
type StorageRepository interface {
	// Allocate creates the transfer's directory. Idempotent.
	Allocate(ctx context.Context, transferID string) error

	// Store writes a stream into the transfer's directory under a
	// sanitized, collision-resistant name derived from originalName.
	// maxSize > 0 caps the stream; exceeding it aborts the write,
	// removes the partial blob and returns a validation error.
	Store(ctx context.Context, transferID string, reader io.Reader, originalName string, maxSize int64) (savedName string, size int64, err error)

	// ListFiles enumerates the blobs actually on disk for a transfer
	ListFiles(ctx context.Context, transferID string) ([]string, error)

	// Open returns a reader over a stored blob. Fails with
	// entities.ErrFileNotFound if the blob is absent or the name
	// escapes the transfer's directory.
	Open(ctx context.Context, transferID, savedName string) (io.ReadCloser, error)

	// Remove recursively deletes the transfer's directory.
	// Removing an already-absent directory is a success.
	Remove(ctx context.Context, transferID string) error
}
