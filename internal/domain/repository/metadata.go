package repository

import (
	"context"
	"time"

	"github.com/fasttransfer/relay/internal/domain/entities"
)

// MetadataRepository defines the interface for the durable record of
// transfers and their files. It is the single source of truth for
// existence, expiry and download counts.
type MetadataRepository interface {
	// CreateTransfer inserts a transfer and its file rows as a single
	// logical unit. A failure leaves no partial rows behind.
	CreateTransfer(ctx context.Context, transfer *entities.Transfer, files []*entities.File) error

	// GetTransfer returns a transfer by id or entities.ErrTransferNotFound
	GetTransfer(ctx context.Context, id string) (*entities.Transfer, error)

	// ListFiles returns the files of a transfer in upload order
	ListFiles(ctx context.Context, transferID string) ([]*entities.File, error)

	// GetFile returns a file only if it belongs to the named transfer,
	// otherwise entities.ErrFileNotFound
	GetFile(ctx context.Context, transferID, fileID string) (*entities.File, error)

	// IncrementDownloadCount atomically bumps the transfer's counter.
	// Returns entities.ErrTransferNotFound if the row is gone; callers
	// on the retrieval path log that instead of propagating it.
	IncrementDownloadCount(ctx context.Context, transferID string) error

	// FindExpired returns transfers whose expiry precedes now minus
	// the grace window
	FindExpired(ctx context.Context, now time.Time, grace time.Duration) ([]*entities.Transfer, error)

	// DeleteTransfer removes the transfer row and its file rows
	// together. Deleting an absent transfer is a success.
	DeleteTransfer(ctx context.Context, id string) error

	// Close releases the underlying backend
	Close() error
}
