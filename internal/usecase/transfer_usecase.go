package usecase

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/fasttransfer/relay/internal/domain/entities"
	"github.com/fasttransfer/relay/internal/domain/repository"
	"github.com/google/uuid"
)

// Limits bounds what a single transfer may contain. Zero values
// disable the corresponding check; an empty AllowedTypes list admits
// any MIME type.
type Limits struct {
	MaxFileSize  int64
	MaxFiles     int
	AllowedTypes []string
	Retention    time.Duration
}

// Upload is one incoming file stream of a batch
type Upload struct {
	Name     string
	MimeType string
	Size     int64 // declared size; -1 when the client did not say
	Reader   io.Reader
}

// TransferMeta is the optional free-text metadata sent with an upload
type TransferMeta struct {
	SenderEmail   string
	ReceiverEmail string
	Message       string
}

// TransferUseCase orchestrates transfer creation, retrieval, download
// accounting and deletion across the storage and metadata layers
type TransferUseCase struct {
	metadata repository.MetadataRepository
	storage  repository.StorageRepository

	mu     sync.RWMutex
	limits Limits
}

// NewTransferUseCase creates a new transfer use case
func NewTransferUseCase(metadata repository.MetadataRepository, storage repository.StorageRepository, limits Limits) *TransferUseCase {
	return &TransferUseCase{
		metadata: metadata,
		storage:  storage,
		limits:   limits,
	}
}

// SetLimits swaps the active limits. Used by the config watcher; safe
// against concurrent uploads.
func (u *TransferUseCase) SetLimits(limits Limits) {
	u.mu.Lock()
	u.limits = limits
	u.mu.Unlock()
}

// Limits returns the active limits
func (u *TransferUseCase) Limits() Limits {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.limits
}

// CreateTransfer validates the batch, stores every stream and commits
// the metadata. An upload is all-or-nothing: any failure rolls back
// already-written blobs and leaves no metadata behind.
func (u *TransferUseCase) CreateTransfer(ctx context.Context, uploads []Upload, meta TransferMeta) (*entities.Transfer, error) {
	limits := u.Limits()

	if len(uploads) == 0 {
		return nil, entities.NewValidationError("no files in upload")
	}
	if limits.MaxFiles > 0 && len(uploads) > limits.MaxFiles {
		return nil, entities.NewValidationError("too many files: %d (limit %d)", len(uploads), limits.MaxFiles)
	}
	for _, up := range uploads {
		if limits.MaxFileSize > 0 && up.Size > limits.MaxFileSize {
			return nil, entities.NewValidationError("file %q exceeds the %d byte limit", up.Name, limits.MaxFileSize)
		}
		if !typeAllowed(limits.AllowedTypes, up.MimeType) {
			return nil, entities.NewValidationError("file type %q is not allowed", up.MimeType)
		}
	}

	transferID := uuid.NewString()
	if err := u.storage.Allocate(ctx, transferID); err != nil {
		return nil, err
	}

	createdAt := time.Now().UTC()
	files := make([]*entities.File, 0, len(uploads))
	var totalSize int64

	for _, up := range uploads {
		savedName, size, err := u.storage.Store(ctx, transferID, up.Reader, up.Name, limits.MaxFileSize)
		if err != nil {
			u.rollback(transferID)
			return nil, err
		}

		mimeType := up.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		files = append(files, &entities.File{
			ID:           uuid.NewString(),
			TransferID:   transferID,
			OriginalName: up.Name,
			SavedName:    savedName,
			Size:         size,
			MimeType:     mimeType,
			UploadedAt:   createdAt,
		})
		totalSize += size
	}

	transfer := &entities.Transfer{
		ID:            transferID,
		SenderEmail:   meta.SenderEmail,
		ReceiverEmail: meta.ReceiverEmail,
		Message:       meta.Message,
		CreatedAt:     createdAt,
		ExpiresAt:     createdAt.Add(limits.Retention),
		TotalSize:     totalSize,
		FileCount:     len(files),
	}

	if err := u.metadata.CreateTransfer(ctx, transfer, files); err != nil {
		u.rollback(transferID)
		return nil, err
	}

	log.Printf("transfer %s created: %d files, %d bytes", transferID, len(files), totalSize)
	return transfer, nil
}

// GetTransfer returns the transfer if it exists and has not expired
func (u *TransferUseCase) GetTransfer(ctx context.Context, transferID string) (*entities.Transfer, error) {
	transfer, err := u.metadata.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Expired(time.Now()) {
		return nil, entities.ErrTransferExpired
	}
	return transfer, nil
}

// GetDownloadableFiles lists the files of a live transfer.
// An expired transfer yields ErrTransferExpired, an unknown one
// ErrTransferNotFound.
func (u *TransferUseCase) GetDownloadableFiles(ctx context.Context, transferID string) ([]*entities.File, error) {
	if _, err := u.GetTransfer(ctx, transferID); err != nil {
		return nil, err
	}
	return u.metadata.ListFiles(ctx, transferID)
}

// DownloadFile streams one file of a transfer, counting the download.
// The file must belong to the named transfer.
func (u *TransferUseCase) DownloadFile(ctx context.Context, transferID, fileID string) (*entities.File, io.ReadCloser, error) {
	if _, err := u.GetTransfer(ctx, transferID); err != nil {
		return nil, nil, err
	}

	file, err := u.metadata.GetFile(ctx, transferID, fileID)
	if err != nil {
		return nil, nil, err
	}

	stream, err := u.storage.Open(ctx, transferID, file.SavedName)
	if err != nil {
		return nil, nil, err
	}

	// A lost increment must never block the user from their file;
	// a race with the sweeper surfaces here as a vanished row
	if err := u.metadata.IncrementDownloadCount(ctx, transferID); err != nil {
		log.Printf("transfer %s: download count not recorded: %v", transferID, err)
	}

	return file, stream, nil
}

// DeleteExpiredTransfer removes a transfer entirely. Metadata goes
// first: a crash in between strands at worst an orphan blob directory
// that a later sweep reclaims, never a metadata row pointing at
// missing files. Idempotent.
func (u *TransferUseCase) DeleteExpiredTransfer(ctx context.Context, transferID string) error {
	if err := u.metadata.DeleteTransfer(ctx, transferID); err != nil {
		return err
	}
	return u.storage.Remove(ctx, transferID)
}

// FindExpired exposes the shared cutoff criterion used by the sweeper
// and the maintenance entry point
func (u *TransferUseCase) FindExpired(ctx context.Context, now time.Time, grace time.Duration) ([]*entities.Transfer, error) {
	return u.metadata.FindExpired(ctx, now, grace)
}

func (u *TransferUseCase) rollback(transferID string) {
	// Best effort; an orphan directory is reclaimable later
	if err := u.storage.Remove(context.Background(), transferID); err != nil {
		log.Printf("transfer %s: rollback failed: %v", transferID, err)
	}
}

func typeAllowed(allowed []string, mimeType string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, t := range allowed {
		if t == mimeType {
			return true
		}
	}
	return false
}
