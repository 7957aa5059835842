package usecase

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log"

	"github.com/fasttransfer/relay/internal/domain/repository"
)

// ArchiveUseCase streams all files of a transfer into a single zip
// archive without materializing it in memory or on disk
type ArchiveUseCase struct {
	transfers *TransferUseCase
	storage   repository.StorageRepository
}

// NewArchiveUseCase creates a new archive use case
func NewArchiveUseCase(transfers *TransferUseCase, storage repository.StorageRepository) *ArchiveUseCase {
	return &ArchiveUseCase{
		transfers: transfers,
		storage:   storage,
	}
}

// Bundle writes the transfer's files to w as zip entries named after
// each file's original name. A missing blob is skipped with a warning
// rather than failing the whole bundle; the number of skipped entries
// is returned so the boundary can disclose it. The bundle counts as
// one download.
func (a *ArchiveUseCase) Bundle(ctx context.Context, transferID string, w io.Writer) (missing int, err error) {
	transfer, err := a.transfers.GetTransfer(ctx, transferID)
	if err != nil {
		return 0, err
	}

	files, err := a.transfers.metadata.ListFiles(ctx, transferID)
	if err != nil {
		return 0, err
	}

	zw := zip.NewWriter(w)
	seen := make(map[string]int)

	for _, file := range files {
		blob, err := a.storage.Open(ctx, transferID, file.SavedName)
		if err != nil {
			log.Printf("transfer %s: skipping %q in bundle: %v", transferID, file.OriginalName, err)
			missing++
			continue
		}

		name := file.OriginalName
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}
		seen[file.OriginalName]++

		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: file.UploadedAt,
		}
		entry, err := zw.CreateHeader(header)
		if err != nil {
			blob.Close()
			zw.Close()
			return missing, err
		}
		if _, err := io.Copy(entry, blob); err != nil {
			blob.Close()
			zw.Close()
			return missing, err
		}
		blob.Close()
	}

	if err := zw.Close(); err != nil {
		return missing, err
	}

	if err := a.transfers.metadata.IncrementDownloadCount(ctx, transfer.ID); err != nil {
		log.Printf("transfer %s: download count not recorded: %v", transferID, err)
	}
	return missing, nil
}
