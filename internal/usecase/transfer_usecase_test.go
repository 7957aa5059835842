package usecase_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fasttransfer/relay/internal/domain/entities"
	"github.com/fasttransfer/relay/internal/usecase"
	"github.com/fasttransfer/relay/internal/usecase/mocks"
)

var testLimits = usecase.Limits{
	MaxFileSize: 2 << 30,
	MaxFiles:    10,
	Retention:   7 * 24 * time.Hour,
}

func newUploads(sizes ...int) []usecase.Upload {
	uploads := make([]usecase.Upload, 0, len(sizes))
	for i, size := range sizes {
		uploads = append(uploads, usecase.Upload{
			Name:     "file" + string(rune('a'+i)) + ".txt",
			MimeType: "text/plain",
			Size:     int64(size),
			Reader:   strings.NewReader(strings.Repeat("x", size)),
		})
	}
	return uploads
}

func TestTransferUseCase_CreateTransfer_Validation(t *testing.T) {
	tests := []struct {
		name    string
		limits  usecase.Limits
		uploads []usecase.Upload
	}{
		{
			name:    "empty batch",
			limits:  testLimits,
			uploads: nil,
		},
		{
			name:    "too many files",
			limits:  usecase.Limits{MaxFiles: 2, Retention: time.Hour},
			uploads: newUploads(1, 1, 1),
		},
		{
			name:    "declared size over limit",
			limits:  usecase.Limits{MaxFileSize: 10, Retention: time.Hour},
			uploads: []usecase.Upload{{Name: "big.bin", Size: 3 << 30, Reader: strings.NewReader("")}},
		},
		{
			name:    "disallowed type",
			limits:  usecase.Limits{AllowedTypes: []string{"image/png"}, Retention: time.Hour},
			uploads: []usecase.Upload{{Name: "a.exe", MimeType: "application/x-msdownload", Size: 1, Reader: strings.NewReader("x")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metadata := new(mocks.MockMetadataRepository)
			storage := new(mocks.MockStorageRepository)
			uc := usecase.NewTransferUseCase(metadata, storage, tt.limits)

			_, err := uc.CreateTransfer(context.Background(), tt.uploads, usecase.TransferMeta{})

			assert.True(t, entities.IsValidation(err), "expected validation error, got %v", err)
			// Validation failures must be decided before storage is touched
			storage.AssertNotCalled(t, "Allocate", mock.Anything, mock.Anything)
			storage.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			metadata.AssertNotCalled(t, "CreateTransfer", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestTransferUseCase_CreateTransfer_Aggregates(t *testing.T) {
	metadata := new(mocks.MockMetadataRepository)
	storage := new(mocks.MockStorageRepository)
	uc := usecase.NewTransferUseCase(metadata, storage, testLimits)

	storage.On("Allocate", mock.Anything, mock.Anything).Return(nil)
	storage.On("Store", mock.Anything, mock.Anything, mock.Anything, "filea.txt", testLimits.MaxFileSize).
		Return("1-filea.txt", int64(1048576), nil)
	storage.On("Store", mock.Anything, mock.Anything, mock.Anything, "fileb.txt", testLimits.MaxFileSize).
		Return("1-fileb.txt", int64(2097152), nil)
	storage.On("Store", mock.Anything, mock.Anything, mock.Anything, "filec.txt", testLimits.MaxFileSize).
		Return("1-filec.txt", int64(2097152), nil)
	metadata.On("CreateTransfer", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	uploads := []usecase.Upload{
		{Name: "filea.txt", MimeType: "text/plain", Size: 1048576, Reader: strings.NewReader("")},
		{Name: "fileb.txt", MimeType: "text/plain", Size: 2097152, Reader: strings.NewReader("")},
		{Name: "filec.txt", MimeType: "text/plain", Size: 2097152, Reader: strings.NewReader("")},
	}

	transfer, err := uc.CreateTransfer(context.Background(), uploads, usecase.TransferMeta{ReceiverEmail: "r@example.com"})
	require.NoError(t, err)

	assert.Equal(t, 3, transfer.FileCount)
	assert.Equal(t, int64(5242880), transfer.TotalSize)
	assert.Equal(t, 7*24*time.Hour, transfer.ExpiresAt.Sub(transfer.CreatedAt))
	assert.NotEmpty(t, transfer.ID)
	assert.Equal(t, "r@example.com", transfer.ReceiverEmail)

	metadata.AssertExpectations(t)
	storage.AssertExpectations(t)
}

func TestTransferUseCase_CreateTransfer_RollsBackOnStoreFailure(t *testing.T) {
	metadata := new(mocks.MockMetadataRepository)
	storage := new(mocks.MockStorageRepository)
	uc := usecase.NewTransferUseCase(metadata, storage, testLimits)

	storage.On("Allocate", mock.Anything, mock.Anything).Return(nil)
	storage.On("Store", mock.Anything, mock.Anything, mock.Anything, "filea.txt", mock.Anything).
		Return("1-filea.txt", int64(1), nil)
	storage.On("Store", mock.Anything, mock.Anything, mock.Anything, "fileb.txt", mock.Anything).
		Return("", int64(0), &entities.StorageError{Op: "store", Err: errors.New("disk full")})
	storage.On("Remove", mock.Anything, mock.Anything).Return(nil)

	_, err := uc.CreateTransfer(context.Background(), newUploads(1, 1), usecase.TransferMeta{})

	var se *entities.StorageError
	require.ErrorAs(t, err, &se)
	storage.AssertCalled(t, "Remove", mock.Anything, mock.Anything)
	metadata.AssertNotCalled(t, "CreateTransfer", mock.Anything, mock.Anything, mock.Anything)
}

func TestTransferUseCase_CreateTransfer_RollsBackOnMetadataFailure(t *testing.T) {
	metadata := new(mocks.MockMetadataRepository)
	storage := new(mocks.MockStorageRepository)
	uc := usecase.NewTransferUseCase(metadata, storage, testLimits)

	storage.On("Allocate", mock.Anything, mock.Anything).Return(nil)
	storage.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("saved", int64(1), nil)
	storage.On("Remove", mock.Anything, mock.Anything).Return(nil)
	metadata.On("CreateTransfer", mock.Anything, mock.Anything, mock.Anything).
		Return(&entities.PersistenceError{Op: "create transfer", Err: errors.New("db gone")})

	_, err := uc.CreateTransfer(context.Background(), newUploads(1), usecase.TransferMeta{})

	var pe *entities.PersistenceError
	require.ErrorAs(t, err, &pe)
	storage.AssertCalled(t, "Remove", mock.Anything, mock.Anything)
}

func liveTransfer(id string) *entities.Transfer {
	now := time.Now().UTC()
	return &entities.Transfer{
		ID:        id,
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(24 * time.Hour),
		FileCount: 1,
	}
}

func expiredTransfer(id string) *entities.Transfer {
	now := time.Now().UTC()
	return &entities.Transfer{
		ID:        id,
		CreatedAt: now.Add(-8 * 24 * time.Hour),
		ExpiresAt: now.Add(-24 * time.Hour),
		FileCount: 1,
	}
}

func TestTransferUseCase_GetDownloadableFiles(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(*mocks.MockMetadataRepository)
		wantErr   error
	}{
		{
			name: "unknown transfer",
			setupMock: func(m *mocks.MockMetadataRepository) {
				m.On("GetTransfer", mock.Anything, "t1").Return(nil, entities.ErrTransferNotFound)
			},
			wantErr: entities.ErrTransferNotFound,
		},
		{
			name: "expired transfer",
			setupMock: func(m *mocks.MockMetadataRepository) {
				m.On("GetTransfer", mock.Anything, "t1").Return(expiredTransfer("t1"), nil)
			},
			wantErr: entities.ErrTransferExpired,
		},
		{
			name: "live transfer",
			setupMock: func(m *mocks.MockMetadataRepository) {
				m.On("GetTransfer", mock.Anything, "t1").Return(liveTransfer("t1"), nil)
				m.On("ListFiles", mock.Anything, "t1").Return([]*entities.File{{ID: "f1", TransferID: "t1"}}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metadata := new(mocks.MockMetadataRepository)
			storage := new(mocks.MockStorageRepository)
			tt.setupMock(metadata)
			uc := usecase.NewTransferUseCase(metadata, storage, testLimits)

			files, err := uc.GetDownloadableFiles(context.Background(), "t1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Len(t, files, 1)
			}
		})
	}
}

func TestTransferUseCase_DownloadFile(t *testing.T) {
	file := &entities.File{ID: "f1", TransferID: "t1", SavedName: "1-a.txt", OriginalName: "a.txt", Size: 5}

	t.Run("success increments counter", func(t *testing.T) {
		metadata := new(mocks.MockMetadataRepository)
		storage := new(mocks.MockStorageRepository)
		metadata.On("GetTransfer", mock.Anything, "t1").Return(liveTransfer("t1"), nil)
		metadata.On("GetFile", mock.Anything, "t1", "f1").Return(file, nil)
		storage.On("Open", mock.Anything, "t1", "1-a.txt").Return(io.NopCloser(strings.NewReader("hello")), nil)
		metadata.On("IncrementDownloadCount", mock.Anything, "t1").Return(nil)

		uc := usecase.NewTransferUseCase(metadata, storage, testLimits)
		got, stream, err := uc.DownloadFile(context.Background(), "t1", "f1")

		require.NoError(t, err)
		defer stream.Close()
		body, _ := io.ReadAll(stream)
		assert.Equal(t, "hello", string(body))
		assert.Equal(t, "a.txt", got.OriginalName)
		metadata.AssertCalled(t, "IncrementDownloadCount", mock.Anything, "t1")
	})

	t.Run("increment failure does not block the download", func(t *testing.T) {
		metadata := new(mocks.MockMetadataRepository)
		storage := new(mocks.MockStorageRepository)
		metadata.On("GetTransfer", mock.Anything, "t1").Return(liveTransfer("t1"), nil)
		metadata.On("GetFile", mock.Anything, "t1", "f1").Return(file, nil)
		storage.On("Open", mock.Anything, "t1", "1-a.txt").Return(io.NopCloser(strings.NewReader("hello")), nil)
		metadata.On("IncrementDownloadCount", mock.Anything, "t1").Return(entities.ErrTransferNotFound)

		uc := usecase.NewTransferUseCase(metadata, storage, testLimits)
		_, stream, err := uc.DownloadFile(context.Background(), "t1", "f1")

		require.NoError(t, err)
		stream.Close()
	})

	t.Run("expired transfer", func(t *testing.T) {
		metadata := new(mocks.MockMetadataRepository)
		storage := new(mocks.MockStorageRepository)
		metadata.On("GetTransfer", mock.Anything, "t1").Return(expiredTransfer("t1"), nil)

		uc := usecase.NewTransferUseCase(metadata, storage, testLimits)
		_, _, err := uc.DownloadFile(context.Background(), "t1", "f1")

		assert.ErrorIs(t, err, entities.ErrTransferExpired)
	})

	t.Run("unknown transfer", func(t *testing.T) {
		metadata := new(mocks.MockMetadataRepository)
		storage := new(mocks.MockStorageRepository)
		metadata.On("GetTransfer", mock.Anything, "t1").Return(nil, entities.ErrTransferNotFound)

		uc := usecase.NewTransferUseCase(metadata, storage, testLimits)
		_, _, err := uc.DownloadFile(context.Background(), "t1", "f1")

		assert.ErrorIs(t, err, entities.ErrTransferNotFound)
	})

	t.Run("file from another transfer", func(t *testing.T) {
		metadata := new(mocks.MockMetadataRepository)
		storage := new(mocks.MockStorageRepository)
		metadata.On("GetTransfer", mock.Anything, "t1").Return(liveTransfer("t1"), nil)
		metadata.On("GetFile", mock.Anything, "t1", "f9").Return(nil, entities.ErrFileNotFound)

		uc := usecase.NewTransferUseCase(metadata, storage, testLimits)
		_, _, err := uc.DownloadFile(context.Background(), "t1", "f9")

		assert.ErrorIs(t, err, entities.ErrFileNotFound)
		metadata.AssertNotCalled(t, "IncrementDownloadCount", mock.Anything, mock.Anything)
	})
}

func TestTransferUseCase_DeleteExpiredTransfer(t *testing.T) {
	t.Run("metadata removed before storage", func(t *testing.T) {
		metadata := new(mocks.MockMetadataRepository)
		storage := new(mocks.MockStorageRepository)

		var order []string
		metadata.On("DeleteTransfer", mock.Anything, "t1").
			Run(func(mock.Arguments) { order = append(order, "metadata") }).Return(nil)
		storage.On("Remove", mock.Anything, "t1").
			Run(func(mock.Arguments) { order = append(order, "storage") }).Return(nil)

		uc := usecase.NewTransferUseCase(metadata, storage, testLimits)
		require.NoError(t, uc.DeleteExpiredTransfer(context.Background(), "t1"))
		assert.Equal(t, []string{"metadata", "storage"}, order)
	})

	t.Run("repeat delete succeeds", func(t *testing.T) {
		metadata := new(mocks.MockMetadataRepository)
		storage := new(mocks.MockStorageRepository)
		metadata.On("DeleteTransfer", mock.Anything, "t1").Return(nil).Twice()
		storage.On("Remove", mock.Anything, "t1").Return(nil).Twice()

		uc := usecase.NewTransferUseCase(metadata, storage, testLimits)
		require.NoError(t, uc.DeleteExpiredTransfer(context.Background(), "t1"))
		require.NoError(t, uc.DeleteExpiredTransfer(context.Background(), "t1"))
		metadata.AssertExpectations(t)
	})

	t.Run("storage untouched when metadata delete fails", func(t *testing.T) {
		metadata := new(mocks.MockMetadataRepository)
		storage := new(mocks.MockStorageRepository)
		metadata.On("DeleteTransfer", mock.Anything, "t1").
			Return(&entities.PersistenceError{Op: "delete transfer", Err: errors.New("locked")})

		uc := usecase.NewTransferUseCase(metadata, storage, testLimits)
		err := uc.DeleteExpiredTransfer(context.Background(), "t1")

		require.Error(t, err)
		storage.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
	})
}

func TestTransferUseCase_SetLimits(t *testing.T) {
	metadata := new(mocks.MockMetadataRepository)
	storage := new(mocks.MockStorageRepository)
	uc := usecase.NewTransferUseCase(metadata, storage, testLimits)

	uc.SetLimits(usecase.Limits{MaxFiles: 1, Retention: time.Hour})

	_, err := uc.CreateTransfer(context.Background(), newUploads(1, 1), usecase.TransferMeta{})
	assert.True(t, entities.IsValidation(err), "new limits not applied: %v", err)
}
