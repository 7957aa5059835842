package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockStorageRepository is a mock implementation of StorageRepository
type MockStorageRepository struct {
	mock.Mock
}

func (m *MockStorageRepository) Allocate(ctx context.Context, transferID string) error {
	args := m.Called(ctx, transferID)
	return args.Error(0)
}

func (m *MockStorageRepository) Store(ctx context.Context, transferID string, reader io.Reader, originalName string, maxSize int64) (string, int64, error) {
	args := m.Called(ctx, transferID, reader, originalName, maxSize)
	return args.String(0), args.Get(1).(int64), args.Error(2)
}

func (m *MockStorageRepository) ListFiles(ctx context.Context, transferID string) ([]string, error) {
	args := m.Called(ctx, transferID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorageRepository) Open(ctx context.Context, transferID, savedName string) (io.ReadCloser, error) {
	args := m.Called(ctx, transferID, savedName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockStorageRepository) Remove(ctx context.Context, transferID string) error {
	args := m.Called(ctx, transferID)
	return args.Error(0)
}
