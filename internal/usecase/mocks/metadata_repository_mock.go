package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fasttransfer/relay/internal/domain/entities"
)

// MockMetadataRepository is a mock implementation of MetadataRepository
type MockMetadataRepository struct {
	mock.Mock
}

func (m *MockMetadataRepository) CreateTransfer(ctx context.Context, transfer *entities.Transfer, files []*entities.File) error {
	args := m.Called(ctx, transfer, files)
	return args.Error(0)
}

func (m *MockMetadataRepository) GetTransfer(ctx context.Context, id string) (*entities.Transfer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transfer), args.Error(1)
}

func (m *MockMetadataRepository) ListFiles(ctx context.Context, transferID string) ([]*entities.File, error) {
	args := m.Called(ctx, transferID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.File), args.Error(1)
}

func (m *MockMetadataRepository) GetFile(ctx context.Context, transferID, fileID string) (*entities.File, error) {
	args := m.Called(ctx, transferID, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.File), args.Error(1)
}

func (m *MockMetadataRepository) IncrementDownloadCount(ctx context.Context, transferID string) error {
	args := m.Called(ctx, transferID)
	return args.Error(0)
}

func (m *MockMetadataRepository) FindExpired(ctx context.Context, now time.Time, grace time.Duration) ([]*entities.Transfer, error) {
	args := m.Called(ctx, now, grace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Transfer), args.Error(1)
}

func (m *MockMetadataRepository) DeleteTransfer(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMetadataRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
