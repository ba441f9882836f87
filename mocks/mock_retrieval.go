package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"claimflow/internal/port"
)

// MockRetriever is a mock implementation of port.Retriever.
type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Search(ctx context.Context, query port.SearchQuery) ([]port.SearchDocument, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]port.SearchDocument), args.Error(1)
}

// MockIndexRegistry is a mock implementation of port.IndexRegistry.
type MockIndexRegistry struct {
	mock.Mock
}

func (m *MockIndexRegistry) GetIndex(ctx context.Context, name, version string) (*port.IndexAsset, error) {
	args := m.Called(ctx, name, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.IndexAsset), args.Error(1)
}

func (m *MockIndexRegistry) CreateOrUpdateIndex(ctx context.Context, asset port.IndexAsset) (*port.IndexAsset, error) {
	args := m.Called(ctx, asset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.IndexAsset), args.Error(1)
}
