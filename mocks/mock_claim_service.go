package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"claimflow/internal/domain"
	"claimflow/internal/pipeline"
	"claimflow/internal/service"
)

// MockClaimService is a mock implementation of service.ClaimService.
type MockClaimService struct {
	mock.Mock
}

func (m *MockClaimService) ProcessUpload(ctx context.Context, input service.UploadInput) (*pipeline.Result, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Result), args.Error(1)
}

func (m *MockClaimService) Save(ctx context.Context, res pipeline.Result) error {
	args := m.Called(ctx, res)
	return args.Error(0)
}

func (m *MockClaimService) GetRun(ctx context.Context, id uuid.UUID) (*domain.ClaimRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClaimRun), args.Error(1)
}

func (m *MockClaimService) ListRuns(ctx context.Context, claimID string, offset, limit int) ([]domain.ClaimRun, int, error) {
	args := m.Called(ctx, claimID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.ClaimRun), args.Int(1), args.Error(2)
}

func (m *MockClaimService) ListAllRuns(ctx context.Context, offset, limit int) ([]domain.ClaimRun, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.ClaimRun), args.Int(1), args.Error(2)
}
