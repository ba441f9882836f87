package port

import (
	"context"

	"github.com/google/uuid"

	"claimflow/internal/domain"
)

// ClaimRunRepository persists pipeline outcomes.
type ClaimRunRepository interface {
	Create(ctx context.Context, run *domain.ClaimRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ClaimRun, error)
	ListByClaim(ctx context.Context, claimID string, offset, limit int) ([]domain.ClaimRun, int, error)
	ListAll(ctx context.Context, offset, limit int) ([]domain.ClaimRun, int, error)
}
