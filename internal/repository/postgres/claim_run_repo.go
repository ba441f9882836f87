package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"

	"claimflow/internal/domain"
	"claimflow/internal/port"
)

type claimRunRepo struct {
	db *sqlx.DB
}

// NewClaimRunRepo creates a new PostgreSQL-backed ClaimRunRepository.
func NewClaimRunRepo(db *sqlx.DB) port.ClaimRunRepository {
	return &claimRunRepo{db: db}
}

func (r *claimRunRepo) Create(ctx context.Context, run *domain.ClaimRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.CreatedAt = time.Now().UTC()

	query := `INSERT INTO claim_runs
		(id, claim_id, state, failed_stage, detail, degraded, record, attempts,
		 started_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.ClaimID, run.State, run.FailedStage, run.Detail, run.Degraded,
		[]byte(run.Record), run.Attempts, run.StartedAt, run.FinishedAt, run.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "claimRunRepo.Create")
	}
	return nil
}

func (r *claimRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ClaimRun, error) {
	var run domain.ClaimRun
	err := r.db.GetContext(ctx, &run, "SELECT * FROM claim_runs WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrClaimRunNotFound
		}
		return nil, eris.Wrap(err, "claimRunRepo.GetByID")
	}
	return &run, nil
}

func (r *claimRunRepo) ListByClaim(ctx context.Context, claimID string, offset, limit int) ([]domain.ClaimRun, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM claim_runs WHERE claim_id = $1", claimID)
	if err != nil {
		return nil, 0, eris.Wrap(err, "claimRunRepo.ListByClaim count")
	}

	var runs []domain.ClaimRun
	err = r.db.SelectContext(ctx, &runs,
		`SELECT * FROM claim_runs WHERE claim_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		claimID, limit, offset)
	if err != nil {
		return nil, 0, eris.Wrap(err, "claimRunRepo.ListByClaim")
	}
	return runs, total, nil
}

func (r *claimRunRepo) ListAll(ctx context.Context, offset, limit int) ([]domain.ClaimRun, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM claim_runs"); err != nil {
		return nil, 0, eris.Wrap(err, "claimRunRepo.ListAll count")
	}

	var runs []domain.ClaimRun
	err := r.db.SelectContext(ctx, &runs,
		"SELECT * FROM claim_runs ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, 0, eris.Wrap(err, "claimRunRepo.ListAll")
	}
	return runs, total, nil
}
