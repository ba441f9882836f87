package service

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"claimflow/internal/domain"
	"claimflow/internal/extraction"
	"claimflow/internal/grouping"
	"claimflow/internal/pipeline"
	"claimflow/internal/port"
)

// RunnerFactory builds a pipeline runner that reads artifacts from reader.
type RunnerFactory func(reader port.ArtifactReader) pipeline.Runner

// UploadInput is the DTO for a single uploaded statement image.
type UploadInput struct {
	FileName string
	Data     []byte
}

// ClaimService defines the claim processing contract used by the HTTP API.
type ClaimService interface {
	ProcessUpload(ctx context.Context, input UploadInput) (*pipeline.Result, error)
	Save(ctx context.Context, res pipeline.Result) error
	GetRun(ctx context.Context, id uuid.UUID) (*domain.ClaimRun, error)
	ListRuns(ctx context.Context, claimID string, offset, limit int) ([]domain.ClaimRun, int, error)
	ListAllRuns(ctx context.Context, offset, limit int) ([]domain.ClaimRun, int, error)
}

type claimService struct {
	newRunner RunnerFactory
	runs      port.ClaimRunRepository
}

// NewClaimService creates a new ClaimService. runs may be nil, in which case
// results are not persisted and the run queries return ErrMissingConfig.
func NewClaimService(newRunner RunnerFactory, runs port.ClaimRunRepository) ClaimService {
	return &claimService{newRunner: newRunner, runs: runs}
}

// ProcessUpload runs one uploaded image through the pipeline as a
// single-image claim. Input errors are returned before any stage runs; a
// failed run is a Result, not an error.
func (s *claimService) ProcessUpload(ctx context.Context, input UploadInput) (*pipeline.Result, error) {
	name := path.Base(strings.TrimSpace(input.FileName))
	if name == "" || name == "." || name == "/" {
		return nil, eris.Wrap(domain.ErrInvalidInput, "service: file name is required")
	}
	if len(input.Data) == 0 {
		return nil, eris.Wrapf(domain.ErrInvalidInput, "service: %s is empty", name)
	}
	if _, ok := extraction.ContentType(name, input.Data); !ok {
		return nil, eris.Wrapf(domain.ErrUnsupportedFileType, "service: %s", name)
	}

	claimID := grouping.ClaimID(name)
	runner := s.newRunner(extraction.MemoryReader{name: input.Data})
	res := runner.Run(ctx, extraction.SingleImageBundle(claimID, name))
	res.Attempts = 1

	zap.L().Info("claimService.ProcessUpload: run finished",
		zap.String("claim_id", claimID), zap.String("run_id", res.RunID.String()),
		zap.String("state", string(res.State)))

	if err := s.Save(ctx, res); err != nil && !errors.Is(err, domain.ErrMissingConfig) {
		zap.L().Warn("claimService.ProcessUpload: failed to persist run",
			zap.String("run_id", res.RunID.String()), zap.Error(err))
	}
	return &res, nil
}

// Save persists a terminal result.
func (s *claimService) Save(ctx context.Context, res pipeline.Result) error {
	if s.runs == nil {
		return eris.Wrap(domain.ErrMissingConfig, "service: results store not configured")
	}
	run, err := res.ClaimRun()
	if err != nil {
		return err
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return eris.Wrapf(err, "service: save run %s", run.ID)
	}
	return nil
}

func (s *claimService) GetRun(ctx context.Context, id uuid.UUID) (*domain.ClaimRun, error) {
	if s.runs == nil {
		return nil, eris.Wrap(domain.ErrMissingConfig, "service: results store not configured")
	}
	return s.runs.GetByID(ctx, id)
}

func (s *claimService) ListRuns(ctx context.Context, claimID string, offset, limit int) ([]domain.ClaimRun, int, error) {
	if s.runs == nil {
		return nil, 0, eris.Wrap(domain.ErrMissingConfig, "service: results store not configured")
	}
	if strings.TrimSpace(claimID) == "" {
		return nil, 0, eris.Wrap(domain.ErrInvalidInput, "service: claim id is required")
	}
	return s.runs.ListByClaim(ctx, claimID, offset, limit)
}

func (s *claimService) ListAllRuns(ctx context.Context, offset, limit int) ([]domain.ClaimRun, int, error) {
	if s.runs == nil {
		return nil, 0, eris.Wrap(domain.ErrMissingConfig, "service: results store not configured")
	}
	return s.runs.ListAll(ctx, offset, limit)
}

// exportPageSize is the number of runs fetched per page by AllRuns.
const exportPageSize = 200

// AllRuns pages through every stored run, or every run of claimID when it is
// not empty.
func AllRuns(ctx context.Context, svc ClaimService, claimID string) ([]domain.ClaimRun, error) {
	var all []domain.ClaimRun
	for offset := 0; ; offset += exportPageSize {
		var (
			page  []domain.ClaimRun
			total int
			err   error
		)
		if claimID != "" {
			page, total, err = svc.ListRuns(ctx, claimID, offset, exportPageSize)
		} else {
			page, total, err = svc.ListAllRuns(ctx, offset, exportPageSize)
		}
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 || offset+len(page) >= total {
			return all, nil
		}
	}
}
