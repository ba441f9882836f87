package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"claimflow/internal/config"
	"claimflow/internal/domain"
	"claimflow/internal/extraction"
	"claimflow/internal/grouping"
	"claimflow/internal/pipeline"
	"claimflow/internal/port"
)

// BatchSummary reports what one batch pass did.
type BatchSummary struct {
	Grouping  grouping.Result
	Results   []pipeline.Result
	Uploaded  int
	Persisted int
}

// Failed returns the number of runs that ended in the failed state.
func (s *BatchSummary) Failed() int {
	n := 0
	for i := range s.Results {
		if s.Results[i].State == domain.StateFailed {
			n++
		}
	}
	return n
}

// BatchService processes every complete claim found in a storage container.
type BatchService interface {
	Run(ctx context.Context) (*BatchSummary, error)
}

type batchService struct {
	storage   port.ObjectStorage
	claims    ClaimService
	newRunner RunnerFactory
	storeCfg  *config.StorageConfig
	opts      pipeline.BatchOptions
}

// NewBatchService creates a new BatchService. Results are uploaded beside the
// inputs under storeCfg.OutputPrefix and saved through claims.
func NewBatchService(
	storage port.ObjectStorage,
	claims ClaimService,
	newRunner RunnerFactory,
	storeCfg *config.StorageConfig,
	opts pipeline.BatchOptions,
) BatchService {
	return &batchService{
		storage:   storage,
		claims:    claims,
		newRunner: newRunner,
		storeCfg:  storeCfg,
		opts:      opts,
	}
}

func (s *batchService) Run(ctx context.Context) (*BatchSummary, error) {
	objects, err := s.storage.List(ctx, s.storeCfg.Container, s.storeCfg.InputPrefix)
	if err != nil {
		return nil, eris.Wrapf(err, "service: list %s", s.storeCfg.Container)
	}
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}

	summary := &BatchSummary{Grouping: grouping.Group(keys)}
	zap.L().Info("batchService.Run: grouped artifacts",
		zap.Int("artifacts", len(keys)),
		zap.Int("complete", len(summary.Grouping.Complete)),
		zap.Int("incomplete", len(summary.Grouping.Incomplete)),
		zap.Int("skipped", len(summary.Grouping.Skipped)))
	if len(summary.Grouping.Complete) == 0 {
		return summary, nil
	}

	runner := s.newRunner(extraction.NewStorageReader(s.storage, s.storeCfg.Container))
	var uploaded, persisted atomic.Int64
	sink := func(res pipeline.Result) {
		if err := s.upload(ctx, res); err != nil {
			zap.L().Error("batchService.Run: failed to upload result",
				zap.String("claim_id", res.ClaimID), zap.Error(err))
		} else {
			uploaded.Add(1)
		}

		err := s.claims.Save(ctx, res)
		switch {
		case err == nil:
			persisted.Add(1)
		case errors.Is(err, domain.ErrMissingConfig):
		default:
			zap.L().Error("batchService.Run: failed to persist run",
				zap.String("claim_id", res.ClaimID), zap.Error(err))
		}
	}

	results, runErr := pipeline.NewBatchRunner(runner, s.opts).RunAll(ctx, summary.Grouping.Complete, sink)
	summary.Results = results
	summary.Uploaded = int(uploaded.Load())
	summary.Persisted = int(persisted.Load())

	zap.L().Info("batchService.Run: batch finished",
		zap.Int("claims", len(results)), zap.Int("failed", summary.Failed()),
		zap.Int("uploaded", summary.Uploaded), zap.Int("persisted", summary.Persisted))
	return summary, runErr
}

// upload writes the result JSON to <output_prefix>/<claim>.json.
func (s *batchService) upload(ctx context.Context, res pipeline.Result) error {
	body, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return eris.Wrap(err, "service: marshal result")
	}
	_, err = s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.storeCfg.Container,
		Key:         ResultKey(s.storeCfg.OutputPrefix, res.ClaimID),
		Body:        bytes.NewReader(body),
		ContentType: "application/json",
		Size:        int64(len(body)),
	})
	return err
}

// ResultKey returns the storage key of a claim's result document.
func ResultKey(prefix, claimID string) string {
	return path.Join(prefix, claimID+".json")
}
