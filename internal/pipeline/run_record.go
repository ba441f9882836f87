package pipeline

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"claimflow/internal/domain"
)

// ClaimRun converts a Result into its persisted form. Record holds the same
// JSON the run prints.
func (r Result) ClaimRun() (*domain.ClaimRun, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: marshal result")
	}

	run := &domain.ClaimRun{
		ID:         r.RunID,
		ClaimID:    r.ClaimID,
		State:      r.State,
		Degraded:   r.Degraded(),
		Record:     body,
		Attempts:   r.Attempts,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Failure != nil {
		stage := string(r.Failure.Stage)
		detail := r.Failure.Detail
		run.FailedStage = &stage
		run.Detail = &detail
	}
	return run, nil
}
