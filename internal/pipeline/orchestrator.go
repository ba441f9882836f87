// Package pipeline runs claims through extraction, structuring and policy
// evaluation.
package pipeline

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"claimflow/internal/domain"
	"claimflow/internal/metadata"
	"claimflow/internal/structuring"
)

// Workflow is recorded in record metadata for every orchestrated run.
const Workflow = "multi-agent"

// Extractor turns a claim bundle into raw text.
type Extractor interface {
	Extract(ctx context.Context, bundle domain.ClaimBundle) domain.RawExtraction
}

// RecordBuilder turns raw text into a structured claim record.
type RecordBuilder interface {
	Build(ctx context.Context, rawText string, src structuring.Source) (*domain.ClaimRecord, error)
}

// PolicyEvaluator attaches a policy evaluation to a record.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, record *domain.ClaimRecord) (*domain.ClaimRecord, error)
}

// Failure describes why a run ended in the failed state.
type Failure struct {
	Stage  domain.Stage `json:"stage"`
	Detail string       `json:"details"`
	// Partial is the record as it stood before the failing stage, when one
	// existed.
	Partial *domain.ClaimRecord `json:"partial_result,omitempty"`
	// Err is the underlying error, kept for retry classification.
	Err error `json:"-"`
}

// Message is the headline error of the failure envelope.
func (f *Failure) Message() string {
	switch f.Stage {
	case domain.StageExtraction:
		return "Extraction failed"
	case domain.StageStructuring:
		return "Structuring failed"
	case domain.StagePolicyEvaluation:
		return "Policy evaluation failed"
	default:
		return "Processing failed"
	}
}

// Result is the terminal outcome of one run. Exactly one of Record and
// Failure is set.
type Result struct {
	RunID      uuid.UUID
	ClaimID    string
	State      domain.RunState
	Trace      []domain.RunState
	Record     *domain.ClaimRecord
	Failure    *Failure
	Attempts   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// OK reports whether the run completed.
func (r Result) OK() bool {
	return r.State == domain.StateDone && r.Record != nil
}

// Degraded reports whether the run completed with a fallback record or
// fallback evaluation.
func (r Result) Degraded() bool {
	if r.Record == nil {
		return false
	}
	if r.Record.IsFallback() {
		return true
	}
	return r.Record.PolicyEvaluation != nil && r.Record.PolicyEvaluation.IsFallback()
}

type failureEnvelope struct {
	Error         string              `json:"error"`
	Stage         domain.Stage        `json:"stage"`
	Details       string              `json:"details"`
	ClaimID       string              `json:"claim_id"`
	PartialResult *domain.ClaimRecord `json:"partial_result,omitempty"`
}

// MarshalJSON emits the record of a completed run, or the failure envelope.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Failure == nil {
		return json.Marshal(r.Record)
	}
	return json.Marshal(failureEnvelope{
		Error:         r.Failure.Message(),
		Stage:         r.Failure.Stage,
		Details:       r.Failure.Detail,
		ClaimID:       r.ClaimID,
		PartialResult: r.Failure.Partial,
	})
}

// Options configures an Orchestrator.
type Options struct {
	// EvaluateEnabled runs policy evaluation after structuring. When false a
	// run ends after the structured state.
	EvaluateEnabled bool
	Clock           func() time.Time
}

// Orchestrator drives one claim through the pipeline stages in order. It
// never retries and imposes no deadline of its own.
type Orchestrator struct {
	extractor Extractor
	builder   RecordBuilder
	evaluator PolicyEvaluator
	opts      Options
}

// NewOrchestrator creates an Orchestrator. A nil evaluator disables
// evaluation.
func NewOrchestrator(extractor Extractor, builder RecordBuilder, evaluator PolicyEvaluator, opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if evaluator == nil {
		opts.EvaluateEnabled = false
	}
	return &Orchestrator{extractor: extractor, builder: builder, evaluator: evaluator, opts: opts}
}

// run accumulates the state trace of one claim.
type run struct {
	res *Result
	log *zap.Logger
}

func (r *run) advance(state domain.RunState) {
	r.res.State = state
	r.res.Trace = append(r.res.Trace, state)
	r.log.Debug("pipeline.Orchestrator: state", zap.String("state", string(state)))
}

// Run processes one bundle. It always returns a terminal Result.
func (o *Orchestrator) Run(ctx context.Context, bundle domain.ClaimBundle) Result {
	res := Result{
		RunID:     uuid.New(),
		ClaimID:   bundle.ClaimID,
		Attempts:  1,
		StartedAt: o.opts.Clock(),
	}
	r := &run{res: &res, log: zap.L().With(zap.String("claim_id", bundle.ClaimID), zap.String("run_id", res.RunID.String()))}
	r.advance(domain.StateGrouped)

	raw := o.extractor.Extract(ctx, bundle)
	if !raw.Succeeded() {
		return o.fail(r, domain.StageExtraction, raw.Error, nil, raw.Cause)
	}
	r.advance(domain.StateExtracted)

	record, err := o.builder.Build(ctx, raw.Text, structuring.Source{File: sourceFile(bundle), ClaimID: bundle.ClaimID})
	if err != nil {
		return o.fail(r, domain.StageStructuring, err.Error(), nil, err)
	}
	record.Normalize()
	record.Metadata.Merge(string(domain.StageOrchestration), o.opts.Clock(),
		metadata.F("claim_id", bundle.ClaimID),
		metadata.F("source_images", bundle.Artifacts()),
		metadata.F("extraction_model", raw.Model),
		metadata.F("ocr_characters", len([]rune(raw.Text))),
		metadata.F("workflow", Workflow),
		metadata.F("run_id", res.RunID.String()),
	)
	r.advance(domain.StateStructured)
	if record.IsFallback() {
		r.log.Warn("pipeline.Orchestrator: structuring produced a fallback record, continuing")
	}

	if o.opts.EvaluateEnabled {
		if _, err := o.evaluator.Evaluate(ctx, record); err != nil {
			return o.fail(r, domain.StagePolicyEvaluation, err.Error(), record, err)
		}
		r.advance(domain.StateEvaluated)
	}

	res.Record = record
	r.advance(domain.StateDone)
	res.FinishedAt = o.opts.Clock()
	r.log.Info("pipeline.Orchestrator: run complete",
		zap.Bool("degraded", res.Degraded()), zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)))
	return res
}

func (o *Orchestrator) fail(r *run, stage domain.Stage, detail string, partial *domain.ClaimRecord, err error) Result {
	r.res.Failure = &Failure{Stage: stage, Detail: detail, Partial: partial, Err: err}
	r.advance(domain.StateFailed)
	r.res.FinishedAt = o.opts.Clock()
	r.log.Error("pipeline.Orchestrator: run failed",
		zap.String("stage", string(stage)), zap.String("detail", detail))
	return *r.res
}

func sourceFile(bundle domain.ClaimBundle) string {
	if keys := bundle.Artifacts(); len(keys) > 0 {
		return path.Base(keys[0])
	}
	return ""
}
