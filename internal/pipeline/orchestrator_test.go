package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"claimflow/internal/domain"
	"claimflow/internal/extraction"
	"claimflow/internal/pipeline"
	"claimflow/internal/policy"
	"claimflow/internal/port"
	"claimflow/internal/structuring"
	"claimflow/mocks"
)

var (
	now  = time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)
	jpeg = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
)

const claimJSON = "```json\n" + `{"document_type":"statement_front","policyholder_information":{"policy_number":"AC-77120"},"description_of_incident":{"description":"Rear-ended at a light"},"confidence":"high"}` + "\n```"

const evaluationJSON = `{"matched_policy":{"id":"AUTO-1","score":0.8},"coverage_assessment":{"coverage_applicability":"covered"},"liability_assessment":{"at_fault_party":"third_party","estimated_fault_split":{"policyholder_percent":0,"third_party_percent":100}},"claim_validity":{"is_claim_valid":true,"confidence":"high"},"notes":null}`

type harness struct {
	vision    *mocks.MockVisionExtractor
	structR   *mocks.MockReasoner
	evalR     *mocks.MockReasoner
	retriever *mocks.MockRetriever
	registry  *mocks.MockIndexRegistry
}

func newHarness() *harness {
	h := &harness{
		vision:    new(mocks.MockVisionExtractor),
		structR:   new(mocks.MockReasoner),
		evalR:     new(mocks.MockReasoner),
		retriever: new(mocks.MockRetriever),
		registry:  new(mocks.MockIndexRegistry),
	}
	h.registry.On("GetIndex", mock.Anything, "policies", "1").Return(&port.IndexAsset{ID: "asset-1"}, nil).Maybe()
	return h
}

func (h *harness) orchestrator(evaluate bool) *pipeline.Orchestrator {
	clock := func() time.Time { return now }
	reader := extraction.MemoryReader{"in/crash1_front.jpeg": jpeg, "in/crash1_back.jpeg": jpeg}
	builder := structuring.NewBuilder(h.structR, structuring.Options{Model: "gpt-4o-mini", Clock: clock})
	evaluator := policy.NewEvaluator(
		policy.NewEnsurer(h.registry, "conn", "idx", time.Minute),
		h.retriever, h.evalR,
		policy.Options{AssetName: "policies", AssetVersion: "1", SearchIndex: "idx", Model: "gpt-4o-mini", Clock: clock})
	return pipeline.NewOrchestrator(extraction.NewAdapter(reader, h.vision), builder, evaluator,
		pipeline.Options{EvaluateEnabled: evaluate, Clock: clock})
}

func bundle() domain.ClaimBundle {
	return domain.ClaimBundle{ClaimID: "crash1", Sides: map[domain.ImageSide]string{
		domain.SideFront: "in/crash1_front.jpeg",
		domain.SideBack:  "in/crash1_back.jpeg",
	}}
}

func TestRun_FullPipeline(t *testing.T) {
	h := newHarness()
	h.vision.On("ExtractText", mock.Anything, mock.Anything).
		Return(&port.VisionOutput{Text: "AUTO CLAIM STATEMENT ...", ModelUsed: "gpt-4o"}, nil)
	h.structR.On("Complete", mock.Anything, mock.Anything).Return(&port.ReasoningResponse{Text: claimJSON}, nil)
	h.retriever.On("Search", mock.Anything, mock.Anything).Return([]port.SearchDocument{{ID: "doc-1", Content: "policy"}}, nil)
	h.evalR.On("Complete", mock.Anything, mock.Anything).Return(&port.ReasoningResponse{Text: evaluationJSON}, nil)

	res := h.orchestrator(true).Run(context.Background(), bundle())

	require.True(t, res.OK())
	assert.False(t, res.Degraded())
	assert.Nil(t, res.Failure)
	assert.Equal(t, []domain.RunState{
		domain.StateGrouped, domain.StateExtracted, domain.StateStructured, domain.StateEvaluated, domain.StateDone,
	}, res.Trace)

	md := res.Record.Metadata
	assert.Equal(t, "crash1_front.jpeg", md.GetString("source_file"))
	assert.Equal(t, "crash1", md.GetString("claim_id"))
	assert.Equal(t, "gpt-4o", md.GetString("extraction_model"))
	assert.Equal(t, pipeline.Workflow, md.GetString("workflow"))
	assert.Equal(t, res.RunID.String(), md.GetString("run_id"))
	images, _ := md.Get("source_images")
	assert.Equal(t, []string{"in/crash1_front.jpeg", "in/crash1_back.jpeg"}, images)
	assert.True(t, md.Has("policy_evaluation_agent"))

	stages := make([]string, 0, 3)
	for _, e := range md.Entries() {
		stages = append(stages, e.Stage)
	}
	assert.Equal(t, []string{"structuring", "orchestration", "policy_evaluation"}, stages)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "statement_front", out["document_type"])
	assert.Contains(t, out, "policy_evaluation")
}

func TestRun_ExtractionFailure(t *testing.T) {
	h := newHarness()
	h.vision.On("ExtractText", mock.Anything, mock.Anything).Return(nil, errors.New("vision unavailable"))

	res := h.orchestrator(true).Run(context.Background(), bundle())

	assert.False(t, res.OK())
	require.NotNil(t, res.Failure)
	assert.Equal(t, domain.StageExtraction, res.Failure.Stage)
	assert.Nil(t, res.Failure.Partial)
	assert.Equal(t, []domain.RunState{domain.StateGrouped, domain.StateFailed}, res.Trace)
	h.structR.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "Extraction failed", env["error"])
	assert.Equal(t, "extraction", env["stage"])
	assert.Equal(t, "crash1", env["claim_id"])
	assert.Contains(t, env["details"], "vision unavailable")
	assert.NotContains(t, env, "partial_result")
}

func TestRun_IncompleteBundleNeverReachesVision(t *testing.T) {
	h := newHarness()
	b := domain.ClaimBundle{ClaimID: "crash2", Sides: map[domain.ImageSide]string{domain.SideFront: "in/crash1_front.jpeg"}}

	res := h.orchestrator(true).Run(context.Background(), b)

	require.NotNil(t, res.Failure)
	assert.Equal(t, domain.StageExtraction, res.Failure.Stage)
	assert.ErrorIs(t, res.Failure.Err, domain.ErrIncompleteBundle)
	h.vision.AssertNotCalled(t, "ExtractText", mock.Anything, mock.Anything)
}

func TestRun_StructuringFailure(t *testing.T) {
	h := newHarness()
	h.vision.On("ExtractText", mock.Anything, mock.Anything).Return(&port.VisionOutput{Text: "text"}, nil)
	h.structR.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("model overloaded"))

	res := h.orchestrator(true).Run(context.Background(), bundle())

	require.NotNil(t, res.Failure)
	assert.Equal(t, domain.StageStructuring, res.Failure.Stage)
	assert.Nil(t, res.Failure.Partial)
	assert.Equal(t, "Structuring failed", res.Failure.Message())
}

func TestRun_EvaluationFailureKeepsPartialRecord(t *testing.T) {
	h := newHarness()
	h.vision.On("ExtractText", mock.Anything, mock.Anything).Return(&port.VisionOutput{Text: "text"}, nil)
	h.structR.On("Complete", mock.Anything, mock.Anything).Return(&port.ReasoningResponse{Text: claimJSON}, nil)
	h.retriever.On("Search", mock.Anything, mock.Anything).Return(nil, &goopenai.APIError{HTTPStatusCode: 503, Message: "busy"})

	// The same run without evaluation yields the record exactly as it stood
	// after structuring.
	structured := h.orchestrator(false).Run(context.Background(), bundle())
	require.True(t, structured.OK())
	want, err := json.Marshal(structured.Record)
	require.NoError(t, err)

	res := h.orchestrator(true).Run(context.Background(), bundle())

	require.NotNil(t, res.Failure)
	got, err := json.Marshal(res.Failure.Partial)
	require.NoError(t, err)
	assert.JSONEq(t,
		strings.ReplaceAll(string(want), structured.RunID.String(), res.RunID.String()),
		string(got))

	assert.Equal(t, domain.StagePolicyEvaluation, res.Failure.Stage)
	require.NotNil(t, res.Failure.Partial)
	assert.Nil(t, res.Failure.Partial.PolicyEvaluation)
	assert.Equal(t, domain.Text("statement_front"), *res.Failure.Partial.DocumentType)
	assert.Equal(t, "crash1", res.Failure.Partial.Metadata.GetString("claim_id"))
	assert.Nil(t, res.Record)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "Policy evaluation failed", env["error"])
	partial := env["partial_result"].(map[string]any)
	assert.Equal(t, "statement_front", partial["document_type"])
	assert.NotContains(t, partial, "policy_evaluation")
}

func TestRun_FallbackRecordContinuesToEvaluation(t *testing.T) {
	h := newHarness()
	h.vision.On("ExtractText", mock.Anything, mock.Anything).Return(&port.VisionOutput{Text: "text"}, nil)
	h.structR.On("Complete", mock.Anything, mock.Anything).Return(&port.ReasoningResponse{Text: "sorry, no JSON today"}, nil)
	h.retriever.On("Search", mock.Anything, mock.Anything).Return([]port.SearchDocument{}, nil)
	h.evalR.On("Complete", mock.Anything, mock.Anything).Return(&port.ReasoningResponse{Text: evaluationJSON}, nil)

	res := h.orchestrator(true).Run(context.Background(), bundle())

	require.True(t, res.OK())
	assert.True(t, res.Degraded())
	assert.Equal(t, structuring.FallbackError, res.Record.Error)
	assert.True(t, res.Record.Metadata.Has("processing_timestamp"))
	assert.NotNil(t, res.Record.PolicyEvaluation)
}

func TestRun_EvaluationDisabled(t *testing.T) {
	h := newHarness()
	h.vision.On("ExtractText", mock.Anything, mock.Anything).Return(&port.VisionOutput{Text: "text"}, nil)
	h.structR.On("Complete", mock.Anything, mock.Anything).Return(&port.ReasoningResponse{Text: claimJSON}, nil)

	res := h.orchestrator(false).Run(context.Background(), bundle())

	require.True(t, res.OK())
	assert.Nil(t, res.Record.PolicyEvaluation)
	assert.Equal(t, []domain.RunState{
		domain.StateGrouped, domain.StateExtracted, domain.StateStructured, domain.StateDone,
	}, res.Trace)
	h.retriever.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestResult_ClaimRun(t *testing.T) {
	stage := domain.StagePolicyEvaluation
	res := pipeline.Result{
		ClaimID:  "crash1",
		State:    domain.StateFailed,
		Failure:  &pipeline.Failure{Stage: stage, Detail: "search down", Partial: &domain.ClaimRecord{}},
		Attempts: 2,
	}

	run, err := res.ClaimRun()

	require.NoError(t, err)
	assert.Equal(t, "crash1", run.ClaimID)
	assert.Equal(t, domain.StateFailed, run.State)
	require.NotNil(t, run.FailedStage)
	assert.Equal(t, "policy_evaluation", *run.FailedStage)
	assert.Equal(t, "search down", *run.Detail)
	assert.Equal(t, 2, run.Attempts)
	assert.Contains(t, string(run.Record), `"error":"Policy evaluation failed"`)
}
