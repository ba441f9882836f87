package policy

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"claimflow/internal/domain"
	"claimflow/internal/llmjson"
	"claimflow/internal/metadata"
	"claimflow/internal/port"
)

// FallbackError is the error marker of an evaluation synthesized after the
// reasoning output could not be parsed.
const FallbackError = "JSON parsing failed"

// DefaultAgentName identifies this stage in record metadata.
const DefaultAgentName = "PolicyEvaluationAgent"

// Options configures an Evaluator.
type Options struct {
	// AssetName and AssetVersion address the index asset to ensure.
	AssetName    string
	AssetVersion string
	// SearchIndex is the index queried for policy documents.
	SearchIndex string
	TopK        int
	Semantic    bool

	Model       string
	AgentName   string
	Temperature float32
	MaxTokens   int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Evaluator attaches a PolicyEvaluation to a structured claim.
type Evaluator struct {
	ensurer   *Ensurer
	retriever port.Retriever
	reasoner  port.Reasoner
	opts      Options
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(ensurer *Ensurer, retriever port.Retriever, reasoner port.Reasoner, opts Options) *Evaluator {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.AgentName == "" {
		opts.AgentName = DefaultAgentName
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Evaluator{ensurer: ensurer, retriever: retriever, reasoner: reasoner, opts: opts}
}

// Evaluate retrieves candidate policies for record, asks the reasoning
// collaborator for an evaluation and attaches it to record. Unparsable output
// yields the conservative fallback evaluation. On error the record is left
// exactly as it was.
func (e *Evaluator) Evaluate(ctx context.Context, record *domain.ClaimRecord) (*domain.ClaimRecord, error) {
	if record == nil {
		return nil, eris.Wrap(domain.ErrInvalidInput, "policy: record is nil")
	}

	assetID, err := e.ensurer.Ensure(ctx, e.opts.AssetName, e.opts.AssetVersion)
	if err != nil {
		return nil, err
	}

	docs, err := e.retriever.Search(ctx, port.SearchQuery{
		Index:    e.opts.SearchIndex,
		Text:     searchText(record),
		TopK:     e.opts.TopK,
		Semantic: e.opts.Semantic,
	})
	if err != nil {
		return nil, eris.Wrap(err, "policy: search policy documents")
	}

	claimJSON, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "policy: marshal claim")
	}

	resp, err := e.reasoner.Complete(ctx, port.ReasoningRequest{
		Instruction: Instruction,
		Input:       buildInput(claimJSON, docs),
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil {
		return nil, eris.Wrap(err, "policy: reasoning call")
	}

	eval, parsed := llmjson.ParseOrFallback(resp.Text, fallbackEvaluation)
	if parsed {
		eval.Error, eval.ErrorDetails, eval.RawResponse = "", "", ""
	} else {
		zap.L().Warn("policy.Evaluator: unparsable response, using fallback evaluation",
			zap.String("error_details", eval.ErrorDetails))
	}

	model := resp.ModelUsed
	if model == "" {
		model = e.opts.Model
	}
	docIDs := make([]string, 0, len(docs))
	for _, d := range docs {
		docIDs = append(docIDs, d.ID)
	}

	record.PolicyEvaluation = &eval
	record.Normalize()
	now := e.opts.Clock()
	ts := metadata.Timestamp(now)
	record.Metadata.Merge(string(domain.StagePolicyEvaluation), now,
		metadata.F("processing_timestamp", ts),
		metadata.F("agent_model", model),
		metadata.F("policy_evaluation_agent", map[string]any{
			"name":                     e.opts.AgentName,
			"model":                    model,
			"ai_search_index_asset_id": assetID,
			"retrieved_documents":      docIDs,
		}),
		metadata.F("policy_evaluation_timestamp", ts),
	)

	zap.L().Info("policy.Evaluator: evaluation attached",
		zap.Int("documents", len(docs)), zap.Bool("fallback", !parsed),
		zap.String("coverage", string(eval.CoverageAssessment.CoverageApplicability)))
	return record, nil
}

func fallbackEvaluation(raw string, cause error) domain.PolicyEvaluation {
	return domain.PolicyEvaluation{
		MatchedPolicy: domain.MatchedPolicy{
			Score:   domain.Float64Ptr(0),
			Summary: domain.TextPtr("Policy evaluation agent failed to return valid JSON."),
		},
		CoverageAssessment: domain.CoverageAssessment{
			CoverageApplicability:  domain.CoverageUnclear,
			RelevantPolicySections: domain.TextPtr("No details; parsing error."),
		},
		LiabilityAssessment: domain.LiabilityAssessment{
			AtFaultParty: domain.FaultUnclear,
			EstimatedFaultSplit: domain.FaultSplit{
				PolicyholderPercent: domain.Float64Ptr(0),
				ThirdPartyPercent:   domain.Float64Ptr(0),
			},
			KeyFactors: domain.TextPtr("Could not parse LLM response."),
		},
		ClaimValidity: domain.ClaimValidity{
			PrimaryReasons: domain.TextPtr("LLM response could not be parsed."),
			Confidence:     domain.ConfidenceLow,
		},
		Notes:        domain.TextPtr("This object was generated by a fallback handler after JSON parsing failed."),
		Error:        FallbackError,
		ErrorDetails: llmjson.Describe(cause),
		RawResponse:  raw,
	}
}
