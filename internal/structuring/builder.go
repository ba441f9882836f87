// Package structuring converts raw claim text into a ClaimRecord through the
// reasoning collaborator.
package structuring

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"claimflow/internal/domain"
	"claimflow/internal/llmjson"
	"claimflow/internal/metadata"
	"claimflow/internal/port"
)

// FallbackError is the error marker of a record synthesized after the
// reasoning output could not be parsed.
const FallbackError = "JSON parsing failed"

// DefaultAgentName identifies this stage in record metadata.
const DefaultAgentName = "StatementsDataExtractionAgent"

// Source describes where the raw text came from.
type Source struct {
	File    string
	ClaimID string
}

// Options configures a Builder.
type Options struct {
	// Model is recorded as agent_model when the collaborator does not report one.
	Model       string
	AgentName   string
	Temperature float32
	MaxTokens   int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Builder turns raw text into a ClaimRecord.
type Builder struct {
	reasoner port.Reasoner
	opts     Options
}

// NewBuilder creates a Builder.
func NewBuilder(reasoner port.Reasoner, opts Options) *Builder {
	if opts.AgentName == "" {
		opts.AgentName = DefaultAgentName
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Builder{reasoner: reasoner, opts: opts}
}

// Build asks the reasoning collaborator to structure rawText. Output that
// cannot be parsed yields a fallback record, not an error; an error is
// returned only when the collaborator call itself fails.
func (b *Builder) Build(ctx context.Context, rawText string, src Source) (*domain.ClaimRecord, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, eris.Wrap(domain.ErrInvalidInput, "structuring: raw text is empty")
	}

	resp, err := b.reasoner.Complete(ctx, port.ReasoningRequest{
		Instruction: Instruction,
		Input:       wrapInput(rawText),
		Temperature: b.opts.Temperature,
		MaxTokens:   b.opts.MaxTokens,
	})
	if err != nil {
		return nil, eris.Wrap(err, "structuring: reasoning call")
	}

	record, parsed := llmjson.ParseOrFallback(resp.Text, fallbackRecord)
	if parsed {
		// Markers and later-stage fields are owned by the pipeline, never by
		// the model.
		record.Error, record.ErrorDetails, record.RawResponse = "", "", ""
		record.PolicyEvaluation = nil
	} else {
		zap.L().Warn("structuring.Builder: unparsable response, using fallback record",
			zap.String("claim_id", src.ClaimID), zap.String("error_details", record.ErrorDetails))
	}
	record.Metadata = metadata.New()
	record.Normalize()

	model := resp.ModelUsed
	if model == "" {
		model = b.opts.Model
	}
	sourceFile := src.File
	if sourceFile == "" {
		sourceFile = "unknown"
	}
	now := b.opts.Clock()
	record.Metadata.Merge(string(domain.StageStructuring), now,
		metadata.F("source_file", sourceFile),
		metadata.F("processing_timestamp", metadata.Timestamp(now)),
		metadata.F("agent_model", model),
		metadata.F("agent_name", b.opts.AgentName),
		metadata.F("original_text_length", utf8.RuneCountInString(rawText)),
	)

	return &record, nil
}

func fallbackRecord(raw string, cause error) domain.ClaimRecord {
	return domain.ClaimRecord{
		Error:        FallbackError,
		ErrorDetails: llmjson.Describe(cause),
		RawResponse:  raw,
	}
}
