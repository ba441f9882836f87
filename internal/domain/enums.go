package domain

import "strings"

// ImageSide identifies which face of a paper statement an artifact shows.
type ImageSide string

const (
	SideFront ImageSide = "front"
	SideBack  ImageSide = "back"
)

// ParseImageSide case-normalizes a side token. It returns false for anything
// other than front or back.
func ParseImageSide(token string) (ImageSide, bool) {
	switch ImageSide(strings.ToLower(strings.TrimSpace(token))) {
	case SideFront:
		return SideFront, true
	case SideBack:
		return SideBack, true
	default:
		return "", false
	}
}

// AllowedExtensions maps accepted artifact extensions (without dot) to their
// MIME content type.
var AllowedExtensions = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
}

// ExtractionOutcome is the result flag of a vision extraction attempt.
type ExtractionOutcome string

const (
	OutcomeSuccess ExtractionOutcome = "success"
	OutcomeFailure ExtractionOutcome = "failure"
)

// Confidence is the self-reported confidence of a reasoning stage.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Severity grades a single damaged part.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityUnknown  Severity = "unknown"
)

// RepairAction is the estimated remedy for a damaged part.
type RepairAction string

const (
	ActionRepair  RepairAction = "repair"
	ActionReplace RepairAction = "replace"
	ActionUnsure  RepairAction = "unsure"
)

// CoverageApplicability is the evaluator's coverage verdict.
type CoverageApplicability string

const (
	CoverageCovered          CoverageApplicability = "covered"
	CoveragePartiallyCovered CoverageApplicability = "partially_covered"
	CoverageNotCovered       CoverageApplicability = "not_covered"
	CoverageUnclear          CoverageApplicability = "unclear"
)

// FaultParty names who is liable for the incident.
type FaultParty string

const (
	FaultPolicyholder FaultParty = "policyholder"
	FaultThirdParty   FaultParty = "third_party"
	FaultShared       FaultParty = "shared"
	FaultUnclear      FaultParty = "unclear"
)

// RunState is a claim's position in the pipeline state machine.
type RunState string

const (
	StateGrouped    RunState = "grouped"
	StateExtracted  RunState = "extracted"
	StateStructured RunState = "structured"
	StateEvaluated  RunState = "evaluated"
	StateDone       RunState = "done"
	StateFailed     RunState = "failed"
)

// Stage names a pipeline step for failure reporting and provenance.
type Stage string

const (
	StageExtraction       Stage = "extraction"
	StageStructuring      Stage = "structuring"
	StagePolicyEvaluation Stage = "policy_evaluation"
	StageOrchestration    Stage = "orchestration"
)
