package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"claimflow/internal/metadata"
)

// ClaimBundle groups the artifacts of one claim by side. Sides maps each side
// to an artifact key understood by the configured ArtifactReader.
type ClaimBundle struct {
	ClaimID string               `json:"claim_id"`
	Sides   map[ImageSide]string `json:"sides"`

	// SingleImage marks a bundle built from one uploaded image rather than a
	// grouped front/back pair. Grouping never sets it.
	SingleImage bool `json:"single_image,omitempty"`
}

// Complete reports whether both sides are present.
func (b ClaimBundle) Complete() bool {
	return b.Sides[SideFront] != "" && b.Sides[SideBack] != ""
}

// Artifacts returns the artifact keys in extraction order (front, then back).
func (b ClaimBundle) Artifacts() []string {
	var out []string
	for _, side := range []ImageSide{SideFront, SideBack} {
		if key := b.Sides[side]; key != "" {
			out = append(out, key)
		}
	}
	return out
}

// RawExtraction is the immutable output of the extraction adapter.
type RawExtraction struct {
	ClaimID string            `json:"claim_id"`
	Outcome ExtractionOutcome `json:"outcome"`
	Text    string            `json:"text,omitempty"`
	Error   string            `json:"error,omitempty"`
	Model   string            `json:"model,omitempty"`
	Sources []string          `json:"sources,omitempty"`

	// Cause is the collaborator error behind a failure, if any.
	Cause error `json:"-"`
}

// Succeeded reports whether the extraction produced text.
func (r RawExtraction) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// Text is a string that also accepts the other JSON kinds models emit for
// free-text fields: numbers and booleans (a vehicle year, a phone number),
// lists (several reasons or witnesses) and the occasional nested object.
type Text string

// UnmarshalJSON accepts any JSON value. Scalars keep their literal text, list
// elements are joined with "; " and objects are kept as compact JSON. null
// leaves the value unchanged.
func (t *Text) UnmarshalJSON(data []byte) error {
	s, ok, err := textOf(data)
	if err != nil {
		return err
	}
	if ok {
		*t = Text(s)
	}
	return nil
}

// PolicyholderInformation identifies the insured party.
type PolicyholderInformation struct {
	Name         *Text `json:"name"`
	Address      *Text `json:"address"`
	Phone        *Text `json:"phone"`
	Email        *Text `json:"email"`
	PolicyNumber *Text `json:"policy_number"`
	ClaimantID   *Text `json:"claimant_id"`
}

// VehicleInformation describes the insured vehicle.
type VehicleInformation struct {
	Year         *Text `json:"year"`
	Make         *Text `json:"make"`
	Model        *Text `json:"model"`
	Color        *Text `json:"color"`
	VIN          *Text `json:"vin"`
	LicensePlate *Text `json:"license_plate"`
}

// AccidentInformation captures when and where the incident happened.
type AccidentInformation struct {
	DateOfIncident *Text `json:"date_of_incident"`
	Time           *Text `json:"time"`
	Location       *Text `json:"location"`
	IsUSTerritory  *bool `json:"is_us_territory"`
}

// IncidentDescription is the narrative plus the checks derived from it.
type IncidentDescription struct {
	Description       *Text `json:"description"`
	IsDateMatch       *bool `json:"is_date_match"`
	IsLocationMatch   *bool `json:"is_location_match"`
	HasWitness        *bool `json:"has_witness"`
	IsOwnFault        *bool `json:"is_own_fault"`
	IsThirdPartyFault *bool `json:"is_third_party_fault"`
	VehicleWasMoving  *bool `json:"vehicle_was_moving"`
}

// DamageItem is one damaged part.
type DamageItem struct {
	PartName          *Text        `json:"part_name"`
	DamageDescription *Text        `json:"damage_description"`
	Severity          Severity     `json:"severity"`
	RepairOrReplace   RepairAction `json:"repair_or_replace"`
}

// WitnessInformation identifies a witness, if any.
type WitnessInformation struct {
	Name       *Text `json:"name"`
	Phone      *Text `json:"phone"`
	IsMatching *bool `json:"is_matching"`
}

// PoliceReport references an official report.
type PoliceReport struct {
	ReportNumber     *Text `json:"report_number"`
	PoliceDepartment *Text `json:"police_department"`
}

// Signature captures the statement's signature block.
type Signature struct {
	IsPresent         *bool `json:"is_present"`
	PrintedName       *Text `json:"printed_name"`
	Date              *Text `json:"date"`
	IsDateWithinAWeek *bool `json:"is_date_within_a_week"`
	IsNameMatching    *bool `json:"is_name_matching"`
}

// ClaimRecord is the canonical structured claim. Every field serializes,
// with null standing in for absent data; only the fallback markers and the
// optional policy evaluation are omitted when empty.
type ClaimRecord struct {
	DocumentType            *Text                    `json:"document_type"`
	ExtractedText           *Text                    `json:"extracted_text"`
	PolicyholderInformation *PolicyholderInformation `json:"policyholder_information"`
	VehicleInformation      *VehicleInformation      `json:"vehicle_information"`
	AccidentInformation     *AccidentInformation     `json:"accident_information"`
	DescriptionOfIncident   *IncidentDescription     `json:"description_of_incident"`
	DescriptionOfDamages    DamageItems              `json:"description_of_damages"`
	WitnessInformation      *WitnessInformation      `json:"witness_information"`
	PoliceReport            *PoliceReport            `json:"police_report"`
	Signature               *Signature               `json:"signature"`
	Confidence              *Confidence              `json:"confidence"`
	Notes                   *Text                    `json:"notes"`
	Metadata                *metadata.Metadata       `json:"metadata"`
	PolicyEvaluation        *PolicyEvaluation        `json:"policy_evaluation,omitempty"`

	Error        string `json:"error,omitempty"`
	ErrorDetails string `json:"error_details,omitempty"`
	RawResponse  string `json:"raw_response,omitempty"`
}

// claimRecordKeys are the schema's top-level keys, used to reject objects of
// the wrong shape.
var claimRecordKeys = []string{
	"document_type", "extracted_text", "policyholder_information",
	"vehicle_information", "accident_information", "description_of_incident",
	"description_of_damages", "witness_information", "police_report",
	"signature", "confidence", "notes",
}

// SchemaKeys returns the top-level keys a reasoning response must overlap
// with to be accepted as a claim record.
func (ClaimRecord) SchemaKeys() []string {
	return claimRecordKeys
}

// Normalize fills containers that must never serialize as null.
func (r *ClaimRecord) Normalize() {
	if r.DescriptionOfDamages == nil {
		r.DescriptionOfDamages = DamageItems{}
	}
	if r.Metadata == nil {
		r.Metadata = metadata.New()
	}
}

// IsFallback reports whether the record was synthesized after a parse failure.
func (r *ClaimRecord) IsFallback() bool {
	return r.Error != ""
}

// MatchedPolicy is the policy document the evaluator chose.
type MatchedPolicy struct {
	ID                   *Text    `json:"id"`
	Title                *Text    `json:"title"`
	Score                *float64 `json:"score"`
	Summary              *Text    `json:"summary"`
	RawDocumentReference *Text    `json:"raw_document_reference"`
}

// CoverageAssessment is the evaluator's coverage verdict. Amounts are never
// null; unknown amounts are 0.
type CoverageAssessment struct {
	CoverageApplicability           CoverageApplicability `json:"coverage_applicability"`
	EstimatedCompanyLiabilityAmount float64               `json:"estimated_company_liability_amount"`
	DeductibleApplicable            bool                  `json:"deductible_applicable"`
	DeductibleAmount                float64               `json:"deductible_amount"`
	LimitsMayBeExceeded             bool                  `json:"limits_may_be_exceeded"`
	RelevantPolicySections          *Text                 `json:"relevant_policy_sections"`
}

// FaultSplit divides fault between the two parties.
type FaultSplit struct {
	PolicyholderPercent *float64 `json:"policyholder_percent"`
	ThirdPartyPercent   *float64 `json:"third_party_percent"`
}

// LiabilityAssessment is the evaluator's fault verdict.
type LiabilityAssessment struct {
	AtFaultParty        FaultParty `json:"at_fault_party"`
	EstimatedFaultSplit FaultSplit `json:"estimated_fault_split"`
	KeyFactors          *Text      `json:"key_factors"`
}

// ClaimValidity is the evaluator's validity verdict.
type ClaimValidity struct {
	IsClaimValid   *bool      `json:"is_claim_valid"`
	PrimaryReasons *Text      `json:"primary_reasons"`
	Confidence     Confidence `json:"confidence"`
}

// PolicyEvaluation is attached to a ClaimRecord by the policy stage.
type PolicyEvaluation struct {
	MatchedPolicy       MatchedPolicy       `json:"matched_policy"`
	CoverageAssessment  CoverageAssessment  `json:"coverage_assessment"`
	LiabilityAssessment LiabilityAssessment `json:"liability_assessment"`
	ClaimValidity       ClaimValidity       `json:"claim_validity"`
	Notes               *Text               `json:"notes"`

	Error        string `json:"error,omitempty"`
	ErrorDetails string `json:"error_details,omitempty"`
	RawResponse  string `json:"_raw_response,omitempty"`
}

var policyEvaluationKeys = []string{
	"matched_policy", "coverage_assessment", "liability_assessment",
	"claim_validity", "notes",
}

// SchemaKeys returns the top-level keys a reasoning response must overlap
// with to be accepted as a policy evaluation.
func (PolicyEvaluation) SchemaKeys() []string {
	return policyEvaluationKeys
}

// IsFallback reports whether the evaluation was synthesized after a parse
// failure.
func (e *PolicyEvaluation) IsFallback() bool {
	return e.Error != ""
}

// ClaimRun is a persisted pipeline outcome.
type ClaimRun struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	ClaimID     string          `db:"claim_id" json:"claim_id"`
	State       RunState        `db:"state" json:"state"`
	FailedStage *string         `db:"failed_stage" json:"failed_stage,omitempty"`
	Detail      *string         `db:"detail" json:"detail,omitempty"`
	Degraded    bool            `db:"degraded" json:"degraded"`
	Record      json.RawMessage `db:"record" json:"record"`
	Attempts    int             `db:"attempts" json:"attempts"`
	StartedAt   time.Time       `db:"started_at" json:"started_at"`
	FinishedAt  time.Time       `db:"finished_at" json:"finished_at"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// TextPtr returns a pointer to a Text, for building records in code.
func TextPtr(s string) *Text {
	t := Text(s)
	return &t
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 {
	return &f
}
