package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimflow/internal/domain"
)

func TestText_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"string", `"Honda"`, "Honda"},
		{"number", `2019`, "2019"},
		{"decimal", `-12.50`, "-12.50"},
		{"bool", `true`, "true"},
		{"list of strings", `["Consistent statement", "Police report on file"]`, "Consistent statement; Police report on file"},
		{"mixed list skips nulls and blanks", `["a", null, "", 3, false]`, "a; 3; false"},
		{"nested list", `[["a","b"],"c"]`, "a; b; c"},
		{"object", `{"street": "12 Elm St",  "city": "Austin"}`, `{"street":"12 Elm St","city":"Austin"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got domain.Text
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, domain.Text(tt.want), got)
		})
	}
}

func TestText_NullLeavesValue(t *testing.T) {
	got := domain.Text("kept")

	require.NoError(t, got.UnmarshalJSON([]byte("null")))

	assert.Equal(t, domain.Text("kept"), got)
}

func TestText_InvalidInputNamesKind(t *testing.T) {
	var got domain.Text

	err := got.UnmarshalJSON([]byte("nope"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid value "nope"`)
	assert.NotContains(t, err.Error(), "bool")
}

func TestWitnessInformation_ListIsFolded(t *testing.T) {
	var w domain.WitnessInformation

	err := json.Unmarshal([]byte(`[
		{"name": "Ana Lopez", "phone": "555-0101", "is_matching": null},
		{"name": "Ben Okafor", "phone": null, "is_matching": true}
	]`), &w)

	require.NoError(t, err)
	assert.Equal(t, domain.TextPtr("Ana Lopez; Ben Okafor"), w.Name)
	assert.Equal(t, domain.TextPtr("555-0101"), w.Phone)
	assert.Equal(t, domain.BoolPtr(true), w.IsMatching)
}

func TestSection_SingleElementList(t *testing.T) {
	var v domain.VehicleInformation

	require.NoError(t, json.Unmarshal([]byte(`[{"year": 2019, "make": "Honda"}]`), &v))

	assert.Equal(t, domain.TextPtr("2019"), v.Year)
	assert.Equal(t, domain.TextPtr("Honda"), v.Make)
}

func TestSection_ScalarLeavesSectionEmpty(t *testing.T) {
	var p domain.PoliceReport

	require.NoError(t, json.Unmarshal([]byte(`"none filed"`), &p))

	assert.Nil(t, p.ReportNumber)
	assert.Nil(t, p.PoliceDepartment)
}

func TestSection_FieldMismatchKeepsOtherFields(t *testing.T) {
	var a domain.AccidentInformation

	require.NoError(t, json.Unmarshal([]byte(`{"is_us_territory": "yes", "location": "I-35 exit 12"}`), &a))

	assert.Nil(t, a.IsUSTerritory)
	assert.Equal(t, domain.TextPtr("I-35 exit 12"), a.Location)
}

func TestDamageItems_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		parts []string
	}{
		{"list", `[{"part_name":"bumper"},{"part_name":"tail light"}]`, []string{"bumper", "tail light"}},
		{"single object", `{"part_name":"hood","severity":"minor"}`, []string{"hood"}},
		{"non-object elements dropped", `["scratches", {"part_name":"door"}]`, []string{"door"}},
		{"scalar", `"see attached estimate"`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items domain.DamageItems
			require.NoError(t, json.Unmarshal([]byte(tt.in), &items))
			require.NotNil(t, items)
			got := make([]string, 0, len(items))
			for _, it := range items {
				got = append(got, string(*it.PartName))
			}
			assert.Equal(t, tt.parts, got)
		})
	}
}

func TestClaimRecord_MistypedSectionsKeepRecord(t *testing.T) {
	var rec domain.ClaimRecord

	err := json.Unmarshal([]byte(`{
		"document_type": "statement_front",
		"policyholder_information": {"name": "Dana Ruiz", "policy_number": "AC-77120"},
		"witness_information": [{"name": "Ana Lopez"}, {"name": "Ben Okafor"}],
		"description_of_damages": {"part_name": "rear bumper", "severity": "moderate"},
		"notes": ["left side scraped", "airbags not deployed"]
	}`), &rec)

	require.NoError(t, err)
	assert.Equal(t, domain.TextPtr("statement_front"), rec.DocumentType)
	require.NotNil(t, rec.PolicyholderInformation)
	assert.Equal(t, domain.TextPtr("AC-77120"), rec.PolicyholderInformation.PolicyNumber)
	require.NotNil(t, rec.WitnessInformation)
	assert.Equal(t, domain.TextPtr("Ana Lopez; Ben Okafor"), rec.WitnessInformation.Name)
	require.Len(t, rec.DescriptionOfDamages, 1)
	assert.Equal(t, domain.SeverityModerate, rec.DescriptionOfDamages[0].Severity)
	assert.Equal(t, domain.TextPtr("left side scraped; airbags not deployed"), rec.Notes)
}

func TestPolicyEvaluation_ListedReasonsKeepVerdict(t *testing.T) {
	var ev domain.PolicyEvaluation

	err := json.Unmarshal([]byte(`{
		"matched_policy": [{"id": "AUTO-STD-01", "title": "Standard Auto"}],
		"coverage_assessment": {"coverage_applicability": "covered", "relevant_policy_sections": ["Part D", "Part A"]},
		"liability_assessment": {"at_fault_party": "third_party", "key_factors": ["rear-ended", "stopped at light"]},
		"claim_validity": {"is_claim_valid": true, "primary_reasons": ["Consistent statement", "Photos match"], "confidence": "high"}
	}`), &ev)

	require.NoError(t, err)
	assert.Equal(t, domain.CoverageCovered, ev.CoverageAssessment.CoverageApplicability)
	assert.Equal(t, domain.FaultThirdParty, ev.LiabilityAssessment.AtFaultParty)
	assert.Equal(t, domain.TextPtr("Consistent statement; Photos match"), ev.ClaimValidity.PrimaryReasons)
	assert.Equal(t, domain.TextPtr("Part D; Part A"), ev.CoverageAssessment.RelevantPolicySections)
	assert.Equal(t, domain.TextPtr("AUTO-STD-01"), ev.MatchedPolicy.ID)
}
