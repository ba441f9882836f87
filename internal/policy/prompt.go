package policy

import (
	"fmt"
	"strings"

	"claimflow/internal/domain"
	"claimflow/internal/port"
)

// Instruction is the PolicyEvaluation contract sent with every evaluation call.
const Instruction = `You are an experienced auto insurance claims adjuster.

You receive a structured claim as JSON, extracted from a handwritten or scanned statement, followed by the policy documents a search over the insurer's policy library ranked as most relevant to it.

Read the claim, pick the single best matching policy (if any), and using only the claim and those documents decide whether the loss is covered, who is likely liable and whether the claim appears valid.

Respond with one JSON object of exactly this shape:
{
  "matched_policy": {
    "id": "policy identifier, or null",
    "title": "short policy name, or null",
    "score": 0.0,
    "summary": "what the policy covers that matters for this claim, in your own words",
    "raw_document_reference": "identifier of the matched document, or null"
  },
  "coverage_assessment": {
    "coverage_applicability": "covered | partially_covered | not_covered | unclear",
    "estimated_company_liability_amount": 0,
    "deductible_applicable": false,
    "deductible_amount": 0,
    "limits_may_be_exceeded": false,
    "relevant_policy_sections": "which parts of the policy decide this"
  },
  "liability_assessment": {
    "at_fault_party": "policyholder | third_party | shared | unclear",
    "estimated_fault_split": { "policyholder_percent": 0, "third_party_percent": 0 },
    "key_factors": "why fault was assigned this way"
  },
  "claim_validity": {
    "is_claim_valid": true,
    "primary_reasons": "why the claim is or is not valid",
    "confidence": "high | medium | low"
  },
  "notes": "anything a human adjuster reviewing this case should know"
}

Rules:
- Amounts and percentages are numbers. Use 0 when unknown.
- Use null where the information genuinely is not available.
- When coverage or fault is ambiguous, answer unclear and explain; do not guess.
- Do not repeat the claim and do not add other top-level keys.
- Respond with the JSON object only. No markdown, no commentary before or after it.`

// searchText builds the retrieval query from the parts of the claim that
// describe the loss.
func searchText(r *domain.ClaimRecord) string {
	var parts []string
	add := func(t *domain.Text) {
		if t != nil && strings.TrimSpace(string(*t)) != "" {
			parts = append(parts, strings.TrimSpace(string(*t)))
		}
	}

	if d := r.DescriptionOfIncident; d != nil {
		add(d.Description)
	}
	for _, dmg := range r.DescriptionOfDamages {
		add(dmg.PartName)
		add(dmg.DamageDescription)
	}
	if v := r.VehicleInformation; v != nil {
		add(v.Year)
		add(v.Make)
		add(v.Model)
	}
	if p := r.PolicyholderInformation; p != nil {
		add(p.PolicyNumber)
	}

	if len(parts) == 0 {
		return "auto insurance policy coverage and liability"
	}
	return strings.Join(parts, "; ")
}

// buildInput renders the claim and the ranked documents. Document content is
// passed through verbatim.
func buildInput(claimJSON []byte, docs []port.SearchDocument) string {
	var sb strings.Builder
	sb.WriteString("Generate ONLY the policy_evaluation JSON object for this claim.\n\n")
	sb.WriteString("Claim data:\n```json\n")
	sb.Write(claimJSON)
	sb.WriteString("\n```\n\n")

	if len(docs) == 0 {
		sb.WriteString("No policy documents were retrieved for this claim.\n")
		return sb.String()
	}

	sb.WriteString("Retrieved policy documents, most relevant first:\n")
	for i, d := range docs {
		fmt.Fprintf(&sb, "\n[%d] id=%s title=%q score=%.4f", i+1, d.ID, d.Title, d.Score)
		if d.Reference != "" {
			fmt.Fprintf(&sb, " reference=%s", d.Reference)
		}
		sb.WriteString("\n")
		sb.WriteString(d.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
