package structuring

import "strings"

// Instruction is the claim-schema contract sent with every structuring call.
const Instruction = `You turn the transcribed text of an auto insurance claim statement into one JSON object.

Use exactly this structure:
{
  "document_type": "statement_front | statement_back | statement",
  "extracted_text": "the full input text, formatting preserved",
  "policyholder_information": {
    "name": "", "address": "", "phone": "", "email": "",
    "policy_number": "", "claimant_id": ""
  },
  "vehicle_information": {
    "year": "", "make": "", "model": "", "color": "", "vin": "", "license_plate": ""
  },
  "accident_information": {
    "date_of_incident": "YYYY-MM-DD when the date can be normalized",
    "time": "",
    "location": "",
    "is_us_territory": true | false | null
  },
  "description_of_incident": {
    "description": "the incident narrative",
    "is_date_match": true | false | null,
    "is_location_match": true | false | null,
    "has_witness": true | false | null,
    "is_own_fault": true | false | null,
    "is_third_party_fault": true | false | null,
    "vehicle_was_moving": true | false | null
  },
  "description_of_damages": [
    {
      "part_name": "",
      "damage_description": "",
      "severity": "minor | moderate | severe | unknown",
      "repair_or_replace": "repair | replace | unsure"
    }
  ],
  "witness_information": { "name": "", "phone": "", "is_matching": true | false | null },
  "police_report": { "report_number": "", "police_department": "" },
  "signature": {
    "is_present": true | false | null,
    "printed_name": "",
    "date": "",
    "is_date_within_a_week": true | false | null,
    "is_name_matching": true | false | null
  },
  "confidence": "high | medium | low",
  "notes": "anything worth flagging for a claims adjuster"
}

Rules:
- Only use information present in the text. Use null for anything missing, unreadable or uncertain.
- Booleans are true or false only when the text settles the question; otherwise null.
- description_of_damages is an empty array when no damage is described.
- confidence reflects how legible and complete the text is.
- Respond with the JSON object only. No markdown, no commentary before or after it.`

const (
	textStart = "---TEXT START---"
	textEnd   = "---TEXT END---"
)

// wrapInput frames the raw text so the model can tell it apart from the request.
func wrapInput(rawText string) string {
	var sb strings.Builder
	sb.WriteString("Extract and structure the following claim statement text into the JSON format.\n\n")
	sb.WriteString(textStart)
	sb.WriteString("\n")
	sb.WriteString(rawText)
	sb.WriteString("\n")
	sb.WriteString(textEnd)
	sb.WriteString("\n\nReturn only the structured JSON object.")
	return sb.String()
}
