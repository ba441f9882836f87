package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// textOf renders a JSON value as record text. ok is false for null.
func textOf(data []byte) (string, bool, error) {
	data = bytes.TrimSpace(data)
	switch kindOf(data) {
	case "null":
		return "", false, nil
	case "string":
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	case "number", "boolean":
		return string(data), true, nil
	case "array":
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return "", false, err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			s, ok, err := textOf(item)
			if err != nil {
				return "", false, err
			}
			if ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; "), true, nil
	case "object":
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return "", false, err
		}
		return buf.String(), true, nil
	default:
		return "", false, fmt.Errorf("domain: cannot read %s as text", describeKind(data))
	}
}

// kindOf names the JSON kind of a trimmed value from its first byte.
func kindOf(data []byte) string {
	if len(data) == 0 {
		return "empty input"
	}
	switch c := data[0]; {
	case c == '"':
		return "string"
	case c == '{':
		return "object"
	case c == '[':
		return "array"
	case c == 't' || c == 'f':
		if _, err := strconv.ParseBool(string(data)); err == nil {
			return "boolean"
		}
	case c == 'n':
		if string(data) == "null" {
			return "null"
		}
	case c == '-' || (c >= '0' && c <= '9'):
		if json.Valid(data) {
			return "number"
		}
	}
	return "invalid value"
}

func describeKind(data []byte) string {
	kind := kindOf(data)
	if kind != "invalid value" {
		return kind
	}
	const limit = 20
	if len(data) > limit {
		data = append(data[:limit:limit], "..."...)
	}
	return fmt.Sprintf("invalid value %q", data)
}

// decodeSection decodes a record section that models sometimes emit as a list
// of objects. List elements are folded into the first with merge, or dropped
// when merge is nil. A scalar leaves the section empty. Field type mismatches
// inside the section keep the fields that did decode.
func decodeSection[T any](data []byte, dst *T, merge func(dst, next *T)) error {
	data = bytes.TrimSpace(data)
	switch kindOf(data) {
	case "object":
		return tolerateMismatch(json.Unmarshal(data, dst))
	case "array":
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		first := true
		for _, item := range items {
			if kindOf(bytes.TrimSpace(item)) != "object" {
				continue
			}
			var next T
			if err := tolerateMismatch(json.Unmarshal(item, &next)); err != nil {
				return err
			}
			switch {
			case first:
				*dst, first = next, false
			case merge != nil:
				merge(dst, &next)
			}
		}
		return nil
	default:
		return nil
	}
}

func tolerateMismatch(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return nil
	}
	return err
}

// joinText combines two optional texts with "; ".
func joinText(a, b *Text) *Text {
	switch {
	case b == nil || *b == "":
		return a
	case a == nil || *a == "":
		return b
	}
	joined := *a + "; " + *b
	return &joined
}

func firstBool(a, b *bool) *bool {
	if a != nil {
		return a
	}
	return b
}

// DamageItems is the damaged-part list. A single object is read as a
// one-element list and a scalar as an empty one.
type DamageItems []DamageItem

func (d *DamageItems) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var raw []json.RawMessage
	switch kindOf(data) {
	case "null":
		return nil
	case "object":
		raw = []json.RawMessage{data}
	case "array":
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	default:
		*d = DamageItems{}
		return nil
	}

	items := make(DamageItems, 0, len(raw))
	for _, r := range raw {
		if kindOf(bytes.TrimSpace(r)) != "object" {
			continue
		}
		var item DamageItem
		if err := tolerateMismatch(json.Unmarshal(r, &item)); err != nil {
			return err
		}
		items = append(items, item)
	}
	*d = items
	return nil
}

func (p *PolicyholderInformation) UnmarshalJSON(data []byte) error {
	type plain PolicyholderInformation
	return decodeSection(data, (*plain)(p), nil)
}

func (v *VehicleInformation) UnmarshalJSON(data []byte) error {
	type plain VehicleInformation
	return decodeSection(data, (*plain)(v), nil)
}

func (a *AccidentInformation) UnmarshalJSON(data []byte) error {
	type plain AccidentInformation
	return decodeSection(data, (*plain)(a), nil)
}

func (i *IncidentDescription) UnmarshalJSON(data []byte) error {
	type plain IncidentDescription
	return decodeSection(data, (*plain)(i), nil)
}

func (s *Signature) UnmarshalJSON(data []byte) error {
	type plain Signature
	return decodeSection(data, (*plain)(s), nil)
}

func (m *MatchedPolicy) UnmarshalJSON(data []byte) error {
	type plain MatchedPolicy
	return decodeSection(data, (*plain)(m), nil)
}

// UnmarshalJSON folds a list of witnesses into one entry whose names and
// phones are joined in order.
func (w *WitnessInformation) UnmarshalJSON(data []byte) error {
	type plain WitnessInformation
	return decodeSection(data, (*plain)(w), func(dst, next *plain) {
		dst.Name = joinText(dst.Name, next.Name)
		dst.Phone = joinText(dst.Phone, next.Phone)
		dst.IsMatching = firstBool(dst.IsMatching, next.IsMatching)
	})
}

// UnmarshalJSON folds a list of reports into one entry.
func (r *PoliceReport) UnmarshalJSON(data []byte) error {
	type plain PoliceReport
	return decodeSection(data, (*plain)(r), func(dst, next *plain) {
		dst.ReportNumber = joinText(dst.ReportNumber, next.ReportNumber)
		dst.PoliceDepartment = joinText(dst.PoliceDepartment, next.PoliceDepartment)
	})
}
