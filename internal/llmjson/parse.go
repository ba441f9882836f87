// Package llmjson is the validating boundary between untrusted reasoning
// output and typed records.
//
// Reasoning collaborators are treated as text generators that usually, but
// not always, return the JSON object they were asked for. The same
// parse-or-fallback routine is used at every such boundary.
package llmjson

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrNoObject is returned when the response contains no '{' ... '}' span.
	ErrNoObject = errors.New("no JSON object found in response")
	// ErrParseFailed is returned when the located span is not valid JSON.
	ErrParseFailed = errors.New("failed to parse response")
	// ErrWrongShape is returned when the object shares no top-level key with
	// the expected schema.
	ErrWrongShape = errors.New("response object does not match the expected schema")
)

// Schema is implemented by targets that declare their top-level keys. A
// decoded object must contain at least one of them.
type Schema interface {
	SchemaKeys() []string
}

// ExtractObject returns the text between the first '{' and the last '}'
// inclusive. Markdown fences and any leading or trailing prose are dropped
// this way whether or not fence markers are present.
func ExtractObject(content string) (string, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return "", ErrNoObject
	}
	return content[start : end+1], nil
}

// Decode extracts the JSON object from content and unmarshals it into T.
func Decode[T any](content string) (T, error) {
	var result T

	obj, err := ExtractObject(content)
	if err != nil {
		return result, err
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &members); err != nil {
		return result, eris.Wrapf(ErrParseFailed, "llmjson: %v", err)
	}

	if s, ok := any(result).(Schema); ok && !hasAnyKey(members, s.SchemaKeys()) {
		return result, ErrWrongShape
	}

	if err := json.Unmarshal([]byte(obj), &result); err != nil {
		// A field of the wrong JSON type is left at its zero value and the
		// rest of the object is kept.
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return result, eris.Wrapf(ErrParseFailed, "llmjson: %v", err)
		}
		zap.L().Warn("llmjson.Decode: field type mismatch, keeping the rest of the object",
			zap.String("field", typeErr.Field), zap.String("value", typeErr.Value),
			zap.String("want", typeErr.Type.String()))
	}
	return result, nil
}

// ParseOrFallback decodes content into T. When decoding fails for any reason,
// fallback is called with the verbatim content and the cause, and its value is
// returned instead. The boolean reports whether content parsed.
func ParseOrFallback[T any](content string, fallback func(raw string, cause error) T) (T, bool) {
	v, err := Decode[T](content)
	if err != nil {
		return fallback(content, err), false
	}
	return v, true
}

// Describe renders a decode error for an error_details field.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func hasAnyKey(members map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		if _, ok := members[k]; ok {
			return true
		}
	}
	return false
}
