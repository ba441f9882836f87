// Package metadata implements the append-only provenance document attached to
// every claim record.
//
// Stages never mutate metadata in place. They call Merge, which adds keys that
// are not yet present, leaves existing keys untouched, and appends one entry to
// the provenance log describing what was added and when.
package metadata

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// ProvenanceKey is the reserved key under which the stage log is serialized.
const ProvenanceKey = "provenance"

// Entry records one Merge call.
type Entry struct {
	Stage       string   `json:"stage"`
	FieldsAdded []string `json:"fields_added"`
	Timestamp   string   `json:"timestamp"`
}

// Field is a single key/value pair offered to Merge.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Metadata is an insertion-ordered key/value document plus its provenance log.
// The zero value is ready to use.
type Metadata struct {
	keys    []string
	values  map[string]any
	entries []Entry
}

// New returns an empty Metadata.
func New() *Metadata {
	return &Metadata{values: map[string]any{}}
}

// Timestamp formats t the way every stage stamps metadata.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Merge adds each field whose key is not yet present and returns the keys it
// added, in order. Existing keys keep their original value. The reserved
// provenance key is ignored. A log entry is appended even when nothing was
// added so the stage still shows up in the trail.
func (m *Metadata) Merge(stage string, at time.Time, fields ...Field) []string {
	if m.values == nil {
		m.values = map[string]any{}
	}
	added := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Key == "" || f.Key == ProvenanceKey {
			continue
		}
		if _, exists := m.values[f.Key]; exists {
			continue
		}
		m.values[f.Key] = f.Value
		m.keys = append(m.keys, f.Key)
		added = append(added, f.Key)
	}
	m.entries = append(m.entries, Entry{
		Stage:       stage,
		FieldsAdded: added,
		Timestamp:   Timestamp(at),
	})
	return added
}

// Get returns the value stored under key.
func (m *Metadata) Get(key string) (any, bool) {
	if m == nil || m.values == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// GetString returns the value under key when it is a string.
func (m *Metadata) GetString(key string) string {
	v, _ := m.Get(key)
	s, _ := v.(string)
	return s
}

// Has reports whether key is present.
func (m *Metadata) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (m *Metadata) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Entries returns a copy of the provenance log.
func (m *Metadata) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of keys.
func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Clone returns an independent copy. Values are shared; they are never
// mutated after being merged.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	c := &Metadata{
		keys:    append([]string(nil), m.keys...),
		values:  make(map[string]any, len(m.values)),
		entries: append([]Entry(nil), m.entries...),
	}
	for k, v := range m.values {
		c.values[k] = v
	}
	return c
}

// MarshalJSON writes keys in insertion order followed by the provenance log.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, k, m.values[k]); err != nil {
			return nil, err
		}
	}
	if len(m.entries) > 0 {
		if len(m.keys) > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, ProvenanceKey, m.entries); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, value any) error {
	kb, err := json.Marshal(key)
	if err != nil {
		return eris.Wrapf(err, "metadata: marshal key %q", key)
	}
	vb, err := json.Marshal(value)
	if err != nil {
		return eris.Wrapf(err, "metadata: marshal value for %q", key)
	}
	buf.Write(kb)
	buf.WriteByte(':')
	buf.Write(vb)
	return nil
}

// UnmarshalJSON reads an object, preserving key order. A "provenance" member
// restores the stage log. A JSON null leaves the receiver empty.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	*m = Metadata{values: map[string]any{}}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "metadata: read object start")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return eris.New("metadata: expected a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "metadata: read key")
		}
		key, ok := tok.(string)
		if !ok {
			return eris.New("metadata: expected a string key")
		}

		if key == ProvenanceKey {
			var entries []Entry
			if err := dec.Decode(&entries); err != nil {
				return eris.Wrap(err, "metadata: decode provenance")
			}
			m.entries = entries
			continue
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return eris.Wrapf(err, "metadata: decode value for %q", key)
		}
		if _, dup := m.values[key]; !dup {
			m.keys = append(m.keys, key)
		}
		m.values[key] = value
	}

	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "metadata: read object end")
	}
	return nil
}
