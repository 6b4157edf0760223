package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Field is one member of a JSON object, kept as raw JSON.
type Field struct {
	Key   string
	Value json.RawMessage
}

// VersionRecord is the metadata of one published version exactly as a
// registry returned it. Field order is preserved so the record re-encodes
// the way it was read. Records are never modified in place.
type VersionRecord struct {
	fields []Field
}

// NewVersionRecord builds a record from fields. The slice is copied.
func NewVersionRecord(fields ...Field) VersionRecord {
	return VersionRecord{fields: append([]Field(nil), fields...)}
}

// Fields returns a copy of the record's fields in order.
func (r VersionRecord) Fields() []Field {
	return append([]Field(nil), r.fields...)
}

// Keys returns the field names in order.
func (r VersionRecord) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Key
	}
	return keys
}

// Len returns the number of fields.
func (r VersionRecord) Len() int {
	return len(r.fields)
}

// Get returns the raw value of key.
func (r VersionRecord) Get(key string) (json.RawMessage, bool) {
	for _, f := range r.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present.
func (r VersionRecord) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// String returns the value of key when it is a JSON string.
func (r VersionRecord) String(key string) string {
	raw, ok := r.Get(key)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Name returns the "name" field.
func (r VersionRecord) Name() string {
	return r.String("name")
}

// Version returns the "version" field.
func (r VersionRecord) Version() string {
	return r.String("version")
}

// Dist decodes the "dist" block. A record without one yields a zero Dist.
func (r VersionRecord) Dist() (Dist, error) {
	raw, ok := r.Get("dist")
	if !ok {
		return Dist{}, nil
	}
	var d Dist
	if err := json.Unmarshal(raw, &d); err != nil {
		return Dist{}, fmt.Errorf("decoding dist: %w", err)
	}
	return d, nil
}

// Filter returns a new record holding only the fields keep accepts.
func (r VersionRecord) Filter(keep func(key string) bool) VersionRecord {
	out := make([]Field, 0, len(r.fields))
	for _, f := range r.fields {
		if keep(f.Key) {
			out = append(out, f)
		}
	}
	return VersionRecord{fields: out}
}

// With returns a new record with key set to value. An existing field keeps
// its position; a new one is appended.
func (r VersionRecord) With(key string, value any) (VersionRecord, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return VersionRecord{}, fmt.Errorf("encoding %s: %w", key, err)
	}
	out := r.Fields()
	for i := range out {
		if out[i].Key == key {
			out[i].Value = raw
			return VersionRecord{fields: out}, nil
		}
	}
	return VersionRecord{fields: append(out, Field{Key: key, Value: raw})}, nil
}

// MarshalJSON encodes the record with its fields in order.
func (r VersionRecord) MarshalJSON() ([]byte, error) {
	return encodeObject(r.fields)
}

// UnmarshalJSON decodes an object keeping member order.
func (r *VersionRecord) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	r.fields = fields
	return nil
}

// Equal reports whether both records hold the same fields in the same order
// with byte-identical values.
func (r VersionRecord) Equal(other VersionRecord) bool {
	if len(r.fields) != len(other.fields) {
		return false
	}
	for i := range r.fields {
		if r.fields[i].Key != other.fields[i].Key || !bytes.Equal(r.fields[i].Value, other.fields[i].Value) {
			return false
		}
	}
	return true
}

// Dist is the distribution block of a published version.
type Dist struct {
	Tarball   string `json:"tarball,omitempty"`
	Shasum    string `json:"shasum,omitempty"`
	Integrity string `json:"integrity,omitempty"`
}

var errNotObject = errors.New("expected JSON object")

func decodeObject(data []byte) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errNotObject
	}

	var fields []Field
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decoding %q: %w", key, err)
		}
		// Later duplicates replace earlier ones, as with encoding/json maps.
		if i, ok := index[key]; ok {
			fields[i].Value = value
			continue
		}
		index[key] = len(fields)
		fields = append(fields, Field{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

func encodeObject(fields []Field) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(f.Value) == 0 {
			buf.WriteString("null")
			continue
		}
		buf.Write(f.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
