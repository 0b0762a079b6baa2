package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// NormalizedField is one string-valued field of a NormalizedRecord.
type NormalizedField struct {
	Name  string
	Value string
}

// NormalizedRecord is a record whose values have all been coerced to
// strings. It has the same field set and order as its source Record and is
// never modified after construction.
type NormalizedRecord struct {
	fields []NormalizedField
}

// NewNormalizedRecord builds a record from already-normalized fields.
func NewNormalizedRecord(fields ...NormalizedField) NormalizedRecord {
	cp := make([]NormalizedField, len(fields))
	copy(cp, fields)
	return NormalizedRecord{fields: cp}
}

func (r NormalizedRecord) Len() int { return len(r.fields) }

// Fields returns a copy of the record's fields.
func (r NormalizedRecord) Fields() []NormalizedField {
	cp := make([]NormalizedField, len(r.fields))
	copy(cp, r.fields)
	return cp
}

// Get returns the value of the named field.
func (r NormalizedRecord) Get(name string) (string, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns field values in field order.
func (r NormalizedRecord) Values() []string {
	vals := make([]string, len(r.fields))
	for i, f := range r.fields {
		vals[i] = f.Value
	}
	return vals
}

// Text concatenates every field value, separated by single spaces.
func (r NormalizedRecord) Text() string {
	return strings.Join(r.Values(), " ")
}

// MarshalJSON writes the record as an object in field order.
func (r NormalizedRecord) MarshalJSON() ([]byte, error) {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeJSONString(&sb, f.Name)
		sb.WriteByte(':')
		writeJSONString(&sb, f.Value)
	}
	sb.WriteByte('}')
	return []byte(sb.String()), nil
}

// UnmarshalJSON reads an object in field order. Values that are not strings
// are normalized on the way in.
func (r *NormalizedRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return fmt.Errorf("decoding normalized record: %w", err)
	}
	if v.kind != KindObject {
		return fmt.Errorf("normalized record is a %s, want object", v.kind)
	}
	*r = Normalize(Record{Fields: v.fields})
	return nil
}
