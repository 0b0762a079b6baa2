// Package corpus models the raw civic records fed to the indexer and their
// normalized, string-only form. Raw values are a closed set of shapes (null,
// string, number, bool, list, object) so normalization is total and never
// depends on reflection or runtime type assertions over arbitrary input.
package corpus

import "strings"

// Kind enumerates the shapes a raw field value can take.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a raw field value. The zero Value is null.
type Value struct {
	kind   Kind
	text   string
	flag   bool
	items  []Value
	fields []Field
}

// Field is a named value inside a Record or an object Value.
type Field struct {
	Name  string
	Value Value
}

// Record is one raw upstream record. Field order is the source order.
type Record struct {
	Fields []Field
}

func Null() Value { return Value{} }

func String(s string) Value { return Value{kind: KindString, text: s} }

// Number keeps the literal text of a numeric value. Normalization decides
// how it is spelled.
func Number(literal string) Value { return Value{kind: KindNumber, text: literal} }

func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

func List(items ...Value) Value { return Value{kind: KindList, items: items} }

func Object(fields ...Field) Value { return Value{kind: KindObject, fields: fields} }

// F is shorthand for building a Field.
func F(name string, v Value) Field { return Field{Name: name, Value: v} }

// NewRecord builds a Record from fields in the given order.
func NewRecord(fields ...Field) Record { return Record{Fields: fields} }

func (v Value) Kind() Kind { return v.kind }

// Normalize coerces the value to its string form: null becomes "", lists
// and objects become compact JSON text, bools "True" or "False", and
// numbers their canonical decimal text (see numberText).
func (v Value) Normalize() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.text
	case KindNumber:
		return numberText(v.text, false)
	case KindBool:
		return boolText(v.flag)
	default:
		var sb strings.Builder
		writeJSONValue(&sb, v)
		return sb.String()
	}
}

// Normalize coerces every field of r to a string, keeping field order.
func Normalize(r Record) NormalizedRecord {
	fields := make([]NormalizedField, len(r.Fields))
	for i, f := range r.Fields {
		fields[i] = NormalizedField{Name: f.Name, Value: f.Value.Normalize()}
	}
	return NormalizedRecord{fields: fields}
}

// NormalizeAll normalizes each record independently.
func NormalizeAll(records []Record) []NormalizedRecord {
	out := make([]NormalizedRecord, len(records))
	for i, r := range records {
		out[i] = Normalize(r)
	}
	return out
}
