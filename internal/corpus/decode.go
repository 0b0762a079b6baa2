package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeRecords reads a JSON array of objects, keeping the field order of
// every object. Elements that are not objects are rejected.
func DecodeRecords(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := expectDelim(dec, '['); err != nil {
		return nil, fmt.Errorf("reading record list: %w", err)
	}
	records := make([]Record, 0)
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("decoding record %d: %w", len(records), err)
		}
		if v.kind != KindObject {
			return nil, fmt.Errorf("record %d is a %s, want object", len(records), v.kind)
		}
		records = append(records, Record{Fields: v.fields})
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, fmt.Errorf("closing record list: %w", err)
	}
	return records, nil
}

// DecodeRecord parses a single JSON object into a Record.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Record{}, err
	}
	if v.kind != KindObject {
		return Record{}, fmt.Errorf("record is a %s, want object", v.kind)
	}
	return Record{Fields: v.fields}, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(t.String()), nil
	case bool:
		return Bool(t), nil
	case json.Delim:
		switch t {
		case '[':
			items := make([]Value, 0)
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if err := expectDelim(dec, ']'); err != nil {
				return Value{}, err
			}
			return List(items...), nil
		case '{':
			fields, err := decodeFields(dec)
			if err != nil {
				return Value{}, err
			}
			return Object(fields...), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

// decodeFields reads object members up to and including the closing brace.
// A repeated key keeps its first position and takes the last value.
func decodeFields(dec *json.Decoder) ([]Field, error) {
	fields := make([]Field, 0)
	seen := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T, want string", keyTok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		if idx, dup := seen[key]; dup {
			fields[idx].Value = v
			continue
		}
		seen[key] = len(fields)
		fields = append(fields, Field{Name: key, Value: v})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return fields, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
