package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Collection is a named, ordered set of normalized records. A record's
// position in Records is its identity within the collection.
type Collection struct {
	Name    string
	Records []NormalizedRecord
}

// Snapshot is the full normalized dataset of one index build. Collection
// order is the build order.
type Snapshot struct {
	collections []Collection
	byName      map[string]int
}

// NewSnapshot builds a Snapshot. A repeated collection name is an error.
func NewSnapshot(collections ...Collection) (*Snapshot, error) {
	s := &Snapshot{
		collections: make([]Collection, 0, len(collections)),
		byName:      make(map[string]int, len(collections)),
	}
	for _, c := range collections {
		if _, dup := s.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate collection %q", c.Name)
		}
		s.byName[c.Name] = len(s.collections)
		records := make([]NormalizedRecord, len(c.Records))
		copy(records, c.Records)
		s.collections = append(s.collections, Collection{Name: c.Name, Records: records})
	}
	return s, nil
}

// Names returns collection names in build order.
func (s *Snapshot) Names() []string {
	names := make([]string, len(s.collections))
	for i, c := range s.collections {
		names[i] = c.Name
	}
	return names
}

// Count returns the number of records in the named collection.
func (s *Snapshot) Count(name string) int {
	idx, ok := s.byName[name]
	if !ok {
		return 0
	}
	return len(s.collections[idx].Records)
}

// Documents returns the total number of records across all collections.
func (s *Snapshot) Documents() int {
	total := 0
	for _, c := range s.collections {
		total += len(c.Records)
	}
	return total
}

// Resolve returns the record at pos in the named collection.
func (s *Snapshot) Resolve(collection string, pos int) (NormalizedRecord, bool) {
	idx, ok := s.byName[collection]
	if !ok {
		return NormalizedRecord{}, false
	}
	records := s.collections[idx].Records
	if pos < 0 || pos >= len(records) {
		return NormalizedRecord{}, false
	}
	return records[pos], true
}

// Each calls fn for every record in collection-then-position order.
func (s *Snapshot) Each(fn func(collection string, pos int, rec NormalizedRecord)) {
	for _, c := range s.collections {
		for pos, rec := range c.Records {
			fn(c.Name, pos, rec)
		}
	}
}

// MarshalJSON writes {collection: [record, ...]} in build order.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range s.collections {
		if i > 0 {
			buf.WriteByte(',')
		}
		var name strings.Builder
		writeJSONString(&name, c.Name)
		buf.WriteString(name.String())
		buf.WriteString(":[")
		for j, rec := range c.Records {
			if j > 0 {
				buf.WriteByte(',')
			}
			data, err := rec.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a snapshot, keeping collection order.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return fmt.Errorf("reading corpus snapshot: %w", err)
	}
	collections := make([]Collection, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("reading collection name: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("collection name is %T, want string", tok)
		}
		var records []NormalizedRecord
		if err := dec.Decode(&records); err != nil {
			return fmt.Errorf("decoding collection %q: %w", name, err)
		}
		collections = append(collections, Collection{Name: name, Records: records})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return fmt.Errorf("closing corpus snapshot: %w", err)
	}
	built, err := NewSnapshot(collections...)
	if err != nil {
		return err
	}
	*s = *built
	return nil
}
