// Package index implements the token to document inverted index. Each
// document appears at most once in a term's posting list; posting order is
// the order documents were added.
package index

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

type InvertedIndex struct {
	postings map[string]PostingList
	docs     map[DocRef]struct{}
}

func New() *InvertedIndex {
	return &InvertedIndex{
		postings: make(map[string]PostingList),
		docs:     make(map[DocRef]struct{}),
	}
}

// Add registers ref under every distinct term in terms and returns how many
// distinct terms were registered. Repeated terms contribute one entry.
// Adding the same ref twice is an error.
func (x *InvertedIndex) Add(ref DocRef, terms []string) (int, error) {
	if _, exists := x.docs[ref]; exists {
		return 0, fmt.Errorf("document %s already indexed", ref)
	}
	x.docs[ref] = struct{}{}
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		x.postings[term] = append(x.postings[term], ref)
	}
	return len(seen), nil
}

// Lookup returns a copy of the posting list for term.
func (x *InvertedIndex) Lookup(term string) PostingList {
	return slices.Clone(x.postings[term])
}

// Terms returns all indexed terms in sorted order.
func (x *InvertedIndex) Terms() []string {
	terms := make([]string, 0, len(x.postings))
	for term := range x.postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Len returns the number of distinct terms.
func (x *InvertedIndex) Len() int {
	return len(x.postings)
}

// PostingCount returns the total number of (term, document) entries.
func (x *InvertedIndex) PostingCount() int {
	total := 0
	for _, p := range x.postings {
		total += len(p)
	}
	return total
}

// Snapshot returns every term with its postings, sorted by term.
func (x *InvertedIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(x.postings))
	for _, term := range x.Terms() {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: slices.Clone(x.postings[term]),
		})
	}
	return entries
}

// Validate checks every reference with exists and reports the first that
// does not resolve.
func (x *InvertedIndex) Validate(exists func(DocRef) bool) error {
	for _, entry := range x.Snapshot() {
		for _, ref := range entry.Postings {
			if !exists(ref) {
				return fmt.Errorf("term %q references missing document %s", entry.Term, ref)
			}
		}
	}
	return nil
}

// MarshalJSON writes {term: [{"collection": ..., "pos": ...}, ...]}.
func (x *InvertedIndex) MarshalJSON() ([]byte, error) {
	return json.Marshal(x.postings)
}

// UnmarshalJSON reads the serialized form and rejects posting lists that
// repeat a document.
func (x *InvertedIndex) UnmarshalJSON(data []byte) error {
	var raw map[string]PostingList
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding inverted index: %w", err)
	}
	docs := make(map[DocRef]struct{})
	for term, postings := range raw {
		seen := make(map[DocRef]struct{}, len(postings))
		for _, ref := range postings {
			if _, dup := seen[ref]; dup {
				return fmt.Errorf("term %q lists document %s twice", term, ref)
			}
			seen[ref] = struct{}{}
			docs[ref] = struct{}{}
		}
	}
	if raw == nil {
		raw = make(map[string]PostingList)
	}
	x.postings = raw
	x.docs = docs
	return nil
}
