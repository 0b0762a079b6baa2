// Package indexer turns raw civic-record collections into the corpus snapshot
// and inverted index the retriever serves, and persists them as one build.
package indexer

import (
	"fmt"

	"github.com/civicpulse/civicsearch/internal/corpus"
	"github.com/civicpulse/civicsearch/internal/indexer/index"
	"github.com/civicpulse/civicsearch/internal/indexer/tokenizer"
)

// RawCollection is one loaded collection in source order.
type RawCollection struct {
	Name    string
	Records []corpus.Record
}

// prepared is a normalized collection with the unique terms of each record.
type prepared struct {
	name    string
	records []corpus.NormalizedRecord
	terms   [][]string
}

// prepare normalizes and tokenizes one collection. It touches nothing
// shared and may run concurrently with other collections.
func prepare(name string, records []corpus.Record) prepared {
	p := prepared{
		name:    name,
		records: make([]corpus.NormalizedRecord, len(records)),
		terms:   make([][]string, len(records)),
	}
	for i, rec := range records {
		norm := corpus.Normalize(rec)
		p.records[i] = norm
		p.terms[i] = tokenizer.Unique(tokenizer.Terms(norm.Text()))
	}
	return p
}

// assemble merges prepared collections in the given order. Postings are
// appended collection by collection, positions ascending, whatever order
// the collections were prepared in.
func assemble(parts []prepared) (*corpus.Snapshot, *index.InvertedIndex, error) {
	collections := make([]corpus.Collection, 0, len(parts))
	idx := index.New()
	for _, p := range parts {
		collections = append(collections, corpus.Collection{Name: p.name, Records: p.records})
		for pos, terms := range p.terms {
			ref := index.DocRef{Collection: p.name, Pos: pos}
			if _, err := idx.Add(ref, terms); err != nil {
				return nil, nil, fmt.Errorf("indexing %s: %w", ref, err)
			}
		}
	}
	snap, err := corpus.NewSnapshot(collections...)
	if err != nil {
		return nil, nil, err
	}
	return snap, idx, nil
}

// BuildIndex normalizes every record, tokenizes the space-joined field
// values, and registers each record once under each of its distinct terms.
// Collections are indexed in slice order. The only error is a repeated
// collection name.
func BuildIndex(collections []RawCollection) (*corpus.Snapshot, *index.InvertedIndex, error) {
	parts := make([]prepared, len(collections))
	for i, c := range collections {
		parts[i] = prepare(c.Name, c.Records)
	}
	return assemble(parts)
}
