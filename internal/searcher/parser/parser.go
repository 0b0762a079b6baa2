// Package parser turns a free-text query into the terms the ranker scores.
// Queries go through the same tokenizer as indexed records, so a query term
// matches exactly the index terms produced from the same text.
package parser

import (
	"github.com/civicpulse/civicsearch/internal/indexer/tokenizer"
)

type QueryPlan struct {
	RawQuery string
	// Terms are all query tokens in order, repeats included.
	Terms []string
	// Distinct holds each term once, in first-occurrence order. Scoring
	// and cache keys use it.
	Distinct []string
}

// Empty reports whether the query produced no usable terms.
func (p *QueryPlan) Empty() bool {
	return len(p.Distinct) == 0
}

func Parse(query string) *QueryPlan {
	terms := tokenizer.Terms(query)
	return &QueryPlan{
		RawQuery: query,
		Terms:    terms,
		Distinct: tokenizer.Unique(terms),
	}
}
