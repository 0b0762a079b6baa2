// Package ranker scores documents by how many distinct query terms they
// contain and selects the top results.
package ranker

import (
	"sort"

	"github.com/civicpulse/civicsearch/internal/indexer/index"
)

type ScoredDoc struct {
	Ref   index.DocRef `json:"ref"`
	Score int          `json:"score"`
}

// Postings is the lookup side of an inverted index.
type Postings interface {
	Lookup(term string) index.PostingList
}

// Rank scores every document that contains at least one of terms. A
// document's score is the number of distinct terms it matches; a repeated
// query term counts once.
//
// Results are ordered by descending score. Equal scores keep the order in
// which documents were first encountered: terms are visited in the given
// order and each term's postings in index order. The first limit results are
// returned; limit <= 0 returns them all.
func Rank(terms []string, idx Postings, limit int) []ScoredDoc {
	seenTerm := make(map[string]struct{}, len(terms))
	slot := make(map[index.DocRef]int)
	var result []ScoredDoc
	for _, term := range terms {
		if _, dup := seenTerm[term]; dup {
			continue
		}
		seenTerm[term] = struct{}{}
		for _, ref := range idx.Lookup(term) {
			i, ok := slot[ref]
			if !ok {
				slot[ref] = len(result)
				result = append(result, ScoredDoc{Ref: ref, Score: 1})
				continue
			}
			result[i].Score++
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
