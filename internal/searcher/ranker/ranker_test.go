package ranker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicpulse/civicsearch/internal/indexer/index"
)

func ref(c string, pos int) index.DocRef { return index.DocRef{Collection: c, Pos: pos} }

func buildIndex(t testing.TB, docs map[index.DocRef][]string, order []index.DocRef) *index.InvertedIndex {
	t.Helper()
	idx := index.New()
	for _, r := range order {
		_, err := idx.Add(r, docs[r])
		require.NoError(t, err)
	}
	return idx
}

func TestRankScoresDistinctMatchedTerms(t *testing.T) {
	order := []index.DocRef{ref("events", 0), ref("events", 1), ref("services", 0)}
	idx := buildIndex(t, map[index.DocRef][]string{
		ref("events", 0):   {"audiencia", "movilidad", "pública"},
		ref("events", 1):   {"movilidad"},
		ref("services", 0): {"salud"},
	}, order)

	got := Rank([]string{"audiencia", "movilidad", "movilidad"}, idx, 10)
	assert.Equal(t, []ScoredDoc{
		{Ref: ref("events", 0), Score: 2},
		{Ref: ref("events", 1), Score: 1},
	}, got)
}

func TestRankTiesKeepFirstEncounterOrder(t *testing.T) {
	order := []index.DocRef{ref("a", 0), ref("a", 1), ref("b", 0), ref("b", 1), ref("b", 2)}
	idx := buildIndex(t, map[index.DocRef][]string{
		ref("a", 0): {"parque"},
		ref("a", 1): {"parque", "feria"},
		ref("b", 0): {"feria"},
		ref("b", 1): {"parque"},
		ref("b", 2): {"feria", "parque"},
	}, order)

	want := []ScoredDoc{
		{Ref: ref("a", 1), Score: 2},
		{Ref: ref("b", 2), Score: 2},
		{Ref: ref("b", 0), Score: 1},
	}
	// Query term order decides who is encountered first.
	got := Rank([]string{"feria", "parque"}, idx, 3)
	assert.Equal(t, want, got)

	for i := 0; i < 20; i++ {
		assert.Equal(t, want, Rank([]string{"feria", "parque"}, idx, 3))
	}

	got = Rank([]string{"parque", "feria"}, idx, 3)
	assert.Equal(t, []ScoredDoc{
		{Ref: ref("a", 1), Score: 2},
		{Ref: ref("b", 2), Score: 2},
		{Ref: ref("a", 0), Score: 1},
	}, got)
}

func TestRankTopKTruncation(t *testing.T) {
	var order []index.DocRef
	docs := map[index.DocRef][]string{}
	for i := 0; i < 5; i++ {
		r := ref("events", i)
		order = append(order, r)
		docs[r] = []string{"cabildo"}
	}
	docs[ref("events", 3)] = []string{"cabildo", "abierto"}
	idx := buildIndex(t, docs, order)

	got := Rank([]string{"cabildo", "abierto"}, idx, 2)
	require.Len(t, got, 2)
	assert.Equal(t, ScoredDoc{Ref: ref("events", 3), Score: 2}, got[0])
	assert.Equal(t, ScoredDoc{Ref: ref("events", 0), Score: 1}, got[1])

	assert.Len(t, Rank([]string{"cabildo"}, idx, 0), 5)
}

func TestRankNoMatches(t *testing.T) {
	idx := buildIndex(t, map[index.DocRef][]string{ref("a", 0): {"feria"}}, []index.DocRef{ref("a", 0)})
	assert.Empty(t, Rank([]string{"inexistente"}, idx, 4))
	assert.Empty(t, Rank(nil, idx, 4))
}

func BenchmarkRank(b *testing.B) {
	idx := index.New()
	for i := 0; i < 10000; i++ {
		terms := []string{fmt.Sprintf("t%d", i%100), fmt.Sprintf("t%d", i%37), "común"}
		idx.Add(ref("events", i), terms)
	}
	query := []string{"t1", "t2", "común"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Rank(query, idx, 4)
	}
}
