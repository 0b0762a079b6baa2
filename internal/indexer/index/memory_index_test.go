package index

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDeduplicatesWithinDocument(t *testing.T) {
	x := New()
	ref := DocRef{Collection: "events", Pos: 0}

	n, err := x.Add(ref, []string{"agua", "agua", "barrio", "agua", "agua", "agua"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, PostingList{ref}, x.Lookup("agua"))
	assert.Equal(t, PostingList{ref}, x.Lookup("barrio"))
	assert.Equal(t, 2, x.PostingCount())
}

func TestAddKeepsInsertionOrderAcrossDocuments(t *testing.T) {
	x := New()
	refs := []DocRef{{"events", 0}, {"events", 1}, {"services", 0}}
	for _, r := range refs {
		_, err := x.Add(r, []string{"centro"})
		require.NoError(t, err)
	}
	assert.Equal(t, PostingList(refs), x.Lookup("centro"))
}

func TestAddRejectsSameDocumentTwice(t *testing.T) {
	x := New()
	ref := DocRef{"ballots", 3}
	_, err := x.Add(ref, []string{"voto"})
	require.NoError(t, err)
	_, err = x.Add(ref, []string{"otra"})
	require.Error(t, err)
	assert.Nil(t, x.Lookup("otra"))
}

func TestLookupReturnsCopy(t *testing.T) {
	x := New()
	_, err := x.Add(DocRef{"events", 0}, []string{"feria"})
	require.NoError(t, err)

	got := x.Lookup("feria")
	got[0].Pos = 99
	assert.Equal(t, 0, x.Lookup("feria")[0].Pos)
	assert.Nil(t, x.Lookup("ausente"))
}

func TestJSONRoundTrip(t *testing.T) {
	x := New()
	_, _ = x.Add(DocRef{"events", 0}, []string{"audiencia", "movilidad"})
	_, _ = x.Add(DocRef{"services", 2}, []string{"movilidad"})

	data, err := json.Marshal(x)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"audiencia": [{"collection": "events", "pos": 0}],
		"movilidad": [{"collection": "events", "pos": 0}, {"collection": "services", "pos": 2}]
	}`, string(data))

	back := New()
	require.NoError(t, json.Unmarshal(data, back))
	assert.Equal(t, []string{"audiencia", "movilidad"}, back.Terms())
	assert.Equal(t, x.Lookup("movilidad"), back.Lookup("movilidad"))
}

func TestUnmarshalRejectsDuplicatePostings(t *testing.T) {
	x := New()
	err := json.Unmarshal([]byte(`{"agua":[{"collection":"events","pos":0},{"collection":"events","pos":0}]}`), x)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	x := New()
	_, _ = x.Add(DocRef{"events", 0}, []string{"feria"})
	_, _ = x.Add(DocRef{"events", 5}, []string{"feria"})

	err := x.Validate(func(r DocRef) bool { return r.Pos < 1 })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events@5")
	require.NoError(t, x.Validate(func(DocRef) bool { return true }))
}

func BenchmarkAdd(b *testing.B) {
	terms := []string{"audiencia", "pública", "movilidad", "barrio", "centro", "transporte"}
	x := New()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = x.Add(DocRef{Collection: "events", Pos: i}, terms)
	}
}

func BenchmarkLookup(b *testing.B) {
	x := New()
	for i := 0; i < 10000; i++ {
		_, _ = x.Add(DocRef{Collection: fmt.Sprintf("c%d", i%4), Pos: i}, []string{"centro", "barrio"})
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = x.Lookup("centro")
	}
}
