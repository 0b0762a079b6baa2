package corpus

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeShapes(t *testing.T) {
	rec := NewRecord(
		F("titulo", String("Audiencia pública")),
		F("cupo", Number("120")),
		F("precio", Number("1.50")),
		F("gratis", Bool(true)),
		F("notas", Null()),
		F("tags", List(String("movilidad"), String("tránsito"))),
		F("lugar", Object(F("barrio", String("Centro")), F("lat", Number("4.6")))),
	)

	got := Normalize(rec)

	require.Equal(t, len(rec.Fields), got.Len())
	assert.Equal(t, []string{
		"Audiencia pública",
		"120",
		"1.5",
		"True",
		"",
		`["movilidad", "tránsito"]`,
		`{"barrio": "Centro", "lat": 4.6}`,
	}, got.Values())
}

func TestNormalizeKeepsFieldSet(t *testing.T) {
	rec := NewRecord(F("b", Null()), F("a", List()), F("c", Object()))
	got := Normalize(rec)

	names := make([]string, 0, got.Len())
	for _, f := range got.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"b", "a", "c"}, names)
	v, ok := got.Get("a")
	require.True(t, ok)
	assert.Equal(t, "[]", v)
	v, _ = got.Get("c")
	assert.Equal(t, "{}", v)
}

func TestNormalizeEscapesOnlyWhatJSONRequires(t *testing.T) {
	v := List(String("say \"hi\"\n"), String("a<b>&c"), String("ñ"))
	assert.Equal(t, `["say \"hi\"\n", "a<b>&c", "ñ"]`, v.Normalize())
}

func TestDecodeRecordsPreservesOrder(t *testing.T) {
	input := `[
		{"zeta": 1, "alfa": "x", "medio": null},
		{"nombre": "Biblioteca", "horario": ["lun", "mar"], "activo": false}
	]`

	records, err := DecodeRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := Normalize(records[0])
	assert.Equal(t, []string{"1", "x", ""}, first.Values())
	assert.Equal(t, "zeta", first.Fields()[0].Name)

	second := Normalize(records[1])
	assert.Equal(t, "Biblioteca [\"lun\", \"mar\"] False", second.Text())
}

func TestNormalizeNumbers(t *testing.T) {
	cases := []struct {
		literal string
		want    string
	}{
		{"120", "120"},
		{"-7", "-7"},
		{"-0", "0"},
		{"123456789012345678901234567890", "123456789012345678901234567890"},
		{"1.50", "1.5"},
		{"1.0", "1.0"},
		{"-0.0", "-0.0"},
		{"1E2", "100.0"},
		{"2.5e3", "2500.0"},
		{"0.0001", "0.0001"},
		{"0.00001", "1e-05"},
		{"1.5e-7", "1.5e-07"},
		{"1e15", "1000000000000000.0"},
		{"1e16", "1e+16"},
		{"12345678901234567.0", "1.2345678901234568e+16"},
		{"0.1", "0.1"},
		{"1e400", "inf"},
		{"-1e400", "-inf"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Number(tc.literal).Normalize(), tc.literal)
	}

	nested := List(Number("1.50"), Number("1e400"), Number("7"), Bool(true), Bool(false))
	assert.Equal(t, `[1.5, Infinity, 7, true, false]`, nested.Normalize())
	assert.Equal(t, "False", Bool(false).Normalize())
}

func TestDecodeRecordsDuplicateKeyKeepsFirstPosition(t *testing.T) {
	records, err := DecodeRecords(strings.NewReader(`[{"a": 1, "b": 2, "a": 3}]`))
	require.NoError(t, err)
	got := Normalize(records[0])
	assert.Equal(t, []string{"3", "2"}, got.Values())
}

func TestDecodeRecordsRejectsNonObjects(t *testing.T) {
	_, err := DecodeRecords(strings.NewReader(`[{"a": 1}, 5]`))
	require.Error(t, err)

	_, err = DecodeRecords(strings.NewReader(`{"a": 1}`))
	require.Error(t, err)

	_, err = DecodeRecords(strings.NewReader(``))
	require.Error(t, err)
}

func TestDecodeRecordsEmptyArray(t *testing.T) {
	records, err := DecodeRecords(strings.NewReader(`[]`))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDecodeRecord(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"titulo": "Foro", "fecha": "2024-05-01"}`))
	require.NoError(t, err)
	assert.Equal(t, "Foro 2024-05-01", Normalize(rec).Text())

	_, err = DecodeRecord([]byte(`["no"]`))
	require.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap, err := NewSnapshot(
		Collection{Name: "services", Records: []NormalizedRecord{
			NewNormalizedRecord(NormalizedField{"name", "Clínica"}, NormalizedField{"tel", "123"}),
		}},
		Collection{Name: "events", Records: []NormalizedRecord{
			NewNormalizedRecord(NormalizedField{"titulo", "Feria"}),
			NewNormalizedRecord(NormalizedField{"titulo", "Cabildo"}),
		}},
		Collection{Name: "ballots"},
	)
	require.NoError(t, err)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{"services":`), string(data))

	var back Snapshot
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"services", "events", "ballots"}, back.Names())
	assert.Equal(t, 3, back.Documents())
	assert.Equal(t, 0, back.Count("ballots"))

	rec, ok := back.Resolve("events", 1)
	require.True(t, ok)
	v, _ := rec.Get("titulo")
	assert.Equal(t, "Cabildo", v)

	_, ok = back.Resolve("events", 2)
	assert.False(t, ok)
	_, ok = back.Resolve("missing", 0)
	assert.False(t, ok)
}

func TestSnapshotRejectsDuplicateCollections(t *testing.T) {
	_, err := NewSnapshot(Collection{Name: "events"}, Collection{Name: "events"})
	require.Error(t, err)
}

func TestSnapshotEachOrder(t *testing.T) {
	snap, err := NewSnapshot(
		Collection{Name: "b", Records: []NormalizedRecord{{}, {}}},
		Collection{Name: "a", Records: []NormalizedRecord{{}}},
	)
	require.NoError(t, err)

	var seen []string
	snap.Each(func(collection string, pos int, _ NormalizedRecord) {
		seen = append(seen, collection+string(rune('0'+pos)))
	})
	assert.Equal(t, []string{"b0", "b1", "a0"}, seen)
}
