package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicpulse/civicsearch/internal/corpus"
	"github.com/civicpulse/civicsearch/pkg/config"
	apperrors "github.com/civicpulse/civicsearch/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestFileLoaderReadsMappedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ballot_questions.json", `[{"pregunta": "¿Ampliar ciclovías?", "opciones": ["sí", "no"]}]`)

	l := NewFileLoader(dir, map[string]string{"ballots": "ballot_questions.json"})
	records, err := l.Load(context.Background(), "ballots")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, `¿Ampliar ciclovías? ["sí", "no"]`, corpus.Normalize(records[0]).Text())
}

func TestFileLoaderDefaultsToCollectionName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "events.json", `[{"titulo": "Feria"}, {"titulo": "Cabildo"}]`)

	l := NewFileLoader(dir, nil)
	assert.Equal(t, filepath.Join(dir, "events.json"), l.Path("events"))
	records, err := l.Load(context.Background(), "events")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFileLoaderMissingFileIsEmpty(t *testing.T) {
	records, err := NewFileLoader(t.TempDir(), nil).Load(context.Background(), "notifications")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestFileLoaderMalformedIsSourceUnavailable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "services.json", `[{"name": "Clínica"`)

	_, err := NewFileLoader(dir, nil).Load(context.Background(), "services")
	require.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
}

type fakePayloads struct {
	rows  map[string][][]byte
	err   error
	calls atomic.Int32
}

func (f *fakePayloads) Payloads(_ context.Context, collection string) ([][]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[collection], nil
}

func TestPostgresLoader(t *testing.T) {
	src := &fakePayloads{rows: map[string][][]byte{
		"civic_events": {[]byte(`{"titulo": "Foro"}`), []byte(`{"titulo": "Taller", "cupo": 30}`)},
	}}
	l := NewPostgresLoader(src, map[string]string{"events": "civic_events"})

	records, err := l.Load(context.Background(), "events")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Taller 30", corpus.Normalize(records[1]).Text())

	records, err = l.Load(context.Background(), "services")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPostgresLoaderErrors(t *testing.T) {
	l := NewPostgresLoader(&fakePayloads{err: errors.New("connection refused")}, nil)
	_, err := l.Load(context.Background(), "events")
	require.ErrorIs(t, err, apperrors.ErrSourceUnavailable)

	l = NewPostgresLoader(&fakePayloads{rows: map[string][][]byte{"events": {[]byte(`[1]`)}}}, nil)
	_, err = l.Load(context.Background(), "events")
	require.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
}

func TestRetryLoaderRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	flaky := LoaderFunc(func(ctx context.Context, collection string) ([]corpus.Record, error) {
		if calls.Add(1) < 2 {
			return nil, errors.New("temporary")
		}
		return []corpus.Record{corpus.NewRecord(corpus.F("titulo", corpus.String("Feria")))}, nil
	})

	records, err := NewRetryLoader(flaky, 3, time.Second).Load(context.Background(), "events")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryLoaderDoesNotRetryMalformedRows(t *testing.T) {
	src := &fakePayloads{rows: map[string][][]byte{"events": {[]byte(`"nope"`)}}}
	_, err := NewRetryLoader(NewPostgresLoader(src, nil), 5, 0).Load(context.Background(), "events")
	require.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestRetryLoaderWrapsExhaustedAttempts(t *testing.T) {
	failing := LoaderFunc(func(context.Context, string) ([]corpus.Record, error) {
		return nil, errors.New("still down")
	})
	_, err := NewRetryLoader(failing, 1, 0).Load(context.Background(), "events")
	require.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
}

func TestRetryLoaderBoundsSlowAttempts(t *testing.T) {
	slow := LoaderFunc(func(ctx context.Context, _ string) ([]corpus.Record, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	_, err := NewRetryLoader(slow, 1, 5*time.Millisecond).Load(context.Background(), "events")
	require.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
	require.ErrorIs(t, err, apperrors.ErrTimeout)
}

func TestOpenFileSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ballot_questions.json", `[{"pregunta": "¿Aprueba el presupuesto?"}]`)

	cfg := config.Default()
	cfg.Indexer.DataDir = dir
	loader, closeFn, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, closeFn()) }()

	records, err := loader.Load(context.Background(), "ballots")
	require.NoError(t, err)
	require.Len(t, records, 1)

	records, err = loader.Load(context.Background(), "events")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestOpenUnknownSource(t *testing.T) {
	cfg := config.Default()
	cfg.Indexer.Source = "ftp"
	_, _, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}
