package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/civicpulse/civicsearch/internal/corpus"
	apperrors "github.com/civicpulse/civicsearch/pkg/errors"
	"github.com/civicpulse/civicsearch/pkg/resilience"
)

// PayloadSource returns the raw JSON object of every record in a collection,
// in source order. *postgres.Client implements it.
type PayloadSource interface {
	Payloads(ctx context.Context, collection string) ([][]byte, error)
}

// PostgresLoader reads collections from the civic_records table. Tables maps
// a collection name to the collection key stored in the table when the two
// differ.
type PostgresLoader struct {
	source PayloadSource
	tables map[string]string
	logger *slog.Logger
}

// NewPostgresLoader creates a loader over source.
func NewPostgresLoader(source PayloadSource, tables map[string]string) *PostgresLoader {
	return &PostgresLoader{
		source: source,
		tables: tables,
		logger: slog.Default().With("component", "postgres-loader"),
	}
}

// Load reads one collection. A collection without rows is empty. A row whose
// payload is not a JSON object fails the whole collection and is not
// retried.
func (l *PostgresLoader) Load(ctx context.Context, collection string) ([]corpus.Record, error) {
	key := collection
	if t, ok := l.tables[collection]; ok && t != "" {
		key = t
	}
	payloads, err := l.source.Payloads(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSourceUnavailable, err)
	}
	records := make([]corpus.Record, 0, len(payloads))
	for i, payload := range payloads {
		rec, err := corpus.DecodeRecord(payload)
		if err != nil {
			return nil, resilience.Permanent(fmt.Errorf("%w: collection %s row %d: %v", apperrors.ErrSourceUnavailable, collection, i, err))
		}
		records = append(records, rec)
	}
	l.logger.Debug("collection loaded", "collection", collection, "key", key, "records", len(records))
	return records, nil
}
