// Package ingestion reads civic-record collections from their sources: JSON
// files on disk or a PostgreSQL table. Loaders return records in source
// order with field order intact; normalization happens in the indexer.
package ingestion

import (
	"context"

	"github.com/civicpulse/civicsearch/internal/corpus"
)

// Loader reads every record of one collection.
//
// A collection with no records at its source yields an empty slice and a nil
// error. Any other failure (unreadable file, malformed JSON, database error)
// is returned wrapped in apperrors.ErrSourceUnavailable so the indexer can
// record it and carry on with the remaining collections.
type Loader interface {
	Load(ctx context.Context, collection string) ([]corpus.Record, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, collection string) ([]corpus.Record, error)

func (f LoaderFunc) Load(ctx context.Context, collection string) ([]corpus.Record, error) {
	return f(ctx, collection)
}
