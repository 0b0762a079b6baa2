package ingestion

import (
	"context"
	"fmt"

	"github.com/civicpulse/civicsearch/pkg/config"
	"github.com/civicpulse/civicsearch/pkg/postgres"
)

// Open builds the loader selected by cfg.Indexer.Source, wrapped in retries.
// The returned close function releases the source's connections.
func Open(ctx context.Context, cfg *config.Config) (Loader, func() error, error) {
	var (
		base    Loader
		closeFn = func() error { return nil }
	)
	switch cfg.Indexer.Source {
	case config.SourceFile:
		files := make(map[string]string, len(cfg.Indexer.Collections))
		for _, c := range cfg.Indexer.Collections {
			files[c.Name] = c.File
		}
		base = NewFileLoader(cfg.Indexer.DataDir, files)
	case config.SourcePostgres:
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("opening record source: %w", err)
		}
		tables := make(map[string]string, len(cfg.Indexer.Collections))
		for _, c := range cfg.Indexer.Collections {
			tables[c.Name] = c.Table
		}
		base = NewPostgresLoader(db, tables)
		closeFn = db.Close
	default:
		return nil, nil, fmt.Errorf("unknown record source %q", cfg.Indexer.Source)
	}
	return NewRetryLoader(base, cfg.Indexer.LoadRetries, cfg.Indexer.LoadTimeout), closeFn, nil
}
