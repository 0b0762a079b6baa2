package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/civicpulse/civicsearch/internal/corpus"
	apperrors "github.com/civicpulse/civicsearch/pkg/errors"
	"github.com/civicpulse/civicsearch/pkg/resilience"
)

// FileLoader reads collections from JSON files, each holding a top-level
// array of objects. Files maps a collection name to its file name relative
// to Dir; unmapped collections read "<name>.json".
type FileLoader struct {
	Dir    string
	Files  map[string]string
	logger *slog.Logger
}

// NewFileLoader creates a FileLoader rooted at dir.
func NewFileLoader(dir string, files map[string]string) *FileLoader {
	return &FileLoader{
		Dir:    dir,
		Files:  files,
		logger: slog.Default().With("component", "file-loader"),
	}
}

// Path returns the file a collection is read from.
func (l *FileLoader) Path(collection string) string {
	name, ok := l.Files[collection]
	if !ok || name == "" {
		name = collection + ".json"
	}
	return filepath.Join(l.Dir, name)
}

// Load reads one collection. A missing file is an empty collection. Malformed
// content is marked permanent so retries do not re-read it.
func (l *FileLoader) Load(ctx context.Context, collection string) ([]corpus.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := l.Path(collection)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("collection file not found, treating as empty", "collection", collection, "path", path)
		return []corpus.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", apperrors.ErrSourceUnavailable, path, err)
	}
	defer f.Close()

	records, err := corpus.DecodeRecords(f)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("%w: reading %s: %v", apperrors.ErrSourceUnavailable, path, err))
	}
	l.logger.Debug("collection loaded", "collection", collection, "records", len(records))
	return records, nil
}
