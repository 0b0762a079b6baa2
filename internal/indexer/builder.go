package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/civicpulse/civicsearch/internal/indexer/artifact"
	"github.com/civicpulse/civicsearch/internal/ingestion"
	"github.com/civicpulse/civicsearch/pkg/metrics"
	"github.com/civicpulse/civicsearch/pkg/tracing"
)

// Notifier is told about every persisted build.
type Notifier interface {
	IndexComplete(ctx context.Context, dir string, m *artifact.Manifest) error
}

// BuildStatus summarises one build. Failures lists the collections that
// could not be loaded and were indexed as empty.
type BuildStatus struct {
	Generation  int64
	Dir         string
	Collections []artifact.CollectionStat
	Documents   int
	Terms       int
	Failures    []artifact.SourceFailure
	Duration    time.Duration
}

// Failed reports whether collection failed to load.
func (s *BuildStatus) Failed(collection string) bool {
	for _, f := range s.Failures {
		if f.Collection == collection {
			return true
		}
	}
	return false
}

// Builder runs full index builds into one artifact directory.
type Builder struct {
	loader      ingestion.Loader
	collections []string
	writer      *artifact.Writer
	workers     int
	metrics     *metrics.Metrics
	notifier    Notifier
	logger      *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithWorkers bounds how many collections load and tokenize at once.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithMetrics records build metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithNotifier announces each completed build through n.
func WithNotifier(n Notifier) Option {
	return func(b *Builder) { b.notifier = n }
}

// NewBuilder creates a Builder that reads collections, in that order, from
// loader and writes artifacts into dir.
func NewBuilder(loader ingestion.Loader, collections []string, dir string, opts ...Option) *Builder {
	b := &Builder{
		loader:      loader,
		collections: append([]string(nil), collections...),
		writer:      artifact.NewWriter(dir),
		workers:     4,
		logger:      slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build loads every collection, indexes them and replaces the artifacts in
// the directory. A collection that fails to load is indexed as empty and
// reported in the status; it never fails the build. Build returns an error
// only when another build holds the directory, ctx is cancelled before the
// artifacts are written, or writing them fails; in every such case the
// previous artifacts are left as they were.
func (b *Builder) Build(ctx context.Context) (*BuildStatus, error) {
	start := time.Now()
	lock, err := artifact.TryLock(b.writer.Dir())
	if err != nil {
		b.observe("locked", 0)
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			b.logger.Error("failed to release build lock", "error", err)
		}
	}()

	ctx, span := tracing.StartSpan(ctx, "index.build", "")
	defer func() {
		span.End()
		span.Log(b.logger)
	}()

	parts, failures := b.loadAll(ctx)
	if err := ctx.Err(); err != nil {
		b.observe("failed", time.Since(start))
		return nil, fmt.Errorf("build cancelled before persisting: %w", err)
	}

	_, assembleSpan := tracing.StartChildSpan(ctx, "assemble")
	snap, idx, err := assemble(parts)
	assembleSpan.End()
	if err != nil {
		b.observe("failed", time.Since(start))
		return nil, err
	}
	_, persistSpan := tracing.StartChildSpan(ctx, "persist")
	m, err := b.writer.Write(snap, idx, failures)
	persistSpan.End()
	if err != nil {
		b.observe("failed", time.Since(start))
		return nil, fmt.Errorf("persisting artifacts: %w", err)
	}

	status := &BuildStatus{
		Generation:  m.Generation,
		Dir:         b.writer.Dir(),
		Collections: m.Collections,
		Documents:   m.Documents,
		Terms:       m.Terms,
		Failures:    failures,
		Duration:    time.Since(start),
	}
	span.SetAttr("generation", status.Generation)
	span.SetAttr("documents", status.Documents)
	b.observe("success", status.Duration)
	if b.metrics != nil {
		for _, c := range status.Collections {
			b.metrics.DocsIndexed.WithLabelValues(c.Name).Set(float64(c.Records))
		}
		b.metrics.IndexTerms.Set(float64(status.Terms))
		b.metrics.ArtifactGeneration.Set(float64(status.Generation))
	}

	b.logger.Info("index build complete",
		"generation", status.Generation,
		"documents", status.Documents,
		"terms", status.Terms,
		"failed_collections", len(failures),
		"duration", status.Duration,
	)
	if b.notifier != nil {
		if err := b.notifier.IndexComplete(ctx, status.Dir, m); err != nil {
			b.logger.Error("failed to announce build, readers will not reload on their own",
				"generation", status.Generation,
				"error", err,
			)
		}
	}
	return status, nil
}

// loadAll loads and prepares collections concurrently. Results come back in
// configured order regardless of completion order.
func (b *Builder) loadAll(ctx context.Context) ([]prepared, []artifact.SourceFailure) {
	parts := make([]prepared, len(b.collections))
	errs := make([]error, len(b.collections))

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, name := range b.collections {
		g.Go(func() error {
			ctx, span := tracing.StartChildSpan(ctx, "load")
			span.SetAttr("collection", name)
			defer span.End()
			records, err := b.loader.Load(ctx, name)
			if err != nil {
				span.SetAttr("error", err.Error())
				errs[i] = err
				parts[i] = prepared{name: name}
				return nil
			}
			parts[i] = prepare(name, records)
			return nil
		})
	}
	g.Wait()

	var failures []artifact.SourceFailure
	for i, err := range errs {
		if err == nil {
			continue
		}
		name := b.collections[i]
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			b.logger.Warn("collection unavailable, indexing as empty", "collection", name, "error", err)
		}
		if b.metrics != nil {
			b.metrics.CollectionLoadErrors.WithLabelValues(name).Inc()
		}
		failures = append(failures, artifact.SourceFailure{Collection: name, Error: err.Error()})
	}
	return parts, failures
}

func (b *Builder) observe(status string, d time.Duration) {
	if b.metrics == nil {
		return
	}
	b.metrics.BuildsTotal.WithLabelValues(status).Inc()
	if d > 0 {
		b.metrics.BuildDuration.Observe(d.Seconds())
	}
}
