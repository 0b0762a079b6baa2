// Package retriever answers keyword queries against a loaded corpus and
// index pair. The pair is held as an immutable bundle and replaced as a
// whole on reload, so concurrent queries never see a corpus from one build
// with an index from another.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/civicpulse/civicsearch/internal/indexer/artifact"
	"github.com/civicpulse/civicsearch/internal/searcher/parser"
	"github.com/civicpulse/civicsearch/internal/searcher/ranker"
	"github.com/civicpulse/civicsearch/pkg/config"
	apperrors "github.com/civicpulse/civicsearch/pkg/errors"
	"github.com/civicpulse/civicsearch/pkg/metrics"
)

type Retriever struct {
	dir     string
	cfg     config.SearchConfig
	bundle  atomic.Pointer[artifact.Bundle]
	reload  sync.Mutex
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithMetrics records answer and reload metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Retriever) { r.metrics = m }
}

// New creates a Retriever that loads artifacts from dir. It holds no bundle
// until Reload succeeds; until then Answer reports ErrMissingArtifacts.
func New(dir string, cfg config.SearchConfig, opts ...Option) *Retriever {
	r := &Retriever{
		dir:    dir,
		cfg:    cfg,
		logger: slog.Default().With("component", "retriever"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromBundle creates a Retriever serving b. It has no directory to
// reload from.
func NewFromBundle(b *artifact.Bundle, cfg config.SearchConfig, opts ...Option) *Retriever {
	r := New("", cfg, opts...)
	r.bundle.Store(b)
	return r
}

// Bundle returns the bundle currently served, or nil.
func (r *Retriever) Bundle() *artifact.Bundle {
	return r.bundle.Load()
}

// Generation returns the generation currently served; 0 when nothing is
// loaded or the artifacts carry no manifest.
func (r *Retriever) Generation() int64 {
	return r.bundle.Load().Generation()
}

// Identity returns the identity of the bundle currently served.
func (r *Retriever) Identity() string {
	return r.bundle.Load().Identity()
}

// Ready reports whether a bundle is loaded.
func (r *Retriever) Ready(context.Context) error {
	if r.bundle.Load() == nil {
		return apperrors.ErrMissingArtifacts
	}
	return nil
}

// Reload loads the artifacts from disk and swaps them in. On failure the
// bundle already being served stays in place.
func (r *Retriever) Reload() (*artifact.Bundle, error) {
	if r.dir == "" {
		return nil, fmt.Errorf("%w: retriever has no artifact directory", apperrors.ErrMissingArtifacts)
	}
	r.reload.Lock()
	defer r.reload.Unlock()

	b, err := artifact.Load(r.dir)
	if err != nil {
		r.countReload("failed")
		r.logger.Error("artifact reload failed, keeping current bundle",
			"dir", r.dir,
			"serving_generation", r.Generation(),
			"error", err,
		)
		return nil, err
	}
	prev := r.bundle.Swap(b)
	r.countReload("success")
	if r.metrics != nil {
		r.metrics.ArtifactGeneration.Set(float64(b.Generation()))
	}
	r.logger.Info("artifacts loaded",
		"dir", r.dir,
		"generation", b.Generation(),
		"build", b.Identity(),
		"previous_build", prev.Identity(),
		"documents", b.Corpus.Documents(),
		"terms", b.Index.Len(),
	)
	return b, nil
}

// ReloadIfChanged reloads unless the announced build is already served.
// A non-empty buildID is compared by identity, so a build that restarted
// the generation count after a lost manifest is still picked up. Without
// one, only a higher generation triggers a reload. It reports whether a
// reload happened.
func (r *Retriever) ReloadIfChanged(generation int64, buildID string) (bool, error) {
	if current := r.bundle.Load(); current != nil {
		if buildID != "" && current.BuildID() == buildID {
			return false, nil
		}
		if buildID == "" && current.Generation() >= generation {
			return false, nil
		}
	}
	if _, err := r.Reload(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Retriever) countReload(status string) {
	if r.metrics != nil {
		r.metrics.ReloadsTotal.WithLabelValues(status).Inc()
	}
}

// Answer ranks the records matching query and returns the best topK.
//
// topK <= 0 fails with ErrInvalidTopK before anything else is done, and a
// missing bundle fails with ErrMissingArtifacts. A query without usable
// terms and a query matching nothing are not errors: they come back as
// OutcomeEmptyQuery and OutcomeNoMatches with no items.
func (r *Retriever) Answer(ctx context.Context, query string, topK int) (*Result, error) {
	start := time.Now()
	if topK <= 0 {
		r.countAnswer("error")
		return nil, apperrors.Newf(apperrors.ErrInvalidTopK, http.StatusBadRequest, "got %d", topK)
	}
	if r.cfg.MaxResults > 0 && topK > r.cfg.MaxResults {
		topK = r.cfg.MaxResults
	}
	b := r.bundle.Load()
	if b == nil {
		r.countAnswer("error")
		return nil, fmt.Errorf("%w: no index build has been loaded", apperrors.ErrMissingArtifacts)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plan := parser.Parse(query)
	result := &Result{
		Query:      query,
		Generation: b.Generation(),
		Terms:      plan.Distinct,
		Items:      []ResultItem{},
	}
	if plan.Empty() {
		result.Outcome = OutcomeEmptyQuery
		r.finish(result, start)
		return result, nil
	}

	result.TermStats = make(map[string]int, len(plan.Distinct))
	for _, term := range plan.Distinct {
		result.TermStats[term] = len(b.Index.Lookup(term))
	}
	scored := ranker.Rank(plan.Distinct, b.Index, 0)
	result.TotalHits = len(scored)
	if len(scored) == 0 {
		result.Outcome = OutcomeNoMatches
		r.finish(result, start)
		return result, nil
	}
	if len(scored) > topK {
		scored = scored[:topK]
	}

	result.Outcome = OutcomeMatched
	result.Items = make([]ResultItem, 0, len(scored))
	for _, doc := range scored {
		rec, ok := b.Corpus.Resolve(doc.Ref.Collection, doc.Ref.Pos)
		if !ok {
			// Load validates references; only a hand-built bundle gets here.
			return nil, fmt.Errorf("%w: %s not in corpus", apperrors.ErrInconsistentArtifacts, doc.Ref)
		}
		result.Items = append(result.Items, ResultItem{
			Collection: doc.Ref.Collection,
			Position:   doc.Ref.Pos,
			Title:      title(rec, doc.Ref.Collection, r.cfg.TitleFields),
			Snippet:    snippet(rec, r.cfg.SnippetFields, r.cfg.SnippetChars),
			Score:      doc.Score,
		})
	}
	r.finish(result, start)
	return result, nil
}

func (r *Retriever) countAnswer(outcome string) {
	if r.metrics != nil {
		r.metrics.AnswersTotal.WithLabelValues(outcome).Inc()
	}
}

func (r *Retriever) finish(result *Result, start time.Time) {
	elapsed := time.Since(start)
	r.countAnswer(string(result.Outcome))
	if r.metrics != nil {
		r.metrics.AnswerResultsCount.Observe(float64(len(result.Items)))
		r.metrics.AnswerLatency.WithLabelValues(string(result.Outcome)).Observe(elapsed.Seconds())
	}
	r.logger.Debug("query answered",
		"query", result.Query,
		"terms", result.Terms,
		"outcome", result.Outcome,
		"total_hits", result.TotalHits,
		"results", len(result.Items),
		"generation", result.Generation,
		"duration", elapsed,
	)
}
