// Package handler exposes the retriever over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/civicpulse/civicsearch/internal/analytics"
	"github.com/civicpulse/civicsearch/internal/indexer/artifact"
	"github.com/civicpulse/civicsearch/internal/searcher/cache"
	"github.com/civicpulse/civicsearch/internal/searcher/parser"
	"github.com/civicpulse/civicsearch/internal/searcher/retriever"
	"github.com/civicpulse/civicsearch/pkg/config"
	apperrors "github.com/civicpulse/civicsearch/pkg/errors"
	"github.com/civicpulse/civicsearch/pkg/logger"
	"github.com/civicpulse/civicsearch/pkg/middleware"
)

// Engine is the retriever surface the handler serves.
type Engine interface {
	Answer(ctx context.Context, query string, topK int) (*retriever.Result, error)
	Identity() string
	Reload() (*artifact.Bundle, error)
}

type Handler struct {
	engine       Engine
	cache        *cache.AnswerCache
	tracker      analytics.Tracker
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New creates a Handler. answerCache and tracker may be nil.
func New(engine Engine, answerCache *cache.AnswerCache, tracker analytics.Tracker, cfg config.SearchConfig) *Handler {
	return &Handler{
		engine:       engine,
		cache:        answerCache,
		tracker:      tracker,
		defaultLimit: cfg.DefaultTopK,
		maxResults:   cfg.MaxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// SearchResponse is the JSON body of a search. Answer holds the rendered
// text block.
type SearchResponse struct {
	*retriever.Result
	Answer    string `json:"answer"`
	CacheHit  bool   `json:"cache_hit"`
	LatencyMs int64  `json:"latency_ms"`
}

// Search serves GET /api/v1/search?q=...&limit=...&format=text.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			err := apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
			h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
			return
		}
		limit = parsed
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}

	var (
		result   *retriever.Result
		err      error
		cacheHit bool
	)
	compute := func() (*retriever.Result, error) {
		return h.engine.Answer(ctx, query, limit)
	}
	if h.cache != nil && limit > 0 {
		plan := parser.Parse(query)
		key := cache.Key(h.engine.Identity(), plan.Distinct, limit)
		result, cacheHit, err = h.cache.GetOrCompute(ctx, key, compute)
		if err == nil && result.Query != query {
			// Equivalent queries share an entry; echo the caller's wording.
			echoed := *result
			echoed.Query = query
			result = &echoed
		}
	} else {
		result, err = compute()
	}
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("search failed", "query", query, "error", err)
		}
		h.writeError(w, status, err.Error())
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("search completed",
		"query", query,
		"outcome", result.Outcome,
		"total_hits", result.TotalHits,
		"returned", len(result.Items),
		"generation", result.Generation,
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.SearchEvent{
			Query:      query,
			Terms:      result.Terms,
			Outcome:    string(result.Outcome),
			TotalHits:  result.TotalHits,
			Returned:   len(result.Items),
			Limit:      limit,
			Generation: result.Generation,
			LatencyMs:  latencyMs,
			CacheHit:   cacheHit,
			Timestamp:  time.Now().UTC(),
			RequestID:  middleware.GetRequestID(ctx),
		})
	}

	answer := retriever.Format(result)
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(answer + "\n"))
		return
	}
	h.writeJSON(w, http.StatusOK, SearchResponse{
		Result:    result,
		Answer:    answer,
		CacheHit:  cacheHit,
		LatencyMs: latencyMs,
	})
}

// Reload serves POST /api/v1/index/reload. The cache is flushed after a
// successful reload since manifest-less artifacts keep generation 0.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	b, err := h.engine.Reload()
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if errors.Is(err, apperrors.ErrInconsistentArtifacts) {
			status = http.StatusConflict
		}
		h.writeError(w, status, err.Error())
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			h.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "reloaded",
		"generation": b.Generation(),
		"build_id":   b.BuildID(),
		"documents":  b.Corpus.Documents(),
		"terms":      b.Index.Len(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
