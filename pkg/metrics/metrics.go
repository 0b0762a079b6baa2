// Package metrics defines the Prometheus collectors shared by the indexer,
// the retriever and the HTTP layer, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	BuildsTotal          *prometheus.CounterVec
	BuildDuration        prometheus.Histogram
	CollectionLoadErrors *prometheus.CounterVec
	DocsIndexed          *prometheus.GaugeVec
	IndexTerms           prometheus.Gauge
	ArtifactGeneration   prometheus.Gauge

	AnswersTotal       *prometheus.CounterVec
	AnswerLatency      *prometheus.HistogramVec
	AnswerResultsCount prometheus.Histogram
	CacheHitsTotal     *prometheus.CounterVec
	CacheMissesTotal   prometheus.Counter
	ReloadsTotal       *prometheus.CounterVec
}

// New creates all collectors and registers them with reg. A nil reg skips
// registration, which lets tests build several instances.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_builds_total",
				Help: "Index builds by status (success, failed, locked).",
			},
			[]string{"status"},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_build_duration_seconds",
				Help:    "Wall time of a full index build.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		CollectionLoadErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collection_load_errors_total",
				Help: "Collections that could not be loaded during a build.",
			},
			[]string{"collection"},
		),
		DocsIndexed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Documents in the last built index per collection.",
			},
			[]string{"collection"},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Distinct terms in the last built index.",
			},
		),
		ArtifactGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "artifact_generation",
				Help: "Generation of the artifacts currently built or served.",
			},
		),
		AnswersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "answers_total",
				Help: "Answered queries by outcome (matched, empty_query, no_matches, error).",
			},
			[]string{"outcome"},
		),
		AnswerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "answer_latency_seconds",
				Help:    "Retriever answer latency in seconds by outcome. Cache hits are not observed.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"outcome"},
		),
		AnswerResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "answer_results_count",
				Help:    "Number of items returned per answer.",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 50},
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Answer cache hits by tier (l1, l2).",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Answer cache misses.",
			},
		),
		ReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artifact_reloads_total",
				Help: "Artifact reloads by status (success, failed).",
			},
			[]string{"status"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.HTTPRequestsInFlight,
			m.BuildsTotal,
			m.BuildDuration,
			m.CollectionLoadErrors,
			m.DocsIndexed,
			m.IndexTerms,
			m.ArtifactGeneration,
			m.AnswersTotal,
			m.AnswerLatency,
			m.AnswerResultsCount,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.ReloadsTotal,
		)
	}

	return m
}

// Handler returns the Prometheus scrape HTTP handler for the default
// gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a scrape handler for a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
