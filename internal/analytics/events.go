// Package analytics tracks answered queries: the searcher emits one
// SearchEvent per answer, either straight into an in-process Aggregator or
// through Kafka to aggregators elsewhere, and the aggregate is served over
// HTTP.
package analytics

import "time"

// SearchEvent describes one answered query.
type SearchEvent struct {
	Query      string    `json:"query"`
	Terms      []string  `json:"terms"`
	Outcome    string    `json:"outcome"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	Limit      int       `json:"limit"`
	Generation int64     `json:"generation"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Tracker accepts search events. Track must not block the request path.
type Tracker interface {
	Track(event SearchEvent)
}
