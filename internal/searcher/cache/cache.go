// Package cache memoizes answers in a per-process LRU and, optionally, a
// shared Redis tier. Keys include the artifact generation, so a reload
// makes every older entry unreachable without an explicit flush.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/civicpulse/civicsearch/internal/searcher/retriever"
	"github.com/civicpulse/civicsearch/pkg/metrics"
	"github.com/civicpulse/civicsearch/pkg/resilience"
)

const keyPrefix = "civicsearch:answer:"

// Store is the shared second tier. *redis.Client implements it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// Stats is a snapshot of cache counters.
type Stats struct {
	L1Hits    int64  `json:"l1_hits"`
	L2Hits    int64  `json:"l2_hits"`
	Misses    int64  `json:"misses"`
	L1Entries int    `json:"l1_entries"`
	L2Enabled bool   `json:"l2_enabled"`
	L2Circuit string `json:"l2_circuit,omitempty"`
}

// AnswerCache caches *retriever.Result values. Cached results are shared
// between callers and must not be modified.
type AnswerCache struct {
	l1      *lru.Cache[string, *retriever.Result]
	store   Store
	breaker *resilience.CircuitBreaker
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	l1Hits atomic.Int64
	l2Hits atomic.Int64
	misses atomic.Int64
}

// New creates a cache holding up to size answers in process. store may be
// nil to run without the shared tier; ttl applies to the shared tier only.
func New(size int, store Store, ttl time.Duration, m *metrics.Metrics) (*AnswerCache, error) {
	l1, err := lru.New[string, *retriever.Result](size)
	if err != nil {
		return nil, fmt.Errorf("creating answer cache: %w", err)
	}
	c := &AnswerCache{
		l1:      l1,
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "answer-cache"),
	}
	if store != nil {
		c.breaker = resilience.NewCircuitBreaker("answer-cache-l2", resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     15 * time.Second,
		})
	}
	return c, nil
}

// Key identifies an answer by build identity, distinct query terms in query
// order, and limit. Term order is kept because it decides tie order.
func Key(build string, terms []string, limit int) string {
	raw := build + "|" + strings.Join(terms, "\x1f") + "|" + strconv.Itoa(limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, build, hash[:16])
}

// GetOrCompute returns the cached answer for key or computes it once, even
// under concurrent identical requests. cached reports whether the answer
// came from either tier. Errors are never cached.
func (c *AnswerCache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func() (*retriever.Result, error),
) (result *retriever.Result, cached bool, err error) {
	if result, ok := c.get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		if result, ok := c.get(ctx, key); ok {
			return result, nil
		}
		c.misses.Add(1)
		if c.metrics != nil {
			c.metrics.CacheMissesTotal.Inc()
		}
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*retriever.Result), false, nil
}

func (c *AnswerCache) get(ctx context.Context, key string) (*retriever.Result, bool) {
	if result, ok := c.l1.Get(key); ok {
		c.hit(&c.l1Hits, "l1")
		return result, true
	}
	if c.store == nil {
		return nil, false
	}
	var data []byte
	var found bool
	err := c.breaker.Execute(func() error {
		var err error
		data, found, err = c.store.Get(ctx, key)
		return err
	})
	if err != nil {
		c.logger.Warn("shared cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var result retriever.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("shared cache entry unreadable", "key", key, "error", err)
		return nil, false
	}
	c.l1.Add(key, &result)
	c.hit(&c.l2Hits, "l2")
	return &result, true
}

func (c *AnswerCache) set(ctx context.Context, key string, result *retriever.Result) {
	c.l1.Add(key, result)
	if c.store == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("shared cache set failed", "key", key, "error", err)
	}
}

func (c *AnswerCache) hit(counter *atomic.Int64, tier string) {
	counter.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

// Invalidate drops every cached answer in both tiers.
func (c *AnswerCache) Invalidate(ctx context.Context) error {
	c.l1.Purge()
	if c.store == nil {
		c.logger.Info("cache invalidated", "tier", "l1")
		return nil
	}
	deleted, err := c.store.DeletePrefix(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("invalidating shared cache: %w", err)
	}
	c.logger.Info("cache invalidated", "tier", "l1+l2", "keys_deleted", deleted)
	return nil
}

// Stats returns the current counters.
func (c *AnswerCache) Stats() Stats {
	s := Stats{
		L1Hits:    c.l1Hits.Load(),
		L2Hits:    c.l2Hits.Load(),
		Misses:    c.misses.Load(),
		L1Entries: c.l1.Len(),
		L2Enabled: c.store != nil,
	}
	if c.breaker != nil {
		s.L2Circuit = c.breaker.State().String()
	}
	return s
}
