package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicpulse/civicsearch/internal/searcher/retriever"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
	gets atomic.Int32
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.gets.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, false, s.err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.data[key] = value
	return nil
}

func (s *memStore) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func matched(query string) *retriever.Result {
	return &retriever.Result{
		Query:   query,
		Outcome: retriever.OutcomeMatched,
		Items:   []retriever.ResultItem{{Collection: "events", Title: "Feria", Score: 1}},
	}
}

func TestKey(t *testing.T) {
	k := Key("g3-aaaa", []string{"feria", "parque"}, 4)
	assert.True(t, strings.HasPrefix(k, keyPrefix+"g3-aaaa:"))
	assert.Equal(t, k, Key("g3-aaaa", []string{"feria", "parque"}, 4))
	assert.NotEqual(t, k, Key("g4-aaaa", []string{"feria", "parque"}, 4))
	assert.NotEqual(t, k, Key("g3-aaaa", []string{"parque", "feria"}, 4))
	assert.NotEqual(t, k, Key("g3-aaaa", []string{"feria", "parque"}, 2))
	assert.NotEqual(t, Key("g1", []string{"ab", "c"}, 4), Key("g1", []string{"a", "bc"}, 4))

	// A rebuild that restarted the generation count gets fresh keys.
	assert.NotEqual(t, Key("g1-aaaa", []string{"feria"}, 4), Key("g1-bbbb", []string{"feria"}, 4))
}

func TestGetOrComputeL1(t *testing.T) {
	c, err := New(8, nil, time.Minute, nil)
	require.NoError(t, err)

	calls := 0
	compute := func() (*retriever.Result, error) { calls++; return matched("feria"), nil }

	_, cached, err := c.GetOrCompute(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.False(t, cached)
	res, cached, err := c.GetOrCompute(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "feria", res.Query)
	assert.Equal(t, 1, calls)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.L1Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.False(t, stats.L2Enabled)
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c, err := New(8, nil, time.Minute, nil)
	require.NoError(t, err)
	boom := errors.New("boom")

	_, _, err = c.GetOrCompute(context.Background(), "k", func() (*retriever.Result, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	_, cached, err := c.GetOrCompute(context.Background(), "k", func() (*retriever.Result, error) { return matched("x"), nil })
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestSharedTierServesOtherProcesses(t *testing.T) {
	store := newMemStore()
	a, err := New(8, store, time.Minute, nil)
	require.NoError(t, err)
	b, err := New(8, store, time.Minute, nil)
	require.NoError(t, err)

	_, _, err = a.GetOrCompute(context.Background(), "k", func() (*retriever.Result, error) { return matched("feria"), nil })
	require.NoError(t, err)

	res, cached, err := b.GetOrCompute(context.Background(), "k", func() (*retriever.Result, error) {
		t.Fatal("should have been served from the shared tier")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, matched("feria"), res)
	assert.Equal(t, int64(1), b.Stats().L2Hits)
}

func TestSharedTierFailureFallsBackToCompute(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	c, err := New(8, store, time.Minute, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		_, cached, err := c.GetOrCompute(context.Background(), key, func() (*retriever.Result, error) { return matched(key), nil })
		require.NoError(t, err)
		assert.False(t, cached)
	}
	assert.Equal(t, "open", c.Stats().L2Circuit)
	gets := store.gets.Load()

	_, _, err = c.GetOrCompute(context.Background(), "z", func() (*retriever.Result, error) { return matched("z"), nil })
	require.NoError(t, err)
	assert.Equal(t, gets, store.gets.Load(), "open circuit must skip the shared tier")
}

func TestConcurrentMissesComputeOnce(t *testing.T) {
	c, err := New(8, nil, time.Minute, nil)
	require.NoError(t, err)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*retriever.Result, error) {
		calls.Add(1)
		<-release
		return matched("feria"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), "k", compute)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["unrelated"] = []byte("x")
	c, err := New(8, store, time.Minute, nil)
	require.NoError(t, err)

	_, _, err = c.GetOrCompute(context.Background(), Key("g1", []string{"feria"}, 4), func() (*retriever.Result, error) { return matched("feria"), nil })
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(context.Background()))

	assert.Equal(t, 0, c.Stats().L1Entries)
	assert.Len(t, store.data, 1)
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	_, err := New(0, nil, time.Minute, nil)
	require.Error(t, err)
}
