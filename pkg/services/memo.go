package services

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"video-catalog/pkg/metrics"
)

// FetchFunc produces the value for a key on a cache miss.
type FetchFunc[T any] func(ctx context.Context, key string) (T, error)

// captured wraps a fetched value with the time it was produced.
type captured[T any] struct {
	value T
	at    time.Time
}

// Memo is a time-bounded memoization of a fetch function. Concurrent misses are
// not coalesced: both fetch and the last one to finish is kept.
type Memo[T any] struct {
	fetch FetchFunc[T]
	store *cache.Cache
	ttl   time.Duration
}

// NewMemo creates a memo. A ttl of zero or less disables caching.
func NewMemo[T any](ttl time.Duration, fetch FetchFunc[T]) *Memo[T] {
	return &Memo[T]{
		fetch: fetch,
		store: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Peek returns a cached value without fetching.
func (m *Memo[T]) Peek(key string) (T, bool) {
	if v, found := m.store.Get(key); found {
		return v.(captured[T]).value, true
	}
	var zero T
	return zero, false
}

// CapturedAt returns when the cached value for key was fetched.
func (m *Memo[T]) CapturedAt(key string) (time.Time, bool) {
	if v, found := m.store.Get(key); found {
		return v.(captured[T]).at, true
	}
	return time.Time{}, false
}

// Get returns the cached value for key or fetches and caches it.
func (m *Memo[T]) Get(ctx context.Context, key string) (T, error) {
	if v, ok := m.Peek(key); ok {
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		return v, nil
	}
	metrics.CacheRequests.WithLabelValues("miss").Inc()

	v, err := m.fetch(ctx, key)
	if err != nil {
		return v, err
	}
	if m.ttl > 0 {
		m.store.Set(key, captured[T]{value: v, at: time.Now()}, cache.DefaultExpiration)
	}
	return v, nil
}

// Flush drops every cached value.
func (m *Memo[T]) Flush() {
	m.store.Flush()
}
