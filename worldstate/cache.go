package worldstate

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/voxelmind/reflexcore/observability"
)

// Fetcher samples the external bot state. It may block on I/O.
type Fetcher func(ctx context.Context) (*Sample, error)

// Cache is a single-flight TTL cache over a Fetcher.
//
// Contract:
//   - Get returns the cached sample while it is younger than the TTL.
//   - Concurrent Get calls during a fetch join the in-flight fetch; the
//     fetcher runs at most once per generation.
//   - A fetch error yields nil (fail-closed). Errors are never cached, so
//     the next Get retries.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration

	mu       sync.Mutex
	cached   *Sample
	cachedAt time.Time
	inflight chan struct{} // closed when the current fetch finishes
	result   *Sample       // fetch result for joiners, nil on error
}

// NewCache creates a cache with the given fetcher and TTL. The tick interval
// is expected to exceed the TTL so each tick performs at most one fetch.
func NewCache(fetcher Fetcher, ttl time.Duration) *Cache {
	return &Cache{fetcher: fetcher, ttl: ttl}
}

// Get returns the current world sample, or nil when the state is unavailable.
// Callers interpret nil as "do nothing".
func (c *Cache) Get(ctx context.Context) *Sample {
	c.mu.Lock()
	if c.cached != nil && time.Since(c.cachedAt) < c.ttl {
		sample := c.cached
		c.mu.Unlock()
		observability.WorldStateCacheHits.Inc()
		return sample
	}

	observability.WorldStateCacheMisses.Inc()

	if c.inflight != nil {
		// Join the fetch already in flight.
		done := c.inflight
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil
		}
		c.mu.Lock()
		sample := c.result
		c.mu.Unlock()
		return sample
	}

	done := make(chan struct{})
	c.inflight = done
	c.mu.Unlock()

	start := time.Now()
	sample, err := c.fetcher(ctx)
	observability.WorldStateFetchDuration.Observe(time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		log.Printf("[CACHE] world-state fetch failed: %v", err)
		observability.WorldStateFetchErrors.Inc()
		sample = nil
	} else if sample != nil && c.inflight == done {
		// Cache only while this fetch is still the current generation;
		// Invalidate may have detached the handle mid-flight, and a stale
		// fetch must not resurrect the invalidated sample.
		c.cached = sample
		c.cachedAt = time.Now()
	}

	// Joiners of this generation still get the fetched value.
	c.result = sample
	if c.inflight == done {
		c.inflight = nil
	}
	close(done)
	return sample
}

// Invalidate clears the cached sample and detaches any in-flight fetch so the
// next Get starts a fresh one.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
	c.cachedAt = time.Time{}
	c.inflight = nil
}
