package analytics

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	value   any
	expires time.Time
}

// resultCache holds computed reports for a fixed TTL. A non-positive TTL
// disables storage but still collapses concurrent identical calls. Cached
// values are handed to every caller and are read-only.
type resultCache struct {
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	group   singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// timeout bounds one shared computation; non-positive means no bound.
func newResultCache(ttl, timeout time.Duration, now func() time.Time) *resultCache {
	return &resultCache{ttl: ttl, timeout: timeout, now: now, entries: make(map[string]cacheEntry)}
}

func (c *resultCache) get(key string) (any, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *resultCache) put(key string, value any) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *resultCache) purge() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// cached returns the value for key, computing it at most once across
// concurrent callers. The computation runs detached from the caller that
// started it, so one cancelled request does not fail the others waiting on the
// same key. Each caller still stops waiting when its own ctx ends.
func cached[T any](ctx context.Context, c *resultCache, key string, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.get(key); ok {
		return v.(T), nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		runCtx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, c.timeout)
			defer cancel()
		}
		result, err := compute(runCtx)
		if err != nil {
			return nil, err
		}
		c.put(key, result)
		return result, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
