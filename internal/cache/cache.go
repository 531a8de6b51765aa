package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a short-TTL in-memory cache with request coalescing: for
// any fingerprint at most one computation is in flight, concurrent
// callers share its result. It shields platform APIs from redundant
// polls and analyzers from recomputation.
type Cache struct {
	sf  singleflight.Group
	clk func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	value   any
	expires time.Time
}

func New() *Cache {
	return &Cache{
		clk:     func() time.Time { return time.Now() },
		entries: make(map[string]entry),
	}
}

// WithClock substitutes the time source for tests.
func (c *Cache) WithClock(clk func() time.Time) *Cache {
	c.clk = clk
	return c
}

// Fingerprint derives a deterministic cache key from request inputs.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0x1f})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) get(fp string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[fp]
	if !ok || c.clk().After(e.expires) {
		return nil, false
	}
	return e.value, true
}

// GetOrCompute returns the unexpired cached value for fp, or runs fn
// exactly once across concurrent callers and stores its result with
// the given TTL. Errors are not cached.
func (c *Cache) GetOrCompute(ctx context.Context, fp string, ttl time.Duration, fn func(ctx context.Context) (any, error)) (any, error) {
	if v, ok := c.get(fp); ok {
		return v, nil
	}

	v, err, _ := c.sf.Do(fp, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// stored the value between the miss and the Do.
		if v, ok := c.get(fp); ok {
			return v, nil
		}
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[fp] = entry{value: v, expires: c.clk().Add(ttl)}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Invalidate drops one fingerprint.
func (c *Cache) Invalidate(fp string) {
	c.mu.Lock()
	delete(c.entries, fp)
	c.mu.Unlock()
}

// Sweep removes expired entries. The owning process runs it on a slow
// ticker; correctness never depends on it.
func (c *Cache) Sweep() {
	now := c.clk()
	c.mu.Lock()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}
