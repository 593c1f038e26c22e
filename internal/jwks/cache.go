// Package jwks maintains per-endpoint caches of remote signing keys with
// time-based expiry, background refresh, and on-demand forced refresh so
// key rotation never rejects in-flight traffic.
package jwks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache answers kid lookups across one or more Sources. All access to the
// endpoint->keySet map happens under a single mutex held only for the
// in-memory map access; network fetches run outside the lock so a slow
// endpoint never blocks concurrent lookups. Two concurrent forced
// refreshes of the same endpoint may both hit the network; the last
// writer wins harmlessly since key sets are immutable value replacements.
type Cache struct {
	sources      []*Source
	ttl          time.Duration
	refreshEvery time.Duration
	log          *slog.Logger

	mu   sync.Mutex
	sets map[string]*keySet

	// sfGroup collapses concurrent forced refreshes triggered by cache
	// misses into one network round per endpoint.
	sfGroup singleflight.Group

	cancel context.CancelFunc
	done   chan struct{}

	// now is replaced in tests to exercise TTL expiry.
	now func() time.Time
}

// NewCache creates a Cache over the given sources. It performs no I/O;
// call Initialize to warm the cache and start the background loop.
func NewCache(sources []*Source, ttl, refreshEvery time.Duration, log *slog.Logger) *Cache {
	return &Cache{
		sources:      sources,
		ttl:          ttl,
		refreshEvery: refreshEvery,
		log:          log,
		sets:         make(map[string]*keySet, len(sources)),
		now:          time.Now,
	}
}

// Initialize fetches every configured endpoint once, logging but not
// failing on individual errors, then starts the background refresh loop.
// Calling it again while running is a no-op; no duplicate loops are
// started.
func (c *Cache) Initialize(ctx context.Context) {
	c.log.Info("initializing jwks cache", "endpoints", len(c.sources))
	for _, src := range c.sources {
		if err := c.fetch(ctx, src, false); err != nil {
			c.log.Error("jwks cache initialization fetch failed", "url", src.URL(), "error", err)
		}
	}
	c.startRefreshLoop()
}

// startRefreshLoop starts the background loop if it is not running.
func (c *Cache) startRefreshLoop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.refreshLoop(ctx, c.done)
	c.log.Info("started jwks background refresh", "interval", c.refreshEvery)
}

// Shutdown cancels the background loop and waits for it to exit. Safe to
// call multiple times.
func (c *Cache) Shutdown() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.log.Info("stopped jwks background refresh")
}

func (c *Cache) refreshLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.refreshEvery):
		}
		c.refreshAll(ctx)
	}
}

// GetKey looks up kid across all cached key sets. On a miss it performs a
// synchronous forced refresh of every endpoint and retries the lookup
// exactly once before returning ErrKeyNotFound. The single retry is what
// makes a token signed with a just-rotated key resolvable on its first
// validation attempt.
func (c *Cache) GetKey(ctx context.Context, kid string) (KeyRecord, error) {
	if rec, ok := c.lookup(kid); ok {
		return rec, nil
	}

	c.log.Warn("key not found in cache, attempting refresh", "kid", kid)
	c.forcedRefresh(ctx)

	if rec, ok := c.lookup(kid); ok {
		c.log.Info("key found after refresh", "kid", kid)
		return rec, nil
	}
	c.log.Error("key not found after refresh attempt", "kid", kid)
	return KeyRecord{}, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
}

func (c *Cache) lookup(kid string) (KeyRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, src := range c.sources {
		if set, ok := c.sets[src.URL()]; ok {
			if rec, ok := set.records[kid]; ok {
				return rec, true
			}
		}
	}
	return KeyRecord{}, false
}

// forcedRefresh force-fetches every endpoint, collapsing concurrent
// callers into one round of network fetches.
func (c *Cache) forcedRefresh(ctx context.Context) {
	c.sfGroup.Do("forced-refresh", func() (any, error) {
		for _, src := range c.sources {
			if err := c.fetch(ctx, src, true); err != nil {
				c.log.Error("forced jwks refresh failed", "url", src.URL(), "error", err)
			}
		}
		return nil, nil
	})
}

func (c *Cache) refreshAll(ctx context.Context) {
	for _, src := range c.sources {
		if err := c.fetch(ctx, src, true); err != nil {
			c.log.Error("background jwks refresh failed", "url", src.URL(), "error", err)
		}
	}
}

// fetch refreshes one endpoint. An unforced fetch is a no-op while the
// cached set is fresh. Any failure, including a response with no usable
// keys, leaves the previously cached set in place: a failed refresh
// degrades freshness, never availability.
func (c *Cache) fetch(ctx context.Context, src *Source, force bool) error {
	now := c.now()

	if !force {
		c.mu.Lock()
		set, ok := c.sets[src.URL()]
		c.mu.Unlock()
		if ok && set.fresh(now) {
			return nil
		}
	}

	parsed, err := src.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	set, err := newKeySet(src.URL(), parsed, now, c.ttl)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.sets[src.URL()] = set
	c.mu.Unlock()

	c.log.Info("jwks cached", "url", src.URL(), "key_count", len(set.records), "kids", set.kids)
	return nil
}

// CachedKeys reports the kids currently cached per endpoint, for
// monitoring surfaces.
func (c *Cache) CachedKeys() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]string, len(c.sets))
	for url, set := range c.sets {
		kids := make([]string, len(set.kids))
		copy(kids, set.kids)
		out[url] = kids
	}
	return out
}
