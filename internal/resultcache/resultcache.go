// Package resultcache stores successful verification outcomes for a
// short TTL, keyed by a digest of the raw token, so hot tokens skip
// repeat signature checks. Failures are never cached.
package resultcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/gateguard/gateguard/internal/token"
)

type Cache struct {
	cache *ristretto.Cache
}

// New creates a Cache sized for roughly maxEntries claims values.
func New(maxEntries int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &Cache{cache: c}, nil
}

// Get returns the cached claims for the token, if present and unexpired.
func (c *Cache) Get(tokenStr string) (*token.Claims, bool) {
	v, ok := c.cache.Get(key(tokenStr))
	if !ok {
		return nil, false
	}
	claims, ok := v.(*token.Claims)
	return claims, ok
}

// Put caches claims for the token until ttl elapses. Non-positive TTLs
// are dropped rather than cached forever.
func (c *Cache) Put(tokenStr string, claims *token.Claims, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.cache.SetWithTTL(key(tokenStr), claims, 1, ttl)
}

// Wait flushes pending sets (useful for test determinism; ristretto
// applies writes asynchronously).
func (c *Cache) Wait() { c.cache.Wait() }

// key digests the token so the cache never holds raw token material.
func key(tokenStr string) string {
	s := sha256.Sum256([]byte(tokenStr))
	return hex.EncodeToString(s[:])
}
