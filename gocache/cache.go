// Package gocache keeps recent enrichment lookups in process memory.
package gocache

import (
	"context"
	"time"

	"github.com/jl-grey-man/smbintel"
	gocache "github.com/patrickmn/go-cache"
)

// DefaultTTL matches the persistent cache.
const DefaultTTL = 30 * 24 * time.Hour

const cleanupInterval = 10 * time.Minute

// Ensure EnrichmentCache implements smbintel.EnrichmentCache at compile time.
var _ smbintel.EnrichmentCache = (*EnrichmentCache)(nil)

// EnrichmentCache is a memory layer in front of another EnrichmentCache.
// Reads check memory first and promote hits from the next layer; writes
// go to both. Every entry's CachedAt is checked against the TTL before it
// is returned, whichever layer it came from.
type EnrichmentCache struct {
	mem  *gocache.Cache
	next smbintel.EnrichmentCache
	ttl  time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewEnrichmentCache creates a memory layer over next, which may be nil
// for a memory-only cache. A non-positive ttl selects DefaultTTL.
func NewEnrichmentCache(next smbintel.EnrichmentCache, ttl time.Duration) *EnrichmentCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &EnrichmentCache{
		mem:  gocache.New(ttl, cleanupInterval),
		next: next,
		ttl:  ttl,
		Now:  time.Now,
	}
}

// Get returns a fresh entry from memory, falling back to the next layer and
// promoting what it finds. Stale or missing entries return ENOTFOUND.
func (c *EnrichmentCache) Get(ctx context.Context, key string) (*smbintel.CacheEntry, error) {
	now := c.Now()
	if v, ok := c.mem.Get(key); ok {
		entry := v.(*smbintel.CacheEntry)
		if entry.Fresh(now, c.ttl) {
			return clone(entry), nil
		}
		c.mem.Delete(key)
	}

	if c.next == nil {
		return nil, smbintel.Errorf(smbintel.ENOTFOUND, "cache entry %q not found", key)
	}
	entry, err := c.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !entry.Fresh(now, c.ttl) {
		return nil, smbintel.Errorf(smbintel.ENOTFOUND, "cache entry %q is stale", key)
	}
	c.remember(entry, now)
	return entry, nil
}

// Set stores the entry in memory and in the next layer.
func (c *EnrichmentCache) Set(ctx context.Context, entry *smbintel.CacheEntry) error {
	if entry.Key == "" {
		return smbintel.Errorf(smbintel.EINVALID, "cache key required")
	}
	if entry.Payload == nil {
		return smbintel.Errorf(smbintel.EINVALID, "cache payload required")
	}
	now := c.Now()
	if entry.CachedAt.IsZero() {
		entry.CachedAt = now.UTC()
	}
	if c.next != nil {
		if err := c.next.Set(ctx, entry); err != nil {
			return err
		}
	}
	c.remember(entry, now)
	return nil
}

// remember stores a copy that expires when the entry goes stale.
func (c *EnrichmentCache) remember(entry *smbintel.CacheEntry, now time.Time) {
	remaining := c.ttl - now.Sub(entry.CachedAt)
	if remaining <= 0 {
		c.mem.Delete(entry.Key)
		return
	}
	c.mem.Set(entry.Key, clone(entry), remaining)
}

func clone(e *smbintel.CacheEntry) *smbintel.CacheEntry {
	out := *e
	if e.Payload != nil {
		p := *e.Payload
		out.Payload = &p
	}
	return &out
}
