package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jl-grey-man/smbintel"
)

// DefaultCacheTTL is how long an enrichment entry stays fresh.
const DefaultCacheTTL = 30 * 24 * time.Hour

// Compile-time interface verification.
var _ smbintel.EnrichmentCache = (*EnrichmentCache)(nil)

// EnrichmentCache implements smbintel.EnrichmentCache using SQLite.
type EnrichmentCache struct {
	db  *DB
	ttl time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewEnrichmentCache creates a new EnrichmentCache. A non-positive ttl
// selects DefaultCacheTTL.
func NewEnrichmentCache(db *DB, ttl time.Duration) *EnrichmentCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &EnrichmentCache{db: db, ttl: ttl, Now: time.Now}
}

// Get returns a fresh entry. Missing and stale entries both return ENOTFOUND.
func (c *EnrichmentCache) Get(ctx context.Context, key string) (*smbintel.CacheEntry, error) {
	var payload, cachedAt string
	err := c.db.QueryRowContext(ctx,
		"SELECT payload, cached_at FROM enrichment_cache WHERE key = ?", key).Scan(&payload, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, smbintel.Errorf(smbintel.ENOTFOUND, "cache entry %q not found", key)
	}
	if err != nil {
		return nil, err
	}

	t, err := parseRFC3339(cachedAt, "cached_at")
	if err != nil {
		return nil, err
	}
	entry := &smbintel.CacheEntry{Key: key, CachedAt: t}
	if !entry.Fresh(c.Now(), c.ttl) {
		return nil, smbintel.Errorf(smbintel.ENOTFOUND, "cache entry %q is stale", key)
	}

	var e smbintel.Enrichment
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return nil, fmt.Errorf("failed to decode cache payload: %w", err)
	}
	entry.Payload = &e
	return entry, nil
}

// Set stores an entry, overwriting any previous value for its key.
func (c *EnrichmentCache) Set(ctx context.Context, entry *smbintel.CacheEntry) error {
	if entry.Key == "" {
		return smbintel.Errorf(smbintel.EINVALID, "cache key required")
	}
	if entry.Payload == nil {
		return smbintel.Errorf(smbintel.EINVALID, "cache payload required")
	}
	if entry.CachedAt.IsZero() {
		entry.CachedAt = c.Now().UTC()
	}

	b, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode cache payload: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO enrichment_cache (key, payload, cached_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at
	`, entry.Key, string(b), formatTime(entry.CachedAt))
	return err
}
