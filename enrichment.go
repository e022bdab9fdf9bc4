package smbintel

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// Enrichment is supplementary registry data about a company.
type Enrichment struct {
	Found     bool   `json:"found"`
	OrgNumber string `json:"orgNumber,omitempty"`
	Name      string `json:"name,omitempty"`
	SearchURL string `json:"searchUrl,omitempty"`
}

// CacheEntry is a cached enrichment lookup.
// An entry older than the cache TTL is treated as absent.
type CacheEntry struct {
	Key      string      `json:"key"`
	Payload  *Enrichment `json:"payload"`
	CachedAt time.Time   `json:"cachedAt"`
}

// Fresh reports whether the entry is younger than ttl at now.
func (e *CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return e != nil && now.Sub(e.CachedAt) < ttl
}

// EnrichmentCache is a time-bounded cache of registry lookups.
type EnrichmentCache interface {
	// Get returns a fresh entry for key.
	// Returns ENOTFOUND if the entry is absent or stale.
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores an entry, unconditionally overwriting any existing one.
	Set(ctx context.Context, entry *CacheEntry) error
}

// Registry looks up companies in an external company registry.
type Registry interface {
	// Lookup queries the registry by company name.
	// Returns ENOTFOUND if the registry has no match.
	Lookup(ctx context.Context, company string) (*Enrichment, error)
}

// CompanyKey normalizes a company name for use as a cache key.
func CompanyKey(name string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(name), unicode.IsSpace), " ")
}
