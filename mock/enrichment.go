package mock

import (
	"context"

	"github.com/jl-grey-man/smbintel"
)

var _ smbintel.EnrichmentCache = (*EnrichmentCache)(nil)

// EnrichmentCache is a mock implementation of smbintel.EnrichmentCache.
type EnrichmentCache struct {
	GetFn func(ctx context.Context, key string) (*smbintel.CacheEntry, error)
	SetFn func(ctx context.Context, entry *smbintel.CacheEntry) error
}

func (c *EnrichmentCache) Get(ctx context.Context, key string) (*smbintel.CacheEntry, error) {
	return c.GetFn(ctx, key)
}

func (c *EnrichmentCache) Set(ctx context.Context, entry *smbintel.CacheEntry) error {
	return c.SetFn(ctx, entry)
}

var _ smbintel.Registry = (*Registry)(nil)

// Registry is a mock implementation of smbintel.Registry.
type Registry struct {
	LookupFn func(ctx context.Context, company string) (*smbintel.Enrichment, error)
}

func (r *Registry) Lookup(ctx context.Context, company string) (*smbintel.Enrichment, error) {
	return r.LookupFn(ctx, company)
}
