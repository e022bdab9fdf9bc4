package crawl

import (
	"context"
	"sync"
	"time"

	"github.com/jl-grey-man/smbintel"
	"golang.org/x/time/rate"
)

var _ smbintel.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter enforces a minimum delay between requests to the same
// domain. Requests to different domains do not wait on each other.
type DomainLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

// NewDomainLimiter creates a DomainLimiter that allows one request per
// interval per domain, with no bursting.
func NewDomainLimiter(interval time.Duration) *DomainLimiter {
	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

func (d *DomainLimiter) limiter(domain string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[domain]
	if !ok {
		l = rate.NewLimiter(rate.Every(d.interval), 1)
		d.limiters[domain] = l
	}
	return l
}

// Wait blocks until the rate limit allows a request to the domain.
// Returns an error if the context is canceled before the wait completes.
func (d *DomainLimiter) Wait(ctx context.Context, domain string) error {
	return d.limiter(domain).Wait(ctx)
}

// SetMinInterval slows a domain down to at most one request per interval.
// It never speeds a domain up.
func (d *DomainLimiter) SetMinInterval(domain string, interval time.Duration) {
	l := d.limiter(domain)
	if limit := rate.Every(interval); limit < l.Limit() {
		l.SetLimit(limit)
	}
}
