// Package crawl fetches search result pages into the crawl ledger.
// It coordinates robots.txt checks, per-domain rate limiting, fetching,
// text extraction, and storage.
package crawl

import (
	"context"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/jl-grey-man/smbintel"
	"golang.org/x/sync/errgroup"
)

// Text limits applied to extracted page text.
const (
	// MinTextLen is the shortest page text, in characters, worth storing.
	MinTextLen = 100

	// MaxTextLen is where page text is cut off.
	MaxTextLen = 50000

	// TruncatedMarker is appended to text cut at MaxTextLen.
	TruncatedMarker = "\n[TRUNCATED]"
)

// DefaultConcurrency is the number of pages fetched in parallel.
const DefaultConcurrency = 4

// Crawler fetches result pages and appends them to the Ledger.
type Crawler struct {
	Ledger      smbintel.Ledger
	Fetcher     smbintel.Fetcher
	Extractor   smbintel.Extractor
	RateLimiter smbintel.DomainLimiter

	// Robots, when set, is consulted before every fetch.
	Robots *RobotsChecker

	// SkipDomains lists registrable domains never fetched.
	// Defaults to DefaultSkipDomains.
	SkipDomains []string

	Concurrency int
	RetryDelays []time.Duration
	Logger      *slog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Result holds the outcome of an ingest.
type Result struct {
	Stored     int // new records written
	Duplicates int // pages whose fingerprint was already stored
	Skipped    int // excluded, disallowed, already known, or too short
	Failed     int // fetch, extraction, or storage errors
}

// outcome is the result of processing a single URL.
type outcome int

const (
	outcomeFetched outcome = iota
	outcomeSkipped
	outcomeFailed
)

// page holds a fetched page awaiting insertion.
type page struct {
	url     string
	domain  string
	title   string
	text    string
	outcome outcome
	err     error
}

func (c *Crawler) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (c *Crawler) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Ingest fetches urls and stores their text with the given provenance.
// Fetches run in parallel but records are inserted one at a time in input
// order, so an interrupted ingest leaves a prefix of the batch stored.
func (c *Crawler) Ingest(ctx context.Context, prov smbintel.Provenance, urls []string) (*Result, error) {
	result := &Result{}
	skip := newDomainSet(c.SkipDomains)

	// Filter before any network access.
	var candidates []string
	seen := make(map[string]bool)
	for _, raw := range urls {
		normalized, err := smbintel.NormalizeURL(raw)
		if err != nil {
			c.logger().Debug("skipping invalid url", "url", raw, "err", err)
			result.Skipped++
			continue
		}
		if seen[normalized] {
			result.Skipped++
			continue
		}
		seen[normalized] = true

		if skip.contains(normalized) {
			c.logger().Debug("skipping excluded domain", "url", raw)
			result.Skipped++
			continue
		}
		known, err := c.Ledger.HasURL(ctx, normalized)
		if err != nil {
			return nil, err
		}
		if known {
			c.logger().Debug("skipping known url", "url", raw)
			result.Skipped++
			continue
		}
		candidates = append(candidates, raw)
	}

	pages := c.fetchAll(ctx, candidates)

	for _, p := range pages {
		switch p.outcome {
		case outcomeSkipped:
			result.Skipped++
			continue
		case outcomeFailed:
			c.logger().Warn("fetch failed", "url", p.url, "err", p.err)
			result.Failed++
			continue
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}
		inserted, err := c.Ledger.Insert(ctx, &smbintel.CrawlRecord{
			SourceURL:  p.url,
			Domain:     p.domain,
			Title:      p.title,
			HTTPStatus: 200,
			FetchedAt:  c.now().UTC(),
			Provenance: prov,
			RawText:    p.text,
		})
		switch {
		case err != nil:
			c.logger().Error("store failed", "url", p.url, "err", err)
			result.Failed++
		case inserted:
			result.Stored++
		default:
			result.Duplicates++
		}
	}
	return result, nil
}

// fetchAll processes urls with bounded parallelism and returns the pages
// in input order.
func (c *Crawler) fetchAll(ctx context.Context, urls []string) []page {
	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	pages := make([]page, len(urls))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, u := range urls {
		g.Go(func() error {
			pages[i] = c.process(gctx, u)
			c.logger().Debug("page processed", "url", u, "completed", done.Add(1), "total", len(urls))
			return nil
		})
	}
	_ = g.Wait()
	return pages
}

// process fetches and extracts a single URL.
func (c *Crawler) process(ctx context.Context, rawURL string) page {
	p := page{url: rawURL}

	u, err := url.Parse(rawURL)
	if err != nil {
		p.outcome, p.err = outcomeFailed, err
		return p
	}
	p.domain = Domain(u.Hostname())

	if c.Robots != nil {
		allowed, delay, err := c.Robots.Allowed(ctx, rawURL)
		if err != nil {
			p.outcome, p.err = outcomeFailed, err
			return p
		}
		if !allowed {
			c.logger().Info("disallowed by robots.txt", "url", rawURL)
			p.outcome = outcomeSkipped
			return p
		}
		if delay > 0 {
			if s, ok := c.RateLimiter.(interface {
				SetMinInterval(domain string, d time.Duration)
			}); ok {
				s.SetMinInterval(p.domain, delay)
			}
		}
	}

	delays := c.RetryDelays
	if delays == nil {
		delays = DefaultRetryDelays()
	}
	fetchFn := func(ctx context.Context, url string) (string, error) {
		if c.RateLimiter != nil {
			if err := c.RateLimiter.Wait(ctx, p.domain); err != nil {
				return "", err
			}
		}
		return c.Fetcher.Fetch(ctx, url)
	}
	html, err := FetchWithRetryDelays(ctx, rawURL, fetchFn, c.logger(), delays)
	if err != nil {
		p.outcome, p.err = outcomeFailed, err
		return p
	}

	extracted, err := c.Extractor.Extract(html)
	if err != nil {
		p.outcome, p.err = outcomeFailed, err
		return p
	}
	if utf8.RuneCountInString(extracted.Text) < MinTextLen {
		c.logger().Debug("page text too short", "url", rawURL)
		p.outcome = outcomeSkipped
		return p
	}

	p.title = extracted.Title
	p.text = Truncate(extracted.Text)
	return p
}

// Truncate cuts text longer than MaxTextLen characters and marks the cut.
func Truncate(text string) string {
	if utf8.RuneCountInString(text) <= MaxTextLen {
		return text
	}
	return smbintel.ContentPrefix(text, MaxTextLen) + TruncatedMarker
}
