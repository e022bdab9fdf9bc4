// Package allabolag looks up Swedish companies on allabolag.se.
package allabolag

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jl-grey-man/smbintel"
)

// DefaultBaseURL is the public site.
const DefaultBaseURL = "https://www.allabolag.se"

// DefaultTimeout bounds a single search request.
const DefaultTimeout = 10 * time.Second

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

// resultSelector matches the first hit on a search page or the company
// card when the search redirects straight to a company.
const resultSelector = "a.search-result-item, div.company-info"

var orgNumberRe = regexp.MustCompile(`(\d{6}-\d{4})`)

// Ensure Client implements smbintel.Registry at compile time.
var _ smbintel.Registry = (*Client)(nil)

// Client searches the registry by company name and scrapes the first hit.
type Client struct {
	client *http.Client

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Limiter, when set, spaces out requests to the registry.
	Limiter smbintel.DomainLimiter
}

// NewClient creates a Client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		BaseURL: DefaultBaseURL,
	}
}

// SearchURL returns the search page URL for a company name.
func (c *Client) SearchURL(company string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/what/" + url.PathEscape(company)
}

// Lookup searches for company. It returns ENOTFOUND when the search page
// has no hit and EUNAVAILABLE when the registry cannot be reached.
func (c *Client) Lookup(ctx context.Context, company string) (*smbintel.Enrichment, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, smbintel.Errorf(smbintel.EINVALID, "company name required")
	}
	searchURL := c.SearchURL(company)

	if c.Limiter != nil {
		u, err := url.Parse(searchURL)
		if err != nil {
			return nil, smbintel.Errorf(smbintel.EINVALID, "bad registry url: %v", err)
		}
		if err := c.Limiter.Wait(ctx, u.Hostname()); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, smbintel.Errorf(smbintel.EINVALID, "bad registry url: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "sv-SE,sv;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, smbintel.Errorf(smbintel.EUNAVAILABLE, "registry search: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, smbintel.Errorf(smbintel.ENOTFOUND, "no registry match for %q", company)
	case resp.StatusCode != http.StatusOK:
		return nil, smbintel.Errorf(smbintel.EUNAVAILABLE, "registry search: HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, smbintel.Errorf(smbintel.EUNAVAILABLE, "registry search: %v", err)
	}

	enr := Parse(doc)
	if enr == nil {
		return nil, smbintel.Errorf(smbintel.ENOTFOUND, "no registry match for %q", company)
	}
	enr.SearchURL = searchURL
	return enr, nil
}

// Parse extracts the first search hit from a registry page, or returns nil
// when the page has none.
func Parse(doc *goquery.Document) *smbintel.Enrichment {
	hit := doc.Find(resultSelector).First()
	if hit.Length() == 0 {
		return nil
	}

	enr := &smbintel.Enrichment{Found: true}
	text := strings.Join(strings.Fields(hit.Text()), " ")
	if m := orgNumberRe.FindStringSubmatch(text); m != nil {
		enr.OrgNumber = m[1]
	}
	if name := hit.Find("h1, h2, h3, .company-name").First(); name.Length() > 0 {
		enr.Name = strings.Join(strings.Fields(name.Text()), " ")
	}
	return enr
}
