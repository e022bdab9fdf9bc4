package smbintel

import (
	"context"
	"iter"
	"net/url"
	"sort"
	"strings"
	"time"
)

// FingerprintPrefixLen is the number of leading content runes that take part
// in a record fingerprint. Pages whose first runes match at the same URL are
// treated as the same page.
const FingerprintPrefixLen = 500

// Pool identifies which keyword pool a search term belongs to.
type Pool string

// Pool constants.
const (
	PoolExploit Pool = "exploit"
	PoolExplore Pool = "explore"
)

// Valid reports whether p is a known pool.
func (p Pool) Valid() bool {
	return p == PoolExploit || p == PoolExplore
}

// Provenance links a fetched page to the query that produced it.
type Provenance struct {
	Term    string `json:"term"`
	Pool    Pool   `json:"pool"`
	CycleID string `json:"cycleId"`
}

// CrawlRecord is a fetched page as stored in the Ledger.
// Records are never mutated or deleted after insertion.
type CrawlRecord struct {
	Fingerprint string     `json:"fingerprint"`
	SourceURL   string     `json:"sourceUrl"`
	Domain      string     `json:"domain"`
	Title       string     `json:"title"`
	HTTPStatus  int        `json:"httpStatus"`
	FetchedAt   time.Time  `json:"fetchedAt"`
	Provenance  Provenance `json:"provenance"`
	RawText     string     `json:"rawText"`
}

// Validate returns an error if the record contains invalid fields.
func (r *CrawlRecord) Validate() error {
	if r.SourceURL == "" {
		return Errorf(EINVALID, "record source URL required")
	}
	if r.RawText == "" {
		return Errorf(EINVALID, "record raw text required")
	}
	if r.Provenance.Pool != "" && !r.Provenance.Pool.Valid() {
		return Errorf(EINVALID, "invalid provenance pool %q", r.Provenance.Pool)
	}
	return nil
}

// Interpretation marks a record as processed by the interpreter.
// Claims counts stored claims; Dropped counts claims rejected at the
// schema boundary.
type Interpretation struct {
	Fingerprint   string    `json:"fingerprint"`
	InterpretedAt time.Time `json:"interpretedAt"`
	Claims        int       `json:"claims"`
	Dropped       int       `json:"dropped"`
}

// Ledger is the append-only store of fetched pages.
type Ledger interface {
	// Exists reports whether a record with the fingerprint is stored.
	Exists(ctx context.Context, fingerprint string) (bool, error)

	// HasURL reports whether any record for the normalized URL is stored.
	// Used to skip fetches before content is known.
	HasURL(ctx context.Context, rawURL string) (bool, error)

	// Insert stores a new record. The fingerprint is computed when empty.
	// Inserting an existing fingerprint is a no-op and returns false.
	Insert(ctx context.Context, rec *CrawlRecord) (inserted bool, err error)

	// FindRecord retrieves a record by fingerprint.
	// Returns ENOTFOUND if the record does not exist.
	FindRecord(ctx context.Context, fingerprint string) (*CrawlRecord, error)

	// PendingForInterpretation lazily yields records without an
	// interpretation marker, oldest first.
	PendingForInterpretation(ctx context.Context) iter.Seq2[*CrawlRecord, error]

	// MarkInterpreted records that a page has been interpreted.
	MarkInterpreted(ctx context.Context, in *Interpretation) error
}

// trackingParams are query parameters stripped during URL normalization.
var trackingParams = []string{"utm_", "fbclid", "gclid"}

// NormalizeURL returns a canonical form of rawURL for identity purposes.
// Scheme and host are lowercased, fragments, default ports and tracking
// parameters are dropped, query parameters are sorted and a trailing slash
// is removed from non-root paths.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", Errorf(EINVALID, "invalid URL %q: %v", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", Errorf(EINVALID, "URL %q must be absolute", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}

	q := u.Query()
	for key := range q {
		for _, p := range trackingParams {
			if strings.HasPrefix(strings.ToLower(key), p) {
				q.Del(key)
			}
		}
	}
	u.RawQuery = encodeSorted(q)

	return u.String(), nil
}

// encodeSorted encodes query values with keys and values in sorted order.
func encodeSorted(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		vals := append([]string(nil), q[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}

// ContentPrefix returns the first n runes of s.
func ContentPrefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
