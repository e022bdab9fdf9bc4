package http

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/jl-grey-man/smbintel"
)

// DefaultProbeTimeout bounds a single liveness probe including redirects.
const DefaultProbeTimeout = 10 * time.Second

// maxRedirects matches the net/http client default.
const maxRedirects = 10

// Ensure Prober implements smbintel.LivenessProber at compile time.
var _ smbintel.LivenessProber = (*Prober)(nil)

// Prober checks whether cited URLs still resolve. It sends HEAD and never
// reads a response body.
type Prober struct {
	client    *http.Client
	userAgent string

	// Limiter, when set, is waited on per host before every request.
	Limiter smbintel.DomainLimiter
}

// NewProber creates a Prober with the given request timeout.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: DefaultUserAgent,
	}
}

// Probe classifies the URL as live, redirect, dead, or timeout. Network
// failures are reported as a timeout result rather than an error; only
// a malformed URL or a canceled context returns an error.
func (p *Prober) Probe(ctx context.Context, rawURL string) (*smbintel.ProbeResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, smbintel.Errorf(smbintel.EINVALID, "bad url %q", rawURL)
	}

	resp, err := p.do(ctx, http.MethodHead, u)
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		resp.Body.Close()
		resp, err = p.do(ctx, http.MethodGet, u)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return &smbintel.ProbeResult{Liveness: smbintel.LivenessTimeout}, nil
	}
	// The body is closed unread.
	resp.Body.Close()

	res := &smbintel.ProbeResult{
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
	}
	res.Liveness = classify(resp)
	return res, nil
}

func (p *Prober) do(ctx context.Context, method string, u *url.URL) (*http.Response, error) {
	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx, u.Hostname()); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	setHeaders(req, p.userAgent)
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}
	return p.client.Do(req)
}

// classify maps the final response of a probe to a liveness verdict.
// Too Many Requests is a transient refusal and counts as a timeout. A final
// 3xx never reached a page (loop, hop cap or missing Location) and is dead.
func classify(resp *http.Response) smbintel.Liveness {
	code := resp.StatusCode
	redirected := resp.Request != nil && resp.Request.Response != nil
	switch {
	case code == http.StatusTooManyRequests:
		return smbintel.LivenessTimeout
	case code >= 200 && code < 300:
		if redirected {
			return smbintel.LivenessRedirect
		}
		return smbintel.LivenessLive
	default:
		return smbintel.LivenessDead
	}
}
