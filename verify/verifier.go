// Package verify turns untrusted candidate claims into trust verdicts.
//
// Every check runs against text already stored in the ledger. The only
// network access is a header-only liveness probe and an optional registry
// lookup, neither of which can change the stored quote text.
package verify

import (
	"context"
	"log/slog"
	"time"

	"github.com/jl-grey-man/smbintel"
)

// TimeoutPolicy decides how a liveness timeout affects the verdict.
type TimeoutPolicy int

const (
	// TimeoutRetryable downgrades a timed-out claim to weak and marks the
	// result retryable, so the next Run verifies it again.
	TimeoutRetryable TimeoutPolicy = iota
	// TimeoutTerminal rejects a timed-out claim like a dead link.
	TimeoutTerminal
)

// String returns the flag spelling of the policy.
func (p TimeoutPolicy) String() string {
	if p == TimeoutTerminal {
		return "terminal"
	}
	return "retryable"
}

// ParseTimeoutPolicy parses "retryable" or "terminal".
func ParseTimeoutPolicy(s string) (TimeoutPolicy, error) {
	switch s {
	case "retryable", "":
		return TimeoutRetryable, nil
	case "terminal":
		return TimeoutTerminal, nil
	}
	return 0, smbintel.Errorf(smbintel.EINVALID, "unknown timeout policy %q", s)
}

// Config holds verification tuning.
type Config struct {
	PassThreshold       float64
	PartialThreshold    float64
	LongQuoteLen        int
	DuplicateSimilarity float64
	DuplicateWindow     time.Duration
	Timeout             TimeoutPolicy
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		PassThreshold:       DefaultPassThreshold,
		PartialThreshold:    DefaultPartialThreshold,
		LongQuoteLen:        DefaultLongQuoteLen,
		DuplicateSimilarity: 0.70,
		DuplicateWindow:     7 * 24 * time.Hour,
		Timeout:             TimeoutRetryable,
	}
}

// Verifier runs the quote, liveness, duplicate and enrichment checks.
// Cache, Registry and History are optional.
type Verifier struct {
	Ledger   smbintel.Ledger
	Claims   smbintel.ClaimService
	Results  smbintel.VerificationService
	Prober   smbintel.LivenessProber
	Cache    smbintel.EnrichmentCache
	Registry smbintel.Registry
	History  smbintel.UsageHistory
	Config   Config
	Logger   *slog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// RunResult counts the verdicts written by one Run.
type RunResult struct {
	Verified  int
	Weak      int
	Rejected  int
	Retryable int
	Failed    int
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now().UTC()
	}
	return time.Now().UTC()
}

// config returns v.Config with every zero threshold replaced by its default.
func (v *Verifier) config() Config {
	cfg, def := v.Config, DefaultConfig()
	if cfg.PassThreshold <= 0 {
		cfg.PassThreshold = def.PassThreshold
	}
	if cfg.PartialThreshold <= 0 {
		cfg.PartialThreshold = def.PartialThreshold
	}
	if cfg.LongQuoteLen <= 0 {
		cfg.LongQuoteLen = def.LongQuoteLen
	}
	if cfg.DuplicateSimilarity <= 0 {
		cfg.DuplicateSimilarity = def.DuplicateSimilarity
	}
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = def.DuplicateWindow
	}
	return cfg
}

func (v *Verifier) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Verify computes a verdict for one claim without storing it.
func (v *Verifier) Verify(ctx context.Context, claim *smbintel.CandidateClaim) (*smbintel.VerificationResult, error) {
	res, _, err := v.verify(ctx, claim)
	return res, err
}

func (v *Verifier) verify(ctx context.Context, claim *smbintel.CandidateClaim) (*smbintel.VerificationResult, *smbintel.CrawlRecord, error) {
	rec, err := v.Ledger.FindRecord(ctx, claim.Fingerprint)
	if err != nil {
		return nil, nil, err
	}

	cfg := v.config()
	now := v.now()
	res := &smbintel.VerificationResult{
		ClaimID:    claim.ID,
		VerifiedAt: now,
	}

	res.QuoteScore = QuoteScore(claim.Quote, rec.RawText, cfg.LongQuoteLen)
	res.Quote = Classify(res.QuoteScore, cfg.PassThreshold, cfg.PartialThreshold)

	res.Liveness, err = v.probe(ctx, rec.SourceURL)
	if err != nil {
		return nil, nil, err
	}

	dupOf, err := v.findDuplicate(ctx, claim, now)
	if err != nil {
		return nil, nil, err
	}
	res.Duplicate = dupOf != ""
	res.DuplicateOf = dupOf

	payload, enrichFailed := v.enrich(ctx, claim.Company())
	res.Enrichment = payload
	res.Enriched = payload != nil && payload.Found

	res.Status, res.Retryable = v.combine(res, enrichFailed)
	return res, rec, nil
}

// probe classifies the source URL. Probe errors other than cancellation
// count as a timeout.
func (v *Verifier) probe(ctx context.Context, url string) (smbintel.Liveness, error) {
	pr, err := v.Prober.Probe(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		v.logger().Warn("liveness probe failed", "url", url, "err", err)
		return smbintel.LivenessTimeout, nil
	}
	return pr.Liveness, nil
}

// findDuplicate returns the ID of the earliest accepted claim inside the
// window that shares the identity key and has a similar quote. Retryable
// results are provisional and never serve as the original.
func (v *Verifier) findDuplicate(ctx context.Context, claim *smbintel.CandidateClaim, now time.Time) (string, error) {
	person, company, ok := claim.IdentityKey()
	if !ok {
		return "", nil
	}

	cfg := v.config()
	since := now.Add(-cfg.DuplicateWindow)
	accepted, err := v.Results.FindAccepted(ctx, smbintel.AcceptedFilter{
		Person:            &person,
		Company:           &company,
		Since:             &since,
		ExcludeDuplicates: true,
	})
	if err != nil {
		return "", err
	}

	quote := Normalize(claim.Quote)
	var earliest *smbintel.AcceptedClaim
	for _, a := range accepted {
		if a.Claim.ID == claim.ID || a.Result.Retryable || a.Result.VerifiedAt.After(now) {
			continue
		}
		if Similarity(quote, Normalize(a.Claim.Quote)) <= cfg.DuplicateSimilarity {
			continue
		}
		if earliest == nil || a.Result.VerifiedAt.Before(earliest.Result.VerifiedAt) {
			earliest = a
		}
	}
	if earliest == nil {
		return "", nil
	}
	return earliest.Claim.ID, nil
}

// enrich looks the company up through the cache and registry. It reports
// failed only when a lookup was attempted and errored; a not-found answer
// is a successful lookup.
func (v *Verifier) enrich(ctx context.Context, company string) (payload *smbintel.Enrichment, failed bool) {
	if company == "" || v.Registry == nil {
		return nil, false
	}
	key := smbintel.CompanyKey(company)

	if v.Cache != nil {
		entry, err := v.Cache.Get(ctx, key)
		if err == nil {
			return entry.Payload, false
		}
		if smbintel.ErrorCode(err) != smbintel.ENOTFOUND {
			v.logger().Warn("enrichment cache read failed", "key", key, "err", err)
		}
	}

	e, err := v.Registry.Lookup(ctx, company)
	switch {
	case err == nil:
	case smbintel.ErrorCode(err) == smbintel.ENOTFOUND:
		e = &smbintel.Enrichment{Found: false}
	default:
		v.logger().Warn("registry lookup failed", "company", company, "err", err)
		return nil, true
	}

	if v.Cache != nil {
		if err := v.Cache.Set(ctx, &smbintel.CacheEntry{Key: key, Payload: e, CachedAt: v.now()}); err != nil {
			v.logger().Warn("enrichment cache write failed", "key", key, "err", err)
		}
	}
	return e, false
}

func (v *Verifier) combine(res *smbintel.VerificationResult, enrichFailed bool) (smbintel.Status, bool) {
	timeout := res.Liveness == smbintel.LivenessTimeout
	switch {
	case res.Quote == smbintel.QuoteFailed,
		res.Liveness == smbintel.LivenessDead,
		res.Duplicate,
		timeout && v.config().Timeout == TimeoutTerminal:
		return smbintel.StatusRejected, false
	case res.Quote == smbintel.QuotePassed && res.Liveness.Reachable() && !enrichFailed:
		return smbintel.StatusVerified, false
	default:
		return smbintel.StatusWeak, timeout
	}
}

// Run verifies every claim without an authoritative result, plus claims
// whose latest result is retryable, and appends one result per claim.
// Accepted results record a hit for the query that produced the page.
func (v *Verifier) Run(ctx context.Context) (*RunResult, error) {
	claims, err := v.Claims.FindClaims(ctx, smbintel.ClaimFilter{Unverified: true})
	if err != nil {
		return nil, err
	}

	out := &RunResult{}
	for _, claim := range claims {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		res, rec, err := v.verify(ctx, claim)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			v.logger().Error("verify failed", "claim", claim.ID, "err", err)
			out.Failed++
			continue
		}

		if err := v.Results.CreateVerification(ctx, res); err != nil {
			return out, err
		}

		switch res.Status {
		case smbintel.StatusVerified:
			out.Verified++
		case smbintel.StatusWeak:
			out.Weak++
		case smbintel.StatusRejected:
			out.Rejected++
		}
		if res.Retryable {
			out.Retryable++
		}

		if res.Status.Accepted() && v.History != nil {
			p := rec.Provenance
			if err := v.History.RecordHit(ctx, p.CycleID, p.Term); err != nil {
				v.logger().Warn("record hit failed", "cycle", p.CycleID, "term", p.Term, "err", err)
			}
		}
	}
	return out, nil
}
