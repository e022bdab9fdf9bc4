package verify_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jl-grey-man/smbintel"
	"github.com/jl-grey-man/smbintel/mock"
	"github.com/jl-grey-man/smbintel/sqlite"
	"github.com/jl-grey-man/smbintel/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const swedishQuote = "vi lägger 3 timmar om dagen på att kopiera data mellan system"

var fixedNow = time.Date(2026, 4, 14, 9, 30, 0, 0, time.UTC)

// fixture builds a verifier around mocks with a single stored record.
type fixture struct {
	record   *smbintel.CrawlRecord
	liveness smbintel.Liveness
	probeErr error
	accepted []*smbintel.AcceptedClaim
	lookup   func(company string) (*smbintel.Enrichment, error)
	cache    map[string]*smbintel.CacheEntry
	lookups  int
}

func newFixture(text string) *fixture {
	return &fixture{
		record: &smbintel.CrawlRecord{
			Fingerprint: "fp1",
			SourceURL:   "https://example.se/inlagg",
			RawText:     text,
			Provenance:  smbintel.Provenance{Term: "dubbelregistrering", Pool: smbintel.PoolExplore, CycleID: "c1"},
		},
		liveness: smbintel.LivenessLive,
		lookup: func(string) (*smbintel.Enrichment, error) {
			return nil, smbintel.Errorf(smbintel.ENOTFOUND, "no match")
		},
		cache: map[string]*smbintel.CacheEntry{},
	}
}

func (f *fixture) verifier() *verify.Verifier {
	return &verify.Verifier{
		Ledger: &mock.Ledger{
			FindRecordFn: func(_ context.Context, fp string) (*smbintel.CrawlRecord, error) {
				if fp != f.record.Fingerprint {
					return nil, smbintel.Errorf(smbintel.ENOTFOUND, "record not found")
				}
				return f.record, nil
			},
		},
		Results: &mock.VerificationService{
			FindAcceptedFn: func(_ context.Context, _ smbintel.AcceptedFilter) ([]*smbintel.AcceptedClaim, error) {
				return f.accepted, nil
			},
		},
		Prober: &mock.LivenessProber{
			ProbeFn: func(_ context.Context, url string) (*smbintel.ProbeResult, error) {
				if f.probeErr != nil {
					return nil, f.probeErr
				}
				return &smbintel.ProbeResult{Liveness: f.liveness, StatusCode: 200, FinalURL: url}, nil
			},
		},
		Cache: &mock.EnrichmentCache{
			GetFn: func(_ context.Context, key string) (*smbintel.CacheEntry, error) {
				if e, ok := f.cache[key]; ok {
					return e, nil
				}
				return nil, smbintel.Errorf(smbintel.ENOTFOUND, "miss")
			},
			SetFn: func(_ context.Context, e *smbintel.CacheEntry) error {
				f.cache[e.Key] = e
				return nil
			},
		},
		Registry: &mock.Registry{
			LookupFn: func(_ context.Context, company string) (*smbintel.Enrichment, error) {
				f.lookups++
				return f.lookup(company)
			},
		},
		Config: verify.DefaultConfig(),
		Now:    func() time.Time { return fixedNow },
	}
}

func testClaim(quote string) *smbintel.CandidateClaim {
	return &smbintel.CandidateClaim{
		ID:          "claim-1",
		Fingerprint: "fp1",
		SignalType:  smbintel.SignalSocialPost,
		Quote:       quote,
		PersonName:  "Anna Berg",
		CompanyName: "Berg Bygg AB",
	}
}

func TestVerifier_Verify(t *testing.T) {
	t.Parallel()

	source := "Anna Berg skriver: Vi lägger 3 timmar om dagen på att kopiera data mellan system. Hjälp!"

	t.Run("verbatim quote on live page with unknown company is verified", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		res, err := f.verifier().Verify(context.Background(), testClaim(swedishQuote))
		require.NoError(t, err)

		assert.Equal(t, 1.0, res.QuoteScore)
		assert.Equal(t, smbintel.QuotePassed, res.Quote)
		assert.Equal(t, smbintel.LivenessLive, res.Liveness)
		assert.False(t, res.Duplicate)
		assert.False(t, res.Enriched)
		assert.Equal(t, smbintel.StatusVerified, res.Status)
		assert.False(t, res.Retryable)
		assert.Equal(t, fixedNow, res.VerifiedAt)
	})

	t.Run("redirect counts as reachable", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		f.liveness = smbintel.LivenessRedirect
		res, err := f.verifier().Verify(context.Background(), testClaim(swedishQuote))
		require.NoError(t, err)
		assert.Equal(t, smbintel.StatusVerified, res.Status)
	})

	t.Run("fabricated quote is rejected", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		res, err := f.verifier().Verify(context.Background(), testClaim("vi har redan automatiserat hela ekonomiavdelningen med ai"))
		require.NoError(t, err)
		assert.Equal(t, smbintel.QuoteFailed, res.Quote)
		assert.Equal(t, smbintel.StatusRejected, res.Status)
	})

	t.Run("dead link is rejected", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		f.liveness = smbintel.LivenessDead
		res, err := f.verifier().Verify(context.Background(), testClaim(swedishQuote))
		require.NoError(t, err)
		assert.Equal(t, smbintel.StatusRejected, res.Status)
	})

	t.Run("timeout is weak and retryable by default", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		f.liveness = smbintel.LivenessTimeout
		res, err := f.verifier().Verify(context.Background(), testClaim(swedishQuote))
		require.NoError(t, err)
		assert.Equal(t, smbintel.StatusWeak, res.Status)
		assert.True(t, res.Retryable)
	})

	t.Run("probe error counts as timeout", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		f.probeErr = errors.New("dial tcp: i/o timeout")
		res, err := f.verifier().Verify(context.Background(), testClaim(swedishQuote))
		require.NoError(t, err)
		assert.Equal(t, smbintel.LivenessTimeout, res.Liveness)
		assert.True(t, res.Retryable)
	})

	t.Run("timeout is rejected under terminal policy", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		f.liveness = smbintel.LivenessTimeout
		v := f.verifier()
		v.Config.Timeout = verify.TimeoutTerminal
		res, err := v.Verify(context.Background(), testClaim(swedishQuote))
		require.NoError(t, err)
		assert.Equal(t, smbintel.StatusRejected, res.Status)
		assert.False(t, res.Retryable)
	})

	t.Run("partial quote is weak", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		v := f.verifier()
		v.Config.PassThreshold = 1.01
		v.Config.PartialThreshold = 0.5
		res, err := v.Verify(context.Background(), testClaim(swedishQuote))
		require.NoError(t, err)
		assert.Equal(t, smbintel.QuotePartial, res.Quote)
		assert.Equal(t, smbintel.StatusWeak, res.Status)
		assert.False(t, res.Retryable)
	})

	t.Run("registry failure downgrades to weak only", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		f.lookup = func(string) (*smbintel.Enrichment, error) {
			return nil, smbintel.Errorf(smbintel.EUNAVAILABLE, "registry down")
		}
		res, err := f.verifier().Verify(context.Background(), testClaim(swedishQuote))
		require.NoError(t, err)
		assert.False(t, res.Enriched)
		assert.Equal(t, smbintel.StatusWeak, res.Status)
		assert.Empty(t, f.cache, "failures are not cached")
	})

	t.Run("registry failure never rescues a rejection", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		f.liveness = smbintel.LivenessDead
		f.lookup = func(string) (*smbintel.Enrichment, error) { return nil, errors.New("boom") }
		res, err := f.verifier().Verify(context.Background(), testClaim(swedishQuote))
		require.NoError(t, err)
		assert.Equal(t, smbintel.StatusRejected, res.Status)
	})

	t.Run("found company is enriched and cached", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		f.lookup = func(string) (*smbintel.Enrichment, error) {
			return &smbintel.Enrichment{Found: true, OrgNumber: "556123-4567", Name: "Berg Bygg AB"}, nil
		}
		v := f.verifier()

		res, err := v.Verify(context.Background(), testClaim(swedishQuote))
		require.NoError(t, err)
		assert.True(t, res.Enriched)
		assert.Equal(t, "556123-4567", res.Enrichment.OrgNumber)
		require.Contains(t, f.cache, "berg bygg ab")

		_, err = v.Verify(context.Background(), testClaim(swedishQuote))
		require.NoError(t, err)
		assert.Equal(t, 1, f.lookups, "second lookup served from cache")
	})

	t.Run("not found answers are cached", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		v := f.verifier()
		for range 3 {
			_, err := v.Verify(context.Background(), testClaim(swedishQuote))
			require.NoError(t, err)
		}
		assert.Equal(t, 1, f.lookups)
		assert.False(t, f.cache["berg bygg ab"].Payload.Found)
	})

	t.Run("claim without company skips enrichment", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		claim := testClaim(swedishQuote)
		claim.CompanyName = ""
		res, err := f.verifier().Verify(context.Background(), claim)
		require.NoError(t, err)
		assert.Nil(t, res.Enrichment)
		assert.Equal(t, 0, f.lookups)
		assert.Equal(t, smbintel.StatusVerified, res.Status)
	})

	t.Run("similar accepted claim in window is duplicate", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		f.accepted = []*smbintel.AcceptedClaim{
			{
				Claim:  &smbintel.CandidateClaim{ID: "newer", Quote: swedishQuote},
				Result: &smbintel.VerificationResult{Status: smbintel.StatusVerified, VerifiedAt: fixedNow.Add(-time.Hour)},
			},
			{
				Claim:  &smbintel.CandidateClaim{ID: "earlier", Quote: swedishQuote + "!"},
				Result: &smbintel.VerificationResult{Status: smbintel.StatusWeak, VerifiedAt: fixedNow.Add(-48 * time.Hour)},
			},
			{
				Claim:  &smbintel.CandidateClaim{ID: "unrelated", Quote: "vi söker en ekonomiassistent"},
				Result: &smbintel.VerificationResult{Status: smbintel.StatusVerified, VerifiedAt: fixedNow.Add(-72 * time.Hour)},
			},
		}
		res, err := f.verifier().Verify(context.Background(), testClaim(swedishQuote))
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.Equal(t, "earlier", res.DuplicateOf)
		assert.Equal(t, smbintel.StatusRejected, res.Status)
	})

	t.Run("retryable accepted claim is not a duplicate original", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		f.accepted = []*smbintel.AcceptedClaim{{
			Claim: &smbintel.CandidateClaim{ID: "pending", Quote: swedishQuote},
			Result: &smbintel.VerificationResult{
				Status:     smbintel.StatusWeak,
				Liveness:   smbintel.LivenessTimeout,
				Retryable:  true,
				VerifiedAt: fixedNow.Add(-time.Hour),
			},
		}}
		res, err := f.verifier().Verify(context.Background(), testClaim(swedishQuote))
		require.NoError(t, err)
		assert.False(t, res.Duplicate)
		assert.Equal(t, smbintel.StatusVerified, res.Status)
	})

	t.Run("partial config keeps default thresholds", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		v := f.verifier()
		v.Config = verify.Config{Timeout: verify.TimeoutTerminal}

		res, err := v.Verify(context.Background(), testClaim("vi har redan automatiserat hela ekonomiavdelningen med ai"))
		require.NoError(t, err)
		assert.Equal(t, smbintel.QuoteFailed, res.Quote)
		assert.Equal(t, smbintel.StatusRejected, res.Status)

		f.liveness = smbintel.LivenessTimeout
		res, err = v.Verify(context.Background(), testClaim(swedishQuote))
		require.NoError(t, err)
		assert.Equal(t, smbintel.QuotePassed, res.Quote)
		assert.Equal(t, smbintel.StatusRejected, res.Status)
		assert.False(t, res.Retryable)
	})

	t.Run("own previous result is not a duplicate", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		f.accepted = []*smbintel.AcceptedClaim{{
			Claim:  testClaim(swedishQuote),
			Result: &smbintel.VerificationResult{Status: smbintel.StatusWeak, VerifiedAt: fixedNow.Add(-time.Hour)},
		}}
		res, err := f.verifier().Verify(context.Background(), testClaim(swedishQuote))
		require.NoError(t, err)
		assert.False(t, res.Duplicate)
	})

	t.Run("claim without identity key skips duplicate check", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		v := f.verifier()
		v.Results = &mock.VerificationService{
			FindAcceptedFn: func(context.Context, smbintel.AcceptedFilter) ([]*smbintel.AcceptedClaim, error) {
				t.Fatal("FindAccepted should not be called")
				return nil, nil
			},
		}
		claim := testClaim(swedishQuote)
		claim.PersonName = ""
		res, err := v.Verify(context.Background(), claim)
		require.NoError(t, err)
		assert.False(t, res.Duplicate)
	})

	t.Run("is deterministic", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		v := f.verifier()
		a, err := v.Verify(context.Background(), testClaim("vi lägger tre timmar om dagen på att kopiera data"))
		require.NoError(t, err)
		b, err := v.Verify(context.Background(), testClaim("vi lägger tre timmar om dagen på att kopiera data"))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("missing record is an error", func(t *testing.T) {
		t.Parallel()

		f := newFixture(source)
		claim := testClaim(swedishQuote)
		claim.Fingerprint = "other"
		_, err := f.verifier().Verify(context.Background(), claim)
		assert.Equal(t, smbintel.ENOTFOUND, smbintel.ErrorCode(err))
	})
}

// store wires a verifier to a real SQLite database.
type store struct {
	db      *sqlite.DB
	ledger  *sqlite.LedgerService
	claims  *sqlite.ClaimService
	results *sqlite.VerificationService
	history *sqlite.UsageHistory
}

func setupStore(t *testing.T) *store {
	t.Helper()
	db := sqlite.NewDB(":memory:")
	require.NoError(t, db.Open())
	t.Cleanup(func() { db.Close() })
	return &store{
		db:      db,
		ledger:  sqlite.NewLedgerService(db),
		claims:  sqlite.NewClaimService(db),
		results: sqlite.NewVerificationService(db),
		history: sqlite.NewUsageHistory(db),
	}
}

func (s *store) verifier(liveness smbintel.Liveness) *verify.Verifier {
	return &verify.Verifier{
		Ledger:  s.ledger,
		Claims:  s.claims,
		Results: s.results,
		Prober: &mock.LivenessProber{
			ProbeFn: func(_ context.Context, url string) (*smbintel.ProbeResult, error) {
				return &smbintel.ProbeResult{Liveness: liveness, FinalURL: url}, nil
			},
		},
		Cache: sqlite.NewEnrichmentCache(s.db, 0),
		Registry: &mock.Registry{
			LookupFn: func(context.Context, string) (*smbintel.Enrichment, error) {
				return nil, smbintel.Errorf(smbintel.ENOTFOUND, "no match")
			},
		},
		History: s.history,
		Now:     func() time.Time { return fixedNow },
	}
}

func (s *store) insert(t *testing.T, url, text string) *smbintel.CrawlRecord {
	t.Helper()
	ctx := context.Background()
	rec := &smbintel.CrawlRecord{
		SourceURL:  url,
		RawText:    text,
		Provenance: smbintel.Provenance{Term: "dubbelregistrering", Pool: smbintel.PoolExplore, CycleID: "c1"},
	}
	_, err := s.ledger.Insert(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, s.history.RecordUsage(ctx, &smbintel.UsageEvent{
		CycleID: "c1", Term: "dubbelregistrering", Pool: smbintel.PoolExplore, UsedAt: fixedNow.Add(-time.Hour),
	}))
	return rec
}

func TestVerifier_Run(t *testing.T) {
	t.Parallel()

	t.Run("end to end verified claim records a hit", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		ctx := context.Background()
		rec := s.insert(t, "https://forum.example.se/trad/1",
			"Hej! Vi lägger 3 timmar om dagen på att kopiera data mellan system. Finns det något bättre?")
		claim := &smbintel.CandidateClaim{
			Fingerprint: rec.Fingerprint, Quote: swedishQuote,
			PersonName: "Anna Berg", CompanyName: "Berg Bygg AB",
		}
		require.NoError(t, s.claims.CreateClaim(ctx, claim))

		out, err := s.verifier(smbintel.LivenessLive).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, out.Verified)

		res, err := s.results.FindLatestVerification(ctx, claim.ID)
		require.NoError(t, err)
		assert.Equal(t, 1.0, res.QuoteScore)
		assert.Equal(t, smbintel.StatusVerified, res.Status)
		assert.False(t, res.Enriched)

		stats, err := s.history.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats["dubbelregistrering"].Hits)

		out, err = s.verifier(smbintel.LivenessLive).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, &verify.RunResult{}, out, "authoritative results are not re-verified")
	})

	t.Run("similar claims for same identity yield exactly one duplicate", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		ctx := context.Background()
		qa := strings.Repeat("a", 71) + strings.Repeat("b", 29)
		qb := strings.Repeat("a", 71) + strings.Repeat("c", 29)
		require.InDelta(t, 0.71, verify.Similarity(qa, qb), 1e-9)

		rec := s.insert(t, "https://example.se/a", qa+" "+qb)
		first := &smbintel.CandidateClaim{Fingerprint: rec.Fingerprint, Quote: qa, PersonName: "Anna", CompanyName: "Berg AB"}
		second := &smbintel.CandidateClaim{Fingerprint: rec.Fingerprint, Quote: qb, PersonName: "Anna", PersonCompany: "Berg AB"}
		require.NoError(t, s.claims.CreateClaim(ctx, first))
		require.NoError(t, s.claims.CreateClaim(ctx, second))

		out, err := s.verifier(smbintel.LivenessLive).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, out.Verified)
		assert.Equal(t, 1, out.Rejected)

		res, err := s.results.FindLatestVerification(ctx, second.ID)
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.Equal(t, first.ID, res.DuplicateOf)

		accepted, err := s.results.FindAccepted(ctx, smbintel.AcceptedFilter{})
		require.NoError(t, err)
		require.Len(t, accepted, 1)
		assert.Equal(t, first.ID, accepted[0].Claim.ID)
	})

	t.Run("retryable results are verified again", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		ctx := context.Background()
		rec := s.insert(t, "https://example.se/a", "Vi lägger 3 timmar om dagen på att kopiera data mellan system.")
		claim := &smbintel.CandidateClaim{Fingerprint: rec.Fingerprint, Quote: swedishQuote}
		require.NoError(t, s.claims.CreateClaim(ctx, claim))

		out, err := s.verifier(smbintel.LivenessTimeout).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, out.Weak)
		assert.Equal(t, 1, out.Retryable)

		out, err = s.verifier(smbintel.LivenessLive).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, out.Verified)

		res, err := s.results.FindLatestVerification(ctx, claim.ID)
		require.NoError(t, err)
		assert.Equal(t, smbintel.StatusVerified, res.Status)
	})

	t.Run("rejected claims record no hit", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		ctx := context.Background()
		rec := s.insert(t, "https://example.se/a", "Helt annan text om något annat.")
		require.NoError(t, s.claims.CreateClaim(ctx, &smbintel.CandidateClaim{Fingerprint: rec.Fingerprint, Quote: swedishQuote}))

		out, err := s.verifier(smbintel.LivenessLive).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, out.Rejected)

		stats, err := s.history.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats["dubbelregistrering"].Hits)
	})
}
