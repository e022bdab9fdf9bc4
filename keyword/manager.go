package keyword

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/jl-grey-man/smbintel"
)

// Manager builds query batches and evolves the keyword pools.
type Manager struct {
	Store   smbintel.KeywordStore
	History smbintel.UsageHistory
	Logger  *slog.Logger

	// Rand drives weighted sampling. Defaults to the global source.
	Rand *rand.Rand
}

// PassReport describes a lifecycle pass.
type PassReport struct {
	Version int      // new head version, or the unchanged head
	Changed bool     // whether a new version was written
	Retired []string // exploration terms retired by rule
}

// ApplyReport describes the outcome of applying proposals.
type ApplyReport struct {
	Version    int
	Admitted   []string
	Rejected   []string
	Duplicates []string
	Evicted    []string
	Retired    []string
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (m *Manager) randFloat() float64 {
	if m.Rand != nil {
		return m.Rand.Float64()
	}
	return rand.Float64()
}

// Seed writes version 1 from the given terms. It returns ECONFLICT if a
// configuration already exists.
func (m *Manager) Seed(ctx context.Context, exploit, explore []string, now time.Time) (*smbintel.KeywordConfig, error) {
	if _, err := m.Store.Current(ctx); err == nil {
		return nil, smbintel.Errorf(smbintel.ECONFLICT, "keyword configuration already exists")
	} else if smbintel.ErrorCode(err) != smbintel.ENOTFOUND {
		return nil, err
	}

	cfg := &smbintel.KeywordConfig{
		Version:   1,
		CreatedAt: now.UTC(),
		Reason:    "seed",
		Settings:  smbintel.DefaultKeywordSettings(),
	}
	seen := make(map[string]bool)
	add := func(terms []string, pool smbintel.Pool) {
		for _, raw := range terms {
			term, err := Sanitize(raw)
			if err != nil {
				m.logger().Warn("seed term rejected", "term", raw, "err", err)
				continue
			}
			if seen[termKey(term)] {
				continue
			}
			seen[termKey(term)] = true
			cfg.Keywords = append(cfg.Keywords, &smbintel.KeywordRecord{
				Term:      term,
				Pool:      pool,
				Active:    true,
				CreatedAt: now.UTC(),
				Source:    smbintel.SourceSeed,
			})
		}
	}
	add(exploit, smbintel.PoolExploit)
	add(explore, smbintel.PoolExplore)

	if err := m.Store.Save(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// refresh folds cumulative usage statistics into the records and reports
// whether anything changed.
func (m *Manager) refresh(ctx context.Context, cfg *smbintel.KeywordConfig) (bool, error) {
	if m.History == nil {
		return false, nil
	}
	stats, err := m.History.Stats(ctx)
	if err != nil {
		return false, fmt.Errorf("load usage stats: %w", err)
	}

	var changed bool
	for _, k := range cfg.Keywords {
		st, ok := stats[k.Term]
		if !ok {
			continue
		}
		if k.Uses != st.Uses || k.Hits != st.Hits || k.LastUsed == nil || !k.LastUsed.Equal(st.LastUsed) {
			k.Uses, k.Hits = st.Uses, st.Hits
			t := st.LastUsed.UTC()
			k.LastUsed = &t
			changed = true
		}
	}
	return changed, nil
}

// BuildBatch samples the next cycle's queries. The split between pools is
// fixed by Budget. A pool with fewer active keywords than its share is
// sampled again in a new round; an empty pool yields no queries.
func (m *Manager) BuildBatch(ctx context.Context, cycleID string) ([]smbintel.Query, error) {
	cur, err := m.Store.Current(ctx)
	if err != nil {
		return nil, err
	}
	cfg := cur.Clone()
	if _, err := m.refresh(ctx, cfg); err != nil {
		return nil, err
	}

	exploit, explore := Budget(cfg.Settings.QueriesPerRun, cfg.Settings.ExploitRatio)

	var queries []smbintel.Query
	for _, share := range []struct {
		pool smbintel.Pool
		n    int
	}{{smbintel.PoolExploit, exploit}, {smbintel.PoolExplore, explore}} {
		for _, k := range m.sample(cfg.Active(share.pool), share.n) {
			text := k.Term
			if suffix := cfg.Settings.Suffix(share.pool); suffix != "" {
				text += " " + suffix
			}
			queries = append(queries, smbintel.Query{
				Term:    k.Term,
				Text:    text,
				Pool:    share.pool,
				CycleID: cycleID,
			})
		}
	}
	return queries, nil
}

// sample draws n keywords by weight without replacement, starting a new
// round whenever every keyword has been drawn.
func (m *Manager) sample(recs []*smbintel.KeywordRecord, n int) []*smbintel.KeywordRecord {
	if len(recs) == 0 || n <= 0 {
		return nil
	}
	recs = slices.Clone(recs)
	slices.SortFunc(recs, func(a, b *smbintel.KeywordRecord) int { return cmp.Compare(a.Term, b.Term) })

	out := make([]*smbintel.KeywordRecord, 0, n)
	for len(out) < n {
		round := slices.Clone(recs)
		for len(round) > 0 && len(out) < n {
			i := m.pick(round)
			out = append(out, round[i])
			round = slices.Delete(round, i, i+1)
		}
	}
	return out
}

func (m *Manager) pick(recs []*smbintel.KeywordRecord) int {
	var total float64
	for _, r := range recs {
		total += Weight(r)
	}
	x := m.randFloat() * total
	for i, r := range recs {
		x -= Weight(r)
		if x < 0 {
			return i
		}
	}
	return len(recs) - 1
}

// RecordBatch appends a usage event for every query in the batch.
func (m *Manager) RecordBatch(ctx context.Context, queries []smbintel.Query, now time.Time) error {
	for _, q := range queries {
		if err := m.History.RecordUsage(ctx, &smbintel.UsageEvent{
			CycleID: q.CycleID,
			Term:    q.Term,
			Pool:    q.Pool,
			UsedAt:  now.UTC(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// retireReason returns why an exploration keyword should be retired, or
// "" to keep it. Exploitation keywords are never retired by rule.
func retireReason(k *smbintel.KeywordRecord, s smbintel.KeywordSettings, now time.Time) string {
	if !k.Active || k.Pool != smbintel.PoolExplore {
		return ""
	}
	if s.RetireMinUses > 0 && k.Uses >= s.RetireMinUses && k.HitRate() < s.RetireHitRate {
		return fmt.Sprintf("hit rate %.2f after %d uses", k.HitRate(), k.Uses)
	}
	last := k.CreatedAt
	if k.LastUsed != nil {
		last = *k.LastUsed
	}
	if s.StaleAfter > 0 && now.Sub(last) >= s.StaleAfter {
		return fmt.Sprintf("unused since %s", last.Format(time.DateOnly))
	}
	return ""
}

func retire(k *smbintel.KeywordRecord, now time.Time) {
	k.Active = false
	t := now.UTC()
	k.RetiredAt = &t
}

// Pass folds the usage history into the pools and retires exploration
// keywords that are underperforming or stale. A new version is written
// only when something changed.
func (m *Manager) Pass(ctx context.Context, now time.Time) (*PassReport, error) {
	cur, err := m.Store.Current(ctx)
	if err != nil {
		return nil, err
	}
	next := cur.Clone()

	changed, err := m.refresh(ctx, next)
	if err != nil {
		return nil, err
	}

	report := &PassReport{Version: cur.Version}
	for _, k := range next.Keywords {
		if reason := retireReason(k, next.Settings, now); reason != "" {
			retire(k, now)
			m.logger().Info("keyword retired", "term", k.Term, "reason", reason)
			report.Retired = append(report.Retired, k.Term)
			changed = true
		}
	}
	if !changed {
		return report, nil
	}

	reason := "lifecycle pass"
	if len(report.Retired) > 0 {
		reason = fmt.Sprintf("lifecycle pass: retired %s", strings.Join(report.Retired, ", "))
	}
	if err := m.save(ctx, cur, next, reason, now); err != nil {
		return nil, err
	}
	report.Version = next.Version
	report.Changed = true
	return report, nil
}

// Apply admits and retires proposed keywords in a single new version.
// Additions are considered in descending estimated value. Each admission
// at the exploration cap evicts one keyword first.
func (m *Manager) Apply(ctx context.Context, p *smbintel.Proposals, now time.Time) (*ApplyReport, error) {
	cur, err := m.Store.Current(ctx)
	if err != nil {
		return nil, err
	}
	next := cur.Clone()
	if _, err := m.refresh(ctx, next); err != nil {
		return nil, err
	}

	report := &ApplyReport{Version: cur.Version}

	adds := slices.Clone(p.Add)
	slices.SortStableFunc(adds, func(a, b smbintel.AddProposal) int {
		return cmp.Compare(b.EstimatedValue, a.EstimatedValue)
	})
	for _, add := range adds {
		term, err := Sanitize(add.Term)
		if err != nil {
			m.logger().Info("proposal rejected", "term", add.Term, "err", err)
			report.Rejected = append(report.Rejected, add.Term)
			continue
		}
		if existing := find(next, term); existing != nil && existing.Active {
			report.Duplicates = append(report.Duplicates, term)
			continue
		}

		if limit := next.Settings.ExplorationCap; limit > 0 && len(next.Active(smbintel.PoolExplore)) >= limit {
			victim := evictionCandidate(next.Active(smbintel.PoolExplore))
			retire(victim, now)
			m.logger().Info("keyword evicted", "term", victim.Term, "hitRate", victim.HitRate())
			report.Evicted = append(report.Evicted, victim.Term)
		}

		if existing := find(next, term); existing != nil {
			existing.Active = true
			existing.RetiredAt = nil
			existing.Pool = smbintel.PoolExplore
			existing.Source = smbintel.SourceSuggested
			existing.Rationale = add.Rationale
		} else {
			next.Keywords = append(next.Keywords, &smbintel.KeywordRecord{
				Term:      term,
				Pool:      smbintel.PoolExplore,
				Active:    true,
				CreatedAt: now.UTC(),
				Source:    smbintel.SourceSuggested,
				Rationale: add.Rationale,
			})
		}
		report.Admitted = append(report.Admitted, term)
	}

	for _, r := range p.Retire {
		k := find(next, strings.TrimSpace(r.Term))
		if k == nil || !k.Active || k.Pool != smbintel.PoolExplore {
			m.logger().Info("retirement ignored", "term", r.Term)
			continue
		}
		retire(k, now)
		report.Retired = append(report.Retired, k.Term)
	}

	if len(report.Admitted)+len(report.Evicted)+len(report.Retired) == 0 {
		return report, nil
	}

	reason := fmt.Sprintf("apply proposals: +%d -%d evicted %d",
		len(report.Admitted), len(report.Retired), len(report.Evicted))
	if err := m.save(ctx, cur, next, reason, now); err != nil {
		return nil, err
	}
	report.Version = next.Version
	return report, nil
}

// find returns the keyword matching term case-insensitively, or nil.
func find(cfg *smbintel.KeywordConfig, term string) *smbintel.KeywordRecord {
	key := termKey(term)
	for _, k := range cfg.Keywords {
		if termKey(k.Term) == key {
			return k
		}
	}
	return nil
}

// evictionCandidate picks the keyword with the lowest hit rate. Ties go to
// the least recently used, where a never-used keyword counts as used at
// creation, and then to the lexically smallest term.
func evictionCandidate(recs []*smbintel.KeywordRecord) *smbintel.KeywordRecord {
	lastUsed := func(k *smbintel.KeywordRecord) time.Time {
		if k.LastUsed != nil {
			return *k.LastUsed
		}
		return k.CreatedAt
	}
	return slices.MinFunc(recs, func(a, b *smbintel.KeywordRecord) int {
		if c := cmp.Compare(a.HitRate(), b.HitRate()); c != 0 {
			return c
		}
		if c := lastUsed(a).Compare(lastUsed(b)); c != 0 {
			return c
		}
		return cmp.Compare(a.Term, b.Term)
	})
}

// Rollback makes the parent of the current head the new head. The new
// version keeps the restored version's own parent, so repeated rollbacks
// walk further back.
func (m *Manager) Rollback(ctx context.Context, now time.Time) (*smbintel.KeywordConfig, error) {
	cur, err := m.Store.Current(ctx)
	if err != nil {
		return nil, err
	}
	if cur.Parent == 0 {
		return nil, smbintel.Errorf(smbintel.EINVALID, "version %d has no parent to roll back to", cur.Version)
	}
	prev, err := m.Store.Version(ctx, cur.Parent)
	if err != nil {
		return nil, err
	}

	next := prev.Clone()
	next.Version = cur.Version + 1
	next.CreatedAt = now.UTC()
	next.Reason = fmt.Sprintf("rollback from v%d to v%d", cur.Version, prev.Version)
	if err := m.Store.Save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (m *Manager) save(ctx context.Context, cur, next *smbintel.KeywordConfig, reason string, now time.Time) error {
	next.Version = cur.Version + 1
	next.Parent = cur.Version
	next.CreatedAt = now.UTC()
	next.Reason = reason
	return m.Store.Save(ctx, next)
}
