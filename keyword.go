package smbintel

import (
	"context"
	"time"
)

// KeywordSource records how a keyword entered the configuration.
type KeywordSource string

// KeywordSource constants.
const (
	SourceSeed      KeywordSource = "seed"
	SourceSuggested KeywordSource = "suggested"
)

// KeywordRecord is a search term and its observed performance.
type KeywordRecord struct {
	Term      string        `json:"term" yaml:"term"`
	Pool      Pool          `json:"pool" yaml:"pool"`
	Uses      int           `json:"uses" yaml:"uses"`
	Hits      int           `json:"hits" yaml:"hits"`
	Active    bool          `json:"active" yaml:"active"`
	LastUsed  *time.Time    `json:"lastUsed,omitempty" yaml:"last_used,omitempty"`
	CreatedAt time.Time     `json:"createdAt" yaml:"created_at"`
	RetiredAt *time.Time    `json:"retiredAt,omitempty" yaml:"retired_at,omitempty"`
	Source    KeywordSource `json:"source" yaml:"source"`
	Rationale string        `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// HitRate returns hits divided by uses, or zero for an unused keyword.
func (k *KeywordRecord) HitRate() float64 {
	if k.Uses == 0 {
		return 0
	}
	return float64(k.Hits) / float64(k.Uses)
}

// KeywordSettings tunes query budgets and lifecycle transitions.
type KeywordSettings struct {
	QueriesPerRun  int           `json:"queriesPerRun" yaml:"queries_per_run"`
	ExploitRatio   float64       `json:"exploitRatio" yaml:"exploit_ratio"`
	ExplorationCap int           `json:"explorationCap" yaml:"exploration_cap"`
	RetireMinUses  int           `json:"retireMinUses" yaml:"retire_min_uses"`
	RetireHitRate  float64       `json:"retireHitRate" yaml:"retire_hit_rate"`
	StaleAfter     time.Duration `json:"staleAfter" yaml:"stale_after"`
	ExploitSuffix  string        `json:"exploitSuffix" yaml:"exploit_suffix"`
	ExploreSuffix  string        `json:"exploreSuffix" yaml:"explore_suffix"`
}

// Suffix returns the business-context suffix appended to terms of a pool.
func (s KeywordSettings) Suffix(pool Pool) string {
	if pool == PoolExploit {
		return s.ExploitSuffix
	}
	return s.ExploreSuffix
}

// DefaultKeywordSettings returns the settings used when a configuration
// does not specify its own.
func DefaultKeywordSettings() KeywordSettings {
	return KeywordSettings{
		QueriesPerRun:  20,
		ExploitRatio:   0.66,
		ExplorationCap: 40,
		RetireMinUses:  5,
		RetireHitRate:  0.05,
		StaleAfter:     30 * 24 * time.Hour,
		ExploitSuffix:  "Sverige",
		ExploreSuffix:  "företag",
	}
}

// KeywordConfig is one immutable version of the keyword configuration.
// Parent points at the version it was derived from; zero means none.
type KeywordConfig struct {
	Version   int              `json:"version" yaml:"version"`
	Parent    int              `json:"parent" yaml:"parent"`
	CreatedAt time.Time        `json:"createdAt" yaml:"created_at"`
	Reason    string           `json:"reason" yaml:"reason"`
	Settings  KeywordSettings  `json:"settings" yaml:"settings"`
	Keywords  []*KeywordRecord `json:"keywords" yaml:"keywords"`
}

// Active returns the active keywords of a pool, in configuration order.
func (c *KeywordConfig) Active(pool Pool) []*KeywordRecord {
	var out []*KeywordRecord
	for _, k := range c.Keywords {
		if k.Active && k.Pool == pool {
			out = append(out, k)
		}
	}
	return out
}

// Clone returns a deep copy of the configuration.
func (c *KeywordConfig) Clone() *KeywordConfig {
	other := *c
	other.Keywords = make([]*KeywordRecord, len(c.Keywords))
	for i, k := range c.Keywords {
		cp := *k
		if k.LastUsed != nil {
			t := *k.LastUsed
			cp.LastUsed = &t
		}
		if k.RetiredAt != nil {
			t := *k.RetiredAt
			cp.RetiredAt = &t
		}
		other.Keywords[i] = &cp
	}
	return &other
}

// KeywordStore persists versioned keyword configurations.
type KeywordStore interface {
	// Current returns the head configuration.
	// Returns ENOTFOUND if no configuration has been saved.
	Current(ctx context.Context) (*KeywordConfig, error)

	// Version returns a specific saved configuration.
	// Returns ENOTFOUND if the version does not exist.
	Version(ctx context.Context, version int) (*KeywordConfig, error)

	// Save snapshots the current head and makes cfg the new head.
	// Returns ECONFLICT unless cfg.Version is one past the head version
	// (or 1 when nothing has been saved).
	Save(ctx context.Context, cfg *KeywordConfig) error
}

// Query is one search to run in a cycle. Text is the term followed by the
// business-context suffix of its pool.
type Query struct {
	Term    string `json:"term"`
	Text    string `json:"text"`
	Pool    Pool   `json:"pool"`
	CycleID string `json:"cycleId"`
}

// AddProposal proposes a new exploration keyword.
type AddProposal struct {
	Term           string  `json:"term" yaml:"term"`
	Rationale      string  `json:"rationale" yaml:"rationale"`
	EstimatedValue float64 `json:"estimatedValue" yaml:"estimated_value"`
}

// RetireProposal proposes retiring an exploration keyword.
type RetireProposal struct {
	Term      string `json:"term" yaml:"term"`
	Rationale string `json:"rationale" yaml:"rationale"`
}

// Proposals is a batch of keyword changes from a performance review.
type Proposals struct {
	Add    []AddProposal    `json:"add" yaml:"add"`
	Retire []RetireProposal `json:"retire" yaml:"retire"`
}

// KeywordAdvisor reviews recent accepted claims against the current
// configuration and proposes keyword changes.
type KeywordAdvisor interface {
	Propose(ctx context.Context, accepted []*AcceptedClaim, cfg *KeywordConfig) (*Proposals, error)
}

// UsageEvent records that a term was searched in a cycle.
type UsageEvent struct {
	CycleID string    `json:"cycleId"`
	Term    string    `json:"term"`
	Pool    Pool      `json:"pool"`
	UsedAt  time.Time `json:"usedAt"`
}

// KeywordStats summarizes the usage history of one term.
type KeywordStats struct {
	Term     string    `json:"term"`
	Uses     int       `json:"uses"`
	Hits     int       `json:"hits"`
	LastUsed time.Time `json:"lastUsed"`
}

// UsageHistory is the append-only performance record written by the
// pipeline and read by the keyword lifecycle manager.
type UsageHistory interface {
	// RecordUsage appends a usage event. Recording the same term twice in
	// one cycle is a no-op.
	RecordUsage(ctx context.Context, ev *UsageEvent) error

	// RecordHit notes that a term's search in a cycle produced an accepted
	// claim. A cycle counts at most one hit per term.
	RecordHit(ctx context.Context, cycleID, term string) error

	// Stats returns cumulative statistics keyed by term.
	Stats(ctx context.Context) (map[string]*KeywordStats, error)
}
