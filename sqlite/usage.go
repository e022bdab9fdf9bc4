package sqlite

import (
	"context"
	"time"

	"github.com/jl-grey-man/smbintel"
)

// Compile-time interface verification.
var _ smbintel.UsageHistory = (*UsageHistory)(nil)

// UsageHistory implements smbintel.UsageHistory using SQLite.
//
// Both tables are keyed by (cycle_id, term), so a term counts at most one
// use and one hit per cycle and hits can never exceed uses.
type UsageHistory struct {
	db *DB
}

// NewUsageHistory creates a new UsageHistory.
func NewUsageHistory(db *DB) *UsageHistory {
	return &UsageHistory{db: db}
}

// RecordUsage appends a usage event. Repeating an event for the same cycle
// and term is a no-op.
func (h *UsageHistory) RecordUsage(ctx context.Context, ev *smbintel.UsageEvent) error {
	if ev.CycleID == "" || ev.Term == "" {
		return smbintel.Errorf(smbintel.EINVALID, "usage cycle ID and term required")
	}
	if !ev.Pool.Valid() {
		return smbintel.Errorf(smbintel.EINVALID, "invalid pool %q", ev.Pool)
	}
	if ev.UsedAt.IsZero() {
		ev.UsedAt = time.Now().UTC()
	}

	_, err := h.db.ExecContext(ctx, `
		INSERT INTO keyword_usage (cycle_id, term, pool, used_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (cycle_id, term) DO NOTHING
	`, ev.CycleID, ev.Term, string(ev.Pool), formatTime(ev.UsedAt))
	return err
}

// RecordHit appends a hit for a term used in a cycle. Hits for terms that
// were never recorded as used in that cycle are ignored.
func (h *UsageHistory) RecordHit(ctx context.Context, cycleID, term string) error {
	if cycleID == "" || term == "" {
		return nil
	}

	_, err := h.db.ExecContext(ctx, `
		INSERT INTO keyword_hits (cycle_id, term, recorded_at)
		SELECT cycle_id, term, ? FROM keyword_usage WHERE cycle_id = ? AND term = ?
		ON CONFLICT (cycle_id, term) DO NOTHING
	`, formatTime(time.Now()), cycleID, term)
	return err
}

// Stats aggregates the history per term.
func (h *UsageHistory) Stats(ctx context.Context) (map[string]*smbintel.KeywordStats, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT u.term, COUNT(*), COUNT(k.term), MAX(u.used_at)
		FROM keyword_usage u
		LEFT JOIN keyword_hits k ON k.cycle_id = u.cycle_id AND k.term = u.term
		GROUP BY u.term
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]*smbintel.KeywordStats)
	for rows.Next() {
		var st smbintel.KeywordStats
		var lastUsed string
		if err := rows.Scan(&st.Term, &st.Uses, &st.Hits, &lastUsed); err != nil {
			return nil, err
		}
		t, err := parseRFC3339(lastUsed, "used_at")
		if err != nil {
			return nil, err
		}
		st.LastUsed = t
		stats[st.Term] = &st
	}

	return stats, rows.Err()
}
