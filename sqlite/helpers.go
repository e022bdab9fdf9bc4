package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/jl-grey-man/smbintel"
)

// parseRFC3339 parses an RFC3339 formatted timestamp string.
// Returns an error if parsing fails with a descriptive message including the field name.
func parseRFC3339(value, fieldName string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", fieldName, err)
	}
	return t, nil
}

// formatTime formats t in the sortable UTC form used by every table.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// appendPagination appends LIMIT and OFFSET clauses to a query builder if values are > 0.
func appendPagination(query *strings.Builder, args *[]any, limit, offset int) {
	if limit > 0 {
		query.WriteString(" LIMIT ?")
		*args = append(*args, limit)
	} else if offset > 0 {
		// SQLite requires LIMIT before OFFSET.
		query.WriteString(" LIMIT -1")
	}
	if offset > 0 {
		query.WriteString(" OFFSET ?")
		*args = append(*args, offset)
	}
}

// boolInt converts a bool to the INTEGER representation SQLite stores.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

var recordColumnList = []string{
	"fingerprint", "source_url", "domain", "title", "http_status",
	"fetched_at", "term", "pool", "cycle_id", "raw_text",
}

var recordColumns = strings.Join(recordColumnList, ", ")

// prefixed qualifies every column with a table alias prefix.
func prefixed(prefix string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + c
	}
	return strings.Join(out, ", ")
}

// scanRecord scans a rowid followed by recordColumns.
func scanRecord(row scanner) (int64, *smbintel.CrawlRecord, error) {
	var rowid int64
	var rec smbintel.CrawlRecord
	var fetchedAt, pool string

	if err := row.Scan(&rowid, &rec.Fingerprint, &rec.SourceURL, &rec.Domain, &rec.Title,
		&rec.HTTPStatus, &fetchedAt, &rec.Provenance.Term, &pool, &rec.Provenance.CycleID,
		&rec.RawText); err != nil {
		return 0, nil, err
	}
	rec.Provenance.Pool = smbintel.Pool(pool)

	t, err := parseRFC3339(fetchedAt, "fetched_at")
	if err != nil {
		return 0, nil, err
	}
	rec.FetchedAt = t
	return rowid, &rec, nil
}
