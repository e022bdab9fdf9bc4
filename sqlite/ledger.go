package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jl-grey-man/smbintel"
	"github.com/jl-grey-man/smbintel/bloom"
)

// DefaultPendingBatchSize is the number of records read per query while
// iterating pending records.
const DefaultPendingBatchSize = 50

// Compile-time interface verification.
var _ smbintel.Ledger = (*LedgerService)(nil)

// LedgerService implements smbintel.Ledger using SQLite.
type LedgerService struct {
	db *DB

	// filter short-circuits Exists for fingerprints that were never stored.
	// Nil until WarmFilter is called.
	filter *bloom.Filter

	// BatchSize controls keyset pagination in PendingForInterpretation.
	BatchSize int
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(db *DB) *LedgerService {
	return &LedgerService{db: db, BatchSize: DefaultPendingBatchSize}
}

// Fingerprint computes the identity of a page from its normalized URL and
// the first smbintel.FingerprintPrefixLen runes of its content.
func Fingerprint(normalizedURL, content string) string {
	d := xxhash.New()
	_, _ = d.WriteString(normalizedURL)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(smbintel.ContentPrefix(content, smbintel.FingerprintPrefixLen))
	return fmt.Sprintf("%016x", d.Sum64())
}

// WarmFilter loads every stored fingerprint into a Bloom filter sized for
// n expected records. After warming, Exists answers negatives without
// querying the database.
func (s *LedgerService) WarmFilter(ctx context.Context, n uint, fpRate float64) error {
	f := bloom.NewFilter(n, fpRate)

	rows, err := s.db.QueryContext(ctx, "SELECT fingerprint FROM crawl_records")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return err
		}
		f.Add(fp)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.filter = f
	return nil
}

// Exists reports whether a record with the fingerprint is stored.
func (s *LedgerService) Exists(ctx context.Context, fingerprint string) (bool, error) {
	if s.filter != nil && !s.filter.Test(fingerprint) {
		return false, nil
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM crawl_records WHERE fingerprint = ?", fingerprint).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasURL reports whether any record for the normalized URL is stored.
func (s *LedgerService) HasURL(ctx context.Context, rawURL string) (bool, error) {
	normalized, err := smbintel.NormalizeURL(rawURL)
	if err != nil {
		return false, err
	}

	var n int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM crawl_records WHERE normalized_url = ?", normalized).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Insert stores a new record. A record whose fingerprint already exists is
// left untouched and Insert returns false.
func (s *LedgerService) Insert(ctx context.Context, rec *smbintel.CrawlRecord) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}

	normalized, err := smbintel.NormalizeURL(rec.SourceURL)
	if err != nil {
		return false, err
	}
	if rec.Fingerprint == "" {
		rec.Fingerprint = Fingerprint(normalized, rec.RawText)
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_records (fingerprint, source_url, normalized_url, domain, title, http_status,
			fetched_at, term, pool, cycle_id, raw_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO NOTHING
	`, rec.Fingerprint, rec.SourceURL, normalized, rec.Domain, rec.Title, rec.HTTPStatus,
		rec.FetchedAt.UTC().Format(time.RFC3339), rec.Provenance.Term, string(rec.Provenance.Pool),
		rec.Provenance.CycleID, rec.RawText)
	if err != nil {
		return false, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if s.filter != nil {
		s.filter.Add(rec.Fingerprint)
	}
	return n > 0, nil
}

// FindRecord retrieves a record by fingerprint.
func (s *LedgerService) FindRecord(ctx context.Context, fingerprint string) (*smbintel.CrawlRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT rowid, `+recordColumns+`
		FROM crawl_records
		WHERE fingerprint = ?
	`, fingerprint)

	_, rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, smbintel.Errorf(smbintel.ENOTFOUND, "record %q not found", fingerprint)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// PendingForInterpretation lazily yields records that have neither an
// interpretation marker nor any stored claim, in insertion order.
//
// Records are read in keyset-paginated batches so that no result set is
// held open while the caller writes claims through the same single-writer
// connection. Each record is yielded at most once per iteration even if the
// caller does not mark it interpreted.
func (s *LedgerService) PendingForInterpretation(ctx context.Context) iter.Seq2[*smbintel.CrawlRecord, error] {
	return func(yield func(*smbintel.CrawlRecord, error) bool) {
		size := s.BatchSize
		if size <= 0 {
			size = DefaultPendingBatchSize
		}

		var after int64
		for {
			batch, last, err := s.pendingBatch(ctx, after, size)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, rec := range batch {
				if !yield(rec, nil) {
					return
				}
			}
			if len(batch) < size {
				return
			}
			after = last
		}
	}
}

func (s *LedgerService) pendingBatch(ctx context.Context, after int64, limit int) ([]*smbintel.CrawlRecord, int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cr.rowid, `+prefixed("cr.", recordColumnList)+`
		FROM crawl_records cr
		LEFT JOIN interpretations i ON i.fingerprint = cr.fingerprint
		WHERE i.fingerprint IS NULL AND cr.rowid > ?
			AND NOT EXISTS (SELECT 1 FROM claims c WHERE c.fingerprint = cr.fingerprint)
		ORDER BY cr.rowid ASC
		LIMIT ?
	`, after, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var recs []*smbintel.CrawlRecord
	last := after
	for rows.Next() {
		rowid, rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		recs = append(recs, rec)
		last = rowid
	}
	return recs, last, rows.Err()
}

// MarkInterpreted writes the interpretation marker for a record.
// Marking a record twice returns ECONFLICT.
func (s *LedgerService) MarkInterpreted(ctx context.Context, in *smbintel.Interpretation) error {
	if in.Fingerprint == "" {
		return smbintel.Errorf(smbintel.EINVALID, "interpretation fingerprint required")
	}
	if in.InterpretedAt.IsZero() {
		in.InterpretedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO interpretations (fingerprint, interpreted_at, claims, dropped)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO NOTHING
	`, in.Fingerprint, in.InterpretedAt.UTC().Format(time.RFC3339), in.Claims, in.Dropped)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return smbintel.Errorf(smbintel.ECONFLICT, "record %q already interpreted", in.Fingerprint)
	}
	return nil
}
