package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jl-grey-man/smbintel"
)

// Compile-time interface verification.
var _ smbintel.VerificationService = (*VerificationService)(nil)

// VerificationService implements smbintel.VerificationService using SQLite.
//
// Results are append-only. The authoritative result for a claim is the one
// inserted last.
type VerificationService struct {
	db *DB
}

// NewVerificationService creates a new VerificationService.
func NewVerificationService(db *DB) *VerificationService {
	return &VerificationService{db: db}
}

const verificationColumns = `v.id, v.claim_id, v.quote_score, v.quote_check, v.liveness, v.is_duplicate,
	v.duplicate_of, v.enriched, v.enrichment, v.final_status, v.retryable, v.verified_at`

// CreateVerification appends a verification result.
func (s *VerificationService) CreateVerification(ctx context.Context, res *smbintel.VerificationResult) error {
	if res.ClaimID == "" {
		return smbintel.Errorf(smbintel.EINVALID, "verification claim ID required")
	}

	res.ID = uuid.New().String()
	if res.VerifiedAt.IsZero() {
		res.VerifiedAt = time.Now().UTC()
	}

	var enrichment string
	if res.Enrichment != nil {
		b, err := json.Marshal(res.Enrichment)
		if err != nil {
			return fmt.Errorf("failed to encode enrichment: %w", err)
		}
		enrichment = string(b)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verifications (id, claim_id, quote_score, quote_check, liveness, is_duplicate,
			duplicate_of, enriched, enrichment, final_status, retryable, verified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, res.ID, res.ClaimID, res.QuoteScore, string(res.Quote), string(res.Liveness),
		boolInt(res.Duplicate), res.DuplicateOf, boolInt(res.Enriched), enrichment,
		string(res.Status), boolInt(res.Retryable), formatTime(res.VerifiedAt))

	return err
}

// FindLatestVerification retrieves the authoritative result for a claim.
func (s *VerificationService) FindLatestVerification(ctx context.Context, claimID string) (*smbintel.VerificationResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+verificationColumns+`
		FROM verifications v
		WHERE v.claim_id = ?
		ORDER BY v.rowid DESC
		LIMIT 1
	`, claimID)

	res, err := scanVerification(row)
	if err == sql.ErrNoRows {
		return nil, smbintel.Errorf(smbintel.ENOTFOUND, "verification not found")
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// FindAccepted returns claims whose latest result is verified or weak,
// newest first. Rejected results are never returned.
func (s *VerificationService) FindAccepted(ctx context.Context, filter smbintel.AcceptedFilter) ([]*smbintel.AcceptedClaim, error) {
	var query strings.Builder
	var args []any

	query.WriteString(`SELECT ` + claimColumns + `, ` + verificationColumns + `, cr.source_url
		FROM claims c
		JOIN verifications v ON v.rowid = (
			SELECT MAX(rowid) FROM verifications WHERE claim_id = c.id
		)
		JOIN crawl_records cr ON cr.fingerprint = c.fingerprint
		WHERE v.final_status IN ('verified', 'weak')`)

	if filter.Person != nil {
		query.WriteString(" AND c.person_name = ? COLLATE NOCASE")
		args = append(args, *filter.Person)
	}
	if filter.Company != nil {
		query.WriteString(` AND (CASE WHEN c.company_name != '' THEN c.company_name ELSE c.person_company END) = ? COLLATE NOCASE`)
		args = append(args, *filter.Company)
	}
	if filter.Since != nil {
		query.WriteString(" AND v.verified_at >= ?")
		args = append(args, formatTime(*filter.Since))
	}
	if filter.ExcludeDuplicates {
		query.WriteString(" AND v.is_duplicate = 0")
	}

	query.WriteString(" ORDER BY v.verified_at DESC, v.rowid DESC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*smbintel.AcceptedClaim
	for rows.Next() {
		a, err := scanAccepted(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	return out, rows.Err()
}

// verificationFields returns scan destinations for verificationColumns and
// a function that finishes decoding once Scan has run.
func verificationFields(res *smbintel.VerificationResult) ([]any, func() error) {
	var quote, liveness, enrichment, status, verifiedAt string
	var duplicate, enriched, retryable int

	dest := []any{&res.ID, &res.ClaimID, &res.QuoteScore, &quote, &liveness, &duplicate,
		&res.DuplicateOf, &enriched, &enrichment, &status, &retryable, &verifiedAt}

	finish := func() error {
		res.Quote = smbintel.QuoteVerdict(quote)
		res.Liveness = smbintel.Liveness(liveness)
		res.Status = smbintel.Status(status)
		res.Duplicate = duplicate != 0
		res.Enriched = enriched != 0
		res.Retryable = retryable != 0

		if enrichment != "" {
			var e smbintel.Enrichment
			if err := json.Unmarshal([]byte(enrichment), &e); err != nil {
				return fmt.Errorf("failed to decode enrichment: %w", err)
			}
			res.Enrichment = &e
		}

		t, err := parseRFC3339(verifiedAt, "verified_at")
		if err != nil {
			return err
		}
		res.VerifiedAt = t
		return nil
	}
	return dest, finish
}

func scanVerification(row scanner) (*smbintel.VerificationResult, error) {
	var res smbintel.VerificationResult
	dest, finish := verificationFields(&res)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return &res, nil
}

func scanAccepted(row scanner) (*smbintel.AcceptedClaim, error) {
	var c smbintel.CandidateClaim
	var res smbintel.VerificationResult
	var signalType, createdAt, sourceURL string

	dest := []any{&c.ID, &c.Fingerprint, &signalType, &c.Quote, &c.PersonName, &c.PersonTitle,
		&c.PersonCompany, &c.CompanyName, &c.Problem, &c.Need, &createdAt}
	vdest, finish := verificationFields(&res)
	dest = append(dest, vdest...)
	dest = append(dest, &sourceURL)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, err
	}

	c.SignalType = smbintel.SignalType(signalType)
	t, err := parseRFC3339(createdAt, "created_at")
	if err != nil {
		return nil, err
	}
	c.CreatedAt = t

	return &smbintel.AcceptedClaim{Claim: &c, Result: &res, SourceURL: sourceURL}, nil
}
