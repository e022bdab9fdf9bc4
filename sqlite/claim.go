package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jl-grey-man/smbintel"
)

// Compile-time interface verification.
var _ smbintel.ClaimService = (*ClaimService)(nil)

// ClaimService implements smbintel.ClaimService using SQLite.
type ClaimService struct {
	db *DB
}

// NewClaimService creates a new ClaimService.
func NewClaimService(db *DB) *ClaimService {
	return &ClaimService{db: db}
}

const claimColumns = `c.id, c.fingerprint, c.signal_type, c.quote, c.person_name, c.person_title,
	c.person_company, c.company_name, c.problem, c.need, c.created_at`

// CreateClaim stores a new claim with a generated ID.
func (s *ClaimService) CreateClaim(ctx context.Context, claim *smbintel.CandidateClaim) error {
	if err := claim.Validate(); err != nil {
		return err
	}

	claim.ID = uuid.New().String()
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO claims (id, fingerprint, signal_type, quote, person_name, person_title,
			person_company, company_name, problem, need, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, claim.ID, claim.Fingerprint, string(claim.SignalType), claim.Quote, claim.PersonName,
		claim.PersonTitle, claim.PersonCompany, claim.CompanyName, claim.Problem, claim.Need,
		formatTime(claim.CreatedAt))

	return err
}

// FindClaimByID retrieves a claim by ID.
func (s *ClaimService) FindClaimByID(ctx context.Context, id string) (*smbintel.CandidateClaim, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+claimColumns+" FROM claims c WHERE c.id = ?", id)

	claim, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, smbintel.Errorf(smbintel.ENOTFOUND, "claim not found")
	}
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// FindClaims retrieves claims matching the filter in creation order.
//
// With Unverified set, a claim matches when it has no verification result
// or when its latest result is marked retryable.
func (s *ClaimService) FindClaims(ctx context.Context, filter smbintel.ClaimFilter) ([]*smbintel.CandidateClaim, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT " + claimColumns + " FROM claims c")
	if filter.Unverified {
		query.WriteString(`
			LEFT JOIN verifications v ON v.rowid = (
				SELECT MAX(rowid) FROM verifications WHERE claim_id = c.id
			)`)
	}
	query.WriteString(" WHERE 1=1")

	if filter.Fingerprint != nil {
		query.WriteString(" AND c.fingerprint = ?")
		args = append(args, *filter.Fingerprint)
	}
	if filter.Unverified {
		query.WriteString(" AND (v.id IS NULL OR v.retryable = 1)")
	}

	query.WriteString(" ORDER BY c.rowid ASC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*smbintel.CandidateClaim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}

func scanClaim(row scanner) (*smbintel.CandidateClaim, error) {
	var c smbintel.CandidateClaim
	var signalType, createdAt string

	if err := row.Scan(&c.ID, &c.Fingerprint, &signalType, &c.Quote, &c.PersonName, &c.PersonTitle,
		&c.PersonCompany, &c.CompanyName, &c.Problem, &c.Need, &createdAt); err != nil {
		return nil, err
	}
	c.SignalType = smbintel.SignalType(signalType)

	t, err := parseRFC3339(createdAt, "created_at")
	if err != nil {
		return nil, err
	}
	c.CreatedAt = t
	return &c, nil
}
