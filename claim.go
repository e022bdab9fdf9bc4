package smbintel

import (
	"context"
	"encoding/json"
	"time"
)

// SignalType classifies the kind of page a claim was found on.
type SignalType string

// SignalType constants.
const (
	SignalJobPosting  SignalType = "job_posting"
	SignalSocialPost  SignalType = "social_post"
	SignalNewsMention SignalType = "news_mention"
	SignalForumPost   SignalType = "forum_post"
	SignalCompanyData SignalType = "company_data"
)

// CandidateClaim is a structured assertion about a business problem derived
// from a stored page. Claims come from an external interpreter and are
// untrusted until verified.
type CandidateClaim struct {
	ID            string     `json:"id"`
	Fingerprint   string     `json:"fingerprint"`
	SignalType    SignalType `json:"signalType"`
	Quote         string     `json:"quote"`
	PersonName    string     `json:"personName"`
	PersonTitle   string     `json:"personTitle"`
	PersonCompany string     `json:"personCompany"`
	CompanyName   string     `json:"companyName"`
	Problem       string     `json:"problem"`
	Need          string     `json:"need"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Company returns the company the claim is about, preferring the explicit
// company over the person's employer.
func (c *CandidateClaim) Company() string {
	if c.CompanyName != "" {
		return c.CompanyName
	}
	return c.PersonCompany
}

// IdentityKey returns the (person, company) key used for duplicate
// detection. The bool result is false unless both parts are present.
func (c *CandidateClaim) IdentityKey() (person, company string, ok bool) {
	person, company = c.PersonName, c.Company()
	return person, company, person != "" && company != ""
}

// Validate returns an error if the claim contains invalid fields.
func (c *CandidateClaim) Validate() error {
	if c.Fingerprint == "" {
		return Errorf(EINVALID, "claim fingerprint required")
	}
	if c.Quote == "" {
		return Errorf(EINVALID, "claim quote required")
	}
	return nil
}

// ClaimService represents a service for managing candidate claims.
type ClaimService interface {
	// CreateClaim stores a new claim with a generated ID.
	CreateClaim(ctx context.Context, claim *CandidateClaim) error

	// FindClaimByID retrieves a claim by ID.
	// Returns ENOTFOUND if the claim does not exist.
	FindClaimByID(ctx context.Context, id string) (*CandidateClaim, error)

	// FindClaims retrieves claims matching the filter.
	FindClaims(ctx context.Context, filter ClaimFilter) ([]*CandidateClaim, error)
}

// ClaimFilter represents a filter for FindClaims.
type ClaimFilter struct {
	Fingerprint *string `json:"fingerprint"`

	// Unverified restricts results to claims without an authoritative
	// verification result, including claims whose latest result is retryable.
	Unverified bool `json:"unverified"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Interpreter turns a stored page into zero or more raw candidate claims.
// The output is untrusted and must pass schema validation before use.
type Interpreter interface {
	Interpret(ctx context.Context, rec *CrawlRecord) ([]json.RawMessage, error)
}
