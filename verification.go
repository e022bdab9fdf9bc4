package smbintel

import (
	"context"
	"time"
)

// QuoteVerdict classifies how faithfully a claim's quote appears in its source.
type QuoteVerdict string

// QuoteVerdict constants.
const (
	QuotePassed  QuoteVerdict = "passed"
	QuotePartial QuoteVerdict = "partial"
	QuoteFailed  QuoteVerdict = "failed"
)

// Liveness classifies whether a cited URL is still reachable.
type Liveness string

// Liveness constants.
const (
	LivenessLive     Liveness = "live"
	LivenessRedirect Liveness = "redirect"
	LivenessDead     Liveness = "dead"
	LivenessTimeout  Liveness = "timeout"
)

// Reachable reports whether the citation can still be followed.
func (l Liveness) Reachable() bool {
	return l == LivenessLive || l == LivenessRedirect
}

// Status is the terminal trust classification of a claim.
type Status string

// Status constants.
const (
	StatusVerified Status = "verified"
	StatusWeak     Status = "weak"
	StatusRejected Status = "rejected"
)

// Accepted reports whether records with this status are surfaced downstream.
func (s Status) Accepted() bool {
	return s == StatusVerified || s == StatusWeak
}

// VerificationResult is the outcome of verifying one claim.
// Results are append-only; re-verification creates a new result and the
// latest one is authoritative.
type VerificationResult struct {
	ID          string       `json:"id"`
	ClaimID     string       `json:"claimId"`
	QuoteScore  float64      `json:"quoteScore"`
	Quote       QuoteVerdict `json:"quote"`
	Liveness    Liveness     `json:"liveness"`
	Duplicate   bool         `json:"duplicate"`
	DuplicateOf string       `json:"duplicateOf,omitempty"`
	Enriched    bool         `json:"enriched"`
	Enrichment  *Enrichment  `json:"enrichment,omitempty"`
	Status      Status       `json:"status"`
	Retryable   bool         `json:"retryable"`
	VerifiedAt  time.Time    `json:"verifiedAt"`
}

// AcceptedClaim pairs an accepted claim with its authoritative result and
// the source it cites.
type AcceptedClaim struct {
	Claim     *CandidateClaim     `json:"claim"`
	Result    *VerificationResult `json:"result"`
	SourceURL string              `json:"sourceUrl"`
}

// VerificationService represents a service for storing verification results.
type VerificationService interface {
	// CreateVerification appends a result with a generated ID.
	CreateVerification(ctx context.Context, res *VerificationResult) error

	// FindLatestVerification returns the authoritative result for a claim.
	// Returns ENOTFOUND if the claim has never been verified.
	FindLatestVerification(ctx context.Context, claimID string) (*VerificationResult, error)

	// FindAccepted returns claims whose authoritative status is verified or
	// weak. Rejected results are never returned.
	FindAccepted(ctx context.Context, filter AcceptedFilter) ([]*AcceptedClaim, error)
}

// AcceptedFilter represents a filter for FindAccepted.
type AcceptedFilter struct {
	// Person and Company restrict results to an identity key.
	Person  *string `json:"person"`
	Company *string `json:"company"`

	// Since restricts results to claims verified at or after the time.
	Since *time.Time `json:"since"`

	// ExcludeDuplicates drops results flagged as duplicates.
	ExcludeDuplicates bool `json:"excludeDuplicates"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// ProbeResult is the outcome of a header-only liveness probe.
type ProbeResult struct {
	Liveness   Liveness `json:"liveness"`
	StatusCode int      `json:"statusCode"`
	FinalURL   string   `json:"finalUrl"`
}

// LivenessProber checks whether a URL still resolves without downloading
// its body.
type LivenessProber interface {
	Probe(ctx context.Context, url string) (*ProbeResult, error)
}
