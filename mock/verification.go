package mock

import (
	"context"

	"github.com/jl-grey-man/smbintel"
)

var _ smbintel.VerificationService = (*VerificationService)(nil)

// VerificationService is a mock implementation of smbintel.VerificationService.
type VerificationService struct {
	CreateVerificationFn     func(ctx context.Context, res *smbintel.VerificationResult) error
	FindLatestVerificationFn func(ctx context.Context, claimID string) (*smbintel.VerificationResult, error)
	FindAcceptedFn           func(ctx context.Context, filter smbintel.AcceptedFilter) ([]*smbintel.AcceptedClaim, error)
}

func (s *VerificationService) CreateVerification(ctx context.Context, res *smbintel.VerificationResult) error {
	return s.CreateVerificationFn(ctx, res)
}

func (s *VerificationService) FindLatestVerification(ctx context.Context, claimID string) (*smbintel.VerificationResult, error) {
	return s.FindLatestVerificationFn(ctx, claimID)
}

func (s *VerificationService) FindAccepted(ctx context.Context, filter smbintel.AcceptedFilter) ([]*smbintel.AcceptedClaim, error) {
	return s.FindAcceptedFn(ctx, filter)
}

var _ smbintel.LivenessProber = (*LivenessProber)(nil)

// LivenessProber is a mock implementation of smbintel.LivenessProber.
type LivenessProber struct {
	ProbeFn func(ctx context.Context, url string) (*smbintel.ProbeResult, error)
}

func (p *LivenessProber) Probe(ctx context.Context, url string) (*smbintel.ProbeResult, error) {
	return p.ProbeFn(ctx, url)
}
