package mock

import (
	"context"
	"encoding/json"

	"github.com/jl-grey-man/smbintel"
)

var _ smbintel.ClaimService = (*ClaimService)(nil)

// ClaimService is a mock implementation of smbintel.ClaimService.
type ClaimService struct {
	CreateClaimFn   func(ctx context.Context, claim *smbintel.CandidateClaim) error
	FindClaimByIDFn func(ctx context.Context, id string) (*smbintel.CandidateClaim, error)
	FindClaimsFn    func(ctx context.Context, filter smbintel.ClaimFilter) ([]*smbintel.CandidateClaim, error)
}

func (s *ClaimService) CreateClaim(ctx context.Context, claim *smbintel.CandidateClaim) error {
	return s.CreateClaimFn(ctx, claim)
}

func (s *ClaimService) FindClaimByID(ctx context.Context, id string) (*smbintel.CandidateClaim, error) {
	return s.FindClaimByIDFn(ctx, id)
}

func (s *ClaimService) FindClaims(ctx context.Context, filter smbintel.ClaimFilter) ([]*smbintel.CandidateClaim, error) {
	return s.FindClaimsFn(ctx, filter)
}

var _ smbintel.Interpreter = (*Interpreter)(nil)

// Interpreter is a mock implementation of smbintel.Interpreter.
type Interpreter struct {
	InterpretFn func(ctx context.Context, rec *smbintel.CrawlRecord) ([]json.RawMessage, error)
}

func (i *Interpreter) Interpret(ctx context.Context, rec *smbintel.CrawlRecord) ([]json.RawMessage, error) {
	return i.InterpretFn(ctx, rec)
}
