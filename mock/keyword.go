package mock

import (
	"context"

	"github.com/jl-grey-man/smbintel"
)

var _ smbintel.KeywordStore = (*KeywordStore)(nil)

// KeywordStore is a mock implementation of smbintel.KeywordStore.
type KeywordStore struct {
	CurrentFn func(ctx context.Context) (*smbintel.KeywordConfig, error)
	VersionFn func(ctx context.Context, version int) (*smbintel.KeywordConfig, error)
	SaveFn    func(ctx context.Context, cfg *smbintel.KeywordConfig) error
}

func (s *KeywordStore) Current(ctx context.Context) (*smbintel.KeywordConfig, error) {
	return s.CurrentFn(ctx)
}

func (s *KeywordStore) Version(ctx context.Context, version int) (*smbintel.KeywordConfig, error) {
	return s.VersionFn(ctx, version)
}

func (s *KeywordStore) Save(ctx context.Context, cfg *smbintel.KeywordConfig) error {
	return s.SaveFn(ctx, cfg)
}

var _ smbintel.UsageHistory = (*UsageHistory)(nil)

// UsageHistory is a mock implementation of smbintel.UsageHistory.
type UsageHistory struct {
	RecordUsageFn func(ctx context.Context, ev *smbintel.UsageEvent) error
	RecordHitFn   func(ctx context.Context, cycleID, term string) error
	StatsFn       func(ctx context.Context) (map[string]*smbintel.KeywordStats, error)
}

func (h *UsageHistory) RecordUsage(ctx context.Context, ev *smbintel.UsageEvent) error {
	return h.RecordUsageFn(ctx, ev)
}

func (h *UsageHistory) RecordHit(ctx context.Context, cycleID, term string) error {
	return h.RecordHitFn(ctx, cycleID, term)
}

func (h *UsageHistory) Stats(ctx context.Context) (map[string]*smbintel.KeywordStats, error) {
	return h.StatsFn(ctx)
}

var _ smbintel.KeywordAdvisor = (*KeywordAdvisor)(nil)

// KeywordAdvisor is a mock implementation of smbintel.KeywordAdvisor.
type KeywordAdvisor struct {
	ProposeFn func(ctx context.Context, accepted []*smbintel.AcceptedClaim, cfg *smbintel.KeywordConfig) (*smbintel.Proposals, error)
}

func (a *KeywordAdvisor) Propose(ctx context.Context, accepted []*smbintel.AcceptedClaim, cfg *smbintel.KeywordConfig) (*smbintel.Proposals, error) {
	return a.ProposeFn(ctx, accepted, cfg)
}
