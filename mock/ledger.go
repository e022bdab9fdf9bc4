package mock

import (
	"context"
	"iter"

	"github.com/jl-grey-man/smbintel"
)

var _ smbintel.Ledger = (*Ledger)(nil)

// Ledger is a mock implementation of smbintel.Ledger.
type Ledger struct {
	ExistsFn                   func(ctx context.Context, fingerprint string) (bool, error)
	HasURLFn                   func(ctx context.Context, rawURL string) (bool, error)
	InsertFn                   func(ctx context.Context, rec *smbintel.CrawlRecord) (bool, error)
	FindRecordFn               func(ctx context.Context, fingerprint string) (*smbintel.CrawlRecord, error)
	PendingForInterpretationFn func(ctx context.Context) iter.Seq2[*smbintel.CrawlRecord, error]
	MarkInterpretedFn          func(ctx context.Context, in *smbintel.Interpretation) error
}

func (l *Ledger) Exists(ctx context.Context, fingerprint string) (bool, error) {
	return l.ExistsFn(ctx, fingerprint)
}

func (l *Ledger) HasURL(ctx context.Context, rawURL string) (bool, error) {
	return l.HasURLFn(ctx, rawURL)
}

func (l *Ledger) Insert(ctx context.Context, rec *smbintel.CrawlRecord) (bool, error) {
	return l.InsertFn(ctx, rec)
}

func (l *Ledger) FindRecord(ctx context.Context, fingerprint string) (*smbintel.CrawlRecord, error) {
	return l.FindRecordFn(ctx, fingerprint)
}

func (l *Ledger) PendingForInterpretation(ctx context.Context) iter.Seq2[*smbintel.CrawlRecord, error] {
	return l.PendingForInterpretationFn(ctx)
}

func (l *Ledger) MarkInterpreted(ctx context.Context, in *smbintel.Interpretation) error {
	return l.MarkInterpretedFn(ctx, in)
}
