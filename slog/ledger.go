package slog

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/jl-grey-man/smbintel"
)

// Ensure LoggingLedger implements smbintel.Ledger.
var _ smbintel.Ledger = (*LoggingLedger)(nil)

// LoggingLedger wraps a Ledger and logs writes. Reads are delegated
// without logging.
type LoggingLedger struct {
	next   smbintel.Ledger
	logger *slog.Logger
}

// NewLoggingLedger creates a new LoggingLedger.
func NewLoggingLedger(next smbintel.Ledger, logger *slog.Logger) *LoggingLedger {
	return &LoggingLedger{next: next, logger: logger}
}

// Exists delegates to the wrapped ledger.
func (l *LoggingLedger) Exists(ctx context.Context, fingerprint string) (bool, error) {
	return l.next.Exists(ctx, fingerprint)
}

// HasURL delegates to the wrapped ledger.
func (l *LoggingLedger) HasURL(ctx context.Context, rawURL string) (bool, error) {
	return l.next.HasURL(ctx, rawURL)
}

// Insert logs the insert outcome. Duplicate content is reported with the
// fingerprint it collided with.
func (l *LoggingLedger) Insert(ctx context.Context, rec *smbintel.CrawlRecord) (inserted bool, err error) {
	defer func(begin time.Time) {
		if err == nil && !inserted {
			l.logger.Info("ledger duplicate",
				"fingerprint", rec.Fingerprint,
				"url", rec.SourceURL,
			)
			return
		}
		l.logger.Info("ledger insert",
			"fingerprint", rec.Fingerprint,
			"url", rec.SourceURL,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return l.next.Insert(ctx, rec)
}

// FindRecord delegates to the wrapped ledger.
func (l *LoggingLedger) FindRecord(ctx context.Context, fingerprint string) (*smbintel.CrawlRecord, error) {
	return l.next.FindRecord(ctx, fingerprint)
}

// PendingForInterpretation delegates to the wrapped ledger.
func (l *LoggingLedger) PendingForInterpretation(ctx context.Context) iter.Seq2[*smbintel.CrawlRecord, error] {
	return l.next.PendingForInterpretation(ctx)
}

// MarkInterpreted logs the marker and delegates to the wrapped ledger.
func (l *LoggingLedger) MarkInterpreted(ctx context.Context, in *smbintel.Interpretation) (err error) {
	defer func() {
		l.logger.Info("interpreted",
			"fingerprint", in.Fingerprint,
			"claims", in.Claims,
			"dropped", in.Dropped,
			"err", err,
		)
	}()
	return l.next.MarkInterpreted(ctx, in)
}
