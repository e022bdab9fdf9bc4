package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/jl-grey-man/smbintel"
)

// Ensure LoggingRegistry implements smbintel.Registry.
var _ smbintel.Registry = (*LoggingRegistry)(nil)

// LoggingRegistry wraps a company Registry with lookup logging.
type LoggingRegistry struct {
	next   smbintel.Registry
	logger *slog.Logger
}

// NewLoggingRegistry creates a new LoggingRegistry.
func NewLoggingRegistry(next smbintel.Registry, logger *slog.Logger) *LoggingRegistry {
	return &LoggingRegistry{next: next, logger: logger}
}

// Lookup delegates to the wrapped registry. A miss is logged as found=false
// rather than as an error.
func (r *LoggingRegistry) Lookup(ctx context.Context, company string) (e *smbintel.Enrichment, err error) {
	defer func(begin time.Time) {
		attrs := []any{"company", company, "duration", time.Since(begin)}
		switch {
		case smbintel.ErrorCode(err) == smbintel.ENOTFOUND:
			attrs = append(attrs, "found", false)
		case err != nil:
			attrs = append(attrs, "err", err)
		default:
			attrs = append(attrs, "found", e.Found, "org_number", e.OrgNumber)
		}
		r.logger.Info("registry lookup", attrs...)
	}(time.Now())
	return r.next.Lookup(ctx, company)
}
