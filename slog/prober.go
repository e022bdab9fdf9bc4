package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/jl-grey-man/smbintel"
)

// Ensure LoggingProber implements smbintel.LivenessProber.
var _ smbintel.LivenessProber = (*LoggingProber)(nil)

// LoggingProber wraps a LivenessProber with logging.
type LoggingProber struct {
	next   smbintel.LivenessProber
	logger *slog.Logger
}

// NewLoggingProber creates a new LoggingProber.
func NewLoggingProber(next smbintel.LivenessProber, logger *slog.Logger) *LoggingProber {
	return &LoggingProber{next: next, logger: logger}
}

// Probe delegates to the wrapped prober and logs the classification.
func (p *LoggingProber) Probe(ctx context.Context, url string) (res *smbintel.ProbeResult, err error) {
	defer func(begin time.Time) {
		attrs := []any{"url", url, "duration", time.Since(begin)}
		if res != nil {
			attrs = append(attrs, "liveness", res.Liveness, "status", res.StatusCode)
			if res.FinalURL != "" && res.FinalURL != url {
				attrs = append(attrs, "final_url", res.FinalURL)
			}
		}
		attrs = append(attrs, "err", err)
		p.logger.Info("probe", attrs...)
	}(time.Now())
	return p.next.Probe(ctx, url)
}
