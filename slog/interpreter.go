package slog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jl-grey-man/smbintel"
)

// Ensure LoggingInterpreter implements smbintel.Interpreter.
var _ smbintel.Interpreter = (*LoggingInterpreter)(nil)

// LoggingInterpreter wraps an Interpreter with logging.
type LoggingInterpreter struct {
	next   smbintel.Interpreter
	logger *slog.Logger
}

// NewLoggingInterpreter creates a new LoggingInterpreter.
func NewLoggingInterpreter(next smbintel.Interpreter, logger *slog.Logger) *LoggingInterpreter {
	return &LoggingInterpreter{next: next, logger: logger}
}

// Interpret logs the number of raw signals returned for the record.
func (i *LoggingInterpreter) Interpret(ctx context.Context, rec *smbintel.CrawlRecord) (raws []json.RawMessage, err error) {
	defer func(begin time.Time) {
		i.logger.Info("interpret",
			"fingerprint", rec.Fingerprint,
			"signals", len(raws),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return i.next.Interpret(ctx, rec)
}
