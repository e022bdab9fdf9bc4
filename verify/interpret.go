package verify

import (
	"context"
	"log/slog"
	"time"

	"github.com/jl-grey-man/smbintel"
)

// InterpretResult summarizes one interpretation pass.
type InterpretResult struct {
	Records int // records interpreted and marked
	Claims  int // claims stored
	Dropped int // claims that failed the schema
	Failed  int // records left pending after an interpreter error
}

// Interpret reads every pending record from the ledger, asks the
// interpreter for raw claims, stores the claims that pass DecodeClaim, and
// marks the record interpreted. Malformed claims are dropped and logged; the
// record is still marked so the same content is never retried. The same
// holds when the interpreter reports EINVALID for its whole response. Any
// other interpreter error leaves the record pending for the next pass.
func Interpret(ctx context.Context, ledger smbintel.Ledger, interp smbintel.Interpreter, claims smbintel.ClaimService, logger *slog.Logger) (*InterpretResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	res := &InterpretResult{}
	for rec, err := range ledger.PendingForInterpretation(ctx) {
		if err != nil {
			return res, err
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		marker := &smbintel.Interpretation{Fingerprint: rec.Fingerprint, InterpretedAt: time.Now().UTC()}

		raws, err := interp.Interpret(ctx, rec)
		switch {
		case smbintel.ErrorCode(err) == smbintel.EINVALID:
			// The whole response was unusable; treat it as one dropped claim.
			logger.Warn("interpreter output malformed", "fingerprint", rec.Fingerprint, "err", err)
			marker.Dropped++
		case err != nil:
			logger.Warn("interpret failed", "fingerprint", rec.Fingerprint, "url", rec.SourceURL, "err", err)
			res.Failed++
			continue
		}

		for _, raw := range raws {
			claim, err := DecodeClaim(rec.Fingerprint, raw)
			if err != nil {
				logger.Warn("claim dropped", "fingerprint", rec.Fingerprint, "err", err)
				marker.Dropped++
				continue
			}
			if err := claims.CreateClaim(ctx, claim); err != nil {
				return res, err
			}
			marker.Claims++
		}

		if err := ledger.MarkInterpreted(ctx, marker); err != nil {
			return res, err
		}
		res.Records++
		res.Claims += marker.Claims
		res.Dropped += marker.Dropped
	}
	return res, nil
}
