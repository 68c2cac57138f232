package rank

import (
	"context"
	"log/slog"

	"github.com/quantbotio/quantbot/internal/domain"
)

// applyAdvisory sends the leading candidates to the oracle and splices its
// reordering back in front of the remainder. The oracle is advisory only:
// any failure, or an answer that is not a permutation of the slate it was
// given, leaves the deterministic order untouched.
func (e *Engine) applyAdvisory(ctx context.Context, ranked []domain.RankedOpportunity) []domain.RankedOpportunity {
	if !e.cfg.OracleEnabled || e.oracle == nil || len(ranked) == 0 {
		return ranked
	}

	n := e.cfg.OracleTopN
	if n > len(ranked) {
		n = len(ranked)
	}
	slate := make([]domain.RankedOpportunity, n)
	copy(slate, ranked[:n])

	advised, err := e.oracle.Advise(ctx, slate)
	if err != nil {
		e.logger.WarnContext(ctx, "advisory oracle unavailable, keeping deterministic order",
			slog.String("error", err.Error()))
		return ranked
	}
	if !samePermutation(slate, advised) {
		e.logger.WarnContext(ctx, "advisory oracle returned an invalid slate, keeping deterministic order",
			slog.Int("sent", len(slate)), slog.Int("received", len(advised)))
		return ranked
	}

	out := make([]domain.RankedOpportunity, 0, len(ranked))
	out = append(out, advised...)
	out = append(out, ranked[n:]...)
	return out
}

// samePermutation verifies the advised slate contains exactly the candidates
// that were sent, keyed by opportunity ID.
func samePermutation(sent, got []domain.RankedOpportunity) bool {
	if len(sent) != len(got) {
		return false
	}
	ids := make(map[string]int, len(sent))
	for _, r := range sent {
		ids[r.Opportunity.ID]++
	}
	for _, r := range got {
		ids[r.Opportunity.ID]--
		if ids[r.Opportunity.ID] < 0 {
			return false
		}
	}
	return true
}
