// Package stake sizes positions with a fractional Kelly model bounded by a
// fixed dollar band and the capital actually available.
package stake

import (
	"fmt"

	"github.com/quantbotio/quantbot/internal/domain"
)

// Config holds sizing parameters.
type Config struct {
	// KellyFraction scales the raw Kelly stake; 0.25 is quarter-Kelly.
	KellyFraction float64
	// MinStake and MaxStake bound every stake in dollars.
	MinStake float64
	MaxStake float64
}

// Sizer computes stakes. It is stateless and safe for concurrent use.
type Sizer struct {
	cfg Config
}

// NewSizer creates a Sizer.
func NewSizer(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size returns the dollar stake for an opportunity given the bucket's
// available headroom.
//
// The model probability is the source's confidence; the market's implied
// probability comes from the opportunity's own quoted price. No positive
// edge means no stake (ErrNoEdge). The raw Kelly stake is scaled by the
// configured fraction, clamped into [MinStake, MaxStake], then clamped to
// available. If available cannot cover MinStake the opportunity is skipped
// (ErrInsufficientCapital).
func (s *Sizer) Size(opp domain.Opportunity, available float64) (float64, error) {
	if available < s.cfg.MinStake {
		return 0, fmt.Errorf("stake: available %.2f below minimum %.2f: %w",
			available, s.cfg.MinStake, domain.ErrInsufficientCapital)
	}

	pModel := opp.Confidence / 100
	pImplied := opp.ImpliedProb
	if pImplied <= 0 || pImplied >= 1 {
		return 0, fmt.Errorf("stake: implied probability %.4f out of range: %w",
			pImplied, domain.ErrNoEdge)
	}

	edge := pModel - pImplied
	if edge <= 0 {
		return 0, fmt.Errorf("stake: model %.4f does not beat market %.4f: %w",
			pModel, pImplied, domain.ErrNoEdge)
	}

	// Kelly for even exposure at the quoted price: edge over the odds offered.
	kelly := edge / (1 - pImplied)
	stakeFrac := kelly * s.cfg.KellyFraction

	stake := stakeFrac * available
	if stake < s.cfg.MinStake {
		stake = s.cfg.MinStake
	}
	if stake > s.cfg.MaxStake {
		stake = s.cfg.MaxStake
	}
	if stake > available {
		stake = available
	}
	return stake, nil
}
