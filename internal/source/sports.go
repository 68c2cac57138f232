// Package source implements the opportunity adapters the aggregator fans
// out to: sports picks, order-book scanning, cross-venue arbitrage, and spot
// momentum. Every adapter normalizes quoted prices into an implied
// probability before the opportunity leaves its boundary.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quantbotio/quantbot/internal/domain"
)

// SportsAdapter converts upstream picks into directional-bet opportunities.
type SportsAdapter struct {
	picks domain.SportsPickSource
}

// NewSportsAdapter creates a SportsAdapter over the given pick source.
func NewSportsAdapter(picks domain.SportsPickSource) *SportsAdapter {
	return &SportsAdapter{picks: picks}
}

// Name identifies the adapter in failure reports.
func (a *SportsAdapter) Name() string {
	return "sports_picks"
}

// Fetch pulls today's picks and converts each into an opportunity. Picks
// with unusable odds are skipped; picks whose event already started are
// expired on arrival and skipped as well.
func (a *SportsAdapter) Fetch(ctx context.Context) ([]domain.Opportunity, error) {
	picks, err := a.picks.Picks(ctx)
	if err != nil {
		return nil, fmt.Errorf("source: sports picks: %w", err)
	}

	now := time.Now().UTC()
	opps := make([]domain.Opportunity, 0, len(picks))
	for _, p := range picks {
		if p.Odds <= 1 {
			continue
		}
		if !p.StartTime.IsZero() && p.StartTime.Before(now) {
			continue
		}

		// Decimal odds imply a probability of 1/odds; the edge is the
		// model's confidence above that.
		implied := 1 / p.Odds
		pModel := p.Confidence / 100
		ev := (pModel*p.Odds - 1) * 100

		reasoning := []string{fmt.Sprintf("pick %s at decimal odds %.2f", p.Pick, p.Odds)}
		if p.Reasoning != "" {
			reasoning = append(reasoning, p.Reasoning)
		}

		opps = append(opps, domain.Opportunity{
			ID:            uuid.NewString(),
			Type:          domain.OpportunityDirectionalBet,
			Source:        a.Name(),
			Title:         fmt.Sprintf("%s: %s", p.Event, p.Pick),
			Confidence:    p.Confidence,
			ExpectedValue: ev,
			ImpliedProb:   implied,
			Risk:          riskFromOdds(p.Odds),
			Action: domain.ActionPlan{
				Type:       domain.ActionBet,
				Venue:      "sportsbook",
				Instrument: p.Event,
				Pick:       p.Pick,
			},
			Reasoning: reasoning,
			Evidence: []domain.DataPoint{
				{Source: a.Name(), Metric: "decimal_odds", Value: p.Odds, Relevance: 90, ObservedAt: now},
				{Source: a.Name(), Metric: "model_confidence", Value: p.Confidence, Relevance: 85, ObservedAt: now},
			},
			CreatedAt: now,
			ExpiresAt: expiryFor(p.StartTime, now),
		})
	}
	return opps, nil
}

// riskFromOdds tiers a pick by how much of a favorite it is. Short odds mean
// a likely but small win; long odds mean a big but unlikely one.
func riskFromOdds(odds float64) domain.RiskTier {
	switch {
	case odds <= 1.5:
		return domain.RiskLow
	case odds <= 2.5:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

func expiryFor(startTime, now time.Time) time.Time {
	if !startTime.IsZero() {
		return startTime
	}
	return now.Add(6 * time.Hour)
}
