// Package arb cross-references model predictions against independent
// prediction-venue quote sets for the same real-world event, surfacing value
// bets and cross-venue arbitrage.
package arb

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quantbotio/quantbot/internal/domain"
)

// Match point values. Two shared team tokens plus a league or pick keyword
// clears the default threshold of 4; incidental word overlap does not.
const (
	teamTokenPoints   = 2
	leagueTokenPoints = 1
	pickTokenPoints   = 1
)

// leagueKeywords are competition identifiers that strengthen a match when
// present on both sides.
var leagueKeywords = map[string]bool{
	"nba": true, "nfl": true, "mlb": true, "nhl": true,
	"ucl": true, "epl": true, "laliga": true, "seriea": true,
	"bundesliga": true, "ufc": true, "atp": true, "wta": true,
}

// pickKeywords are outcome words that strengthen a match when present on
// both sides.
var pickKeywords = map[string]bool{
	"win": true, "wins": true, "beat": true, "beats": true,
	"over": true, "under": true, "champion": true, "advance": true,
}

// stopwords never contribute match points.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "to": true, "vs": true, "v": true,
	"will": true, "at": true, "on": true, "in": true, "of": true,
	"and": true, "or": true, "game": true, "match": true,
}

// Config holds matcher thresholds.
type Config struct {
	// MatchThreshold is the minimum point score for a prediction and a
	// quote to be treated as the same event.
	MatchThreshold int
	// MinEdge is the minimum edge in probability points, e.g. 0.03.
	MinEdge float64
	// Hold is how long produced opportunities stay valid.
	Hold time.Duration
}

// Matcher pairs predictions with venue quotes and emits opportunities.
type Matcher struct {
	cfg    Config
	logger *slog.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(cfg Config, logger *slog.Logger) *Matcher {
	if cfg.Hold <= 0 {
		cfg.Hold = 15 * time.Minute
	}
	return &Matcher{cfg: cfg, logger: logger.With(slog.String("component", "arb_matcher"))}
}

// Match fuzzy-matches every prediction against the combined quote sets. For
// each accepted match it computes the model edge on both sides of the market
// and emits a value-bet opportunity when the better side clears MinEdge.
// When the cheapest yes and cheapest no come from different venues and their
// combined price locks in at least MinEdge, it emits an arbitrage
// opportunity instead; a same-venue yes/no pair is never arbitrage no matter
// how favorable the combined price.
func (m *Matcher) Match(picks []domain.SportsPick, quotes []domain.Quote, now time.Time) []domain.Opportunity {
	var out []domain.Opportunity

	for _, pick := range picks {
		yes, no, yesScore, noScore := m.bestSides(pick, quotes)
		if yes == nil && no == nil {
			continue
		}

		if yes != nil && no != nil && yes.Venue != no.Venue {
			if edge := 1 - (yes.Price + no.Price); edge >= m.cfg.MinEdge {
				// Both legs must describe the same event; the weaker
				// leg's score bounds the pair's match quality.
				out = append(out, m.arbitrage(pick, *yes, *no, edge, min(yesScore, noScore), now))
				continue
			}
		}

		opp, ok := m.valueBet(pick, yes, no, yesScore, noScore, now)
		if ok {
			out = append(out, opp)
		}
	}
	return out
}

// bestSides finds the cheapest matched yes and no quotes for a prediction.
// Each returned score is the match score of the quote actually selected for
// that side, not the best score among all candidates.
func (m *Matcher) bestSides(pick domain.SportsPick, quotes []domain.Quote) (yes, no *domain.Quote, yesScore, noScore int) {
	target := pick.Event + " " + pick.Pick

	for i := range quotes {
		q := quotes[i]
		s := MatchScore(target, q.Title+" "+q.Outcome)
		if s < m.cfg.MatchThreshold {
			continue
		}
		switch strings.ToLower(q.Outcome) {
		case "yes":
			if yes == nil || q.Price < yes.Price {
				yes, yesScore = &quotes[i], s
			}
		case "no":
			if no == nil || q.Price < no.Price {
				no, noScore = &quotes[i], s
			}
		}
	}
	return yes, no, yesScore, noScore
}

// valueBet computes the model edge on each available side and emits an
// opportunity for the larger one when it clears MinEdge. The evidence carries
// the match score of the side actually taken.
func (m *Matcher) valueBet(pick domain.SportsPick, yes, no *domain.Quote, yesScore, noScore int, now time.Time) (domain.Opportunity, bool) {
	pModel := pick.Confidence / 100

	var side *domain.Quote
	var sideProb, edge float64
	var score int

	if yes != nil {
		if e := pModel - yes.Price; e > edge {
			side, sideProb, edge, score = yes, pModel, e, yesScore
		}
	}
	if no != nil {
		if e := (1 - pModel) - no.Price; e > edge {
			side, sideProb, edge, score = no, 1-pModel, e, noScore
		}
	}
	if side == nil || edge < m.cfg.MinEdge {
		return domain.Opportunity{}, false
	}

	return domain.Opportunity{
		ID:            uuid.NewString(),
		Type:          domain.OpportunityMarketOrder,
		Source:        "arb_matcher",
		Title:         fmt.Sprintf("%s: %s %s @ %s", pick.League, side.Title, side.Outcome, side.Venue),
		Confidence:    sideProb * 100,
		ExpectedValue: edge / side.Price * 100,
		ImpliedProb:   side.Price,
		Risk:          domain.RiskMedium,
		Action: domain.ActionPlan{
			Type:       domain.ActionBet,
			Venue:      side.Venue,
			Instrument: side.Instrument,
			Pick:       side.Outcome,
		},
		Reasoning: []string{
			fmt.Sprintf("model gives %s a %.0f%% chance, market prices it at %.0f%%",
				side.Outcome, sideProb*100, side.Price*100),
		},
		Evidence: []domain.DataPoint{
			{Source: side.Venue, Metric: "quoted_price", Value: side.Price, Relevance: 90, ObservedAt: now},
			{Source: "arb_matcher", Metric: "match_score", Value: float64(score), Relevance: 70, ObservedAt: now},
		},
		CreatedAt: now,
		ExpiresAt: m.expiry(pick, now),
	}, true
}

func (m *Matcher) arbitrage(pick domain.SportsPick, yes, no domain.Quote, edge float64, score int, now time.Time) domain.Opportunity {
	// Confidence grows with match quality; the price edge is locked in, so
	// the residual risk is that the two titles describe different events.
	confidence := 70 + float64(score)
	if confidence > 95 {
		confidence = 95
	}

	return domain.Opportunity{
		ID:            uuid.NewString(),
		Type:          domain.OpportunityArbitrage,
		Source:        "arb_matcher",
		Title:         fmt.Sprintf("%s (%s yes / %s no)", pick.Event, yes.Venue, no.Venue),
		Confidence:    confidence,
		ExpectedValue: edge * 100,
		// Combined cost of both legs; the payoff is always 1.
		ImpliedProb: yes.Price + no.Price,
		Risk:        domain.RiskLow,
		Action: domain.ActionPlan{
			Type:              domain.ActionBet,
			Venue:             yes.Venue,
			Instrument:        yes.Instrument,
			Pick:              "yes",
			CounterVenue:      no.Venue,
			CounterInstrument: no.Instrument,
		},
		Reasoning: []string{
			fmt.Sprintf("buying yes at %.2f on %s and no at %.2f on %s pays 1.00 either way",
				yes.Price, yes.Venue, no.Price, no.Venue),
		},
		Evidence: []domain.DataPoint{
			{Source: yes.Venue, Metric: "yes_price", Value: yes.Price, Relevance: 95, ObservedAt: now},
			{Source: no.Venue, Metric: "no_price", Value: no.Price, Relevance: 95, ObservedAt: now},
			{Source: "arb_matcher", Metric: "match_score", Value: float64(score), Relevance: 70, ObservedAt: now},
		},
		CreatedAt: now,
		ExpiresAt: m.expiry(pick, now),
	}
}

func (m *Matcher) expiry(pick domain.SportsPick, now time.Time) time.Time {
	exp := now.Add(m.cfg.Hold)
	if !pick.StartTime.IsZero() && pick.StartTime.Before(exp) {
		return pick.StartTime
	}
	return exp
}

// MatchScore computes the fuzzy similarity between two event descriptions:
// shared team tokens score 2 points each, shared league keywords 1, shared
// pick keywords 1.
func MatchScore(a, b string) int {
	tokensA := tokenize(a)
	tokensB := tokenize(b)

	score := 0
	for tok := range tokensA {
		if !tokensB[tok] {
			continue
		}
		switch {
		case leagueKeywords[tok]:
			score += leagueTokenPoints
		case pickKeywords[tok]:
			score += pickTokenPoints
		default:
			score += teamTokenPoints
		}
	}
	return score
}

func tokenize(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, ".,!?:;()[]\"'")
		if f == "" || stopwords[f] {
			continue
		}
		out[f] = true
	}
	return out
}
