// Package domain defines the core types shared across quantbot: opportunities,
// positions, learning records, reports, and the interfaces implemented by the
// storage, cache, and venue layers. It has no dependencies on other internal
// packages.
package domain

import "time"

// OpportunityType classifies what kind of edge an opportunity represents.
type OpportunityType string

const (
	// OpportunityDirectionalBet is a single-outcome wager, e.g. a sports pick.
	OpportunityDirectionalBet OpportunityType = "directional_bet"
	// OpportunityMarketOrder is a value order on a prediction market.
	OpportunityMarketOrder OpportunityType = "market_order"
	OpportunityArbitrage   OpportunityType = "arbitrage"
	OpportunitySpotTrade   OpportunityType = "spot_trade"
	// OpportunityInformational carries no action; it surfaces in reports only.
	OpportunityInformational OpportunityType = "informational"
)

// RiskTier buckets opportunities by downside exposure. It feeds directly into
// ranking and capital allocation.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// ActionType describes what executing an opportunity means.
type ActionType string

const (
	ActionBuy  ActionType = "buy"
	ActionSell ActionType = "sell"
	ActionBet  ActionType = "bet"
	ActionWait ActionType = "wait"
)

// ActionPlan is the execution descriptor attached to an opportunity. It tells
// the lifecycle engine what to do without the engine needing to know which
// source produced the opportunity.
type ActionPlan struct {
	Type       ActionType `json:"type"`
	Venue      string     `json:"venue"`
	Instrument string     `json:"instrument"`
	// Pick is the side or outcome to take, e.g. "yes", "home team".
	Pick string `json:"pick,omitempty"`
	// CounterVenue and CounterInstrument are set only for arbitrage pairs,
	// naming the opposite leg.
	CounterVenue      string `json:"counter_venue,omitempty"`
	CounterInstrument string `json:"counter_instrument,omitempty"`
	// AutoExecute marks the opportunity safe for unattended execution.
	AutoExecute bool `json:"auto_execute"`
}

// DataPoint is a single piece of supporting evidence recorded by the source
// adapter that produced an opportunity.
type DataPoint struct {
	Source string  `json:"source"`
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	// Relevance weights the data point, 0..100.
	Relevance  float64   `json:"relevance"`
	ObservedAt time.Time `json:"observed_at"`
}

// Opportunity is an immutable candidate for capital deployment. Source
// adapters create opportunities; downstream stages (aggregation, ranking,
// sizing, execution) read them but never modify them. Scores live in
// RankedOpportunity, not here.
type Opportunity struct {
	ID     string          `json:"id"`
	Type   OpportunityType `json:"type"`
	Source string          `json:"source"`
	Title  string          `json:"title"`

	// Confidence is the source's model-estimated win probability proxy,
	// 0..100.
	Confidence float64 `json:"confidence"`
	// ExpectedValue is the anticipated percent return if the opportunity
	// plays out, e.g. 6.0 for +6%.
	ExpectedValue float64 `json:"expected_value"`
	// ImpliedProb is the market's implied probability of success in (0,1),
	// derived from the quoted price or odds at the adapter boundary.
	// Decimal odds contribute 1/odds; prediction-market prices are already
	// probabilities.
	ImpliedProb float64 `json:"implied_prob"`
	// RequiredCapital and PotentialReturn are the adapter's dollar
	// estimates; the stake sizer has the final word.
	RequiredCapital float64  `json:"required_capital,omitempty"`
	PotentialReturn float64  `json:"potential_return,omitempty"`
	Risk            RiskTier `json:"risk"`

	Action    ActionPlan  `json:"action"`
	Reasoning []string    `json:"reasoning,omitempty"`
	Evidence  []DataPoint `json:"evidence,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Expired reports whether the opportunity is past its expiry at the given
// instant. Expired opportunities must never be sized or executed.
func (o Opportunity) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}

// RankedOpportunity pairs an opportunity with the score assigned by the
// ranking engine. Ranking never mutates the underlying opportunity.
type RankedOpportunity struct {
	Opportunity Opportunity `json:"opportunity"`
	Score       float64     `json:"score"`
}

// NewsItem is a headline used by the ranking engine's news-alignment bonus.
type NewsItem struct {
	Headline    string    `json:"headline"`
	Source      string    `json:"source"`
	Sentiment   float64   `json:"sentiment"`
	PublishedAt time.Time `json:"published_at"`
}

// SportsPick is a raw pick from an upstream picks API, before the sports
// adapter converts it into an opportunity.
type SportsPick struct {
	League     string  `json:"league"`
	Event      string  `json:"event"`
	Pick       string  `json:"pick"`
	Confidence float64 `json:"confidence"`
	// Odds are decimal odds for the pick, e.g. 1.91.
	Odds      float64   `json:"odds"`
	Reasoning string    `json:"reasoning"`
	StartTime time.Time `json:"start_time"`
}
