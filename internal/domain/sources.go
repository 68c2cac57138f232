package domain

import (
	"context"
	"time"
)

// SportsPickSource fetches raw picks from an upstream picks API.
type SportsPickSource interface {
	Picks(ctx context.Context) ([]SportsPick, error)
}

// NewsSource fetches recent headlines for the ranking engine's news bonus.
type NewsSource interface {
	Headlines(ctx context.Context) ([]NewsItem, error)
}

// Quote is one tradable outcome on a prediction venue. Price is the implied
// probability in (0,1).
type Quote struct {
	Venue      string    `json:"venue"`
	Instrument string    `json:"instrument"`
	Title      string    `json:"title"`
	Outcome    string    `json:"outcome"`
	Price      float64   `json:"price"`
	Volume     float64   `json:"volume"`
	EndDate    time.Time `json:"end_date"`
}

// OrderBook is the top of book for one binary market.
type OrderBook struct {
	YesBid float64 `json:"yes_bid"`
	YesAsk float64 `json:"yes_ask"`
	NoBid  float64 `json:"no_bid"`
	NoAsk  float64 `json:"no_ask"`
}

// QuoteSource exposes a venue's current quotes for order-book and arbitrage
// scanning.
type QuoteSource interface {
	Venue() string
	Quotes(ctx context.Context) ([]Quote, error)
	Book(ctx context.Context, instrument string) (OrderBook, error)
}

// FillResult reports how a venue order executed.
type FillResult struct {
	OrderID    string  `json:"order_id"`
	FilledSize float64 `json:"filled_size"`
	AvgPrice   float64 `json:"avg_price"`
	Fee        float64 `json:"fee"`
}

// Balance is an account balance on a venue, in the venue's settlement
// currency.
type Balance struct {
	Currency  string  `json:"currency"`
	Available float64 `json:"available"`
	Hold      float64 `json:"hold"`
}

// SpotExchange is the minimal venue surface the position lifecycle needs:
// market orders by quote-currency notional, a ticker, and balances.
type SpotExchange interface {
	MarketBuy(ctx context.Context, instrument string, notional float64) (FillResult, error)
	MarketSell(ctx context.Context, instrument string, size float64) (FillResult, error)
	Ticker(ctx context.Context, instrument string) (float64, error)
	Balances(ctx context.Context) ([]Balance, error)
}

// AdvisoryOracle reorders a small candidate slate. Implementations return
// ErrOracleUnavailable on any failure; callers must treat that as a cue to
// keep their deterministic ordering.
type AdvisoryOracle interface {
	Advise(ctx context.Context, candidates []RankedOpportunity) ([]RankedOpportunity, error)
}
