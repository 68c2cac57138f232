package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quantbotio/quantbot/internal/domain"
)

// OrderbookConfig holds the order-book scanner's thresholds.
type OrderbookConfig struct {
	// MinVolume skips thin markets whose books are noise.
	MinVolume float64
	// MinDislocation is the minimum gap between a market's mid price and
	// its ask before the ask counts as mispriced, e.g. 0.04.
	MinDislocation float64
	// MaxMarkets bounds how many books are fetched per cycle.
	MaxMarkets int
}

// OrderbookAdapter scans prediction-venue order books for asks sitting well
// below the market's own mid price.
type OrderbookAdapter struct {
	cfg    OrderbookConfig
	venues []domain.QuoteSource
	logger *slog.Logger
}

// NewOrderbookAdapter creates an OrderbookAdapter over the given venues.
func NewOrderbookAdapter(cfg OrderbookConfig, venues []domain.QuoteSource, logger *slog.Logger) *OrderbookAdapter {
	if cfg.MinDislocation <= 0 {
		cfg.MinDislocation = 0.04
	}
	if cfg.MaxMarkets <= 0 {
		cfg.MaxMarkets = 25
	}
	return &OrderbookAdapter{
		cfg:    cfg,
		venues: venues,
		logger: logger.With(slog.String("component", "orderbook_adapter")),
	}
}

// Name identifies the adapter in failure reports.
func (a *OrderbookAdapter) Name() string {
	return "orderbook_scan"
}

// Fetch walks each venue's liquid markets and emits an opportunity wherever
// the yes ask trades below the book's mid by at least the configured
// dislocation. A venue that fails entirely fails the fetch; an individual
// book failure only skips that market.
func (a *OrderbookAdapter) Fetch(ctx context.Context) ([]domain.Opportunity, error) {
	now := time.Now().UTC()
	var opps []domain.Opportunity

	for _, venue := range a.venues {
		quotes, err := venue.Quotes(ctx)
		if err != nil {
			return nil, fmt.Errorf("source: orderbook scan %s: %w", venue.Venue(), err)
		}

		checked := 0
		for _, q := range quotes {
			if q.Volume < a.cfg.MinVolume {
				continue
			}
			if checked >= a.cfg.MaxMarkets {
				break
			}
			checked++

			book, err := venue.Book(ctx, q.Instrument)
			if err != nil {
				a.logger.WarnContext(ctx, "book fetch failed, skipping market",
					slog.String("venue", venue.Venue()),
					slog.String("instrument", q.Instrument),
					slog.String("error", err.Error()))
				continue
			}

			if opp, ok := a.dislocation(venue.Venue(), q, book, now); ok {
				opps = append(opps, opp)
			}
		}
	}
	return opps, nil
}

// dislocation checks one book for an underpriced yes ask.
func (a *OrderbookAdapter) dislocation(venue string, q domain.Quote, book domain.OrderBook, now time.Time) (domain.Opportunity, bool) {
	if book.YesBid <= 0 || book.YesAsk <= 0 || book.YesAsk >= 1 {
		return domain.Opportunity{}, false
	}

	mid := (book.YesBid + book.YesAsk) / 2
	gap := mid - book.YesAsk
	if gap < a.cfg.MinDislocation {
		return domain.Opportunity{}, false
	}

	// The book's own mid is the model probability here: someone is selling
	// below what the market as a whole thinks the outcome is worth.
	confidence := mid * 100
	ev := gap / book.YesAsk * 100

	return domain.Opportunity{
		ID:            uuid.NewString(),
		Type:          domain.OpportunityMarketOrder,
		Source:        a.Name(),
		Title:         fmt.Sprintf("%s (yes @ %.2f on %s)", q.Title, book.YesAsk, venue),
		Confidence:    confidence,
		ExpectedValue: ev,
		ImpliedProb:   book.YesAsk,
		Risk:          domain.RiskMedium,
		Action: domain.ActionPlan{
			Type:       domain.ActionBet,
			Venue:      venue,
			Instrument: q.Instrument,
			Pick:       "yes",
		},
		Reasoning: []string{
			fmt.Sprintf("ask %.2f sits %.0f points under the book mid %.2f", book.YesAsk, gap*100, mid),
		},
		Evidence: []domain.DataPoint{
			{Source: venue, Metric: "yes_ask", Value: book.YesAsk, Relevance: 90, ObservedAt: now},
			{Source: venue, Metric: "yes_bid", Value: book.YesBid, Relevance: 80, ObservedAt: now},
			{Source: venue, Metric: "volume", Value: q.Volume, Relevance: 50, ObservedAt: now},
		},
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}, true
}
