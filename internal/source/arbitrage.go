package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantbotio/quantbot/internal/arb"
	"github.com/quantbotio/quantbot/internal/domain"
)

// ArbitrageAdapter feeds model predictions and every venue's quotes through
// the cross-venue matcher.
type ArbitrageAdapter struct {
	matcher *arb.Matcher
	picks   domain.SportsPickSource
	venues  []domain.QuoteSource
	logger  *slog.Logger
}

// NewArbitrageAdapter creates an ArbitrageAdapter.
func NewArbitrageAdapter(matcher *arb.Matcher, picks domain.SportsPickSource, venues []domain.QuoteSource, logger *slog.Logger) *ArbitrageAdapter {
	return &ArbitrageAdapter{
		matcher: matcher,
		picks:   picks,
		venues:  venues,
		logger:  logger.With(slog.String("component", "arbitrage_adapter")),
	}
}

// Name identifies the adapter in failure reports.
func (a *ArbitrageAdapter) Name() string {
	return "cross_venue_arb"
}

// Fetch collects predictions plus the quote sets of every venue and runs the
// matcher across the union. A single venue being down degrades the scan
// rather than failing it; the fetch only fails when the pick source does or
// when no venue answered at all.
func (a *ArbitrageAdapter) Fetch(ctx context.Context) ([]domain.Opportunity, error) {
	picks, err := a.picks.Picks(ctx)
	if err != nil {
		return nil, fmt.Errorf("source: arb picks: %w", err)
	}
	if len(picks) == 0 {
		return nil, nil
	}

	var quotes []domain.Quote
	reachable := 0
	for _, venue := range a.venues {
		vq, err := venue.Quotes(ctx)
		if err != nil {
			a.logger.WarnContext(ctx, "venue unreachable, scanning without it",
				slog.String("venue", venue.Venue()),
				slog.String("error", err.Error()))
			continue
		}
		reachable++
		quotes = append(quotes, vq...)
	}
	if reachable == 0 && len(a.venues) > 0 {
		return nil, fmt.Errorf("source: arb scan: no venue reachable: %w", domain.ErrSourceUnavailable)
	}

	return a.matcher.Match(picks, quotes, time.Now().UTC()), nil
}
