package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quantbotio/quantbot/internal/domain"
)

// MomentumConfig holds the spot momentum scanner's thresholds.
type MomentumConfig struct {
	// Instruments is the watchlist, e.g. BTC-USD.
	Instruments []string
	// Window is how far back price moves are measured.
	Window time.Duration
	// MinChange is the fractional move that counts as a signal, e.g. 0.015.
	MinChange float64
	// MaxVolatility rejects signals in choppy windows. Relative stddev.
	MaxVolatility float64
	// MinSamples is the number of observations required before a window is
	// trusted.
	MinSamples int
	// Hold is how long produced opportunities stay valid.
	Hold time.Duration
}

// MomentumAdapter watches cached spot prices and emits a trade when an
// instrument moves decisively in one direction within the window.
type MomentumAdapter struct {
	cfg    MomentumConfig
	cache  domain.PriceCache
	window *priceWindow
	logger *slog.Logger
}

// NewMomentumAdapter creates a MomentumAdapter over the price cache.
func NewMomentumAdapter(cfg MomentumConfig, cache domain.PriceCache, logger *slog.Logger) *MomentumAdapter {
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Minute
	}
	if cfg.MinChange <= 0 {
		cfg.MinChange = 0.015
	}
	if cfg.MaxVolatility <= 0 {
		cfg.MaxVolatility = 0.05
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 5
	}
	if cfg.Hold <= 0 {
		cfg.Hold = 5 * time.Minute
	}
	return &MomentumAdapter{
		cfg:    cfg,
		cache:  cache,
		window: newPriceWindow(cfg.Window),
		logger: logger.With(slog.String("component", "momentum_adapter")),
	}
}

// Name identifies the adapter in failure reports.
func (a *MomentumAdapter) Name() string {
	return "spot_momentum"
}

// Fetch samples the latest cached prices for the whole watchlist into the
// sliding window, then emits a buy opportunity for each instrument whose
// window shows a clean upward move. Instruments with no cached price yet are
// skipped silently; the adapter warms up over successive cycles.
func (a *MomentumAdapter) Fetch(ctx context.Context) ([]domain.Opportunity, error) {
	now := time.Now().UTC()

	ticks, err := a.cache.GetPrices(ctx, a.cfg.Instruments)
	if err != nil {
		return nil, fmt.Errorf("source: momentum price snapshot: %w", err)
	}

	var opps []domain.Opportunity
	for _, instrument := range a.cfg.Instruments {
		tick, ok := ticks[instrument]
		if !ok {
			continue
		}
		a.window.observe(instrument, tick.Price, now)

		if a.window.count(instrument) < a.cfg.MinSamples {
			continue
		}

		change := a.window.change(instrument)
		if change < a.cfg.MinChange {
			continue
		}
		vol := a.window.volatility(instrument)
		if vol > a.cfg.MaxVolatility {
			a.logger.DebugContext(ctx, "momentum signal rejected on volatility",
				slog.String("instrument", instrument),
				slog.Float64("change", change),
				slog.Float64("volatility", vol))
			continue
		}

		opps = append(opps, a.signal(instrument, tick.Price, change, vol, now))
	}
	return opps, nil
}

// signal builds a spot-trade opportunity from a confirmed upward move.
func (a *MomentumAdapter) signal(instrument string, price, change, vol float64, now time.Time) domain.Opportunity {
	// Confidence scales with how far the move exceeds the threshold and is
	// capped well short of certainty.
	confidence := 50 + (change-a.cfg.MinChange)*1000
	if confidence > 80 {
		confidence = 80
	}

	return domain.Opportunity{
		ID:            uuid.NewString(),
		Type:          domain.OpportunitySpotTrade,
		Source:        a.Name(),
		Title:         fmt.Sprintf("%s momentum +%.1f%% over %s", instrument, change*100, a.cfg.Window),
		Confidence:    confidence,
		ExpectedValue: change * 100,
		// Spot trades carry no market-implied probability. The even-odds
		// baseline keeps the Kelly edge proportional to confidence.
		ImpliedProb: 0.5,
		Risk:        domain.RiskHigh,
		Action: domain.ActionPlan{
			Type:        domain.ActionBuy,
			Venue:       "spot",
			Instrument:  instrument,
			AutoExecute: true,
		},
		Reasoning: []string{
			fmt.Sprintf("price moved +%.2f%% in %s with relative volatility %.3f",
				change*100, a.cfg.Window, vol),
		},
		Evidence: []domain.DataPoint{
			{Source: a.Name(), Metric: "last_price", Value: price, Relevance: 90, ObservedAt: now},
			{Source: a.Name(), Metric: "window_change", Value: change, Relevance: 95, ObservedAt: now},
			{Source: a.Name(), Metric: "window_volatility", Value: vol, Relevance: 70, ObservedAt: now},
		},
		CreatedAt: now,
		ExpiresAt: now.Add(a.cfg.Hold),
	}
}
