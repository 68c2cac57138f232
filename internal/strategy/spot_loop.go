package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantbotio/quantbot/internal/aggregate"
	"github.com/quantbotio/quantbot/internal/domain"
	"github.com/quantbotio/quantbot/internal/ledger"
	"github.com/quantbotio/quantbot/internal/lifecycle"
	"github.com/quantbotio/quantbot/internal/rank"
	"github.com/quantbotio/quantbot/internal/report"
	"github.com/quantbotio/quantbot/internal/stake"
)

// SpotConfig holds the spot loop's parameters.
type SpotConfig struct {
	// Bucket names the ledger bucket the loop draws on.
	Bucket string
	// Interval is the cycle period.
	Interval time.Duration
	// AutoExecute gates real order placement. When false the loop still
	// monitors existing positions but only logs new candidates.
	AutoExecute bool
	// QuoteCurrency is the cash currency to reconcile against, e.g. USD.
	QuoteCurrency string
}

// SpotLoop is the trading cycle: monitor open positions, scan for momentum,
// size the best candidates, open positions, and reconcile the ledger against
// the venue.
type SpotLoop struct {
	cfg        SpotConfig
	aggregator *aggregate.Aggregator
	ranker     *rank.Engine
	sizer      *stake.Sizer
	ledger     *ledger.Ledger
	engine     *lifecycle.Engine
	exchange   domain.SpotExchange
	reports    *report.Builder
	logger     *slog.Logger
}

// NewSpotLoop creates a SpotLoop.
func NewSpotLoop(cfg SpotConfig, aggregator *aggregate.Aggregator, ranker *rank.Engine,
	sizer *stake.Sizer, led *ledger.Ledger, engine *lifecycle.Engine,
	exchange domain.SpotExchange, reports *report.Builder, logger *slog.Logger) *SpotLoop {
	if cfg.QuoteCurrency == "" {
		cfg.QuoteCurrency = "USD"
	}
	return &SpotLoop{
		cfg:        cfg,
		aggregator: aggregator,
		ranker:     ranker,
		sizer:      sizer,
		ledger:     led,
		engine:     engine,
		exchange:   exchange,
		reports:    reports,
		logger:     logger.With(slog.String("component", "spot_loop")),
	}
}

// Run blocks until ctx is cancelled.
func (l *SpotLoop) Run(ctx context.Context) error {
	return RunLoop(ctx, "spot", l.cfg.Interval, l.logger, l.Cycle)
}

// Cycle executes one pass. Monitoring runs before anything else so exits are
// never delayed by a slow scan, and the ledger is reconciled before new
// capital is deployed.
func (l *SpotLoop) Cycle(ctx context.Context) error {
	closed := l.engine.MonitorOnce(ctx)
	for _, p := range closed {
		l.reports.RecordSettled(p.RealizedPnL)
	}

	if err := l.reconcile(ctx); err != nil {
		l.logger.WarnContext(ctx, "reconcile failed, continuing with internal state",
			slog.String("error", err.Error()))
	}

	opps, _ := l.aggregator.Collect(ctx)
	result := l.ranker.Rank(ctx, opps, nil)
	l.reports.RecordFound(len(result.Ranked))
	if result.Top != nil {
		l.reports.RecordTop(*result.Top)
	}

	now := time.Now().UTC()
	for _, r := range result.Ranked {
		if r.Opportunity.Expired(now) {
			continue
		}
		if !l.cfg.AutoExecute || !r.Opportunity.Action.AutoExecute {
			l.logger.InfoContext(ctx, "candidate found, auto execution disabled",
				slog.String("opportunity_id", r.Opportunity.ID),
				slog.String("title", r.Opportunity.Title),
				slog.Float64("score", r.Score))
			continue
		}
		if err := l.take(ctx, r.Opportunity); err != nil {
			if errors.Is(err, domain.ErrInsufficientCapital) {
				l.logger.InfoContext(ctx, "out of headroom, stopping cycle",
					slog.String("bucket", l.cfg.Bucket))
				break
			}
			l.logger.WarnContext(ctx, "skipping candidate",
				slog.String("opportunity_id", r.Opportunity.ID),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// take sizes, reserves, and opens one opportunity.
func (l *SpotLoop) take(ctx context.Context, opp domain.Opportunity) error {
	headroom := l.ledger.Headroom(l.cfg.Bucket)
	notional, err := l.sizer.Size(opp, headroom)
	if err != nil {
		return err
	}
	if err := l.ledger.Reserve(ctx, l.cfg.Bucket, notional); err != nil {
		return err
	}

	// Open releases the reservation itself when execution fails.
	if _, err := l.engine.Open(ctx, opp, notional); err != nil {
		return fmt.Errorf("strategy: open position: %w", err)
	}
	l.reports.RecordTaken()
	return nil
}

// reconcile aligns the ledger bucket with the venue. Total account value is
// the quote-currency cash balance plus open inventory marked at the latest
// ticker; the ledger subtracts the inventory back out itself.
func (l *SpotLoop) reconcile(ctx context.Context) error {
	balances, err := l.exchange.Balances(ctx)
	if err != nil {
		return fmt.Errorf("strategy: fetch balances: %w", err)
	}

	var cash float64
	found := false
	for _, b := range balances {
		if b.Currency == l.cfg.QuoteCurrency {
			cash = b.Available + b.Hold
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("strategy: no %s balance reported: %w",
			l.cfg.QuoteCurrency, domain.ErrNotFound)
	}

	openValue := l.engine.OpenValue(ctx)
	return l.ledger.Reconcile(ctx, l.cfg.Bucket, cash+openValue, openValue)
}
