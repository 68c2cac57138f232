package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantbotio/quantbot/internal/aggregate"
	"github.com/quantbotio/quantbot/internal/arb"
	"github.com/quantbotio/quantbot/internal/domain"
	"github.com/quantbotio/quantbot/internal/feed"
	"github.com/quantbotio/quantbot/internal/ledger"
	"github.com/quantbotio/quantbot/internal/lifecycle"
	"github.com/quantbotio/quantbot/internal/notify"
	"github.com/quantbotio/quantbot/internal/oracle"
	"github.com/quantbotio/quantbot/internal/platform/feedapi"
	"github.com/quantbotio/quantbot/internal/rank"
	"github.com/quantbotio/quantbot/internal/report"
	"github.com/quantbotio/quantbot/internal/source"
	"github.com/quantbotio/quantbot/internal/stake"
	"github.com/quantbotio/quantbot/internal/strategy"
	"github.com/quantbotio/quantbot/internal/venue"
)

// ScanMode runs discovery only: aggregate the prediction-market sources,
// rank, persist, and notify. No orders are placed.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	g, ctx := errgroup.WithContext(ctx)

	reports := report.NewBuilder(deps.History)
	if err := a.startScanLoop(ctx, g, deps, reports); err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}
	a.startReportLoop(ctx, g, deps, reports, nil)

	return g.Wait()
}

// TradeMode runs the spot momentum strategy: ticker feed, monitoring,
// sizing, and execution against the configured bucket.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.Bool("auto_execute", a.cfg.Strategy.AutoExecute))

	g, ctx := errgroup.WithContext(ctx)

	reports := report.NewBuilder(deps.History)
	led := a.newLedger(deps)
	if err := a.startSpotLoop(ctx, g, deps, reports, led); err != nil {
		return fmt.Errorf("trade mode: %w", err)
	}
	a.startReportLoop(ctx, g, deps, reports, led)

	return g.Wait()
}

// FullMode runs scanning and trading together over one shared report window
// and ledger.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode",
		slog.Bool("auto_execute", a.cfg.Strategy.AutoExecute))

	g, ctx := errgroup.WithContext(ctx)

	reports := report.NewBuilder(deps.History)
	led := a.newLedger(deps)
	if err := a.startSpotLoop(ctx, g, deps, reports, led); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	if err := a.startScanLoop(ctx, g, deps, reports); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	a.startReportLoop(ctx, g, deps, reports, led)

	return g.Wait()
}

// startScanLoop builds the prediction-market adapters and adds the scan loop
// to the errgroup.
func (a *App) startScanLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies, reports *report.Builder) error {
	var picks domain.SportsPickSource
	if a.cfg.Feeds.PicksURL != "" {
		picks = feedapi.NewPickClient(a.cfg.Feeds.PicksURL, a.cfg.Feeds.PicksApiKey)
	}

	venues := make([]domain.QuoteSource, 0, len(a.cfg.Feeds.Venues))
	for _, v := range a.cfg.Feeds.Venues {
		venues = append(venues, feedapi.NewQuoteClient(v.Name, v.BaseURL, v.ApiKey))
	}

	var adapters []aggregate.Adapter
	if picks != nil {
		adapters = append(adapters, source.NewSportsAdapter(picks))
	}
	if len(venues) > 0 {
		adapters = append(adapters, source.NewOrderbookAdapter(source.OrderbookConfig{}, venues, a.logger))
	}
	if a.cfg.Arbitrage.Enabled && picks != nil && len(venues) > 0 {
		matcher := arb.NewMatcher(arb.Config{
			MatchThreshold: a.cfg.Arbitrage.MatchThreshold,
			MinEdge:        a.cfg.Arbitrage.MinEdge,
		}, a.logger)
		adapters = append(adapters, source.NewArbitrageAdapter(matcher, picks, venues, a.logger))
	}
	if len(adapters) == 0 {
		return fmt.Errorf("no scan sources configured; set feeds.picks_url or feeds.venues")
	}

	var news domain.NewsSource
	if a.cfg.Feeds.NewsURL != "" {
		news = feedapi.NewNewsClient(a.cfg.Feeds.NewsURL, a.cfg.Feeds.NewsApiKey)
	}

	aggregator := aggregate.New(a.aggregateConfig(), adapters, a.logger)
	loop := strategy.NewScanLoop(
		strategy.ScanConfig{Interval: a.cfg.Strategy.ScanInterval.Duration},
		aggregator, news, a.newRanker(deps), deps.OpportunityStore, deps.Notifier,
		reports, a.logger,
	)
	g.Go(func() error {
		return loop.Run(ctx)
	})
	return nil
}

// startSpotLoop builds the ticker feed, paper exchange, lifecycle engine, and
// momentum scanner, then adds the spot loop to the errgroup.
func (a *App) startSpotLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies,
	reports *report.Builder, led *ledger.Ledger) error {
	if a.cfg.Feeds.TickerWsURL == "" {
		return fmt.Errorf("feeds.ticker_ws_url is required for trading")
	}

	tickerFeed := feed.NewTickerFeed(
		a.cfg.Feeds.TickerWsURL,
		a.cfg.Strategy.Instruments,
		deps.PriceCache,
		a.logger,
	)
	g.Go(func() error {
		defer tickerFeed.Close()
		return tickerFeed.Run(ctx)
	})

	bucket := a.cfg.Strategy.SpotBucket
	exchange := venue.NewPaperExchange(venue.PaperConfig{
		StartingCash: a.cfg.Ledger.Buckets[bucket].Initial,
		FeeRate:      a.cfg.Lifecycle.FeeRate,
	}, deps.PriceCache, a.logger)

	engine := lifecycle.NewEngine(lifecycle.Config{
		Bucket:           bucket,
		TakeProfitPct:    a.cfg.Lifecycle.TakeProfitPct,
		StopLossPct:      a.cfg.Lifecycle.StopLossPct,
		FeeRate:          a.cfg.Lifecycle.FeeRate,
		MaxOpenPositions: a.cfg.Lifecycle.MaxOpenPositions,
		TickerTimeout:    a.cfg.Lifecycle.TickerTimeout.Duration,
	}, exchange, deps.PositionStore, led, deps.History, deps.LearningStore,
		deps.AuditStore, deps.Notifier, a.logger)

	if err := engine.Restore(ctx); err != nil {
		return err
	}

	momentum := source.NewMomentumAdapter(source.MomentumConfig{
		Instruments: a.cfg.Strategy.Instruments,
	}, deps.PriceCache, a.logger)
	aggregator := aggregate.New(a.aggregateConfig(), []aggregate.Adapter{momentum}, a.logger)

	sizer := stake.NewSizer(stake.Config{
		KellyFraction: a.cfg.Stake.KellyFraction,
		MinStake:      a.cfg.Stake.MinStake,
		MaxStake:      a.cfg.Stake.MaxStake,
	})

	loop := strategy.NewSpotLoop(strategy.SpotConfig{
		Bucket:      bucket,
		Interval:    a.cfg.Strategy.SpotInterval.Duration,
		AutoExecute: a.cfg.Strategy.AutoExecute,
	}, aggregator, a.newRanker(deps), sizer, led, engine, exchange, reports, a.logger)

	g.Go(func() error {
		return loop.Run(ctx)
	})
	return nil
}

// startReportLoop adds the daily report goroutine: build, deliver, archive,
// then reset the window counters. led may be nil for read-only modes.
func (a *App) startReportLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies,
	reports *report.Builder, led *ledger.Ledger) {
	interval := a.cfg.Report.Interval.Duration
	archiveAfter := a.cfg.Report.ArchiveAfter.Duration

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}

			now := time.Now().UTC()
			r := reports.Build(now)

			if err := deps.Notifier.Notify(ctx, notify.EventDailyReport, "Daily report", report.Brief(r)); err != nil {
				a.logger.WarnContext(ctx, "deliver daily report", slog.String("error", err.Error()))
			}

			if deps.Archiver != nil {
				if err := deps.Archiver.UploadReport(ctx, r); err != nil {
					a.logger.WarnContext(ctx, "upload daily report", slog.String("error", err.Error()))
				}
				cutoff := now.Add(-archiveAfter)
				if _, err := deps.Archiver.ArchivePositions(ctx, cutoff); err != nil {
					a.logger.WarnContext(ctx, "archive positions", slog.String("error", err.Error()))
				}
				if _, err := deps.Archiver.ArchiveLearnings(ctx, cutoff); err != nil {
					a.logger.WarnContext(ctx, "archive learnings", slog.String("error", err.Error()))
				}
			}

			reports.Reset()
			if led != nil {
				led.ResetDaily()
			}
			a.logger.InfoContext(ctx, "report window rolled",
				slog.Int("found", r.OpportunitiesFound),
				slog.Int("taken", r.OpportunitiesTaken),
				slog.Float64("profit", r.TotalProfit))
		}
	})
}

// newRanker builds a ranking engine, attaching the advisory oracle when it is
// enabled and credentialed.
func (a *App) newRanker(deps *Dependencies) *rank.Engine {
	var advisor domain.AdvisoryOracle
	if a.cfg.Rank.OracleEnabled && a.cfg.Oracle.ApiKey != "" {
		advisor = oracle.New(oracle.Config{
			BaseURL: a.cfg.Oracle.BaseURL,
			ApiKey:  a.cfg.Oracle.ApiKey,
			Model:   a.cfg.Oracle.Model,
			Timeout: a.cfg.Oracle.Timeout.Duration,
		})
	}
	return rank.NewEngine(rank.Config{
		OracleEnabled: a.cfg.Rank.OracleEnabled,
		OracleTopN:    a.cfg.Rank.OracleTopN,
	}, deps.History, advisor, a.logger)
}

func (a *App) newLedger(deps *Dependencies) *ledger.Ledger {
	buckets := make(map[string]ledger.Bucket, len(a.cfg.Ledger.Buckets))
	for name, b := range a.cfg.Ledger.Buckets {
		buckets[name] = ledger.Bucket{Initial: b.Initial, DailyLimit: b.DailyLimit}
	}
	return ledger.New(ledger.Config{
		Buckets:         buckets,
		DesyncTolerance: a.cfg.Ledger.DesyncTolerance,
		LockTTL:         a.cfg.Ledger.LockTTL.Duration,
	}, deps.LockManager, deps.AuditStore, a.logger)
}

func (a *App) aggregateConfig() aggregate.Config {
	return aggregate.Config{
		AdapterTimeout:   a.cfg.Aggregate.AdapterTimeout.Duration,
		MinConfidence:    a.cfg.Aggregate.MinConfidence,
		MinExpectedValue: a.cfg.Aggregate.MinExpectedValue,
	}
}
