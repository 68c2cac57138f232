package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantbotio/quantbot/internal/aggregate"
	"github.com/quantbotio/quantbot/internal/domain"
	"github.com/quantbotio/quantbot/internal/rank"
	"github.com/quantbotio/quantbot/internal/report"
)

// Notifier is the slice of the notification system the scan loop needs.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// ScanConfig holds the scan loop's parameters.
type ScanConfig struct {
	// Interval is the cycle period.
	Interval time.Duration
	// NotifyMinScore is the score a top candidate needs before it is pushed
	// as a notification. Zero notifies every non-empty cycle.
	NotifyMinScore float64
}

// ScanLoop is the discovery cycle: aggregate every prediction-market source,
// rank the slate with news context and the advisory oracle, persist the
// results, and surface the best candidate. It never places orders.
type ScanLoop struct {
	cfg        ScanConfig
	aggregator *aggregate.Aggregator
	news       domain.NewsSource
	ranker     *rank.Engine
	store      domain.OpportunityStore
	notifier   Notifier
	reports    *report.Builder
	logger     *slog.Logger
}

// NewScanLoop creates a ScanLoop. news, store, and notifier may be nil.
func NewScanLoop(cfg ScanConfig, aggregator *aggregate.Aggregator, news domain.NewsSource,
	ranker *rank.Engine, store domain.OpportunityStore, notifier Notifier,
	reports *report.Builder, logger *slog.Logger) *ScanLoop {
	return &ScanLoop{
		cfg:        cfg,
		aggregator: aggregator,
		news:       news,
		ranker:     ranker,
		store:      store,
		notifier:   notifier,
		reports:    reports,
		logger:     logger.With(slog.String("component", "scan_loop")),
	}
}

// Run blocks until ctx is cancelled.
func (l *ScanLoop) Run(ctx context.Context) error {
	return RunLoop(ctx, "scan", l.cfg.Interval, l.logger, l.Cycle)
}

// Cycle executes one discovery pass.
func (l *ScanLoop) Cycle(ctx context.Context) error {
	opps, agg := l.aggregator.Collect(ctx)
	if len(opps) == 0 {
		l.logger.InfoContext(ctx, "scan found nothing",
			slog.Int("filtered", agg.Filtered),
			slog.Int("failures", len(agg.Failures)))
		return nil
	}

	result := l.ranker.Rank(ctx, opps, l.headlines(ctx))
	l.reports.RecordFound(len(result.Ranked))
	if result.Top != nil {
		l.reports.RecordTop(*result.Top)
	}

	l.persist(ctx, result.Ranked)

	top := result.Top
	l.logger.InfoContext(ctx, "scan cycle ranked",
		slog.Int("count", len(result.Ranked)),
		slog.String("top_title", top.Opportunity.Title),
		slog.Float64("top_score", top.Score))

	if l.notifier != nil && top.Score >= l.cfg.NotifyMinScore {
		msg := fmt.Sprintf("%s\nscore %.1f, confidence %.0f%%, EV %.1f%%, risk %s",
			top.Opportunity.Title, top.Score, top.Opportunity.Confidence,
			top.Opportunity.ExpectedValue, top.Opportunity.Risk)
		if err := l.notifier.Notify(ctx, "opportunity_found", "Top opportunity", msg); err != nil {
			l.logger.WarnContext(ctx, "notify top opportunity", slog.String("error", err.Error()))
		}
	}
	return nil
}

// headlines fetches news context for ranking. No news is not an error; the
// ranker simply skips the alignment bonus.
func (l *ScanLoop) headlines(ctx context.Context) []domain.NewsItem {
	if l.news == nil {
		return nil
	}
	items, err := l.news.Headlines(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "news source unavailable, ranking without it",
			slog.String("error", err.Error()))
		return nil
	}
	return items
}

// persist records every ranked opportunity for later review. A failed insert
// skips that opportunity only; the rest of the slate still lands.
func (l *ScanLoop) persist(ctx context.Context, ranked []domain.RankedOpportunity) {
	if l.store == nil {
		return
	}
	for _, r := range ranked {
		if err := l.store.Insert(ctx, &r.Opportunity, r.Score, false); err != nil {
			l.logger.WarnContext(ctx, "persist opportunity",
				slog.String("opportunity_id", r.Opportunity.ID),
				slog.String("error", err.Error()))
		}
	}
	l.logDailyTotals(ctx)
}

// logDailyTotals reports how many opportunities have been recorded since UTC
// midnight, and how many of those were taken.
func (l *ScanLoop) logDailyTotals(ctx context.Context) {
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	found, taken, err := l.store.CountSince(ctx, midnight)
	if err != nil {
		l.logger.WarnContext(ctx, "count daily opportunities", slog.String("error", err.Error()))
		return
	}
	l.logger.InfoContext(ctx, "opportunities today",
		slog.Int("found", found),
		slog.Int("taken", taken))
}
