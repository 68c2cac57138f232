// Package aggregate fans out to every registered source adapter, applies
// quality floors, and merges the survivors into one opportunity slate.
package aggregate

import (
	"context"
	"log/slog"
	"time"

	"github.com/quantbotio/quantbot/internal/domain"
)

// Adapter is one opportunity source. Fetch must respect ctx cancellation;
// the aggregator bounds every call with its configured timeout.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.Opportunity, error)
}

// Failure records one adapter that contributed nothing this cycle.
type Failure struct {
	Source string `json:"source"`
	Err    error  `json:"-"`
	Reason string `json:"reason"`
}

// Report summarizes one aggregation cycle.
type Report struct {
	// Collected counts opportunities that passed the floors.
	Collected int `json:"collected"`
	// Filtered counts opportunities dropped by the floors.
	Filtered int `json:"filtered"`
	// Failures lists adapters that errored or timed out. A failed adapter
	// never aborts the cycle; the remaining sources still contribute.
	Failures []Failure `json:"failures,omitempty"`
}

// Config holds aggregation parameters.
type Config struct {
	// AdapterTimeout bounds each adapter's Fetch call.
	AdapterTimeout time.Duration
	// MinConfidence and MinExpectedValue are the quality floors; anything
	// below either is dropped before ranking sees it.
	MinConfidence    float64
	MinExpectedValue float64
}

// Aggregator runs the fan-out. Adapters are fixed at construction.
type Aggregator struct {
	cfg      Config
	adapters []Adapter
	logger   *slog.Logger
}

// New creates an Aggregator over the given adapters.
func New(cfg Config, adapters []Adapter, logger *slog.Logger) *Aggregator {
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = 10 * time.Second
	}
	return &Aggregator{
		cfg:      cfg,
		adapters: adapters,
		logger:   logger.With(slog.String("component", "aggregator")),
	}
}

type fetchResult struct {
	source string
	opps   []domain.Opportunity
	err    error
}

// Collect queries every adapter concurrently, each under its own timeout,
// and returns the merged opportunities that cleared the floors plus a report
// of what happened. Partial success is the normal case: adapter failures are
// reported, never propagated as an error.
func (a *Aggregator) Collect(ctx context.Context) ([]domain.Opportunity, Report) {
	results := make(chan fetchResult, len(a.adapters))

	for _, adapter := range a.adapters {
		go func(ad Adapter) {
			fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.AdapterTimeout)
			defer cancel()

			opps, err := ad.Fetch(fetchCtx)
			results <- fetchResult{source: ad.Name(), opps: opps, err: err}
		}(adapter)
	}

	var merged []domain.Opportunity
	var report Report

	for range a.adapters {
		res := <-results
		if res.err != nil {
			a.logger.WarnContext(ctx, "source adapter failed",
				slog.String("source", res.source),
				slog.String("error", res.err.Error()))
			report.Failures = append(report.Failures, Failure{
				Source: res.source,
				Err:    res.err,
				Reason: res.err.Error(),
			})
			continue
		}
		for _, o := range res.opps {
			if o.Confidence < a.cfg.MinConfidence || o.ExpectedValue < a.cfg.MinExpectedValue {
				report.Filtered++
				continue
			}
			merged = append(merged, o)
		}
	}

	report.Collected = len(merged)
	a.logger.InfoContext(ctx, "aggregation cycle complete",
		slog.Int("collected", report.Collected),
		slog.Int("filtered", report.Filtered),
		slog.Int("failures", len(report.Failures)))

	return merged, report
}
