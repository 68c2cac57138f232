// Package strategy runs the periodic decision loops: the scan loop that
// surfaces and records ranked opportunities, and the spot loop that turns the
// best ones into monitored positions.
package strategy

import (
	"context"
	"log/slog"
	"time"
)

// RunLoop runs fn immediately and then on every tick until ctx is cancelled.
// A cycle's error is logged, never fatal; the loop only stops with the
// context.
func RunLoop(ctx context.Context, name string, interval time.Duration, logger *slog.Logger, fn func(context.Context) error) error {
	run := func() {
		start := time.Now()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			logger.ErrorContext(ctx, "cycle failed",
				slog.String("loop", name),
				slog.String("error", err.Error()))
		}
		logger.DebugContext(ctx, "cycle complete",
			slog.String("loop", name),
			slog.Duration("elapsed", time.Since(start)))
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}
