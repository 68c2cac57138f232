// Package lifecycle opens, monitors, and closes positions. Exit thresholds
// are fixed when a position opens; monitoring walks every open position each
// tick and closes the ones that crossed a threshold.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantbotio/quantbot/internal/domain"
	"github.com/quantbotio/quantbot/internal/rank"
)

// Notifier is the slice of the notification system the engine needs.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// CapitalLedger is the slice of the ledger the engine needs to settle and
// unwind reservations. Reserving happens before Open, in the strategy loop.
type CapitalLedger interface {
	Release(ctx context.Context, bucket string, amount float64) error
	Settle(ctx context.Context, bucket string, reserved, netPnL float64) error
}

// Config holds lifecycle parameters.
type Config struct {
	// Bucket names the ledger bucket positions draw on.
	Bucket string
	// TakeProfitPct and StopLossPct are fractional offsets from entry.
	TakeProfitPct float64
	StopLossPct   float64
	// FeeRate estimates fees when the venue reports none.
	FeeRate float64
	// MaxOpenPositions caps concurrent exposure.
	MaxOpenPositions int
	// TickerTimeout bounds each price lookup during monitoring.
	TickerTimeout time.Duration
}

// Engine drives positions from open to settled.
type Engine struct {
	cfg      Config
	exchange domain.SpotExchange
	store    domain.PositionStore
	ledger   CapitalLedger
	history  *rank.History
	learning domain.LearningStore
	audit    domain.AuditStore
	notifier Notifier
	logger   *slog.Logger

	mu   sync.Mutex
	open map[string]*domain.Position
}

// NewEngine creates a lifecycle engine. learning, audit, and notifier may be
// nil; history must not be.
func NewEngine(cfg Config, exchange domain.SpotExchange, store domain.PositionStore,
	ledger CapitalLedger, history *rank.History, learning domain.LearningStore,
	audit domain.AuditStore, notifier Notifier, logger *slog.Logger) *Engine {
	if cfg.TickerTimeout <= 0 {
		cfg.TickerTimeout = 5 * time.Second
	}
	if cfg.MaxOpenPositions < 1 {
		cfg.MaxOpenPositions = 1
	}
	return &Engine{
		cfg:      cfg,
		exchange: exchange,
		store:    store,
		ledger:   ledger,
		history:  history,
		learning: learning,
		audit:    audit,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "lifecycle")),
		open:     make(map[string]*domain.Position),
	}
}

// Restore loads open positions from the store into the monitoring set, so a
// restart never orphans live inventory.
func (e *Engine) Restore(ctx context.Context) error {
	positions, err := e.store.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("lifecycle: restore open positions: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range positions {
		e.open[p.ID] = p
	}
	if len(positions) > 0 {
		e.logger.InfoContext(ctx, "restored open positions", slog.Int("count", len(positions)))
	}
	return nil
}

// OpenCount returns the number of positions currently monitored.
func (e *Engine) OpenCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.open)
}

// OpenInstruments returns the instruments with live inventory.
func (e *Engine) OpenInstruments() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.open))
	for _, p := range e.open {
		out = append(out, p.Instrument)
	}
	return out
}

// OpenValue marks every open position at the latest ticker and returns the
// total. A position whose ticker is unavailable is marked at entry.
func (e *Engine) OpenValue(ctx context.Context) float64 {
	e.mu.Lock()
	positions := make([]*domain.Position, 0, len(e.open))
	for _, p := range e.open {
		positions = append(positions, p)
	}
	e.mu.Unlock()

	var total float64
	for _, p := range positions {
		price, err := e.ticker(ctx, p.Instrument)
		if err != nil {
			price = p.EntryPrice
		}
		total += p.CurrentValue(price)
	}
	return total
}

// Open buys the instrument with the given reserved notional and registers
// the resulting position for monitoring. The caller must have reserved
// notional from the ledger; on execution failure the reservation is released
// and no position exists.
func (e *Engine) Open(ctx context.Context, opp domain.Opportunity, notional float64) (*domain.Position, error) {
	now := time.Now().UTC()
	if opp.Expired(now) {
		return nil, fmt.Errorf("lifecycle: open %s: %w", opp.ID, domain.ErrExpired)
	}

	e.mu.Lock()
	if len(e.open) >= e.cfg.MaxOpenPositions {
		e.mu.Unlock()
		return nil, fmt.Errorf("lifecycle: %d positions already open: %w",
			e.cfg.MaxOpenPositions, domain.ErrInsufficientCapital)
	}
	e.mu.Unlock()

	fill, err := e.exchange.MarketBuy(ctx, opp.Action.Instrument, notional)
	if err != nil {
		if relErr := e.ledger.Release(ctx, e.cfg.Bucket, notional); relErr != nil {
			e.logger.ErrorContext(ctx, "release after failed buy",
				slog.String("error", relErr.Error()))
		}
		return nil, fmt.Errorf("lifecycle: market buy %s: %w: %w",
			opp.Action.Instrument, domain.ErrExecutionFailed, err)
	}
	if fill.FilledSize <= 0 {
		_ = e.ledger.Release(ctx, e.cfg.Bucket, notional)
		return nil, fmt.Errorf("lifecycle: market buy %s filled zero size: %w",
			opp.Action.Instrument, domain.ErrExecutionFailed)
	}

	fee := fill.Fee
	if fee == 0 {
		fee = notional * e.cfg.FeeRate
	}
	entryPrice := (notional - fee) / fill.FilledSize

	p := &domain.Position{
		ID:             uuid.NewString(),
		OpportunityID:  opp.ID,
		Bucket:         e.cfg.Bucket,
		Venue:          opp.Action.Venue,
		Instrument:     opp.Action.Instrument,
		Confidence:     opp.Confidence,
		ExpectedReturn: opp.ExpectedValue,
		EntryPrice:     entryPrice,
		Size:           fill.FilledSize,
		GrossCapital:   notional,
		EntryFee:       fee,
		TakeProfit:     entryPrice * (1 + e.cfg.TakeProfitPct),
		StopLoss:       entryPrice * (1 - e.cfg.StopLossPct),
		Status:         domain.PositionMonitoring,
		OpenedAt:       now,
	}

	if err := e.store.Create(ctx, p); err != nil {
		// Inventory exists on the venue even if persistence failed; keep
		// monitoring it in memory and surface the error.
		e.logger.ErrorContext(ctx, "persist opened position",
			slog.String("position_id", p.ID), slog.String("error", err.Error()))
	}

	e.mu.Lock()
	e.open[p.ID] = p
	e.mu.Unlock()

	e.auditEvent(ctx, "position_opened", fmt.Sprintf("opened %s size %.6f at %.2f", p.Instrument, p.Size, p.EntryPrice), p)
	e.notify(ctx, "position_opened", "Position opened",
		fmt.Sprintf("%s size %.6f entry %.2f tp %.2f sl %.2f", p.Instrument, p.Size, p.EntryPrice, p.TakeProfit, p.StopLoss))

	e.logger.InfoContext(ctx, "position opened",
		slog.String("position_id", p.ID),
		slog.String("instrument", p.Instrument),
		slog.Float64("entry", p.EntryPrice),
		slog.Float64("take_profit", p.TakeProfit),
		slog.Float64("stop_loss", p.StopLoss))

	return p, nil
}

// MonitorOnce checks every open position against its thresholds and closes
// the ones that crossed. It returns the positions closed this tick. A failed
// close leaves the position open for the next tick; a failed ticker skips
// the position this tick.
func (e *Engine) MonitorOnce(ctx context.Context) []domain.Position {
	e.mu.Lock()
	positions := make([]*domain.Position, 0, len(e.open))
	for _, p := range e.open {
		positions = append(positions, p)
	}
	e.mu.Unlock()

	var closed []domain.Position
	for _, p := range positions {
		price, err := e.ticker(ctx, p.Instrument)
		if err != nil {
			e.logger.WarnContext(ctx, "ticker unavailable, skipping position this tick",
				slog.String("position_id", p.ID),
				slog.String("instrument", p.Instrument),
				slog.String("error", err.Error()))
			continue
		}

		var reason domain.CloseReason
		switch {
		case price >= p.TakeProfit:
			reason = domain.CloseTakeProfit
		case price <= p.StopLoss:
			reason = domain.CloseStopLoss
		default:
			continue
		}

		result, err := e.Close(ctx, p.ID, reason)
		if err != nil {
			e.logger.WarnContext(ctx, "close failed, position stays open",
				slog.String("position_id", p.ID),
				slog.String("reason", string(reason)),
				slog.String("error", err.Error()))
			continue
		}
		closed = append(closed, *result)
	}
	return closed
}

// Close sells the position's full size and settles it. A position closes
// exactly once; closing an unknown or already-closed ID returns ErrNotFound.
func (e *Engine) Close(ctx context.Context, positionID string, reason domain.CloseReason) (*domain.Position, error) {
	e.mu.Lock()
	p, ok := e.open[positionID]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("lifecycle: close %s: %w", positionID, domain.ErrNotFound)
	}

	fill, err := e.exchange.MarketSell(ctx, p.Instrument, p.Size)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: market sell %s: %w: %w",
			p.Instrument, domain.ErrExecutionFailed, err)
	}

	exitPrice := fill.AvgPrice
	settlement := Settle(*p, exitPrice, fill.Fee, e.cfg.FeeRate)

	now := time.Now().UTC()
	p.Status = domain.PositionClosed
	p.ClosedAt = &now
	p.CloseReason = reason
	p.ExitPrice = exitPrice
	p.ExitFee = settlement.ExitFee
	p.RealizedPnL = settlement.NetPnL

	e.mu.Lock()
	delete(e.open, p.ID)
	e.mu.Unlock()

	if err := e.store.Update(ctx, p); err != nil {
		e.logger.ErrorContext(ctx, "persist closed position",
			slog.String("position_id", p.ID), slog.String("error", err.Error()))
	}
	if err := e.ledger.Settle(ctx, p.Bucket, p.GrossCapital, settlement.NetPnL); err != nil {
		e.logger.ErrorContext(ctx, "settle ledger",
			slog.String("position_id", p.ID), slog.String("error", err.Error()))
	}

	e.recordLearning(ctx, p, settlement)
	e.auditEvent(ctx, "position_closed",
		fmt.Sprintf("closed %s (%s) pnl %.2f", p.Instrument, reason, settlement.NetPnL), p)
	e.notify(ctx, "position_closed", "Position closed",
		fmt.Sprintf("%s %s exit %.2f net pnl %.2f", p.Instrument, reason, exitPrice, settlement.NetPnL))

	e.logger.InfoContext(ctx, "position closed",
		slog.String("position_id", p.ID),
		slog.String("reason", string(reason)),
		slog.Float64("exit", exitPrice),
		slog.Float64("net_pnl", settlement.NetPnL))

	return p, nil
}

func (e *Engine) recordLearning(ctx context.Context, p *domain.Position, s domain.Settlement) {
	outcome := domain.OutcomeFailure
	if s.NetPnL > 0 {
		outcome = domain.OutcomeSuccess
	}
	actualReturn := 0.0
	if p.GrossCapital > 0 {
		actualReturn = s.NetPnL / p.GrossCapital * 100
	}

	rec := domain.LearningRecord{
		ID:             uuid.NewString(),
		OpportunityID:  p.OpportunityID,
		Type:           domain.OpportunitySpotTrade,
		Source:         "lifecycle",
		Confidence:     p.Confidence,
		ExpectedReturn: p.ExpectedReturn,
		ActualReturn:   actualReturn,
		Outcome:        outcome,
		RecordedAt:     time.Now().UTC(),
	}
	e.history.Append(rec)

	if e.learning != nil {
		if err := e.learning.Insert(ctx, &rec); err != nil {
			e.logger.WarnContext(ctx, "persist learning record", slog.String("error", err.Error()))
		}
	}
}

func (e *Engine) ticker(ctx context.Context, instrument string) (float64, error) {
	tctx, cancel := context.WithTimeout(ctx, e.cfg.TickerTimeout)
	defer cancel()
	return e.exchange.Ticker(tctx, instrument)
}

func (e *Engine) auditEvent(ctx context.Context, kind, detail string, p *domain.Position) {
	if e.audit == nil {
		return
	}
	entry := &domain.AuditEntry{
		Kind:   kind,
		Detail: detail,
		Fields: map[string]any{
			"position_id": p.ID,
			"instrument":  p.Instrument,
			"bucket":      p.Bucket,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := e.audit.Append(ctx, entry); err != nil {
		e.logger.WarnContext(ctx, "append audit entry", slog.String("error", err.Error()))
	}
}

func (e *Engine) notify(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.WarnContext(ctx, "notify", slog.String("error", err.Error()))
	}
}
