// Package ledger tracks capital per bucket: what is available to deploy,
// what is allocated to open positions, and how the internal view squares
// with the venue's reported balance.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/quantbotio/quantbot/internal/domain"
)

// lockName is the distributed lock guarding reservations across instances.
const lockName = "ledger:reserve"

// Config holds ledger parameters.
type Config struct {
	// Buckets seeds each bucket's starting balance and daily spend limit.
	Buckets map[string]Bucket
	// DesyncTolerance is the absolute drift between the internal estimate
	// and the venue balance that triggers a desync warning on reconcile.
	DesyncTolerance float64
	// LockTTL bounds the distributed reservation lock.
	LockTTL time.Duration
}

// Bucket seeds one capital bucket.
type Bucket struct {
	Initial    float64
	DailyLimit float64
}

// Snapshot is a point-in-time view of one bucket.
type Snapshot struct {
	Available   float64 `json:"available"`
	Allocated   float64 `json:"allocated"`
	DailySpend  float64 `json:"daily_spend"`
	DailyProfit float64 `json:"daily_profit"`
	TotalProfit float64 `json:"total_profit"`
	LastSynced  float64 `json:"last_synced"`
}

type bucketState struct {
	available   float64
	allocated   float64
	dailyLimit  float64
	dailySpend  float64
	dailyProfit float64
	totalProfit float64
	lastSynced  float64
}

// Ledger is the sole authority on deployable capital. Reserve is the single
// gate through which funds leave a bucket; Reconcile is the only writer of
// available from external data. A process-local mutex serializes all state
// changes, and an optional LockManager extends the exclusion across
// instances.
type Ledger struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucketState
	locks   domain.LockManager
	audit   domain.AuditStore
	logger  *slog.Logger
}

// New creates a Ledger with each configured bucket starting fully available.
// locks and audit may be nil.
func New(cfg Config, locks domain.LockManager, audit domain.AuditStore, logger *slog.Logger) *Ledger {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 15 * time.Second
	}
	buckets := make(map[string]*bucketState, len(cfg.Buckets))
	for name, b := range cfg.Buckets {
		buckets[name] = &bucketState{
			available:  b.Initial,
			dailyLimit: b.DailyLimit,
			lastSynced: b.Initial,
		}
	}
	return &Ledger{
		cfg:     cfg,
		buckets: buckets,
		locks:   locks,
		audit:   audit,
		logger:  logger.With(slog.String("component", "ledger")),
	}
}

// Reserve atomically moves amount from available to allocated. It fails with
// ErrInsufficientCapital when the bucket cannot cover the amount or the
// daily spend limit would be exceeded. Concurrent reservations can never
// jointly overdraw a bucket.
func (l *Ledger) Reserve(ctx context.Context, bucket string, amount float64) error {
	release, err := l.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[bucket]
	if !ok {
		return fmt.Errorf("ledger: bucket %q: %w", bucket, domain.ErrNotFound)
	}
	if amount <= 0 {
		return fmt.Errorf("ledger: reserve amount must be positive, got %.2f", amount)
	}
	if amount > b.available {
		return fmt.Errorf("ledger: reserve %.2f exceeds available %.2f in %q: %w",
			amount, b.available, bucket, domain.ErrInsufficientCapital)
	}
	if b.dailySpend+amount > b.dailyLimit {
		return fmt.Errorf("ledger: reserve %.2f would exceed daily limit %.2f in %q: %w",
			amount, b.dailyLimit, bucket, domain.ErrInsufficientCapital)
	}

	b.available -= amount
	b.allocated += amount
	b.dailySpend += amount
	return nil
}

// Release returns a reservation to available after a failed execution.
func (l *Ledger) Release(ctx context.Context, bucket string, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[bucket]
	if !ok {
		return fmt.Errorf("ledger: bucket %q: %w", bucket, domain.ErrNotFound)
	}
	if amount > b.allocated {
		amount = b.allocated
	}
	b.allocated -= amount
	b.available += amount
	b.dailySpend -= amount
	if b.dailySpend < 0 {
		b.dailySpend = 0
	}
	return nil
}

// Settle closes out a reservation: the reserved capital plus the realized
// net profit (or minus the loss) returns to available, and profit counters
// update.
func (l *Ledger) Settle(ctx context.Context, bucket string, reserved, netPnL float64) error {
	release, err := l.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[bucket]
	if !ok {
		return fmt.Errorf("ledger: bucket %q: %w", bucket, domain.ErrNotFound)
	}
	if reserved > b.allocated {
		reserved = b.allocated
	}
	b.allocated -= reserved
	b.available += reserved + netPnL
	if b.available < 0 {
		b.available = 0
	}
	b.dailyProfit += netPnL
	b.totalProfit += netPnL
	return nil
}

// Reconcile aligns a bucket with the venue's reported cash balance. It is
// the only method that writes available from external data:
//
//	available = externalBalance - openPositionsValue - allocated
//
// so that available + allocated always equals the synced balance minus the
// value held in open positions. Drift beyond the tolerance is logged
// prominently and audited, then trusted anyway; the venue is the source of
// truth.
func (l *Ledger) Reconcile(ctx context.Context, bucket string, externalBalance, openPositionsValue float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[bucket]
	if !ok {
		return fmt.Errorf("ledger: bucket %q: %w", bucket, domain.ErrNotFound)
	}

	internalEstimate := b.available + b.allocated
	drift := math.Abs(internalEstimate - (externalBalance - openPositionsValue))

	available := externalBalance - openPositionsValue - b.allocated
	if available < 0 {
		available = 0
	}
	b.available = available
	b.lastSynced = externalBalance

	if drift > l.cfg.DesyncTolerance {
		l.logger.WarnContext(ctx, "LEDGER DESYNC: internal state drifted from venue balance",
			slog.String("bucket", bucket),
			slog.Float64("drift", drift),
			slog.Float64("external_balance", externalBalance),
			slog.Float64("open_positions_value", openPositionsValue),
			slog.Float64("tolerance", l.cfg.DesyncTolerance))
		l.auditDesync(ctx, bucket, drift, externalBalance)
	}
	return nil
}

// Available returns the deployable balance of a bucket.
func (l *Ledger) Available(bucket string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[bucket]; ok {
		return b.available
	}
	return 0
}

// Headroom returns the smaller of available balance and remaining daily
// limit; it is what the sizer may actually spend right now.
func (l *Ledger) Headroom(bucket string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[bucket]
	if !ok {
		return 0
	}
	remaining := b.dailyLimit - b.dailySpend
	if remaining < 0 {
		remaining = 0
	}
	if remaining < b.available {
		return remaining
	}
	return b.available
}

// SnapshotOf returns a copy of a bucket's current state.
func (l *Ledger) SnapshotOf(bucket string) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[bucket]
	if !ok {
		return Snapshot{}, fmt.Errorf("ledger: bucket %q: %w", bucket, domain.ErrNotFound)
	}
	return Snapshot{
		Available:   b.available,
		Allocated:   b.allocated,
		DailySpend:  b.dailySpend,
		DailyProfit: b.dailyProfit,
		TotalProfit: b.totalProfit,
		LastSynced:  b.lastSynced,
	}, nil
}

// ResetDaily zeroes the daily spend and profit counters in every bucket.
// Called at the daily report boundary.
func (l *Ledger) ResetDaily() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.buckets {
		b.dailySpend = 0
		b.dailyProfit = 0
	}
}

// acquireLock takes the cross-instance reservation lock when a LockManager
// is configured. The returned function releases it.
func (l *Ledger) acquireLock(ctx context.Context) (func(), error) {
	if l.locks == nil {
		return func() {}, nil
	}
	unlock, err := l.locks.Acquire(ctx, lockName, l.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("ledger: acquire reservation lock: %w", err)
	}
	return unlock, nil
}

func (l *Ledger) auditDesync(ctx context.Context, bucket string, drift, external float64) {
	if l.audit == nil {
		return
	}
	entry := &domain.AuditEntry{
		Kind:   "ledger_desync",
		Detail: fmt.Sprintf("bucket %s drifted %.2f from venue balance %.2f", bucket, drift, external),
		Fields: map[string]any{
			"bucket":   bucket,
			"drift":    drift,
			"external": external,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := l.audit.Append(ctx, entry); err != nil {
		l.logger.Warn("append desync audit entry", slog.String("error", err.Error()))
	}
}
