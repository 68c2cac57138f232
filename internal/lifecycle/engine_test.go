package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbotio/quantbot/internal/domain"
	"github.com/quantbotio/quantbot/internal/rank"
)

// fakeExchange scripts fills and tickers per instrument.
type fakeExchange struct {
	mu      sync.Mutex
	price   map[string]float64
	buyErr  error
	sellErr error
	fee     float64
	sells   int
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{price: make(map[string]float64)}
}

func (f *fakeExchange) setPrice(instrument string, p float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price[instrument] = p
}

func (f *fakeExchange) MarketBuy(_ context.Context, instrument string, notional float64) (domain.FillResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buyErr != nil {
		return domain.FillResult{}, f.buyErr
	}
	p := f.price[instrument]
	return domain.FillResult{
		OrderID:    "buy-1",
		FilledSize: (notional - f.fee) / p,
		AvgPrice:   p,
		Fee:        f.fee,
	}, nil
}

func (f *fakeExchange) MarketSell(_ context.Context, instrument string, size float64) (domain.FillResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sellErr != nil {
		return domain.FillResult{}, f.sellErr
	}
	f.sells++
	p := f.price[instrument]
	return domain.FillResult{
		OrderID:    "sell-1",
		FilledSize: size,
		AvgPrice:   p,
		Fee:        f.fee,
	}, nil
}

func (f *fakeExchange) Ticker(_ context.Context, instrument string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.price[instrument]
	if !ok {
		return 0, errors.New("no ticker")
	}
	return p, nil
}

func (f *fakeExchange) Balances(context.Context) ([]domain.Balance, error) {
	return []domain.Balance{{Currency: "USD", Available: 1000}}, nil
}

// memPositionStore keeps positions in a map.
type memPositionStore struct {
	mu        sync.Mutex
	positions map[string]domain.Position
}

func newMemPositionStore() *memPositionStore {
	return &memPositionStore{positions: make(map[string]domain.Position)}
}

func (m *memPositionStore) Create(_ context.Context, p *domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[p.ID] = *p
	return nil
}

func (m *memPositionStore) Update(_ context.Context, p *domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[p.ID]; !ok {
		return domain.ErrNotFound
	}
	m.positions[p.ID] = *p
	return nil
}

func (m *memPositionStore) Get(_ context.Context, id string) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (m *memPositionStore) ListOpen(context.Context) ([]*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Position
	for _, p := range m.positions {
		if p.Status != domain.PositionClosed {
			cp := p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPositionStore) ListClosedBefore(context.Context, time.Time, int) ([]*domain.Position, error) {
	return nil, nil
}

func (m *memPositionStore) DeleteClosedBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// memLedger tracks Release and Settle calls.
type memLedger struct {
	mu       sync.Mutex
	released float64
	settled  float64
	pnl      float64
}

func (m *memLedger) Release(_ context.Context, _ string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released += amount
	return nil
}

func (m *memLedger) Settle(_ context.Context, _ string, reserved, netPnL float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settled += reserved
	m.pnl += netPnL
	return nil
}

func testConfig() Config {
	return Config{
		Bucket:           "spot",
		TakeProfitPct:    0.015,
		StopLossPct:      0.02,
		FeeRate:          0.006,
		MaxOpenPositions: 3,
		TickerTimeout:    time.Second,
	}
}

func newTestEngine(t *testing.T, cfg Config, ex *fakeExchange) (*Engine, *memPositionStore, *memLedger, *rank.History) {
	t.Helper()
	store := newMemPositionStore()
	led := &memLedger{}
	history := rank.NewHistory(50, nil)
	e := NewEngine(cfg, ex, store, led, history, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return e, store, led, history
}

func spotOpp(instrument string) domain.Opportunity {
	return domain.Opportunity{
		ID:            "opp-1",
		Type:          domain.OpportunitySpotTrade,
		Confidence:    60,
		ExpectedValue: 4.5,
		ImpliedProb:   0.5,
		Action: domain.ActionPlan{
			Type:       domain.ActionBuy,
			Venue:      "spot",
			Instrument: instrument,
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestOpenFixesThresholdsAtEntry(t *testing.T) {
	ex := newFakeExchange()
	ex.setPrice("BTC-USD", 100)
	e, store, _, _ := newTestEngine(t, testConfig(), ex)

	p, err := e.Open(context.Background(), spotOpp("BTC-USD"), 50)
	require.NoError(t, err)

	// Zero venue fee falls back to the 0.6% estimate: entry = (50-0.3)/0.497.
	assert.InDelta(t, 50*0.006, p.EntryFee, 1e-9)
	assert.InDelta(t, p.EntryPrice*1.015, p.TakeProfit, 1e-9)
	assert.InDelta(t, p.EntryPrice*0.98, p.StopLoss, 1e-9)
	assert.Equal(t, domain.PositionMonitoring, p.Status)

	stored, err := store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, stored.ID)
	assert.Equal(t, 1, e.OpenCount())
}

func TestOpenReleasesReservationOnFailedBuy(t *testing.T) {
	ex := newFakeExchange()
	ex.buyErr = errors.New("venue rejected order")
	e, _, led, _ := newTestEngine(t, testConfig(), ex)

	_, err := e.Open(context.Background(), spotOpp("BTC-USD"), 50)
	require.ErrorIs(t, err, domain.ErrExecutionFailed)
	assert.InDelta(t, 50.0, led.released, 1e-9, "reservation returned to the bucket")
	assert.Zero(t, e.OpenCount())
}

func TestOpenRejectsExpiredOpportunity(t *testing.T) {
	ex := newFakeExchange()
	ex.setPrice("BTC-USD", 100)
	e, _, _, _ := newTestEngine(t, testConfig(), ex)

	opp := spotOpp("BTC-USD")
	opp.ExpiresAt = time.Now().Add(-time.Minute)

	_, err := e.Open(context.Background(), opp, 50)
	require.ErrorIs(t, err, domain.ErrExpired)
}

func TestOpenEnforcesMaxPositions(t *testing.T) {
	ex := newFakeExchange()
	ex.setPrice("BTC-USD", 100)
	cfg := testConfig()
	cfg.MaxOpenPositions = 1
	e, _, _, _ := newTestEngine(t, cfg, ex)

	_, err := e.Open(context.Background(), spotOpp("BTC-USD"), 50)
	require.NoError(t, err)

	_, err = e.Open(context.Background(), spotOpp("BTC-USD"), 50)
	require.ErrorIs(t, err, domain.ErrInsufficientCapital)
}

func TestMonitorClosesOnTakeProfit(t *testing.T) {
	ex := newFakeExchange()
	ex.setPrice("BTC-USD", 100)
	e, store, led, history := newTestEngine(t, testConfig(), ex)

	p, err := e.Open(context.Background(), spotOpp("BTC-USD"), 50)
	require.NoError(t, err)

	// Below the threshold: nothing closes.
	ex.setPrice("BTC-USD", p.TakeProfit-0.01)
	assert.Empty(t, e.MonitorOnce(context.Background()))

	ex.setPrice("BTC-USD", p.TakeProfit+0.10)
	closed := e.MonitorOnce(context.Background())
	require.Len(t, closed, 1)
	assert.Equal(t, domain.CloseTakeProfit, closed[0].CloseReason)
	assert.Equal(t, domain.PositionClosed, closed[0].Status)
	assert.Positive(t, closed[0].RealizedPnL)

	stored, err := store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionClosed, stored.Status)
	assert.InDelta(t, 50.0, led.settled, 1e-9)
	assert.Equal(t, 1, history.Len(), "every close feeds the learning history")
	assert.Zero(t, e.OpenCount())
}

func TestMonitorClosesOnStopLoss(t *testing.T) {
	ex := newFakeExchange()
	ex.setPrice("BTC-USD", 100)
	e, _, _, history := newTestEngine(t, testConfig(), ex)

	p, err := e.Open(context.Background(), spotOpp("BTC-USD"), 50)
	require.NoError(t, err)

	ex.setPrice("BTC-USD", p.StopLoss-0.10)
	closed := e.MonitorOnce(context.Background())
	require.Len(t, closed, 1)
	assert.Equal(t, domain.CloseStopLoss, closed[0].CloseReason)
	assert.Negative(t, closed[0].RealizedPnL)

	records := history.Records()
	require.Len(t, records, 1)
	assert.Equal(t, domain.OutcomeFailure, records[0].Outcome)
}

func TestCloseCarriesDecisionSnapshotIntoHistory(t *testing.T) {
	ex := newFakeExchange()
	ex.setPrice("BTC-USD", 100)
	e, store, _, history := newTestEngine(t, testConfig(), ex)

	p, err := e.Open(context.Background(), spotOpp("BTC-USD"), 50)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, p.Confidence, 1e-9)
	assert.InDelta(t, 4.5, p.ExpectedReturn, 1e-9)

	stored, err := store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, stored.Confidence, 1e-9, "snapshot survives a restart via the store")

	ex.setPrice("BTC-USD", p.TakeProfit+0.10)
	require.Len(t, e.MonitorOnce(context.Background()), 1)

	records := history.Records()
	require.Len(t, records, 1)
	assert.InDelta(t, 60.0, records[0].Confidence, 1e-9)
	assert.InDelta(t, 4.5, records[0].ExpectedReturn, 1e-9)
	assert.Positive(t, records[0].ActualReturn)
}

func TestFailedCloseKeepsPositionOpen(t *testing.T) {
	ex := newFakeExchange()
	ex.setPrice("BTC-USD", 100)
	e, _, _, _ := newTestEngine(t, testConfig(), ex)

	p, err := e.Open(context.Background(), spotOpp("BTC-USD"), 50)
	require.NoError(t, err)

	ex.setPrice("BTC-USD", p.TakeProfit+1)
	ex.sellErr = errors.New("venue timeout")

	closed := e.MonitorOnce(context.Background())
	assert.Empty(t, closed)
	assert.Equal(t, 1, e.OpenCount(), "position stays monitored for the next tick")

	// Venue recovers; the next tick retries and succeeds.
	ex.sellErr = nil
	closed = e.MonitorOnce(context.Background())
	require.Len(t, closed, 1)
	assert.Equal(t, 1, ex.sells, "a position closes exactly once")
}

func TestCloseUnknownPosition(t *testing.T) {
	ex := newFakeExchange()
	e, _, _, _ := newTestEngine(t, testConfig(), ex)

	_, err := e.Close(context.Background(), "nope", domain.CloseManual)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRestoreReloadsOpenPositions(t *testing.T) {
	ex := newFakeExchange()
	ex.setPrice("BTC-USD", 100)
	e, store, _, _ := newTestEngine(t, testConfig(), ex)

	p, err := e.Open(context.Background(), spotOpp("BTC-USD"), 50)
	require.NoError(t, err)

	// Fresh engine over the same store, as after a restart.
	e2 := NewEngine(testConfig(), ex, store, &memLedger{}, rank.NewHistory(10, nil),
		nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, e2.Restore(context.Background()))
	assert.Equal(t, 1, e2.OpenCount())
	assert.Equal(t, []string{p.Instrument}, e2.OpenInstruments())
}

func TestSettleMath(t *testing.T) {
	p := domain.Position{
		EntryPrice:   99.4,
		Size:         0.5,
		GrossCapital: 50,
		EntryFee:     0.3,
	}

	s := Settle(p, 101, 0.35, 0.006)
	assert.InDelta(t, 0.5*(101-99.4), s.GrossPnL, 1e-9)
	assert.InDelta(t, 0.3, s.EntryFee, 1e-9)
	assert.InDelta(t, 0.35, s.ExitFee, 1e-9)
	assert.InDelta(t, s.GrossPnL-0.3-0.35, s.NetPnL, 1e-9)
	assert.InDelta(t, 0.5*101-0.35, s.NetProceeds, 1e-9)
}

func TestSettleEstimatesMissingFees(t *testing.T) {
	p := domain.Position{
		EntryPrice:   100,
		Size:         0.5,
		GrossCapital: 50,
	}

	// Venue reported no fees at all: both legs fall back to the estimate.
	s := Settle(p, 102, 0, 0.006)
	assert.InDelta(t, 50*0.006, s.EntryFee, 1e-9)
	assert.InDelta(t, 0.5*102*0.006, s.ExitFee, 1e-9)
}
