package source

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbotio/quantbot/internal/domain"
)

// fakePriceCache serves scripted ticks and records every batch lookup.
type fakePriceCache struct {
	mu      sync.Mutex
	ticks   map[string]domain.TickerPrice
	batches [][]string
}

func newFakePriceCache() *fakePriceCache {
	return &fakePriceCache{ticks: make(map[string]domain.TickerPrice)}
}

func (c *fakePriceCache) SetPrice(_ context.Context, tick domain.TickerPrice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks[tick.Instrument] = tick
	return nil
}

func (c *fakePriceCache) GetPrice(_ context.Context, instrument string) (domain.TickerPrice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tick, ok := c.ticks[instrument]
	if !ok {
		return domain.TickerPrice{}, domain.ErrNotFound
	}
	return tick, nil
}

func (c *fakePriceCache) GetPrices(_ context.Context, instruments []string) (map[string]domain.TickerPrice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, append([]string(nil), instruments...))
	out := make(map[string]domain.TickerPrice, len(instruments))
	for _, ins := range instruments {
		if tick, ok := c.ticks[ins]; ok {
			out[ins] = tick
		}
	}
	return out, nil
}

var _ domain.PriceCache = (*fakePriceCache)(nil)

func momentumConfig(instruments ...string) MomentumConfig {
	return MomentumConfig{
		Instruments:   instruments,
		Window:        10 * time.Minute,
		MinChange:     0.015,
		MaxVolatility: 0.05,
		MinSamples:    3,
		Hold:          5 * time.Minute,
	}
}

func setPrice(t *testing.T, cache *fakePriceCache, instrument string, price float64) {
	t.Helper()
	require.NoError(t, cache.SetPrice(context.Background(), domain.TickerPrice{
		Instrument: instrument,
		Price:      price,
		UpdatedAt:  time.Now().UTC(),
	}))
}

func TestFetchEmitsSignalOnCleanMove(t *testing.T) {
	cache := newFakePriceCache()
	a := NewMomentumAdapter(momentumConfig("BTC-USD"), cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	for _, price := range []float64{100, 100.5} {
		setPrice(t, cache, "BTC-USD", price)
		opps, err := a.Fetch(ctx)
		require.NoError(t, err)
		assert.Empty(t, opps, "no signal until the window holds enough samples")
	}

	// Third sample completes the window with a +2% move.
	setPrice(t, cache, "BTC-USD", 102)
	opps, err := a.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, opps, 1)

	o := opps[0]
	assert.Equal(t, domain.OpportunitySpotTrade, o.Type)
	assert.Equal(t, "BTC-USD", o.Action.Instrument)
	assert.True(t, o.Action.AutoExecute)
	assert.InDelta(t, 55.0, o.Confidence, 1e-9, "50 plus 1000x the excess over the 1.5% floor")
	assert.InDelta(t, 2.0, o.ExpectedValue, 1e-9)
}

func TestFetchRejectsChoppyWindow(t *testing.T) {
	cfg := momentumConfig("BTC-USD")
	cfg.MaxVolatility = 0.02
	cache := newFakePriceCache()
	a := NewMomentumAdapter(cfg, cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	// Ends +2% up but swings through a 5% drawdown on the way.
	for _, price := range []float64{100, 95, 102} {
		setPrice(t, cache, "BTC-USD", price)
		opps, err := a.Fetch(ctx)
		require.NoError(t, err)
		assert.Empty(t, opps)
	}
}

func TestFetchSnapshotsWatchlistInOneLookup(t *testing.T) {
	cache := newFakePriceCache()
	setPrice(t, cache, "BTC-USD", 100)
	// ETH-USD has no cached price yet and must be skipped, not fail the fetch.
	a := NewMomentumAdapter(momentumConfig("BTC-USD", "ETH-USD"), cache, slog.New(slog.NewTextHandler(io.Discard, nil)))

	opps, err := a.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)

	require.Len(t, cache.batches, 1)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, cache.batches[0],
		"the whole watchlist resolves through a single cache round trip")
}
