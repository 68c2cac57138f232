package venue

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

// memPriceCache is an in-memory stand-in for the Redis price cache.
type memPriceCache struct {
	mu    sync.Mutex
	ticks map[string]domain.TickerPrice
}

func newMemPriceCache() *memPriceCache {
	return &memPriceCache{ticks: make(map[string]domain.TickerPrice)}
}

func (c *memPriceCache) SetPrice(_ context.Context, tick domain.TickerPrice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks[tick.Instrument] = tick
	return nil
}

func (c *memPriceCache) GetPrice(_ context.Context, instrument string) (domain.TickerPrice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tick, ok := c.ticks[instrument]
	if !ok {
		return domain.TickerPrice{}, domain.ErrNotFound
	}
	return tick, nil
}

func (c *memPriceCache) GetPrices(ctx context.Context, instruments []string) (map[string]domain.TickerPrice, error) {
	out := make(map[string]domain.TickerPrice, len(instruments))
	for _, ins := range instruments {
		if tick, err := c.GetPrice(ctx, ins); err == nil {
			out[ins] = tick
		}
	}
	return out, nil
}

var _ domain.PriceCache = (*memPriceCache)(nil)

func newTestExchange(cash float64) (*PaperExchange, *memPriceCache) {
	prices := newMemPriceCache()
	ex := NewPaperExchange(PaperConfig{
		StartingCash: cash,
		FeeRate:      0.006,
	}, prices, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return ex, prices
}

func setTick(t *testing.T, c *memPriceCache, instrument string, price, bid, ask float64) {
	t.Helper()
	require.NoError(t, c.SetPrice(context.Background(), domain.TickerPrice{
		Instrument: instrument,
		Price:      price,
		Bid:        bid,
		Ask:        ask,
		UpdatedAt:  time.Now(),
	}))
}

func TestMarketBuyFeeAndSize(t *testing.T) {
	ex, prices := newTestExchange(1000)
	setTick(t, prices, "BTC-USD", 100, 99.5, 100.5)

	fill, err := ex.MarketBuy(context.Background(), "BTC-USD", 50)
	require.NoError(t, err)

	assert.InDelta(t, 100.5, fill.AvgPrice, 1e-9, "buys cross the ask")
	assert.InDelta(t, 0.3, fill.Fee, 1e-9)
	assert.InDelta(t, (50-0.3)/100.5, fill.FilledSize, 1e-9)
	assert.NotEmpty(t, fill.OrderID)
}

func TestMarketBuyExceedingCash(t *testing.T) {
	ex, prices := newTestExchange(40)
	setTick(t, prices, "BTC-USD", 100, 0, 0)

	_, err := ex.MarketBuy(context.Background(), "BTC-USD", 50)
	require.ErrorIs(t, err, domain.ErrExecutionFailed)

	// Cash untouched by the rejected order.
	balances, err := ex.Balances(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 40.0, balances[0].Available, 1e-9)
}

func TestMarketSellRoundTrip(t *testing.T) {
	ex, prices := newTestExchange(1000)
	setTick(t, prices, "ETH-USD", 200, 199, 201)

	buy, err := ex.MarketBuy(context.Background(), "ETH-USD", 100)
	require.NoError(t, err)

	sell, err := ex.MarketSell(context.Background(), "ETH-USD", buy.FilledSize)
	require.NoError(t, err)

	assert.InDelta(t, 199.0, sell.AvgPrice, 1e-9, "sells hit the bid")
	gross := buy.FilledSize * 199.0
	assert.InDelta(t, gross*0.006, sell.Fee, 1e-9)

	// Cash = 1000 - 100 + (gross - fee); inventory is gone.
	balances, err := ex.Balances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.InDelta(t, 1000-100+gross-sell.Fee, balances[0].Available, 1e-9)
}

func TestMarketSellWithoutInventory(t *testing.T) {
	ex, prices := newTestExchange(1000)
	setTick(t, prices, "BTC-USD", 100, 0, 0)

	_, err := ex.MarketSell(context.Background(), "BTC-USD", 0.5)
	require.ErrorIs(t, err, domain.ErrExecutionFailed)
}

func TestFillRejectsStalePrice(t *testing.T) {
	ex, prices := newTestExchange(1000)
	require.NoError(t, prices.SetPrice(context.Background(), domain.TickerPrice{
		Instrument: "BTC-USD",
		Price:      100,
		UpdatedAt:  time.Now().Add(-10 * time.Minute),
	}))

	_, err := ex.MarketBuy(context.Background(), "BTC-USD", 50)
	require.ErrorIs(t, err, domain.ErrExecutionFailed)
}

func TestFillFallsBackToLastPrice(t *testing.T) {
	ex, prices := newTestExchange(1000)
	setTick(t, prices, "BTC-USD", 100, 0, 0)

	fill, err := ex.MarketBuy(context.Background(), "BTC-USD", 50)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, fill.AvgPrice, 1e-9, "no ask cached, last price fills")
}

func TestTickerMiss(t *testing.T) {
	ex, _ := newTestExchange(1000)

	_, err := ex.Ticker(context.Background(), "BTC-USD")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBalancesIncludeHoldings(t *testing.T) {
	ex, prices := newTestExchange(1000)
	setTick(t, prices, "BTC-USD", 100, 0, 0)

	fill, err := ex.MarketBuy(context.Background(), "BTC-USD", 50)
	require.NoError(t, err)

	balances, err := ex.Balances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "USD", balances[0].Currency)
	assert.InDelta(t, 950.0, balances[0].Available, 1e-9)
	assert.Equal(t, "BTC", balances[1].Currency)
	assert.InDelta(t, fill.FilledSize, balances[1].Available, 1e-9)
}
