package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantbotio/quantbot/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each
// instrument's latest ticker is stored at key "ticker:{instrument}" with
// fields "price", "bid", "ask", and "ts" (Unix nanosecond timestamp).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func tickerKey(instrument string) string {
	return "ticker:" + instrument
}

// SetPrice stores the latest ticker for an instrument.
func (pc *PriceCache) SetPrice(ctx context.Context, tick domain.TickerPrice) error {
	ts := tick.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(tick.Price, 'f', -1, 64),
		"bid":   strconv.FormatFloat(tick.Bid, 'f', -1, 64),
		"ask":   strconv.FormatFloat(tick.Ask, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, tickerKey(tick.Instrument), fields).Err(); err != nil {
		return fmt.Errorf("redis: set ticker %s: %w", tick.Instrument, err)
	}
	return nil
}

// GetPrice retrieves the latest ticker for an instrument. It returns
// domain.ErrNotFound when no ticker has been stored.
func (pc *PriceCache) GetPrice(ctx context.Context, instrument string) (domain.TickerPrice, error) {
	vals, err := pc.rdb.HGetAll(ctx, tickerKey(instrument)).Result()
	if err != nil {
		return domain.TickerPrice{}, fmt.Errorf("redis: get ticker %s: %w", instrument, err)
	}
	if len(vals) == 0 {
		return domain.TickerPrice{}, domain.ErrNotFound
	}
	return parseTicker(instrument, vals)
}

// GetPrices retrieves tickers for multiple instruments using a pipeline.
// Instruments without a stored ticker are omitted from the result map.
func (pc *PriceCache) GetPrices(ctx context.Context, instruments []string) (map[string]domain.TickerPrice, error) {
	out := make(map[string]domain.TickerPrice, len(instruments))
	if len(instruments) == 0 {
		return out, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(instruments))
	for _, inst := range instruments {
		cmds[inst] = pipe.HGetAll(ctx, tickerKey(inst))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get tickers pipeline: %w", err)
	}

	for inst, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		tick, err := parseTicker(inst, vals)
		if err != nil {
			continue
		}
		out[inst] = tick
	}
	return out, nil
}

func parseTicker(instrument string, vals map[string]string) (domain.TickerPrice, error) {
	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return domain.TickerPrice{}, fmt.Errorf("redis: parse ticker price %s: %w", instrument, err)
	}
	bid, _ := strconv.ParseFloat(vals["bid"], 64)
	ask, _ := strconv.ParseFloat(vals["ask"], 64)

	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.TickerPrice{}, fmt.Errorf("redis: parse ticker ts %s: %w", instrument, err)
	}

	return domain.TickerPrice{
		Instrument: instrument,
		Price:      price,
		Bid:        bid,
		Ask:        ask,
		UpdatedAt:  time.Unix(0, tsNano).UTC(),
	}, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
