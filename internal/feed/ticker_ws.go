// Package feed streams live market data into the price cache.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantbotio/quantbot/internal/domain"
)

// TickerFeed connects to a websocket ticker stream, subscribes to the
// configured instruments, and writes every update into the price cache. It
// reconnects with backoff on disconnect.
type TickerFeed struct {
	wsURL       string
	instruments []string
	cache       domain.PriceCache
	logger      *slog.Logger
	closeOnce   sync.Once
	done        chan struct{}
}

// NewTickerFeed creates a feed that will subscribe to the given instruments.
func NewTickerFeed(wsURL string, instruments []string, cache domain.PriceCache, logger *slog.Logger) *TickerFeed {
	return &TickerFeed{
		wsURL:       wsURL,
		instruments: instruments,
		cache:       cache,
		logger:      logger.With(slog.String("component", "ticker_feed")),
		done:        make(chan struct{}),
	}
}

type subscribeMsg struct {
	Type        string   `json:"type"`
	Channels    []string `json:"channels"`
	Instruments []string `json:"instruments"`
}

type tickerMsg struct {
	Type       string  `json:"type"`
	Instrument string  `json:"instrument"`
	Price      float64 `json:"price"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
}

// Run connects, subscribes, and pumps updates until ctx is cancelled or
// Close is called. Reconnects with a fixed backoff on disconnect.
func (f *TickerFeed) Run(ctx context.Context) error {
	if len(f.instruments) == 0 {
		f.logger.Info("no instruments to subscribe, exiting")
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("ticker ws disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *TickerFeed) runConnection(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, f.wsURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	sub := subscribeMsg{
		Type:        "subscribe",
		Channels:    []string{"ticker"},
		Instruments: f.instruments,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.Info("ticker ws subscribed", slog.Int("instruments", len(f.instruments)))

	// Close the connection when the context ends so ReadMessage unblocks.
	go func() {
		select {
		case <-ctx.Done():
		case <-f.done:
		}
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: read: %w", err)
		}

		var msg tickerMsg
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "ticker" {
			continue
		}
		if msg.Instrument == "" || msg.Price <= 0 {
			continue
		}

		tick := domain.TickerPrice{
			Instrument: msg.Instrument,
			Price:      msg.Price,
			Bid:        msg.Bid,
			Ask:        msg.Ask,
			UpdatedAt:  time.Now().UTC(),
		}
		if err := f.cache.SetPrice(ctx, tick); err != nil {
			f.logger.Warn("cache ticker update",
				slog.String("instrument", msg.Instrument),
				slog.String("error", err.Error()))
		}
	}
}

// Close stops the feed.
func (f *TickerFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
