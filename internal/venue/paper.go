// Package venue provides exchange implementations. The paper exchange fills
// orders at cached market prices, so trade and full modes run end to end
// without real venue credentials.
package venue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantbotio/quantbot/internal/domain"
)

// PaperConfig holds paper exchange parameters.
type PaperConfig struct {
	// StartingCash seeds the quote-currency balance.
	StartingCash float64
	// Currency is the settlement currency, e.g. "USD".
	Currency string
	// FeeRate is charged on every fill's notional.
	FeeRate float64
	// MaxPriceAge rejects fills against stale cached prices.
	MaxPriceAge time.Duration
}

// PaperExchange implements domain.SpotExchange in memory, filling market
// orders at the latest cached price plus the configured fee.
type PaperExchange struct {
	cfg    PaperConfig
	prices domain.PriceCache
	logger *slog.Logger

	mu       sync.Mutex
	cash     float64
	holdings map[string]float64
}

// NewPaperExchange creates a paper exchange backed by the given price cache.
func NewPaperExchange(cfg PaperConfig, prices domain.PriceCache, logger *slog.Logger) *PaperExchange {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.MaxPriceAge <= 0 {
		cfg.MaxPriceAge = 2 * time.Minute
	}
	return &PaperExchange{
		cfg:      cfg,
		prices:   prices,
		logger:   logger.With(slog.String("component", "paper_exchange")),
		cash:     cfg.StartingCash,
		holdings: make(map[string]float64),
	}
}

// MarketBuy converts notional quote currency into the instrument at the
// cached ask (or last price when no ask is cached).
func (p *PaperExchange) MarketBuy(ctx context.Context, instrument string, notional float64) (domain.FillResult, error) {
	if notional <= 0 {
		return domain.FillResult{}, fmt.Errorf("venue: buy notional must be positive, got %.2f", notional)
	}

	price, err := p.fillPrice(ctx, instrument, true)
	if err != nil {
		return domain.FillResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if notional > p.cash {
		return domain.FillResult{}, fmt.Errorf("venue: buy %.2f exceeds cash %.2f: %w",
			notional, p.cash, domain.ErrExecutionFailed)
	}

	fee := notional * p.cfg.FeeRate
	size := (notional - fee) / price

	p.cash -= notional
	p.holdings[instrument] += size

	p.logger.DebugContext(ctx, "paper buy filled",
		slog.String("instrument", instrument),
		slog.Float64("price", price),
		slog.Float64("size", size))

	return domain.FillResult{
		OrderID:    uuid.NewString(),
		FilledSize: size,
		AvgPrice:   price,
		Fee:        fee,
	}, nil
}

// MarketSell converts held inventory back into quote currency at the cached
// bid (or last price when no bid is cached).
func (p *PaperExchange) MarketSell(ctx context.Context, instrument string, size float64) (domain.FillResult, error) {
	if size <= 0 {
		return domain.FillResult{}, fmt.Errorf("venue: sell size must be positive, got %.6f", size)
	}

	price, err := p.fillPrice(ctx, instrument, false)
	if err != nil {
		return domain.FillResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	held := p.holdings[instrument]
	if size > held+1e-9 {
		return domain.FillResult{}, fmt.Errorf("venue: sell %.6f exceeds held %.6f %s: %w",
			size, held, instrument, domain.ErrExecutionFailed)
	}

	gross := size * price
	fee := gross * p.cfg.FeeRate

	p.holdings[instrument] = held - size
	p.cash += gross - fee

	p.logger.DebugContext(ctx, "paper sell filled",
		slog.String("instrument", instrument),
		slog.Float64("price", price),
		slog.Float64("size", size))

	return domain.FillResult{
		OrderID:    uuid.NewString(),
		FilledSize: size,
		AvgPrice:   price,
		Fee:        fee,
	}, nil
}

// Ticker returns the latest cached price for the instrument.
func (p *PaperExchange) Ticker(ctx context.Context, instrument string) (float64, error) {
	tick, err := p.prices.GetPrice(ctx, instrument)
	if err != nil {
		return 0, fmt.Errorf("venue: ticker %s: %w", instrument, err)
	}
	return tick.Price, nil
}

// Balances reports the quote-currency cash plus each held instrument's base
// currency.
func (p *PaperExchange) Balances(ctx context.Context) ([]domain.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := []domain.Balance{{Currency: p.cfg.Currency, Available: p.cash}}
	for instrument, size := range p.holdings {
		if size <= 0 {
			continue
		}
		out = append(out, domain.Balance{Currency: baseCurrency(instrument), Available: size})
	}
	return out, nil
}

// fillPrice looks up the cached ticker and picks the side-appropriate price.
func (p *PaperExchange) fillPrice(ctx context.Context, instrument string, buy bool) (float64, error) {
	tick, err := p.prices.GetPrice(ctx, instrument)
	if err != nil {
		return 0, fmt.Errorf("venue: no price for %s: %w: %w", instrument, domain.ErrExecutionFailed, err)
	}
	if age := time.Since(tick.UpdatedAt); age > p.cfg.MaxPriceAge {
		return 0, fmt.Errorf("venue: price for %s is %s old: %w", instrument, age.Round(time.Second), domain.ErrExecutionFailed)
	}

	if buy && tick.Ask > 0 {
		return tick.Ask, nil
	}
	if !buy && tick.Bid > 0 {
		return tick.Bid, nil
	}
	return tick.Price, nil
}

// baseCurrency extracts the base from an instrument like "BTC-USD".
func baseCurrency(instrument string) string {
	if i := strings.Index(instrument, "-"); i > 0 {
		return instrument[:i]
	}
	return instrument
}

// Compile-time interface check.
var _ domain.SpotExchange = (*PaperExchange)(nil)
