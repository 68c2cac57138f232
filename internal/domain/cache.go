package domain

import (
	"context"
	"time"
)

// TickerPrice is the latest observed price for an instrument.
type TickerPrice struct {
	Instrument string    `json:"instrument"`
	Price      float64   `json:"price"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PriceCache stores the latest ticker per instrument. A miss returns
// ErrNotFound.
type PriceCache interface {
	SetPrice(ctx context.Context, tick TickerPrice) error
	GetPrice(ctx context.Context, instrument string) (TickerPrice, error)
	GetPrices(ctx context.Context, instruments []string) (map[string]TickerPrice, error)
}

// LockManager provides distributed mutual exclusion for operations that must
// not run concurrently across bot instances, such as ledger reservations.
type LockManager interface {
	// Acquire returns an unlock function, or ErrLockHeld if another holder
	// owns the lock. The unlock function is safe to call more than once.
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error)
}
