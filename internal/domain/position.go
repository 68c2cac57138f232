package domain

import "time"

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	PositionOpened     PositionStatus = "opened"
	PositionMonitoring PositionStatus = "monitoring"
	PositionClosed     PositionStatus = "closed"
)

// CloseReason records why a position was closed.
type CloseReason string

const (
	CloseTakeProfit CloseReason = "take_profit"
	CloseStopLoss   CloseReason = "stop_loss"
	CloseManual     CloseReason = "manual"
)

// Position is a live or settled holding opened from an opportunity. Exit
// thresholds are fixed at open time and never recomputed afterwards, so a
// position always honors the market conditions it was entered under.
type Position struct {
	ID            string `json:"id"`
	OpportunityID string `json:"opportunity_id"`
	Bucket        string `json:"bucket"`
	Venue         string `json:"venue"`
	Instrument    string `json:"instrument"`

	// Confidence and ExpectedReturn snapshot the originating opportunity's
	// model view at decision time. The learning record written at close
	// reads them from here, so they survive restarts.
	Confidence     float64 `json:"confidence"`
	ExpectedReturn float64 `json:"expected_return"`

	// EntryPrice is the fee-adjusted average fill price.
	EntryPrice float64 `json:"entry_price"`
	// Size is the quantity of the instrument held.
	Size float64 `json:"size"`
	// GrossCapital is the amount reserved from the ledger, before fees.
	GrossCapital float64 `json:"gross_capital"`
	EntryFee     float64 `json:"entry_fee"`

	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`

	Status      PositionStatus `json:"status"`
	OpenedAt    time.Time      `json:"opened_at"`
	ClosedAt    *time.Time     `json:"closed_at,omitempty"`
	CloseReason CloseReason    `json:"close_reason,omitempty"`
	ExitPrice   float64        `json:"exit_price,omitempty"`
	ExitFee     float64        `json:"exit_fee,omitempty"`
	// RealizedPnL is the net profit after all fees, set when closed.
	RealizedPnL float64 `json:"realized_pnl,omitempty"`
}

// Open reports whether the position still holds inventory.
func (p Position) Open() bool {
	return p.Status != PositionClosed
}

// CurrentValue returns the position's mark value at the given price.
func (p Position) CurrentValue(price float64) float64 {
	return p.Size * price
}

// Settlement is the fee-aware accounting result of closing a position.
type Settlement struct {
	GrossPnL float64 `json:"gross_pnl"`
	EntryFee float64 `json:"entry_fee"`
	ExitFee  float64 `json:"exit_fee"`
	// NetPnL = GrossPnL - EntryFee - ExitFee.
	NetPnL float64 `json:"net_pnl"`
	// NetProceeds is what returns to the ledger: exit value minus exit fee.
	NetProceeds float64 `json:"net_proceeds"`
}
