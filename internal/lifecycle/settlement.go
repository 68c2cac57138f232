package lifecycle

import "github.com/quantbotio/quantbot/internal/domain"

// Settle computes the fee-aware accounting for closing a position. It is the
// single place settlement math lives; every close path goes through it.
//
// Venue-reported fees are used when present; a zero venue fee falls back to
// the feeRate estimate applied to the leg's notional value.
func Settle(p domain.Position, exitPrice, exitFee, feeRate float64) domain.Settlement {
	entryFee := p.EntryFee
	if entryFee == 0 && feeRate > 0 {
		entryFee = p.GrossCapital * feeRate
	}

	exitValue := p.Size * exitPrice
	if exitFee == 0 && feeRate > 0 {
		exitFee = exitValue * feeRate
	}

	grossPnL := exitValue - p.Size*p.EntryPrice

	return domain.Settlement{
		GrossPnL:    grossPnL,
		EntryFee:    entryFee,
		ExitFee:     exitFee,
		NetPnL:      grossPnL - entryFee - exitFee,
		NetProceeds: exitValue - exitFee,
	}
}
