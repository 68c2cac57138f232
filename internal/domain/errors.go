package domain

import "errors"

// Sentinel errors shared across packages. Wrap these with fmt.Errorf("...: %w")
// to add context; check them with errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist in storage.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientCapital indicates a reservation exceeds the bucket's
	// available balance, or available headroom is below the minimum stake.
	ErrInsufficientCapital = errors.New("insufficient capital")

	// ErrNoEdge indicates the sizing model found no positive edge, so no
	// stake should be placed.
	ErrNoEdge = errors.New("no positive edge")

	// ErrSourceUnavailable indicates a source adapter could not reach its
	// upstream within the allotted time.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrOracleUnavailable indicates the advisory oracle failed or returned
	// output that could not be used. Callers fall back to deterministic
	// ranking.
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrExecutionFailed indicates a venue order was rejected or failed.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrLockHeld indicates a distributed lock is held by another instance.
	ErrLockHeld = errors.New("lock already held")

	// ErrExpired indicates an opportunity passed its expiry before it could
	// be sized or executed.
	ErrExpired = errors.New("opportunity expired")
)
