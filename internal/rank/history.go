// Package rank scores and orders opportunities. Scoring is deterministic;
// an optional advisory oracle may reorder the leading candidates, and any
// oracle failure silently keeps the deterministic order.
package rank

import (
	"sync"

	"github.com/quantbotio/quantbot/internal/domain"
)

// History is a bounded, append-only ring buffer of learning records. When
// capacity is reached the oldest record is evicted first. All methods are
// safe for concurrent use.
type History struct {
	mu    sync.RWMutex
	buf   []domain.LearningRecord
	start int
	count int
}

// NewHistory creates a History holding at most capacity records, pre-loaded
// with seed (oldest first). If seed exceeds capacity only the newest records
// are kept.
func NewHistory(capacity int, seed []domain.LearningRecord) *History {
	if capacity < 1 {
		capacity = 1
	}
	h := &History{buf: make([]domain.LearningRecord, capacity)}
	for _, r := range seed {
		h.Append(r)
	}
	return h
}

// Append records one settled outcome, evicting the oldest record when full.
func (h *History) Append(r domain.LearningRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count < len(h.buf) {
		h.buf[(h.start+h.count)%len(h.buf)] = r
		h.count++
		return
	}
	h.buf[h.start] = r
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of records currently held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Records returns a copy of the buffer, oldest first.
func (h *History) Records() []domain.LearningRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]domain.LearningRecord, 0, h.count)
	for i := 0; i < h.count; i++ {
		out = append(out, h.buf[(h.start+i)%len(h.buf)])
	}
	return out
}

// SuccessRate returns the fraction of successful records for the given
// opportunity type and the number of records considered. With no records for
// the type it returns (0, 0); callers treat that as "no signal".
func (h *History) SuccessRate(typ domain.OpportunityType) (rate float64, n int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var wins int
	for i := 0; i < h.count; i++ {
		r := h.buf[(h.start+i)%len(h.buf)]
		if r.Type != typ {
			continue
		}
		n++
		if r.Outcome == domain.OutcomeSuccess {
			wins++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return float64(wins) / float64(n), n
}

// Stats summarizes the buffer: totals and per-type success rates.
func (h *History) Stats() domain.LearningStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := domain.LearningStats{ByType: make(map[domain.OpportunityType]float64)}
	typeWins := make(map[domain.OpportunityType]int)
	typeTotal := make(map[domain.OpportunityType]int)

	for i := 0; i < h.count; i++ {
		r := h.buf[(h.start+i)%len(h.buf)]
		stats.Total++
		typeTotal[r.Type]++
		if r.Outcome == domain.OutcomeSuccess {
			stats.Successes++
			typeWins[r.Type]++
		} else {
			stats.Failures++
		}
	}
	for typ, total := range typeTotal {
		stats.ByType[typ] = float64(typeWins[typ]) / float64(total)
	}
	return stats
}
