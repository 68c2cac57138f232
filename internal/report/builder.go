// Package report accumulates daily activity and renders it as a structured
// report and a short human-readable brief.
package report

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/quantbotio/quantbot/internal/domain"
	"github.com/quantbotio/quantbot/internal/rank"
)

// Builder collects counters over one reporting window. All methods are safe
// for concurrent use by the strategy loops.
type Builder struct {
	mu          sync.Mutex
	found       int
	taken       int
	wins        int
	settled     int
	totalProfit float64
	top         *domain.RankedOpportunity
	history     *rank.History
}

// NewBuilder creates a Builder backed by the shared learning history.
func NewBuilder(history *rank.History) *Builder {
	return &Builder{history: history}
}

// RecordFound adds to the opportunities-found counter.
func (b *Builder) RecordFound(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.found += n
}

// RecordTaken counts one opportunity acted on.
func (b *Builder) RecordTaken() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.taken++
}

// RecordSettled counts one closed position's outcome.
func (b *Builder) RecordSettled(netPnL float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settled++
	b.totalProfit += netPnL
	if netPnL > 0 {
		b.wins++
	}
}

// RecordTop keeps the highest-scoring opportunity seen this window.
func (b *Builder) RecordTop(r domain.RankedOpportunity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.top == nil || r.Score > b.top.Score {
		cp := r
		b.top = &cp
	}
}

// Build assembles the report for the window ending now.
func (b *Builder) Build(now time.Time) domain.DailyReport {
	b.mu.Lock()
	defer b.mu.Unlock()

	winRate := 0.0
	if b.settled > 0 {
		winRate = float64(b.wins) / float64(b.settled)
	}

	return domain.DailyReport{
		Date:               now,
		OpportunitiesFound: b.found,
		OpportunitiesTaken: b.taken,
		WinRate:            winRate,
		TotalProfit:        b.totalProfit,
		TopOpportunity:     b.top,
		Learnings:          b.learnings(),
	}
}

// Reset zeroes the window counters. The learning history is not touched; it
// spans windows.
func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.found = 0
	b.taken = 0
	b.wins = 0
	b.settled = 0
	b.totalProfit = 0
	b.top = nil
}

// learnings renders per-type success rates as short statements. Caller holds
// the mutex.
func (b *Builder) learnings() []string {
	if b.history == nil {
		return nil
	}
	stats := b.history.Stats()
	if stats.Total == 0 {
		return nil
	}

	out := make([]string, 0, len(stats.ByType)+1)
	out = append(out, fmt.Sprintf("overall success rate %.0f%% over %d settled opportunities",
		stats.SuccessRate()*100, stats.Total))
	for typ, rate := range stats.ByType {
		out = append(out, fmt.Sprintf("%s: %.0f%% success", typ, rate*100))
	}
	return out
}

// Brief renders a report as a short plain-text summary for notifications.
func Brief(r domain.DailyReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Daily report %s\n", r.Date.Format("2006-01-02"))
	fmt.Fprintf(&sb, "found %d, taken %d, win rate %.0f%%, profit %.2f",
		r.OpportunitiesFound, r.OpportunitiesTaken, r.WinRate*100, r.TotalProfit)
	if r.TopOpportunity != nil {
		fmt.Fprintf(&sb, "\ntop: %s (score %.1f)", r.TopOpportunity.Opportunity.Title, r.TopOpportunity.Score)
	}
	for _, l := range r.Learnings {
		fmt.Fprintf(&sb, "\n- %s", l)
	}
	return sb.String()
}
