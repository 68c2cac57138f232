package domain

import "time"

// DailyReport summarizes one day of bot activity.
type DailyReport struct {
	Date               time.Time          `json:"date"`
	OpportunitiesFound int                `json:"opportunities_found"`
	OpportunitiesTaken int                `json:"opportunities_taken"`
	WinRate            float64            `json:"win_rate"`
	TotalProfit        float64            `json:"total_profit"`
	TopOpportunity     *RankedOpportunity `json:"top_opportunity,omitempty"`
	Learnings          []string           `json:"learnings,omitempty"`
}

// AuditEntry is an append-only record of a state-changing event: executions,
// reconciles, desyncs, archive runs.
type AuditEntry struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Detail    string         `json:"detail"`
	Fields    map[string]any `json:"fields,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
