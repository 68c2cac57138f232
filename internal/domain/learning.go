package domain

import "time"

// Outcome is the resolution of a settled opportunity.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// LearningRecord captures how a taken opportunity actually played out. The
// ranking engine feeds per-type success rates back into future scores.
type LearningRecord struct {
	ID             string          `json:"id"`
	OpportunityID  string          `json:"opportunity_id"`
	Type           OpportunityType `json:"type"`
	Source         string          `json:"source"`
	Confidence     float64         `json:"confidence"`
	ExpectedReturn float64         `json:"expected_return"`
	ActualReturn   float64         `json:"actual_return"`
	Outcome        Outcome         `json:"outcome"`
	RecordedAt     time.Time       `json:"recorded_at"`
}

// LearningStats summarizes accumulated learning records.
type LearningStats struct {
	Total     int                         `json:"total"`
	Successes int                         `json:"successes"`
	Failures  int                         `json:"failures"`
	ByType    map[OpportunityType]float64 `json:"by_type"`
}

// SuccessRate returns the overall fraction of successful records, or 0 when
// no records exist.
func (s LearningStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Total)
}
