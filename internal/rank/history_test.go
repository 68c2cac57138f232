package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbotio/quantbot/internal/domain"
)

func rec(id string, typ domain.OpportunityType, outcome domain.Outcome) domain.LearningRecord {
	return domain.LearningRecord{ID: id, Type: typ, Outcome: outcome}
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	h := NewHistory(3, nil)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		h.Append(rec(id, domain.OpportunitySpotTrade, domain.OutcomeSuccess))
	}

	assert.Equal(t, 3, h.Len())
	records := h.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "c", records[0].ID)
	assert.Equal(t, "d", records[1].ID)
	assert.Equal(t, "e", records[2].ID)
}

func TestHistorySeedOverCapacityKeepsNewest(t *testing.T) {
	seed := []domain.LearningRecord{
		rec("old", domain.OpportunitySpotTrade, domain.OutcomeFailure),
		rec("mid", domain.OpportunitySpotTrade, domain.OutcomeSuccess),
		rec("new", domain.OpportunitySpotTrade, domain.OutcomeSuccess),
	}
	h := NewHistory(2, seed)

	records := h.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "mid", records[0].ID)
	assert.Equal(t, "new", records[1].ID)
}

func TestHistorySuccessRatePerType(t *testing.T) {
	h := NewHistory(10, []domain.LearningRecord{
		rec("1", domain.OpportunitySpotTrade, domain.OutcomeSuccess),
		rec("2", domain.OpportunitySpotTrade, domain.OutcomeSuccess),
		rec("3", domain.OpportunitySpotTrade, domain.OutcomeFailure),
		rec("4", domain.OpportunityArbitrage, domain.OutcomeSuccess),
	})

	rate, n := h.SuccessRate(domain.OpportunitySpotTrade)
	assert.Equal(t, 3, n)
	assert.InDelta(t, 2.0/3.0, rate, 1e-9)

	rate, n = h.SuccessRate(domain.OpportunityDirectionalBet)
	assert.Zero(t, n, "unknown type reports no signal")
	assert.Zero(t, rate)
}

func TestHistoryStats(t *testing.T) {
	h := NewHistory(10, []domain.LearningRecord{
		rec("1", domain.OpportunitySpotTrade, domain.OutcomeSuccess),
		rec("2", domain.OpportunitySpotTrade, domain.OutcomeFailure),
		rec("3", domain.OpportunityArbitrage, domain.OutcomeSuccess),
	})

	stats := h.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Successes)
	assert.Equal(t, 1, stats.Failures)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate(), 1e-9)
	assert.InDelta(t, 0.5, stats.ByType[domain.OpportunitySpotTrade], 1e-9)
	assert.InDelta(t, 1.0, stats.ByType[domain.OpportunityArbitrage], 1e-9)
}
