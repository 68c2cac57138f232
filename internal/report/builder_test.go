package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbotio/quantbot/internal/domain"
	"github.com/quantbotio/quantbot/internal/rank"
)

func ranked(title string, score float64) domain.RankedOpportunity {
	return domain.RankedOpportunity{
		Opportunity: domain.Opportunity{ID: title, Title: title},
		Score:       score,
	}
}

func TestBuildCounters(t *testing.T) {
	b := NewBuilder(nil)

	b.RecordFound(5)
	b.RecordFound(3)
	b.RecordTaken()
	b.RecordTaken()
	b.RecordSettled(2.5)
	b.RecordSettled(-1.0)

	r := b.Build(time.Now())
	assert.Equal(t, 8, r.OpportunitiesFound)
	assert.Equal(t, 2, r.OpportunitiesTaken)
	assert.InDelta(t, 0.5, r.WinRate, 1e-9)
	assert.InDelta(t, 1.5, r.TotalProfit, 1e-9)
}

func TestBuildWinRateWithNothingSettled(t *testing.T) {
	b := NewBuilder(nil)
	r := b.Build(time.Now())
	assert.Zero(t, r.WinRate)
}

func TestRecordTopKeepsHighestScore(t *testing.T) {
	b := NewBuilder(nil)

	b.RecordTop(ranked("middling", 50))
	b.RecordTop(ranked("best", 90))
	b.RecordTop(ranked("late and low", 40))

	r := b.Build(time.Now())
	require.NotNil(t, r.TopOpportunity)
	assert.Equal(t, "best", r.TopOpportunity.Opportunity.Title)
}

func TestBuildLearningsFromHistory(t *testing.T) {
	history := rank.NewHistory(10, []domain.LearningRecord{
		{Type: domain.OpportunitySpotTrade, Outcome: domain.OutcomeSuccess},
		{Type: domain.OpportunitySpotTrade, Outcome: domain.OutcomeFailure},
		{Type: domain.OpportunityArbitrage, Outcome: domain.OutcomeSuccess},
	})
	b := NewBuilder(history)

	r := b.Build(time.Now())
	require.NotEmpty(t, r.Learnings)
	assert.Contains(t, r.Learnings[0], "3 settled opportunities")
}

func TestResetClearsWindowNotHistory(t *testing.T) {
	history := rank.NewHistory(10, []domain.LearningRecord{
		{Type: domain.OpportunitySpotTrade, Outcome: domain.OutcomeSuccess},
	})
	b := NewBuilder(history)
	b.RecordFound(4)
	b.RecordTaken()
	b.RecordSettled(1)
	b.RecordTop(ranked("gone after reset", 70))

	b.Reset()

	r := b.Build(time.Now())
	assert.Zero(t, r.OpportunitiesFound)
	assert.Zero(t, r.OpportunitiesTaken)
	assert.Zero(t, r.TotalProfit)
	assert.Nil(t, r.TopOpportunity)
	assert.NotEmpty(t, r.Learnings, "history spans reporting windows")
}

func TestBrief(t *testing.T) {
	b := NewBuilder(nil)
	b.RecordFound(3)
	b.RecordTaken()
	b.RecordSettled(4.2)
	b.RecordTop(ranked("Lakers moneyline", 87.5))

	text := Brief(b.Build(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)))
	assert.True(t, strings.HasPrefix(text, "Daily report 2026-03-14"))
	assert.Contains(t, text, "found 3, taken 1")
	assert.Contains(t, text, "win rate 100%")
	assert.Contains(t, text, "Lakers moneyline")
	assert.Contains(t, text, "score 87.5")
}
