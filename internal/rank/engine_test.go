package rank

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbotio/quantbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(cfg Config, history *History, oracle domain.AdvisoryOracle) *Engine {
	return NewEngine(cfg, history, oracle, testLogger())
}

func opp(id string, typ domain.OpportunityType, conf, ev float64, risk domain.RiskTier) domain.Opportunity {
	return domain.Opportunity{
		ID:            id,
		Type:          typ,
		Title:         "Lakers beat Celtics",
		Confidence:    conf,
		ExpectedValue: ev,
		Risk:          risk,
	}
}

func TestScoreComposition(t *testing.T) {
	e := newTestEngine(Config{}, nil, nil)

	// 0.4*70 + 3*6 + low-risk 20 + arbitrage 25 = 91.
	o := opp("a", domain.OpportunityArbitrage, 70, 6, domain.RiskLow)
	assert.InDelta(t, 91.0, e.Score(o, nil), 1e-9)
}

func TestScoreExpectedValueCap(t *testing.T) {
	e := newTestEngine(Config{}, nil, nil)

	o := opp("a", domain.OpportunitySpotTrade, 0, 50, domain.RiskHigh)
	assert.InDelta(t, 30.0, e.Score(o, nil), 1e-9, "EV contribution caps at 30")
}

func TestScoreNewsBonus(t *testing.T) {
	e := newTestEngine(Config{}, nil, nil)
	o := opp("a", domain.OpportunityDirectionalBet, 50, 0, domain.RiskHigh)

	base := e.Score(o, nil)
	aligned := e.Score(o, []domain.NewsItem{{Headline: "lakers injury report ahead of game"}})
	unrelated := e.Score(o, []domain.NewsItem{{Headline: "celtics sign new forward"}})

	assert.InDelta(t, base+10, aligned, 1e-9, "leading-token match earns the news bonus")
	assert.InDelta(t, base, unrelated, 1e-9)
}

func TestScoreHistoryMultiplier(t *testing.T) {
	h := NewHistory(10, nil)
	e := newTestEngine(Config{}, h, nil)
	o := opp("a", domain.OpportunitySpotTrade, 50, 0, domain.RiskHigh)

	base := e.Score(o, nil)

	// No records for the type: multiplier stays at 1.
	h.Append(domain.LearningRecord{Type: domain.OpportunityArbitrage, Outcome: domain.OutcomeSuccess})
	assert.InDelta(t, base, e.Score(o, nil), 1e-9)

	// One win, one loss for spot trades: 0.5 + 0.5 = 1.0 multiplier.
	h.Append(domain.LearningRecord{Type: domain.OpportunitySpotTrade, Outcome: domain.OutcomeSuccess})
	h.Append(domain.LearningRecord{Type: domain.OpportunitySpotTrade, Outcome: domain.OutcomeFailure})
	assert.InDelta(t, base, e.Score(o, nil), 1e-9)

	// All failures: multiplier 0.5.
	h2 := NewHistory(10, []domain.LearningRecord{
		{Type: domain.OpportunitySpotTrade, Outcome: domain.OutcomeFailure},
	})
	e2 := newTestEngine(Config{}, h2, nil)
	assert.InDelta(t, base*0.5, e2.Score(o, nil), 1e-9)
}

func TestRankEmptyInput(t *testing.T) {
	e := newTestEngine(Config{}, nil, nil)
	res := e.Rank(context.Background(), nil, nil)

	assert.Empty(t, res.Ranked)
	assert.Nil(t, res.Top)
}

func TestRankOrdersBestFirstAndIsStable(t *testing.T) {
	e := newTestEngine(Config{}, nil, nil)
	opps := []domain.Opportunity{
		opp("low", domain.OpportunitySpotTrade, 40, 1, domain.RiskHigh),
		opp("tie1", domain.OpportunityMarketOrder, 60, 2, domain.RiskMedium),
		opp("tie2", domain.OpportunityMarketOrder, 60, 2, domain.RiskMedium),
		opp("best", domain.OpportunityArbitrage, 80, 5, domain.RiskLow),
	}

	first := e.Rank(context.Background(), opps, nil)
	second := e.Rank(context.Background(), opps, nil)

	require.Len(t, first.Ranked, 4)
	assert.Equal(t, "best", first.Ranked[0].Opportunity.ID)
	require.NotNil(t, first.Top)
	assert.Equal(t, "best", first.Top.Opportunity.ID)

	// Equal scores keep input order.
	assert.Equal(t, "tie1", first.Ranked[1].Opportunity.ID)
	assert.Equal(t, "tie2", first.Ranked[2].Opportunity.ID)

	// Ranking is idempotent.
	for i := range first.Ranked {
		assert.Equal(t, first.Ranked[i].Opportunity.ID, second.Ranked[i].Opportunity.ID)
		assert.Equal(t, first.Ranked[i].Score, second.Ranked[i].Score)
	}
}

// fakeOracle returns a canned reordering or error.
type fakeOracle struct {
	reorder func([]domain.RankedOpportunity) []domain.RankedOpportunity
	err     error
}

func (f *fakeOracle) Advise(_ context.Context, c []domain.RankedOpportunity) ([]domain.RankedOpportunity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reorder(c), nil
}

func rankInput() []domain.Opportunity {
	return []domain.Opportunity{
		opp("a", domain.OpportunityArbitrage, 90, 10, domain.RiskLow),
		opp("b", domain.OpportunityMarketOrder, 70, 5, domain.RiskMedium),
		opp("c", domain.OpportunitySpotTrade, 50, 2, domain.RiskHigh),
	}
}

func TestAdvisoryReordersTopSlate(t *testing.T) {
	oracle := &fakeOracle{reorder: func(c []domain.RankedOpportunity) []domain.RankedOpportunity {
		out := make([]domain.RankedOpportunity, len(c))
		for i := range c {
			out[i] = c[len(c)-1-i]
		}
		return out
	}}
	e := newTestEngine(Config{OracleEnabled: true, OracleTopN: 2}, nil, oracle)

	res := e.Rank(context.Background(), rankInput(), nil)
	require.Len(t, res.Ranked, 3)
	assert.Equal(t, "b", res.Ranked[0].Opportunity.ID)
	assert.Equal(t, "a", res.Ranked[1].Opportunity.ID)
	assert.Equal(t, "c", res.Ranked[2].Opportunity.ID, "candidates outside the slate keep their position")
}

func TestAdvisoryFallbackOnError(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("upstream 500")}
	e := newTestEngine(Config{OracleEnabled: true, OracleTopN: 2}, nil, oracle)

	res := e.Rank(context.Background(), rankInput(), nil)
	require.Len(t, res.Ranked, 3)
	assert.Equal(t, "a", res.Ranked[0].Opportunity.ID, "oracle failure keeps deterministic order")
}

func TestAdvisoryFallbackOnInvalidSlate(t *testing.T) {
	cases := map[string]func([]domain.RankedOpportunity) []domain.RankedOpportunity{
		"dropped candidate": func(c []domain.RankedOpportunity) []domain.RankedOpportunity {
			return c[:len(c)-1]
		},
		"duplicated candidate": func(c []domain.RankedOpportunity) []domain.RankedOpportunity {
			return []domain.RankedOpportunity{c[0], c[0]}
		},
		"foreign candidate": func(c []domain.RankedOpportunity) []domain.RankedOpportunity {
			out := make([]domain.RankedOpportunity, len(c))
			copy(out, c)
			out[0].Opportunity.ID = "hallucinated"
			return out
		},
	}

	for name, reorder := range cases {
		t.Run(name, func(t *testing.T) {
			e := newTestEngine(Config{OracleEnabled: true, OracleTopN: 2}, nil, &fakeOracle{reorder: reorder})
			res := e.Rank(context.Background(), rankInput(), nil)
			require.Len(t, res.Ranked, 3)
			assert.Equal(t, "a", res.Ranked[0].Opportunity.ID)
			assert.Equal(t, "b", res.Ranked[1].Opportunity.ID)
		})
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	e := newTestEngine(Config{}, nil, nil)
	opps := rankInput()
	before := make([]domain.Opportunity, len(opps))
	copy(before, opps)

	_ = e.Rank(context.Background(), opps, nil)

	for i := range opps {
		assert.Equal(t, before[i].ID, opps[i].ID)
		assert.Equal(t, before[i].CreatedAt, opps[i].CreatedAt)
	}
}

func TestExpiredOpportunityHelper(t *testing.T) {
	now := time.Now()
	o := domain.Opportunity{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, o.Expired(now))

	o.ExpiresAt = time.Time{}
	assert.False(t, o.Expired(now), "zero expiry never expires")
}
