package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbotio/quantbot/internal/aggregate"
	"github.com/quantbotio/quantbot/internal/domain"
	"github.com/quantbotio/quantbot/internal/rank"
	"github.com/quantbotio/quantbot/internal/report"
)

type fakeAdapter struct {
	name string
	opps []domain.Opportunity
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(context.Context) ([]domain.Opportunity, error) {
	return f.opps, nil
}

// memOpportunityStore records inserts and can reject a single ID.
type memOpportunityStore struct {
	mu         sync.Mutex
	inserted   []string
	failID     string
	countCalls int
}

func (m *memOpportunityStore) Insert(_ context.Context, o *domain.Opportunity, _ float64, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == m.failID {
		return errors.New("insert rejected")
	}
	m.inserted = append(m.inserted, o.ID)
	return nil
}

func (m *memOpportunityStore) CountSince(context.Context, time.Time) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countCalls++
	return len(m.inserted), 0, nil
}

var _ domain.OpportunityStore = (*memOpportunityStore)(nil)

func scanCandidate(id string, confidence float64) domain.Opportunity {
	return domain.Opportunity{
		ID:            id,
		Type:          domain.OpportunitySpotTrade,
		Source:        "test",
		Title:         id,
		Confidence:    confidence,
		ExpectedValue: 5,
		ImpliedProb:   0.5,
		Risk:          domain.RiskMedium,
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(time.Hour),
	}
}

func newTestScanLoop(store domain.OpportunityStore, opps ...domain.Opportunity) *ScanLoop {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	agg := aggregate.New(aggregate.Config{},
		[]aggregate.Adapter{&fakeAdapter{name: "test", opps: opps}}, logger)
	history := rank.NewHistory(10, nil)
	ranker := rank.NewEngine(rank.Config{}, history, nil, logger)
	return NewScanLoop(ScanConfig{}, agg, nil, ranker, store, nil,
		report.NewBuilder(history), logger)
}

func TestCyclePersistsPastFailedInsert(t *testing.T) {
	store := &memOpportunityStore{failID: "opp-b"}
	loop := newTestScanLoop(store,
		scanCandidate("opp-a", 80),
		scanCandidate("opp-b", 70),
		scanCandidate("opp-c", 60),
	)

	require.NoError(t, loop.Cycle(context.Background()))
	assert.ElementsMatch(t, []string{"opp-a", "opp-c"}, store.inserted,
		"one rejected insert does not abandon the rest of the slate")
}

func TestCycleCountsDailyTotals(t *testing.T) {
	store := &memOpportunityStore{}
	loop := newTestScanLoop(store, scanCandidate("opp-a", 80))

	require.NoError(t, loop.Cycle(context.Background()))
	assert.Equal(t, []string{"opp-a"}, store.inserted)
	assert.Equal(t, 1, store.countCalls, "every persisting cycle reports the day's totals")
}
