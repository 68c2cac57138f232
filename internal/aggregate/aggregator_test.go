package aggregate

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

// fakeAdapter returns canned opportunities, an error, or blocks until its
// context is cancelled.
type fakeAdapter struct {
	name  string
	opps  []domain.Opportunity
	err   error
	block bool
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(ctx context.Context) ([]domain.Opportunity, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.opps, f.err
}

func candidate(id string, confidence, ev float64) domain.Opportunity {
	return domain.Opportunity{ID: id, Confidence: confidence, ExpectedValue: ev}
}

func newTestAggregator(cfg Config, adapters ...Adapter) *Aggregator {
	return New(cfg, adapters, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCollectMergesAllAdapters(t *testing.T) {
	a := newTestAggregator(Config{},
		&fakeAdapter{name: "one", opps: []domain.Opportunity{candidate("a", 60, 5), candidate("b", 70, 3)}},
		&fakeAdapter{name: "two", opps: []domain.Opportunity{candidate("c", 80, 8)}},
	)

	opps, report := a.Collect(context.Background())
	assert.Len(t, opps, 3)
	assert.Equal(t, 3, report.Collected)
	assert.Empty(t, report.Failures)
}

func TestCollectSurvivesFailedAdapter(t *testing.T) {
	a := newTestAggregator(Config{},
		&fakeAdapter{name: "healthy", opps: []domain.Opportunity{
			candidate("a", 60, 5), candidate("b", 70, 3), candidate("c", 65, 4),
		}},
		&fakeAdapter{name: "broken", err: errors.New("upstream down")},
	)

	opps, report := a.Collect(context.Background())
	assert.Len(t, opps, 3, "healthy sources still contribute")
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "broken", report.Failures[0].Source)
}

func TestCollectTimesOutSlowAdapter(t *testing.T) {
	a := newTestAggregator(Config{AdapterTimeout: 20 * time.Millisecond},
		&fakeAdapter{name: "slow", block: true},
		&fakeAdapter{name: "fast", opps: []domain.Opportunity{candidate("a", 60, 5)}},
	)

	start := time.Now()
	opps, report := a.Collect(context.Background())

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Len(t, opps, 1)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "slow", report.Failures[0].Source)
}

func TestCollectAppliesQualityFloors(t *testing.T) {
	a := newTestAggregator(Config{MinConfidence: 55, MinExpectedValue: 2},
		&fakeAdapter{name: "mixed", opps: []domain.Opportunity{
			candidate("keep", 60, 5),
			candidate("low-confidence", 40, 5),
			candidate("low-ev", 90, 1),
		}},
	)

	opps, report := a.Collect(context.Background())
	require.Len(t, opps, 1)
	assert.Equal(t, "keep", opps[0].ID)
	assert.Equal(t, 1, report.Collected)
	assert.Equal(t, 2, report.Filtered)
}
