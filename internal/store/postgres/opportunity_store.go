package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantbotio/quantbot/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL. The
// action plan and evidence are stored as JSONB; the table is an append-only
// record of what the aggregator surfaced.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Insert records one surfaced opportunity with its score and whether it was
// acted on.
func (s *OpportunityStore) Insert(ctx context.Context, o *domain.Opportunity, score float64, taken bool) error {
	action, err := json.Marshal(o.Action)
	if err != nil {
		return fmt.Errorf("postgres: marshal opportunity action %s: %w", o.ID, err)
	}
	var evidence []byte
	if len(o.Evidence) > 0 {
		evidence, err = json.Marshal(o.Evidence)
		if err != nil {
			return fmt.Errorf("postgres: marshal opportunity evidence %s: %w", o.ID, err)
		}
	}

	const query = `
		INSERT INTO opportunities (
			id, type, source, title, confidence, expected_value, implied_prob,
			risk, action, evidence, score, taken, created_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14
		) ON CONFLICT (id) DO UPDATE SET score = $11, taken = opportunities.taken OR $12`

	_, err = s.pool.Exec(ctx, query,
		o.ID, string(o.Type), o.Source, o.Title,
		o.Confidence, o.ExpectedValue, o.ImpliedProb,
		string(o.Risk), action, evidence, score, taken,
		o.CreatedAt, nullableTime(o.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", o.ID, err)
	}
	return nil
}

// CountSince returns how many opportunities were recorded and how many were
// taken since the given instant.
func (s *OpportunityStore) CountSince(ctx context.Context, since time.Time) (found int, taken int, err error) {
	const query = `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE taken)
		FROM opportunities WHERE inserted_at >= $1`

	if err := s.pool.QueryRow(ctx, query, since).Scan(&found, &taken); err != nil {
		return 0, 0, fmt.Errorf("postgres: count opportunities: %w", err)
	}
	return found, taken, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
