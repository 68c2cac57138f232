package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantbotio/quantbot/internal/domain"
)

// LearningStore implements domain.LearningStore using PostgreSQL.
type LearningStore struct {
	pool *pgxpool.Pool
}

// NewLearningStore creates a LearningStore backed by the given pool.
func NewLearningStore(pool *pgxpool.Pool) *LearningStore {
	return &LearningStore{pool: pool}
}

const learningSelectCols = `id, opportunity_id, type, source, confidence,
	expected_return, actual_return, outcome, recorded_at`

func scanLearnings(rows pgx.Rows) ([]domain.LearningRecord, error) {
	defer rows.Close()

	var records []domain.LearningRecord
	for rows.Next() {
		var r domain.LearningRecord
		var typ, outcome string
		if err := rows.Scan(
			&r.ID, &r.OpportunityID, &typ, &r.Source, &r.Confidence,
			&r.ExpectedReturn, &r.ActualReturn, &outcome, &r.RecordedAt,
		); err != nil {
			return nil, err
		}
		r.Type = domain.OpportunityType(typ)
		r.Outcome = domain.Outcome(outcome)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Insert persists one learning record.
func (s *LearningStore) Insert(ctx context.Context, r *domain.LearningRecord) error {
	const query = `
		INSERT INTO learning_records (
			id, opportunity_id, type, source, confidence,
			expected_return, actual_return, outcome, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.OpportunityID, string(r.Type), r.Source, r.Confidence,
		r.ExpectedReturn, r.ActualReturn, string(r.Outcome), r.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert learning record %s: %w", r.ID, err)
	}
	return nil
}

// ListRecent returns the newest records, oldest first, so they can seed the
// in-memory history in append order.
func (s *LearningStore) ListRecent(ctx context.Context, limit int) ([]domain.LearningRecord, error) {
	query := `SELECT ` + learningSelectCols + ` FROM (
			SELECT ` + learningSelectCols + ` FROM learning_records
			ORDER BY recorded_at DESC LIMIT $1
		) recent ORDER BY recorded_at`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent learning records: %w", err)
	}
	records, err := scanLearnings(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent learning records: %w", err)
	}
	return records, nil
}

// ListBefore returns records older than the cutoff, oldest first, for
// archival.
func (s *LearningStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.LearningRecord, error) {
	query := `SELECT ` + learningSelectCols + ` FROM learning_records
		WHERE recorded_at < $1 ORDER BY recorded_at LIMIT $2`

	rows, err := s.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list learning records before: %w", err)
	}
	records, err := scanLearnings(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list learning records before: %w", err)
	}
	return records, nil
}

// DeleteBefore removes records older than the cutoff after archival.
func (s *LearningStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM learning_records WHERE recorded_at < $1`

	tag, err := s.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete learning records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.LearningStore = (*LearningStore)(nil)
