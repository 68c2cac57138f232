package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantbotio/quantbot/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, opportunity_id, bucket, venue, instrument,
	confidence, expected_return,
	entry_price, size, gross_capital, entry_fee, take_profit, stop_loss,
	status, opened_at, closed_at, close_reason, exit_price, exit_fee, realized_pnl`

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var status, closeReason string

	err := row.Scan(
		&p.ID, &p.OpportunityID, &p.Bucket, &p.Venue, &p.Instrument,
		&p.Confidence, &p.ExpectedReturn,
		&p.EntryPrice, &p.Size, &p.GrossCapital, &p.EntryFee,
		&p.TakeProfit, &p.StopLoss,
		&status, &p.OpenedAt, &p.ClosedAt, &closeReason,
		&p.ExitPrice, &p.ExitFee, &p.RealizedPnL,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PositionStatus(status)
	p.CloseReason = domain.CloseReason(closeReason)
	return &p, nil
}

func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Create inserts a new position.
func (s *PositionStore) Create(ctx context.Context, p *domain.Position) error {
	const query = `
		INSERT INTO positions (
			id, opportunity_id, bucket, venue, instrument,
			confidence, expected_return,
			entry_price, size, gross_capital, entry_fee, take_profit, stop_loss,
			status, opened_at, closed_at, close_reason, exit_price, exit_fee, realized_pnl,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20,
			NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.OpportunityID, p.Bucket, p.Venue, p.Instrument,
		p.Confidence, p.ExpectedReturn,
		p.EntryPrice, p.Size, p.GrossCapital, p.EntryFee, p.TakeProfit, p.StopLoss,
		string(p.Status), p.OpenedAt, p.ClosedAt, string(p.CloseReason),
		p.ExitPrice, p.ExitFee, p.RealizedPnL,
	)
	if err != nil {
		return fmt.Errorf("postgres: create position %s: %w", p.ID, err)
	}
	return nil
}

// Update replaces all mutable fields of a position.
func (s *PositionStore) Update(ctx context.Context, p *domain.Position) error {
	const query = `
		UPDATE positions SET
			status = $2, closed_at = $3, close_reason = $4,
			exit_price = $5, exit_fee = $6, realized_pnl = $7,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		p.ID, string(p.Status), p.ClosedAt, string(p.CloseReason),
		p.ExitPrice, p.ExitFee, p.RealizedPnL,
	)
	if err != nil {
		return fmt.Errorf("postgres: update position %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update position %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

// Get returns a position by ID.
func (s *PositionStore) Get(ctx context.Context, id string) (*domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE id = $1`

	p, err := scanPosition(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("postgres: get position %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// ListOpen returns every position that still holds inventory.
func (s *PositionStore) ListOpen(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions
		WHERE status != 'closed' ORDER BY opened_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions: %w", err)
	}
	positions, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions: %w", err)
	}
	return positions, nil
}

// ListClosedBefore returns closed positions settled before the cutoff,
// oldest first, for archival.
func (s *PositionStore) ListClosedBefore(ctx context.Context, before time.Time, limit int) ([]*domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions
		WHERE status = 'closed' AND closed_at < $1
		ORDER BY closed_at LIMIT $2`

	rows, err := s.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed positions: %w", err)
	}
	positions, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed positions: %w", err)
	}
	return positions, nil
}

// DeleteClosedBefore removes closed positions settled before the cutoff.
// Only the archiver calls this, after a successful upload.
func (s *PositionStore) DeleteClosedBefore(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM positions WHERE status = 'closed' AND closed_at < $1`

	tag, err := s.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete closed positions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
