package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantbotio/quantbot/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL. The audit log is
// append-only; there are no update or delete paths.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore backed by the given pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Append inserts one audit entry, assigning an ID when the caller left it
// empty.
func (s *AuditStore) Append(ctx context.Context, e *domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	var fields []byte
	if len(e.Fields) > 0 {
		var err error
		fields, err = json.Marshal(e.Fields)
		if err != nil {
			return fmt.Errorf("postgres: marshal audit fields: %w", err)
		}
	}

	const query = `
		INSERT INTO audit_log (id, kind, detail, fields, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query, e.ID, e.Kind, e.Detail, fields, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: append audit entry: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.AuditStore = (*AuditStore)(nil)
