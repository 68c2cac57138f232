package domain

import (
	"context"
	"time"
)

// PositionStore persists positions. Closed positions are retained for
// learning and audit; Archive-driven cleanup is the only deletion path.
type PositionStore interface {
	Create(ctx context.Context, p *Position) error
	Update(ctx context.Context, p *Position) error
	Get(ctx context.Context, id string) (*Position, error)
	ListOpen(ctx context.Context) ([]*Position, error)
	ListClosedBefore(ctx context.Context, before time.Time, limit int) ([]*Position, error)
	DeleteClosedBefore(ctx context.Context, before time.Time) (int64, error)
}

// OpportunityStore records every opportunity that survived aggregation,
// whether or not it was taken.
type OpportunityStore interface {
	Insert(ctx context.Context, o *Opportunity, score float64, taken bool) error
	CountSince(ctx context.Context, since time.Time) (found int, taken int, err error)
}

// LearningStore persists learning records and restores the in-memory history
// on startup.
type LearningStore interface {
	Insert(ctx context.Context, r *LearningRecord) error
	ListRecent(ctx context.Context, limit int) ([]LearningRecord, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]LearningRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditStore appends audit entries. Entries are never updated or deleted.
type AuditStore interface {
	Append(ctx context.Context, e *AuditEntry) error
}
