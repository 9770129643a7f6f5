package postgres

import (
	"context"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OwnerRepository implements domain.OwnerRepository using PostgreSQL
type OwnerRepository struct {
	pool *pgxpool.Pool
}

// NewOwnerRepository creates a new OwnerRepository
func NewOwnerRepository(pool *pgxpool.Pool) *OwnerRepository {
	return &OwnerRepository{pool: pool}
}

// ListOwnerIDs returns every owner with a live rule or a master envelope
func (r *OwnerRepository) ListOwnerIDs(ctx context.Context) ([]string, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT owner_id FROM recurring_rules WHERE deleted_at IS NULL
		UNION
		SELECT owner_id FROM budget_envelopes WHERE is_master
		ORDER BY owner_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

var _ domain.OwnerRepository = (*OwnerRepository)(nil)
