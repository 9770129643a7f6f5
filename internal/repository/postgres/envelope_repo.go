package postgres

import (
	"context"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const envelopeColumns = `id, owner_id, name, amount, remaining, is_master, parent_id, category, created_at, updated_at`

// EnvelopeRepository implements domain.EnvelopeRepository using PostgreSQL
type EnvelopeRepository struct {
	pool *pgxpool.Pool
}

// NewEnvelopeRepository creates a new EnvelopeRepository
func NewEnvelopeRepository(pool *pgxpool.Pool) *EnvelopeRepository {
	return &EnvelopeRepository{pool: pool}
}

// Create inserts a new envelope
func (r *EnvelopeRepository) Create(ctx context.Context, envelope *domain.BudgetEnvelope) (*domain.BudgetEnvelope, error) {
	amount, err := decimalToPgNumeric(envelope.Amount)
	if err != nil {
		return nil, err
	}
	remaining, err := decimalToPgNumeric(envelope.Remaining)
	if err != nil {
		return nil, err
	}

	row := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO budget_envelopes (owner_id, name, amount, remaining, is_master, parent_id, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+envelopeColumns,
		envelope.OwnerID, envelope.Name, amount, remaining, envelope.IsMaster, envelope.ParentID, categoryColumn(envelope.Category),
	)
	created, err := scanEnvelope(row)
	if err != nil {
		if isUniqueViolation(err) {
			if envelope.IsMaster {
				return nil, domain.ErrMasterExists
			}
			return nil, domain.ErrEnvelopeCategoryTaken
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves an envelope by ID
func (r *EnvelopeRepository) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*domain.BudgetEnvelope, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+envelopeColumns+` FROM budget_envelopes WHERE owner_id = $1 AND id = $2`,
		ownerID, id,
	)
	envelope, err := scanEnvelope(row)
	if err != nil {
		return nil, notFound(err, domain.ErrEnvelopeNotFound)
	}
	return envelope, nil
}

// GetMaster retrieves the owner's master envelope
func (r *EnvelopeRepository) GetMaster(ctx context.Context, ownerID string) (*domain.BudgetEnvelope, error) {
	return r.master(ctx, ownerID, "")
}

// GetMasterForUpdate retrieves the owner's master envelope and locks its row
func (r *EnvelopeRepository) GetMasterForUpdate(ctx context.Context, ownerID string) (*domain.BudgetEnvelope, error) {
	return r.master(ctx, ownerID, " FOR UPDATE")
}

func (r *EnvelopeRepository) master(ctx context.Context, ownerID, lock string) (*domain.BudgetEnvelope, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+envelopeColumns+` FROM budget_envelopes WHERE owner_id = $1 AND is_master`+lock,
		ownerID,
	)
	envelope, err := scanEnvelope(row)
	if err != nil {
		return nil, notFound(err, domain.ErrNoMaster)
	}
	return envelope, nil
}

// ListByOwner retrieves the master first, then children in creation order
func (r *EnvelopeRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.BudgetEnvelope, error) {
	return r.list(ctx, `
		SELECT `+envelopeColumns+`
		FROM budget_envelopes
		WHERE owner_id = $1
		ORDER BY is_master DESC, created_at, id`,
		ownerID,
	)
}

// ListChildren retrieves the children of masterID in creation order
func (r *EnvelopeRepository) ListChildren(ctx context.Context, ownerID string, masterID uuid.UUID) ([]*domain.BudgetEnvelope, error) {
	return r.list(ctx, `
		SELECT `+envelopeColumns+`
		FROM budget_envelopes
		WHERE owner_id = $1 AND parent_id = $2
		ORDER BY created_at, id`,
		ownerID, masterID,
	)
}

// FindChildByCategory retrieves the child filed under category
func (r *EnvelopeRepository) FindChildByCategory(ctx context.Context, ownerID string, category domain.Category) (*domain.BudgetEnvelope, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+envelopeColumns+`
		FROM budget_envelopes
		WHERE owner_id = $1 AND NOT is_master AND category = $2`,
		ownerID, string(category),
	)
	envelope, err := scanEnvelope(row)
	if err != nil {
		return nil, notFound(err, domain.ErrEnvelopeNotFound)
	}
	return envelope, nil
}

// Update replaces name, amounts and category of an envelope
func (r *EnvelopeRepository) Update(ctx context.Context, envelope *domain.BudgetEnvelope) (*domain.BudgetEnvelope, error) {
	amount, err := decimalToPgNumeric(envelope.Amount)
	if err != nil {
		return nil, err
	}
	remaining, err := decimalToPgNumeric(envelope.Remaining)
	if err != nil {
		return nil, err
	}

	row := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE budget_envelopes
		SET name = $3, amount = $4, remaining = $5, category = $6, updated_at = now()
		WHERE owner_id = $1 AND id = $2
		RETURNING `+envelopeColumns,
		envelope.OwnerID, envelope.ID, envelope.Name, amount, remaining, categoryColumn(envelope.Category),
	)
	updated, err := scanEnvelope(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrEnvelopeCategoryTaken
		}
		return nil, notFound(err, domain.ErrEnvelopeNotFound)
	}
	return updated, nil
}

// Delete removes an envelope
func (r *EnvelopeRepository) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM budget_envelopes WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEnvelopeNotFound
	}
	return nil
}

// DeleteChildren removes every child of masterID
func (r *EnvelopeRepository) DeleteChildren(ctx context.Context, ownerID string, masterID uuid.UUID) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM budget_envelopes WHERE owner_id = $1 AND parent_id = $2`, ownerID, masterID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *EnvelopeRepository) list(ctx context.Context, query string, args ...any) ([]*domain.BudgetEnvelope, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*domain.BudgetEnvelope, 0)
	for rows.Next() {
		envelope, err := scanEnvelope(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, envelope)
	}
	return result, rows.Err()
}

func categoryColumn(category *domain.Category) *string {
	if category == nil {
		return nil
	}
	value := string(*category)
	return &value
}

func scanEnvelope(row pgx.Row) (*domain.BudgetEnvelope, error) {
	var envelope domain.BudgetEnvelope
	var amount, remaining pgtype.Numeric
	var category *string

	err := row.Scan(
		&envelope.ID, &envelope.OwnerID, &envelope.Name, &amount, &remaining, &envelope.IsMaster,
		&envelope.ParentID, &category, &envelope.CreatedAt, &envelope.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	envelope.Amount = pgNumericToDecimal(amount)
	envelope.Remaining = pgNumericToDecimal(remaining)
	if category != nil {
		c := domain.Category(*category)
		envelope.Category = &c
	}
	return &envelope, nil
}

var _ domain.EnvelopeRepository = (*EnvelopeRepository)(nil)
