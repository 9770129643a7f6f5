package postgres

import (
	"context"
	"time"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/util"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ruleColumns = `id, owner_id, amount, direction, cadence, day_of_month, weekday,
	settlement_mode, start_date, end_date, category, description, created_at, updated_at, deleted_at`

// RecurringRuleRepository implements domain.RecurringRuleRepository using PostgreSQL
type RecurringRuleRepository struct {
	pool *pgxpool.Pool
}

// NewRecurringRuleRepository creates a new RecurringRuleRepository
func NewRecurringRuleRepository(pool *pgxpool.Pool) *RecurringRuleRepository {
	return &RecurringRuleRepository{pool: pool}
}

// Create inserts a new rule
func (r *RecurringRuleRepository) Create(ctx context.Context, rule *domain.RecurringRule) (*domain.RecurringRule, error) {
	amount, err := decimalToPgNumeric(rule.Amount)
	if err != nil {
		return nil, err
	}

	row := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO recurring_rules (owner_id, amount, direction, cadence, day_of_month, weekday,
			settlement_mode, start_date, end_date, category, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+ruleColumns,
		rule.OwnerID, amount, string(rule.Direction), string(rule.Cadence), rule.DayOfMonth, rule.Weekday,
		string(rule.SettlementMode), rule.StartDate, rule.EndDate, string(rule.Category), rule.Description,
	)
	return scanRule(row)
}

// GetByID retrieves a live rule by ID
func (r *RecurringRuleRepository) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*domain.RecurringRule, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM recurring_rules
		WHERE owner_id = $1 AND id = $2 AND deleted_at IS NULL`,
		ownerID, id,
	)
	rule, err := scanRule(row)
	if err != nil {
		return nil, notFound(err, domain.ErrRuleNotFound)
	}
	return rule, nil
}

// ListByOwner retrieves the owner's live rules in creation order
func (r *RecurringRuleRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.RecurringRule, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+ruleColumns+`
		FROM recurring_rules
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at, id`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]*domain.RecurringRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Update replaces every mutable field of a live rule
func (r *RecurringRuleRepository) Update(ctx context.Context, rule *domain.RecurringRule) (*domain.RecurringRule, error) {
	amount, err := decimalToPgNumeric(rule.Amount)
	if err != nil {
		return nil, err
	}

	row := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE recurring_rules
		SET amount = $3, direction = $4, cadence = $5, day_of_month = $6, weekday = $7,
			settlement_mode = $8, start_date = $9, end_date = $10, category = $11, description = $12,
			updated_at = now()
		WHERE owner_id = $1 AND id = $2 AND deleted_at IS NULL
		RETURNING `+ruleColumns,
		rule.OwnerID, rule.ID, amount, string(rule.Direction), string(rule.Cadence), rule.DayOfMonth, rule.Weekday,
		string(rule.SettlementMode), rule.StartDate, rule.EndDate, string(rule.Category), rule.Description,
	)
	updated, err := scanRule(row)
	if err != nil {
		return nil, notFound(err, domain.ErrRuleNotFound)
	}
	return updated, nil
}

// Delete soft-deletes a rule
func (r *RecurringRuleRepository) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE recurring_rules SET deleted_at = now(), updated_at = now()
		WHERE owner_id = $1 AND id = $2 AND deleted_at IS NULL`,
		ownerID, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

func scanRule(row pgx.Row) (*domain.RecurringRule, error) {
	var rule domain.RecurringRule
	var amount pgtype.Numeric
	var direction, cadence, mode, category string
	var start time.Time
	var end *time.Time
	err := row.Scan(
		&rule.ID, &rule.OwnerID, &amount, &direction, &cadence, &rule.DayOfMonth, &rule.Weekday,
		&mode, &start, &end, &category, &rule.Description, &rule.CreatedAt, &rule.UpdatedAt, &rule.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Amount = pgNumericToDecimal(amount)
	rule.Direction = domain.Direction(direction)
	rule.Cadence = domain.Cadence(cadence)
	rule.SettlementMode = domain.SettlementMode(mode)
	rule.Category = domain.Category(category)
	rule.StartDate = util.NormalizeAnchor(start)
	if end != nil {
		anchored := util.NormalizeAnchor(*end)
		rule.EndDate = &anchored
	}
	return &rule, nil
}

var _ domain.RecurringRuleRepository = (*RecurringRuleRepository)(nil)
