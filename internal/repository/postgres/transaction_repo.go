package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/util"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, owner_id, amount, direction, date, category, description, payment_mode,
	is_settlement, envelope_id, link_kind, link_source_id, link_period, created_at, updated_at, deleted_at`

// TransactionRepository implements domain.TransactionRepository using PostgreSQL
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create inserts a transaction. A taken link yields domain.ErrDuplicateLink.
func (r *TransactionRepository) Create(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	amount, err := decimalToPgNumeric(tx.Amount)
	if err != nil {
		return nil, err
	}
	kind, source, period := linkColumns(tx.Link)

	row := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO transactions (owner_id, amount, direction, date, category, description, payment_mode,
			is_settlement, envelope_id, link_kind, link_source_id, link_period)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+transactionColumns,
		tx.OwnerID, amount, string(tx.Direction), tx.Date, string(tx.Category), tx.Description, string(tx.PaymentMode),
		tx.IsSettlement, tx.EnvelopeID, kind, source, period,
	)
	created, err := scanTransaction(row)
	if err != nil {
		if tx.Link != nil && isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s/%s/%s", domain.ErrDuplicateLink, tx.Link.Kind, tx.Link.SourceID, tx.Link.Period)
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a live transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*domain.Transaction, error) {
	return r.getOne(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE owner_id = $1 AND id = $2 AND deleted_at IS NULL`,
		ownerID, id,
	)
}

// GetByIDForUpdate retrieves a live transaction and locks its row
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, ownerID string, id uuid.UUID) (*domain.Transaction, error) {
	return r.getOne(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE owner_id = $1 AND id = $2 AND deleted_at IS NULL
		FOR UPDATE`,
		ownerID, id,
	)
}

func (r *TransactionRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Transaction, error) {
	tx, err := scanTransaction(conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, domain.ErrTransactionNotFound)
	}
	return tx, nil
}

// List retrieves live transactions matching filters, ordered by date
func (r *TransactionRepository) List(ctx context.Context, ownerID string, filters *domain.TransactionFilters) ([]*domain.Transaction, error) {
	where := []string{"owner_id = $1", "deleted_at IS NULL"}
	args := []any{ownerID}
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filters != nil {
		if filters.StartDate != nil {
			add("date >= $%d", *filters.StartDate)
		}
		if filters.EndDate != nil {
			add("date < $%d", *filters.EndDate)
		}
		if filters.EnvelopeID != nil {
			add("envelope_id = $%d", *filters.EnvelopeID)
		}
		if filters.Direction != nil {
			add("direction = $%d", string(*filters.Direction))
		}
		if filters.Category != nil {
			add("category = $%d", string(*filters.Category))
		}
	}

	return r.list(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY date, created_at, id`,
		args...,
	)
}

// Update replaces the mutable fields of a live transaction
func (r *TransactionRepository) Update(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	amount, err := decimalToPgNumeric(tx.Amount)
	if err != nil {
		return nil, err
	}

	row := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE transactions
		SET amount = $3, direction = $4, date = $5, category = $6, description = $7,
			payment_mode = $8, envelope_id = $9, updated_at = now()
		WHERE owner_id = $1 AND id = $2 AND deleted_at IS NULL
		RETURNING `+transactionColumns,
		tx.OwnerID, tx.ID, amount, string(tx.Direction), tx.Date, string(tx.Category), tx.Description,
		string(tx.PaymentMode), tx.EnvelopeID,
	)
	updated, err := scanTransaction(row)
	if err != nil {
		return nil, notFound(err, domain.ErrTransactionNotFound)
	}
	return updated, nil
}

// SoftDelete marks a live transaction deleted. Its link stays taken.
func (r *TransactionRepository) SoftDelete(ctx context.Context, ownerID string, id uuid.UUID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE transactions SET deleted_at = now(), updated_at = now()
		WHERE owner_id = $1 AND id = $2 AND deleted_at IS NULL`,
		ownerID, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// Delete removes a transaction row and frees its link
func (r *TransactionRepository) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM transactions WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// FindByLinkSource retrieves every live row generated from sourceID
func (r *TransactionRepository) FindByLinkSource(ctx context.Context, ownerID string, kind domain.LinkKind, sourceID string) ([]*domain.Transaction, error) {
	return r.list(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE owner_id = $1 AND link_kind = $2 AND link_source_id = $3 AND deleted_at IS NULL
		ORDER BY date, created_at, id`,
		ownerID, string(kind), sourceID,
	)
}

// FindByLink retrieves the row holding link, soft-deleted rows included
func (r *TransactionRepository) FindByLink(ctx context.Context, ownerID string, link domain.TransactionLink) (*domain.Transaction, error) {
	return r.getOne(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE owner_id = $1 AND link_kind = $2 AND link_source_id = $3 AND link_period = $4`,
		ownerID, string(link.Kind), link.SourceID, link.Period,
	)
}

// ListSettlements retrieves every live settlement row
func (r *TransactionRepository) ListSettlements(ctx context.Context, ownerID string) ([]*domain.Transaction, error) {
	return r.list(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE owner_id = $1 AND is_settlement AND deleted_at IS NULL
		ORDER BY date, created_at, id`,
		ownerID,
	)
}

// ListDeferredPrimaries retrieves every live deferred expense that is not itself a settlement
func (r *TransactionRepository) ListDeferredPrimaries(ctx context.Context, ownerID string) ([]*domain.Transaction, error) {
	return r.list(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE owner_id = $1 AND NOT is_settlement AND payment_mode = $2 AND direction = $3
			AND deleted_at IS NULL
		ORDER BY date, created_at, id`,
		ownerID, string(domain.SettlementDeferred), string(domain.DirectionExpense),
	)
}

// DetachEnvelopes clears the envelope link of every row filed under envelopeIDs
func (r *TransactionRepository) DetachEnvelopes(ctx context.Context, ownerID string, envelopeIDs []uuid.UUID) (int64, error) {
	if len(envelopeIDs) == 0 {
		return 0, nil
	}
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE transactions SET envelope_id = NULL, updated_at = now()
		WHERE owner_id = $1 AND envelope_id = ANY($2)`,
		ownerID, envelopeIDs,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SumExpensesByEnvelope sums live expenses filed under envelopeID
func (r *TransactionRepository) SumExpensesByEnvelope(ctx context.Context, ownerID string, envelopeID uuid.UUID) (decimal.Decimal, error) {
	return r.sum(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE owner_id = $1 AND envelope_id = $2 AND direction = $3 AND deleted_at IS NULL`,
		ownerID, envelopeID, string(domain.DirectionExpense),
	)
}

// SumCashOutflow sums live expenses dated in [start, end) that move cash in
// their own month: settlements and non-deferred primaries
func (r *TransactionRepository) SumCashOutflow(ctx context.Context, ownerID string, start, end time.Time) (decimal.Decimal, error) {
	return r.sum(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE owner_id = $1 AND direction = $2 AND deleted_at IS NULL
			AND (is_settlement OR payment_mode <> $3)
			AND date >= $4 AND date < $5`,
		ownerID, string(domain.DirectionExpense), string(domain.SettlementDeferred), start, end,
	)
}

func (r *TransactionRepository) sum(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	var total pgtype.Numeric
	if err := conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return pgNumericToDecimal(total), nil
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func linkColumns(link *domain.TransactionLink) (kind, source, period *string) {
	if link == nil {
		return nil, nil, nil
	}
	k := string(link.Kind)
	return &k, &link.SourceID, &link.Period
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amount pgtype.Numeric
	var direction, category, mode string
	var day time.Time
	var kind, source, period *string

	err := row.Scan(
		&tx.ID, &tx.OwnerID, &amount, &direction, &day, &category, &tx.Description, &mode,
		&tx.IsSettlement, &tx.EnvelopeID, &kind, &source, &period, &tx.CreatedAt, &tx.UpdatedAt, &tx.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Amount = pgNumericToDecimal(amount)
	tx.Direction = domain.Direction(direction)
	tx.Date = util.NormalizeAnchor(day)
	tx.Category = domain.Category(category)
	tx.PaymentMode = domain.SettlementMode(mode)
	if kind != nil {
		tx.Link = &domain.TransactionLink{Kind: domain.LinkKind(*kind)}
		if source != nil {
			tx.Link.SourceID = *source
		}
		if period != nil {
			tx.Link.Period = *period
		}
	}
	return &tx, nil
}

var _ domain.TransactionRepository = (*TransactionRepository)(nil)
